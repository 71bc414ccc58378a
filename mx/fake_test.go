package mx

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/arloliu/go-mxpsu/logger"
	"github.com/arloliu/go-mxpsu/protocol"
	"github.com/stretchr/testify/require"
)

// fakeExecutor records every command and pause in order. Queries are
// answered from replies; a command listed in fail returns that error.
type fakeExecutor struct {
	mu      sync.Mutex
	log     []string
	replies map[string]string
	fail    map[string]error
	status  protocol.StatusRegister
	timeout time.Duration
	closed  bool
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		replies: make(map[string]string),
		fail:    make(map[string]error),
	}
}

func (f *fakeExecutor) record(entry string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.log = append(f.log, entry)

	return f.fail[entry]
}

func (f *fakeExecutor) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.log...)
}

func (f *fakeExecutor) Execute(cmd string) error {
	return f.record(cmd)
}

func (f *fakeExecutor) QueryChecked(cmd string) (string, error) {
	if err := f.record(cmd); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.replies[cmd], nil
}

func (f *fakeExecutor) StatusRegister() (protocol.StatusRegister, error) {
	return f.status, f.record(protocol.StatusQuery)
}

func (f *fakeExecutor) Reset() error {
	return f.record(protocol.ResetCommand)
}

func (f *fakeExecutor) Clear() error {
	return f.record(protocol.ClearCommand)
}

func (f *fakeExecutor) SetTimeout(d time.Duration) error {
	f.timeout = d
	return nil
}

func (f *fakeExecutor) Close() error {
	f.closed = true
	return nil
}

func newTestPowerSupply(t *testing.T, fe *fakeExecutor, opts ...Option) *PowerSupply {
	t.Helper()

	opts = append([]Option{WithLogger(logger.NewNop())}, opts...)
	p, err := New(fe, opts...)
	require.NoError(t, err)

	p.sleep = func(d time.Duration) { _ = fe.record(fmt.Sprintf("pause %v", d)) }

	return p
}
