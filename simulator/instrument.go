package simulator

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-mxpsu/logger"
	"github.com/arloliu/go-mxpsu/protocol"
	"github.com/arloliu/go-mxpsu/transport"
)

const (
	DefaultOutputs  = 3
	DefaultIdentity = "THURLBY THANDAR, MX100TP, 000000, 1.00-1.00-1.00"

	// StoreCount is the number of setting stores per output and for the
	// whole instrument.
	StoreCount = 50

	MaxVoltage  = 70.0
	MaxCurrent  = 6.0
	MaxOVP      = 75.0
	MaxOCP      = 6.5
	MaxRange    = 4
	MaxConfig   = 4
	MaxDelayMS  = 20000
	rangeVolts  = 0.5
	defaultStep = 0.01
)

// OutputState is a snapshot of the settings and state of one output.
type OutputState struct {
	Voltage      float64
	CurrentLimit float64
	VoltageStep  float64
	CurrentStep  float64
	Range        int
	Damping      string
	OVP          float64
	OVPEnabled   bool
	OCP          float64
	OCPEnabled   bool
	On           bool
	Tripped      bool
	OnAction     string
	OffAction    string
	OnDelay      time.Duration
	OffDelay     time.Duration
}

func defaultOutputState() OutputState {
	return OutputState{
		CurrentLimit: 0.1,
		VoltageStep:  defaultStep,
		CurrentStep:  defaultStep,
		Range:        1,
		Damping:      "OFF",
		OnAction:     "QUICK",
		OffAction:    "QUICK",
	}
}

// settings returns the part of s that a store keeps.
func (s OutputState) settings() OutputState {
	s.On = false
	s.Tripped = false

	return s
}

type output struct {
	OutputState
	stores [StoreCount]*OutputState
}

// Instrument is a simulated MX-series power supply.
//
// Instrument is safe for concurrent use.
type Instrument struct {
	mu sync.Mutex

	outputs   []*output
	allStores [StoreCount][]OutputState
	tracking  int
	identity  string

	esr protocol.StatusRegister
	eer int

	wbuf       []byte
	rbuf       []byte
	pendingErr error
	failOn     map[string]error
	replyOn    map[string]string
	commands   []string
	timeout    time.Duration
	closed     bool

	logger logger.Logger
}

var _ transport.Transport = (*Instrument)(nil)

// Option is a functional option for configuring an Instrument.
type Option interface {
	apply(*Instrument)
}

type optFunc func(*Instrument)

func (f optFunc) apply(in *Instrument) { f(in) }

// WithOutputs sets the number of outputs. Values outside [1, 4] are clamped.
func WithOutputs(n int) Option {
	return optFunc(func(in *Instrument) {
		n = max(1, min(n, 4))
		in.outputs = make([]*output, n)
	})
}

// WithIdentity sets the "*IDN?" reply.
func WithIdentity(id string) Option {
	return optFunc(func(in *Instrument) {
		in.identity = id
	})
}

// WithLogger sets the logger used to trace received lines.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(in *Instrument) {
		if l != nil {
			in.logger = l
		}
	})
}

// New creates a powered-on instrument with default settings.
func New(opts ...Option) *Instrument {
	in := &Instrument{
		outputs:  make([]*output, DefaultOutputs),
		identity: DefaultIdentity,
		esr:      protocol.StatusPowerOn,
		failOn:   make(map[string]error),
		replyOn:  make(map[string]string),
		logger:   logger.NewNop(),
	}

	for _, opt := range opts {
		opt.apply(in)
	}

	for i := range in.outputs {
		in.outputs[i] = &output{OutputState: defaultOutputState()}
	}

	return in
}

// Read returns queued reply bytes. With nothing queued it fails with
// transport.ErrTimeout, as a real connection would once its deadline passed.
func (in *Instrument) Read(p []byte) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return 0, transport.ErrClosed
	}

	if in.pendingErr != nil {
		err := in.pendingErr
		in.pendingErr = nil

		return 0, err
	}

	if len(in.rbuf) == 0 {
		return 0, fmt.Errorf("%w: simulator: no reply queued", transport.ErrTimeout)
	}

	n := copy(p, in.rbuf)
	in.rbuf = in.rbuf[n:]

	return n, nil
}

// Write accepts command bytes and executes every complete line.
func (in *Instrument) Write(p []byte) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return 0, transport.ErrClosed
	}

	in.wbuf = append(in.wbuf, p...)
	for {
		idx := bytes.IndexByte(in.wbuf, '\n')
		if idx < 0 {
			break
		}

		line := strings.TrimSpace(strings.TrimSuffix(string(in.wbuf[:idx]), "\r"))
		in.wbuf = in.wbuf[idx+1:]

		if line != "" {
			in.process(line)
		}
	}

	return len(p), nil
}

// SetTimeout records d; reads never block.
func (in *Instrument) SetTimeout(d time.Duration) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return transport.ErrClosed
	}
	in.timeout = d

	return nil
}

// Timeout returns the last timeout set.
func (in *Instrument) Timeout() time.Duration {
	in.mu.Lock()
	defer in.mu.Unlock()

	return in.timeout
}

func (in *Instrument) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.closed = true

	return nil
}

// Closed reports whether Close was called.
func (in *Instrument) Closed() bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	return in.closed
}

// SetStatus sets bits in the status register.
func (in *Instrument) SetStatus(bits protocol.StatusRegister) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.esr |= bits
}

// Status returns the status register without clearing it.
func (in *Instrument) Status() protocol.StatusRegister {
	in.mu.Lock()
	defer in.mu.Unlock()

	return in.esr
}

// SetErrorCode sets the value the next "EER?" reports.
func (in *Instrument) SetErrorCode(code int) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.eer = code
}

// FailOn makes the read following the next receipt of line fail with err.
// The line is still executed; any reply it produced is lost.
func (in *Instrument) FailOn(line string, err error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.failOn[line] = err
}

// ReplyOn answers every receipt of line with reply instead of executing it.
func (in *Instrument) ReplyOn(line, reply string) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.replyOn[line] = reply
}

// Commands returns every line received so far.
func (in *Instrument) Commands() []string {
	in.mu.Lock()
	defer in.mu.Unlock()

	return append([]string(nil), in.commands...)
}

// Output returns the state of output ch, numbered from 1.
func (in *Instrument) Output(ch int) (OutputState, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if ch < 1 || ch > len(in.outputs) {
		return OutputState{}, fmt.Errorf("simulator: no output %d", ch)
	}

	return in.outputs[ch-1].OutputState, nil
}

// Tracking returns the voltage tracking mode.
func (in *Instrument) Tracking() int {
	in.mu.Lock()
	defer in.mu.Unlock()

	return in.tracking
}

// process executes one received line. Sub-commands separated by ';' run in
// order; the first rejected one stops the rest.
func (in *Instrument) process(line string) {
	in.commands = append(in.commands, line)
	in.logger.Debug("simulator: received", "line", line)

	mark := len(in.rbuf)

	if reply, ok := in.replyOn[line]; ok {
		in.queue(reply)
	} else {
		for _, part := range strings.Split(line, ";") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			reply, err := in.execute(part)
			if err != nil {
				in.raise(part, err)
				break
			}

			if reply != "" {
				in.queue(reply)
			}
		}
	}

	if err, ok := in.failOn[line]; ok {
		delete(in.failOn, line)
		in.rbuf = in.rbuf[:mark]
		in.pendingErr = err
	}
}

func (in *Instrument) queue(reply string) {
	in.rbuf = append(in.rbuf, reply...)
	in.rbuf = append(in.rbuf, '\r', '\n')
}

func (in *Instrument) raise(cmd string, err error) {
	var f *fault
	if !errors.As(err, &f) {
		f = errSyntax
	}

	in.esr |= f.status
	if f.status == protocol.StatusExecutionError {
		in.eer = f.code
	}

	in.logger.Debug("simulator: rejected", "command", cmd, "error", err)
}
