package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-mxpsu/channel"
	"github.com/arloliu/go-mxpsu/logger"
)

// Commands used by the engine itself.
const (
	StatusQuery    = "*ESR?" // read and clear the status register
	ErrorCodeQuery = "EER?"  // read and clear the execution error code
	ResetCommand   = "*RST"
	ClearCommand   = "*CLS"
)

// Commander is the command channel capability the engine drives.
// *channel.Channel implements it.
type Commander interface {
	Send(cmd string) error
	Query(cmd string) (string, error)
	SetTimeout(d time.Duration) error
	Close() error
}

var _ Commander = (*channel.Channel)(nil)

// Engine executes commands and verifies their outcome through the
// instrument's status register.
//
// Engine is safe for concurrent use. Each Execute, QueryChecked, Reset,
// Clear and StatusRegister call owns the channel for its entire cycle,
// settle pauses included, so status register reads are always attributed to
// the caller's own command.
type Engine struct {
	mu      sync.Mutex
	ch      Commander
	cfg     *Config
	logger  logger.Logger
	metrics *Metrics

	sleep func(time.Duration)
}

// NewEngine creates an Engine driving ch.
func NewEngine(ch Commander, opts ...Option) (*Engine, error) {
	if ch == nil {
		return nil, errors.New("protocol: commander is nil")
	}

	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	return &Engine{
		ch:      ch,
		cfg:     cfg,
		logger:  cfg.logger,
		metrics: newMetrics(),
		sleep:   time.Sleep,
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() *Config { return e.cfg }

// Metrics returns the engine metrics.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// Execute sends a mutating command and verifies it.
//
// After the command is written the engine pauses for the settle delay, then
// reads (and thereby clears) the status register. The first fault bit found
// determines the returned error; with no fault bit set the command succeeded.
func (e *Engine) Execute(cmd string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.metrics.incCommandCount()

	if err := e.ch.Send(cmd); err != nil {
		e.metrics.incCommErrCount()
		e.logger.Error("protocol: send failed", "command", cmd, "error", err)

		return err
	}

	e.sleep(e.cfg.settleDelay)

	status, err := e.readStatus(cmd)
	if err != nil {
		return err
	}

	return e.statusError(cmd, status)
}

// QueryChecked sends a query and returns its trimmed reply.
//
// A reply is returned without touching the status register. When the query
// fails with a communication error the status register is read: a fault
// found there is returned instead of the communication error, otherwise the
// communication error is returned unchanged.
func (e *Engine) QueryChecked(cmd string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.metrics.incQueryCount()

	reply, err := e.ch.Query(cmd)
	if err == nil {
		return strings.TrimSpace(reply), nil
	}

	if !errors.Is(err, channel.ErrCommunication) {
		return "", err
	}

	e.metrics.incCommErrCount()
	e.logger.Debug("protocol: query failed, checking status register", "command", cmd, "error", err)

	// Reads and clears the status register.
	status, statusErr := e.readStatus(cmd)
	if statusErr != nil {
		e.logger.Debug("protocol: status register unavailable", "command", cmd, "error", statusErr)
		return "", err
	}

	if faultErr := e.statusError(cmd, status); faultErr != nil && IsDeviceFault(faultErr) {
		e.metrics.incRecoveredCount()
		return "", faultErr
	}

	return "", err
}

// StatusRegister reads the status register. The instrument clears the
// register as a side effect, so any pending fault is consumed.
func (e *Engine) StatusRegister() (StatusRegister, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.readStatus("")
}

// Reset sends "*RST" and waits for the reset delay. The status register is
// not checked afterwards.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ch.Send(ResetCommand); err != nil {
		e.metrics.incCommErrCount()
		return err
	}

	e.logger.Info("protocol: instrument reset", "delay", e.cfg.resetDelay)
	e.sleep(e.cfg.resetDelay)

	return nil
}

// Clear sends "*CLS", which clears the status register. It is not verified.
func (e *Engine) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ch.Send(ClearCommand); err != nil {
		e.metrics.incCommErrCount()
		return err
	}

	return nil
}

// SetTimeout changes the channel timeout. It waits for any in-flight cycle.
func (e *Engine) SetTimeout(d time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.ch.SetTimeout(d)
}

// Close closes the channel.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.ch.Close()
}

// readStatus reads and clears the status register. cmd is only used for
// diagnostics.
func (e *Engine) readStatus(cmd string) (StatusRegister, error) {
	e.metrics.incStatusReadCount()

	reply, err := e.ch.Query(StatusQuery)
	if err != nil {
		e.metrics.incCommErrCount()
		return 0, fmt.Errorf("protocol: query %s after %q: %w", StatusQuery, cmd, err)
	}

	status, err := ParseStatusRegister(reply)
	if err != nil {
		return 0, err
	}

	return status, nil
}

// statusError maps a status register snapshot to the fault it reports.
func (e *Engine) statusError(cmd string, status StatusRegister) error {
	var err error

	switch status.Fault() {
	case 0:
		return nil
	case StatusCommandError:
		err = &DeviceError{Kind: ErrCommandError, Command: cmd, Status: status}
	case StatusExecutionError:
		err = e.executionError(cmd)
	case StatusDeviceDependentError:
		err = &DeviceError{Kind: ErrDeviceDependentError, Command: cmd, Status: status}
	case StatusQueryError:
		err = &DeviceError{Kind: ErrQueryError, Command: cmd, Status: status}
	}

	if IsDeviceFault(err) {
		e.metrics.incDeviceFaultCount()
		e.logger.Warn("protocol: device reported fault", "command", cmd, "esr", status.String(), "error", err)
	}

	return err
}

// executionError fetches the execution error code with "EER?" and resolves it.
func (e *Engine) executionError(cmd string) error {
	reply, err := e.ch.Query(ErrorCodeQuery)
	if err != nil {
		e.metrics.incCommErrCount()
		return fmt.Errorf("protocol: query %s after %q: %w", ErrorCodeQuery, cmd, err)
	}

	code, err := strconv.Atoi(strings.TrimSpace(reply))
	if err != nil {
		return &ParseError{Command: ErrorCodeQuery, Reply: reply, Err: err}
	}

	e.metrics.incErrorCode(code)

	ec, ok := LookupErrorCode(code)
	if !ok {
		return &UndefinedCodeError{Code: code, Command: cmd}
	}

	return &ExecutionError{
		Code:        ec.Code,
		Category:    ec.Category,
		Description: ec.Description,
		Command:     cmd,
	}
}
