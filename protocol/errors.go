package protocol

import (
	"errors"
	"fmt"
)

// Device reported faults, one per status register fault bit.
var (
	// ErrCommandError indicates a syntax error in a command or its parameter (ESR bit 5).
	ErrCommandError = errors.New("protocol: device reported command error")

	// ErrExecutionError indicates a command that could not be executed (ESR bit 4).
	ErrExecutionError = errors.New("protocol: device reported execution error")

	// ErrDeviceDependentError indicates a verify timeout or other device dependent fault (ESR bit 3).
	ErrDeviceDependentError = errors.New("protocol: device reported verify timeout or device dependent error")

	// ErrQueryError indicates a read without a preceding query (ESR bit 2).
	ErrQueryError = errors.New("protocol: device reported query error")

	// ErrUndefinedCode indicates an execution error code missing from the error code table.
	ErrUndefinedCode = errors.New("protocol: undefined device error code")
)

var (
	// ErrParse indicates a reply that does not have the shape expected for its command.
	ErrParse = errors.New("protocol: parse error")

	// ErrInvalidParameter indicates a parameter outside the range accepted by the instrument.
	// It is returned before anything is sent.
	ErrInvalidParameter = errors.New("protocol: invalid parameter")
)

// DeviceError is a fault flagged in the status register that carries no
// further detail.
type DeviceError struct {
	Kind    error          // ErrCommandError, ErrDeviceDependentError or ErrQueryError
	Command string         // command the fault is attributed to
	Status  StatusRegister // register snapshot that reported the fault
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%v: command %q (ESR %s)", e.Kind, e.Command, e.Status)
}

func (e *DeviceError) Unwrap() error {
	return e.Kind
}

// ExecutionError is an execution fault resolved through the error code table.
type ExecutionError struct {
	Code        int
	Category    string
	Description string
	Command     string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%v (code %d): %s - %s", ErrExecutionError, e.Code, e.Category, e.Description)
}

func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecutionError
}

// UndefinedCodeError is an execution fault whose code is not in the error code table.
type UndefinedCodeError struct {
	Code    int
	Command string
}

func (e *UndefinedCodeError) Error() string {
	return fmt.Sprintf("%v %d, command was %q", ErrUndefinedCode, e.Code, e.Command)
}

func (e *UndefinedCodeError) Is(target error) bool {
	return target == ErrUndefinedCode
}

// ParseError is a reply that could not be interpreted.
type ParseError struct {
	Command string
	Reply   string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: unexpected reply %q to %q", ErrParse, e.Reply, e.Command)
	}

	return fmt.Sprintf("%v: unexpected reply %q to %q: %v", ErrParse, e.Reply, e.Command, e.Err)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// InvalidParameterf returns an error matching ErrInvalidParameter.
func InvalidParameterf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

// IsDeviceFault reports whether err was reported by the instrument through
// its status register, as opposed to a communication or parse failure.
func IsDeviceFault(err error) bool {
	return errors.Is(err, ErrCommandError) ||
		errors.Is(err, ErrExecutionError) ||
		errors.Is(err, ErrDeviceDependentError) ||
		errors.Is(err, ErrQueryError) ||
		errors.Is(err, ErrUndefinedCode)
}
