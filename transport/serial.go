package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-mxpsu/logger"
	"go.bug.st/serial"
)

// Serial is a Transport over a serial port.
//
// The underlying driver only supports a read timeout; writes block until the
// output buffer has drained.
type Serial struct {
	port   serial.Port
	path   string
	logger logger.Logger
}

var _ Transport = (*Serial)(nil)

// OpenSerial opens the serial device at path with 8 data bits, no parity and
// one stop bit at the configured baud rate.
func OpenSerial(path string, opts ...Option) (*Serial, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: cfg.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", path, err)
	}

	s, err := newSerial(port, path, cfg)
	if err != nil {
		_ = port.Close()
		return nil, err
	}

	cfg.logger.Info("transport: serial opened", "path", path, "baudRate", cfg.baudRate, "timeout", cfg.timeout)

	return s, nil
}

// NewSerial wraps an already opened port.
func NewSerial(port serial.Port, opts ...Option) (*Serial, error) {
	if port == nil {
		return nil, errors.New("transport: port is nil")
	}

	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	return newSerial(port, "", cfg)
}

func newSerial(port serial.Port, path string, cfg *Config) (*Serial, error) {
	s := &Serial{port: port, path: path, logger: cfg.logger}
	if err := s.SetTimeout(cfg.timeout); err != nil {
		return nil, err
	}

	return s, nil
}

// Read reads from the port. The driver reports an elapsed read timeout as a
// zero-length read, which is translated into ErrTimeout.
func (s *Serial) Read(p []byte) (int, error) {
	n, err := s.port.Read(p)
	if err != nil {
		return n, mapSerialError(err)
	}

	if n == 0 && len(p) > 0 {
		return 0, ErrTimeout
	}

	return n, nil
}

// Write writes p and waits until it has been transmitted.
func (s *Serial) Write(p []byte) (int, error) {
	n, err := s.port.Write(p)
	if err != nil {
		return n, mapSerialError(err)
	}

	if err := s.port.Drain(); err != nil {
		return n, mapSerialError(err)
	}

	return n, nil
}

// SetTimeout sets the read timeout. Zero blocks until data arrives.
func (s *Serial) SetTimeout(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("transport: timeout %v must not be negative", d)
	}

	if d == 0 {
		d = serial.NoTimeout
	}

	return mapSerialError(s.port.SetReadTimeout(d))
}

// Close closes the port.
func (s *Serial) Close() error {
	s.logger.Debug("transport: serial close", "path", s.path)
	return s.port.Close()
}

func mapSerialError(err error) error {
	if err == nil {
		return nil
	}

	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	return err
}
