package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-mxpsu/logger"
)

// TCP is a Transport over a stream socket.
//
// Read and write deadlines are re-armed from the configured timeout before
// every operation, so a long idle period between commands never counts
// against the next exchange.
type TCP struct {
	conn    net.Conn
	timeout atomic.Int64 // time.Duration
	logger  logger.Logger
}

var _ Transport = (*TCP)(nil)

// DialTCP connects to address ("host:port"). When address carries no port,
// DefaultTCPPort is used.
func DialTCP(address string, opts ...Option) (*TCP, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, fmt.Sprint(DefaultTCPPort))
	}

	conn, err := net.DialTimeout("tcp", address, cfg.connectTimeout)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", address, err)
	}

	cfg.logger.Info("transport: tcp connected", "address", address, "timeout", cfg.timeout)

	return newTCP(conn, cfg), nil
}

// NewTCP wraps an established connection.
func NewTCP(conn net.Conn, opts ...Option) (*TCP, error) {
	if conn == nil {
		return nil, errors.New("transport: conn is nil")
	}

	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	return newTCP(conn, cfg), nil
}

func newTCP(conn net.Conn, cfg *Config) *TCP {
	t := &TCP{conn: conn, logger: cfg.logger}
	t.timeout.Store(int64(cfg.timeout))

	return t
}

func (t *TCP) deadline() time.Time {
	d := time.Duration(t.timeout.Load())
	if d == 0 {
		return time.Time{}
	}

	return time.Now().Add(d)
}

// Read reads from the socket. A deadline expiry is reported as ErrTimeout.
func (t *TCP) Read(p []byte) (int, error) {
	if err := t.conn.SetReadDeadline(t.deadline()); err != nil {
		return 0, mapNetError(err)
	}

	n, err := t.conn.Read(p)

	return n, mapNetError(err)
}

// Write writes p to the socket.
func (t *TCP) Write(p []byte) (int, error) {
	if err := t.conn.SetWriteDeadline(t.deadline()); err != nil {
		return 0, mapNetError(err)
	}

	n, err := t.conn.Write(p)

	return n, mapNetError(err)
}

// SetTimeout sets the deadline applied to subsequent reads and writes.
func (t *TCP) SetTimeout(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("transport: timeout %v must not be negative", d)
	}
	t.timeout.Store(int64(d))

	return nil
}

// Close closes the socket.
func (t *TCP) Close() error {
	t.logger.Debug("transport: tcp close", "remote", t.conn.RemoteAddr())
	return t.conn.Close()
}

func mapNetError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	if errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	return err
}
