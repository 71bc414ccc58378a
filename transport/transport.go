package transport

import (
	"errors"
	"io"
	"time"
)

// DefaultTCPPort is the port the instrument's LAN interface listens on.
const DefaultTCPPort = 9221

var (
	// ErrTimeout indicates that a read or write deadline elapsed.
	ErrTimeout = errors.New("transport: timeout")

	// ErrClosed indicates that the transport has been closed.
	ErrClosed = errors.New("transport: closed")
)

// Transport is a bidirectional, timeout-bounded byte stream to an instrument.
type Transport interface {
	io.ReadWriteCloser

	// SetTimeout sets the deadline applied to every subsequent read and write.
	// A zero duration disables the deadline.
	SetTimeout(d time.Duration) error
}
