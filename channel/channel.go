// Package channel implements the command channel: line framing on top of a
// transport.Transport with exclusive access to the underlying stream.
//
// Every command is written as one line terminated by "\n". Replies are read
// up to the next "\n"; carriage returns are dropped and the line is trimmed.
// A read deadline that elapses mid-line ends the line instead of failing, so
// a reply that times out yields whatever bytes had arrived (possibly none).
package channel

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/arloliu/go-mxpsu/logger"
	"github.com/arloliu/go-mxpsu/transport"
)

// Terminator ends every command and reply line.
const Terminator = '\n'

const readBufferSize = 256

var (
	// ErrCommunication indicates a transport level failure: the link was
	// closed or the operating system reported an I/O error.
	ErrCommunication = errors.New("channel: communication failure")

	// ErrMalformedText indicates reply bytes that do not decode as text.
	ErrMalformedText = errors.New("channel: malformed reply text")

	// ErrInvalidCommand indicates a command that cannot be framed as one line.
	ErrInvalidCommand = errors.New("channel: invalid command")

	// ErrClosed indicates that the channel has been closed.
	ErrClosed = errors.New("channel: closed")
)

// Error describes a failed channel operation.
type Error struct {
	Op      string // "send" or "receive"
	Command string // command the operation belonged to, if known
	Kind    error  // ErrCommunication, ErrMalformedText or ErrInvalidCommand
	Err     error  // underlying cause
}

func (e *Error) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Op, e.Err)
	}

	return fmt.Sprintf("%v: %s %q: %v", e.Kind, e.Op, e.Command, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Channel frames commands and replies over a transport.
//
// Channel is safe for concurrent use; each Send, Receive, Query and
// SetTimeout call holds the channel lock for its whole duration, so one
// caller's reply can never be attributed to another caller's command.
type Channel struct {
	mu     sync.Mutex
	tr     transport.Transport
	rbuf   []byte // bytes read from the transport but not yet consumed
	closed bool
	logger logger.Logger
}

// Option is a functional option for configuring a Channel.
type Option interface {
	apply(*Channel) error
}

type optFunc func(*Channel) error

func (f optFunc) apply(c *Channel) error { return f(c) }

// WithLogger sets the logger for the channel.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(c *Channel) error {
		if l == nil {
			return errors.New("channel: logger must not be nil")
		}
		c.logger = l

		return nil
	})
}

// New creates a Channel over tr.
func New(tr transport.Transport, opts ...Option) (*Channel, error) {
	if tr == nil {
		return nil, errors.New("channel: transport is nil")
	}

	c := &Channel{
		tr:     tr,
		logger: logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Send writes cmd followed by the line terminator.
func (c *Channel) Send(cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.send(cmd)
}

// Receive reads one reply line.
func (c *Channel) Receive() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.receive("")
}

// Query sends cmd and reads one reply line.
func (c *Channel) Query(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send(cmd); err != nil {
		return "", err
	}

	return c.receive(cmd)
}

// SetTimeout reconfigures the read and write deadlines of the transport.
// It waits for any in-flight exchange to finish first.
func (c *Channel) SetTimeout(d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return &Error{Op: "set timeout", Kind: ErrCommunication, Err: ErrClosed}
	}

	if err := c.tr.SetTimeout(d); err != nil {
		return &Error{Op: "set timeout", Kind: ErrCommunication, Err: err}
	}

	c.logger.Debug("channel: timeout changed", "timeout", d)

	return nil
}

// Close closes the underlying transport. Further operations fail with ErrCommunication.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.rbuf = nil

	return c.tr.Close()
}

func (c *Channel) send(cmd string) error {
	if c.closed {
		return &Error{Op: "send", Command: cmd, Kind: ErrCommunication, Err: ErrClosed}
	}

	if strings.ContainsAny(cmd, "\r\n") {
		return &Error{Op: "send", Command: cmd, Kind: ErrInvalidCommand, Err: errors.New("line terminator inside command")}
	}

	c.logger.Debug("channel: send", "command", cmd)

	if err := c.writeAll([]byte(cmd + string(Terminator))); err != nil {
		return &Error{Op: "send", Command: cmd, Kind: ErrCommunication, Err: err}
	}

	return nil
}

// writeAll writes all bytes in data to the transport.
func (c *Channel) writeAll(data []byte) error {
	for written := 0; written < len(data); {
		n, err := c.tr.Write(data[written:])
		written += n

		if err != nil {
			return err
		}

		if n == 0 {
			return io.ErrShortWrite
		}
	}

	return nil
}

// receive collects bytes up to the terminator. A transport timeout ends the
// line early; any other transport error fails the receive and discards the
// partial line.
func (c *Channel) receive(cmd string) (string, error) {
	if c.closed {
		return "", &Error{Op: "receive", Command: cmd, Kind: ErrCommunication, Err: ErrClosed}
	}

	var (
		line     []byte
		timedOut bool
	)
	for {
		if idx := bytes.IndexByte(c.rbuf, Terminator); idx >= 0 {
			line = append(line, c.rbuf[:idx]...)
			c.rbuf = c.rbuf[idx+1:]

			break
		}

		if timedOut {
			line = append(line, c.rbuf...)
			c.rbuf = c.rbuf[:0]
			c.logger.Debug("channel: receive timed out", "command", cmd, "partial", string(line))

			break
		}

		var err error
		if timedOut, err = c.fill(); err != nil {
			c.rbuf = c.rbuf[:0]
			return "", &Error{Op: "receive", Command: cmd, Kind: ErrCommunication, Err: err}
		}
	}

	line = stripCR(line)
	if !utf8.Valid(line) {
		return "", &Error{Op: "receive", Command: cmd, Kind: ErrMalformedText, Err: fmt.Errorf("invalid UTF-8 sequence %q", line)}
	}

	reply := strings.TrimSpace(string(line))
	c.logger.Debug("channel: receive", "command", cmd, "reply", reply)

	return reply, nil
}

// fill performs one transport read into rbuf. It reports whether the read
// ended because the deadline elapsed.
func (c *Channel) fill() (bool, error) {
	buf := make([]byte, readBufferSize)
	n, err := c.tr.Read(buf)
	c.rbuf = append(c.rbuf, buf[:n]...)

	if err != nil {
		if errors.Is(err, transport.ErrTimeout) {
			return true, nil
		}

		return false, err
	}

	return false, nil
}

func stripCR(line []byte) []byte {
	out := line[:0]
	for _, b := range line {
		if b != '\r' {
			out = append(out, b)
		}
	}

	return out
}
