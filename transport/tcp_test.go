package transport

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTCP(t *testing.T, opts ...Option) (*TCP, net.Conn) {
	t.Helper()

	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = local.Close()
		_ = remote.Close()
	})

	tr, err := NewTCP(local, opts...)
	require.NoError(t, err)

	return tr, remote
}

// newLoopbackTCP dials a real socket on the loopback interface and returns
// the transport together with the accepted server side.
func newLoopbackTCP(t *testing.T, opts ...Option) (*TCP, net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	tr, err := DialTCP(ln.Addr().String(), opts...)
	require.NoError(t, err)

	remote := <-accepted
	t.Cleanup(func() {
		_ = tr.Close()
		_ = remote.Close()
	})

	return tr, remote
}

func TestTCP_ReadWrite(t *testing.T) {
	tr, remote := newTestTCP(t)

	go func() {
		buf := make([]byte, 6)
		_, err := io.ReadFull(remote, buf)
		assert.NoError(t, err)
		assert.Equal(t, "OP1 1\n", string(buf))

		_, err = remote.Write([]byte("1\n"))
		assert.NoError(t, err)
	}()

	n, err := tr.Write([]byte("OP1 1\n"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	buf := make([]byte, 8)
	n, err = tr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "1\n", string(buf[:n]))
}

func TestTCP_ReadTimeout(t *testing.T) {
	tr, _ := newTestTCP(t, WithTimeout(20*time.Millisecond))

	start := time.Now()
	n, err := tr.Read(make([]byte, 4))
	require.Error(t, err)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestTCP_SetTimeout(t *testing.T) {
	tr, _ := newTestTCP(t, WithTimeout(time.Hour))

	require.NoError(t, tr.SetTimeout(10*time.Millisecond))
	_, err := tr.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrTimeout)

	require.Error(t, tr.SetTimeout(-time.Second))
}

func TestTCP_ReadAfterClose(t *testing.T) {
	tr, _ := newTestTCP(t)
	require.NoError(t, tr.Close())

	_, err := tr.Read(make([]byte, 1))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestTCP_RemoteClosed(t *testing.T) {
	tr, remote := newLoopbackTCP(t, WithTimeout(time.Second))
	require.NoError(t, remote.Close())

	_, err := tr.Read(make([]byte, 1))
	require.ErrorIs(t, err, io.EOF)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestDialTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	tr, err := DialTCP(ln.Addr().String(), WithTimeout(time.Second), WithConnectTimeout(time.Second))
	require.NoError(t, err)
	defer tr.Close()

	remote := <-accepted
	defer remote.Close()

	_, err = tr.Write([]byte("*IDN?\n"))
	require.NoError(t, err)

	buf := make([]byte, 6)
	_, err = io.ReadFull(remote, buf)
	require.NoError(t, err)
	assert.Equal(t, "*IDN?\n", string(buf))
}

func TestDialTCP_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = DialTCP(addr, WithConnectTimeout(200*time.Millisecond))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial")
}

func TestNewConfig_Options(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, cfg.Timeout())
	assert.Equal(t, DefaultConnectTimeout, cfg.ConnectTimeout())
	assert.Equal(t, DefaultBaudRate, cfg.BaudRate())
	assert.NotNil(t, cfg.GetLogger())

	cfg, err = NewConfig(WithTimeout(time.Second), WithBaudRate(115200), WithConnectTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Timeout())
	assert.Equal(t, 115200, cfg.BaudRate())

	_, err = NewConfig(WithBaudRate(0))
	require.Error(t, err)
	_, err = NewConfig(WithTimeout(-1))
	require.Error(t, err)
	_, err = NewConfig(WithConnectTimeout(0))
	require.Error(t, err)
	_, err = NewConfig(WithLogger(nil))
	require.Error(t, err)
}
