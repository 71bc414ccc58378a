// Package transport provides the byte-stream links used to reach an MX-series
// power supply: a TCP socket (the instrument's LAN interface, port 9221 by
// default) and a serial port (USB virtual COM port or RS-232).
//
// Both realizations satisfy the [Transport] interface. A read whose deadline
// elapses returns the bytes collected so far together with an error matching
// [ErrTimeout]; callers that frame lines treat that as "the line ends here".
// Any other read or write error indicates the link itself has failed.
//
// Transports are NOT goroutine-safe; the command channel serializes access.
package transport
