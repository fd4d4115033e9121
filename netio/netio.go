// Package netio abstracts the byte-stream sockets the FTP core runs on.
// The protocol loop is cooperative and single-threaded, so every operation
// here is either non-blocking (TryAccept, ReadAvailable) or bounded by an
// explicit timeout (AcceptWithin, a Dialer). The TCP implementation lives in
// tcp.go; an in-memory implementation for tests lives in mem.go.
package netio

import (
	"errors"
	"io"
	"net"
	"time"
)

// ErrAcceptTimeout is returned by AcceptWithin when no peer connects before
// the wait expires.
var ErrAcceptTimeout = errors.New("netio: accept timed out")

// Conn is a byte-stream connection.
type Conn interface {
	io.ReadWriteCloser

	// ReadAvailable reads whatever is already buffered, up to len(p),
	// without blocking beyond the poll interval. It returns n == 0 with a
	// nil error when nothing is pending, and io.EOF once the peer has
	// closed and the buffer is drained.
	ReadAvailable(p []byte) (int, error)

	RemoteAddr() net.Addr
}

// Listener accepts incoming connections.
type Listener interface {
	// TryAccept polls for a pending connection. It returns (nil, nil) when
	// no peer is waiting.
	TryAccept() (Conn, error)

	// AcceptWithin waits up to d for a connection and returns
	// ErrAcceptTimeout if none arrives.
	AcceptWithin(d time.Duration) (Conn, error)

	Addr() net.Addr
	Close() error
}

// Dialer opens an outbound connection, bounded by timeout. It is how the
// data channel reaches a client-supplied PORT address.
type Dialer func(addr string, timeout time.Duration) (Conn, error)
