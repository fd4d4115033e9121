package netio

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// pollInterval bounds how long a "non-blocking" TCP operation may wait.
// Deadlines in the past make Go's net package fail reads even when data is
// buffered, so the poll window has to be slightly in the future.
const pollInterval = time.Millisecond

// writeTimeout bounds a single Write so a stalled peer cannot wedge the
// cooperative loop.
const writeTimeout = 10 * time.Second

// TCPListener adapts *net.TCPListener to the Listener capability.
type TCPListener struct {
	ln *net.TCPListener
}

// ListenTCP binds addr and returns a poll-ready listener.
func ListenTCP(addr string) (*TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("netio: listen %s: %w", addr, err)
	}
	return &TCPListener{ln: ln.(*net.TCPListener)}, nil
}

func (l *TCPListener) TryAccept() (Conn, error) {
	if err := l.ln.SetDeadline(time.Now().Add(pollInterval)); err != nil {
		return nil, err
	}
	c, err := l.ln.Accept()
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, nil
		}
		return nil, err
	}
	return &TCPConn{c: c}, nil
}

func (l *TCPListener) AcceptWithin(d time.Duration) (Conn, error) {
	if err := l.ln.SetDeadline(time.Now().Add(d)); err != nil {
		return nil, err
	}
	c, err := l.ln.Accept()
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, ErrAcceptTimeout
		}
		return nil, err
	}
	return &TCPConn{c: c}, nil
}

func (l *TCPListener) Addr() net.Addr { return l.ln.Addr() }

func (l *TCPListener) Close() error { return l.ln.Close() }

// TCPConn adapts net.Conn to the Conn capability.
type TCPConn struct {
	c net.Conn
}

// DialTCP is the Dialer used for active-mode data connections.
func DialTCP(addr string, timeout time.Duration) (Conn, error) {
	c, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("netio: dial %s: %w", addr, err)
	}
	return &TCPConn{c: c}, nil
}

func (c *TCPConn) Read(p []byte) (int, error) {
	// Clear any poll deadline a prior ReadAvailable left behind.
	if err := c.c.SetReadDeadline(time.Time{}); err != nil {
		return 0, err
	}
	return c.c.Read(p)
}

func (c *TCPConn) ReadAvailable(p []byte) (int, error) {
	if err := c.c.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
		return 0, err
	}
	n, err := c.c.Read(p)
	if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		return n, nil
	}
	return n, err
}

func (c *TCPConn) Write(p []byte) (int, error) {
	if err := c.c.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return 0, err
	}
	return c.c.Write(p)
}

func (c *TCPConn) Close() error { return c.c.Close() }

func (c *TCPConn) RemoteAddr() net.Addr { return c.c.RemoteAddr() }
