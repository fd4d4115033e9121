package netio

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"
)

// memAddr satisfies net.Addr for in-memory endpoints.
type memAddr string

func (a memAddr) Network() string { return "mem" }
func (a memAddr) String() string  { return string(a) }

// memState is the shared half-duplex buffer pair behind a MemPipe. A single
// mutex guards both directions so close/peer-close checks cannot deadlock.
type memState struct {
	mu sync.Mutex

	aToB bytes.Buffer
	bToA bytes.Buffer

	aClosed bool
	bClosed bool

	aCloses int
	bCloses int
}

// MemConn is one end of an in-memory connection. It implements Conn and
// additionally counts Close calls, which the session tests use to verify
// that data-channel teardown is deterministic.
type MemConn struct {
	st  *memState
	isA bool
}

// MemPipe returns two connected in-memory connections.
func MemPipe() (*MemConn, *MemConn) {
	st := &memState{}
	return &MemConn{st: st, isA: true}, &MemConn{st: st, isA: false}
}

func (c *MemConn) inbox() *bytes.Buffer {
	if c.isA {
		return &c.st.bToA
	}
	return &c.st.aToB
}

func (c *MemConn) outbox() *bytes.Buffer {
	if c.isA {
		return &c.st.aToB
	}
	return &c.st.bToA
}

func (c *MemConn) peerClosed() bool {
	if c.isA {
		return c.st.bClosed
	}
	return c.st.aClosed
}

func (c *MemConn) selfClosed() bool {
	if c.isA {
		return c.st.aClosed
	}
	return c.st.bClosed
}

func (c *MemConn) ReadAvailable(p []byte) (int, error) {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()
	if c.selfClosed() {
		return 0, io.ErrClosedPipe
	}
	in := c.inbox()
	if in.Len() == 0 {
		if c.peerClosed() {
			return 0, io.EOF
		}
		return 0, nil
	}
	return in.Read(p)
}

// Read has the same non-blocking semantics as ReadAvailable; the memory
// transport has no kernel to wait on.
func (c *MemConn) Read(p []byte) (int, error) {
	return c.ReadAvailable(p)
}

func (c *MemConn) Write(p []byte) (int, error) {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()
	if c.selfClosed() || c.peerClosed() {
		return 0, io.ErrClosedPipe
	}
	return c.outbox().Write(p)
}

func (c *MemConn) Close() error {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()
	if c.isA {
		c.st.aClosed = true
		c.st.aCloses++
	} else {
		c.st.bClosed = true
		c.st.bCloses++
	}
	return nil
}

// CloseCount reports how many times Close has been called on this end.
func (c *MemConn) CloseCount() int {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()
	if c.isA {
		return c.st.aCloses
	}
	return c.st.bCloses
}

// Closed reports whether this end has been closed.
func (c *MemConn) Closed() bool {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()
	return c.selfClosed()
}

func (c *MemConn) RemoteAddr() net.Addr { return memAddr("mem-peer") }

// MemListener is an in-memory Listener fed by Inject.
type MemListener struct {
	mu      sync.Mutex
	pending []Conn
	closed  bool
}

func NewMemListener() *MemListener {
	return &MemListener{}
}

// Inject queues c as an incoming connection.
func (l *MemListener) Inject(c Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, c)
}

func (l *MemListener) TryAccept() (Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, net.ErrClosed
	}
	if len(l.pending) == 0 {
		return nil, nil
	}
	c := l.pending[0]
	l.pending = l.pending[1:]
	return c, nil
}

func (l *MemListener) AcceptWithin(d time.Duration) (Conn, error) {
	deadline := time.Now().Add(d)
	for {
		c, err := l.TryAccept()
		if err != nil || c != nil {
			return c, err
		}
		if time.Now().After(deadline) {
			return nil, ErrAcceptTimeout
		}
		time.Sleep(time.Millisecond)
	}
}

func (l *MemListener) Addr() net.Addr { return memAddr("mem-listener") }

func (l *MemListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
