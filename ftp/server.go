package ftp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/soloftp/soloftp/filesystem"
	"github.com/soloftp/soloftp/metrics"
	"github.com/soloftp/soloftp/netio"
	"github.com/soloftp/soloftp/users"
)

const serverVersion = "1.0"

// Default timings and ports. The data port is fixed: it is bound once at
// startup and advertised verbatim in every PASV reply.
const (
	DefaultDataPort       = 50009
	DefaultIdentTimeout   = 10 * time.Second
	DefaultIdleTimeout    = 15 * time.Minute
	DefaultConnectTimeout = 10 * time.Second
	DefaultTickInterval   = 5 * time.Millisecond
)

// State is the server's position in the session lifecycle. The server hosts
// a single session, so this is global server state, not per-connection.
type State int

const (
	// StateIdle: no client; the previous session, if any, was just torn
	// down. The next tick moves to StateAwaitingConnection.
	StateIdle State = iota
	// StateAwaitingConnection: listening, no control connection.
	StateAwaitingConnection
	// StateAwaitingIdentity: connected, greeted, waiting for USER.
	StateAwaitingIdentity
	// StateAwaitingPassword: USER accepted, waiting for PASS.
	StateAwaitingPassword
	// StateReady: authenticated; the full command set is available.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingConnection:
		return "AwaitingConnection"
	case StateAwaitingIdentity:
		return "AwaitingIdentity"
	case StateAwaitingPassword:
		return "AwaitingPassword"
	case StateReady:
		return "Ready"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Server is a single-client FTP server driven by a cooperative tick loop.
// Each tick checks for a new control connection, advances the session by at
// most one command or one transfer chunk, and enforces the deadlines. No
// per-connection goroutines; a new client displaces the current one.
type Server struct {
	// Addr is the control listen address, e.g. ":21".
	Addr string
	// DataAddr is the fixed passive data listen address.
	DataAddr string
	// WelcomeMessage shows up in the greeting banner.
	WelcomeMessage string

	IdentTimeout   time.Duration // window for the USER/PASS exchange
	IdleTimeout    time.Duration // inactivity window once authenticated
	ConnectTimeout time.Duration // data-connect wait, also the stall window
	TickInterval   time.Duration

	fs    filesystem.Store
	users users.Users

	logger  *slog.Logger
	metrics *metrics.ServerMetrics
	engine  *TransferEngine

	ctrlListener netio.Listener
	dataListener netio.Listener
	dial         netio.Dialer

	publicIPv4 [4]byte

	state State
	sess  *Session
}

// NewServer wires a server over the given store and user registry. Timings
// and ports start at their defaults; adjust fields before Listen.
func NewServer(addr string, fs filesystem.Store, users users.Users) *Server {
	return &Server{
		Addr:           addr,
		DataAddr:       fmt.Sprintf(":%d", DefaultDataPort),
		WelcomeMessage: "soloftp",
		IdentTimeout:   DefaultIdentTimeout,
		IdleTimeout:    DefaultIdleTimeout,
		ConnectTimeout: DefaultConnectTimeout,
		TickInterval:   DefaultTickInterval,
		fs:             fs,
		users:          users,
		dial:           netio.DialTCP,
		publicIPv4:     [4]byte{127, 0, 0, 1},
		state:          StateIdle,
	}
}

// SetLogger replaces the server's logger. A nil or absent logger falls back
// to slog.Default.
func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// Logger returns the configured logger, or slog.Default.
func (s *Server) Logger() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

// SetPublicServerIPv4 sets the address octets advertised in PASV replies,
// for servers behind NAT.
func (s *Server) SetPublicServerIPv4(ip string) error {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return fmt.Errorf("public ip: %w", err)
	}
	if !addr.Is4() {
		return fmt.Errorf("public ip %s: not an IPv4 address", ip)
	}
	s.publicIPv4 = addr.As4()
	return nil
}

// State reports the server's current lifecycle state.
func (s *Server) State() State { return s.state }

// Listen binds the control and data listeners. The data port is bound here,
// once, and held for the server's whole life.
func (s *Server) Listen() error {
	ctrl, err := netio.ListenTCP(s.Addr)
	if err != nil {
		return fmt.Errorf("control listen: %w", err)
	}
	data, err := netio.ListenTCP(s.DataAddr)
	if err != nil {
		ctrl.Close()
		return fmt.Errorf("data listen: %w", err)
	}
	s.ctrlListener = ctrl
	s.dataListener = data
	s.Logger().Info("ftp server listening",
		"control", ctrl.Addr().String(), "data", data.Addr().String())
	return nil
}

// ControlAddr returns the bound control address, nil before Listen.
func (s *Server) ControlAddr() net.Addr {
	if s.ctrlListener == nil {
		return nil
	}
	return s.ctrlListener.Addr()
}

// Run drives the tick loop until the context is canceled. It owns the
// listeners from here on and closes them on the way out.
func (s *Server) Run(ctx context.Context) error {
	if s.engine == nil {
		s.engine = newTransferEngine(s.ConnectTimeout, s.metrics)
	}
	ticker := time.NewTicker(s.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.closeSession()
			s.ctrlListener.Close()
			s.dataListener.Close()
			s.Logger().Info("ftp server stopped")
			return nil
		case <-ticker.C:
			s.tick(time.Now())
		}
	}
}

// ListenAndServe is Listen followed by Run.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Run(ctx)
}

// TryListenAndServe starts the server in the background and waits d for an
// early failure, mirroring how the SFTP front-end starts.
func (s *Server) TryListenAndServe(ctx context.Context, d time.Duration) error {
	if err := s.Listen(); err != nil {
		return err
	}
	errC := make(chan error, 1)
	go func() { errC <- s.Run(ctx) }()
	select {
	case err := <-errC:
		return err
	case <-time.After(d):
		return nil
	}
}

// SetMetrics attaches transfer counters. Nil is fine; all recording is a
// no-op then.
func (s *Server) SetMetrics(m *metrics.ServerMetrics) {
	s.metrics = m
}

// tick is one scheduler pass: accept-check, one unit of session work, then
// the deadline check.
func (s *Server) tick(now time.Time) {
	conn, err := s.ctrlListener.TryAccept()
	if err != nil {
		if !errors.Is(err, net.ErrClosed) {
			s.Logger().Error("control accept", "error", err)
		}
	} else if conn != nil {
		s.startSession(conn, now)
	}

	sess := s.sess
	if sess == nil {
		if s.state == StateIdle {
			s.state = StateAwaitingConnection
		}
		return
	}

	// Control bytes are always drained, transfer or not: that is what
	// notices a vanished client and buffers an ABOR. Dispatch of anything
	// but ABOR is suppressed while a job runs.
	sess.pollControl()
	if sess.job != nil {
		sess.stepTransfer(now)
	} else if line, ok := sess.nextLine(); ok {
		s.dispatch(sess, line, now)
	}

	sess = s.sess
	if sess == nil {
		return
	}
	if sess.quit || sess.ctrlEOF {
		s.closeSession()
		return
	}
	if now.After(sess.deadline) {
		sess.reply(StatusNotLoggedIn, "Timeout")
		s.closeSession()
	}
}

// dispatch routes one parsed line according to the lifecycle state. A
// failed identity or password exchange ends the session; the client must
// reconnect to retry.
func (s *Server) dispatch(sess *Session, line Line, now time.Time) {
	switch s.state {
	case StateAwaitingIdentity:
		if sess.handleIdentity(line) {
			s.state = StateAwaitingPassword
		} else {
			s.closeSession()
		}
	case StateAwaitingPassword:
		if sess.handlePassword(line) {
			s.state = StateReady
			sess.deadline = now.Add(s.IdleTimeout)
			s.Logger().Info("client authenticated",
				"user", sess.userInfo.Username, "remote", sess.conn.RemoteAddr())
		} else {
			s.closeSession()
		}
	case StateReady:
		sess.processReady(line, now)
	}
}

func (s *Server) startSession(conn netio.Conn, now time.Time) {
	if s.sess != nil {
		s.Logger().Info("new control connection displaces current client",
			"remote", conn.RemoteAddr())
		s.closeSession()
	}
	sess := newSession(s, conn)
	s.sess = sess
	s.state = StateAwaitingIdentity
	s.metrics.SessionStarted()
	s.Logger().Info("client connected", "remote", conn.RemoteAddr())
	sess.greet()
	sess.deadline = now.Add(s.IdentTimeout)
}

// closeSession tears the current session down completely: transfer, data
// channel, control connection. The server returns to Idle and re-arms for
// the next client on the following tick.
func (s *Server) closeSession() {
	if s.sess == nil {
		return
	}
	s.sess.shutdown()
	s.sess = nil
	s.state = StateIdle
}
