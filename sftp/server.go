// Package sftp is an SFTP gateway over the same file store and user
// registry the FTP front-end serves. Unlike the FTP core it is an ordinary
// goroutine-per-connection server; the single-client discipline only
// applies to the FTP protocol loop.
package sftp

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/soloftp/soloftp/filesystem"
	"github.com/soloftp/soloftp/users"
)

type Server struct {
	Addr string
	// PrivateKey is the host key in PEM format. Left nil, ListenAndServe
	// generates a fresh RSA key.
	PrivateKey []byte

	fs    filesystem.FileStore
	users users.Users

	logger    *slog.Logger
	sshConfig *ssh.ServerConfig
	listener  net.Listener
}

func NewServer(addr string, fs filesystem.FileStore, users users.Users) *Server {
	return &Server{
		Addr:  addr,
		fs:    fs,
		users: users,
	}
}

// SetPrivateKey sets the host key from PEM bytes.
func (s *Server) SetPrivateKey(pk []byte) {
	s.PrivateKey = pk
}

// SetPrivateKeyFile loads the host key from a PEM file.
func (s *Server) SetPrivateKeyFile(name string) error {
	file, err := os.ReadFile(name)
	if err != nil {
		return fmt.Errorf("reading private key file: %w", err)
	}
	s.PrivateKey = file
	return nil
}

// SetLogger sets the logger for the server.
func (s *Server) SetLogger(l *slog.Logger) {
	s.logger = l
}

// Logger returns the configured logger, or slog.Default.
func (s *Server) Logger() *slog.Logger {
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s.logger.With("module", "sftp-server")
}

func (s *Server) ListenAndServe() error {
	if s.PrivateKey == nil {
		pk, _, err := GeneratesRSAKeys(2048)
		if err != nil {
			return fmt.Errorf("generating RSA host key: %w", err)
		}
		s.PrivateKey = pk
	}

	privateKey, err := ssh.ParsePrivateKey(s.PrivateKey)
	if err != nil {
		return fmt.Errorf("parsing private key: %w", err)
	}
	s.sshConfig = &ssh.ServerConfig{
		PasswordCallback: s.AuthHandler,
	}
	s.sshConfig.AddHostKey(privateKey)

	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.Logger().Info("sftp server listening", "addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.Logger().Error("failed to accept incoming connection", "error", err)
			continue
		}
		go s.sshHandler(conn)
	}
}

// TryListenAndServe starts the server in the background and waits d for an
// early failure.
func (s *Server) TryListenAndServe(d time.Duration) error {
	errC := make(chan error, 1)
	go func() {
		errC <- s.ListenAndServe()
	}()
	select {
	case err := <-errC:
		return err
	case <-time.After(d):
		return nil
	}
}

// Close stops the accept loop.
func (s *Server) Close() {
	if s.listener != nil {
		s.listener.Close()
	}
}

// AuthHandler verifies a password login against the user registry.
func (s *Server) AuthHandler(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
	user, err := s.users.Get(c.User())
	if err != nil || user.Password != string(pass) {
		return nil, fmt.Errorf("password rejected for %q", c.User())
	}
	return nil, nil
}

func (s *Server) sshHandler(conn net.Conn) {
	defer conn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, s.sshConfig)
	if err != nil {
		s.Logger().Error("ssh handshake failed", "error", err)
		return
	}
	defer sshConn.Close()

	s.Logger().Info("new ssh connection",
		"RemoteAddr", sshConn.RemoteAddr().String(),
		"ClientVersion", string(sshConn.ClientVersion()),
		"ssh-User", sshConn.User(),
	)
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		// SFTP runs over a single "session" channel.
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}

		channel, requests, err := newChannel.Accept()
		if err != nil {
			s.Logger().Error("could not accept channel", "error", err)
			return
		}
		go s.subsystemHandler(requests)

		server := sftp.NewRequestServer(channel, NewFileSys(s.fs, s.Logger()))
		if err := server.Serve(); err == io.EOF {
			server.Close()
			s.Logger().Info("sftp client exited session", "user", sshConn.User())
		} else if err != nil {
			s.Logger().Error("sftp server completed with error", "error", err)
		}
	}
}

// subsystemHandler acknowledges the "sftp" subsystem request and refuses
// everything else.
func (s *Server) subsystemHandler(in <-chan *ssh.Request) {
	for req := range in {
		ok := false
		if req.Type == "subsystem" && len(req.Payload) > 4 && string(req.Payload[4:]) == "sftp" {
			ok = true
		}
		if err := req.Reply(ok, nil); err != nil {
			s.Logger().Error("failed to reply to channel request", "error", err)
			return
		}
	}
}
