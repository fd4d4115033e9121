package ftp

import (
	"fmt"
	"io"
	"time"

	"github.com/soloftp/soloftp/netio"
	"github.com/soloftp/soloftp/tools"
	"github.com/soloftp/soloftp/users"
)

// Session is the state of one client interaction, from control-connect to
// disconnect. The server keeps at most one: a new control connection
// forcibly displaces the previous client.
type Session struct {
	srv    *Server
	conn   netio.Conn
	w      io.Writer // wraps conn, logs every reply at Debug
	parser *CommandParser

	handlers handlerMap

	lines []Line // parsed lines awaiting dispatch

	userInfo   *users.User // pending USER, before PASS
	cwd        string      // current working directory, always rooted
	renameFrom string      // pending RNFR source, consumed by RNTO

	data *DataChannel
	job  *TransferJob

	deadline time.Time // identity or inactivity deadline
	quit     bool      // QUIT handled; close after the goodbye reply
	ctrlEOF  bool      // control socket reported disconnect
}

func newSession(srv *Server, conn netio.Conn) *Session {
	s := &Session{
		srv:    srv,
		conn:   conn,
		w:      tools.NewLogWriter(conn, srv.Logger()),
		parser: NewCommandParser(),
		cwd:    "/",
		data:   newDataChannel(srv.dataListener, srv.dial, srv.ConnectTimeout),
	}
	s.handlers = s.commandTable()
	return s
}

// reply writes a single terminal reply line.
func (s *Session) reply(code StatusCode, text string) {
	fmt.Fprintf(s.w, "%d %s\r\n", code, text)
}

func (s *Session) replyf(code StatusCode, format string, a ...any) {
	s.reply(code, fmt.Sprintf(format, a...))
}

// replyCont writes a continuation line of a multi-line reply.
func (s *Session) replyCont(code StatusCode, text string) {
	fmt.Fprintf(s.w, "%d-%s\r\n", code, text)
}

func (s *Session) replyContf(code StatusCode, format string, a ...any) {
	s.replyCont(code, fmt.Sprintf(format, a...))
}

func (s *Session) greet() {
	fmt.Fprintf(s.w, "220--- Welcome to %s ---\r\n", s.srv.WelcomeMessage)
	fmt.Fprintf(s.w, "220 -- Version %s --\r\n", serverVersion)
}

// pollControl drains whatever the control socket has buffered into the
// parser. Parse failures are answered immediately; completed lines queue
// for the dispatcher. A read error of any kind marks the client gone.
func (s *Session) pollControl() {
	var chunk [256]byte
	n, err := s.conn.ReadAvailable(chunk[:])
	for i := 0; i < n; i++ {
		line, done, perr := s.parser.Feed(chunk[i])
		if perr != nil {
			s.reply(StatusSyntaxError, "Syntax error")
			continue
		}
		if done {
			s.lines = append(s.lines, line)
		}
	}
	if err != nil {
		s.ctrlEOF = true
	}
}

// nextLine pops the oldest queued non-blank line. Blank lines are no-ops.
func (s *Session) nextLine() (Line, bool) {
	for len(s.lines) > 0 {
		l := s.lines[0]
		s.lines = s.lines[1:]
		if l.Verb != "" {
			return l, true
		}
	}
	return Line{}, false
}

// abortRequested scans the queued lines for an ABOR, consuming it. This is
// the only command honored while a transfer job is active.
func (s *Session) abortRequested() bool {
	for i, l := range s.lines {
		if l.Verb == ABOR {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			return true
		}
	}
	return false
}

// handleIdentity runs the AwaitingIdentity state: only a USER command with
// the configured name advances; everything else ends the session, and the
// client must reconnect to retry.
func (s *Session) handleIdentity(line Line) bool {
	if line.Verb != USER {
		s.reply(StatusSyntaxError, "Syntax error")
		return false
	}
	user, err := s.srv.users.Get(line.Params)
	if err != nil {
		s.reply(StatusNotLoggedIn, "user not found")
		return false
	}
	s.userInfo = user
	s.cwd = "/"
	s.reply(StatusUserOK, "OK. Password required")
	return true
}

// handlePassword runs the AwaitingPassword state.
func (s *Session) handlePassword(line Line) bool {
	if line.Verb != PASS {
		s.reply(StatusSyntaxError, "Syntax error")
		return false
	}
	if s.userInfo == nil || s.userInfo.Password != line.Params {
		s.reply(StatusNotLoggedIn, "Login incorrect")
		return false
	}
	s.reply(StatusUserLoggedIn, "OK.")
	return true
}

// processReady dispatches one command in the Ready state. Known verbs
// rearm the inactivity deadline; unknown verbs do not.
func (s *Session) processReady(line Line, now time.Time) {
	handler, ok := s.handlers[line.Verb]
	if !ok {
		s.reply(StatusSyntaxError, "Unknown command")
		return
	}
	s.deadline = now.Add(s.srv.IdleTimeout)
	s.srv.metrics.Command(line.Verb)
	if err := handler(line.Verb, line.Params); err != nil {
		s.srv.Logger().Error("command failed", "verb", line.Verb, "error", err)
	}
}

// stepTransfer advances the active job by one engine tick and emits the
// completion or abort reply when the job ends.
func (s *Session) stepTransfer(now time.Time) {
	if s.abortRequested() {
		s.AbortCommand(ABOR, "")
		return
	}
	if now.After(s.job.deadline) {
		s.srv.Logger().Warn("transfer stalled", "file", s.job.name, "bytes", s.job.bytes)
		s.abortTransfer()
		return
	}
	var res StepResult
	switch s.job.kind {
	case transferDownload:
		res = s.srv.engine.StepRetrieve(s.job, s.data)
	case transferUpload:
		res = s.srv.engine.StepStore(s.job, s.data)
	}
	switch res {
	case StepDone:
		s.closeTransfer()
	case StepFailed:
		s.abortTransfer()
	}
}

// closeTransfer ends a job that reached its natural end condition: file and
// data connection are released and the completion reply goes out, with a
// throughput figure when there is anything to compute it from.
func (s *Session) closeTransfer() {
	job := s.job
	s.job = nil
	job.closeFile()
	s.data.Close()

	elapsed := time.Since(job.started).Milliseconds()
	if elapsed > 0 && job.bytes > 0 {
		s.replyCont(StatusClosingDataConnection, "File successfully transferred")
		s.replyf(StatusClosingDataConnection, "%d ms, %d kbytes/s", elapsed, job.bytes/elapsed)
	} else {
		s.reply(StatusClosingDataConnection, "File successfully transferred")
	}
}

// abortTransfer is the shared teardown for ABOR, stalls, failures, and
// session shutdown: close the file, close the data channel, and report the
// interruption. Any end other than the natural one is an abort, never a
// completion.
func (s *Session) abortTransfer() {
	if s.job != nil {
		s.job.closeFile()
		s.job = nil
		s.reply(StatusConnectionClosedTransferAborted, "Transfer aborted")
		s.srv.metrics.TransferAborted()
	}
	s.data.Close()
}

// shutdown releases everything the session owns. Safe to call on an
// already-broken connection; replies to a gone client just vanish.
func (s *Session) shutdown() {
	s.abortTransfer()
	s.data.Close()
	s.conn.Close()
}
