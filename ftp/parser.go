package ftp

import (
	"errors"
	"strings"
)

const (
	// maxLineLen is the control-line buffer capacity: a 255-byte path
	// argument plus verb, separator and slack.
	maxLineLen = 255 + 8

	// maxVerbLen is the longest verb the protocol knows.
	maxVerbLen = 4
)

var (
	// ErrLineTooLong means the client overflowed the line buffer. The
	// buffer is reset; the offending line is lost.
	ErrLineTooLong = errors.New("ftp: command line too long")

	// ErrVerbTooLong means the segment before the first space exceeded
	// four bytes.
	ErrVerbTooLong = errors.New("ftp: command verb too long")
)

// Line is one parsed control line. An empty Verb marks a blank line, which
// the dispatcher treats as a no-op.
type Line struct {
	Verb   string
	Params string
}

// CommandParser assembles control lines one byte at a time. The control
// socket is polled, so bytes may arrive singly or in bursts; the parser
// keeps no timing state and never blocks.
type CommandParser struct {
	buf []byte
}

func NewCommandParser() *CommandParser {
	return &CommandParser{buf: make([]byte, 0, maxLineLen)}
}

// Feed consumes one byte. When the byte completes a line, Feed returns the
// parsed line and true. Backslashes are remapped to forward slashes on
// ingestion and carriage returns are discarded, so POSIX-style paths come
// out of Windows-minded clients too. On error the buffer is reset and the
// caller is expected to send a syntax-error reply.
func (p *CommandParser) Feed(c byte) (Line, bool, error) {
	if c == '\\' {
		c = '/'
	}
	switch c {
	case '\r':
		return Line{}, false, nil
	case '\n':
		line, err := p.finish()
		return line, err == nil, err
	default:
		if len(p.buf) >= maxLineLen {
			p.buf = p.buf[:0]
			return Line{}, false, ErrLineTooLong
		}
		p.buf = append(p.buf, c)
		return Line{}, false, nil
	}
}

func (p *CommandParser) finish() (Line, error) {
	raw := string(p.buf)
	p.buf = p.buf[:0]

	if raw == "" {
		return Line{}, nil
	}

	verb := raw
	params := ""
	if i := strings.IndexByte(raw, ' '); i >= 0 {
		verb = raw[:i]
		params = strings.TrimLeft(raw[i+1:], " ")
	}
	if len(verb) > maxVerbLen {
		return Line{}, ErrVerbTooLong
	}
	return Line{Verb: strings.ToUpper(verb), Params: params}, nil
}
