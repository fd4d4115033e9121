package ftp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedLine(t *testing.T, p *CommandParser, s string) Line {
	t.Helper()
	for i := 0; i < len(s); i++ {
		line, done, err := p.Feed(s[i])
		require.NoError(t, err)
		if done {
			require.Equal(t, len(s)-1, i, "line finished before its last byte")
			return line
		}
	}
	t.Fatalf("line never finished: %q", s)
	return Line{}
}

func TestParserSplitsVerbAndParams(t *testing.T) {
	p := NewCommandParser()

	line := feedLine(t, p, "RETR hello.txt\r\n")
	assert.Equal(t, "RETR", line.Verb)
	assert.Equal(t, "hello.txt", line.Params)
}

func TestParserUppercasesVerb(t *testing.T) {
	p := NewCommandParser()

	line := feedLine(t, p, "retr Hello.TXT\r\n")
	assert.Equal(t, "RETR", line.Verb)
	assert.Equal(t, "Hello.TXT", line.Params, "params keep their case")
}

func TestParserTrimsLeadingParamSpaces(t *testing.T) {
	p := NewCommandParser()

	line := feedLine(t, p, "CWD    docs\r\n")
	assert.Equal(t, "CWD", line.Verb)
	assert.Equal(t, "docs", line.Params)
}

func TestParserRemapsBackslashes(t *testing.T) {
	p := NewCommandParser()

	line := feedLine(t, p, "CWD docs\\sub\r\n")
	assert.Equal(t, "docs/sub", line.Params)
}

func TestParserAcceptsBareLF(t *testing.T) {
	p := NewCommandParser()

	line := feedLine(t, p, "NOOP\n")
	assert.Equal(t, "NOOP", line.Verb)
	assert.Equal(t, "", line.Params)
}

func TestParserBlankLine(t *testing.T) {
	p := NewCommandParser()

	line, done, err := p.Feed('\r')
	require.NoError(t, err)
	assert.False(t, done)

	line, done, err = p.Feed('\n')
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, Line{}, line)
}

func TestParserVerbTooLong(t *testing.T) {
	p := NewCommandParser()

	for i := 0; i < len("FEATURE"); i++ {
		_, done, err := p.Feed("FEATURE"[i])
		require.NoError(t, err)
		require.False(t, done)
	}
	_, done, err := p.Feed('\n')
	assert.ErrorIs(t, err, ErrVerbTooLong)
	assert.False(t, done)

	// The buffer must be clean for the next line.
	line := feedLine(t, p, "NOOP\r\n")
	assert.Equal(t, "NOOP", line.Verb)
}

func TestParserLineTooLong(t *testing.T) {
	p := NewCommandParser()

	long := "STOR " + strings.Repeat("x", maxLineLen)
	var overflowed bool
	for i := 0; i < len(long); i++ {
		_, _, err := p.Feed(long[i])
		if err != nil {
			assert.ErrorIs(t, err, ErrLineTooLong)
			overflowed = true
			break
		}
	}
	require.True(t, overflowed, "parser accepted an oversized line")

	// Overflow resets the buffer; the next line parses normally.
	line := feedLine(t, p, "PWD\r\n")
	assert.Equal(t, "PWD", line.Verb)
}
