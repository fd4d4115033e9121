// Package tools carries small I/O helpers shared by the protocol
// front-ends.
package tools

import (
	"io"
	"log/slog"
)

// LogReader logs everything read through it at Debug level.
type LogReader struct {
	Reader io.Reader
	logger *slog.Logger
}

func NewLogReader(r io.Reader, logger *slog.Logger) *LogReader {
	return &LogReader{Reader: r, logger: logger}
}

func (rw *LogReader) Read(b []byte) (int, error) {
	n, err := rw.Reader.Read(b)
	if rw.logger != nil && n > 0 { // log only what was actually read
		rw.logger.Debug("Request", "body", string(b[:n]))
	}
	return n, err
}

// LogWriter logs everything written through it at Debug level. The FTP
// session wraps the control connection with one so every reply line shows
// up in the debug log.
type LogWriter struct {
	Writer io.Writer
	logger *slog.Logger
}

func NewLogWriter(w io.Writer, logger *slog.Logger) *LogWriter {
	return &LogWriter{Writer: w, logger: logger}
}

func (rw *LogWriter) Write(b []byte) (int, error) {
	if rw.logger != nil {
		rw.logger.Debug("Respond", "body", string(b))
	}
	return rw.Writer.Write(b)
}
