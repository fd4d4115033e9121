package ftp

import (
	"errors"
	"strings"
)

// MaxPathLen is the longest resolved path the server accepts.
const MaxPathLen = 255

// ErrPathTooLong means the resolved path exceeded MaxPathLen. The caller
// reports it and aborts the command without touching session state.
var ErrPathTooLong = errors.New("ftp: resolved path too long")

// Resolve turns a client-supplied path argument into an absolute virtual
// path. Resolution is purely textual: no store lookups, no ".." collapsing.
// Some commands (MKD) work on paths that do not exist yet, and the store is
// the only authority on what does.
func Resolve(param, cwd string) (string, error) {
	if param == "" || param == "/" {
		return "/", nil
	}

	var full string
	if strings.HasPrefix(param, "/") {
		full = param
	} else {
		full = cwd
		if !strings.HasSuffix(full, "/") {
			full += "/"
		}
		full += param
	}

	if len(full) > 1 && strings.HasSuffix(full, "/") {
		full = full[:len(full)-1]
	}

	if len(full) > MaxPathLen {
		return "", ErrPathTooLong
	}
	return full, nil
}

// Parent returns the textual parent of a working directory, for CDUP. The
// root is its own parent.
func Parent(cwd string) string {
	if len(cwd) <= 1 {
		return "/"
	}
	trimmed := strings.TrimSuffix(cwd, "/")
	i := strings.LastIndexByte(trimmed, '/')
	if i <= 0 {
		return "/"
	}
	return trimmed[:i]
}
