package sftp

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"

	"github.com/soloftp/soloftp/filesystem"
)

// Sessions serves the four pkg/sftp request interfaces over the file store.
// Request paths arrive already rooted at "/", which is exactly the store's
// virtual path model.
type Sessions struct {
	fs     filesystem.FileStore
	logger *slog.Logger
}

func NewFileSys(store filesystem.FileStore, logger *slog.Logger) sftp.Handlers {
	v := &Sessions{fs: store, logger: logger}
	return sftp.Handlers{
		FileGet:  v,
		FilePut:  v,
		FileCmd:  v,
		FileList: v,
	}
}

func (s *Sessions) Fileread(request *sftp.Request) (io.ReaderAt, error) {
	s.logger.Debug("Fileread",
		"request.Method", request.Method,
		"request.Filepath", request.Filepath,
	)
	file, err := s.fs.OpenFileAt(request.Filepath, os.O_RDONLY)
	if err != nil {
		s.logger.Error("error opening file", "error", err)
		return nil, err
	}
	return file, nil
}

func (s *Sessions) Filewrite(request *sftp.Request) (io.WriterAt, error) {
	s.logger.Debug("Filewrite",
		"request.Method", request.Method,
		"request.Filepath", request.Filepath,
	)
	file, err := s.fs.OpenFileAt(request.Filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		s.logger.Error("error opening file", "error", err)
		return nil, err
	}
	return file, nil
}

func (s *Sessions) Filecmd(request *sftp.Request) error {
	s.logger.Debug("Filecmd",
		"request.Method", request.Method,
		"request.Filepath", request.Filepath,
		"request.Target", request.Target,
	)
	switch request.Method {
	case "Rename":
		// SFTP-v2: it is an error if the target already exists.
		if s.fs.Exists(request.Target) {
			return fs.ErrExist
		}
		return s.fs.Rename(request.Filepath, request.Target)

	case "Rmdir":
		return s.fs.RemoveDir(request.Filepath)

	case "Remove":
		// Unlink semantics: directories are refused, matching the store.
		return s.fs.Remove(request.Filepath)

	case "Mkdir":
		return s.fs.MakeDir(request.Filepath)
	}

	return errors.New("unsupported")
}

// entryInfo adapts a store Entry to os.FileInfo for the listing replies.
// The store carries no timestamps or modes, so those come out synthetic.
type entryInfo struct {
	entry filesystem.Entry
}

func (e entryInfo) Name() string { return e.entry.Name }
func (e entryInfo) Size() int64  { return e.entry.Size }
func (e entryInfo) Mode() os.FileMode {
	if e.entry.IsDir {
		return os.ModeDir | 0o755
	}
	return 0o644
}
func (e entryInfo) ModTime() time.Time { return time.Time{} }
func (e entryInfo) IsDir() bool        { return e.entry.IsDir }
func (e entryInfo) Sys() any           { return nil }

type ListerAt []os.FileInfo

// ListAt modeled after strings.Reader's ReadAt implementation.
func (f ListerAt) ListAt(ls []os.FileInfo, offset int64) (int, error) {
	if offset >= int64(len(f)) {
		return 0, io.EOF
	}
	n := copy(ls, f[offset:])
	if n < len(ls) {
		return n, io.EOF
	}
	return n, nil
}

func (s *Sessions) Filelist(request *sftp.Request) (sftp.ListerAt, error) {
	s.logger.Debug("Filelist",
		"request.Method", request.Method,
		"request.Filepath", request.Filepath,
	)

	switch request.Method {
	case "List":
		members, err := s.fs.List(request.Filepath)
		if err != nil {
			s.logger.Error("list error", "error", err)
			return nil, err
		}
		entries := make([]os.FileInfo, 0, len(members))
		for _, m := range members {
			entries = append(entries, entryInfo{entry: m})
		}
		return ListerAt(entries), nil

	case "Stat", "Lstat":
		entry, err := s.fs.Stat(request.Filepath)
		if err != nil {
			s.logger.Error("stat error", "error", err)
			return nil, err
		}
		if entry.Name == "/" {
			entry.Name = path.Base(request.Filepath)
		}
		return ListerAt{entryInfo{entry: entry}}, nil
	}

	return nil, errors.New("unsupported")
}
