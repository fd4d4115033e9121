// Package filesystem defines the file-store capability the protocol
// front-ends consume, plus a local-disk implementation. Paths handed to a
// Store are virtual: rooted at "/", forward-slash separated, already
// resolved against the session's working directory by the caller.
package filesystem

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Entry describes one directory member.
type Entry struct {
	Name  string
	Size  int64
	IsDir bool
}

// Store is the byte-oriented file store the FTP session drives. It carries
// no notion of working directory, permissions, or timestamps; the protocol
// layer owns all of that.
type Store interface {
	// Exists reports whether name denotes a file or directory.
	Exists(name string) bool
	// Stat returns the entry for name.
	Stat(name string) (Entry, error)
	// OpenRead opens name for sequential reading.
	OpenRead(name string) (io.ReadCloser, error)
	// OpenWrite creates or truncates name for sequential writing.
	OpenWrite(name string) (io.WriteCloser, error)
	// Remove deletes a file.
	Remove(name string) error
	// Rename moves oldName to newName.
	Rename(oldName, newName string) error
	// MakeDir creates a directory.
	MakeDir(name string) error
	// RemoveDir deletes an empty directory.
	RemoveDir(name string) error
	// List returns the entries of a directory.
	List(dir string) ([]Entry, error)
}

// FileStore extends Store with random-access file handles. The SFTP
// gateway needs ReaderAt/WriterAt semantics the plain Store does not carry.
type FileStore interface {
	Store
	// OpenFileAt opens name with the given os.OpenFile flags.
	OpenFileAt(name string, flag int) (*os.File, error)
}

var _ FileStore = (*LocalFS)(nil)

// LocalFS maps the virtual root onto a directory of the host filesystem.
type LocalFS struct {
	root string
}

// NewLocalFS serves the host directory root as the store's "/".
func NewLocalFS(root string) *LocalFS {
	return &LocalFS{root: filepath.Clean(root)}
}

// Root returns the host directory backing "/".
func (fs *LocalFS) Root() string { return fs.root }

// hostPath converts a virtual path to a host path, refusing anything that
// would climb out of the root.
func (fs *LocalFS) hostPath(name string) (string, error) {
	if !strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("not an absolute path: %q", name)
	}
	clean := path.Clean(name)
	if clean == "/" {
		return fs.root, nil
	}
	rel := filepath.FromSlash(strings.TrimPrefix(clean, "/"))
	host := filepath.Join(fs.root, rel)
	if host != fs.root && !strings.HasPrefix(host, fs.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the store root: %q", name)
	}
	return host, nil
}

func (fs *LocalFS) Exists(name string) bool {
	host, err := fs.hostPath(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(host)
	return err == nil
}

func (fs *LocalFS) Stat(name string) (Entry, error) {
	host, err := fs.hostPath(name)
	if err != nil {
		return Entry{}, err
	}
	info, err := os.Stat(host)
	if err != nil {
		return Entry{}, fmt.Errorf("stat %s: %w", name, err)
	}
	return Entry{Name: path.Base(path.Clean(name)), Size: info.Size(), IsDir: info.IsDir()}, nil
}

func (fs *LocalFS) OpenRead(name string) (io.ReadCloser, error) {
	host, err := fs.hostPath(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(host)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

func (fs *LocalFS) OpenWrite(name string) (io.WriteCloser, error) {
	host, err := fs.hostPath(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(host)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	return f, nil
}

func (fs *LocalFS) Remove(name string) error {
	host, err := fs.hostPath(name)
	if err != nil {
		return err
	}
	info, err := os.Stat(host)
	if err != nil {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	if info.IsDir() {
		return fmt.Errorf("remove %s: is a directory", name)
	}
	if err := os.Remove(host); err != nil {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

func (fs *LocalFS) Rename(oldName, newName string) error {
	oldHost, err := fs.hostPath(oldName)
	if err != nil {
		return err
	}
	newHost, err := fs.hostPath(newName)
	if err != nil {
		return err
	}
	if err := os.Rename(oldHost, newHost); err != nil {
		return fmt.Errorf("rename %s to %s: %w", oldName, newName, err)
	}
	return nil
}

func (fs *LocalFS) MakeDir(name string) error {
	host, err := fs.hostPath(name)
	if err != nil {
		return err
	}
	if err := os.Mkdir(host, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", name, err)
	}
	return nil
}

func (fs *LocalFS) RemoveDir(name string) error {
	host, err := fs.hostPath(name)
	if err != nil {
		return err
	}
	info, err := os.Stat(host)
	if err != nil {
		return fmt.Errorf("rmdir %s: %w", name, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("rmdir %s: not a directory", name)
	}
	if err := os.Remove(host); err != nil {
		return fmt.Errorf("rmdir %s: %w", name, err)
	}
	return nil
}

func (fs *LocalFS) List(dir string) ([]Entry, error) {
	host, err := fs.hostPath(dir)
	if err != nil {
		return nil, err
	}
	members, err := os.ReadDir(host)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	entries := make([]Entry, 0, len(members))
	for _, m := range members {
		e := Entry{Name: m.Name(), IsDir: m.IsDir()}
		if !m.IsDir() {
			info, err := m.Info()
			if err != nil {
				return nil, fmt.Errorf("list %s: %w", dir, err)
			}
			e.Size = info.Size()
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (fs *LocalFS) OpenFileAt(name string, flag int) (*os.File, error) {
	host, err := fs.hostPath(name)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(host, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}
