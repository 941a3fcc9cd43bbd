package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/foxfit/backend/internal/apperr"
)

// Object is an opened recording. Callers must Close it.
type Object struct {
	io.ReadSeekCloser
	Name    string
	Size    int64
	ModTime time.Time
}

// Store opens recordings by their relative key.
type Store interface {
	Open(ctx context.Context, key string) (*Object, error)
}

// LocalStore reads recordings from a private directory. Keys are confined
// to the root; the directory is never exposed through a static route.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve media root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) resolve(key string) (string, error) {
	if key == "" || strings.ContainsRune(key, 0) || strings.Contains(key, `\`) {
		return "", fmt.Errorf("media key: %w", apperr.ErrNotFound)
	}
	clean := path.Clean("/" + key)
	full := filepath.Join(s.root, filepath.FromSlash(clean))
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("media key: %w", apperr.ErrNotFound)
	}
	return full, nil
}

// Open returns apperr.ErrNotFound for missing objects and wraps other I/O
// failures in apperr.ErrTransient.
func (s *LocalStore) Open(ctx context.Context, key string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		return nil, classifyFSError("open", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, classifyFSError("stat", err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("media object is not a file: %w", apperr.ErrNotFound)
	}
	return &Object{ReadSeekCloser: objectFile{f}, Name: info.Name(), Size: info.Size(), ModTime: info.ModTime()}, nil
}

// objectFile drops the on-disk path from read and seek errors. Media keys
// of live broadcasts embed the channel's stream key.
type objectFile struct {
	f *os.File
}

func (o objectFile) Read(p []byte) (int, error) {
	n, err := o.f.Read(p)
	return n, stripPath(err)
}

func (o objectFile) Seek(offset int64, whence int) (int64, error) {
	n, err := o.f.Seek(offset, whence)
	return n, stripPath(err)
}

func (o objectFile) Close() error {
	return stripPath(o.f.Close())
}

func stripPath(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return fmt.Errorf("%s: %w", pe.Op, pe.Err)
	}
	return err
}

func classifyFSError(op string, err error) error {
	err = stripPath(err)
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return fmt.Errorf("%s media object: %w", op, apperr.ErrNotFound)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%s media object: %w", op, err)
	default:
		return fmt.Errorf("%s media object: %w: %w", op, apperr.ErrTransient, err)
	}
}
