package blob

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/zachmann/go-utils/fileutils"
)

// FileStore stores objects as files below a root directory
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore rooted at dir; dir is created if needed
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("blob directory must be specified")
	}
	if !fileutils.FileExists(dir) {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, errors.Wrap(err, "could not create blob directory")
		}
	}
	return &FileStore{root: dir}, nil
}

func (s *FileStore) file(p string) (string, error) {
	c, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(c)), nil
}

// Upload implements the Store interface
func (s *FileStore) Upload(ctx context.Context, p string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := s.file(p)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(name), 0o750); err != nil {
		return errors.WithStack(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(name), ".upload-*")
	if err != nil {
		return errors.WithStack(err)
	}
	defer os.Remove(tmp.Name())
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.WithStack(err)
	}
	if err = tmp.Close(); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.Rename(tmp.Name(), name))
}

// Download implements the Store interface
func (s *FileStore) Download(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := s.file(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, errors.WithStack(err)
}

// Delete implements the Store interface
func (s *FileStore) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := s.file(p)
	if err != nil {
		return err
	}
	if err = os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.WithStack(err)
	}
	return nil
}

// List implements the Lister interface
func (s *FileStore) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object
	err := filepath.WalkDir(
		s.root, func(name string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err = ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
				return nil
			}
			rel, err := filepath.Rel(s.root, name)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if !strings.HasPrefix(rel, prefix) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			objects = append(
				objects, Object{
					Path:    rel,
					Size:    info.Size(),
					ModTime: info.ModTime(),
				},
			)
			return nil
		},
	)
	return objects, errors.WithStack(err)
}
