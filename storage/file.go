package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileStorage writes one file per key under dir on an afero filesystem.
// Files are created 0600 since the token is a credential.
type FileStorage struct {
	fs  afero.Fs
	dir string
}

// NewFileStorage creates dir if needed and returns a FileStorage on it.
func NewFileStorage(fsys afero.Fs, dir string) (*FileStorage, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if dir == "" {
		return nil, errors.New("storage: file storage requires a directory")
	}
	if err := fsys.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &FileStorage{fs: fsys, dir: dir}, nil
}

func (s *FileStorage) path(key string) string {
	return filepath.Join(s.dir, key)
}

func (s *FileStorage) Get(_ context.Context, key string) (string, error) {
	if !validKey(key) {
		return "", ErrInvalidKey
	}
	data, err := afero.ReadFile(s.fs, s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return string(data), nil
}

func (s *FileStorage) Set(_ context.Context, key, value string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	if err := afero.WriteFile(s.fs, s.path(key), []byte(value), 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *FileStorage) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		if !validKey(key) {
			continue
		}
		err := s.fs.Remove(s.path(key))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}
