package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

// File keeps one JSON file per key under a directory. Writes go to a temp file that is
// renamed into place, so readers never see a torn document.
type File struct {
	mu  sync.Mutex
	dir string
	log *zap.Logger
}

// NewFile creates the directory if needed. A leading ~ is expanded to the home directory.
func NewFile(dir string, logger *zap.Logger) (*File, error) {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand store dir %q: %w", dir, err)
	}
	if err := os.MkdirAll(expanded, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}
	return &File{dir: expanded, log: logger.Named("store.file")}, nil
}

// Dir returns the resolved directory.
func (f *File) Dir() string { return f.dir }

func (f *File) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(f.dir, key+".json"), nil
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return raw, nil
}

func (f *File) Set(_ context.Context, key string, value []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, "."+key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		// No-op once the rename succeeded.
		if rmErr := os.Remove(tmp.Name()); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			f.log.Warn("Failed to remove temp file", zap.String("path", tmp.Name()), zap.Error(rmErr))
		}
	}()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %q: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("failed to commit %q: %w", key, err)
	}
	return nil
}
