package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type Local struct {
	BaseDir string
}

func NewLocal(baseDir string) *Local {
	return &Local{BaseDir: baseDir}
}

// path keeps keys inside BaseDir.
func (l *Local) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(l.BaseDir, filepath.FromSlash(clean)), nil
}

func (l *Local) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_ = ctx

	dst, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

func (l *Local) Get(ctx context.Context, key string) ([]byte, error) {
	_ = ctx

	src, err := l.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(src)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return data, err
}

func (l *Local) Delete(ctx context.Context, key string) error {
	_ = ctx

	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (l *Local) String() string { return fmt.Sprintf("local(%s)", l.BaseDir) }
