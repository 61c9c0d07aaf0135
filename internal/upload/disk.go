package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
)

// DiskStorage writes uploads into a directory served as static files.
type DiskStorage struct {
	dir       string
	urlPrefix string
}

// NewDiskStorage stores files in <publicDir>/uploads and serves them from /uploads.
func NewDiskStorage(publicDir string) (*DiskStorage, error) {
	dir := filepath.Join(publicDir, "uploads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &DiskStorage{dir: dir, urlPrefix: "/uploads"}, nil
}

func (s *DiskStorage) Put(_ context.Context, name string, body io.Reader, _ int64, _ string) (string, error) {
	if name != filepath.Base(name) {
		return "", fmt.Errorf("invalid upload name %q", name)
	}
	target := filepath.Join(s.dir, name)
	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(file, body); err != nil {
		_ = file.Close()
		_ = os.Remove(target)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return path.Join(s.urlPrefix, name), nil
}

func (s *DiskStorage) Delete(_ context.Context, name string) error {
	if name != filepath.Base(name) {
		return fmt.Errorf("invalid upload name %q", name)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove upload file: %w", err)
	}
	return nil
}
