package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps blobs in a directory tree on the local filesystem
type LocalStore struct {
	root   string
	logger *slog.Logger
}

// NewLocalStore creates a store rooted at dir, creating it if needed
func NewLocalStore(dir string, logger *slog.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve blob directory: %w", err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &LocalStore{root: root, logger: logger}, nil
}

// Root returns the absolute directory holding the blobs
func (s *LocalStore) Root() string {
	return s.root
}

// Put copies src into the store
func (s *LocalStore) Put(ctx context.Context, key, src string) (string, error) {
	dstPath, err := s.resolve(key)
	if err != nil {
		return "", err
	}

	s.logger.DebugContext(ctx, "Storing blob",
		slog.String("key", key),
		slog.String("src", src),
		slog.String("dst_path", dstPath))

	if err := copyFile(src, dstPath); err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(dstPath)}).String(), nil
}

// Get copies the blob under key to dst
func (s *LocalStore) Get(ctx context.Context, key, dst string) error {
	srcPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "Fetching blob",
		slog.String("key", key),
		slog.String("src_path", srcPath),
		slog.String("dst", dst))

	if _, err := os.Stat(srcPath); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return copyFile(srcPath, dst)
}

// Delete removes the blob under key
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "Deleting blob", slog.String("key", key))

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	return nil
}

// Close is a no-op for the local store
func (s *LocalStore) Close() error {
	return nil
}

// resolve maps a key to a path under root, rejecting keys that escape it
func (s *LocalStore) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(key, "/")))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

// copyFile copies src to dst through a temporary file in dst's directory
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer srcFile.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, srcFile); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy file content: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync destination file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close destination file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}
