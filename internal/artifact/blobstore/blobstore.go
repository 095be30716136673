// Package blobstore holds artifact file contents. Keys are slash-separated
// paths; each backend maps them onto its own namespace.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"basiccleaning/internal/config"
)

// ErrNotFound is returned by Get when no blob exists under the key
var ErrNotFound = errors.New("blob not found")

// BlobStore stores and retrieves artifact files
type BlobStore interface {
	// Put uploads the local file src under key and returns its URI
	Put(ctx context.Context, key, src string) (string, error)
	// Get downloads the blob under key into the local file dst
	Get(ctx context.Context, key, dst string) error
	// Delete removes the blob under key; a missing blob is not an error
	Delete(ctx context.Context, key string) error
	Close() error
}

// New builds the backend selected by cfg
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (BlobStore, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.LocalDir, logger)
	case "gcs":
		return NewGCSStore(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
