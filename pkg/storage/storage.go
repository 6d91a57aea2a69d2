// Package storage provides blob storage with a local filesystem provider
// and an Azure Blob Storage provider.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/JaimeStill/vetrecords/pkg/lifecycle"
)

// System stores document originals by key. Keys are slash-separated
// relative paths such as documents/{id}/original/{name}.
type System interface {
	// Start prepares the container or root directory.
	Start(lc *lifecycle.Coordinator) error

	Upload(ctx context.Context, key string, r io.Reader, contentType string) error

	// Download streams the blob at key; the caller closes it. A missing blob
	// yields ErrNotFound.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob at key. A missing blob yields ErrNotFound.
	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)
}

// New creates the storage system selected by cfg.Provider. No connection
// is made until Start is called.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	logger = logger.With("system", "storage", "provider", cfg.Provider)

	switch cfg.Provider {
	case ProviderLocal:
		return newLocal(cfg.Root, logger), nil
	case ProviderAzure:
		return newAzure(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// validateKey rejects empty, absolute and backslash keys and any key with a
// parent segment.
func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if key[0] == '/' || strings.ContainsRune(key, '\\') {
		return ErrInvalidKey
	}
	for seg := range strings.SplitSeq(key, "/") {
		if seg == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}
