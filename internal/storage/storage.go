package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/BerylCAtieno/youtube-medallion/internal/config"
	"github.com/BerylCAtieno/youtube-medallion/internal/partition"
)

// ErrNotFound is returned when no document exists at an address.
var ErrNotFound = errors.New("document not found")

// Storage is the object store every stage reads from and writes to. Upload
// replaces the whole object; there are no partial or append writes.
type Storage interface {
	Upload(ctx context.Context, loc partition.Location, data []byte, contentType string) error
	Download(ctx context.Context, loc partition.Location) ([]byte, error)
	Delete(ctx context.Context, loc partition.Location) error
	List(ctx context.Context, container, prefix string) ([]string, error)
}

// New builds the backend selected by cfg.StorageBackend.
func New(cfg *config.Config) (Storage, error) {
	if err := cfg.RequireStorage(); err != nil {
		return nil, err
	}

	switch cfg.StorageBackend {
	case "s3":
		return NewS3Storage(cfg)
	case "fs":
		return NewFSStorage(cfg.StorageRoot)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
}
