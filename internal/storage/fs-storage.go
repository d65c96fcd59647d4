package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BerylCAtieno/youtube-medallion/internal/partition"
)

type fsStorage struct {
	root string
}

// NewFSStorage stores containers as directories under root. Writes go to a
// temp file first and are renamed into place.
func NewFSStorage(root string) (Storage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &fsStorage{root: abs}, nil
}

func (s *fsStorage) file(loc partition.Location) string {
	return filepath.Join(s.root, loc.Container, filepath.FromSlash(loc.Path))
}

func (s *fsStorage) Upload(ctx context.Context, loc partition.Location, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dst := s.file(loc)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", loc, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to stage %s: %w", loc, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", loc, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", loc, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to commit %s: %w", loc, err)
	}

	return nil
}

func (s *fsStorage) Download(ctx context.Context, loc partition.Location) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.file(loc))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", loc, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", loc, err)
	}
	return data, nil
}

func (s *fsStorage) Delete(ctx context.Context, loc partition.Location) error {
	err := os.Remove(s.file(loc))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", loc, err)
	}
	return nil
}

func (s *fsStorage) List(ctx context.Context, container, prefix string) ([]string, error) {
	base := filepath.Join(s.root, container)
	var keys []string

	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s/%s: %w", container, prefix, err)
	}

	sort.Strings(keys)
	return keys, nil
}
