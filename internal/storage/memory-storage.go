package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/BerylCAtieno/youtube-medallion/internal/partition"
)

// MemoryStorage keeps documents in process memory. It backs tests and dry runs.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[partition.Location][]byte
	writes  int
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[partition.Location][]byte)}
}

func (m *MemoryStorage) Upload(ctx context.Context, loc partition.Location, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[loc] = append([]byte(nil), data...)
	m.writes++
	return nil
}

func (m *MemoryStorage) Download(ctx context.Context, loc partition.Location) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[loc]
	if !ok {
		return nil, fmt.Errorf("%s: %w", loc, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStorage) Delete(ctx context.Context, loc partition.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, loc)
	return nil
}

func (m *MemoryStorage) List(ctx context.Context, container, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for loc := range m.objects {
		if loc.Container == container && strings.HasPrefix(loc.Path, prefix) {
			keys = append(keys, loc.Path)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Writes counts Upload calls.
func (m *MemoryStorage) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}
