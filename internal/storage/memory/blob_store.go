// Package memory stores objects in-memory for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/JakeFAU/sbnation-corpus/internal/storage"
)

// BlobStore stores objects in-memory and returns pseudo URIs.
type BlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	puts map[string]int
}

// NewBlobStore creates a new in-memory store.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		data: make(map[string][]byte),
		puts: make(map[string]int),
	}
}

// PutObject persists the content and returns a URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = append([]byte(nil), byteData...)
	s.puts[path]++
	return fmt.Sprintf("memory://%s", path), nil
}

// GetObject returns a copy of the stored object.
func (s *BlobStore) GetObject(_ context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[path]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, storage.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Puts reports how many times path has been written.
func (s *BlobStore) Puts(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts[path]
}
