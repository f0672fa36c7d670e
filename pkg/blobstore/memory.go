package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cuemby/pkgforge/pkg/registryerrors"
)

// MemoryBlobStore is an in-process BlobStore for tests that don't need
// a real S3-compatible endpoint.
type MemoryBlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemory returns an empty MemoryBlobStore.
func NewMemory() *MemoryBlobStore {
	return &MemoryBlobStore{objects: make(map[string][]byte)}
}

func (m *MemoryBlobStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return registryerrors.Internal.Wrap(err)
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryBlobStore) PresignGet(_ context.Context, key string, _ bool, expiry time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", registryerrors.NotFound.New("no such blob: %s", key)
	}
	return fmt.Sprintf("memory://%s?expires=%s", key, expiry), nil
}

func (m *MemoryBlobStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// Get returns the raw bytes stored under key, for test assertions.
func (m *MemoryBlobStore) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, false
	}
	return bytes.Clone(data), true
}
