package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/printkeeper/internal/common"
)

// MemoryBackend keeps blobs in a map. Contents are lost with the process; it
// serves tests and throwaway sessions.
type MemoryBackend struct {
	mu    sync.RWMutex
	blobs map[string]string
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{blobs: map[string]string{}}
}

// DownloadText returns the blob stored under key.
func (m *MemoryBackend) DownloadText(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.blobs[key]
	if !ok {
		return "", fmt.Errorf("blob %s: %w", key, common.ErrorNotFound)
	}
	return v, nil
}

// UploadText stores text under key, replacing any previous value.
func (m *MemoryBackend) UploadText(_ context.Context, key, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = text
	return nil
}
