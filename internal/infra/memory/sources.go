package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dvloznov/transaction-analyzer/internal/uploads"
)

const sourceScheme = "mem://"

// SourceStore keeps uploaded files in memory under mem:// URIs.
type SourceStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewSourceStore creates an empty in-memory source store.
func NewSourceStore() *SourceStore {
	return &SourceStore{files: make(map[string][]byte)}
}

// Put implements uploads.SourceStore.
func (s *SourceStore) Put(ctx context.Context, uploadID, filename string, content io.Reader) (string, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", fmt.Errorf("reading upload: %w", err)
	}

	key := uploadID + "/" + filename
	s.mu.Lock()
	s.files[key] = data
	s.mu.Unlock()

	return sourceScheme + key, nil
}

// Open implements uploads.SourceStore.
func (s *SourceStore) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if !strings.HasPrefix(uri, sourceScheme) {
		return nil, fmt.Errorf("invalid memory URI: %s", uri)
	}

	s.mu.RLock()
	data, ok := s.files[strings.TrimPrefix(uri, sourceScheme)]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("source not found: %s", uri)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

var _ uploads.SourceStore = (*SourceStore)(nil)
