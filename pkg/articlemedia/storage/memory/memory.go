package memory

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/pressmill/article-media/pkg/articlemedia"
)

// Backend is an in-memory implementation of the articlemedia.BlobStore
// interface. Intended for tests and development.
type Backend struct {
	mu    sync.RWMutex
	blobs map[string]blob
}

type blob struct {
	data      []byte
	updatedAt time.Time
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		blobs: make(map[string]blob),
	}
}

// Upload stores the blob directly in memory
func (b *Backend) Upload(ctx context.Context, path string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[path] = blob{data: data, updatedAt: time.Now().UTC()}
	return nil
}

// Download returns the stored blob bytes
func (b *Backend) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stored, exists := b.blobs[path]
	if !exists {
		return nil, articlemedia.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(stored.data)), nil
}

// Delete removes the blob. Absent paths return ErrBlobNotFound.
func (b *Backend) Delete(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.blobs[path]; !exists {
		return articlemedia.ErrBlobNotFound
	}
	delete(b.blobs, path)
	return nil
}

// Meta returns size and sniffed content type for the blob
func (b *Backend) Meta(ctx context.Context, path string) (*articlemedia.BlobMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stored, exists := b.blobs[path]
	if !exists {
		return nil, articlemedia.ErrBlobNotFound
	}

	return &articlemedia.BlobMeta{
		Path:        path,
		Size:        int64(len(stored.data)),
		ContentType: http.DetectContentType(stored.data),
		UpdatedAt:   stored.updatedAt,
	}, nil
}

// Paths returns every stored blob path, sorted. Used by tests to assert
// rollback completeness.
func (b *Backend) Paths() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	paths := make([]string, 0, len(b.blobs))
	for path := range b.blobs {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
