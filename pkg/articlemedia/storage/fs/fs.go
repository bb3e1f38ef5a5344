package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pressmill/article-media/pkg/articlemedia"
)

// Backend is a filesystem implementation of the articlemedia.BlobStore
// interface. Blob paths map to files under the base directory.
type Backend struct {
	baseDir string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing blobs
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{baseDir: config.BaseDir}, nil
}

// Upload writes the blob to the filesystem, creating parent directories as
// needed. Writes go through a temp file and rename so readers never see a
// partially written blob.
func (b *Backend) Upload(ctx context.Context, path string, reader io.Reader) error {
	filePath := filepath.Join(b.baseDir, filepath.FromSlash(path))

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("failed to finalize blob: %w", err)
	}
	return nil
}

// Download opens the blob file
func (b *Backend) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(b.baseDir, filepath.FromSlash(path)))
	if os.IsNotExist(err) {
		return nil, articlemedia.ErrBlobNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return file, nil
}

// Delete removes the blob file and cleans up emptied directories
func (b *Backend) Delete(ctx context.Context, path string) error {
	filePath := filepath.Join(b.baseDir, filepath.FromSlash(path))

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return articlemedia.ErrBlobNotFound
	}

	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}

	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// Meta returns size, content type and modification time for the blob
func (b *Backend) Meta(ctx context.Context, path string) (*articlemedia.BlobMeta, error) {
	filePath := filepath.Join(b.baseDir, filepath.FromSlash(path))

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, articlemedia.ErrBlobNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat blob: %w", err)
	}

	contentType := "application/octet-stream"
	if file, err := os.Open(filePath); err == nil {
		defer file.Close()
		buffer := make([]byte, 512)
		if n, err := file.Read(buffer); err == nil {
			contentType = http.DetectContentType(buffer[:n])
		}
	}

	return &articlemedia.BlobMeta{
		Path:        path,
		Size:        info.Size(),
		ContentType: contentType,
		UpdatedAt:   info.ModTime(),
	}, nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
