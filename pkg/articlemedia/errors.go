package articlemedia

import (
	"errors"
	"fmt"
	"strings"
)

// Error types
var (
	// ErrArticleNotFound indicates the referenced article does not exist
	ErrArticleNotFound = errors.New("article not found")

	// ErrBlobNotFound indicates a blob path is absent from the store.
	// Delete tolerates it as success.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrCacheMiss indicates a cache key is absent or expired
	ErrCacheMiss = errors.New("cache miss")

	// ErrUnsupportedFormat indicates the codec cannot produce the requested encoding
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrDecodeFailed indicates the source bytes are not a decodable image
	ErrDecodeFailed = errors.New("image decode failed")

	// ErrEmptyImage indicates an empty source was supplied where image bytes were expected
	ErrEmptyImage = errors.New("empty image source")

	// ErrManifestConflict indicates a concurrent writer replaced the
	// article's manifest between read and commit
	ErrManifestConflict = errors.New("manifest version conflict")

	// ErrVariantNotFound indicates the requested (size, format) pair is not
	// part of the article's manifest
	ErrVariantNotFound = errors.New("variant not found")
)

// ValidationError reports caller-supplied input rejected before any side
// effect.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// GenerationError reports a codec or storage failure mid-pipeline. The job
// is fully rolled back before the error is returned; no partial manifest or
// orphaned blob survives it.
type GenerationError struct {
	Size   string
	Format Format
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Size == "" {
		return fmt.Sprintf("variant generation failed: %v", e.Err)
	}
	return fmt.Sprintf("variant generation failed for %s/%s: %v", e.Size, e.Format, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// StorageDeleteError reports a best-effort cleanup failure. It never aborts
// the mutation it accompanies; callers log it as a warning.
type StorageDeleteError struct {
	Paths []string
	Err   error
}

func (e *StorageDeleteError) Error() string {
	return fmt.Sprintf("failed to delete %d blob(s) [%s]: %v", len(e.Paths), strings.Join(e.Paths, ", "), e.Err)
}

func (e *StorageDeleteError) Unwrap() error {
	return e.Err
}

// ArticleError wraps an error from an article mutation with the operation
// that produced it.
type ArticleError struct {
	ArticleID string
	Op        string
	Err       error
}

func (e *ArticleError) Error() string {
	return fmt.Sprintf("article operation %s failed for article %s: %v", e.Op, e.ArticleID, e.Err)
}

func (e *ArticleError) Unwrap() error {
	return e.Err
}
