package articlemedia

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore is durable blob storage keyed by opaque path. Paths carry no
// directory semantics beyond what the manifest encodes.
type BlobStore interface {
	// Upload stores the blob under the given path, overwriting any
	// existing blob at that path.
	Upload(ctx context.Context, path string, reader io.Reader) error

	// Download opens the blob at the given path. Returns ErrBlobNotFound
	// if absent.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the blob at the given path. Returns ErrBlobNotFound
	// if absent; callers treat that as success.
	Delete(ctx context.Context, path string) error

	// Meta returns size and content type for the blob at the given path.
	Meta(ctx context.Context, path string) (*BlobMeta, error)
}

// BlobMeta describes a stored blob.
type BlobMeta struct {
	Path        string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
}

// ImageCodec resizes and re-encodes image bytes. Implementations preserve
// aspect ratio and never upscale: output width <= min(maxWidth, source
// width). Malformed input fails with ErrDecodeFailed, unknown encodings
// with ErrUnsupportedFormat.
type ImageCodec interface {
	// Bounds probes the source dimensions without a full decode.
	Bounds(src []byte) (width, height int, err error)

	// ResizeAndEncode produces the re-encoded bytes for one variant.
	ResizeAndEncode(src []byte, maxWidth int, format Format, quality int) ([]byte, error)
}

// Repository persists articles and comments. The manifest is stored as
// structured data, so partially written manifests are structurally
// impossible.
type Repository interface {
	// CreateArticle persists a new article together with its manifest.
	CreateArticle(ctx context.Context, article *Article) error

	// GetArticle returns the article with the given id, or
	// ErrArticleNotFound.
	GetArticle(ctx context.Context, id uuid.UUID) (*Article, error)

	// UpdateArticle persists the article if its stored manifest version
	// still matches article.ManifestVersion, bumping the version on
	// success. Returns ErrManifestConflict when a concurrent writer got
	// there first.
	UpdateArticle(ctx context.Context, article *Article) error

	// DeleteArticle removes the article and its comments.
	DeleteArticle(ctx context.Context, id uuid.UUID) error

	// ListArticles returns summaries of all articles, newest first.
	ListArticles(ctx context.Context) ([]ArticleSummary, error)

	// SearchArticles returns summaries whose title matches the query
	// under the repository's normalization policy. An empty query
	// returns no results.
	SearchArticles(ctx context.Context, query string) ([]ArticleSummary, error)

	// AddComment attaches a comment to an article.
	AddComment(ctx context.Context, comment *Comment) error

	// ListComments returns an article's comments, oldest first.
	ListComments(ctx context.Context, articleID uuid.UUID) ([]Comment, error)

	// Stats computes the whole-collection aggregate.
	Stats(ctx context.Context) (*StatsSummary, error)
}

// Cache is the key-value backing store for the aggregate cache. Get
// returns ErrCacheMiss for absent or expired keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}
