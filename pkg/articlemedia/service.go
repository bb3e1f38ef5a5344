package articlemedia

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service is the public surface of the media lifecycle coordinator plus
// the cache-backed read paths.
//
// Mutations are blocking, coarse-grained units of work: variant
// generation, manifest commit, superseded-blob cleanup and cache
// invalidation all complete (or are rolled back) before the call returns.
// Mutations on the same article are serialized; different articles are
// fully independent.
type Service interface {
	// CreateArticle creates an article. When an image is supplied,
	// variant generation must succeed or the whole create fails; no
	// article without its requested media is ever committed.
	CreateArticle(ctx context.Context, req CreateArticleRequest) (*Article, error)

	// UpdateArticle applies field updates and, when a new image is
	// supplied, replaces the media wholesale: generate, commit the new
	// manifest, then delete superseded blobs. Cleanup failures are
	// logged warnings, never update failures.
	UpdateArticle(ctx context.Context, req UpdateArticleRequest) (*Article, error)

	// DeleteArticle deletes the article's blobs best-effort, then the
	// record. Partial blob-deletion failure never blocks the delete.
	DeleteArticle(ctx context.Context, id uuid.UUID) error

	// GetArticle returns a single article.
	GetArticle(ctx context.Context, id uuid.UUID) (*Article, error)

	// GetArticleList returns the cache-backed listing aggregate.
	GetArticleList(ctx context.Context) ([]ArticleSummary, error)

	// GetStats returns the cache-backed global stats aggregate.
	GetStats(ctx context.Context) (*StatsSummary, error)

	// SearchArticles searches article titles. Uncached.
	SearchArticles(ctx context.Context, query string) ([]ArticleSummary, error)

	// AddComment attaches a comment and invalidates both aggregates
	// (listing embeds comment counts, stats count comments).
	AddComment(ctx context.Context, req AddCommentRequest) (*Comment, error)

	// ListComments returns an article's comments, oldest first.
	ListComments(ctx context.Context, articleID uuid.UUID) ([]Comment, error)

	// OpenVariant streams one variant blob referenced by the article's
	// manifest.
	OpenVariant(ctx context.Context, articleID uuid.UUID, size string, format Format) (io.ReadCloser, *BlobMeta, error)

	// Close flushes the aggregate cache and releases the cache backend.
	Close(ctx context.Context) error
}
