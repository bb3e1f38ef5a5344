package articlemedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// service implements the Service interface. It is the media lifecycle
// coordinator from the design: it drives generation, manifest swap and
// old-artifact cleanup, and keeps the aggregate cache coherent with the
// write path.
type service struct {
	repo      Repository
	blobs     BlobStore
	codec     ImageCodec
	generator *VariantGenerator
	cache     *AggregateCache
	spec      VariantSpec
	log       *slog.Logger

	genTimeout time.Duration
	listTTL    time.Duration
	statsTTL   time.Duration

	locks articleLocks
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the article repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repo = repo
	}
}

// WithBlobStore sets the blob storage backend for the service
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobs = store
	}
}

// WithCodec sets the image codec for the service
func WithCodec(codec ImageCodec) Option {
	return func(s *service) {
		s.codec = codec
	}
}

// WithCache sets the cache backend for the aggregate cache
func WithCache(store Cache) Option {
	return func(s *service) {
		s.cache = NewAggregateCache(store, nil)
	}
}

// WithVariantSpec overrides the default variant table
func WithVariantSpec(spec VariantSpec) Option {
	return func(s *service) {
		s.spec = spec
	}
}

// WithLogger sets the logger used for cleanup warnings
func WithLogger(log *slog.Logger) Option {
	return func(s *service) {
		s.log = log
	}
}

// WithGenerationTimeout bounds one generation job. Exceeding it is a
// GenerationError and takes the same rollback path as a codec failure.
func WithGenerationTimeout(d time.Duration) Option {
	return func(s *service) {
		s.genTimeout = d
	}
}

// WithCacheTTLs overrides the listing and stats TTLs
func WithCacheTTLs(list, stats time.Duration) Option {
	return func(s *service) {
		s.listTTL = list
		s.statsTTL = stats
	}
}

// New creates a new service instance with the given options. Repository,
// blob store, codec and cache are required.
func New(options ...Option) (Service, error) {
	s := &service{
		spec:       DefaultVariantSpec(),
		genTimeout: 30 * time.Second,
		listTTL:    time.Minute,
		statsTTL:   5 * time.Minute,
		locks:      articleLocks{entries: make(map[uuid.UUID]*articleLock)},
	}

	for _, option := range options {
		option(s)
	}

	if s.repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.codec == nil {
		return nil, fmt.Errorf("image codec is required")
	}
	if s.cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if err := s.spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid variant spec: %w", err)
	}

	if s.log == nil {
		s.log = slog.Default()
	}
	s.cache.log = s.log
	s.generator = NewVariantGenerator(s.codec, s.blobs, s.spec, s.genTimeout)

	return s, nil
}

// Mutations

func (s *service) CreateArticle(ctx context.Context, req CreateArticleRequest) (*Article, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	manifest := EmptyManifest()
	if len(req.Image) > 0 {
		m, err := s.generator.Generate(ctx, req.Image)
		if err != nil {
			return nil, err
		}
		manifest = m
	}

	now := time.Now().UTC()
	article := &Article{
		ID:          uuid.New(),
		Title:       req.Title,
		Content:     req.Content,
		AuthorID:    req.AuthorID,
		AuthorName:  req.AuthorName,
		Manifest:    manifest,
		PublishedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateArticle(ctx, article); err != nil {
		// The record never became visible, so the fresh blobs are pure
		// orphans; remove them before surfacing the failure.
		if delErr := s.deleteBlobs(ctx, manifest.Paths()); delErr != nil {
			s.log.WarnContext(ctx, "rollback cleanup incomplete", "article_id", article.ID, "error", delErr)
		}
		return nil, &ArticleError{ArticleID: article.ID.String(), Op: "create", Err: err}
	}

	if err := s.invalidateAggregates(ctx); err != nil {
		return nil, err
	}
	return article, nil
}

func (s *service) UpdateArticle(ctx context.Context, req UpdateArticleRequest) (*Article, error) {
	if err := validateUpdate(req); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(req.ID)
	defer unlock()

	article, err := s.repo.GetArticle(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		article.Title = *req.Title
	}
	if req.Content != nil {
		article.Content = *req.Content
	}

	var superseded []string
	if len(req.Image) > 0 {
		manifest, err := s.generator.Generate(ctx, req.Image)
		if err != nil {
			return nil, err
		}
		superseded = article.Manifest.Paths()
		article.Manifest = manifest
	}

	article.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateArticle(ctx, article); err != nil {
		if len(req.Image) > 0 {
			// Commit failed: the new manifest never became current, the
			// old one is still valid. Drop only the new blobs.
			if delErr := s.deleteBlobs(ctx, article.Manifest.Paths()); delErr != nil {
				s.log.WarnContext(ctx, "rollback cleanup incomplete", "article_id", article.ID, "error", delErr)
			}
		}
		return nil, &ArticleError{ArticleID: article.ID.String(), Op: "update", Err: err}
	}

	// New manifest is durably committed; only now are the old blobs
	// superseded and safe to delete.
	if delErr := s.deleteBlobs(ctx, superseded); delErr != nil {
		s.log.WarnContext(ctx, "superseded blob cleanup incomplete", "article_id", article.ID, "error", delErr)
	}

	if err := s.invalidateAggregates(ctx); err != nil {
		return nil, err
	}
	return article, nil
}

func (s *service) DeleteArticle(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.lock(id)
	defer unlock()

	article, err := s.repo.GetArticle(ctx, id)
	if err != nil {
		return err
	}

	// Orphaned blobs are acceptable collateral; a dangling article
	// referencing deleted blobs is not. Blob cleanup failures never block
	// the record delete.
	if delErr := s.deleteBlobs(ctx, article.Manifest.Paths()); delErr != nil {
		s.log.WarnContext(ctx, "blob cleanup incomplete on delete", "article_id", id, "error", delErr)
	}

	if err := s.repo.DeleteArticle(ctx, id); err != nil {
		return &ArticleError{ArticleID: id.String(), Op: "delete", Err: err}
	}

	return s.invalidateAggregates(ctx)
}

func (s *service) AddComment(ctx context.Context, req AddCommentRequest) (*Comment, error) {
	if req.Content == "" {
		return nil, &ValidationError{Field: "content", Msg: "required"}
	}
	if req.AuthorName == "" {
		return nil, &ValidationError{Field: "user", Msg: "required"}
	}

	if _, err := s.repo.GetArticle(ctx, req.ArticleID); err != nil {
		return nil, err
	}

	comment := &Comment{
		ID:         uuid.New(),
		ArticleID:  req.ArticleID,
		AuthorName: req.AuthorName,
		Content:    req.Content,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.AddComment(ctx, comment); err != nil {
		return nil, &ArticleError{ArticleID: req.ArticleID.String(), Op: "add_comment", Err: err}
	}

	if err := s.invalidateAggregates(ctx); err != nil {
		return nil, err
	}
	return comment, nil
}

// Reads

func (s *service) GetArticle(ctx context.Context, id uuid.UUID) (*Article, error) {
	return s.repo.GetArticle(ctx, id)
}

func (s *service) GetArticleList(ctx context.Context) ([]ArticleSummary, error) {
	data, err := s.cache.GetOrCompute(ctx, CacheKeyArticleList, s.listTTL, func(ctx context.Context) ([]byte, error) {
		summaries, err := s.repo.ListArticles(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(summaries)
	})
	if err != nil {
		return nil, err
	}

	var summaries []ArticleSummary
	if err := json.Unmarshal(data, &summaries); err != nil {
		return nil, fmt.Errorf("decoding cached article list: %w", err)
	}
	return summaries, nil
}

func (s *service) GetStats(ctx context.Context) (*StatsSummary, error) {
	data, err := s.cache.GetOrCompute(ctx, CacheKeyStats, s.statsTTL, func(ctx context.Context) ([]byte, error) {
		stats, err := s.repo.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(stats)
	})
	if err != nil {
		return nil, err
	}

	var stats StatsSummary
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("decoding cached stats: %w", err)
	}
	return &stats, nil
}

func (s *service) SearchArticles(ctx context.Context, query string) ([]ArticleSummary, error) {
	if query == "" {
		return nil, nil
	}
	return s.repo.SearchArticles(ctx, query)
}

func (s *service) ListComments(ctx context.Context, articleID uuid.UUID) ([]Comment, error) {
	return s.repo.ListComments(ctx, articleID)
}

func (s *service) OpenVariant(ctx context.Context, articleID uuid.UUID, size string, format Format) (io.ReadCloser, *BlobMeta, error) {
	article, err := s.repo.GetArticle(ctx, articleID)
	if err != nil {
		return nil, nil, err
	}

	path, ok := article.Manifest.Path(size, format)
	if !ok {
		return nil, nil, ErrVariantNotFound
	}

	reader, err := s.blobs.Download(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	meta, err := s.blobs.Meta(ctx, path)
	if err != nil {
		meta = &BlobMeta{Path: path, ContentType: format.ContentType()}
	}
	return reader, meta, nil
}

func (s *service) Close(ctx context.Context) error {
	return s.cache.Close(ctx)
}

// Helpers

// invalidateAggregates drops both aggregate keys synchronously, within the
// mutation. A failure surfaces as an error: returning success with a stale
// cache would break the coherence contract.
func (s *service) invalidateAggregates(ctx context.Context) error {
	if err := s.cache.Invalidate(ctx, CacheKeyArticleList, CacheKeyStats); err != nil {
		return fmt.Errorf("invalidating aggregates: %w", err)
	}
	return nil
}

// deleteBlobs removes the given paths, tolerating already-absent blobs.
// Returns a StorageDeleteError describing the paths that could not be
// removed, or nil when everything (still) present was deleted.
func (s *service) deleteBlobs(ctx context.Context, paths []string) *StorageDeleteError {
	var (
		failed   []string
		firstErr error
	)
	for _, path := range paths {
		err := s.blobs.Delete(ctx, path)
		if err == nil || errors.Is(err, ErrBlobNotFound) {
			continue
		}
		failed = append(failed, path)
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		return nil
	}
	return &StorageDeleteError{Paths: failed, Err: firstErr}
}

func validateCreate(req CreateArticleRequest) error {
	if req.Title == "" {
		return &ValidationError{Field: "title", Msg: "required"}
	}
	if utf8.RuneCountInString(req.Title) > 255 {
		return &ValidationError{Field: "title", Msg: "must be at most 255 characters"}
	}
	if req.Content == "" {
		return &ValidationError{Field: "content", Msg: "required"}
	}
	if req.AuthorID == uuid.Nil {
		return &ValidationError{Field: "author_id", Msg: "required"}
	}
	if req.AuthorName == "" {
		return &ValidationError{Field: "author", Msg: "required"}
	}
	return nil
}

func validateUpdate(req UpdateArticleRequest) error {
	if req.ID == uuid.Nil {
		return &ValidationError{Field: "id", Msg: "required"}
	}
	if req.Title != nil {
		if *req.Title == "" {
			return &ValidationError{Field: "title", Msg: "cannot be empty"}
		}
		if utf8.RuneCountInString(*req.Title) > 255 {
			return &ValidationError{Field: "title", Msg: "must be at most 255 characters"}
		}
	}
	if req.Content != nil && *req.Content == "" {
		return &ValidationError{Field: "content", Msg: "cannot be empty"}
	}
	return nil
}

// articleLocks serializes mutations per article. Entries are refcounted so
// the map does not grow with the article count.
type articleLocks struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*articleLock
}

type articleLock struct {
	mu   sync.Mutex
	refs int
}

func (l *articleLocks) lock(id uuid.UUID) (unlock func()) {
	l.mu.Lock()
	entry, ok := l.entries[id]
	if !ok {
		entry = &articleLock{}
		l.entries[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}
