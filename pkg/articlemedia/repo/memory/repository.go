package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/pressmill/article-media/pkg/articlemedia"
)

// Repository implements articlemedia.Repository using in-memory storage.
// Intended for tests and development.
type Repository struct {
	mu       sync.RWMutex
	articles map[uuid.UUID]*articlemedia.Article
	comments map[uuid.UUID][]articlemedia.Comment // article_id -> comments, oldest first
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		articles: make(map[uuid.UUID]*articlemedia.Article),
		comments: make(map[uuid.UUID][]articlemedia.Comment),
	}
}

func (r *Repository) CreateArticle(ctx context.Context, article *articlemedia.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Copy to avoid external modifications
	articleCopy := *article
	articleCopy.ManifestVersion = 1
	r.articles[article.ID] = &articleCopy
	article.ManifestVersion = 1
	return nil
}

func (r *Repository) GetArticle(ctx context.Context, id uuid.UUID) (*articlemedia.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	article, exists := r.articles[id]
	if !exists {
		return nil, articlemedia.ErrArticleNotFound
	}
	articleCopy := *article
	return &articleCopy, nil
}

// UpdateArticle persists the article if the stored manifest version still
// matches, then bumps the version (compare-and-swap).
func (r *Repository) UpdateArticle(ctx context.Context, article *articlemedia.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.articles[article.ID]
	if !exists {
		return articlemedia.ErrArticleNotFound
	}
	if stored.ManifestVersion != article.ManifestVersion {
		return articlemedia.ErrManifestConflict
	}

	articleCopy := *article
	articleCopy.ManifestVersion = article.ManifestVersion + 1
	r.articles[article.ID] = &articleCopy
	article.ManifestVersion = articleCopy.ManifestVersion
	return nil
}

func (r *Repository) DeleteArticle(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.articles[id]; !exists {
		return articlemedia.ErrArticleNotFound
	}
	delete(r.articles, id)
	delete(r.comments, id)
	return nil
}

func (r *Repository) ListArticles(ctx context.Context) ([]articlemedia.ArticleSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]articlemedia.ArticleSummary, 0, len(r.articles))
	for _, article := range r.articles {
		summaries = append(summaries, r.summarize(article))
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

func (r *Repository) SearchArticles(ctx context.Context, query string) ([]articlemedia.ArticleSummary, error) {
	if query == "" {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	folded := articlemedia.FoldText(query)
	var summaries []articlemedia.ArticleSummary
	for _, article := range r.articles {
		if strings.Contains(articlemedia.FoldText(article.Title), folded) {
			summaries = append(summaries, r.summarize(article))
		}
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

func (r *Repository) AddComment(ctx context.Context, comment *articlemedia.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.articles[comment.ArticleID]; !exists {
		return articlemedia.ErrArticleNotFound
	}
	r.comments[comment.ArticleID] = append(r.comments[comment.ArticleID], *comment)
	return nil
}

func (r *Repository) ListComments(ctx context.Context, articleID uuid.UUID) ([]articlemedia.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.articles[articleID]; !exists {
		return nil, articlemedia.ErrArticleNotFound
	}

	comments := make([]articlemedia.Comment, len(r.comments[articleID]))
	copy(comments, r.comments[articleID])
	return comments, nil
}

func (r *Repository) Stats(ctx context.Context) (*articlemedia.StatsSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &articlemedia.StatsSummary{
		TotalArticles: int64(len(r.articles)),
	}

	authors := make(map[uuid.UUID]struct{})
	ranks := make([]articlemedia.ArticleRank, 0, len(r.articles))
	recent := make([]*articlemedia.Article, 0, len(r.articles))

	for _, article := range r.articles {
		authors[article.AuthorID] = struct{}{}
		count := len(r.comments[article.ID])
		stats.TotalComments += int64(count)
		ranks = append(ranks, articlemedia.ArticleRank{
			ID:            article.ID,
			Title:         article.Title,
			CommentsCount: count,
		})
		recent = append(recent, article)
	}
	stats.TotalAuthors = int64(len(authors))

	sort.Slice(ranks, func(i, j int) bool {
		return ranks[i].CommentsCount > ranks[j].CommentsCount
	})
	if len(ranks) > 5 {
		ranks = ranks[:5]
	}
	stats.MostCommented = ranks

	sort.Slice(recent, func(i, j int) bool {
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})
	if len(recent) > 5 {
		recent = recent[:5]
	}
	for _, article := range recent {
		stats.RecentArticles = append(stats.RecentArticles, articlemedia.RecentArticle{
			ID:         article.ID,
			Title:      article.Title,
			AuthorName: article.AuthorName,
			CreatedAt:  article.CreatedAt,
		})
	}

	return stats, nil
}

// summarize builds the listing projection. Callers hold at least a read
// lock.
func (r *Repository) summarize(article *articlemedia.Article) articlemedia.ArticleSummary {
	return articlemedia.ArticleSummary{
		ID:            article.ID,
		Title:         article.Title,
		Excerpt:       articlemedia.Excerpt(article.Content),
		AuthorName:    article.AuthorName,
		CommentsCount: len(r.comments[article.ID]),
		PublishedAt:   article.PublishedAt,
		CreatedAt:     article.CreatedAt,
	}
}
