package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pressmill/article-media/pkg/articlemedia"
)

// DBTX allows using either a connection pool or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements articlemedia.Repository using PostgreSQL. The
// manifest is stored as jsonb, so a structurally partial manifest cannot
// be written. Title search relies on lower(unaccent(...)), which mirrors
// articlemedia.FoldText (see schema.sql for the extension).
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

func (r *Repository) CreateArticle(ctx context.Context, article *articlemedia.Article) error {
	manifest, err := json.Marshal(article.Manifest)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	query := `
		INSERT INTO articles (
			id, title, content, author_id, author_name, manifest,
			manifest_version, published_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8, $9)`

	_, err = r.db.Exec(ctx, query,
		article.ID, article.Title, article.Content, article.AuthorID,
		article.AuthorName, manifest, article.PublishedAt,
		article.CreatedAt, article.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create article: %w", err)
	}

	article.ManifestVersion = 1
	return nil
}

func (r *Repository) GetArticle(ctx context.Context, id uuid.UUID) (*articlemedia.Article, error) {
	query := `
		SELECT id, title, content, author_id, author_name, manifest,
		       manifest_version, published_at, created_at, updated_at
		FROM articles WHERE id = $1`

	var (
		article  articlemedia.Article
		manifest []byte
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&article.ID, &article.Title, &article.Content, &article.AuthorID,
		&article.AuthorName, &manifest, &article.ManifestVersion,
		&article.PublishedAt, &article.CreatedAt, &article.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, articlemedia.ErrArticleNotFound
		}
		return nil, fmt.Errorf("get article: %w", err)
	}

	if err := json.Unmarshal(manifest, &article.Manifest); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &article, nil
}

// UpdateArticle persists the article with a compare-and-swap on
// manifest_version, guarding concurrent manifest swaps across instances.
func (r *Repository) UpdateArticle(ctx context.Context, article *articlemedia.Article) error {
	manifest, err := json.Marshal(article.Manifest)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	query := `
		UPDATE articles SET
			title = $2, content = $3, manifest = $4,
			manifest_version = manifest_version + 1, updated_at = $5
		WHERE id = $1 AND manifest_version = $6`

	tag, err := r.db.Exec(ctx, query,
		article.ID, article.Title, article.Content, manifest,
		article.UpdatedAt, article.ManifestVersion)
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row is gone or a concurrent writer bumped the version.
		if _, err := r.GetArticle(ctx, article.ID); err != nil {
			return err
		}
		return articlemedia.ErrManifestConflict
	}

	article.ManifestVersion++
	return nil
}

func (r *Repository) DeleteArticle(ctx context.Context, id uuid.UUID) error {
	// Comments cascade via FK.
	tag, err := r.db.Exec(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return articlemedia.ErrArticleNotFound
	}
	return nil
}

const summaryQuery = `
	SELECT a.id, a.title, a.content, a.author_name,
	       COUNT(c.id) AS comments_count, a.published_at, a.created_at
	FROM articles a
	LEFT JOIN comments c ON c.article_id = a.id`

func (r *Repository) ListArticles(ctx context.Context) ([]articlemedia.ArticleSummary, error) {
	query := summaryQuery + `
	GROUP BY a.id
	ORDER BY a.created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

func (r *Repository) SearchArticles(ctx context.Context, query string) ([]articlemedia.ArticleSummary, error) {
	if query == "" {
		return nil, nil
	}

	// Parameterized; the query string never reaches the SQL text.
	stmt := summaryQuery + `
	WHERE lower(unaccent(a.title)) LIKE '%' || lower(unaccent($1)) || '%'
	GROUP BY a.id
	ORDER BY a.created_at DESC`

	rows, err := r.db.Query(ctx, stmt, query)
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

func (r *Repository) AddComment(ctx context.Context, comment *articlemedia.Comment) error {
	query := `
		INSERT INTO comments (id, article_id, author_name, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query,
		comment.ID, comment.ArticleID, comment.AuthorName,
		comment.Content, comment.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
			return articlemedia.ErrArticleNotFound
		}
		return fmt.Errorf("add comment: %w", err)
	}
	return nil
}

func (r *Repository) ListComments(ctx context.Context, articleID uuid.UUID) ([]articlemedia.Comment, error) {
	if _, err := r.GetArticle(ctx, articleID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, article_id, author_name, content, created_at
		FROM comments WHERE article_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, articleID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []articlemedia.Comment
	for rows.Next() {
		var c articlemedia.Comment
		if err := rows.Scan(&c.ID, &c.ArticleID, &c.AuthorName, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (r *Repository) Stats(ctx context.Context) (*articlemedia.StatsSummary, error) {
	var stats articlemedia.StatsSummary

	totals := `
		SELECT
			(SELECT COUNT(*) FROM articles),
			(SELECT COUNT(*) FROM comments),
			(SELECT COUNT(DISTINCT author_id) FROM articles)`
	if err := r.db.QueryRow(ctx, totals).Scan(
		&stats.TotalArticles, &stats.TotalComments, &stats.TotalAuthors); err != nil {
		return nil, fmt.Errorf("stats totals: %w", err)
	}

	mostCommented := `
		SELECT a.id, a.title, COUNT(c.id) AS comments_count
		FROM articles a
		LEFT JOIN comments c ON c.article_id = a.id
		GROUP BY a.id
		ORDER BY comments_count DESC
		LIMIT 5`
	rows, err := r.db.Query(ctx, mostCommented)
	if err != nil {
		return nil, fmt.Errorf("stats most commented: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rank articlemedia.ArticleRank
		if err := rows.Scan(&rank.ID, &rank.Title, &rank.CommentsCount); err != nil {
			return nil, fmt.Errorf("scanning rank: %w", err)
		}
		stats.MostCommented = append(stats.MostCommented, rank)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recent := `
		SELECT id, title, author_name, created_at
		FROM articles
		ORDER BY created_at DESC
		LIMIT 5`
	rows, err = r.db.Query(ctx, recent)
	if err != nil {
		return nil, fmt.Errorf("stats recent: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ra articlemedia.RecentArticle
		if err := rows.Scan(&ra.ID, &ra.Title, &ra.AuthorName, &ra.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning recent article: %w", err)
		}
		stats.RecentArticles = append(stats.RecentArticles, ra)
	}
	return &stats, rows.Err()
}

func scanSummaries(rows pgx.Rows) ([]articlemedia.ArticleSummary, error) {
	var summaries []articlemedia.ArticleSummary
	for rows.Next() {
		var (
			s       articlemedia.ArticleSummary
			content string
		)
		if err := rows.Scan(&s.ID, &s.Title, &content, &s.AuthorName,
			&s.CommentsCount, &s.PublishedAt, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		s.Excerpt = articlemedia.Excerpt(content)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
