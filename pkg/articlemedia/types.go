package articlemedia

import (
	"time"

	"github.com/google/uuid"
)

// Format is an output encoding produced for every configured size.
type Format string

// Output encoding constants (typed).
const (
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpeg"
)

// Extension returns the file extension used in blob paths for the format.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	default:
		return string(f)
	}
}

// ParseFormat maps a format name or file extension to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "webp":
		return FormatWebP, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatWebP:
		return "image/webp"
	case FormatJPEG:
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// VariantManifest maps size name -> format -> blob path for one article's
// media attachment. A manifest is either empty (no media) or complete: one
// entry for every (size, format) pair in the variant spec. Partial
// manifests are never persisted; they only exist inside a running
// generation job.
type VariantManifest struct {
	Entries map[string]map[Format]string `json:"entries,omitempty"`
}

// EmptyManifest returns a manifest with no media attached.
func EmptyManifest() VariantManifest {
	return VariantManifest{}
}

// IsEmpty reports whether the manifest references no media.
func (m VariantManifest) IsEmpty() bool {
	return len(m.Entries) == 0
}

// Path returns the blob path for a (size, format) pair, if present.
func (m VariantManifest) Path(size string, format Format) (string, bool) {
	formats, ok := m.Entries[size]
	if !ok {
		return "", false
	}
	path, ok := formats[format]
	return path, ok
}

// Paths returns every blob path referenced by the manifest.
func (m VariantManifest) Paths() []string {
	var paths []string
	for _, formats := range m.Entries {
		for _, path := range formats {
			paths = append(paths, path)
		}
	}
	return paths
}

// Complete reports whether the manifest holds an entry for every
// (size, format) pair in the spec.
func (m VariantManifest) Complete(spec VariantSpec) bool {
	for _, size := range spec.Sizes {
		formats, ok := m.Entries[size.Name]
		if !ok {
			return false
		}
		for _, f := range spec.Formats {
			if _, ok := formats[f.Format]; !ok {
				return false
			}
		}
	}
	return true
}

// set records a produced blob path. Used by the generator while the
// manifest is still a draft.
func (m *VariantManifest) set(size string, format Format, path string) {
	if m.Entries == nil {
		m.Entries = make(map[string]map[Format]string)
	}
	if m.Entries[size] == nil {
		m.Entries[size] = make(map[Format]string)
	}
	m.Entries[size][format] = path
}

// Article is the owning entity for a media attachment. ManifestVersion is
// bumped on every persisted change and guards concurrent manifest swaps
// via compare-and-swap in the repository.
type Article struct {
	ID              uuid.UUID       `json:"id"`
	Title           string          `json:"title"`
	Content         string          `json:"content"`
	AuthorID        uuid.UUID       `json:"author_id"`
	AuthorName      string          `json:"author"`
	Manifest        VariantManifest `json:"manifest"`
	ManifestVersion int64           `json:"-"`
	PublishedAt     time.Time       `json:"published_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Comment is a reader comment attached to an article.
type Comment struct {
	ID         uuid.UUID `json:"id"`
	ArticleID  uuid.UUID `json:"article_id"`
	AuthorName string    `json:"user"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// ArticleSummary is the listing/search projection of an article.
type ArticleSummary struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	Excerpt       string    `json:"content"`
	AuthorName    string    `json:"author"`
	CommentsCount int       `json:"comments_count"`
	PublishedAt   time.Time `json:"published_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// ArticleRank is one entry of the most-commented ranking.
type ArticleRank struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	CommentsCount int       `json:"comments_count"`
}

// RecentArticle is one entry of the recent-articles list.
type RecentArticle struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	AuthorName string    `json:"author"`
	CreatedAt  time.Time `json:"created_at"`
}

// StatsSummary is the whole-collection aggregate served by GetStats.
type StatsSummary struct {
	TotalArticles  int64           `json:"total_articles"`
	TotalComments  int64           `json:"total_comments"`
	TotalAuthors   int64           `json:"total_authors"`
	MostCommented  []ArticleRank   `json:"most_commented"`
	RecentArticles []RecentArticle `json:"recent_articles"`
}
