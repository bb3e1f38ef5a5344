package articlemedia

import "github.com/google/uuid"

// CreateArticleRequest contains parameters for creating an article. Image
// is the optional uploaded source; when present, variant generation must
// succeed for the create to succeed.
type CreateArticleRequest struct {
	Title      string
	Content    string
	AuthorID   uuid.UUID
	AuthorName string
	Image      []byte
}

// UpdateArticleRequest contains parameters for updating an article. Nil
// field pointers leave the field untouched. A non-nil Image replaces the
// article's media wholesale; a nil Image leaves the manifest untouched.
type UpdateArticleRequest struct {
	ID      uuid.UUID
	Title   *string
	Content *string
	Image   []byte
}

// AddCommentRequest contains parameters for attaching a comment.
type AddCommentRequest struct {
	ArticleID  uuid.UUID
	AuthorName string
	Content    string
}
