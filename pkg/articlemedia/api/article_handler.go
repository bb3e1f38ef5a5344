package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/pressmill/article-media/pkg/articlemedia"
)

// maxImageBytes caps uploaded source images.
const maxImageBytes = 5 << 20

// ArticleHandler handles HTTP requests for articles, comments, stats and
// variant media using pkg/articlemedia.
type ArticleHandler struct {
	service articlemedia.Service
	log     *slog.Logger
}

// NewArticleHandler creates a new article handler
func NewArticleHandler(service articlemedia.Service, log *slog.Logger) *ArticleHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ArticleHandler{service: service, log: log}
}

// NewRouter builds the full API router.
func NewRouter(service articlemedia.Service, log *slog.Logger) chi.Router {
	h := NewArticleHandler(service, log)

	r := chi.NewRouter()
	r.Mount("/articles", h.Routes())
	r.Get("/stats", h.GetStats)
	return r
}

// Routes returns the routes for articles
func (h *ArticleHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateArticle)
	r.Get("/", h.ListArticles)
	r.Get("/search", h.SearchArticles)
	r.Get("/{id}", h.GetArticle)
	r.Put("/{id}", h.UpdateArticle)
	r.Delete("/{id}", h.DeleteArticle)

	r.Post("/{id}/comments", h.AddComment)
	r.Get("/{id}/comments", h.ListComments)

	r.Get("/{id}/media/{size}.{format}", h.GetVariant)

	return r
}

// CreateArticle creates a new article from a multipart form. Fields:
// title, content, author_id, author_name and an optional "image" file.
func (h *ArticleHandler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	authorID, err := uuid.Parse(r.FormValue("author_id"))
	if err != nil {
		h.log.Error("invalid author ID", "author_id", r.FormValue("author_id"), "error", err)
		http.Error(w, "invalid author ID", http.StatusBadRequest)
		return
	}

	image, err := h.readImage(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	article, err := h.service.CreateArticle(r.Context(), articlemedia.CreateArticleRequest{
		Title:      r.FormValue("title"),
		Content:    r.FormValue("content"),
		AuthorID:   authorID,
		AuthorName: r.FormValue("author_name"),
		Image:      image,
	})
	if err != nil {
		h.writeError(w, r, "failed to create article", err)
		return
	}

	h.log.Info("article created", "article_id", article.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, article)
}

// GetArticle retrieves an article by ID
func (h *ArticleHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.articleID(w, r)
	if !ok {
		return
	}

	article, err := h.service.GetArticle(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "failed to get article", err)
		return
	}

	render.JSON(w, r, article)
}

// UpdateArticle applies field updates from a multipart form. Absent
// fields stay untouched; a new "image" file replaces the media wholesale.
func (h *ArticleHandler) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.articleID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	req := articlemedia.UpdateArticleRequest{ID: id}
	if values, present := r.MultipartForm.Value["title"]; present && len(values) > 0 {
		req.Title = &values[0]
	}
	if values, present := r.MultipartForm.Value["content"]; present && len(values) > 0 {
		req.Content = &values[0]
	}

	image, err := h.readImage(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Image = image

	article, err := h.service.UpdateArticle(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "failed to update article", err)
		return
	}

	h.log.Info("article updated", "article_id", article.ID)
	render.JSON(w, r, article)
}

// DeleteArticle deletes an article and its media
func (h *ArticleHandler) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.articleID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteArticle(r.Context(), id); err != nil {
		h.writeError(w, r, "failed to delete article", err)
		return
	}

	h.log.Info("article deleted", "article_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// ListArticles returns the cached article listing
func (h *ArticleHandler) ListArticles(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.GetArticleList(r.Context())
	if err != nil {
		h.writeError(w, r, "failed to list articles", err)
		return
	}
	if summaries == nil {
		summaries = []articlemedia.ArticleSummary{}
	}
	render.JSON(w, r, summaries)
}

// SearchArticles searches article titles by the "q" query parameter
func (h *ArticleHandler) SearchArticles(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.SearchArticles(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, r, "failed to search articles", err)
		return
	}
	if summaries == nil {
		summaries = []articlemedia.ArticleSummary{}
	}
	render.JSON(w, r, summaries)
}

// GetStats returns the cached global stats aggregate
func (h *ArticleHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		h.writeError(w, r, "failed to get stats", err)
		return
	}
	render.JSON(w, r, stats)
}

// commentRequest is the request body for adding a comment
type commentRequest struct {
	AuthorName string `json:"user"`
	Content    string `json:"content"`
}

// AddComment attaches a comment to an article
func (h *ArticleHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.articleID(w, r)
	if !ok {
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	comment, err := h.service.AddComment(r.Context(), articlemedia.AddCommentRequest{
		ArticleID:  id,
		AuthorName: req.AuthorName,
		Content:    req.Content,
	})
	if err != nil {
		h.writeError(w, r, "failed to add comment", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, comment)
}

// ListComments returns an article's comments, oldest first
func (h *ArticleHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.articleID(w, r)
	if !ok {
		return
	}

	comments, err := h.service.ListComments(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "failed to list comments", err)
		return
	}
	if comments == nil {
		comments = []articlemedia.Comment{}
	}
	render.JSON(w, r, comments)
}

// GetVariant streams one variant blob, e.g. GET /articles/{id}/media/thumbnail.webp
func (h *ArticleHandler) GetVariant(w http.ResponseWriter, r *http.Request) {
	id, ok := h.articleID(w, r)
	if !ok {
		return
	}

	format, err := articlemedia.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		http.Error(w, "unsupported format", http.StatusBadRequest)
		return
	}

	rc, meta, err := h.service.OpenVariant(r.Context(), id, chi.URLParam(r, "size"), format)
	if err != nil {
		h.writeError(w, r, "failed to open variant", err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", format.ContentType())
	if meta != nil && meta.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Error("failed to stream variant", "article_id", id, "error", err)
	}
}

func (h *ArticleHandler) articleID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.log.Error("invalid article ID", "article_id", idStr, "error", err)
		http.Error(w, "invalid article ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// readImage pulls the optional "image" file out of the multipart form.
func (h *ArticleHandler) readImage(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New("invalid image upload")
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return nil, errors.New("failed to read image upload")
	}
	if len(image) > maxImageBytes {
		return nil, errors.New("image exceeds the 5 MiB upload limit")
	}
	return image, nil
}

// writeError maps service errors to HTTP status codes.
func (h *ArticleHandler) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var (
		validationErr *articlemedia.ValidationError
		generationErr *articlemedia.GenerationError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.Is(err, articlemedia.ErrArticleNotFound),
		errors.Is(err, articlemedia.ErrVariantNotFound),
		errors.Is(err, articlemedia.ErrBlobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, articlemedia.ErrManifestConflict):
		status = http.StatusConflict
	case errors.As(err, &generationErr),
		errors.Is(err, articlemedia.ErrDecodeFailed),
		errors.Is(err, articlemedia.ErrUnsupportedFormat),
		errors.Is(err, articlemedia.ErrEmptyImage):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		h.log.Error(msg, "error", err)
	} else {
		h.log.Warn(msg, "error", err)
	}
	http.Error(w, err.Error(), status)
}
