package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressmill/article-media/pkg/articlemedia"
	"github.com/pressmill/article-media/pkg/articlemedia/api"
	memorycache "github.com/pressmill/article-media/pkg/articlemedia/cache/memory"
	"github.com/pressmill/article-media/pkg/articlemedia/repo/memory"
	memorystorage "github.com/pressmill/article-media/pkg/articlemedia/storage/memory"
)

// fakeCodec treats any source starting with "IMG" as a decodable image.
type fakeCodec struct{}

func (fakeCodec) Bounds(src []byte) (int, int, error) {
	if !strings.HasPrefix(string(src), "IMG") {
		return 0, 0, articlemedia.ErrDecodeFailed
	}
	return 1600, 900, nil
}

func (fakeCodec) ResizeAndEncode(src []byte, maxWidth int, format articlemedia.Format, quality int) ([]byte, error) {
	if !strings.HasPrefix(string(src), "IMG") {
		return nil, articlemedia.ErrDecodeFailed
	}
	return []byte(fmt.Sprintf("variant|w=%d|f=%s", maxWidth, format)), nil
}

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	svc, err := articlemedia.New(
		articlemedia.WithRepository(memory.New()),
		articlemedia.WithBlobStore(memorystorage.New()),
		articlemedia.WithCodec(fakeCodec{}),
		articlemedia.WithCache(memorycache.New()),
	)
	require.NoError(t, err)

	server := httptest.NewServer(api.NewRouter(svc, nil))
	t.Cleanup(server.Close)
	return server
}

// multipartBody builds a multipart form with the given fields and an
// optional image file.
func multipartBody(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if image != nil {
		part, err := writer.CreateFormFile("image", "source.jpg")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func createArticle(t *testing.T, server *httptest.Server, title string, image []byte) articlemedia.Article {
	t.Helper()

	body, contentType := multipartBody(t, map[string]string{
		"title":       title,
		"content":     "body of " + title,
		"author_id":   uuid.NewString(),
		"author_name": "Ada",
	}, image)

	resp, err := http.Post(server.URL+"/articles", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var article articlemedia.Article
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&article))
	return article
}

func TestCreateAndGetArticle(t *testing.T) {
	server := setupTestServer(t)

	article := createArticle(t, server, "Hello", []byte("IMG-hello"))
	assert.Equal(t, "Hello", article.Title)
	assert.False(t, article.Manifest.IsEmpty())

	resp, err := http.Get(server.URL + "/articles/" + article.ID.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got articlemedia.Article
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, article.ID, got.ID)
}

func TestCreateArticleValidationStatus(t *testing.T) {
	server := setupTestServer(t)

	body, contentType := multipartBody(t, map[string]string{
		"title":       "",
		"content":     "c",
		"author_id":   uuid.NewString(),
		"author_name": "Ada",
	}, nil)

	resp, err := http.Post(server.URL+"/articles", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateArticleBadImageStatus(t *testing.T) {
	server := setupTestServer(t)

	body, contentType := multipartBody(t, map[string]string{
		"title":       "t",
		"content":     "c",
		"author_id":   uuid.NewString(),
		"author_name": "Ada",
	}, []byte("not decodable"))

	resp, err := http.Post(server.URL+"/articles", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestGetArticleErrors(t *testing.T) {
	server := setupTestServer(t)

	resp, err := http.Get(server.URL + "/articles/not-a-uuid")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(server.URL + "/articles/" + uuid.NewString())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateArticle(t *testing.T) {
	server := setupTestServer(t)
	article := createArticle(t, server, "Before", nil)

	body, contentType := multipartBody(t, map[string]string{"title": "After"}, nil)
	req, err := http.NewRequest(http.MethodPut, server.URL+"/articles/"+article.ID.String(), body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated articlemedia.Article
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, "After", updated.Title)
	assert.Equal(t, "body of Before", updated.Content, "absent fields stay untouched")
}

func TestDeleteArticle(t *testing.T) {
	server := setupTestServer(t)
	article := createArticle(t, server, "Doomed", nil)

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/articles/"+article.ID.String(), nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	getResp, err := http.Get(server.URL + "/articles/" + article.ID.String())
	require.NoError(t, err)
	getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestListAndSearch(t *testing.T) {
	server := setupTestServer(t)
	createArticle(t, server, "Économie verte", nil)
	createArticle(t, server, "Sports", nil)

	resp, err := http.Get(server.URL + "/articles/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []articlemedia.ArticleSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 2)

	searchResp, err := http.Get(server.URL + "/articles/search?q=economie")
	require.NoError(t, err)
	defer searchResp.Body.Close()
	require.Equal(t, http.StatusOK, searchResp.StatusCode)

	var results []articlemedia.ArticleSummary
	require.NoError(t, json.NewDecoder(searchResp.Body).Decode(&results))
	require.Len(t, results, 1)
	assert.Equal(t, "Économie verte", results[0].Title)
}

func TestCommentsAndStats(t *testing.T) {
	server := setupTestServer(t)
	article := createArticle(t, server, "Discussed", nil)

	payload := bytes.NewBufferString(`{"user":"Grace","content":"Great piece"}`)
	resp, err := http.Post(server.URL+"/articles/"+article.ID.String()+"/comments", "application/json", payload)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	commentsResp, err := http.Get(server.URL + "/articles/" + article.ID.String() + "/comments")
	require.NoError(t, err)
	defer commentsResp.Body.Close()

	var comments []articlemedia.Comment
	require.NoError(t, json.NewDecoder(commentsResp.Body).Decode(&comments))
	require.Len(t, comments, 1)
	assert.Equal(t, "Grace", comments[0].AuthorName)

	statsResp, err := http.Get(server.URL + "/stats")
	require.NoError(t, err)
	defer statsResp.Body.Close()
	require.Equal(t, http.StatusOK, statsResp.StatusCode)

	var stats articlemedia.StatsSummary
	require.NoError(t, json.NewDecoder(statsResp.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.TotalArticles)
	assert.Equal(t, int64(1), stats.TotalComments)
}

func TestGetVariant(t *testing.T) {
	server := setupTestServer(t)
	article := createArticle(t, server, "Pictured", []byte("IMG-pic"))

	resp, err := http.Get(server.URL + "/articles/" + article.ID.String() + "/media/thumbnail.webp")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/webp", resp.Header.Get("Content-Type"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "w=300")

	missing, err := http.Get(server.URL + "/articles/" + article.ID.String() + "/media/huge.webp")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	badFormat, err := http.Get(server.URL + "/articles/" + article.ID.String() + "/media/thumbnail.gif")
	require.NoError(t, err)
	badFormat.Body.Close()
	assert.Equal(t, http.StatusBadRequest, badFormat.StatusCode)
}
