package articlemedia_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressmill/article-media/pkg/articlemedia"
	memorycache "github.com/pressmill/article-media/pkg/articlemedia/cache/memory"
	"github.com/pressmill/article-media/pkg/articlemedia/repo/memory"
	memorystorage "github.com/pressmill/article-media/pkg/articlemedia/storage/memory"
)

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     []articlemedia.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     []articlemedia.Option{},
			expectError: true,
		},
		{
			name: "missing cache should fail",
			options: []articlemedia.Option{
				articlemedia.WithRepository(memory.New()),
				articlemedia.WithBlobStore(memorystorage.New()),
				articlemedia.WithCodec(newStubCodec(2000)),
			},
			expectError: true,
		},
		{
			name: "all dependencies should succeed",
			options: []articlemedia.Option{
				articlemedia.WithRepository(memory.New()),
				articlemedia.WithBlobStore(memorystorage.New()),
				articlemedia.WithCodec(newStubCodec(2000)),
				articlemedia.WithCache(memorycache.New()),
			},
			expectError: false,
		},
		{
			name: "invalid variant spec should fail",
			options: []articlemedia.Option{
				articlemedia.WithRepository(memory.New()),
				articlemedia.WithBlobStore(memorystorage.New()),
				articlemedia.WithCodec(newStubCodec(2000)),
				articlemedia.WithCache(memorycache.New()),
				articlemedia.WithVariantSpec(articlemedia.VariantSpec{}),
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := articlemedia.New(tt.options...)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

type testEnv struct {
	svc   articlemedia.Service
	store *memorystorage.Backend
	codec *stubCodec
}

func setupTestService(t *testing.T) *testEnv {
	t.Helper()

	store := memorystorage.New()
	codec := newStubCodec(2000)

	svc, err := articlemedia.New(
		articlemedia.WithRepository(memory.New()),
		articlemedia.WithBlobStore(store),
		articlemedia.WithCodec(codec),
		articlemedia.WithCache(memorycache.New()),
	)
	require.NoError(t, err)

	return &testEnv{svc: svc, store: store, codec: codec}
}

func createTestArticle(t *testing.T, env *testEnv, title string, image []byte) *articlemedia.Article {
	t.Helper()

	article, err := env.svc.CreateArticle(context.Background(), articlemedia.CreateArticleRequest{
		Title:      title,
		Content:    "Body of " + title,
		AuthorID:   uuid.New(),
		AuthorName: "Ada",
		Image:      image,
	})
	require.NoError(t, err)
	return article
}

func TestCreateArticleWithImage(t *testing.T) {
	env := setupTestService(t)
	spec := articlemedia.DefaultVariantSpec()

	article := createTestArticle(t, env, "First", []byte("IMG-first"))

	assert.True(t, article.Manifest.Complete(spec))
	assert.Len(t, env.store.Paths(), spec.VariantCount())

	got, err := env.svc.GetArticle(context.Background(), article.ID)
	require.NoError(t, err)
	assert.Equal(t, article.Manifest, got.Manifest)
}

func TestCreateArticleWithoutImage(t *testing.T) {
	env := setupTestService(t)

	article := createTestArticle(t, env, "Plain", nil)

	assert.True(t, article.Manifest.IsEmpty())
	assert.Empty(t, env.store.Paths())
}

func TestCreateArticleValidation(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  articlemedia.CreateArticleRequest
	}{
		{"missing title", articlemedia.CreateArticleRequest{Content: "c", AuthorID: uuid.New(), AuthorName: "a"}},
		{"missing content", articlemedia.CreateArticleRequest{Title: "t", AuthorID: uuid.New(), AuthorName: "a"}},
		{"missing author id", articlemedia.CreateArticleRequest{Title: "t", Content: "c", AuthorName: "a"}},
		{"missing author name", articlemedia.CreateArticleRequest{Title: "t", Content: "c", AuthorID: uuid.New()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.CreateArticle(ctx, tt.req)

			var validationErr *articlemedia.ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestCreateArticleFailedGenerationCommitsNothing(t *testing.T) {
	env := setupTestService(t)
	env.codec.failOn(1200, articlemedia.FormatWebP, fmt.Errorf("boom"))

	_, err := env.svc.CreateArticle(context.Background(), articlemedia.CreateArticleRequest{
		Title:      "Doomed",
		Content:    "c",
		AuthorID:   uuid.New(),
		AuthorName: "Ada",
		Image:      []byte("IMG-doomed"),
	})

	var genErr *articlemedia.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Empty(t, env.store.Paths(), "failed create must leave no blobs behind")

	list, err := env.svc.GetArticleList(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list, "failed create must not commit the article")
}

func TestUpdateArticleReplacesMediaWholesale(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	spec := articlemedia.DefaultVariantSpec()

	article := createTestArticle(t, env, "Swap", []byte("IMG-old"))
	oldPaths := article.Manifest.Paths()

	updated, err := env.svc.UpdateArticle(ctx, articlemedia.UpdateArticleRequest{
		ID:    article.ID,
		Image: []byte("IMG-new"),
	})
	require.NoError(t, err)

	assert.True(t, updated.Manifest.Complete(spec))
	assert.Len(t, env.store.Paths(), spec.VariantCount(), "old blobs must be deleted after the swap")

	for _, path := range oldPaths {
		_, err := env.store.Download(ctx, path)
		assert.ErrorIs(t, err, articlemedia.ErrBlobNotFound, "superseded blob %s must be gone", path)
	}
	for _, path := range updated.Manifest.Paths() {
		rc, err := env.store.Download(ctx, path)
		require.NoError(t, err)
		rc.Close()
	}
}

func TestUpdateArticleFieldsOnlyKeepsManifest(t *testing.T) {
	env := setupTestService(t)

	article := createTestArticle(t, env, "Stable", []byte("IMG-keep"))
	newTitle := "Renamed"

	updated, err := env.svc.UpdateArticle(context.Background(), articlemedia.UpdateArticleRequest{
		ID:    article.ID,
		Title: &newTitle,
	})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, article.Manifest, updated.Manifest)
	assert.Len(t, env.store.Paths(), articlemedia.DefaultVariantSpec().VariantCount())
}

func TestUpdateArticleFailedGenerationKeepsOldMedia(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	article := createTestArticle(t, env, "Resilient", []byte("IMG-old"))
	env.codec.failOn(300, articlemedia.FormatJPEG, fmt.Errorf("boom"))

	_, err := env.svc.UpdateArticle(ctx, articlemedia.UpdateArticleRequest{
		ID:    article.ID,
		Image: []byte("IMG-new"),
	})
	require.Error(t, err)

	got, err := env.svc.GetArticle(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, article.Manifest, got.Manifest, "old manifest must remain current")

	for _, path := range article.Manifest.Paths() {
		rc, err := env.store.Download(ctx, path)
		require.NoError(t, err, "old blob %s must survive a failed update", path)
		rc.Close()
	}
	assert.Len(t, env.store.Paths(), len(article.Manifest.Paths()))
}

func TestUpdateArticleNotFound(t *testing.T) {
	env := setupTestService(t)

	_, err := env.svc.UpdateArticle(context.Background(), articlemedia.UpdateArticleRequest{ID: uuid.New()})
	assert.ErrorIs(t, err, articlemedia.ErrArticleNotFound)
}

func TestDeleteArticleRemovesRecordAndBlobs(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	article := createTestArticle(t, env, "Gone", []byte("IMG-gone"))

	require.NoError(t, env.svc.DeleteArticle(ctx, article.ID))

	_, err := env.svc.GetArticle(ctx, article.ID)
	assert.ErrorIs(t, err, articlemedia.ErrArticleNotFound)
	assert.Empty(t, env.store.Paths())

	assert.ErrorIs(t, env.svc.DeleteArticle(ctx, article.ID), articlemedia.ErrArticleNotFound)
}

func TestListReflectsMutationsImmediately(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	createTestArticle(t, env, "One", nil)

	list, err := env.svc.GetArticleList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// The listing is now cached; the create below must invalidate it
	// before returning.
	article := createTestArticle(t, env, "Two", nil)

	list, err = env.svc.GetArticleList(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, env.svc.DeleteArticle(ctx, article.ID))

	list, err = env.svc.GetArticleList(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, "One", list[0].Title)
}

func TestStatsReflectCommentsImmediately(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	article := createTestArticle(t, env, "Discussed", nil)

	stats, err := env.svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalArticles)
	assert.Equal(t, int64(0), stats.TotalComments)

	_, err = env.svc.AddComment(ctx, articlemedia.AddCommentRequest{
		ArticleID:  article.ID,
		AuthorName: "Grace",
		Content:    "Nice read",
	})
	require.NoError(t, err)

	stats, err = env.svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalComments)
	require.NotEmpty(t, stats.MostCommented)
	assert.Equal(t, article.ID, stats.MostCommented[0].ID)

	list, err := env.svc.GetArticleList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].CommentsCount, "listing embeds comment counts")
}

func TestAddCommentToMissingArticle(t *testing.T) {
	env := setupTestService(t)

	_, err := env.svc.AddComment(context.Background(), articlemedia.AddCommentRequest{
		ArticleID:  uuid.New(),
		AuthorName: "Grace",
		Content:    "Hello?",
	})
	assert.ErrorIs(t, err, articlemedia.ErrArticleNotFound)
}

func TestSearchArticlesFoldsAccents(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	createTestArticle(t, env, "Économie circulaire", nil)
	createTestArticle(t, env, "Sports", nil)

	results, err := env.svc.SearchArticles(ctx, "economie")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Économie circulaire", results[0].Title)

	results, err = env.svc.SearchArticles(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestOpenVariant(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	article := createTestArticle(t, env, "Pictured", []byte("IMG-pic"))

	rc, meta, err := env.svc.OpenVariant(ctx, article.ID, "thumbnail", articlemedia.FormatWebP)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(data), "w=300")
	assert.Contains(t, string(data), "f=webp")
	require.NotNil(t, meta)
	assert.Equal(t, int64(len(data)), meta.Size)

	_, _, err = env.svc.OpenVariant(ctx, article.ID, "huge", articlemedia.FormatWebP)
	assert.ErrorIs(t, err, articlemedia.ErrVariantNotFound)
}

func TestOpenVariantWithoutMedia(t *testing.T) {
	env := setupTestService(t)

	article := createTestArticle(t, env, "Textual", nil)

	_, _, err := env.svc.OpenVariant(context.Background(), article.ID, "thumbnail", articlemedia.FormatWebP)
	assert.ErrorIs(t, err, articlemedia.ErrVariantNotFound)
}

func TestConcurrentUpdatesOnSameArticle(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	spec := articlemedia.DefaultVariantSpec()

	article := createTestArticle(t, env, "Contended", []byte("IMG-base"))

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.UpdateArticle(ctx, articlemedia.UpdateArticleRequest{
				ID:    article.ID,
				Image: []byte(fmt.Sprintf("IMG-%d", i)),
			})
		}(i)
	}
	wg.Wait()

	// Mutations on one article are serialized, so every writer commits in
	// turn and none observes a version conflict.
	for i, err := range errs {
		assert.NoError(t, err, "writer %d", i)
	}

	got, err := env.svc.GetArticle(ctx, article.ID)
	require.NoError(t, err)
	assert.True(t, got.Manifest.Complete(spec))

	// Exactly one manifest's worth of blobs survives; every superseded set
	// was cleaned up.
	assert.Len(t, env.store.Paths(), spec.VariantCount())
	for _, path := range got.Manifest.Paths() {
		rc, err := env.store.Download(ctx, path)
		require.NoError(t, err)
		rc.Close()
	}
}

func TestListComments(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	article := createTestArticle(t, env, "Threaded", nil)
	for i := 0; i < 3; i++ {
		_, err := env.svc.AddComment(ctx, articlemedia.AddCommentRequest{
			ArticleID:  article.ID,
			AuthorName: "Grace",
			Content:    fmt.Sprintf("comment %d", i),
		})
		require.NoError(t, err)
	}

	comments, err := env.svc.ListComments(ctx, article.ID)
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, "comment 0", comments[0].Content, "oldest first")

	_, err = env.svc.ListComments(ctx, uuid.New())
	assert.ErrorIs(t, err, articlemedia.ErrArticleNotFound)
}
