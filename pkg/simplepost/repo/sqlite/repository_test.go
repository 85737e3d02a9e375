package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-post/pkg/simplepost"
	"github.com/tendant/simple-post/pkg/simplepost/repo/repotest"
	"github.com/tendant/simple-post/pkg/simplepost/repo/sqlite"
)

func newTestRepo(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.New(filepath.Join(t.TempDir(), "data", "posts.db"))
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) simplepost.MetadataStore {
		return newTestRepo(t)
	})
}

func TestSQLiteRepository_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.db")
	ctx := context.Background()

	repo, err := sqlite.New(path)
	require.NoError(t, err)
	post := &simplepost.Post{
		Slug:       "persisted",
		Title:      "Persisted",
		Date:       time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Visibility: simplepost.VisibilityPrivate,
		UserID:     uuid.New(),
	}
	require.NoError(t, repo.InsertPost(ctx, post))
	require.NoError(t, repo.Close())

	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	defer reopened.Close()

	found, err := reopened.FindPostBySlug(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, post.ID, found.ID)
	assert.Equal(t, simplepost.VisibilityPrivate, found.Visibility)
	assert.True(t, post.Date.Equal(found.Date))
}

func TestSQLiteRepository_DateOrderingWithFractions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.InsertPost(ctx, &simplepost.Post{Slug: "whole", Title: "w", Date: base, Visibility: simplepost.VisibilityPublic, UserID: uuid.New()}))
	require.NoError(t, repo.InsertPost(ctx, &simplepost.Post{Slug: "later", Title: "l", Date: base.Add(500 * time.Millisecond), Visibility: simplepost.VisibilityPublic, UserID: uuid.New()}))

	posts, err := repo.ListPosts(ctx, simplepost.ListPostsParams{})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "later", posts[0].Slug)
}

func TestSQLiteRepository_ImageRequiresPost(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.InsertImage(context.Background(), &simplepost.Image{PostID: 999, URL: "https://cdn.example.com/x.png"})
	assert.ErrorIs(t, err, simplepost.ErrPostNotFound)
}
