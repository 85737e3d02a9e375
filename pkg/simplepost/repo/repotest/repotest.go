// Package repotest holds the behavior every simplepost.MetadataStore must share.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-post/pkg/simplepost"
)

// Run exercises store against the MetadataStore contract. newStore must
// return an empty store for every call.
func Run(t *testing.T, newStore func(t *testing.T) simplepost.MetadataStore) {
	t.Run("InsertAndFind", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		post := samplePost("hello-world", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
		require.NoError(t, store.InsertPost(ctx, post))
		assert.NotZero(t, post.ID)

		found, err := store.FindPostBySlug(ctx, "hello-world")
		require.NoError(t, err)
		assert.Equal(t, post.ID, found.ID)
		assert.Equal(t, post.Title, found.Title)
		assert.Equal(t, post.Description, found.Description)
		assert.Equal(t, post.Visibility, found.Visibility)
		assert.Equal(t, post.UserID, found.UserID)
		assert.True(t, post.Date.Equal(found.Date), "date %v != %v", post.Date, found.Date)

		_, err = store.FindPostBySlug(ctx, "missing")
		assert.ErrorIs(t, err, simplepost.ErrPostNotFound)
	})

	t.Run("SlugUniqueness", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.InsertPost(ctx, samplePost("dup", time.Now())))
		err := store.InsertPost(ctx, samplePost("dup", time.Now()))
		assert.ErrorIs(t, err, simplepost.ErrSlugTaken)
	})

	t.Run("UpdatePostFields", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		post := samplePost("fields", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
		require.NoError(t, store.InsertPost(ctx, post))

		title := "Renamed"
		date := time.Date(2024, 2, 2, 12, 0, 0, 0, time.UTC)
		require.NoError(t, store.UpdatePostFields(ctx, post.ID, simplepost.PostFields{Title: &title, Date: &date}))

		found, err := store.FindPostBySlug(ctx, "fields")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", found.Title)
		assert.True(t, date.Equal(found.Date))
		assert.Equal(t, post.Description, found.Description, "untouched fields must survive")
		assert.Equal(t, post.Visibility, found.Visibility)

		desc := "x"
		err = store.UpdatePostFields(ctx, post.ID+1000, simplepost.PostFields{Description: &desc})
		assert.ErrorIs(t, err, simplepost.ErrPostNotFound)
	})

	t.Run("ListPosts", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		owner := uuid.New()

		for i, slug := range []string{"oldest", "middle", "newest"} {
			p := samplePost(slug, base.Add(time.Duration(i)*24*time.Hour))
			if slug == "middle" {
				p.UserID = owner
				p.Visibility = simplepost.VisibilityPrivate
			}
			require.NoError(t, store.InsertPost(ctx, p))
		}

		posts, err := store.ListPosts(ctx, simplepost.ListPostsParams{Limit: 20})
		require.NoError(t, err)
		require.Len(t, posts, 3)
		assert.Equal(t, []string{"newest", "middle", "oldest"}, slugs(posts))

		posts, err = store.ListPosts(ctx, simplepost.ListPostsParams{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"middle"}, slugs(posts))

		posts, err = store.ListPosts(ctx, simplepost.ListPostsParams{UserID: &owner})
		require.NoError(t, err)
		assert.Equal(t, []string{"middle"}, slugs(posts))

		public := simplepost.VisibilityPublic
		posts, err = store.ListPosts(ctx, simplepost.ListPostsParams{Visibility: &public})
		require.NoError(t, err)
		assert.Equal(t, []string{"newest", "oldest"}, slugs(posts))
	})

	t.Run("Images", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		post := samplePost("images", time.Now())
		require.NoError(t, store.InsertPost(ctx, post))

		w, h := 640, 480
		first := &simplepost.Image{PostID: post.ID, URL: "https://cdn.example.com/a.png", Width: &w, Height: &h}
		second := &simplepost.Image{PostID: post.ID, URL: "https://cdn.example.com/b.png"}
		require.NoError(t, store.InsertImage(ctx, first))
		require.NoError(t, store.InsertImage(ctx, second))
		assert.NotZero(t, first.ID)
		assert.NotEqual(t, first.ID, second.ID)

		images, err := store.ListImagesForPost(ctx, post.ID)
		require.NoError(t, err)
		require.Len(t, images, 2)
		assert.Equal(t, first.URL, images[0].URL)
		require.NotNil(t, images[0].Width)
		assert.Equal(t, 640, *images[0].Width)
		assert.Nil(t, images[1].Width)

		require.NoError(t, store.DeleteImage(ctx, first.ID))
		images, err = store.ListImagesForPost(ctx, post.ID)
		require.NoError(t, err)
		require.Len(t, images, 1)
		assert.Equal(t, second.ID, images[0].ID)
	})

	t.Run("Paragraphs", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		post := samplePost("paragraphs", time.Now())
		require.NoError(t, store.InsertPost(ctx, post))

		require.NoError(t, store.InsertParagraphs(ctx, post.ID, []string{"A", "B", "C"}))
		paras, err := store.ListParagraphsForPost(ctx, post.ID)
		require.NoError(t, err)
		require.Len(t, paras, 3)
		for i, p := range paras {
			assert.Equal(t, i, p.Index)
			assert.Equal(t, post.ID, p.PostID)
		}
		assert.Equal(t, "A", paras[0].Content)
		assert.Equal(t, "C", paras[2].Content)

		require.NoError(t, store.DeleteParagraphsForPost(ctx, post.ID))
		paras, err = store.ListParagraphsForPost(ctx, post.ID)
		require.NoError(t, err)
		assert.Empty(t, paras)
	})

	t.Run("DeletePostCascades", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		post := samplePost("cascade", time.Now())
		require.NoError(t, store.InsertPost(ctx, post))
		require.NoError(t, store.InsertImage(ctx, &simplepost.Image{PostID: post.ID, URL: "https://cdn.example.com/c.png"}))
		require.NoError(t, store.InsertParagraphs(ctx, post.ID, []string{"A"}))

		require.NoError(t, store.DeletePost(ctx, post.ID))

		_, err := store.FindPostBySlug(ctx, "cascade")
		assert.ErrorIs(t, err, simplepost.ErrPostNotFound)
		images, err := store.ListImagesForPost(ctx, post.ID)
		require.NoError(t, err)
		assert.Empty(t, images)
		paras, err := store.ListParagraphsForPost(ctx, post.ID)
		require.NoError(t, err)
		assert.Empty(t, paras)

		assert.ErrorIs(t, store.DeletePost(ctx, post.ID), simplepost.ErrPostNotFound)
	})
}

func samplePost(slug string, date time.Time) *simplepost.Post {
	return &simplepost.Post{
		Slug:        slug,
		Title:       "Title " + slug,
		Description: "About " + slug,
		Date:        date,
		Visibility:  simplepost.VisibilityPublic,
		UserID:      uuid.New(),
	}
}

func slugs(posts []*simplepost.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Slug)
	}
	return out
}
