package memory_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-post/pkg/simplepost"
	"github.com/tendant/simple-post/pkg/simplepost/objecturl"
	memorystorage "github.com/tendant/simple-post/pkg/simplepost/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New(objecturl.Layout{})
	ctx := context.Background()
	testKey := "posts/hello.png"
	testData := "not really a png"

	var publicURL string

	t.Run("PutObject", func(t *testing.T) {
		url, err := backend.PutObject(ctx, testKey, strings.NewReader(testData), "image/png")
		require.NoError(t, err)
		assert.Equal(t, "memory://blobs/posts/hello.png", url)
		assert.True(t, backend.Exists(testKey))
		publicURL = url
	})

	t.Run("Get", func(t *testing.T) {
		rc, err := backend.Get(ctx, testKey)
		require.NoError(t, err)
		defer rc.Close()

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, testData, string(data))
	})

	t.Run("ResolveKeyFromPublicURL", func(t *testing.T) {
		key, ok := backend.ResolveKeyFromPublicURL(publicURL)
		assert.True(t, ok)
		assert.Equal(t, testKey, key)

		_, ok = backend.ResolveKeyFromPublicURL("https://elsewhere.example.com/posts/hello.png")
		assert.False(t, ok)
	})

	t.Run("RemoveObject", func(t *testing.T) {
		require.NoError(t, backend.RemoveObject(ctx, testKey))
		assert.False(t, backend.Exists(testKey))
		assert.Empty(t, backend.Keys())
	})

	t.Run("RemoveMissingObject", func(t *testing.T) {
		err := backend.RemoveObject(ctx, testKey)
		assert.ErrorIs(t, err, simplepost.ErrObjectNotFound)

		_, err = backend.Get(ctx, testKey)
		assert.ErrorIs(t, err, simplepost.ErrObjectNotFound)
	})
}

func TestMemoryBackendRoutedLayout(t *testing.T) {
	backend := memorystorage.New(objecturl.Layout{
		BaseURL:        "https://abc.supabase.co/storage/v1",
		RoutingSegment: "object",
		AccessSegment:  "public",
		Bucket:         "blog-pictures",
	})

	url, err := backend.PutObject(context.Background(), "k.jpg", strings.NewReader("x"), "")
	require.NoError(t, err)
	assert.Equal(t, "https://abc.supabase.co/storage/v1/object/public/blog-pictures/k.jpg", url)

	key, ok := backend.ResolveKeyFromPublicURL(url)
	assert.True(t, ok)
	assert.Equal(t, "k.jpg", key)
}
