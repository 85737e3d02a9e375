package gcs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/tendant/simple-post/pkg/simplepost"
	"github.com/tendant/simple-post/pkg/simplepost/objecturl"
)

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket name is required")
}

func TestDefaultLayout(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{"public endpoint", Config{Bucket: "blog-pictures"}, "https://storage.googleapis.com/blog-pictures"},
		{"emulator", Config{Bucket: "blog-pictures", EmulatorHost: "http://localhost:4443/"}, "http://localhost:4443/blog-pictures"},
		{"explicit", Config{Bucket: "b", Layout: objecturl.Layout{BaseURL: "https://cdn.example.com"}}, "https://cdn.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultLayout(tt.config).BaseURL)
		})
	}
}

func TestResolveKeyFromPublicURL(t *testing.T) {
	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()

	backend := NewWithClient(client, Config{Bucket: "blog-pictures"})

	key, ok := backend.ResolveKeyFromPublicURL("https://storage.googleapis.com/blog-pictures/posts/1.png")
	assert.True(t, ok)
	assert.Equal(t, "posts/1.png", key)

	_, ok = backend.ResolveKeyFromPublicURL("https://storage.googleapis.com/other-bucket/posts/1.png")
	assert.False(t, ok)
}

// TestGCSBackend_Integration runs against fake-gcs-server when GCS_EMULATOR_HOST is set
func TestGCSBackend_Integration(t *testing.T) {
	host := os.Getenv("GCS_EMULATOR_HOST")
	bucket := os.Getenv("GCS_BUCKET")
	if host == "" || bucket == "" {
		t.Skip("Skipping integration test: GCS_EMULATOR_HOST or GCS_BUCKET not set")
	}

	ctx := context.Background()
	backend, err := New(ctx, Config{Bucket: bucket, EmulatorHost: host})
	require.NoError(t, err)
	defer backend.Close()

	key := fmt.Sprintf("test/%d.png", time.Now().UnixNano())
	url, err := backend.PutObject(ctx, key, bytes.NewReader([]byte("png")), "image/png")
	require.NoError(t, err)

	resolved, ok := backend.ResolveKeyFromPublicURL(url)
	require.True(t, ok)
	assert.Equal(t, key, resolved)

	require.NoError(t, backend.RemoveObject(ctx, key))
	assert.ErrorIs(t, backend.RemoveObject(ctx, key), simplepost.ErrObjectNotFound)
}
