package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/tendant/simple-post/pkg/simplepost"
	"github.com/tendant/simple-post/pkg/simplepost/objecturl"
)

// Config options for the Google Cloud Storage backend
type Config struct {
	Bucket          string // GCS bucket name
	CredentialsFile string // Optional service account JSON path; empty uses ADC
	EmulatorHost    string // Optional fake-gcs-server endpoint, e.g. http://localhost:4443

	// Layout of public URLs. When BaseURL is empty it defaults to
	// https://storage.googleapis.com/<bucket> (or <emulator>/<bucket>).
	Layout objecturl.Layout
}

var _ simplepost.ObjectStore = (*Backend)(nil)

// Backend is a GCS implementation of the simplepost.ObjectStore interface
type Backend struct {
	client *storage.Client
	bucket string
	layout objecturl.Layout
}

// New creates a new GCS storage backend
func New(ctx context.Context, config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	var opts []option.ClientOption
	switch {
	case config.EmulatorHost != "":
		_ = os.Setenv("STORAGE_EMULATOR_HOST", strings.TrimRight(config.EmulatorHost, "/"))
		opts = append(opts, option.WithoutAuthentication())
	case config.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile), option.WithScopes(storage.ScopeReadWrite))
	default:
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return NewWithClient(client, config), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *storage.Client, config Config) *Backend {
	return &Backend{
		client: client,
		bucket: config.Bucket,
		layout: DefaultLayout(config),
	}
}

// DefaultLayout returns config.Layout with BaseURL filled in when unset.
func DefaultLayout(config Config) objecturl.Layout {
	layout := config.Layout
	if layout.BaseURL != "" {
		return layout
	}
	host := "https://storage.googleapis.com"
	if config.EmulatorHost != "" {
		host = strings.TrimRight(config.EmulatorHost, "/")
	}
	layout.BaseURL = host + "/" + config.Bucket
	return layout
}

// PutObject writes the content to the bucket and returns its public URL
func (b *Backend) PutObject(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, reader); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return b.layout.PublicURL(key), nil
}

// RemoveObject deletes the object from the bucket
func (b *Backend) RemoveObject(ctx context.Context, key string) error {
	if err := b.client.Bucket(b.bucket).Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return simplepost.ErrObjectNotFound
		}
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, b.bucket, err)
	}
	return nil
}

// ResolveKeyFromPublicURL maps a public URL back to its object key
func (b *Backend) ResolveKeyFromPublicURL(publicURL string) (string, bool) {
	return b.layout.ResolveKey(publicURL)
}

// Close releases the underlying client
func (b *Backend) Close() error {
	return b.client.Close()
}
