package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"github.com/tendant/simple-post/pkg/simplepost"
	"github.com/tendant/simple-post/pkg/simplepost/objecturl"
)

// DefaultBaseURL is used for public URLs when no layout base is configured.
const DefaultBaseURL = "memory://blobs"

var _ simplepost.ObjectStore = (*Backend)(nil)

// Backend is an in-memory implementation of the simplepost.ObjectStore interface
type Backend struct {
	mu           sync.RWMutex
	objects      map[string][]byte
	contentTypes map[string]string
	layout       objecturl.Layout
}

// New creates a new in-memory storage backend. A zero layout serves objects
// under DefaultBaseURL.
func New(layout objecturl.Layout) *Backend {
	if layout.BaseURL == "" {
		layout.BaseURL = DefaultBaseURL
	}
	return &Backend{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
		layout:       layout,
	}
}

// PutObject stores the content and returns its public URL
func (b *Backend) PutObject(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = data
	b.contentTypes[key] = contentType
	return b.layout.PublicURL(key), nil
}

// RemoveObject deletes the object
func (b *Backend) RemoveObject(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; !exists {
		return simplepost.ErrObjectNotFound
	}
	delete(b.objects, key)
	delete(b.contentTypes, key)
	return nil
}

// ResolveKeyFromPublicURL maps a URL produced by PutObject back to its key
func (b *Backend) ResolveKeyFromPublicURL(publicURL string) (string, bool) {
	return b.layout.ResolveKey(publicURL)
}

// Get returns a reader over the stored object
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[key]
	if !exists {
		return nil, simplepost.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Exists reports whether key is stored
func (b *Backend) Exists(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, exists := b.objects[key]
	return exists
}

// Keys returns the stored keys in sorted order
func (b *Backend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
