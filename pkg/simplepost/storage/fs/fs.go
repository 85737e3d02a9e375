package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-post/pkg/simplepost"
	"github.com/tendant/simple-post/pkg/simplepost/objecturl"
)

// DefaultBaseURL is used for public URLs when the layout has no base.
const DefaultBaseURL = "http://localhost:8080/files"

var _ simplepost.ObjectStore = (*Backend)(nil)

// Backend is a filesystem implementation of the simplepost.ObjectStore interface
type Backend struct {
	baseDir string
	layout  objecturl.Layout
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string           // Base directory for storing files
	Layout  objecturl.Layout // Public URL layout the files are served under
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	if config.Layout.BaseURL == "" {
		config.Layout.BaseURL = DefaultBaseURL
	}

	return &Backend{
		baseDir: filepath.Clean(config.BaseDir),
		layout:  config.Layout,
	}, nil
}

// BaseDir returns the directory objects are stored under
func (b *Backend) BaseDir() string {
	return b.baseDir
}

// PutObject writes the content to the filesystem and returns its public URL
func (b *Backend) PutObject(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	filePath, err := b.pathFor(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return b.layout.PublicURL(key), nil
}

// RemoveObject deletes the file and prunes empty parent directories
func (b *Backend) RemoveObject(ctx context.Context, key string) error {
	filePath, err := b.pathFor(key)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return simplepost.ErrObjectNotFound
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// ResolveKeyFromPublicURL maps a URL produced by PutObject back to its key
func (b *Backend) ResolveKeyFromPublicURL(publicURL string) (string, bool) {
	key, ok := b.layout.ResolveKey(publicURL)
	if !ok {
		return "", false
	}
	if _, err := b.pathFor(key); err != nil {
		return "", false
	}
	return key, true
}

// pathFor maps key to a file path inside baseDir
func (b *Backend) pathFor(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(b.baseDir, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir || !strings.HasPrefix(dir, b.baseDir) {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
