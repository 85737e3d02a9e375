package simplepost

import (
	"context"
	"io"
)

// MetadataStore defines row-level persistence for posts, images and
// paragraphs. Implementations enforce slug uniqueness and nothing else;
// cross-record invariants are the engine's job.
type MetadataStore interface {
	// Post operations
	FindPostBySlug(ctx context.Context, slug string) (*Post, error)
	// InsertPost assigns post.ID. It returns ErrSlugTaken when the slug is in use.
	InsertPost(ctx context.Context, post *Post) error
	UpdatePostFields(ctx context.Context, id int64, fields PostFields) error
	DeletePost(ctx context.Context, id int64) error
	ListPosts(ctx context.Context, params ListPostsParams) ([]*Post, error)

	// Image operations
	ListImagesForPost(ctx context.Context, postID int64) ([]*Image, error)
	// InsertImage assigns image.ID.
	InsertImage(ctx context.Context, image *Image) error
	DeleteImage(ctx context.Context, id int64) error

	// Paragraph operations
	ListParagraphsForPost(ctx context.Context, postID int64) ([]*Paragraph, error)
	InsertParagraphs(ctx context.Context, postID int64, contents []string) error
	DeleteParagraphsForPost(ctx context.Context, postID int64) error
}

// BlobStore defines what the engine needs from the object store holding
// image bytes. Uploads happen before the engine is called.
type BlobStore interface {
	// RemoveObject deletes the object. Missing keys return ErrObjectNotFound.
	RemoveObject(ctx context.Context, key string) error

	// ResolveKeyFromPublicURL maps a public URL produced by this store back
	// to its object key. It reports false for URLs the store does not own.
	ResolveKeyFromPublicURL(publicURL string) (string, bool)
}

// Uploader writes image bytes and hands back the URL that later goes into
// a DesiredImage.
type Uploader interface {
	// PutObject stores the content under key and returns its public URL
	PutObject(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)
}

// ObjectStore is implemented by every storage backend.
type ObjectStore interface {
	BlobStore
	Uploader
}

// Locker serializes mutations per key.
type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned func releases it.
	Lock(ctx context.Context, key string) (func(), error)
}

// EventSink defines the interface for event handling
type EventSink interface {
	// PostCreated is fired when a post is created
	PostCreated(ctx context.Context, post *Post) error

	// PostUpdated is fired when a post is updated
	PostUpdated(ctx context.Context, post *Post, report *MutationReport) error

	// PostDeleted is fired when a post is deleted
	PostDeleted(ctx context.Context, post *Post, report *MutationReport) error
}
