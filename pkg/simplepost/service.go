package simplepost

import (
	"context"
)

// Service defines the aggregate API over posts, their images and their body
// paragraphs.
type Service interface {
	// Mutations
	Create(ctx context.Context, req CreatePostRequest) (*CreatePostResult, error)
	Update(ctx context.Context, req UpdatePostRequest) (*MutationReport, error)
	Delete(ctx context.Context, slug string) (*MutationReport, error)

	// Reads
	Get(ctx context.Context, slug string) (*PostDetails, error)
	List(ctx context.Context, req ListPostsRequest) ([]*PostDetails, error)
}
