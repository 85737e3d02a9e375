package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tendant/simple-post/pkg/simplepost"
)

// Repository implements simplepost.MetadataStore using in-memory storage.
// Deleting a post cascades to its images and paragraphs, like the SQL schemas.
type Repository struct {
	mu         sync.RWMutex
	posts      map[int64]*simplepost.Post
	slugs      map[string]int64 // slug -> post_id
	images     map[int64]*simplepost.Image
	paragraphs map[int64]*simplepost.Paragraph

	nextPostID      int64
	nextImageID     int64
	nextParagraphID int64
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		posts:      make(map[int64]*simplepost.Post),
		slugs:      make(map[string]int64),
		images:     make(map[int64]*simplepost.Image),
		paragraphs: make(map[int64]*simplepost.Paragraph),
	}
}

// Post operations

func (r *Repository) FindPostBySlug(ctx context.Context, slug string) (*simplepost.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.slugs[slug]
	if !exists {
		return nil, simplepost.ErrPostNotFound
	}
	postCopy := *r.posts[id]
	return &postCopy, nil
}

func (r *Repository) InsertPost(ctx context.Context, post *simplepost.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.slugs[post.Slug]; taken {
		return simplepost.ErrSlugTaken
	}

	r.nextPostID++
	post.ID = r.nextPostID
	postCopy := *post
	r.posts[post.ID] = &postCopy
	r.slugs[post.Slug] = post.ID
	return nil
}

func (r *Repository) UpdatePostFields(ctx context.Context, id int64, fields simplepost.PostFields) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, exists := r.posts[id]
	if !exists {
		return simplepost.ErrPostNotFound
	}
	if fields.Title != nil {
		post.Title = *fields.Title
	}
	if fields.Description != nil {
		post.Description = *fields.Description
	}
	if fields.Date != nil {
		post.Date = *fields.Date
	}
	if fields.Visibility != nil {
		post.Visibility = *fields.Visibility
	}
	return nil
}

func (r *Repository) DeletePost(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, exists := r.posts[id]
	if !exists {
		return simplepost.ErrPostNotFound
	}
	delete(r.slugs, post.Slug)
	delete(r.posts, id)

	for imgID, img := range r.images {
		if img.PostID == id {
			delete(r.images, imgID)
		}
	}
	for paraID, p := range r.paragraphs {
		if p.PostID == id {
			delete(r.paragraphs, paraID)
		}
	}
	return nil
}

func (r *Repository) ListPosts(ctx context.Context, params simplepost.ListPostsParams) ([]*simplepost.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*simplepost.Post
	for _, post := range r.posts {
		if params.UserID != nil && post.UserID != *params.UserID {
			continue
		}
		if params.Visibility != nil && post.Visibility != *params.Visibility {
			continue
		}
		postCopy := *post
		result = append(result, &postCopy)
	}

	// Sort by date descending, newest id first on ties
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].ID > result[j].ID
	})

	if params.Offset > 0 {
		if params.Offset >= len(result) {
			return nil, nil
		}
		result = result[params.Offset:]
	}
	if params.Limit > 0 && len(result) > params.Limit {
		result = result[:params.Limit]
	}
	return result, nil
}

// Image operations

func (r *Repository) ListImagesForPost(ctx context.Context, postID int64) ([]*simplepost.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*simplepost.Image
	for _, img := range r.images {
		if img.PostID == postID {
			imgCopy := *img
			result = append(result, &imgCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *Repository) InsertImage(ctx context.Context, image *simplepost.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.posts[image.PostID]; !exists {
		return simplepost.ErrPostNotFound
	}

	r.nextImageID++
	image.ID = r.nextImageID
	imgCopy := *image
	r.images[image.ID] = &imgCopy
	return nil
}

func (r *Repository) DeleteImage(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.images, id)
	return nil
}

// Paragraph operations

func (r *Repository) ListParagraphsForPost(ctx context.Context, postID int64) ([]*simplepost.Paragraph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*simplepost.Paragraph
	for _, p := range r.paragraphs {
		if p.PostID == postID {
			pCopy := *p
			result = append(result, &pCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Index != result[j].Index {
			return result[i].Index < result[j].Index
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *Repository) InsertParagraphs(ctx context.Context, postID int64, contents []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.posts[postID]; !exists {
		return simplepost.ErrPostNotFound
	}
	for i, content := range contents {
		r.nextParagraphID++
		r.paragraphs[r.nextParagraphID] = &simplepost.Paragraph{
			ID:      r.nextParagraphID,
			PostID:  postID,
			Index:   i,
			Content: content,
		}
	}
	return nil
}

func (r *Repository) DeleteParagraphsForPost(ctx context.Context, postID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, p := range r.paragraphs {
		if p.PostID == postID {
			delete(r.paragraphs, id)
		}
	}
	return nil
}
