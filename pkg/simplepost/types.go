package simplepost

import (
	"time"

	"github.com/google/uuid"
)

// Visibility controls who may see a post.
type Visibility string

// Visibility constants (typed).
const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Post is the root record of the aggregate.
type Post struct {
	ID          int64      `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Date        time.Time  `json:"date"`
	Visibility  Visibility `json:"visibility"`
	UserID      uuid.UUID  `json:"user_id"`
}

// Image is an attachment record pointing at an object in the blob store.
type Image struct {
	ID     int64  `json:"id"`
	PostID int64  `json:"post_id"`
	URL    string `json:"url"`
	Width  *int   `json:"width,omitempty"`
	Height *int   `json:"height,omitempty"`
}

// Paragraph is one block of body text. Index defines reading order.
type Paragraph struct {
	ID      int64  `json:"id"`
	PostID  int64  `json:"post_id"`
	Index   int    `json:"para_index"`
	Content string `json:"content"`
}

// DesiredImage describes an image the caller wants attached to a post.
// The bytes are already in the blob store; URL is the locator handed back
// by the upload.
type DesiredImage struct {
	URL    string `json:"url"`
	Width  *int   `json:"width,omitempty"`
	Height *int   `json:"height,omitempty"`
}

// PostFields is a partial update of a post's scalar fields.
// Nil fields are left untouched.
type PostFields struct {
	Title       *string
	Description *string
	Date        *time.Time
	Visibility  *Visibility
}

// IsEmpty reports whether no field is set.
func (f PostFields) IsEmpty() bool {
	return f.Title == nil && f.Description == nil && f.Date == nil && f.Visibility == nil
}

// PostDetails is the full aggregate as read back from the metadata store.
type PostDetails struct {
	Post
	Images     []*Image     `json:"images"`
	Paragraphs []*Paragraph `json:"body"`
}

// ListPostsParams filters a post listing at the store level.
type ListPostsParams struct {
	UserID     *uuid.UUID
	Visibility *Visibility
	Limit      int
	Offset     int
}
