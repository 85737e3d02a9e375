package simplepost

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Request DTOs

// CreatePostRequest contains parameters for creating a post aggregate.
// Image is the already-uploaded primary image, if any.
type CreatePostRequest struct {
	OwnerID     uuid.UUID
	Title       string
	Description string
	Date        time.Time
	Visibility  Visibility
	Paragraphs  []string
	Image       *DesiredImage
}

// UpdatePostRequest contains the desired state of an existing post.
//
// Title, Date and Visibility are optional: zero values keep the stored
// value. Description is always asserted. Images is the full desired image
// set (empty removes every image) unless SkipImages is set.
type UpdatePostRequest struct {
	Slug        string
	Title       string
	Description string
	Date        time.Time
	Visibility  Visibility
	Paragraphs  []string
	Images      []DesiredImage
	SkipImages  bool
}

// ListPostsRequest contains parameters for listing posts.
type ListPostsRequest struct {
	OwnerID    *uuid.UUID
	Visibility *Visibility
	Limit      int
	Offset     int
}

// DefaultListLimit is used when ListPostsRequest.Limit is not positive.
const DefaultListLimit = 20

func (r CreatePostRequest) validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if Slugify(r.Title) == "" {
		return &ValidationError{Field: "title", Reason: "does not produce a slug"}
	}
	if r.Visibility != "" && !r.Visibility.Valid() {
		return &ValidationError{Field: "visibility", Reason: "must be public or private"}
	}
	if r.Image != nil {
		if err := validateImages([]DesiredImage{*r.Image}); err != nil {
			return err
		}
	}
	return validateParagraphs(r.Paragraphs)
}

func (r UpdatePostRequest) validate() error {
	if strings.TrimSpace(r.Slug) == "" {
		return &ValidationError{Field: "slug", Reason: "is required"}
	}
	if r.Title != "" && strings.TrimSpace(r.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be blank"}
	}
	if r.Visibility != "" && !r.Visibility.Valid() {
		return &ValidationError{Field: "visibility", Reason: "must be public or private"}
	}
	if !r.SkipImages {
		if err := validateImages(r.Images); err != nil {
			return err
		}
	}
	return validateParagraphs(r.Paragraphs)
}

func validateImages(images []DesiredImage) error {
	for _, img := range images {
		if strings.TrimSpace(img.URL) == "" {
			return &ValidationError{Field: "images.url", Reason: "is required"}
		}
		if (img.Width != nil && *img.Width < 0) || (img.Height != nil && *img.Height < 0) {
			return &ValidationError{Field: "images", Reason: "dimensions must not be negative"}
		}
	}
	return nil
}

func validateParagraphs(paragraphs []string) error {
	for _, p := range paragraphs {
		if strings.TrimSpace(p) == "" {
			return &ValidationError{Field: "paragraphs", Reason: "must not contain blank entries"}
		}
	}
	return nil
}
