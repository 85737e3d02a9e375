package simplepost

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// ParagraphReplacer rewrites a post's body as a whole.
type ParagraphReplacer struct {
	store MetadataStore
}

// NewParagraphReplacer creates a replacer writing to store.
func NewParagraphReplacer(store MetadataStore) *ParagraphReplacer {
	return &ParagraphReplacer{store: store}
}

// Replace deletes every paragraph of postID and inserts paragraphs with
// indices 0..len-1. Paragraph ids are never preserved across calls.
func (r *ParagraphReplacer) Replace(ctx context.Context, postID int64, paragraphs []string) error {
	if err := r.store.DeleteParagraphsForPost(ctx, postID); err != nil {
		return fmt.Errorf("delete paragraphs: %w", err)
	}
	if len(paragraphs) == 0 {
		return nil
	}
	if err := r.store.InsertParagraphs(ctx, postID, paragraphs); err != nil {
		return fmt.Errorf("insert paragraphs: %w", err)
	}
	return nil
}

var blankLine = regexp.MustCompile(`\n[ \t\r\f\v]*\n`)

// SplitParagraphs splits free text into paragraphs on blank lines,
// trimming each and dropping empty ones.
func SplitParagraphs(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	var out []string
	for _, part := range blankLine.Split(body, -1) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
