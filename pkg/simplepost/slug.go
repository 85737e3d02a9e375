package simplepost

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Whitespace covers the Unicode separators and BOM as well as ASCII \s,
// so a non-breaking space separates words like a plain one.
var (
	slugDisallowed = regexp.MustCompile(`[^\w\s\v\p{Z}\x{FEFF}-]`)
	slugSpaces     = regexp.MustCompile(`[\s\v\p{Z}\x{FEFF}]+`)
)

// Slugify derives the base slug for a title: lowercase, characters other
// than letters, digits, underscore, whitespace and hyphen dropped, and
// whitespace runs collapsed to a single hyphen.
func Slugify(title string) string {
	s := strings.ToLower(title)
	s = slugDisallowed.ReplaceAllString(s, "")
	s = strings.TrimFunc(s, isSlugSpace)
	return slugSpaces.ReplaceAllString(s, "-")
}

func isSlugSpace(r rune) bool {
	return unicode.IsSpace(r) || unicode.Is(unicode.Z, r) || r == '\uFEFF'
}

// DefaultMaxSlugAttempts bounds the number of candidates checked per allocation.
const DefaultMaxSlugAttempts = 1000

// SlugAllocator finds an unused slug by probing the metadata store.
// It does not reserve anything: two callers may receive the same slug, and
// the store's uniqueness constraint decides which insert wins.
type SlugAllocator struct {
	store       MetadataStore
	maxAttempts int
}

// NewSlugAllocator creates an allocator probing store. maxAttempts <= 0
// selects DefaultMaxSlugAttempts.
func NewSlugAllocator(store MetadataStore, maxAttempts int) *SlugAllocator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxSlugAttempts
	}
	return &SlugAllocator{store: store, maxAttempts: maxAttempts}
}

// Allocate returns base if it is free, otherwise the first free base-N.
func (a *SlugAllocator) Allocate(ctx context.Context, base string) (string, error) {
	slug, _, err := a.AllocateFrom(ctx, base, 0)
	return slug, err
}

// AllocateFrom checks candidates starting at suffix start (0 means the bare
// base). It returns the free slug and the suffix to resume from if that slug
// turns out to be taken at insert time.
func (a *SlugAllocator) AllocateFrom(ctx context.Context, base string, start int) (string, int, error) {
	if base == "" {
		return "", start, &ValidationError{Field: "slug", Reason: "base slug is empty"}
	}
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		n := start + attempt
		candidate := candidateSlug(base, n)

		_, err := a.store.FindPostBySlug(ctx, candidate)
		if errors.Is(err, ErrPostNotFound) {
			return candidate, n + 1, nil
		}
		if err != nil {
			return "", n, fmt.Errorf("check slug %q: %w", candidate, err)
		}
	}
	return "", start + a.maxAttempts, fmt.Errorf("%w: %q after %d attempts", ErrAllocationExhausted, base, a.maxAttempts)
}

func candidateSlug(base string, n int) string {
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n)
}
