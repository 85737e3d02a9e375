package simplepost

import (
	"errors"
	"fmt"
	"strings"
)

// Error types
var (
	// ErrPostNotFound indicates no post matches the requested slug or id
	ErrPostNotFound = errors.New("post not found")

	// ErrSlugTaken is returned by a MetadataStore when inserting a post
	// would violate slug uniqueness
	ErrSlugTaken = errors.New("slug already taken")

	// ErrAllocationExhausted indicates no free slug was found within the candidate bound
	ErrAllocationExhausted = errors.New("slug allocation exhausted")

	// ErrInvalidInput indicates a request failed validation
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageFailure indicates a single store call failed
	ErrStorageFailure = errors.New("storage failure")

	// ErrPartialFailure indicates a multi-item step had some items fail
	ErrPartialFailure = errors.New("partial failure")

	// ErrObjectNotFound is returned by a BlobStore when the key does not exist
	ErrObjectNotFound = errors.New("object not found")
)

// Phase names a step of an aggregate mutation.
type Phase string

// Mutation phases.
const (
	PhaseValidate   Phase = "validate"
	PhaseLookup     Phase = "lookup"
	PhaseSlug       Phase = "slug"
	PhaseInsertPost Phase = "insert_post"
	PhaseImages     Phase = "images"
	PhaseParagraphs Phase = "paragraphs"
	PhaseFields     Phase = "fields"
	PhaseDeletePost Phase = "delete_post"
)

// ValidationError reports a malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// PhaseError reports which phase of an aggregate operation failed.
type PhaseError struct {
	Op    string
	Phase Phase
	Slug  string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("post operation %s failed in phase %s for slug %q: %v", e.Op, e.Phase, e.Slug, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Is makes a PhaseError match ErrStorageFailure unless it wraps one of the
// other error kinds.
func (e *PhaseError) Is(target error) bool {
	if target != ErrStorageFailure {
		return false
	}
	return !errors.Is(e.Err, ErrPostNotFound) &&
		!errors.Is(e.Err, ErrInvalidInput) &&
		!errors.Is(e.Err, ErrAllocationExhausted)
}

// StorageError represents an error related to blob storage operations
type StorageError struct {
	Key string
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// PartialFailure lists the items of a completed mutation whose cleanup or
// insertion failed. The mutation itself was not rolled back.
type PartialFailure struct {
	Op       string
	Slug     string
	Failures []ItemOutcome
}

func (e *PartialFailure) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("post operation %s for slug %q completed with %d failed item(s): %s",
		e.Op, e.Slug, len(e.Failures), strings.Join(parts, "; "))
}

func (e *PartialFailure) Is(target error) bool {
	return target == ErrPartialFailure
}

// Unwrap exposes the individual item errors.
func (e *PartialFailure) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}
