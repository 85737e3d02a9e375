package simplepost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultRemovalConcurrency bounds parallel blob removals within one mutation.
	DefaultRemovalConcurrency = 4
	// DefaultMaxInsertRetries bounds how often Create re-allocates after losing a slug race.
	DefaultMaxInsertRetries = 5
)

// service implements the Service interface
type service struct {
	store              MetadataStore
	blobs              BlobStore
	locker             Locker
	eventSink          EventSink
	logger             *slog.Logger
	removalConcurrency int
	maxSlugAttempts    int
	maxInsertRetries   int
	now                func() time.Time

	slugs      *SlugAllocator
	paragraphs *ParagraphReplacer
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithMetadataStore sets the metadata store for the service
func WithMetadataStore(store MetadataStore) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithBlobStore sets the blob store image objects are removed from
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobs = store
	}
}

// WithLocker sets the per-slug locker
func WithLocker(locker Locker) Option {
	return func(s *service) {
		s.locker = locker
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithRemovalConcurrency bounds parallel blob removals. Values below 1 are ignored.
func WithRemovalConcurrency(n int) Option {
	return func(s *service) {
		if n > 0 {
			s.removalConcurrency = n
		}
	}
}

// WithMaxSlugAttempts bounds the slug search. Values below 1 are ignored.
func WithMaxSlugAttempts(n int) Option {
	return func(s *service) {
		if n > 0 {
			s.maxSlugAttempts = n
		}
	}
}

// WithMaxInsertRetries bounds re-allocation after a slug uniqueness violation.
func WithMaxInsertRetries(n int) Option {
	return func(s *service) {
		if n >= 0 {
			s.maxInsertRetries = n
		}
	}
}

// WithClock overrides the time source used for default post dates.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		locker:             NoopLocker{},
		eventSink:          NewNoopEventSink(),
		logger:             slog.Default(),
		removalConcurrency: DefaultRemovalConcurrency,
		maxSlugAttempts:    DefaultMaxSlugAttempts,
		maxInsertRetries:   DefaultMaxInsertRetries,
		now:                time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.store == nil {
		return nil, fmt.Errorf("metadata store is required")
	}
	if s.blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.slugs = NewSlugAllocator(s.store, s.maxSlugAttempts)
	s.paragraphs = NewParagraphReplacer(s.store)
	return s, nil
}

// Mutations

func (s *service) Create(ctx context.Context, req CreatePostRequest) (*CreatePostResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	base := Slugify(req.Title)
	unlock, err := s.locker.Lock(ctx, lockKey(base))
	if err != nil {
		return nil, &PhaseError{Op: "create", Phase: PhaseSlug, Slug: base, Err: err}
	}
	defer unlock()

	post := &Post{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Visibility:  req.Visibility,
		UserID:      req.OwnerID,
	}
	if post.Date.IsZero() {
		post.Date = s.now().UTC()
	}
	if post.Visibility == "" {
		post.Visibility = VisibilityPublic
	}

	if err := s.insertWithFreshSlug(ctx, post, base); err != nil {
		return nil, err
	}
	result := &CreatePostResult{ID: post.ID, Slug: post.Slug}

	if req.Image != nil {
		img := &Image{PostID: post.ID, URL: req.Image.URL, Width: req.Image.Width, Height: req.Image.Height}
		if err := s.store.InsertImage(ctx, img); err != nil {
			s.logger.ErrorContext(ctx, "Failed to attach image to new post", "slug", post.Slug, "url", img.URL, "err", err)
			return result, &PhaseError{Op: "create", Phase: PhaseImages, Slug: post.Slug, Err: err}
		}
	}

	if err := s.paragraphs.Replace(ctx, post.ID, req.Paragraphs); err != nil {
		s.logger.ErrorContext(ctx, "Failed to write paragraphs for new post", "slug", post.Slug, "err", err)
		return result, &PhaseError{Op: "create", Phase: PhaseParagraphs, Slug: post.Slug, Err: err}
	}

	if err := s.eventSink.PostCreated(ctx, post); err != nil {
		s.logger.WarnContext(ctx, "Event sink rejected post created", "slug", post.Slug, "err", err)
	}
	return result, nil
}

// insertWithFreshSlug allocates a slug from base and inserts post, resuming
// allocation at the next suffix whenever the store reports the slug taken.
func (s *service) insertWithFreshSlug(ctx context.Context, post *Post, base string) error {
	next := 0
	for retry := 0; ; retry++ {
		slug, resume, err := s.slugs.AllocateFrom(ctx, base, next)
		if err != nil {
			return &PhaseError{Op: "create", Phase: PhaseSlug, Slug: base, Err: err}
		}
		post.Slug = slug

		err = s.store.InsertPost(ctx, post)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrSlugTaken) {
			return &PhaseError{Op: "create", Phase: PhaseInsertPost, Slug: slug, Err: err}
		}
		if retry >= s.maxInsertRetries {
			return &PhaseError{Op: "create", Phase: PhaseSlug, Slug: base,
				Err: fmt.Errorf("%w: lost %d slug races: %w", ErrAllocationExhausted, retry+1, err)}
		}
		s.logger.WarnContext(ctx, "Slug taken at insert, retrying allocation", "slug", slug, "retry", retry+1)
		next = resume
	}
}

func (s *service) Update(ctx context.Context, req UpdatePostRequest) (*MutationReport, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, lockKey(req.Slug))
	if err != nil {
		return nil, &PhaseError{Op: "update", Phase: PhaseLookup, Slug: req.Slug, Err: err}
	}
	defer unlock()

	post, err := s.store.FindPostBySlug(ctx, req.Slug)
	if err != nil {
		return nil, &PhaseError{Op: "update", Phase: PhaseLookup, Slug: req.Slug, Err: err}
	}
	report := &MutationReport{PostID: post.ID, Slug: post.Slug}

	if !req.SkipImages {
		existing, err := s.store.ListImagesForPost(ctx, post.ID)
		if err != nil {
			return report, &PhaseError{Op: "update", Phase: PhaseImages, Slug: post.Slug, Err: err}
		}
		delta := ReconcileImages(existing, req.Images)
		report.Items = append(report.Items, s.removeImages(ctx, delta.ToRemove)...)
		report.Items = append(report.Items, s.insertImages(ctx, post.ID, delta.ToAdd)...)
	}

	if err := s.paragraphs.Replace(ctx, post.ID, req.Paragraphs); err != nil {
		s.logger.ErrorContext(ctx, "Failed to replace paragraphs", "slug", post.Slug, "err", err)
		return report, &PhaseError{Op: "update", Phase: PhaseParagraphs, Slug: post.Slug, Err: err}
	}

	fields, changed := diffFields(post, req)
	if !fields.IsEmpty() {
		if err := s.store.UpdatePostFields(ctx, post.ID, fields); err != nil {
			s.logger.ErrorContext(ctx, "Failed to update post fields", "slug", post.Slug, "fields", changed, "err", err)
			return report, &PhaseError{Op: "update", Phase: PhaseFields, Slug: post.Slug, Err: err}
		}
		applyFields(post, fields)
		report.Changed = changed
	}

	if err := s.eventSink.PostUpdated(ctx, post, report); err != nil {
		s.logger.WarnContext(ctx, "Event sink rejected post updated", "slug", post.Slug, "err", err)
	}
	return report, report.partialFailure("update")
}

func (s *service) Delete(ctx context.Context, slug string) (*MutationReport, error) {
	if slug == "" {
		return nil, &ValidationError{Field: "slug", Reason: "is required"}
	}

	unlock, err := s.locker.Lock(ctx, lockKey(slug))
	if err != nil {
		return nil, &PhaseError{Op: "delete", Phase: PhaseLookup, Slug: slug, Err: err}
	}
	defer unlock()

	post, err := s.store.FindPostBySlug(ctx, slug)
	if err != nil {
		return nil, &PhaseError{Op: "delete", Phase: PhaseLookup, Slug: slug, Err: err}
	}
	report := &MutationReport{PostID: post.ID, Slug: post.Slug}

	images, err := s.store.ListImagesForPost(ctx, post.ID)
	if err != nil {
		return report, &PhaseError{Op: "delete", Phase: PhaseImages, Slug: slug, Err: err}
	}
	report.Items = s.removeImages(ctx, images)

	if err := s.store.DeleteParagraphsForPost(ctx, post.ID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete paragraphs", "slug", slug, "err", err)
		return report, &PhaseError{Op: "delete", Phase: PhaseParagraphs, Slug: slug, Err: err}
	}

	if err := s.store.DeletePost(ctx, post.ID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete post", "slug", slug, "err", err)
		return report, &PhaseError{Op: "delete", Phase: PhaseDeletePost, Slug: slug, Err: err}
	}

	if err := s.eventSink.PostDeleted(ctx, post, report); err != nil {
		s.logger.WarnContext(ctx, "Event sink rejected post deleted", "slug", slug, "err", err)
	}
	return report, report.partialFailure("delete")
}

// Reads

func (s *service) Get(ctx context.Context, slug string) (*PostDetails, error) {
	post, err := s.store.FindPostBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.loadDetails(ctx, post)
}

func (s *service) List(ctx context.Context, req ListPostsRequest) ([]*PostDetails, error) {
	if req.Visibility != nil && !req.Visibility.Valid() {
		return nil, &ValidationError{Field: "visibility", Reason: "must be public or private"}
	}
	if req.Offset < 0 {
		return nil, &ValidationError{Field: "offset", Reason: "must not be negative"}
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	posts, err := s.store.ListPosts(ctx, ListPostsParams{
		UserID:     req.OwnerID,
		Visibility: req.Visibility,
		Limit:      limit,
		Offset:     req.Offset,
	})
	if err != nil {
		return nil, err
	}

	out := make([]*PostDetails, 0, len(posts))
	for _, post := range posts {
		details, err := s.loadDetails(ctx, post)
		if err != nil {
			return nil, err
		}
		out = append(out, details)
	}
	return out, nil
}

// Helper methods

func (s *service) loadDetails(ctx context.Context, post *Post) (*PostDetails, error) {
	images, err := s.store.ListImagesForPost(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("list images for post %d: %w", post.ID, err)
	}
	paragraphs, err := s.store.ListParagraphsForPost(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("list paragraphs for post %d: %w", post.ID, err)
	}
	return &PostDetails{Post: *post, Images: images, Paragraphs: paragraphs}, nil
}

// removeImages removes each image's blob and then its row. Items run in
// parallel and never cancel each other; outcomes keep the input order.
func (s *service) removeImages(ctx context.Context, images []*Image) []ItemOutcome {
	if len(images) == 0 {
		return nil
	}
	outcomes := make([]ItemOutcome, len(images))

	var g errgroup.Group
	g.SetLimit(s.removalConcurrency)
	for i, img := range images {
		g.Go(func() error {
			outcomes[i] = s.removeImage(ctx, img)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (s *service) removeImage(ctx context.Context, img *Image) ItemOutcome {
	out := ItemOutcome{Action: ActionRemove, ImageID: img.ID, URL: img.URL, Status: StatusDone}

	key, ok := s.blobs.ResolveKeyFromPublicURL(img.URL)
	if !ok {
		out.Status = StatusSkipped
		s.logger.WarnContext(ctx, "Image URL does not belong to blob store, skipping object removal", "image_id", img.ID, "url", img.URL)
	} else {
		out.Key = key
		err := s.blobs.RemoveObject(ctx, key)
		switch {
		case errors.Is(err, ErrObjectNotFound):
			s.logger.DebugContext(ctx, "Image object already gone", "key", key)
		case err != nil:
			out.Status = StatusFailed
			out.Err = &StorageError{Key: key, Op: "remove", Err: err}
			s.logger.ErrorContext(ctx, "Failed to remove image object", "key", key, "image_id", img.ID, "err", err)
		}
	}

	if err := s.store.DeleteImage(ctx, img.ID); err != nil {
		out.Status = StatusFailed
		out.Err = errors.Join(out.Err, fmt.Errorf("delete image row %d: %w", img.ID, err))
		s.logger.ErrorContext(ctx, "Failed to delete image row", "image_id", img.ID, "err", err)
	}
	return out
}

func (s *service) insertImages(ctx context.Context, postID int64, desired []DesiredImage) []ItemOutcome {
	var outcomes []ItemOutcome
	for _, d := range desired {
		img := &Image{PostID: postID, URL: d.URL, Width: d.Width, Height: d.Height}
		out := ItemOutcome{Action: ActionInsert, URL: d.URL, Status: StatusDone}
		if err := s.store.InsertImage(ctx, img); err != nil {
			out.Status = StatusFailed
			out.Err = err
			s.logger.ErrorContext(ctx, "Failed to insert image row", "post_id", postID, "url", d.URL, "err", err)
		} else {
			out.ImageID = img.ID
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// diffFields returns the scalar fields of req that differ from post, along
// with their names.
func diffFields(post *Post, req UpdatePostRequest) (PostFields, []string) {
	var (
		fields  PostFields
		changed []string
	)
	if req.Title != "" && req.Title != post.Title {
		title := req.Title
		fields.Title = &title
		changed = append(changed, "title")
	}
	if req.Description != post.Description {
		desc := req.Description
		fields.Description = &desc
		changed = append(changed, "description")
	}
	if !req.Date.IsZero() && !req.Date.Equal(post.Date) {
		date := req.Date.UTC()
		fields.Date = &date
		changed = append(changed, "date")
	}
	if req.Visibility != "" && req.Visibility != post.Visibility {
		vis := req.Visibility
		fields.Visibility = &vis
		changed = append(changed, "visibility")
	}
	return fields, changed
}

func applyFields(post *Post, fields PostFields) {
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
}

func lockKey(slug string) string {
	return "post:" + slug
}
