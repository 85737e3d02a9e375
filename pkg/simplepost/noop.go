package simplepost

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// PostCreated does nothing and returns nil
func (n *NoopEventSink) PostCreated(ctx context.Context, post *Post) error {
	return nil
}

// PostUpdated does nothing and returns nil
func (n *NoopEventSink) PostUpdated(ctx context.Context, post *Post, report *MutationReport) error {
	return nil
}

// PostDeleted does nothing and returns nil
func (n *NoopEventSink) PostDeleted(ctx context.Context, post *Post, report *MutationReport) error {
	return nil
}

// LoggingEventSink logs events but takes no other action.
// Useful for development and debugging
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink. A nil logger uses slog.Default().
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

// PostCreated logs the post creation event
func (l *LoggingEventSink) PostCreated(ctx context.Context, post *Post) error {
	l.logger.InfoContext(ctx, "Post created", "id", post.ID, "slug", post.Slug, "user_id", post.UserID)
	return nil
}

// PostUpdated logs the post update event
func (l *LoggingEventSink) PostUpdated(ctx context.Context, post *Post, report *MutationReport) error {
	l.logger.InfoContext(ctx, "Post updated", "id", post.ID, "slug", post.Slug,
		"changed", report.Changed, "items", len(report.Items), "failed", len(report.Failed()))
	return nil
}

// PostDeleted logs the post deletion event
func (l *LoggingEventSink) PostDeleted(ctx context.Context, post *Post, report *MutationReport) error {
	l.logger.InfoContext(ctx, "Post deleted", "id", post.ID, "slug", post.Slug,
		"images", len(report.Items), "failed", len(report.Failed()))
	return nil
}

// NoopLocker hands out locks that exclude nothing. It is the default when no
// Locker is configured.
type NoopLocker struct{}

// Lock returns immediately unless ctx is already done.
func (NoopLocker) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return func() {}, nil
}
