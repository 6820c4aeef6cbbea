package utils

import (
	"context"
	"time"
)

// Request-scoped deadlines for handlers. The reindex itself runs in the
// worker under asynq's task timeout and never uses these.
const (
	// DefaultTimeout covers catalog reads and single-document enqueues.
	DefaultTimeout = 10 * time.Second
	// LongTimeout covers deletes that also remove chunks from the live index.
	LongTimeout = 30 * time.Second
	// ShortTimeout covers lock and progress lookups.
	ShortTimeout = 2 * time.Second
)

func WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultTimeout)
}

func WithLongTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, LongTimeout)
}

func WithShortTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ShortTimeout)
}
