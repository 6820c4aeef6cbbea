// Package lock guards document-level mutations against running while a full
// reindex rebuilds the search index.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"docindex-platform/internal/logger"
	"docindex-platform/models"
)

// ErrNotFound is returned by a Store when no lock record exists yet.
var ErrNotFound = errors.New("lock record not found")

// Store reads and writes the single lock record.
type Store interface {
	Get(ctx context.Context) (*models.LockRecord, error)
	Put(ctx context.Context, rec *models.LockRecord) error
}

// LockedError is returned to callers whose operation was refused.
type LockedError struct {
	Operation string
	StartedAt time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("cannot %s: a full reindex is in progress (started at %s)",
		e.Operation, e.StartedAt.UTC().Format(time.RFC3339))
}

// IsLocked reports whether err is (or wraps) a *LockedError.
func IsLocked(err error) bool {
	var le *LockedError
	return errors.As(err, &le)
}

type Guard struct {
	store Store
	now   func() time.Time
	log   *slog.Logger
}

func NewGuard(store Store, log *slog.Logger) *Guard {
	return &Guard{store: store, now: time.Now, log: logger.Or(log)}
}

// WithClock replaces the clock used for startedAt.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// Check fails open: if the record cannot be read the state is unlocked.
func (g *Guard) Check(ctx context.Context) models.LockState {
	rec, err := g.store.Get(ctx)
	if errors.Is(err, ErrNotFound) {
		return models.LockState{}
	}
	if err != nil {
		g.log.Warn("reindex lock check failed, assuming unlocked", "error", err)
		return models.LockState{Degraded: true}
	}
	if !rec.IsLocked {
		return models.LockState{}
	}
	return models.LockState{Locked: true, StartedAt: rec.StartedAt}
}

// EnsureUnlocked returns a *LockedError naming operation when a reindex is in
// flight.
func (g *Guard) EnsureUnlocked(ctx context.Context, operation string) error {
	st := g.Check(ctx)
	if st.Locked {
		return &LockedError{Operation: operation, StartedAt: st.StartedAt}
	}
	return nil
}

func (g *Guard) Acquire(ctx context.Context) error {
	rec := &models.LockRecord{Key: models.ReindexLockKey, IsLocked: true, StartedAt: g.now().UTC()}
	if err := g.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("acquire reindex lock: %w", err)
	}
	g.log.Info("reindex lock acquired", "started_at", rec.StartedAt)
	return nil
}

func (g *Guard) Release(ctx context.Context) error {
	rec := &models.LockRecord{Key: models.ReindexLockKey, IsLocked: false}
	if err := g.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("release reindex lock: %w", err)
	}
	g.log.Info("reindex lock released")
	return nil
}
