// Package saga drives the full-index rebuild. Each call to Execute runs one
// step and returns the state the scheduler must hand back on the next call;
// nothing is kept in memory between steps.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"docindex-platform/internal/logger"
	"docindex-platform/internal/telemetry"
	"docindex-platform/models"
)

// Deps are the collaborators of the orchestrator. Metrics, Logger, Clock and
// Sleep are optional.
type Deps struct {
	Catalog   DocumentCatalog
	Resources IndexResourceManager
	Active    ActiveResourceStore
	Extractor ContentReextractor
	Progress  ProgressNotifier
	Lock      Lock

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
	Clock   func() time.Time
	Sleep   func(ctx context.Context, d time.Duration) error
}

type Options struct {
	BatchSize     int
	DocumentDelay time.Duration
	ErrorHistory  int
}

type Orchestrator struct {
	deps     Deps
	opts     Options
	migrator *Migrator
	log      *slog.Logger
}

func New(deps Deps, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Catalog == nil:
		return nil, errors.New("saga: document catalog is required")
	case deps.Resources == nil:
		return nil, errors.New("saga: index resource manager is required")
	case deps.Active == nil:
		return nil, errors.New("saga: active resource store is required")
	case deps.Extractor == nil:
		return nil, errors.New("saga: content re-extractor is required")
	case deps.Progress == nil:
		return nil, errors.New("saga: progress notifier is required")
	case deps.Lock == nil:
		return nil, errors.New("saga: lock is required")
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("saga: batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.ErrorHistory <= 0 {
		opts.ErrorHistory = 20
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepCtx
	}

	log := logger.Or(deps.Logger).With("component", "reindex_saga")
	return &Orchestrator{
		deps:     deps,
		opts:     opts,
		migrator: NewMigrator(deps.Extractor, deps.Metrics, log),
		log:      log,
	}, nil
}

// Migrator exposes the per-document pipeline for single-document reprocessing.
func (o *Orchestrator) Migrator() *Migrator { return o.migrator }

// Execute runs the phase selected by req.Action. Errors returned here are
// phase-fatal: the scheduler must route the run to cleanup_failed.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*models.SagaState, error) {
	ctx, span := otel.Tracer("docindex-platform/saga").Start(ctx, "reindex."+string(req.Action))
	defer span.End()
	start := time.Now()

	var (
		out *models.SagaState
		err error
	)
	switch req.Action {
	case ActionInit:
		out, err = o.init(ctx)
	case ActionProcessBatch:
		out, err = o.processBatch(ctx, req.State)
	case ActionFinalize:
		out, err = o.finalize(ctx, req.State)
	case ActionCleanupFailed:
		out, err = o.cleanupFailed(ctx, req.State, req.Cause)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}

	o.deps.Metrics.RecordSagaStep(ctx, string(req.Action), err == nil, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.log.Error("reindex step failed", "action", req.Action, "error", err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("saga.phase", string(out.Phase)),
		attribute.Int("saga.processed", out.ProcessedCount),
		attribute.Int("saga.total", out.TotalDocuments),
		attribute.Int("saga.errors", out.ErrorCount),
	)
	return out, nil
}

// publish is best-effort: observers never decide the outcome of a step.
func (o *Orchestrator) publish(ctx context.Context, snap models.ProgressSnapshot) {
	snap.UpdatedAt = o.deps.Clock().UTC()
	if err := o.deps.Progress.Publish(ctx, snap); err != nil {
		o.log.Warn("failed to publish reindex progress", "phase", snap.Phase, "error", err)
	}
}

// deleteResource never fails the caller; the result says what happened.
func (o *Orchestrator) deleteResource(ctx context.Context, resourceID, reason string) DeletionResult {
	res := DeletionResult{ResourceID: resourceID, Reason: reason, Attempted: true}
	res.Err = o.deps.Resources.DeleteResource(ctx, resourceID, true)
	o.deps.Metrics.RecordResourceDeletion(ctx, reason, res.Err == nil)
	return res
}

func (o *Orchestrator) releaseLock(ctx context.Context) {
	if err := o.deps.Lock.Release(ctx); err != nil {
		o.log.Error("failed to release reindex lock", "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
