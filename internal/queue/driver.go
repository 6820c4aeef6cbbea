package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"docindex-platform/internal/lock"
	"docindex-platform/internal/logger"
	"docindex-platform/internal/saga"
	"docindex-platform/models"
)

// Stepper runs one saga step; *saga.Orchestrator implements it.
type Stepper interface {
	Execute(ctx context.Context, req saga.Request) (*models.SagaState, error)
}

// Enqueuer is the part of *asynq.Client the driver needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RetryInfo reports how often the current task has been retried and its
// retry budget.
type RetryInfo func(ctx context.Context) (retried, maxRetry int)

func asynqRetryInfo(ctx context.Context) (int, int) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return retried, maxRetry
}

// Driver is the external scheduler of the reindex saga: it executes one step
// per task, checkpoints the result and enqueues the next action. A step that
// fails for the last time is routed to cleanup_failed.
type Driver struct {
	stepper   Stepper
	runs      RunStore
	enqueuer  Enqueuer
	opts      StepTaskOptions
	retryInfo RetryInfo
	newID     func() string
	log       *slog.Logger
}

func NewDriver(stepper Stepper, runs RunStore, enqueuer Enqueuer, opts StepTaskOptions, log *slog.Logger) *Driver {
	return &Driver{
		stepper:   stepper,
		runs:      runs,
		enqueuer:  enqueuer,
		opts:      opts,
		retryInfo: asynqRetryInfo,
		newID:     uuid.NewString,
		log:       logger.Or(log).With("component", "reindex_driver"),
	}
}

// Start records a new run and enqueues its init step.
func (d *Driver) Start(ctx context.Context) (string, error) {
	runID := d.newID()
	run := &models.ReindexRun{
		ID:    runID,
		State: models.SagaState{Phase: models.PhaseInit},
	}
	if err := d.runs.Create(ctx, run); err != nil {
		return "", fmt.Errorf("create reindex run: %w", err)
	}
	if err := d.enqueue(ctx, runID, saga.Request{Action: saga.ActionInit}); err != nil {
		return "", err
	}
	d.log.Info("reindex run started", "run_id", runID)
	return runID, nil
}

func (d *Driver) HandleReindexStep(ctx context.Context, t *asynq.Task) error {
	var payload ReindexStepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}
	log := d.log.With("run_id", payload.RunID, "action", payload.Action)

	state := d.resumeInit(ctx, log, payload)
	if state == nil {
		var err error
		if state, err = d.stepper.Execute(ctx, payload.Request); err != nil {
			return d.handleFailure(ctx, log, payload, err)
		}
	}

	if err := d.runs.Checkpoint(ctx, payload.RunID, string(payload.Action), state, ""); err != nil {
		// The task chain carries the state; the checkpoint is for observers.
		log.Warn("failed to checkpoint reindex run", "error", err)
	}

	next, ok := saga.NextAction(state.Phase)
	if !ok {
		log.Info("reindex run finished",
			"phase", state.Phase,
			"processed", state.ProcessedCount,
			"errors", state.ErrorCount,
		)
		return nil
	}
	return d.enqueue(ctx, payload.RunID, saga.Request{Action: next, State: state})
}

// resumeInit returns the checkpointed result of an init that already ran for
// this run, so a redelivered init does not create a second resource.
func (d *Driver) resumeInit(ctx context.Context, log *slog.Logger, payload ReindexStepPayload) *models.SagaState {
	if payload.Action != saga.ActionInit {
		return nil
	}
	run, err := d.runs.Get(ctx, payload.RunID)
	if err != nil {
		if !errors.Is(err, ErrRunNotFound) {
			log.Warn("failed to read reindex run checkpoint", "error", err)
		}
		return nil
	}
	if run.LastAction != string(saga.ActionInit) || run.State.NewResourceID == "" {
		return nil
	}
	log.Info("resuming reindex run from init checkpoint", "resource", run.State.NewResourceID)
	return run.State.Clone()
}

func (d *Driver) handleFailure(ctx context.Context, log *slog.Logger, payload ReindexStepPayload, stepErr error) error {
	retried, maxRetry := d.retryInfo(ctx)
	final := retried >= maxRetry || !retryable(stepErr)

	if payload.Action == saga.ActionCleanupFailed {
		if final {
			log.Error("reindex cleanup abandoned", "error", stepErr, "retried", retried)
			return fmt.Errorf("%w: %w", stepErr, asynq.SkipRetry)
		}
		return stepErr
	}
	if !final {
		log.Warn("reindex step failed, will retry", "error", stepErr, "retried", retried, "max_retry", maxRetry)
		return stepErr
	}

	cause := fmt.Sprintf("%s failed: %v", payload.Action, stepErr)
	if err := d.runs.Checkpoint(ctx, payload.RunID, string(payload.Action), nil, cause); err != nil {
		log.Warn("failed to checkpoint reindex failure", "error", err)
	}
	cleanup := saga.Request{Action: saga.ActionCleanupFailed, State: payload.State, Cause: cause}
	if err := d.enqueue(ctx, payload.RunID, cleanup); err != nil {
		// Keep the task retrying so cleanup gets another chance to be queued.
		return fmt.Errorf("route to cleanup: %w", err)
	}
	log.Error("reindex step failed, cleaning up", "error", stepErr)
	return fmt.Errorf("%w: %w", stepErr, asynq.SkipRetry)
}

// retryable is false for errors that replaying the same input cannot fix.
func retryable(err error) bool {
	return !errors.Is(err, saga.ErrInvalidState) &&
		!errors.Is(err, saga.ErrUnknownAction) &&
		!lock.IsLocked(err)
}

func (d *Driver) enqueue(ctx context.Context, runID string, req saga.Request) error {
	task, err := NewReindexStepTask(runID, req, d.opts)
	if err != nil {
		return fmt.Errorf("create %s task: %w", req.Action, err)
	}
	if _, err := d.enqueuer.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			d.log.Debug("reindex step already queued", "run_id", runID, "action", req.Action)
			return nil
		}
		return fmt.Errorf("enqueue %s: %w", req.Action, err)
	}
	return nil
}

// DocumentProcessor runs single-document operations inside the worker.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, documentID, operation string) error
}

// DocumentHandler adapts a DocumentProcessor to asynq.
type DocumentHandler struct {
	processor DocumentProcessor
	log       *slog.Logger
}

func NewDocumentHandler(processor DocumentProcessor, log *slog.Logger) *DocumentHandler {
	return &DocumentHandler{processor: processor, log: logger.Or(log).With("component", "document_worker")}
}

func (h *DocumentHandler) HandleDocumentTask(ctx context.Context, t *asynq.Task) error {
	var payload DocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	err := h.processor.ProcessDocument(ctx, payload.DocumentID, payload.Operation)
	switch {
	case err == nil:
		return nil
	case lock.IsLocked(err):
		h.log.Warn("document task refused while reindexing", "document_id", payload.DocumentID, "operation", payload.Operation, "error", err)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	default:
		return err
	}
}
