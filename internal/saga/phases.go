package saga

import (
	"context"
	"fmt"

	"docindex-platform/models"
)

// resourceSuffixLayout keeps retries of a failed run from colliding with the
// resources a previous attempt left behind.
const resourceSuffixLayout = "20060102150405"

func (o *Orchestrator) init(ctx context.Context) (*models.SagaState, error) {
	if err := o.deps.Lock.Acquire(ctx); err != nil {
		return nil, err
	}

	oldID, err := o.deps.Active.ActiveResource(ctx)
	if err != nil {
		return nil, fmt.Errorf("read active resource: %w", err)
	}

	docs, err := o.deps.Catalog.ListEligibleDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list eligible documents: %w", err)
	}

	now := o.deps.Clock().UTC()
	created, err := o.deps.Resources.CreateResource(ctx, now.Format(resourceSuffixLayout))
	if err != nil {
		return nil, fmt.Errorf("create index resource: %w", err)
	}

	state := &models.SagaState{
		Phase:             models.PhaseProcessingBatch,
		OldResourceID:     oldID,
		NewResourceID:     created.ResourceID,
		NewDataSourceID:   created.DataSourceID,
		VectorIndexHandle: created.VectorIndexHandle,
		TotalDocuments:    len(docs),
		ErrorMessages:     []string{},
		BatchSize:         o.opts.BatchSize,
		StartedAt:         now,
	}

	o.log.Info("reindex started",
		"old_resource", oldID,
		"new_resource", created.ResourceID,
		"total_documents", len(docs),
		"batch_size", o.opts.BatchSize,
	)
	snap := models.SnapshotOf(state, models.PhaseInit)
	snap.Message = fmt.Sprintf("created index resource %s for %d documents", created.ResourceID, len(docs))
	o.publish(ctx, snap)

	return state, nil
}

func (o *Orchestrator) processBatch(ctx context.Context, in *models.SagaState) (*models.SagaState, error) {
	if in == nil {
		return nil, invalidState("process_batch requires a state")
	}
	if in.Phase != models.PhaseProcessingBatch {
		return nil, invalidState("process_batch called in phase %s", in.Phase)
	}
	if in.BatchSize <= 0 || in.CurrentBatchIndex < 0 || in.NewResourceID == "" {
		return nil, invalidState("batch size %d, batch index %d, new resource %q",
			in.BatchSize, in.CurrentBatchIndex, in.NewResourceID)
	}

	docs, err := o.deps.Catalog.ListEligibleDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list eligible documents: %w", err)
	}

	// Documents added after init are not part of this run.
	bound := min(in.TotalDocuments, len(docs))
	start := min(in.CurrentBatchIndex*in.BatchSize, bound)
	end := min(start+in.BatchSize, bound)
	batch := docs[start:end]

	out := in.Clone()
	target := Target{ResourceID: in.NewResourceID, DataSourceID: in.NewDataSourceID}

	for i, doc := range batch {
		if i > 0 {
			if err := o.deps.Sleep(ctx, o.opts.DocumentDelay); err != nil {
				return nil, fmt.Errorf("batch %d interrupted: %w", in.CurrentBatchIndex, err)
			}
		}

		snap := models.SnapshotOf(out, models.PhaseProcessingBatch)
		snap.CurrentDocument = doc.Label()
		o.publish(ctx, snap)

		result := o.migrator.MigrateOne(ctx, doc, target)
		if result.Err != nil {
			out.ErrorCount++
			out.ErrorMessages = appendBounded(out.ErrorMessages, result.ErrorMessage(doc), o.opts.ErrorHistory)
		}
	}

	out.ProcessedCount += len(batch)
	if end < bound {
		out.CurrentBatchIndex++
	} else {
		out.Phase = models.PhaseFinalizing
	}

	o.log.Info("reindex batch processed",
		"batch_index", in.CurrentBatchIndex,
		"batch_documents", len(batch),
		"processed", out.ProcessedCount,
		"total", out.TotalDocuments,
		"errors", out.ErrorCount,
		"next_phase", out.Phase,
	)
	o.publish(ctx, models.SnapshotOf(out, out.Phase))

	return out, nil
}

// finalize cuts over regardless of how many documents failed.
func (o *Orchestrator) finalize(ctx context.Context, in *models.SagaState) (*models.SagaState, error) {
	if in == nil {
		return nil, invalidState("finalize requires a state")
	}
	if in.Phase != models.PhaseFinalizing {
		return nil, invalidState("finalize called in phase %s", in.Phase)
	}
	if in.NewResourceID == "" {
		return nil, invalidState("finalize without a new resource")
	}

	if err := o.deps.Active.SetActiveResource(ctx, in.NewResourceID); err != nil {
		return nil, fmt.Errorf("switch active resource to %s: %w", in.NewResourceID, err)
	}

	out := in.Clone()

	snap := models.SnapshotOf(out, models.PhaseFinalizing)
	snap.Message = "deleting old resource"
	o.publish(ctx, snap)

	if in.OldResourceID != "" && in.OldResourceID != in.NewResourceID {
		res := o.deleteResource(ctx, in.OldResourceID, "old")
		if res.Failed() {
			o.log.Error("old resource deletion failed, new resource stays live", "resource", res.ResourceID, "error", res.Err)
			out.ErrorMessages = appendBounded(out.ErrorMessages, res.String(), o.opts.ErrorHistory)
		} else {
			o.log.Info(res.String())
		}
	}

	o.releaseLock(ctx)

	out.Phase = models.PhaseCompleted
	o.log.Info("reindex completed",
		"new_resource", out.NewResourceID,
		"total", out.TotalDocuments,
		"processed", out.ProcessedCount,
		"errors", out.ErrorCount,
	)
	o.publish(ctx, models.SnapshotOf(out, models.PhaseCompleted))

	return out, nil
}

// cleanupFailed is the compensation path. It only ever deletes the resource
// this run created.
func (o *Orchestrator) cleanupFailed(ctx context.Context, in *models.SagaState, cause string) (*models.SagaState, error) {
	out := in.Clone()
	if out == nil {
		out = &models.SagaState{}
	}
	if cause == "" {
		cause = "unknown error"
	}
	out.Phase = models.PhaseCleaningUp

	snap := models.SnapshotOf(out, models.PhaseFailed)
	snap.Error = cause
	o.publish(ctx, snap)

	switch {
	case out.NewResourceID == "":
		o.log.Info("no index resource to compensate")
	case out.NewResourceID == out.OldResourceID:
		o.log.Warn("new resource equals the live resource, not deleting it", "resource", out.NewResourceID)
	case !o.releaseActive(ctx, out):
		out.ErrorMessages = appendBounded(out.ErrorMessages,
			fmt.Sprintf("resource %s kept: it may still be serving", out.NewResourceID), o.opts.ErrorHistory)
	default:
		res := o.deleteResource(ctx, out.NewResourceID, "new")
		if res.Failed() {
			o.log.Error("compensating deletion failed", "resource", res.ResourceID, "error", res.Err)
		} else {
			o.log.Info(res.String())
		}
	}

	o.releaseLock(ctx)

	out.ErrorMessages = appendBounded(out.ErrorMessages, "reindex failed: "+truncate(cause, maxErrorText), o.opts.ErrorHistory)
	out.Phase = models.PhaseFailed
	o.log.Error("reindex failed", "cause", cause, "new_resource", out.NewResourceID)

	return out, nil
}

// releaseActive reports whether the new resource may be deleted. A cutover
// write can report failure after it was applied, so the pointer is read back
// and moved to the old resource first when it names the new one. Any doubt
// keeps the resource.
func (o *Orchestrator) releaseActive(ctx context.Context, st *models.SagaState) bool {
	active, err := o.deps.Active.ActiveResource(ctx)
	if err != nil {
		o.log.Error("cannot read active resource, keeping new resource", "resource", st.NewResourceID, "error", err)
		return false
	}
	if active != st.NewResourceID {
		return true
	}
	if st.OldResourceID == "" {
		o.log.Warn("new resource is live and there is nothing to restore, keeping it", "resource", st.NewResourceID)
		return false
	}
	if err := o.deps.Active.SetActiveResource(ctx, st.OldResourceID); err != nil {
		o.log.Error("restoring previous active resource failed, keeping new resource",
			"resource", st.NewResourceID, "previous", st.OldResourceID, "error", err)
		return false
	}
	o.log.Warn("cutover had been applied, restored previous active resource",
		"previous", st.OldResourceID, "resource", st.NewResourceID)
	return true
}
