package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"docindex-platform/internal/saga"
)

const (
	TaskReindexStep       = "reindex:step"
	TaskDocumentReprocess = "document:reprocess"
)

// Queue names, matching the worker's priority map.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Single-document operations accepted by TaskDocumentReprocess.
const (
	OpReprocess = "reprocess" // re-extract metadata, rewrite sidecar, re-ingest
	OpReindex   = "reindex"   // re-ingest with the existing sidecar
)

// ReindexStepPayload is one saga invocation plus the run it belongs to.
type ReindexStepPayload struct {
	RunID string `json:"run_id"`
	saga.Request
}

type DocumentPayload struct {
	DocumentID string `json:"document_id"`
	Operation  string `json:"operation"`
}

type StepTaskOptions struct {
	MaxRetry int
	Timeout  time.Duration
}

// Task creators
func NewReindexStepTask(runID string, req saga.Request, opts StepTaskOptions) (*asynq.Task, error) {
	payload, err := json.Marshal(ReindexStepPayload{RunID: runID, Request: req})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskReindexStep,
		payload,
		asynq.TaskID(stepTaskID(runID, req)),
		asynq.MaxRetry(opts.MaxRetry),
		asynq.Timeout(opts.Timeout),
		asynq.Retention(stepRetention),
		asynq.Queue(QueueCritical),
	), nil
}

// stepRetention keeps completed step ids around so their ids keep deduplicating.
const stepRetention = 24 * time.Hour

// stepTaskID makes a redelivered handler's follow-up enqueue collide with the
// one already queued instead of forking the run.
func stepTaskID(runID string, req saga.Request) string {
	switch {
	case req.Action == saga.ActionProcessBatch && req.State != nil:
		return fmt.Sprintf("reindex:%s:%s:%d", runID, req.Action, req.State.CurrentBatchIndex)
	default:
		return fmt.Sprintf("reindex:%s:%s", runID, req.Action)
	}
}

func NewDocumentTask(documentID, operation string) (*asynq.Task, error) {
	if operation != OpReprocess && operation != OpReindex {
		return nil, fmt.Errorf("unknown document operation: %q", operation)
	}
	payload, err := json.Marshal(DocumentPayload{DocumentID: documentID, Operation: operation})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskDocumentReprocess,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue(QueueDefault),
	), nil
}
