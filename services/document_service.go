package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"docindex-platform/internal/logger"
	"docindex-platform/internal/queue"
	"docindex-platform/internal/saga"
	"docindex-platform/models"
)

// ErrNoActiveResource means no index has been built yet, so there is nothing
// to ingest a single document into.
var ErrNoActiveResource = errors.New("no active search resource")

type DocumentStore interface {
	Get(ctx context.Context, id string) (*models.Document, error)
	Delete(ctx context.Context, id string) error
	RecordOperation(ctx context.Context, id, operation, errorMessage string) error
	SetSidecar(ctx context.Context, id, sidecarLocation string) error
}

type ResourceStore interface {
	ActiveResource(ctx context.Context) (string, error)
	Resolve(ctx context.Context, resourceID string) (*models.IndexResource, error)
	DeleteDocumentChunks(ctx context.Context, resourceID, contentLocation string) (int64, error)
}

// Guard refuses operations while a full reindex holds the lock.
type Guard interface {
	EnsureUnlocked(ctx context.Context, operation string) error
}

type DocumentMigrator interface {
	MigrateOne(ctx context.Context, doc models.DocumentRef, target saga.Target) saga.MigrationResult
}

type Ingestor interface {
	Ingest(ctx context.Context, resourceID, dataSourceID, contentLocation, sidecarLocation string) (string, error)
}

type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// DocumentService runs single-document operations against the live index.
// Every entry point consults the reindex lock first; the worker side checks
// again because the lock may have been taken while the task sat in the queue.
type DocumentService struct {
	docs      DocumentStore
	resources ResourceStore
	guard     Guard
	tasks     TaskEnqueuer
	migrator  DocumentMigrator
	ingestor  Ingestor
	log       *slog.Logger
}

func NewDocumentService(docs DocumentStore, resources ResourceStore, guard Guard, tasks TaskEnqueuer, migrator DocumentMigrator, ingestor Ingestor, log *slog.Logger) *DocumentService {
	return &DocumentService{
		docs:      docs,
		resources: resources,
		guard:     guard,
		tasks:     tasks,
		migrator:  migrator,
		ingestor:  ingestor,
		log:       logger.Or(log).With("component", "document_service"),
	}
}

func operationName(op string) string {
	return op + " document"
}

// Delete removes a document and its chunks from the active resource.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	if err := s.guard.EnsureUnlocked(ctx, "delete document"); err != nil {
		return err
	}
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return err
	}

	active, err := s.resources.ActiveResource(ctx)
	if err != nil {
		return fmt.Errorf("read active resource: %w", err)
	}
	if active != "" {
		n, err := s.resources.DeleteDocumentChunks(ctx, active, doc.ContentLocation)
		if err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		s.log.Info("document chunks deleted", "document_id", id, "resource", active, "chunks", n)
	}
	return s.docs.Delete(ctx, id)
}

// Enqueue schedules a reprocess or reindex of one document and returns the
// task id.
func (s *DocumentService) Enqueue(ctx context.Context, id, operation string) (string, error) {
	if err := s.guard.EnsureUnlocked(ctx, operationName(operation)); err != nil {
		return "", err
	}
	if _, err := s.docs.Get(ctx, id); err != nil {
		return "", err
	}

	task, err := queue.NewDocumentTask(id, operation)
	if err != nil {
		return "", err
	}
	info, err := s.tasks.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", operation, err)
	}
	return info.ID, nil
}

// ProcessDocument is the worker side of Enqueue.
func (s *DocumentService) ProcessDocument(ctx context.Context, id, operation string) error {
	if err := s.guard.EnsureUnlocked(ctx, operationName(operation)); err != nil {
		return err
	}
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return err
	}

	active, err := s.resources.ActiveResource(ctx)
	if err != nil {
		return fmt.Errorf("read active resource: %w", err)
	}
	if active == "" {
		return ErrNoActiveResource
	}
	res, err := s.resources.Resolve(ctx, active)
	if err != nil {
		return err
	}
	target := saga.Target{ResourceID: res.ID, DataSourceID: res.DataSourceID}

	if operation == queue.OpReindex && doc.SidecarLocation != "" {
		err = s.reingest(ctx, doc, target)
	} else {
		err = s.reprocess(ctx, doc, target)
	}
	if err != nil {
		if recErr := s.docs.RecordOperation(ctx, id, operation, err.Error()); recErr != nil {
			s.log.Error("failed to record document operation failure",
				"document_id", id, "operation", operation, "cause", err, "error", recErr)
		}
		return err
	}
	return s.docs.RecordOperation(ctx, id, operation, "")
}

func (s *DocumentService) reprocess(ctx context.Context, doc *models.Document, target saga.Target) error {
	result := s.migrator.MigrateOne(ctx, doc.Ref(), target)
	if result.Err != nil {
		return errors.New(result.ErrorMessage(doc.Ref()))
	}
	if result.SidecarLocation != "" {
		if err := s.docs.SetSidecar(ctx, doc.ID.Hex(), result.SidecarLocation); err != nil {
			return fmt.Errorf("record sidecar: %w", err)
		}
	}
	s.log.Info("document reprocessed", "document_id", doc.ID.Hex(), "resource", target.ResourceID, "skipped", result.Skipped)
	return nil
}

func (s *DocumentService) reingest(ctx context.Context, doc *models.Document, target saga.Target) error {
	status, err := s.ingestor.Ingest(ctx, target.ResourceID, target.DataSourceID, doc.ContentLocation, doc.SidecarLocation)
	if err != nil {
		return fmt.Errorf("ingest into %s: %w", target.ResourceID, err)
	}
	s.log.Info("document reindexed", "document_id", doc.ID.Hex(), "resource", target.ResourceID, "status", status)
	return nil
}
