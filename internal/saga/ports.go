package saga

import (
	"context"

	"docindex-platform/models"
)

// DocumentCatalog enumerates documents eligible for reindexing. The order must
// be stable across calls: process_batch slices it by index.
type DocumentCatalog interface {
	ListEligibleDocuments(ctx context.Context) ([]models.DocumentRef, error)
}

// IndexResourceManager creates and deletes searchable resources.
// DeleteResource must treat an already deleted resource as success.
type IndexResourceManager interface {
	CreateResource(ctx context.Context, suffix string) (*models.CreatedResource, error)
	DeleteResource(ctx context.Context, resourceID string, deleteVectors bool) error
}

// ActiveResourceStore holds the id of the resource currently serving queries.
// An empty id means none has been built yet.
type ActiveResourceStore interface {
	ActiveResource(ctx context.Context) (string, error)
	SetActiveResource(ctx context.Context, resourceID string) error
}

// ContentReextractor recomputes metadata for stored content and ingests it.
type ContentReextractor interface {
	ReadText(ctx context.Context, contentLocation string) (string, error)
	ExtractMetadata(ctx context.Context, contentLocation, documentID string) (map[string]any, error)
	WriteSidecar(ctx context.Context, contentLocation string, metadata map[string]any) (string, error)
	Ingest(ctx context.Context, resourceID, dataSourceID, contentLocation, sidecarLocation string) (string, error)
}

// ProgressNotifier accepts snapshots for observers.
type ProgressNotifier interface {
	Publish(ctx context.Context, snap models.ProgressSnapshot) error
}

// Lock is the writer side of the reindex lock.
type Lock interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}
