package saga

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"docindex-platform/internal/logger"
	"docindex-platform/internal/telemetry"
	"docindex-platform/models"
)

// Sidecar metadata carries this marker so the index can tell re-extracted
// documents apart from ones written by the upload path.
const (
	ContentTypeMarkerKey = "content_type_marker"
	ContentTypeMarker    = "reindex/document"
)

// Target names the resource a document is ingested into.
type Target struct {
	ResourceID   string
	DataSourceID string
}

type MigrationResult struct {
	Skipped         bool
	SidecarLocation string
	Status          string
	Err             error
}

// ErrorMessage is the errorMessages entry for a failed document.
func (r MigrationResult) ErrorMessage(doc models.DocumentRef) string {
	if r.Err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", doc.Label(), truncate(r.Err.Error(), maxErrorText))
}

// Migrator re-extracts, writes the sidecar and ingests one document.
type Migrator struct {
	extractor ContentReextractor
	metrics   *telemetry.Metrics
	log       *slog.Logger
}

func NewMigrator(extractor ContentReextractor, metrics *telemetry.Metrics, log *slog.Logger) *Migrator {
	return &Migrator{extractor: extractor, metrics: metrics, log: logger.Or(log)}
}

// MigrateOne never returns an error to its caller: failures are data in the
// result.
func (m *Migrator) MigrateOne(ctx context.Context, doc models.DocumentRef, target Target) MigrationResult {
	log := m.log.With("document_id", doc.DocumentID, "content_location", doc.ContentLocation)

	text, err := m.extractor.ReadText(ctx, doc.ContentLocation)
	if err != nil || strings.TrimSpace(text) == "" {
		// Nothing to re-extract; counted as processed.
		log.Warn("document has no readable content, skipping", "error", err)
		m.metrics.RecordDocument(ctx, "skipped")
		return MigrationResult{Skipped: true}
	}

	res := m.migrate(ctx, doc, target)
	if res.Err != nil {
		log.Error("document migration failed", "error", res.Err)
		m.metrics.RecordDocument(ctx, "failed")
		return res
	}

	log.Debug("document migrated", "sidecar", res.SidecarLocation, "status", res.Status)
	m.metrics.RecordDocument(ctx, "migrated")
	return res
}

func (m *Migrator) migrate(ctx context.Context, doc models.DocumentRef, target Target) MigrationResult {
	metadata, err := m.extractor.ExtractMetadata(ctx, doc.ContentLocation, doc.DocumentID)
	if err != nil {
		return MigrationResult{Err: fmt.Errorf("extract metadata: %w", err)}
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata[ContentTypeMarkerKey] = ContentTypeMarker

	sidecar, err := m.extractor.WriteSidecar(ctx, doc.ContentLocation, metadata)
	if err != nil {
		return MigrationResult{Err: fmt.Errorf("write sidecar: %w", err)}
	}

	status, err := m.extractor.Ingest(ctx, target.ResourceID, target.DataSourceID, doc.ContentLocation, sidecar)
	if err != nil {
		return MigrationResult{SidecarLocation: sidecar, Err: fmt.Errorf("ingest into %s: %w", target.ResourceID, err)}
	}

	return MigrationResult{SidecarLocation: sidecar, Status: status}
}
