package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. A nil *Metrics records nothing.
type Metrics struct {
	RequestCounter    metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	SagaSteps         metric.Int64Counter
	SagaStepDuration  metric.Float64Histogram
	DocumentsMigrated metric.Int64Counter
	ResourceDeletions metric.Int64Counter
	LockRefusals      metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("docindex-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	sagaSteps, err := meter.Int64Counter(
		"reindex.saga.steps",
		metric.WithDescription("Reindex saga steps executed"),
	)
	if err != nil {
		return nil, err
	}

	sagaStepDuration, err := meter.Float64Histogram(
		"reindex.saga.step.duration",
		metric.WithDescription("Reindex saga step duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	documentsMigrated, err := meter.Int64Counter(
		"reindex.documents.total",
		metric.WithDescription("Documents handled by the batch migrator"),
	)
	if err != nil {
		return nil, err
	}

	resourceDeletions, err := meter.Int64Counter(
		"reindex.resource.deletions",
		metric.WithDescription("Index resource deletions attempted"),
	)
	if err != nil {
		return nil, err
	}

	lockRefusals, err := meter.Int64Counter(
		"reindex.lock.refusals",
		metric.WithDescription("Document operations refused while a reindex was running"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:    requestCounter,
		RequestDuration:   requestDuration,
		SagaSteps:         sagaSteps,
		SagaStepDuration:  sagaStepDuration,
		DocumentsMigrated: documentsMigrated,
		ResourceDeletions: resourceDeletions,
		LockRefusals:      lockRefusals,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordSagaStep records one orchestrator invocation
func (m *Metrics) RecordSagaStep(ctx context.Context, action string, success bool, duration float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("saga.action", action),
		attribute.Bool("saga.success", success),
	}

	m.SagaSteps.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.SagaStepDuration.Record(ctx, duration, metric.WithAttributes(attrs...))
}

// RecordDocument records a batch migrator outcome: migrated, skipped or failed
func (m *Metrics) RecordDocument(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.DocumentsMigrated.Add(ctx, 1, metric.WithAttributes(attribute.String("document.outcome", outcome)))
}

// RecordResourceDeletion records a finalize or compensation deletion
func (m *Metrics) RecordResourceDeletion(ctx context.Context, reason string, success bool) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("deletion.reason", reason),
		attribute.Bool("deletion.success", success),
	}
	m.ResourceDeletions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLockRefusal records a document operation refused by the reindex lock
func (m *Metrics) RecordLockRefusal(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.LockRefusals.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}
