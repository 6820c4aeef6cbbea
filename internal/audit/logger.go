// Package audit records admin actions in a hash-chained log.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"docindex-platform/internal/logger"
	"docindex-platform/models"
)

const CollectionAuditLogs = "audit_logs"

// Sink persists one audit event.
type Sink interface {
	Insert(ctx context.Context, event *models.AuditEvent) error
}

type MongoSink struct {
	col *mongo.Collection
}

func NewMongoSink(db *mongo.Database) *MongoSink {
	return &MongoSink{col: db.Collection(CollectionAuditLogs)}
}

func (s *MongoSink) Insert(ctx context.Context, event *models.AuditEvent) error {
	_, err := s.col.InsertOne(ctx, event)
	return err
}

// Logger chains events and writes them from a single goroutine so the
// hash order matches the insert order.
type Logger struct {
	sink     Sink
	events   chan *models.AuditEvent
	lastHash string
	now      func() time.Time
	log      *slog.Logger
	wg       sync.WaitGroup
}

func NewLogger(sink Sink, buffer int, log *slog.Logger) *Logger {
	l := &Logger{
		sink:   sink,
		events: make(chan *models.AuditEvent, buffer),
		now:    func() time.Time { return time.Now().UTC() },
		log:    logger.Or(log).With("component", "audit"),
	}
	l.wg.Add(1)
	go l.run()
	return l
}

// LogAsync queues event; when the buffer is full the event is dropped and
// logged instead of blocking the request.
func (l *Logger) LogAsync(event *models.AuditEvent) {
	select {
	case l.events <- event:
	default:
		l.log.Warn("audit buffer full, dropping event", "action", event.Action, "resource", event.Resource, "request_id", event.RequestID)
	}
}

// Close drains queued events.
func (l *Logger) Close() {
	close(l.events)
	l.wg.Wait()
}

func (l *Logger) run() {
	defer l.wg.Done()
	for event := range l.events {
		l.write(event)
	}
}

func (l *Logger) write(event *models.AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}
	event.PreviousHash = l.lastHash
	event.CurrentHash = event.ComputeHash()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.sink.Insert(ctx, event); err != nil {
		l.log.Error("failed to write audit event", "error", err, "action", event.Action)
		return
	}
	l.lastHash = event.CurrentHash
}
