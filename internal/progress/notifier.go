// Package progress fans reindex progress snapshots out to observers.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"docindex-platform/internal/logger"
	"docindex-platform/models"
)

const (
	LatestKey = "reindex:progress:latest"
	Channel   = "reindex:progress"

	latestTTL = 24 * time.Hour
)

// ErrNoProgress means no snapshot has been published within the TTL.
var ErrNoProgress = errors.New("no reindex progress recorded")

// RedisClient is the subset of *redis.Client the notifier uses.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier keeps the latest snapshot under LatestKey and publishes every
// snapshot on Channel.
type RedisNotifier struct {
	client RedisClient
	now    func() time.Time
}

func NewRedisNotifier(client RedisClient) *RedisNotifier {
	return &RedisNotifier{client: client, now: func() time.Time { return time.Now().UTC() }}
}

func (n *RedisNotifier) Publish(ctx context.Context, snap models.ProgressSnapshot) error {
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = n.now()
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := n.client.Set(ctx, LatestKey, payload, latestTTL).Err(); err != nil {
		return fmt.Errorf("store progress: %w", err)
	}
	if err := n.client.Publish(ctx, Channel, payload).Err(); err != nil {
		return fmt.Errorf("publish progress: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Latest(ctx context.Context) (*models.ProgressSnapshot, error) {
	raw, err := n.client.Get(ctx, LatestKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoProgress
	}
	if err != nil {
		return nil, err
	}
	var snap models.ProgressSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	return &snap, nil
}

// LogNotifier writes snapshots to the structured log.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: logger.Or(log).With("component", "reindex_progress")}
}

func (n *LogNotifier) Publish(ctx context.Context, snap models.ProgressSnapshot) error {
	msg := snap.Message
	if msg == "" {
		msg = "reindex progress"
	}
	attrs := []any{
		"phase", snap.Phase,
		"processed", snap.ProcessedCount,
		"total", snap.TotalDocuments,
		"errors", snap.ErrorCount,
	}
	if snap.CurrentDocument != "" {
		attrs = append(attrs, "document", snap.CurrentDocument)
	}
	if snap.NewResourceID != "" {
		attrs = append(attrs, "new_resource", snap.NewResourceID)
	}
	if snap.Error != "" {
		n.log.WarnContext(ctx, msg, append(attrs, "error", snap.Error)...)
		return nil
	}
	n.log.InfoContext(ctx, msg, attrs...)
	return nil
}

// Publisher is anything that accepts snapshots.
type Publisher interface {
	Publish(ctx context.Context, snap models.ProgressSnapshot) error
}

// Multi publishes to every target and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, snap models.ProgressSnapshot) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
