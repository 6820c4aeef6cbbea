package progress

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docindex-platform/internal/logger"
	"docindex-platform/models"
)

type fakeRedis struct {
	values    map[string][]byte
	published map[string][][]byte
	setErr    error
	pubErr    error
	ttl       time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string][]byte{}, published: map[string][][]byte{}}
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.values[key] = value.([]byte)
	f.ttl = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	if f.pubErr != nil {
		return redis.NewIntResult(0, f.pubErr)
	}
	f.published[channel] = append(f.published[channel], message.([]byte))
	return redis.NewIntResult(1, nil)
}

func TestRedisNotifierStoresAndPublishes(t *testing.T) {
	rdb := newFakeRedis()
	n := NewRedisNotifier(rdb)
	n.now = func() time.Time { return time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC) }

	ctx := context.Background()
	_, err := n.Latest(ctx)
	assert.ErrorIs(t, err, ErrNoProgress)

	snap := models.ProgressSnapshot{Phase: models.PhaseProcessingBatch, TotalDocuments: 4, ProcessedCount: 2, CurrentDocument: "a.pdf"}
	require.NoError(t, n.Publish(ctx, snap))

	assert.Equal(t, latestTTL, rdb.ttl)
	assert.Len(t, rdb.published[Channel], 1)

	got, err := n.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseProcessingBatch, got.Phase)
	assert.Equal(t, 2, got.ProcessedCount)
	assert.Equal(t, "a.pdf", got.CurrentDocument)
	assert.Equal(t, n.now(), got.UpdatedAt)
}

func TestRedisNotifierErrors(t *testing.T) {
	rdb := newFakeRedis()
	rdb.setErr = errors.New("connection refused")
	err := NewRedisNotifier(rdb).Publish(context.Background(), models.ProgressSnapshot{})
	assert.ErrorContains(t, err, "store progress")

	rdb = newFakeRedis()
	rdb.pubErr = errors.New("connection reset")
	err = NewRedisNotifier(rdb).Publish(context.Background(), models.ProgressSnapshot{})
	assert.ErrorContains(t, err, "publish progress")
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(logger.New(&buf, "release"))

	require.NoError(t, n.Publish(context.Background(), models.ProgressSnapshot{Phase: models.PhaseFailed, Error: "boom"}))
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), `"error":"boom"`)
	assert.Contains(t, buf.String(), `"msg":"reindex progress"`)
}

type recordingPublisher struct {
	calls int
	err   error
}

func (r *recordingPublisher) Publish(context.Context, models.ProgressSnapshot) error {
	r.calls++
	return r.err
}

func TestMultiPublishesToAllAndJoinsErrors(t *testing.T) {
	a := &recordingPublisher{err: errors.New("a down")}
	b := &recordingPublisher{}
	err := Multi{a, b}.Publish(context.Background(), models.ProgressSnapshot{})

	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.ErrorContains(t, err, "a down")
	assert.NoError(t, Multi{b}.Publish(context.Background(), models.ProgressSnapshot{}))
}
