package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docindex-platform/models"
)

var ErrRunNotFound = errors.New("reindex run not found")

// RunStore keeps one checkpoint per reindex run.
type RunStore interface {
	Create(ctx context.Context, run *models.ReindexRun) error
	Checkpoint(ctx context.Context, runID, action string, state *models.SagaState, cause string) error
	Get(ctx context.Context, runID string) (*models.ReindexRun, error)
}

type MongoRunStore struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoRunStore(db *mongo.Database) *MongoRunStore {
	return &MongoRunStore{
		col: db.Collection(models.CollectionReindexRuns),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *MongoRunStore) Create(ctx context.Context, run *models.ReindexRun) error {
	now := s.now()
	run.CreatedAt, run.UpdatedAt = now, now
	_, err := s.col.InsertOne(ctx, run)
	return err
}

func (s *MongoRunStore) Checkpoint(ctx context.Context, runID, action string, state *models.SagaState, cause string) error {
	now := s.now()
	set := bson.M{"last_action": action, "updated_at": now}
	if state != nil {
		set["state"] = state
		if state.Phase.Terminal() {
			set["finished_at"] = now
		}
	}
	if cause != "" {
		set["cause"] = cause
	}
	_, err := s.col.UpdateOne(
		ctx,
		bson.M{"_id": runID},
		bson.M{"$set": set, "$setOnInsert": bson.M{"created_at": now}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("checkpoint run %s: %w", runID, err)
	}
	return nil
}

func (s *MongoRunStore) Get(ctx context.Context, runID string) (*models.ReindexRun, error) {
	var run models.ReindexRun
	err := s.col.FindOne(ctx, bson.M{"_id": runID}).Decode(&run)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns the most recent runs first.
func (s *MongoRunStore) List(ctx context.Context, limit int64) ([]models.ReindexRun, error) {
	cursor, err := s.col.Find(ctx, bson.M{}, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	runs := []models.ReindexRun{}
	if err := cursor.All(ctx, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}
