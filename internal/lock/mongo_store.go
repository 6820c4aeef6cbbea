package lock

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docindex-platform/models"
)

// MongoStore keeps the lock record in the ops_config collection.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection(models.CollectionOpsConfig)}
}

func (s *MongoStore) Get(ctx context.Context) (*models.LockRecord, error) {
	var rec models.LockRecord
	err := s.col.FindOne(ctx, bson.M{"_id": models.ReindexLockKey}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *MongoStore) Put(ctx context.Context, rec *models.LockRecord) error {
	_, err := s.col.UpdateOne(
		ctx,
		bson.M{"_id": models.ReindexLockKey},
		bson.M{
			"$set": bson.M{
				"is_locked":  rec.IsLocked,
				"started_at": rec.StartedAt,
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}
