package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson" // Use bson for index keys
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docindex-platform/models"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	// Create indexes
	err = CreateIndexes(ctx, client.Database(cfg.DBName))
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

// CreateIndexes is idempotent; the ops CLI calls it on its own as well.
func CreateIndexes(ctx context.Context, db *mongo.Database) error {
	// The catalog is paged by _id, so only the filter fields need indexes.
	documentsCollection := db.Collection(models.CollectionDocuments)
	documentIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "content_type", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{
			Keys:    bson.D{{Key: "content_location", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := documentsCollection.Indexes().CreateMany(ctx, documentIndexes); err != nil {
		return err
	}

	runsCollection := db.Collection(models.CollectionReindexRuns)
	runIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
		{Keys: bson.D{{Key: "state.phase", Value: 1}}},
	}
	if _, err := runsCollection.Indexes().CreateMany(ctx, runIndexes); err != nil {
		return err
	}

	resourcesCollection := db.Collection(models.CollectionIndexResources)
	resourceIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "data_source_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := resourcesCollection.Indexes().CreateMany(ctx, resourceIndexes); err != nil {
		return err
	}

	return nil
}
