// Package indexmgr manages searchable index resources. A resource is a MongoDB
// chunk collection plus, when vector search is enabled, an Atlas vector search
// index on it.
package indexmgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docindex-platform/internal/logger"
	"docindex-platform/models"
)

// ErrResourceNotFound is returned by Resolve for unknown resource ids.
var ErrResourceNotFound = errors.New("index resource not found")

type Options struct {
	VectorSearchEnabled bool
	VectorDimensions    int
}

type Manager struct {
	db        *mongo.Database
	resources *mongo.Collection
	ops       *mongo.Collection
	opts      Options
	log       *slog.Logger
}

func New(db *mongo.Database, opts Options, log *slog.Logger) *Manager {
	return &Manager{
		db:        db,
		resources: db.Collection(models.CollectionIndexResources),
		ops:       db.Collection(models.CollectionOpsConfig),
		opts:      opts,
		log:       logger.Or(log).With("component", "index_manager"),
	}
}

// Names derives every identifier of a resource from its suffix.
func Names(suffix string) models.IndexResource {
	return models.IndexResource{
		ID:              "idx-" + suffix,
		DataSourceID:    "ds-" + suffix,
		Collection:      "chunks_" + suffix,
		VectorIndexName: "vec_" + suffix,
	}
}

func (m *Manager) CreateResource(ctx context.Context, suffix string) (*models.CreatedResource, error) {
	res := Names(suffix)
	res.CreatedAt = time.Now().UTC()

	if err := m.db.CreateCollection(ctx, res.Collection); err != nil {
		return nil, fmt.Errorf("create collection %s: %w", res.Collection, err)
	}

	col := m.db.Collection(res.Collection)
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "content_location", Value: 1}, {Key: "order", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "data_source_id", Value: 1}}},
		{Keys: bson.D{{Key: "text", Value: "text"}}},
	})
	if err != nil {
		return nil, fmt.Errorf("create chunk indexes: %w", err)
	}

	if m.opts.VectorSearchEnabled {
		model := mongo.SearchIndexModel{
			Definition: bson.D{{Key: "fields", Value: bson.A{
				bson.D{
					{Key: "type", Value: "vector"},
					{Key: "path", Value: "vector"},
					{Key: "numDimensions", Value: m.opts.VectorDimensions},
					{Key: "similarity", Value: "cosine"},
				},
				bson.D{
					{Key: "type", Value: "filter"},
					{Key: "path", Value: "data_source_id"},
				},
			}}},
			Options: options.SearchIndexes().SetName(res.VectorIndexName).SetType("vectorSearch"),
		}
		if _, err := col.SearchIndexes().CreateOne(ctx, model); err != nil {
			return nil, fmt.Errorf("create vector index %s: %w", res.VectorIndexName, err)
		}
		res.VectorIndexBuilt = true
	}

	if _, err := m.resources.InsertOne(ctx, res); err != nil {
		return nil, fmt.Errorf("record index resource %s: %w", res.ID, err)
	}

	m.log.Info("index resource created", "resource", res.ID, "collection", res.Collection, "vector_index", res.VectorIndexBuilt)
	return &models.CreatedResource{
		ResourceID:        res.ID,
		DataSourceID:      res.DataSourceID,
		VectorIndexHandle: res.VectorIndexName,
	}, nil
}

// DeleteResource tolerates resources that are already gone.
func (m *Manager) DeleteResource(ctx context.Context, resourceID string, deleteVectors bool) error {
	res, err := m.Resolve(ctx, resourceID)
	if errors.Is(err, ErrResourceNotFound) {
		m.log.Info("index resource already deleted", "resource", resourceID)
		return nil
	}
	if err != nil {
		return err
	}

	if deleteVectors {
		col := m.db.Collection(res.Collection)
		if res.VectorIndexBuilt {
			if err := col.SearchIndexes().DropOne(ctx, res.VectorIndexName); err != nil {
				m.log.Warn("failed to drop vector index, dropping collection anyway", "index", res.VectorIndexName, "error", err)
			}
		}
		if err := col.Drop(ctx); err != nil {
			return fmt.Errorf("drop collection %s: %w", res.Collection, err)
		}
	}

	if _, err := m.resources.DeleteOne(ctx, bson.M{"_id": resourceID}); err != nil {
		return fmt.Errorf("remove index resource record %s: %w", resourceID, err)
	}

	m.log.Info("index resource deleted", "resource", resourceID, "vectors_deleted", deleteVectors)
	return nil
}

func (m *Manager) Resolve(ctx context.Context, resourceID string) (*models.IndexResource, error) {
	var res models.IndexResource
	err := m.resources.FindOne(ctx, bson.M{"_id": resourceID}).Decode(&res)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrResourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find index resource %s: %w", resourceID, err)
	}
	return &res, nil
}

// Collection returns the chunk collection of a resource.
func (m *Manager) Collection(ctx context.Context, resourceID string) (*mongo.Collection, error) {
	res, err := m.Resolve(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	return m.db.Collection(res.Collection), nil
}

func (m *Manager) List(ctx context.Context) ([]models.IndexResource, error) {
	cursor, err := m.resources.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var out []models.IndexResource
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteDocumentChunks removes every chunk ingested for contentLocation.
func (m *Manager) DeleteDocumentChunks(ctx context.Context, resourceID, contentLocation string) (int64, error) {
	col, err := m.Collection(ctx, resourceID)
	if err != nil {
		return 0, err
	}
	res, err := col.DeleteMany(ctx, bson.M{"content_location": contentLocation})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ActiveResource returns "" when no resource has been promoted yet.
func (m *Manager) ActiveResource(ctx context.Context) (string, error) {
	var rec struct {
		ResourceID string `bson:"resource_id"`
	}
	err := m.ops.FindOne(ctx, bson.M{"_id": models.ActiveResourceKey}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return rec.ResourceID, nil
}

// SetActiveResource is the cutover: queries follow this key.
func (m *Manager) SetActiveResource(ctx context.Context, resourceID string) error {
	_, err := m.ops.UpdateOne(
		ctx,
		bson.M{"_id": models.ActiveResourceKey},
		bson.M{"$set": bson.M{"resource_id": resourceID, "updated_at": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return err
	}
	m.log.Info("active index resource switched", "resource", resourceID)
	return nil
}
