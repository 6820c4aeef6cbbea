// Package catalog reads and updates the document catalog in MongoDB.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docindex-platform/models"
)

// ErrDocumentNotFound is returned for unknown or malformed document ids.
var ErrDocumentNotFound = errors.New("document not found")

const defaultPageSize = 500

type Catalog struct {
	col           *mongo.Collection
	excludedTypes []string
	pageSize      int64
}

func New(db *mongo.Database, excludedTypes []string) *Catalog {
	return &Catalog{
		col:           db.Collection(models.CollectionDocuments),
		excludedTypes: excludedTypes,
		pageSize:      defaultPageSize,
	}
}

// EligibleFilter selects completed documents whose type is subject to reindex.
func EligibleFilter(excludedTypes []string) bson.M {
	filter := bson.M{"status": models.StatusCompleted}
	if len(excludedTypes) > 0 {
		filter["content_type"] = bson.M{"$nin": excludedTypes}
	}
	return filter
}

// ListEligibleDocuments pages through the catalog in _id order so repeated
// calls see the same sequence.
func (c *Catalog) ListEligibleDocuments(ctx context.Context) ([]models.DocumentRef, error) {
	var (
		refs   []models.DocumentRef
		lastID primitive.ObjectID
	)

	for {
		filter := EligibleFilter(c.excludedTypes)
		if !lastID.IsZero() {
			filter["_id"] = bson.M{"$gt": lastID}
		}

		opts := options.Find().
			SetSort(bson.D{{Key: "_id", Value: 1}}).
			SetLimit(c.pageSize).
			SetProjection(bson.M{"_id": 1, "filename": 1, "content_location": 1})

		cursor, err := c.col.Find(ctx, filter, opts)
		if err != nil {
			return nil, fmt.Errorf("find documents: %w", err)
		}

		var page []models.Document
		if err := cursor.All(ctx, &page); err != nil {
			return nil, fmt.Errorf("decode documents: %w", err)
		}

		for _, doc := range page {
			refs = append(refs, doc.Ref())
		}
		if int64(len(page)) < c.pageSize {
			return refs, nil
		}
		lastID = page[len(page)-1].ID
	}
}

func (c *Catalog) Get(ctx context.Context, id string) (*models.Document, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrDocumentNotFound
	}

	var doc models.Document
	err = c.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Catalog) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrDocumentNotFound
	}

	res, err := c.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// RecordOperation stores the outcome of a single-document operation. It never
// touches status, which belongs to the ingestion pipeline.
func (c *Catalog) RecordOperation(ctx context.Context, id, operation, errorMessage string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrDocumentNotFound
	}
	res, err := c.col.UpdateOne(ctx, bson.M{"_id": oid}, operationUpdate(operation, errorMessage, time.Now()))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func operationUpdate(operation, errorMessage string, now time.Time) bson.M {
	set := bson.M{
		"last_operation":    operation,
		"last_operation_at": now,
	}
	if errorMessage != "" {
		set["last_operation_error"] = errorMessage
		return bson.M{"$set": set}
	}
	set["processed_at"] = now
	return bson.M{"$set": set, "$unset": bson.M{"last_operation_error": ""}}
}

// SetSidecar stores where the current metadata sidecar of a document lives.
func (c *Catalog) SetSidecar(ctx context.Context, id, sidecarLocation string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrDocumentNotFound
	}
	_, err = c.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"sidecar_location": sidecarLocation}})
	return err
}

// Count returns how many documents a full reindex would visit.
func (c *Catalog) Count(ctx context.Context) (int64, error) {
	return c.col.CountDocuments(ctx, EligibleFilter(c.excludedTypes))
}
