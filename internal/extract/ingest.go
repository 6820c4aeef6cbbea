package extract

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docindex-platform/models"
)

// Ingest statuses reported back to callers.
const (
	StatusIndexed = "INDEXED"
	StatusEmpty   = "EMPTY"
)

// Embedder turns chunk texts into vectors, one per text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type GeminiEmbedder struct {
	client *GeminiClient
	model  string
}

func NewGeminiEmbedder(client *GeminiClient, model string) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, model: model}
}

func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.client.Embed(ctx, e.model, texts)
}

// ChunkWriter replaces the chunk set of one content location in a resource.
type ChunkWriter interface {
	ReplaceChunks(ctx context.Context, resourceID, contentLocation string, chunks []models.Chunk) error
}

// CollectionResolver maps a resource id to its chunk collection.
type CollectionResolver interface {
	Collection(ctx context.Context, resourceID string) (*mongo.Collection, error)
}

type MongoChunkWriter struct {
	resolver CollectionResolver
}

func NewMongoChunkWriter(resolver CollectionResolver) *MongoChunkWriter {
	return &MongoChunkWriter{resolver: resolver}
}

// ReplaceChunks upserts by (content_location, order) and removes orders past
// the new chunk count, so re-ingesting the same content is idempotent.
func (w *MongoChunkWriter) ReplaceChunks(ctx context.Context, resourceID, contentLocation string, chunks []models.Chunk) error {
	col, err := w.resolver.Collection(ctx, resourceID)
	if err != nil {
		return err
	}

	if len(chunks) > 0 {
		writes := make([]mongo.WriteModel, 0, len(chunks))
		for _, ch := range chunks {
			writes = append(writes, mongo.NewReplaceOneModel().
				SetFilter(bson.M{"content_location": contentLocation, "order": ch.Order}).
				SetReplacement(ch).
				SetUpsert(true))
		}
		if _, err := col.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
			return fmt.Errorf("write chunks: %w", err)
		}
	}

	_, err = col.DeleteMany(ctx, bson.M{
		"content_location": contentLocation,
		"order":            bson.M{"$gte": len(chunks)},
	})
	if err != nil {
		return fmt.Errorf("remove stale chunks: %w", err)
	}
	return nil
}

type IngestOptions struct {
	ChunkSize int
	Overlap   int
}

// Ingester chunks content, attaches sidecar metadata and optional vectors,
// and hands the result to a ChunkWriter.
type Ingester struct {
	reader   *TextReader
	sidecars *SidecarStore
	writer   ChunkWriter
	embedder Embedder // nil disables vectors
	opts     IngestOptions
	now      func() time.Time
}

func NewIngester(reader *TextReader, sidecars *SidecarStore, writer ChunkWriter, embedder Embedder, opts IngestOptions) *Ingester {
	return &Ingester{
		reader:   reader,
		sidecars: sidecars,
		writer:   writer,
		embedder: embedder,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (in *Ingester) Ingest(ctx context.Context, resourceID, dataSourceID, contentLocation, sidecarLocation string) (string, error) {
	text, err := in.reader.ReadText(ctx, contentLocation)
	if err != nil {
		return "", err
	}

	var metadata map[string]any
	if sidecarLocation != "" {
		sc, err := in.sidecars.Read(ctx, sidecarLocation)
		if err != nil {
			return "", fmt.Errorf("read sidecar: %w", err)
		}
		metadata = sc.Metadata
	}

	texts := ChunkText(text, in.opts.ChunkSize, in.opts.Overlap)
	var vectors [][]float32
	if in.embedder != nil && len(texts) > 0 {
		vectors, err = in.embedder.Embed(ctx, texts)
		if err != nil {
			return "", fmt.Errorf("embed chunks: %w", err)
		}
	}

	ingestedAt := in.now()
	chunks := make([]models.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = models.Chunk{
			ContentLocation: contentLocation,
			DataSourceID:    dataSourceID,
			Order:           i,
			Text:            t,
			Metadata:        metadata,
			IngestedAt:      ingestedAt,
		}
		if vectors != nil {
			chunks[i].Vector = vectors[i]
		}
	}

	if err := in.writer.ReplaceChunks(ctx, resourceID, contentLocation, chunks); err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return StatusEmpty, nil
	}
	return StatusIndexed, nil
}
