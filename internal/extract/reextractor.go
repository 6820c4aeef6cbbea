package extract

import (
	"context"
	"fmt"
	"log/slog"

	"docindex-platform/internal/config"
)

// Reextractor composes reading, metadata extraction, sidecar storage and
// ingest over one storage root.
type Reextractor struct {
	reader    *TextReader
	extractor MetadataExtractor
	sidecars  *SidecarStore
	ingester  *Ingester
}

func NewReextractor(reader *TextReader, extractor MetadataExtractor, sidecars *SidecarStore, ingester *Ingester) *Reextractor {
	return &Reextractor{reader: reader, extractor: extractor, sidecars: sidecars, ingester: ingester}
}

// NewFromConfig wires the storage root, the configured metadata provider and
// embeddings. The returned close func releases the model client, if any.
func NewFromConfig(ctx context.Context, cfg *config.Config, resolver CollectionResolver, log *slog.Logger) (*Reextractor, func() error, error) {
	storage := NewStorage(cfg.FileStorageDir)
	reader := NewTextReader(storage)
	sidecars := NewSidecarStore(storage)
	closer := func() error { return nil }

	var (
		gemini    *GeminiClient
		extractor MetadataExtractor = NewHeuristicExtractor()
		embedder  Embedder
	)
	if cfg.ExtractorProvider == "gemini" || cfg.VectorSearchEnabled {
		if cfg.GeminiAPIKey == "" {
			return nil, nil, fmt.Errorf("missing GEMINI_API_KEY for provider %q", cfg.ExtractorProvider)
		}
		c, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiTier, log)
		if err != nil {
			return nil, nil, fmt.Errorf("create gemini client: %w", err)
		}
		gemini = c
		closer = c.Close
	}
	if cfg.ExtractorProvider == "gemini" {
		extractor = NewGeminiExtractor(gemini, cfg.GeminiModel)
	}
	if cfg.VectorSearchEnabled {
		embedder = NewGeminiEmbedder(gemini, cfg.GoogleEmbeddingsModel)
	}

	ingester := NewIngester(reader, sidecars, NewMongoChunkWriter(resolver), embedder, IngestOptions{
		ChunkSize: cfg.MaxChunkSize,
		Overlap:   cfg.ChunkOverlap,
	})
	return NewReextractor(reader, extractor, sidecars, ingester), closer, nil
}

func (r *Reextractor) ReadText(ctx context.Context, contentLocation string) (string, error) {
	return r.reader.ReadText(ctx, contentLocation)
}

func (r *Reextractor) ExtractMetadata(ctx context.Context, contentLocation, documentID string) (map[string]any, error) {
	text, err := r.reader.ReadText(ctx, contentLocation)
	if err != nil {
		return nil, err
	}
	md, err := r.extractor.Extract(ctx, documentID, text)
	if err != nil {
		return nil, err
	}
	if md == nil {
		md = map[string]any{}
	}
	md["document_id"] = documentID
	md["source_location"] = contentLocation
	return md, nil
}

func (r *Reextractor) WriteSidecar(ctx context.Context, contentLocation string, metadata map[string]any) (string, error) {
	return r.sidecars.Write(ctx, contentLocation, metadata)
}

func (r *Reextractor) Ingest(ctx context.Context, resourceID, dataSourceID, contentLocation, sidecarLocation string) (string, error) {
	return r.ingester.Ingest(ctx, resourceID, dataSourceID, contentLocation, sidecarLocation)
}
