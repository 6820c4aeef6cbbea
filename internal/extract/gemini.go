package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"docindex-platform/internal/logger"
)

// ErrGeminiUnavailable is returned while the circuit breaker is open.
var ErrGeminiUnavailable = errors.New("gemini unavailable: circuit breaker open")

// maxPromptText bounds how much document text is sent for metadata.
const maxPromptText = 12000

// embedBatchLimit is the API's per-request cap on batch embeddings.
const embedBatchLimit = 100

type RateLimits struct {
	RPM int // Requests per minute
	RPD int // Requests per day
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "tier1":
		return RateLimits{RPM: 1000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, RPD: 250}
	}
}

// GeminiClient wraps the generative AI client with a circuit breaker and a
// request rate limiter shared by metadata extraction and embeddings.
type GeminiClient struct {
	client      *genai.Client
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	log         *slog.Logger
}

func NewGeminiClient(ctx context.Context, apiKey, tier string, log *slog.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	log = logger.Or(log).With("component", "gemini")

	limits := getRateLimits(tier)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	// RPM limit with some buffer
	burst := limits.RPM / 10
	if burst < 1 {
		burst = 1
	}
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), burst)

	return &GeminiClient{
		client:      client,
		breaker:     breaker,
		rateLimiter: rateLimiter,
		log:         log,
	}, nil
}

func (gc *GeminiClient) call(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := gc.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	result, err := gc.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrGeminiUnavailable
	}
	return result, err
}

// GenerateJSON asks model for a JSON object answer to prompt.
func (gc *GeminiClient) GenerateJSON(ctx context.Context, modelName, prompt string) (map[string]any, error) {
	ctx, span := otel.Tracer("gemini-client").Start(ctx, "gemini.generate_json")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", modelName),
		attribute.Int("gemini.prompt_chars", len(prompt)),
	)

	result, err := gc.call(ctx, func() (interface{}, error) {
		model := gc.client.GenerativeModel(modelName)
		model.SetTemperature(0.2)
		model.SetMaxOutputTokens(1024)
		model.ResponseMIMEType = "application/json"
		return model.GenerateContent(ctx, genai.Text(prompt))
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		span.RecordError(err)
		return nil, err
	}

	raw := responseText(result.(*genai.GenerateContentResponse))
	var out map[string]any
	if err := json.Unmarshal([]byte(stripFence(raw)), &out); err != nil {
		return nil, fmt.Errorf("decode model answer: %w", err)
	}
	return out, nil
}

// Embed returns one vector per text, batching requests under the API cap.
func (gc *GeminiClient) Embed(ctx context.Context, modelName string, texts []string) ([][]float32, error) {
	ctx, span := otel.Tracer("gemini-client").Start(ctx, "gemini.embed")
	defer span.End()
	span.SetAttributes(attribute.String("gemini.model", modelName), attribute.Int("gemini.texts", len(texts)))

	em := gc.client.EmbeddingModel(modelName)
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchLimit {
		end := min(start+embedBatchLimit, len(texts))
		batch := em.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}
		result, err := gc.call(ctx, func() (interface{}, error) {
			return em.BatchEmbedContents(ctx, batch)
		})
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		resp := result.(*genai.BatchEmbedContentsResponse)
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Embeddings), end-start)
		}
		for _, e := range resp.Embeddings {
			vectors = append(vectors, e.Values)
		}
	}
	return vectors, nil
}

func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	var result strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					result.WriteString(string(text))
				}
			}
		}
	}
	return result.String()
}

// stripFence removes a markdown code fence some answers still carry.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// GeminiExtractor asks the model for document metadata and merges the
// heuristic fields underneath so counts are always present.
type GeminiExtractor struct {
	client   *GeminiClient
	model    string
	fallback *HeuristicExtractor
}

func NewGeminiExtractor(client *GeminiClient, model string) *GeminiExtractor {
	return &GeminiExtractor{client: client, model: model, fallback: NewHeuristicExtractor()}
}

func (g *GeminiExtractor) Extract(ctx context.Context, documentID, text string) (map[string]any, error) {
	md, err := g.fallback.Extract(ctx, documentID, text)
	if err != nil {
		return nil, err
	}
	answer, err := g.client.GenerateJSON(ctx, g.model, buildMetadataPrompt(text))
	if err != nil {
		return nil, fmt.Errorf("gemini metadata for %s: %w", documentID, err)
	}
	for _, k := range []string{"title", "summary", "keywords", "topics", "language", "document_type"} {
		if v, ok := answer[k]; ok && v != nil {
			md[k] = v
		}
	}
	md["extractor"] = "gemini"
	return md, nil
}

func buildMetadataPrompt(text string) string {
	if r := []rune(text); len(r) > maxPromptText {
		text = string(r[:maxPromptText])
	}
	return fmt.Sprintf(`Describe the following document as a JSON object with these fields:
"title" (string), "summary" (at most 3 sentences), "keywords" (up to 10 strings),
"topics" (up to 5 strings), "language" (ISO 639-1 code), "document_type" (string).

Document:
%s`, text)
}
