package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI       string
	DBName         string
	Port           string
	GinMode        string
	CORSOrigins    []string
	FileStorageDir string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Admin API tokens
	AccessSecret string

	// Rate limiting and request bounds
	RateLimitReqs   int
	RateLimitWindow int // seconds
	MaxRequestBody  int64

	// Reindex saga
	ReindexBatchSize     int
	ReindexDocumentDelay time.Duration
	ReindexErrorHistory  int
	ReindexCron          string // empty disables the periodic trigger
	ReindexStepTimeout   time.Duration
	ReindexMaxRetry      int
	ExcludedContentTypes []string

	// Chunking used at ingest time
	MaxChunkSize int
	ChunkOverlap int

	// Metadata extraction
	ExtractorProvider string // "gemini" or "heuristic"
	GeminiAPIKey      string
	GeminiModel       string
	GeminiTier        string

	// MongoDB Search/Vector Search
	VectorSearchEnabled   bool
	VectorDimensions      int
	GoogleEmbeddingsModel string

	// Worker
	WorkerConcurrency int

	// SMTP Configuration for reindex alerts
	SMTPHost    string
	SMTPPort    string
	SMTPUser    string
	SMTPPass    string
	SMTPFrom    string
	AdminEmails []string

	// Telemetry
	OTLPEndpoint string
	ServiceName  string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017/docindex"),
		DBName:         getEnv("DB_NAME", "docindex"),
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080")),
		FileStorageDir: getEnv("FILE_STORAGE_DIR", "./storage"),

		// Redis Configuration
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AccessSecret: getEnv("ACCESS_SECRET", ""),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),
		MaxRequestBody:  int64(getEnvInt("MAX_REQUEST_BODY", 1<<20)),

		// Reindex saga
		ReindexBatchSize:     getEnvInt("REINDEX_BATCH_SIZE", 10),
		ReindexDocumentDelay: getEnvDuration("REINDEX_DOCUMENT_DELAY", 500*time.Millisecond),
		ReindexErrorHistory:  getEnvInt("REINDEX_ERROR_HISTORY", 20),
		ReindexCron:          getEnv("REINDEX_CRON", ""),
		ReindexStepTimeout:   getEnvDuration("REINDEX_STEP_TIMEOUT", 15*time.Minute),
		ReindexMaxRetry:      getEnvInt("REINDEX_MAX_RETRY", 3),
		ExcludedContentTypes: splitList(getEnv("REINDEX_EXCLUDED_TYPES", "image/png,image/jpeg,video/mp4")),

		MaxChunkSize: getEnvInt("MAX_CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),

		ExtractorProvider: getEnv("EXTRACTOR_PROVIDER", "heuristic"),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTier:        getEnv("GEMINI_TIER", "free"),

		VectorSearchEnabled:   getEnvBool("MONGODB_VECTOR_ENABLED", false),
		VectorDimensions:      getEnvInt("VECTOR_DIM", 768),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),

		SMTPHost:    getEnv("SMTP_HOST", ""),
		SMTPPort:    getEnv("SMTP_PORT", "587"),
		SMTPUser:    getEnv("SMTP_USER", ""),
		SMTPPass:    getEnv("SMTP_PASS", ""),
		SMTPFrom:    getEnv("SMTP_FROM", ""),
		AdminEmails: splitList(getEnv("ADMIN_EMAILS", "")),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:  getEnv("SERVICE_NAME", "docindex-platform"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that would otherwise fail deep inside a saga run.
func (c *Config) Validate() error {
	if c.ReindexBatchSize <= 0 {
		return fmt.Errorf("REINDEX_BATCH_SIZE must be positive, got %d", c.ReindexBatchSize)
	}
	if c.ReindexErrorHistory <= 0 {
		return fmt.Errorf("REINDEX_ERROR_HISTORY must be positive, got %d", c.ReindexErrorHistory)
	}
	if c.ChunkOverlap >= c.MaxChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than MAX_CHUNK_SIZE (%d)", c.ChunkOverlap, c.MaxChunkSize)
	}
	switch c.ExtractorProvider {
	case "heuristic":
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when EXTRACTOR_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("unknown EXTRACTOR_PROVIDER: %s", c.ExtractorProvider)
	}
	if c.VectorSearchEnabled && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when MONGODB_VECTOR_ENABLED=true")
	}
	return nil
}

// AlertsEnabled reports whether reindex alert emails can be sent.
func (c *Config) AlertsEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != "" && len(c.AdminEmails) > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
