// manifold/config.go

package config

import (
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pterm/pterm"
	"gopkg.in/yaml.v2"
)

type DatabaseConfig struct {
	ConnectionString string `yaml:"connection_string"`
}

type RerankerConfig struct {
	Host string `yaml:"host"`
}

type AuthConfig struct {
	SecretKey   string `yaml:"secret_key"`
	TokenExpiry int    `yaml:"token_expiry"` // Token expiry in hours
}

// TelemetryConfig controls OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// ValidationConfig bounds what C1 will accept before handing a file to the converter.
type ValidationConfig struct {
	MaxUploadSizeMB    int      `yaml:"max_upload_size_mb"`
	AllowedExtensions  []string `yaml:"allowed_extensions"`
	SniffBytes         int      `yaml:"sniff_bytes"`
}

// ConverterConfig points at the external document-conversion service (C2).
type ConverterConfig struct {
	Host           string `yaml:"host"`
	APIKey         string `yaml:"api_key,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ChunkerConfig tunes the chunker (C3). Strategy selects between the
// heading-aware "hybrid" chunker (default) and the size-bounded "recursive"
// separator-cascade splitter; Overlap only applies to the latter.
type ChunkerConfig struct {
	Strategy   string `yaml:"strategy"` // "hybrid" | "recursive"
	MaxTokens  int    `yaml:"max_tokens"`
	Overlap    int    `yaml:"overlap"`
	MergePeers bool   `yaml:"merge_peers"`
}

// EmbeddingConfig points at the embedding backend the ingest pipeline (C4)
// and retrieval (C9) call to vectorize chunks and queries, generalizing the
// teacher's EmbeddingsConfig (internal/config/config.go) with the request
// shape internal/embedding.EmbedText actually sends.
type EmbeddingConfig struct {
	Model     string            `yaml:"model"`
	BaseURL   string            `yaml:"base_url"`
	Path      string            `yaml:"path"`
	APIKey    string            `yaml:"api_key,omitempty"`
	APIHeader string            `yaml:"api_header,omitempty"` // legacy single-header auth, e.g. "Authorization"
	Headers   map[string]string `yaml:"headers,omitempty"`    // arbitrary extra request headers
	Timeout   int               `yaml:"timeout_seconds"`
	Dimension int               `yaml:"dimension"`
}

// SearchBackendConfig selects C9's full-text-search candidate source
// (internal/persistence/databases), which runs alongside the knowledge
// graph's own hybrid search.
type SearchBackendConfig struct {
	Backend string `yaml:"backend"` // "memory" | "postgres" | "auto" | "none"
	DSN     string `yaml:"dsn,omitempty"`
}

// VectorBackendConfig selects C9's vector candidate source.
type VectorBackendConfig struct {
	Backend    string `yaml:"backend"` // "memory" | "postgres" | "qdrant" | "auto" | "none"
	DSN        string `yaml:"dsn,omitempty"`
	Collection string `yaml:"collection,omitempty"`
	Dimensions int    `yaml:"dimensions,omitempty"`
	Metric     string `yaml:"metric,omitempty"`
}

// RateLimiterConfig configures the token-aware sliding window (C4).
type RateLimiterConfig struct {
	WindowSeconds        int     `yaml:"window_seconds"`
	TokensPerMinute      int     `yaml:"tokens_per_minute"`
	SafetyBuffer         float64 `yaml:"safety_buffer"`
	EstimatedTokensChunk int     `yaml:"estimated_tokens_per_chunk"`
}

// GraphConfig points at the external knowledge-graph service (graphiti-like, C5/C9).
type GraphConfig struct {
	Host            string `yaml:"host"`
	APIKey          string `yaml:"api_key,omitempty"`
	DefaultGroupID  string `yaml:"default_group_id"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	BuildCommunities bool  `yaml:"build_communities"`
}

// QueueConfig tunes the document queue (C8).
type QueueConfig struct {
	InterDocumentDelaySeconds int `yaml:"inter_document_delay_seconds"`
}

// RAGConfig tunes the answer-generation orchestrator (C11).
type RAGConfig struct {
	TopK                      int     `yaml:"top_k"`
	RerankingEnabled          bool    `yaml:"reranking_enabled"`
	RerankRetrievalMultiplier int     `yaml:"rerank_retrieval_multiplier"`
	Temperature               float64 `yaml:"temperature"`
	MaxTokens                 int     `yaml:"max_tokens"`
	AnswerModel               string  `yaml:"answer_model"`
	// Host/APIKey point at the OpenAI-compatible chat completions endpoint
	// used to generate answers, mirroring root CompletionsConfig's shape.
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key,omitempty"`
}

// StatusConfig tunes the processing status registry (C6).
type StatusConfig struct {
	Backend              string `yaml:"backend"` // "memory" | "redis"
	RedisAddr            string `yaml:"redis_addr,omitempty"`
	MaxAgeHours          int    `yaml:"max_age_hours"`
}

// S3SSEConfig configures server-side encryption for archived objects.
type S3SSEConfig struct {
	Mode     string `yaml:"mode,omitempty"` // "", "sse-s3", "sse-kms"
	KMSKeyID string `yaml:"kms_key_id,omitempty"`
}

// S3Config configures the optional object-storage backend for uploaded documents.
type S3Config struct {
	Enabled   bool        `yaml:"enabled"`
	Bucket    string      `yaml:"bucket"`
	Region    string      `yaml:"region"`
	Endpoint  string      `yaml:"endpoint,omitempty"`
	Prefix    string      `yaml:"prefix,omitempty"`
	SSE       S3SSEConfig `yaml:"sse,omitempty"`
}

// EventsConfig configures best-effort publication of pipeline stage events to Kafka.
type EventsConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// AnalyticsConfig configures the ClickHouse ingestion-metrics sink (C12).
type AnalyticsConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
	Table   string `yaml:"table"`
}

type Config struct {
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	DataPath string         `yaml:"data_path"`
	Database DatabaseConfig `yaml:"database"`
	// DBPool backs internal/persistence/databases' Postgres FTS/vector
	// stores (C9's candidate sources alongside the knowledge graph); not
	// serialized, populated by the caller that opens the pool.
	DBPool   *pgxpool.Pool   `yaml:"-"`
	Reranker RerankerConfig  `yaml:"reranker"`
	Auth     AuthConfig      `yaml:"auth"`
	OTel     TelemetryConfig `yaml:"otel"`

	Validation ValidationConfig  `yaml:"validation"`
	Converter  ConverterConfig   `yaml:"converter"`
	Embedding  EmbeddingConfig   `yaml:"embedding"`
	Search     SearchBackendConfig `yaml:"search"`
	Vector     VectorBackendConfig `yaml:"vector"`
	Chunker    ChunkerConfig     `yaml:"chunker"`
	RateLimit  RateLimiterConfig `yaml:"rate_limit"`
	Graph      GraphConfig       `yaml:"graph"`
	Queue      QueueConfig       `yaml:"queue"`
	RAG        RAGConfig         `yaml:"rag"`
	Status     StatusConfig      `yaml:"status"`
	S3         S3Config          `yaml:"s3"`
	Events     EventsConfig      `yaml:"events"`
	Analytics  AnalyticsConfig   `yaml:"analytics"`
}

// LoadConfig reads the configuration from a YAML file, unmarshals it into a Config struct,
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		pterm.Error.Printf("Error reading config file: %v\n", err)
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		pterm.Error.Printf("Error unmarshaling config: %v\n", err)
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Set default values for Auth if not provided
	if config.Auth.SecretKey == "" {
		config.Auth.SecretKey = "your-secret-key" // Default fallback (should be changed in production)
		pterm.Warning.Println("No JWT secret key provided in config, using default (insecure).")
	}

	if config.Auth.TokenExpiry <= 0 {
		config.Auth.TokenExpiry = 72 // Default to 72 hours
		pterm.Info.Println("No token expiry specified, using default (72 hours).")
	}

	if config.OTel.ServiceName == "" {
		config.OTel.ServiceName = "manifold"
	}

	applyIngestDefaults(&config)

	pterm.Success.Println("Configuration loaded successfully.")
	return &config, nil
}

// applyIngestDefaults fills in sane defaults for the document-ingestion and
// retrieval subsystems, mirroring original_source's hardcoded constants
// (SafeIngestionQueue, DocumentQueue, DocumentValidator, RAG settings).
func applyIngestDefaults(config *Config) {
	if config.Validation.MaxUploadSizeMB <= 0 {
		config.Validation.MaxUploadSizeMB = 50
	}
	if len(config.Validation.AllowedExtensions) == 0 {
		config.Validation.AllowedExtensions = []string{".pdf", ".docx", ".pptx", ".doc", ".ppt"}
	}
	if config.Validation.SniffBytes <= 0 {
		config.Validation.SniffBytes = 1024
	}

	if config.Converter.TimeoutSeconds <= 0 {
		config.Converter.TimeoutSeconds = 120
	}

	if config.Embedding.Path == "" {
		config.Embedding.Path = "/v1/embeddings"
	}
	if config.Embedding.APIHeader == "" {
		config.Embedding.APIHeader = "Authorization"
	}
	if config.Embedding.Timeout <= 0 {
		config.Embedding.Timeout = 60
	}
	if config.Embedding.Dimension <= 0 {
		config.Embedding.Dimension = 768
	}

	if config.Chunker.Strategy == "" {
		config.Chunker.Strategy = "hybrid"
	}
	if config.Chunker.MaxTokens <= 0 {
		config.Chunker.MaxTokens = 2000
	}
	if config.Chunker.Overlap < 0 {
		config.Chunker.Overlap = 0
	}

	if config.RateLimit.WindowSeconds <= 0 {
		config.RateLimit.WindowSeconds = 60
		pterm.Info.Println("No rate_limit.window_seconds specified, using default (60s).")
	}
	if config.RateLimit.TokensPerMinute <= 0 {
		config.RateLimit.TokensPerMinute = 4_000_000
		pterm.Info.Println("No rate_limit.tokens_per_minute specified, using default (4,000,000).")
	}
	if config.RateLimit.SafetyBuffer <= 0 {
		config.RateLimit.SafetyBuffer = 0.80
	}
	if config.RateLimit.EstimatedTokensChunk <= 0 {
		config.RateLimit.EstimatedTokensChunk = 3000
	}

	if config.Graph.DefaultGroupID == "" {
		config.Graph.DefaultGroupID = "default"
	}
	if config.Graph.TimeoutSeconds <= 0 {
		config.Graph.TimeoutSeconds = 120
		pterm.Info.Println("No graph.timeout_seconds specified, using default (120s per episode).")
	}

	if config.Queue.InterDocumentDelaySeconds <= 0 {
		config.Queue.InterDocumentDelaySeconds = 60
	}

	if config.RAG.TopK <= 0 {
		config.RAG.TopK = 10
	}
	if config.RAG.RerankRetrievalMultiplier <= 0 {
		config.RAG.RerankRetrievalMultiplier = 4
	}
	if config.RAG.Temperature <= 0 {
		config.RAG.Temperature = 0.7
	}
	if config.RAG.MaxTokens <= 0 {
		config.RAG.MaxTokens = 2000
	}

	if config.Status.Backend == "" {
		config.Status.Backend = "memory"
	}
	if config.Status.MaxAgeHours <= 0 {
		config.Status.MaxAgeHours = 24
	}
}
