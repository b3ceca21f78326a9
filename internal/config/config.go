package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"replyforge-sources"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	SentryDSN         string  `envconfig:"SENTRY_DSN"`
	SentryEnvironment string  `envconfig:"SENTRY_ENVIRONMENT" default:"development"`
	SentrySampleRate  float64 `envconfig:"SENTRY_SAMPLE_RATE" default:"1.0"`

	// Ingest worker tuning
	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"5s"`
	CrawlMaxDepth      int           `envconfig:"CRAWL_MAX_DEPTH" default:"3"`
	CrawlMaxPages      int           `envconfig:"CRAWL_MAX_PAGES" default:"50"`

	// Retrieval tuning
	ChunkSize       int    `envconfig:"CHUNK_SIZE" default:"1024"`
	ChunkOverlap    int    `envconfig:"CHUNK_OVERLAP" default:"128"`
	RetrievalTopK   int    `envconfig:"RETRIEVAL_TOP_K" default:"5"`
	AnswerSourceCap int    `envconfig:"ANSWER_SOURCE_CAP" default:"3"`
	Reranker        string `envconfig:"RERANKER" default:"score"`

	// Bootstrap: create initial tenant and API key on startup
	InitTenantName string `envconfig:"INIT_TENANT_NAME"`
	InitAPIKey     string `envconfig:"INIT_API_KEY"`
}

// Reranking strategies selectable via REPLYFORGE_RERANKER
const (
	RerankerScore = "score"
	RerankerModel = "model"
)

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("REPLYFORGE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Reranker != RerankerScore && c.Reranker != RerankerModel {
		return fmt.Errorf("RERANKER must be %q or %q, got %q", RerankerScore, RerankerModel, c.Reranker)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must satisfy 0 <= overlap < CHUNK_SIZE, got %d", c.ChunkOverlap)
	}
	return nil
}


func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
