package config

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	// Detection
	ChunkThreshold   float64 `envconfig:"SIM_THRESHOLD" default:"0.92"`
	SummaryThreshold float64 `envconfig:"SIM_THRESHOLD_SUMMARY" default:"0.95"`
	ChunkSize        int     `envconfig:"SIM_CHUNK_SIZE" default:"500"`
	MinChunkRatio    float64 `envconfig:"SIM_MIN_CHUNK_RATIO" default:"0.6"`
	MinChunkSize     int     `envconfig:"SIM_MIN_CHUNK_SIZE" default:"0"`
	UseHybrid        bool    `envconfig:"SIM_USE_HYBRID" default:"true"`

	// Similarity index
	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	// Embedding
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`

	// Messaging
	NSQLookupd        string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost          string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP          string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	EnableCheckWorker bool   `envconfig:"ENABLE_CHECK_WORKER" default:"true"`

	// Server
	ServerPort   int    `envconfig:"SERVER_PORT" default:"8080"`
	CheckLogPath string `envconfig:"CHECK_LOG_PATH" default:"data/logs/check.log"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars may also be set in the shell; a missing .env is fine
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.ChunkThreshold < 0 || c.ChunkThreshold > 1 {
		return fmt.Errorf("%w: SIM_THRESHOLD must be in [0,1]", ErrInvalid)
	}
	if c.SummaryThreshold < 0 || c.SummaryThreshold > 1 {
		return fmt.Errorf("%w: SIM_THRESHOLD_SUMMARY must be in [0,1]", ErrInvalid)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: SIM_CHUNK_SIZE must be positive", ErrInvalid)
	}
	if c.MinChunkRatio < 0 || c.MinChunkRatio > 1 {
		return fmt.Errorf("%w: SIM_MIN_CHUNK_RATIO must be in [0,1]", ErrInvalid)
	}
	if c.WeaviateHost == "" {
		return fmt.Errorf("%w: WEAVIATE_HOST", ErrInvalid)
	}
	return nil
}
