package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "tami-graph/backend/pkg/errors"
)

// Store drivers
const (
	StoreDriverNeo4j  = "neo4j"
	StoreDriverMemory = "memory"
)

// Extraction providers
const (
	ExtractionProviderService = "service"
	ExtractionProviderLLM     = "llm"
)

// Config holds all application configuration
type Config struct {
	// App
	Port     string
	Env      string
	LogLevel string // Overrides the environment's default level when set

	// Graph store
	StoreDriver        string
	Neo4jURI           string
	Neo4jUser          string
	Neo4jPassword      string
	Neo4jDatabase      string
	StoreTimeout       time.Duration
	StoreRetryAttempts int
	SchemaAutoSetup    bool // Apply constraints and indexes at server start

	// Extraction
	ExtractionProvider string
	ExtractionURL      string
	ExtractionAPIKey   string
	LLMBaseURL         string
	LLMAPIKey          string
	LLMModel           string

	// Engine tuning
	MinConfidence          float64 // Extraction candidates below this are dropped
	CollaborationThreshold int     // Shared meetings needed to infer COLLABORATES_WITH
	CoOccurrenceMin        int     // Default shared-meeting floor for co-occurrence ranking
	IngestConcurrency      int     // Parallel upserts per transcript
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env files, but don't fail if they don't exist
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := &Config{
		Port:                   getEnv("PORT", "8080"),
		Env:                    getEnv("ENV", "development"),
		LogLevel:               strings.ToLower(getEnv("LOG_LEVEL", "")),
		StoreDriver:            strings.ToLower(getEnv("STORE_DRIVER", StoreDriverNeo4j)),
		Neo4jURI:               getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:              getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:          getEnv("NEO4J_PASSWORD", "password"),
		Neo4jDatabase:          getEnv("NEO4J_DATABASE", "neo4j"),
		StoreTimeout:           getEnvDuration("STORE_TIMEOUT", 10*time.Second),
		StoreRetryAttempts:     getEnvInt("STORE_RETRY_ATTEMPTS", 3),
		SchemaAutoSetup:        getEnvBool("SCHEMA_AUTO_SETUP", false),
		ExtractionProvider:     strings.ToLower(getEnv("EXTRACTION_PROVIDER", ExtractionProviderService)),
		ExtractionURL:          getEnv("EXTRACTION_URL", "http://localhost:8000"),
		ExtractionAPIKey:       getEnv("EXTRACTION_API_KEY", ""),
		LLMBaseURL:             getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:              getEnv("LLM_API_KEY", ""),
		LLMModel:               getEnv("LLM_MODEL", "gpt-4o-mini"),
		MinConfidence:          getEnvFloat("MIN_CONFIDENCE", 0.7),
		CollaborationThreshold: getEnvInt("COLLABORATION_THRESHOLD", 3),
		CoOccurrenceMin:        getEnvInt("CO_OCCURRENCE_MIN", 2),
		IngestConcurrency:      getEnvInt("INGEST_CONCURRENCY", 4),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverNeo4j:
		if c.Neo4jURI == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_URI")
		}
		if c.Neo4jUser == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_USER")
		}
		if c.Neo4jPassword == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_PASSWORD")
		}
	case StoreDriverMemory:
	default:
		return apperrors.NewConfigValidationFailed("STORE_DRIVER",
			fmt.Sprintf("must be %q or %q, got %q", StoreDriverNeo4j, StoreDriverMemory, c.StoreDriver))
	}

	switch c.ExtractionProvider {
	case ExtractionProviderService:
		if c.ExtractionURL == "" {
			return apperrors.NewConfigMissingRequired("EXTRACTION_URL")
		}
	case ExtractionProviderLLM:
		if c.LLMModel == "" {
			return apperrors.NewConfigMissingRequired("LLM_MODEL")
		}
	default:
		return apperrors.NewConfigValidationFailed("EXTRACTION_PROVIDER",
			fmt.Sprintf("must be %q or %q, got %q", ExtractionProviderService, ExtractionProviderLLM, c.ExtractionProvider))
	}

	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return apperrors.NewConfigValidationFailed("MIN_CONFIDENCE", fmt.Sprintf("must be within [0,1], got %v", c.MinConfidence))
	}
	if c.CollaborationThreshold < 1 {
		return apperrors.NewConfigValidationFailed("COLLABORATION_THRESHOLD", "must be at least 1")
	}
	if c.CoOccurrenceMin < 1 {
		return apperrors.NewConfigValidationFailed("CO_OCCURRENCE_MIN", "must be at least 1")
	}
	if c.StoreTimeout <= 0 {
		return apperrors.NewConfigValidationFailed("STORE_TIMEOUT", "must be positive")
	}
	if c.StoreRetryAttempts < 1 {
		c.StoreRetryAttempts = 1
	}
	if c.IngestConcurrency < 1 {
		c.IngestConcurrency = 1
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
