package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tami-graph/backend/internal/engine"
	"tami-graph/backend/pkg/config"
	apperrors "tami-graph/backend/pkg/errors"
	"tami-graph/backend/pkg/logger"
)

func init() {
	logger.Nop()
}

func memoryConfig() *config.Config {
	return &config.Config{
		StoreDriver:            config.StoreDriverMemory,
		StoreTimeout:           time.Second,
		StoreRetryAttempts:     2,
		ExtractionProvider:     config.ExtractionProviderService,
		ExtractionURL:          "http://localhost:8000",
		LLMBaseURL:             "http://localhost:4000/v1",
		LLMModel:               "gpt-4o-mini",
		MinConfidence:          0.6,
		CollaborationThreshold: 4,
		CoOccurrenceMin:        2,
		IngestConcurrency:      2,
	}
}

func TestNew_MemoryStore(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, memoryConfig())
	require.NoError(t, err)
	defer a.Close(ctx)

	assert.Nil(t, a.Neo4j)
	assert.Equal(t, "service", a.Extractor.Name())
	assert.Equal(t, 0.6, a.Engine.Options().MinConfidence)
	assert.Equal(t, 4, a.Engine.Options().CollaborationThreshold)
	require.NoError(t, a.SetupSchema(ctx, false))

	entity, err := a.Engine.UpsertEntity(ctx, "u1", engine.EntityRequest{Type: "project", Value: "Atlas"})
	require.NoError(t, err)
	assert.Equal(t, "atlas", entity.NormalizedValue)
}

func TestNewExtractor(t *testing.T) {
	cfg := memoryConfig()
	cfg.ExtractionProvider = config.ExtractionProviderLLM
	extractor, err := NewExtractor(cfg)
	require.NoError(t, err)
	assert.Equal(t, "llm", extractor.Name())

	cfg.ExtractionProvider = "carrier-pigeon"
	_, err = NewExtractor(cfg)
	assert.Equal(t, apperrors.ErrorTypeConfig, apperrors.TypeOf(err))
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.StoreDriver = "sqlite"
	_, _, err := OpenStore(context.Background(), cfg)
	assert.Equal(t, apperrors.ErrorTypeConfig, apperrors.TypeOf(err))
}
