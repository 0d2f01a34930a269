// Package app wires configuration into a running engine: graph store,
// extraction client, engine and ingestor.
package app

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"tami-graph/backend/internal/engine"
	"tami-graph/backend/internal/extraction"
	"tami-graph/backend/internal/graph"
	"tami-graph/backend/internal/graph/memstore"
	"tami-graph/backend/pkg/config"
	apperrors "tami-graph/backend/pkg/errors"
	"tami-graph/backend/pkg/logger"
)

// App holds the wired components
type App struct {
	Config    *config.Config
	Store     graph.Store
	Neo4j     *graph.Repository // nil unless STORE_DRIVER is neo4j
	Extractor extraction.Extractor
	Engine    *engine.Engine
	Ingestor  *engine.Ingestor
}

// New connects to the configured store and builds the engine on top of it
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.Get()

	store, repo, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	extractor, err := NewExtractor(cfg)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	eng := engine.New(store, engine.OptionsFromConfig(cfg))
	log.Info("Engine initialized",
		zap.String("store", cfg.StoreDriver),
		zap.String("extractor", extractor.Name()),
		zap.Float64("min_confidence", cfg.MinConfidence),
	)

	return &App{
		Config:    cfg,
		Store:     store,
		Neo4j:     repo,
		Extractor: extractor,
		Engine:    eng,
		Ingestor:  engine.NewIngestor(eng, extractor),
	}, nil
}

// OpenStore opens the graph store named by STORE_DRIVER. The repository is
// returned separately for schema management and is nil for the memory store.
func OpenStore(ctx context.Context, cfg *config.Config) (graph.Store, *graph.Repository, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Get().Warn("Using in-memory graph store; data is lost on exit")
		return memstore.New(), nil, nil
	case config.StoreDriverNeo4j:
		driver, err := neo4j.NewDriverWithContext(
			cfg.Neo4jURI,
			neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
		)
		if err != nil {
			return nil, nil, apperrors.NewConfigValidationFailed("NEO4J_URI", err.Error())
		}

		verifyCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
		defer cancel()
		if err := driver.VerifyConnectivity(verifyCtx); err != nil {
			_ = driver.Close(ctx)
			return nil, nil, apperrors.NewStoreUnavailable("verify connectivity", err)
		}

		logger.Get().Info("Connected to Neo4j",
			zap.String("uri", cfg.Neo4jURI),
			zap.String("database", cfg.Neo4jDatabase),
		)
		repo := graph.NewRepository(driver, cfg.Neo4jDatabase)
		return repo, repo, nil
	}
	return nil, nil, apperrors.NewConfigValidationFailed("STORE_DRIVER", fmt.Sprintf("unknown driver %q", cfg.StoreDriver))
}

// NewExtractor builds the extraction client named by EXTRACTION_PROVIDER
func NewExtractor(cfg *config.Config) (extraction.Extractor, error) {
	switch cfg.ExtractionProvider {
	case config.ExtractionProviderService:
		return extraction.NewServiceClient(cfg.ExtractionURL, cfg.ExtractionAPIKey, 0), nil
	case config.ExtractionProviderLLM:
		return extraction.NewLLMExtractor(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel), nil
	}
	return nil, apperrors.NewConfigValidationFailed("EXTRACTION_PROVIDER", fmt.Sprintf("unknown provider %q", cfg.ExtractionProvider))
}

// SetupSchema applies the Neo4j schema. It does nothing for the memory store.
func (a *App) SetupSchema(ctx context.Context, force bool) error {
	if a.Neo4j == nil {
		logger.Get().Info("Schema setup skipped for in-memory store")
		return nil
	}
	return a.Neo4j.SetupSchema(ctx, force)
}

// Close releases the store
func (a *App) Close(ctx context.Context) error {
	return a.Engine.Close(ctx)
}
