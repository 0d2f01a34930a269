// Package engine is the entity resolution and relationship inference layer.
// It validates and normalizes requests, serializes merges against other
// writes to the same entities, and runs every store call through a timeout,
// a circuit breaker and (for idempotent calls) retries.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tami-graph/backend/internal/constants"
	"tami-graph/backend/internal/graph"
	"tami-graph/backend/pkg/config"
	"tami-graph/backend/pkg/logger"
)

// Options tunes the engine
type Options struct {
	StoreTimeout           time.Duration
	RetryAttempts          int
	RetryBaseDelay         time.Duration
	BreakerThreshold       uint32
	BreakerTimeout         time.Duration
	MinConfidence          float64
	CollaborationThreshold int
	CoOccurrenceMin        int
	IngestConcurrency      int
}

// DefaultOptions returns the built-in defaults
func DefaultOptions() Options {
	return Options{
		StoreTimeout:           constants.DefaultStoreTimeout,
		RetryAttempts:          constants.DefaultStoreRetryAttempts,
		RetryBaseDelay:         constants.StoreRetryBaseDelay,
		BreakerThreshold:       constants.BreakerFailureThreshold,
		BreakerTimeout:         constants.BreakerOpenTimeout,
		MinConfidence:          constants.DefaultMinConfidence,
		CollaborationThreshold: constants.DefaultCollaborationThreshold,
		CoOccurrenceMin:        constants.DefaultCoOccurrenceMin,
		IngestConcurrency:      4,
	}
}

// OptionsFromConfig overlays the configured values on the defaults
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	if cfg.StoreTimeout > 0 {
		opts.StoreTimeout = cfg.StoreTimeout
	}
	if cfg.StoreRetryAttempts > 0 {
		opts.RetryAttempts = cfg.StoreRetryAttempts
	}
	opts.MinConfidence = cfg.MinConfidence
	if cfg.CollaborationThreshold > 0 {
		opts.CollaborationThreshold = cfg.CollaborationThreshold
	}
	if cfg.CoOccurrenceMin > 0 {
		opts.CoOccurrenceMin = cfg.CoOccurrenceMin
	}
	if cfg.IngestConcurrency > 0 {
		opts.IngestConcurrency = cfg.IngestConcurrency
	}
	return opts
}

// Engine is the write and query API over a graph.Store. It keeps no graph
// state of its own; the per-entity locks only live as long as a call holds them.
type Engine struct {
	store  graph.Store
	opts   Options
	guard  *guard
	locks  *keyedLocks
	logger *zap.Logger
}

// New creates an engine over store. Zero-valued options fall back to the defaults.
func New(store graph.Store, opts Options) *Engine {
	defaults := DefaultOptions()
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaults.StoreTimeout
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = defaults.RetryAttempts
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = defaults.RetryBaseDelay
	}
	if opts.BreakerThreshold == 0 {
		opts.BreakerThreshold = defaults.BreakerThreshold
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = defaults.BreakerTimeout
	}
	if opts.CollaborationThreshold <= 0 {
		opts.CollaborationThreshold = defaults.CollaborationThreshold
	}
	if opts.CoOccurrenceMin <= 0 {
		opts.CoOccurrenceMin = defaults.CoOccurrenceMin
	}
	if opts.IngestConcurrency <= 0 {
		opts.IngestConcurrency = defaults.IngestConcurrency
	}

	log := logger.Named("engine")
	return &Engine{
		store:  store,
		opts:   opts,
		guard:  newGuard(opts, log),
		locks:  newKeyedLocks(),
		logger: log,
	}
}

// Options returns the effective options
func (e *Engine) Options() Options {
	return e.opts
}

// Close closes the underlying store
func (e *Engine) Close(ctx context.Context) error {
	return e.store.Close(ctx)
}
