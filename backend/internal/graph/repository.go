package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"tami-graph/backend/pkg/logger"
)

// Repository is the Neo4j implementation of Store
type Repository struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
	now      func() time.Time
}

var _ Store = (*Repository)(nil)

// NewRepository creates a new graph repository. database may be empty to use
// the server's default database.
func NewRepository(driver neo4j.DriverWithContext, database string) *Repository {
	return &Repository{
		driver:   driver,
		database: database,
		logger:   logger.Named("graph"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Close closes the Neo4j driver connection
func (r *Repository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

func (r *Repository) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: r.database,
	})
}

// readTx runs work in one managed read transaction
func readTx[T any](ctx context.Context, r *Repository, op string, work func(tx neo4j.ManagedTransaction) (T, error)) (T, error) {
	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	var zero T
	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(tx)
	})
	if err != nil {
		return zero, storeError(op, err)
	}
	v, _ := out.(T)
	return v, nil
}

// writeTx runs work in one managed write transaction. Everything work does
// commits together or not at all.
func writeTx[T any](ctx context.Context, r *Repository, op string, work func(tx neo4j.ManagedTransaction) (T, error)) (T, error) {
	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	var zero T
	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(tx)
	})
	if err != nil {
		return zero, storeError(op, err)
	}
	v, _ := out.(T)
	return v, nil
}

// collect runs query and returns every record
func collect(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]interface{}) ([]*neo4j.Record, error) {
	result, err := tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return result.Collect(ctx)
}

// single runs query and returns its first record, or nil when there is none
func single(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]interface{}) (*neo4j.Record, error) {
	result, err := tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if result.Next(ctx) {
		record := result.Record()
		// drain so the transaction can continue
		if _, err := result.Consume(ctx); err != nil {
			return nil, err
		}
		return record, nil
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}
