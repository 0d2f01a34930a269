package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// ============================================================================
// Schema Bootstrap
// ============================================================================

// SchemaVersion identifies the constraint and index set below
const SchemaVersion = "knowledge_graph_v1"

// SchemaStep is one named group of schema statements
type SchemaStep struct {
	Name       string
	Statements []string
}

// SchemaSteps returns the constraints and indexes the store relies on. The
// composite uniqueness constraint is what makes concurrent entity MERGEs
// converge on one node.
func SchemaSteps() []SchemaStep {
	return []SchemaStep{
		{
			Name: "Create Constraints",
			Statements: []string{
				"CREATE CONSTRAINT entity_id_unique IF NOT EXISTS FOR (e:Entity) REQUIRE e.id IS UNIQUE",
				"CREATE CONSTRAINT entity_identity_unique IF NOT EXISTS FOR (e:Entity) REQUIRE (e.user_id, e.type, e.normalized_value) IS UNIQUE",
				"CREATE CONSTRAINT meeting_id_unique IF NOT EXISTS FOR (m:Meeting) REQUIRE m.id IS UNIQUE",
				"CREATE CONSTRAINT action_item_id_unique IF NOT EXISTS FOR (a:ActionItem) REQUIRE a.id IS UNIQUE",
			},
		},
		{
			Name: "Create Indexes",
			Statements: []string{
				"CREATE INDEX entity_user_idx IF NOT EXISTS FOR (e:Entity) ON (e.user_id)",
				"CREATE INDEX entity_normalized_idx IF NOT EXISTS FOR (e:Entity) ON (e.normalized_value)",
				"CREATE INDEX entity_type_user_idx IF NOT EXISTS FOR (e:Entity) ON (e.user_id, e.type)",
				"CREATE INDEX meeting_user_idx IF NOT EXISTS FOR (m:Meeting) ON (m.user_id)",
				"CREATE INDEX action_item_user_idx IF NOT EXISTS FOR (a:ActionItem) ON (a.user_id)",
			},
		},
		{
			Name: "Create Full-Text Indexes",
			Statements: []string{
				"CREATE FULLTEXT INDEX " + EntitySearchIndex + " IF NOT EXISTS FOR (e:Entity) ON EACH [e.normalized_value, e.display_value, e.description]",
			},
		},
	}
}

// SchemaApplied reports whether SchemaVersion has been recorded
func (r *Repository) SchemaApplied(ctx context.Context) (bool, error) {
	query := `
		MATCH (m:Migration {version: $version})
		RETURN m.applied_at AS applied_at
	`

	return readTx(ctx, r, "check schema", func(tx neo4j.ManagedTransaction) (bool, error) {
		record, err := single(ctx, tx, query, map[string]interface{}{"version": SchemaVersion})
		if err != nil {
			return false, fmt.Errorf("failed to check schema version: %w", err)
		}
		return record != nil, nil
	})
}

// SetupSchema creates every constraint and index and records SchemaVersion.
// Statements are idempotent, so force only skips the version check.
func (r *Repository) SetupSchema(ctx context.Context, force bool) error {
	if !force {
		applied, err := r.SchemaApplied(ctx)
		if err != nil {
			return err
		}
		if applied {
			r.logger.Info("Schema already applied", zap.String("version", SchemaVersion))
			return nil
		}
	}

	// Schema statements cannot share a transaction with each other or with writes
	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, step := range SchemaSteps() {
		r.logger.Info("Running schema step", zap.String("step", step.Name))
		for _, stmt := range step.Statements {
			result, err := session.Run(ctx, stmt, nil)
			if err != nil {
				return storeError("setup schema", fmt.Errorf("%s: %w", step.Name, err))
			}
			if _, err := result.Consume(ctx); err != nil {
				return storeError("setup schema", fmt.Errorf("%s: %w", step.Name, err))
			}
		}
	}

	markQuery := `
		MERGE (m:Migration {version: $version})
		SET m.applied_at = datetime(),
			m.description = 'Entity identity constraints, lookup indexes and entity full-text search'
	`
	if _, err := writeTx(ctx, r, "mark schema", func(tx neo4j.ManagedTransaction) (bool, error) {
		result, err := tx.Run(ctx, markQuery, map[string]interface{}{"version": SchemaVersion})
		if err != nil {
			return false, err
		}
		_, err = result.Consume(ctx)
		return err == nil, err
	}); err != nil {
		r.logger.Warn("Failed to mark schema as applied", zap.Error(err))
	}

	r.logger.Info("Schema setup completed", zap.String("version", SchemaVersion))
	return nil
}
