package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/samber/mo"

	"github.com/stepstudy/bigbook-rag/internal/core/ingest"
	"github.com/stepstudy/bigbook-rag/pkg/db"
)

// IngestRegistry tracks ingested documents and the embedding-dimension lock in
// two small tables alongside the chunk store.
type IngestRegistry struct {
	db *db.DB
}

// NewIngestRegistry creates an IngestRegistry.
func NewIngestRegistry(database *db.DB) *IngestRegistry {
	return &IngestRegistry{db: database}
}

var _ ingest.Registry = (*IngestRegistry)(nil)

// EnsureSchema creates the registry tables if they do not exist.
func (r *IngestRegistry) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, "CREATE TABLE IF NOT EXISTS ingested_docs (doc_id TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("failed to create ingested_docs table: %w", err)
	}

	// Single-row table; the CHECK pins it to one row.
	ddl := `
		CREATE TABLE IF NOT EXISTS embedding_dimension (
			only_row BOOL PRIMARY KEY DEFAULT TRUE CHECK (only_row),
			dim INT NOT NULL
		)`
	if _, err := r.db.Pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create embedding_dimension table: %w", err)
	}

	return nil
}

// IsIngested reports whether a document id is already registered.
func (r *IngestRegistry) IsIngested(ctx context.Context, docID string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM ingested_docs WHERE doc_id = $1)", docID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check ingested_docs: %w", err)
	}
	return exists, nil
}

// Register records a document id as ingested.
func (r *IngestRegistry) Register(ctx context.Context, docID string) error {
	_, err := r.db.Pool.Exec(ctx,
		"INSERT INTO ingested_docs (doc_id) VALUES ($1) ON CONFLICT DO NOTHING", docID,
	)
	if err != nil {
		return fmt.Errorf("failed to register document: %w", err)
	}
	return nil
}

// LockedDimension returns the pinned embedding dimension, if any.
func (r *IngestRegistry) LockedDimension(ctx context.Context) (mo.Option[int], error) {
	var dim int
	err := r.db.Pool.QueryRow(ctx, "SELECT dim FROM embedding_dimension").Scan(&dim)
	if errors.Is(err, pgx.ErrNoRows) {
		return mo.None[int](), nil
	}
	if err != nil {
		return mo.None[int](), fmt.Errorf("failed to read dimension lock: %w", err)
	}
	return mo.Some(dim), nil
}

// LockDimension pins the embedding dimension. First write wins.
func (r *IngestRegistry) LockDimension(ctx context.Context, dim int) error {
	_, err := r.db.Pool.Exec(ctx,
		"INSERT INTO embedding_dimension (dim) VALUES ($1) ON CONFLICT (only_row) DO NOTHING", dim,
	)
	if err != nil {
		return fmt.Errorf("failed to write dimension lock: %w", err)
	}
	return nil
}

// Clear wipes both registry tables.
func (r *IngestRegistry) Clear(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, "DELETE FROM ingested_docs"); err != nil {
		return fmt.Errorf("failed to clear ingested_docs: %w", err)
	}
	if _, err := r.db.Pool.Exec(ctx, "DELETE FROM embedding_dimension"); err != nil {
		return fmt.Errorf("failed to clear embedding_dimension: %w", err)
	}
	return nil
}
