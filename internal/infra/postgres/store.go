package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/stepstudy/bigbook-rag/internal/core/retrieval"
	"github.com/stepstudy/bigbook-rag/pkg/db"
)

// Store is the pgvector-backed chunk store. A single writer (the ingest
// command) is assumed; reads may run concurrently.
type Store struct {
	db        *db.DB
	dimension int
}

// NewStore creates a Store for vectors of the given dimension.
func NewStore(database *db.DB, dimension int) *Store {
	return &Store{db: database, dimension: dimension}
}

var _ retrieval.Store = (*Store)(nil)

// EnsureSchema creates the chunks table if it does not exist. The vector
// column is sized to the store's dimension, which is why the dimension lock
// matters: an existing table silently rejects vectors of any other size.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS chunks (
			id UUID PRIMARY KEY,
			doc_id TEXT NOT NULL,
			text TEXT NOT NULL,
			vector vector(%d) NOT NULL,
			chunk_index INT NOT NULL,
			work TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			edition TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			chapter TEXT NOT NULL DEFAULT '',
			section_path TEXT NOT NULL DEFAULT '',
			loc TEXT NOT NULL DEFAULT '',
			source_reliability TEXT NOT NULL DEFAULT '',
			edition_confidence TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT ''
		)`, s.dimension)
	if _, err := s.db.Pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create chunks table: %w", err)
	}

	if _, err := s.db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS chunks_doc_id_idx ON chunks (doc_id)"); err != nil {
		return fmt.Errorf("failed to create doc_id index: %w", err)
	}

	return nil
}

const selectColumns = `id, doc_id, text, chunk_index, work, source, edition, title, chapter,
	section_path, loc, source_reliability, edition_confidence, created_at`

// Query runs a nearest-neighbor scan ordered by cosine distance. Score is the
// raw distance (lower = closer); callers must not re-sort.
func (s *Store) Query(ctx context.Context, vector []float32, topK int, filter retrieval.Filter) ([]retrieval.RetrievedChunk, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: store expects dimension %d, query vector has %d",
			retrieval.ErrDimensionMismatch, s.dimension, len(vector))
	}

	args := []any{pgvector.NewVector(vector)}
	conditions, filterArgs, err := compileFilter(filter, 2)
	if err != nil {
		return nil, err
	}
	args = append(args, filterArgs...)
	args = append(args, topK)

	query := fmt.Sprintf(`
		SELECT %s, vector <=> $1 AS score
		FROM chunks%s
		ORDER BY vector <=> $1
		LIMIT $%d`, selectColumns, whereClause(conditions), len(args))

	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []retrieval.RetrievedChunk
	for rows.Next() {
		var c retrieval.RetrievedChunk
		if err := rows.Scan(
			&c.ID, &c.DocID, &c.Text, &c.ChunkIndex,
			&c.Metadata.Work, &c.Metadata.Source, &c.Metadata.Edition, &c.Metadata.Title,
			&c.Metadata.Chapter, &c.Metadata.SectionPath, &c.Metadata.Loc,
			&c.Metadata.SourceReliability, &c.Metadata.EditionConfidence, &c.Metadata.CreatedAt,
			&c.Score,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		c.Cite = retrieval.Citation(c.Metadata, c.ChunkIndex)
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunk rows: %w", err)
	}

	return results, nil
}

// Insert writes chunk rows in a single batch. Every vector is dimension
// checked first so a drifting embedder cannot leave a partially written
// document behind.
func (s *Store) Insert(ctx context.Context, chunks []retrieval.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	if err := retrieval.CheckDimension(chunks, s.dimension); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
			INSERT INTO chunks (
				id, doc_id, text, vector, chunk_index, work, source, edition, title,
				chapter, section_path, loc, source_reliability, edition_confidence, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			c.ID, c.DocID, c.Text, pgvector.NewVector(c.Vector), c.ChunkIndex,
			c.Metadata.Work, c.Metadata.Source, c.Metadata.Edition, c.Metadata.Title,
			c.Metadata.Chapter, c.Metadata.SectionPath, c.Metadata.Loc,
			c.Metadata.SourceReliability, c.Metadata.EditionConfidence, c.Metadata.CreatedAt,
		)
	}

	results := s.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	return nil
}

// Reset drops the chunks table; EnsureSchema recreates it on the next run.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.Pool.Exec(ctx, "DROP TABLE IF EXISTS chunks"); err != nil {
		return fmt.Errorf("failed to drop chunks table: %w", err)
	}
	return s.EnsureSchema(ctx)
}

// Dimension returns the vector dimension the store was created with.
func (s *Store) Dimension() int {
	return s.dimension
}
