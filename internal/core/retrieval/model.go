package retrieval

import (
	"context"
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when a chunk's vector length does not match
// the dimension the store was opened with. Insertion rejects the whole batch.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ChunkMetadata is the provenance bundle attached to every chunk. All fields are
// free-form strings supplied by the source manifest and default to empty.
type ChunkMetadata struct {
	Work              string
	Source            string
	Edition           string
	Title             string
	Chapter           string
	SectionPath       string
	Loc               string
	SourceReliability string
	EditionConfidence string
	CreatedAt         string
}

// Chunk is the unit of retrieval, created once at ingestion time and never
// mutated. A changed document becomes a fresh DocID, not an update.
type Chunk struct {
	ID         string
	DocID      string
	Text       string
	Vector     []float32
	ChunkIndex int
	Metadata   ChunkMetadata
}

// RetrievedChunk is a query-time view of a chunk: its text and metadata plus a
// formatted citation token and the index's native score. Score direction is
// whatever the backing index returns (distance for pgvector, similarity for
// chromem); callers must not re-sort.
type RetrievedChunk struct {
	ID         string
	DocID      string
	Cite       string
	Text       string
	Score      float64
	ChunkIndex int
	Metadata   ChunkMetadata
}

// Store is the vector index contract. Query preserves the index's native
// relevance order and treats an empty result as a normal outcome. Insert and
// Reset are ingestion-time operations; a single writer is assumed.
type Store interface {
	Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]RetrievedChunk, error)
	Insert(ctx context.Context, chunks []Chunk) error
	Reset(ctx context.Context) error
	Dimension() int
}

// CheckDimension validates every row's vector length against dim before any
// row is written. The error names the first offending row.
func CheckDimension(chunks []Chunk, dim int) error {
	for _, c := range chunks {
		if len(c.Vector) != dim {
			return fmt.Errorf("chunk %s: vector length %d, store dimension %d: %w",
				c.ID, len(c.Vector), dim, ErrDimensionMismatch)
		}
	}
	return nil
}
