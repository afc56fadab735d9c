package chromem

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/stepstudy/bigbook-rag/internal/core/retrieval"
)

const collectionName = "chunks"

// Store is the embedded chromem-go chunk store. It needs no external server,
// which makes it the default backend for local setups; the postgres store
// covers shared deployments.
type Store struct {
	mu         sync.Mutex
	db         *chromemgo.DB
	collection *chromemgo.Collection
	dimension  int
}

// NewStore creates a Store. An empty path keeps everything in memory;
// otherwise the database persists under path.
func NewStore(path string, dimension int) (*Store, error) {
	var db *chromemgo.DB
	var err error

	if path == "" {
		db = chromemgo.NewDB()
	} else {
		db, err = chromemgo.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem database: %w", err)
		}
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}

	return &Store{db: db, collection: collection, dimension: dimension}, nil
}

var _ retrieval.Store = (*Store)(nil)

// Query runs a similarity search. Equality predicates use chromem's native
// metadata filter; membership predicates are applied client-side afterwards,
// preserving the similarity order chromem returned. Score is the cosine
// similarity (higher = closer); callers must not re-sort.
func (s *Store) Query(ctx context.Context, vector []float32, topK int, filter retrieval.Filter) ([]retrieval.RetrievedChunk, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: store expects dimension %d, query vector has %d",
			retrieval.ErrDimensionMismatch, s.dimension, len(vector))
	}
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}

	s.mu.Lock()
	collection := s.collection
	s.mu.Unlock()

	count := collection.Count()
	if count == 0 {
		return nil, nil
	}

	where := make(map[string]string)
	var membership []retrieval.Predicate
	for _, p := range filter {
		if len(p.Values) == 1 {
			where[p.Field] = p.Values[0]
		} else {
			membership = append(membership, p)
		}
	}
	if len(where) == 0 {
		where = nil
	}

	// Membership predicates thin the result set after the fact, so fetch
	// everything and trim to topK at the end.
	nResults := topK
	if len(membership) > 0 || nResults > count {
		nResults = count
	}

	results, err := collection.QueryEmbedding(ctx, vector, nResults, where, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	var chunks []retrieval.RetrievedChunk
	for _, r := range results {
		if !matchesMembership(r.Metadata, membership) {
			continue
		}

		chunk := resultToChunk(r)
		chunks = append(chunks, chunk)
		if len(chunks) >= topK {
			break
		}
	}

	return chunks, nil
}

// Insert writes chunk rows after a dimension check across the whole batch.
func (s *Store) Insert(ctx context.Context, chunks []retrieval.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	if err := retrieval.CheckDimension(chunks, s.dimension); err != nil {
		return err
	}

	docs := make([]chromemgo.Document, 0, len(chunks))
	for _, c := range chunks {
		docs = append(docs, chromemgo.Document{
			ID:        c.ID,
			Content:   c.Text,
			Embedding: c.Vector,
			Metadata:  chunkMetadataMap(c),
		})
	}

	s.mu.Lock()
	collection := s.collection
	s.mu.Unlock()

	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Reset drops and recreates the collection.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	collection, err := s.db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to recreate collection: %w", err)
	}
	s.collection = collection
	return nil
}

// Dimension returns the vector dimension the store was created with.
func (s *Store) Dimension() int {
	return s.dimension
}

func matchesMembership(meta map[string]string, predicates []retrieval.Predicate) bool {
	for _, p := range predicates {
		matched := false
		for _, v := range p.Values {
			if meta[p.Field] == v {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func chunkMetadataMap(c retrieval.Chunk) map[string]string {
	return map[string]string{
		"doc_id":             c.DocID,
		"chunk_index":        strconv.Itoa(c.ChunkIndex),
		"work":               c.Metadata.Work,
		"source":             c.Metadata.Source,
		"edition":            c.Metadata.Edition,
		"title":              c.Metadata.Title,
		"chapter":            c.Metadata.Chapter,
		"section_path":       c.Metadata.SectionPath,
		"loc":                c.Metadata.Loc,
		"source_reliability": c.Metadata.SourceReliability,
		"edition_confidence": c.Metadata.EditionConfidence,
		"created_at":         c.Metadata.CreatedAt,
	}
}

func resultToChunk(r chromemgo.Result) retrieval.RetrievedChunk {
	chunkIndex, _ := strconv.Atoi(r.Metadata["chunk_index"])

	meta := retrieval.ChunkMetadata{
		Work:              r.Metadata["work"],
		Source:            r.Metadata["source"],
		Edition:           r.Metadata["edition"],
		Title:             r.Metadata["title"],
		Chapter:           r.Metadata["chapter"],
		SectionPath:       r.Metadata["section_path"],
		Loc:               r.Metadata["loc"],
		SourceReliability: r.Metadata["source_reliability"],
		EditionConfidence: r.Metadata["edition_confidence"],
		CreatedAt:         r.Metadata["created_at"],
	}

	return retrieval.RetrievedChunk{
		ID:         r.ID,
		DocID:      r.Metadata["doc_id"],
		Cite:       retrieval.Citation(meta, chunkIndex),
		Text:       r.Content,
		Score:      float64(r.Similarity),
		ChunkIndex: chunkIndex,
		Metadata:   meta,
	}
}
