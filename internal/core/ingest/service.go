package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stepstudy/bigbook-rag/internal/core/retrieval"
)

// embedBatchSize bounds the number of chunk texts per embedding request.
const embedBatchSize = 64

// Embedder turns chunk texts into vectors, batch at a time.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
}

// Service ingests manifest-listed documents into the vector store.
type Service struct {
	store    retrieval.Store
	embedder Embedder
	registry Registry

	maxChunkChars int
	chunkOverlap  int
	logger        *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithChunking overrides the chunk size and overlap.
func WithChunking(maxChars, overlap int) ServiceOption {
	return func(s *Service) {
		if maxChars > 0 {
			s.maxChunkChars = maxChars
		}
		if overlap >= 0 {
			s.chunkOverlap = overlap
		}
	}
}

// WithIngestLogger sets the Service's logger.
func WithIngestLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a Service.
func NewService(store retrieval.Store, embedder Embedder, registry Registry, opts ...ServiceOption) *Service {
	s := &Service{
		store:         store,
		embedder:      embedder,
		registry:      registry,
		maxChunkChars: DefaultMaxChunkChars,
		chunkOverlap:  DefaultChunkOverlap,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// RunResult summarizes one ingestion pass.
type RunResult struct {
	DocumentsIngested int
	DocumentsSkipped  int
	ChunksInserted    int
}

// Run ingests every document in the manifest. Already-registered documents are
// skipped, so re-running against unchanged sources is a no-op. Missing files
// and unsupported formats are logged and skipped; an embedding-dimension
// mismatch against the locked store dimension aborts the run.
func (s *Service) Run(ctx context.Context, manifestPath string) (*RunResult, error) {
	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	result := &RunResult{}

	for _, doc := range manifest.Documents {
		path := strings.TrimSpace(strings.ReplaceAll(doc.Path, `\`, "/"))
		if path == "" {
			s.logger.Warn("manifest entry has no path, skipping")
			result.DocumentsSkipped++
			continue
		}

		docID := doc.DocID
		if docID == "" {
			docID, err = fileDocID(path)
			if err != nil {
				s.logger.Warn("failed to read document, skipping", "path", path, "error", err)
				result.DocumentsSkipped++
				continue
			}
		}

		ingested, err := s.registry.IsIngested(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("failed to check registry for %s: %w", docID, err)
		}
		if ingested {
			s.logger.Info("document already ingested, skipping", "path", path, "docID", docID)
			result.DocumentsSkipped++
			continue
		}

		inserted, err := s.ingestDocument(ctx, path, docID, doc)
		if err != nil {
			if errors.Is(err, ErrUnsupportedFormat) {
				s.logger.Warn("unsupported document format, skipping", "path", path)
				result.DocumentsSkipped++
				continue
			}
			return nil, err
		}

		if err := s.registry.Register(ctx, docID); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", docID, err)
		}

		result.DocumentsIngested++
		result.ChunksInserted += inserted
		s.logger.Info("document ingested", "path", path, "docID", docID, "chunks", inserted)
	}

	return result, nil
}

func (s *Service) ingestDocument(ctx context.Context, path, docID string, doc ManifestDocument) (int, error) {
	text, err := readDocument(path)
	if err != nil {
		return 0, err
	}

	texts := ChunkParagraphs(text, s.maxChunkChars, s.chunkOverlap)
	if len(texts) == 0 {
		s.logger.Warn("document produced no chunks", "path", path)
		return 0, nil
	}

	meta := doc.Metadata()
	meta.CreatedAt = time.Now().UTC().Format(time.RFC3339)

	var rows []retrieval.Chunk
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		batch := texts[start:end]

		vectors, err := s.embedder.BatchEmbed(ctx, batch)
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunks of %s: %w", path, err)
		}
		if len(vectors) != len(batch) {
			return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}

		if start == 0 {
			if err := s.ensureDimension(ctx, len(vectors[0])); err != nil {
				return 0, err
			}
		}

		for i, vec := range vectors {
			rows = append(rows, retrieval.Chunk{
				ID:         uuid.NewString(),
				DocID:      docID,
				Text:       batch[i],
				Vector:     vec,
				ChunkIndex: start + i,
				Metadata:   meta,
			})
		}
	}

	if err := s.store.Insert(ctx, rows); err != nil {
		return 0, fmt.Errorf("failed to insert chunks of %s: %w", path, err)
	}
	return len(rows), nil
}

// ensureDimension locks the embedding dimension on first ingest and rejects
// any later drift. A mismatch means the embedding model changed underneath an
// existing store, which only a reset can fix.
func (s *Service) ensureDimension(ctx context.Context, dim int) error {
	locked, err := s.registry.LockedDimension(ctx)
	if err != nil {
		return fmt.Errorf("failed to read dimension lock: %w", err)
	}

	if existing, ok := locked.Get(); ok {
		if existing != dim {
			return fmt.Errorf("%w: store is locked to dimension %d, embedder produced %d (reset and re-ingest to change models)",
				retrieval.ErrDimensionMismatch, existing, dim)
		}
		return nil
	}

	return s.registry.LockDimension(ctx, dim)
}

// Reset wipes the vector store and the ingestion registry together so the next
// Run starts from nothing.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset store: %w", err)
	}
	if err := s.registry.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear registry: %w", err)
	}
	return nil
}

// fileDocID derives a stable document id from the file content.
func fileDocID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16], nil
}

// readDocument loads a plain-text source. Only .txt and .md are supported; the
// corpus ships as plain text.
func readDocument(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}
