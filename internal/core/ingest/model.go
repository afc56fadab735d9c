package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/samber/mo"
	"gopkg.in/yaml.v3"

	"github.com/stepstudy/bigbook-rag/internal/core/retrieval"
)

// ErrUnsupportedFormat marks a manifest entry whose file type has no reader.
// Per-document failure: the batch logs it and moves on.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Manifest is the sources file driving ingestion.
type Manifest struct {
	Documents []ManifestDocument `yaml:"documents"`
}

// ManifestDocument describes one source text and its citation metadata. DocID
// is optional; absent, it is derived from the file content hash.
type ManifestDocument struct {
	Path  string `yaml:"path"`
	DocID string `yaml:"doc_id"`

	Work              string `yaml:"work"`
	Source            string `yaml:"source"`
	Edition           string `yaml:"edition"`
	Title             string `yaml:"title"`
	Chapter           string `yaml:"chapter"`
	SectionPath       string `yaml:"section_path"`
	Loc               string `yaml:"loc"`
	SourceReliability string `yaml:"source_reliability"`
	EditionConfidence string `yaml:"edition_confidence"`
}

// Metadata maps the manifest entry onto the chunk metadata bundle.
func (d ManifestDocument) Metadata() retrieval.ChunkMetadata {
	return retrieval.ChunkMetadata{
		Work:              d.Work,
		Source:            d.Source,
		Edition:           d.Edition,
		Title:             d.Title,
		Chapter:           d.Chapter,
		SectionPath:       d.SectionPath,
		Loc:               d.Loc,
		SourceReliability: d.SourceReliability,
		EditionConfidence: d.EditionConfidence,
	}
}

// LoadManifest reads and parses the yaml sources manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// Registry tracks which documents have been ingested and pins the embedding
// dimension the store was created with.
type Registry interface {
	IsIngested(ctx context.Context, docID string) (bool, error)
	Register(ctx context.Context, docID string) error
	LockedDimension(ctx context.Context) (mo.Option[int], error)
	LockDimension(ctx context.Context, dim int) error
	Clear(ctx context.Context) error
}
