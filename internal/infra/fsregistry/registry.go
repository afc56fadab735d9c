package fsregistry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/samber/mo"

	"github.com/stepstudy/bigbook-rag/internal/core/ingest"
)

const (
	dimLockFile  = "embedding_dim.txt"
	registryFile = "ingested_doc_ids.txt"
)

// Registry is a file-backed ingest registry: one file holding the embedding
// dimension lock, one holding the ingested document ids, one per line. It
// pairs with the embedded store for setups without a database.
type Registry struct {
	mu  sync.Mutex
	dir string
}

// New creates a Registry rooted at dir. The directory is created on first
// write.
func New(dir string) *Registry {
	return &Registry{dir: dir}
}

var _ ingest.Registry = (*Registry)(nil)

// IsIngested reports whether a document id is listed in the registry file.
func (r *Registry) IsIngested(_ context.Context, docID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.readIDs()
	if err != nil {
		return false, err
	}
	_, ok := ids[docID]
	return ok, nil
}

// Register appends a document id to the registry file. The file is rewritten
// sorted so diffs stay stable.
func (r *Registry) Register(_ context.Context, docID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.readIDs()
	if err != nil {
		return err
	}
	ids[docID] = struct{}{}

	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}
	path := filepath.Join(r.dir, registryFile)
	if err := os.WriteFile(path, []byte(strings.Join(sorted, "\n")+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

// LockedDimension reads the dimension lock file, if present.
func (r *Registry) LockedDimension(_ context.Context) (mo.Option[int], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(r.dir, dimLockFile))
	if os.IsNotExist(err) {
		return mo.None[int](), nil
	}
	if err != nil {
		return mo.None[int](), fmt.Errorf("failed to read dimension lock: %w", err)
	}

	dim, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return mo.None[int](), fmt.Errorf("corrupt dimension lock file: %w", err)
	}
	return mo.Some(dim), nil
}

// LockDimension writes the dimension lock file.
func (r *Registry) LockDimension(_ context.Context, dim int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}
	path := filepath.Join(r.dir, dimLockFile)
	if err := os.WriteFile(path, []byte(strconv.Itoa(dim)), 0o644); err != nil {
		return fmt.Errorf("failed to write dimension lock: %w", err)
	}
	return nil
}

// Clear removes both registry files.
func (r *Registry) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range []string{dimLockFile, registryFile} {
		if err := os.Remove(filepath.Join(r.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	return nil
}

func (r *Registry) readIDs() (map[string]struct{}, error) {
	ids := make(map[string]struct{})

	data, err := os.ReadFile(filepath.Join(r.dir, registryFile))
	if os.IsNotExist(err) {
		return ids, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			ids[line] = struct{}{}
		}
	}
	return ids, nil
}
