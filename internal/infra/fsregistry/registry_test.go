package fsregistry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndIsIngested(t *testing.T) {
	r := New(t.TempDir())
	ctx := context.Background()

	ok, err := r.IsIngested(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Register(ctx, "d1"))
	require.NoError(t, r.Register(ctx, "d2"))

	ok, err = r.IsIngested(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegistryFileIsSorted(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)
	ctx := context.Background()

	require.NoError(t, r.Register(ctx, "zzz"))
	require.NoError(t, r.Register(ctx, "aaa"))

	data, err := os.ReadFile(filepath.Join(dir, "ingested_doc_ids.txt"))
	require.NoError(t, err)
	assert.Equal(t, "aaa\nzzz\n", string(data))
}

func TestDimensionLockRoundTrip(t *testing.T) {
	r := New(t.TempDir())
	ctx := context.Background()

	locked, err := r.LockedDimension(ctx)
	require.NoError(t, err)
	assert.True(t, locked.IsAbsent())

	require.NoError(t, r.LockDimension(ctx, 3072))

	locked, err = r.LockedDimension(ctx)
	require.NoError(t, err)
	dim, ok := locked.Get()
	require.True(t, ok)
	assert.Equal(t, 3072, dim)
}

func TestCorruptDimensionLock(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "embedding_dim.txt"), []byte("not a number"), 0o644))

	r := New(dir)
	_, err := r.LockedDimension(context.Background())
	require.Error(t, err)
}

func TestClearRemovesBothFiles(t *testing.T) {
	r := New(t.TempDir())
	ctx := context.Background()

	require.NoError(t, r.Register(ctx, "d1"))
	require.NoError(t, r.LockDimension(ctx, 3072))
	require.NoError(t, r.Clear(ctx))

	ok, err := r.IsIngested(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, ok)

	locked, err := r.LockedDimension(ctx)
	require.NoError(t, err)
	assert.True(t, locked.IsAbsent())

	// Clearing an already-empty registry is fine.
	require.NoError(t, r.Clear(ctx))
}
