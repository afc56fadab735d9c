package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterEqDropsEmptyValue(t *testing.T) {
	f := Filter{}.Eq("work", "").Eq("edition", "3rd")

	require.Len(t, f, 1)
	assert.Equal(t, "edition", f[0].Field)
	assert.Equal(t, []string{"3rd"}, f[0].Values)
}

func TestFilterInDropsEmptyValues(t *testing.T) {
	f := Filter{}.In("work", "", "Big Book", "", "12&12")

	require.Len(t, f, 1)
	assert.Equal(t, []string{"Big Book", "12&12"}, f[0].Values)
}

func TestFilterInOmittedWhenNothingRemains(t *testing.T) {
	f := Filter{}.In("work", "", "")
	assert.Empty(t, f)
}

func TestFilterValidateRejectsUnknownField(t *testing.T) {
	f := Filter{}.Eq("text", "anything")

	err := f.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not filterable")
}

func TestFilterValidateAcceptsKnownFields(t *testing.T) {
	f := Filter{}.
		Eq("work", "Big Book").
		In("edition", "3rd", "4th").
		Eq("doc_id", "abc123")

	assert.NoError(t, f.Validate())
}

func TestCheckDimensionNamesOffendingRow(t *testing.T) {
	chunks := []Chunk{
		{ID: "ok", Vector: make([]float32, 1536)},
		{ID: "bad-row", Vector: make([]float32, 768)},
	}

	err := CheckDimension(chunks, 1536)
	require.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "bad-row")
}

func TestCheckDimensionPassesMatchingBatch(t *testing.T) {
	chunks := []Chunk{
		{ID: "a", Vector: make([]float32, 8)},
		{ID: "b", Vector: make([]float32, 8)},
	}

	assert.NoError(t, CheckDimension(chunks, 8))
}
