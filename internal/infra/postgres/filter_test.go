package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepstudy/bigbook-rag/internal/core/retrieval"
)

func TestCompileFilterEmpty(t *testing.T) {
	conditions, args, err := compileFilter(nil, 2)
	require.NoError(t, err)
	assert.Empty(t, conditions)
	assert.Empty(t, args)
	assert.Equal(t, "", whereClause(conditions))
}

func TestCompileFilterEquality(t *testing.T) {
	f := retrieval.Filter{}.Eq("work", "bigbook")
	conditions, args, err := compileFilter(f, 2)
	require.NoError(t, err)

	require.Equal(t, []string{"work = $2"}, conditions)
	require.Equal(t, []any{"bigbook"}, args)
	assert.Equal(t, " WHERE work = $2", whereClause(conditions))
}

func TestCompileFilterMembership(t *testing.T) {
	f := retrieval.Filter{}.In("edition", "3rd", "4th")
	conditions, args, err := compileFilter(f, 3)
	require.NoError(t, err)

	require.Equal(t, []string{"edition = ANY($3)"}, conditions)
	require.Len(t, args, 1)
	assert.Equal(t, []string{"3rd", "4th"}, args[0])
}

func TestCompileFilterCombinesWithAnd(t *testing.T) {
	f := retrieval.Filter{}.Eq("work", "bigbook").In("edition", "3rd", "4th")
	conditions, args, err := compileFilter(f, 2)
	require.NoError(t, err)

	assert.Equal(t, " WHERE work = $2 AND edition = ANY($3)", whereClause(conditions))
	assert.Len(t, args, 2)
}

func TestCompileFilterRejectsUnknownField(t *testing.T) {
	f := retrieval.Filter{{Field: "vector; DROP TABLE chunks", Values: []string{"x"}}}
	_, _, err := compileFilter(f, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not filterable")
}
