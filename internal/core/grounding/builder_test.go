package grounding

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepstudy/bigbook-rag/internal/core/retrieval"
)

func testChunk(cite, text string, score float64) retrieval.RetrievedChunk {
	return retrieval.RetrievedChunk{Cite: cite, Text: text, Score: score}
}

func TestBuildEmptyInput(t *testing.T) {
	b := NewBuilder(DefaultBudget())

	result := b.Build(nil, 6)
	assert.Empty(t, result.ContextText)
	assert.Empty(t, result.Citations)
	assert.Zero(t, result.TokenEstimate)
}

func TestBuildRespectsMaxBlocks(t *testing.T) {
	b := NewBuilder(Budget{
		MaxContextChars:    12000,
		MaxQuoteChars:      450,
		MaxQuotes:          4,
		MaxTotalQuoteChars: 1200,
	})

	chunks := []retrieval.RetrievedChunk{
		testChunk("[Big Book (3rd) — Step One — p.21 — Chunk#4]", "We admitted we were powerless.", 0.12),
		testChunk("[Big Book (3rd) — Step One — p.22 — Chunk#5]", "Our lives had become unmanageable.", 0.19),
		testChunk("[12&12 — Step One — p.5 — Chunk#0]", "Who cares to admit complete defeat?", 0.21),
	}

	result := b.Build(chunks, 2)
	require.Len(t, result.Citations, 2)
	assert.Equal(t, "[Big Book (3rd) — Step One — p.21 — Chunk#4]", result.Citations[0].Cite)
	assert.Equal(t, "[Big Book (3rd) — Step One — p.22 — Chunk#5]", result.Citations[1].Cite)
	assert.Equal(t, 0.12, result.Citations[0].Score)
	assert.Positive(t, result.TokenEstimate)
}

func TestBuildPreservesGivenOrder(t *testing.T) {
	b := NewBuilder(DefaultBudget())

	chunks := []retrieval.RetrievedChunk{
		testChunk("[A]", "first", 0.5),
		testChunk("[B]", "second", 0.1), // better score, but order is the caller's
	}

	result := b.Build(chunks, 6)
	require.Len(t, result.Citations, 2)
	assert.Equal(t, "[A]", result.Citations[0].Cite)
	assert.Equal(t, "[B]", result.Citations[1].Cite)

	first := strings.Index(result.ContextText, "[A]")
	second := strings.Index(result.ContextText, "[B]")
	assert.Less(t, first, second)
}

func TestBuildStopsAtTotalQuoteBudget(t *testing.T) {
	b := NewBuilder(Budget{
		MaxContextChars:    12000,
		MaxQuoteChars:      450,
		MaxQuotes:          10,
		MaxTotalQuoteChars: 60,
	})

	chunks := []retrieval.RetrievedChunk{
		testChunk("[A]", strings.Repeat("a ", 20), 0.1), // 39 chars collapsed
		testChunk("[B]", strings.Repeat("b ", 20), 0.2), // would exceed 60 total
	}

	result := b.Build(chunks, 6)
	assert.Len(t, result.Citations, 1)
}

func TestBuildBudgetInvariants(t *testing.T) {
	budget := Budget{
		MaxContextChars:    500,
		MaxQuoteChars:      120,
		MaxQuotes:          4,
		MaxTotalQuoteChars: 300,
	}
	b := NewBuilder(budget)

	chunks := []retrieval.RetrievedChunk{
		testChunk("[A]", strings.Repeat("alpha ", 40), 0.1),
		testChunk("[B]", strings.Repeat("bravo ", 40), 0.2),
		testChunk("[C]", strings.Repeat("charlie ", 40), 0.3),
		testChunk("[D]", strings.Repeat("delta ", 40), 0.4),
		testChunk("[E]", strings.Repeat("echo ", 40), 0.5),
	}

	result := b.Build(chunks, 10)
	assert.LessOrEqual(t, len(result.ContextText), budget.MaxContextChars)
	assert.LessOrEqual(t, len(result.Citations), budget.MaxQuotes)

	totalQuote := 0
	for _, block := range strings.Split(result.ContextText, blockSeparator) {
		_, excerpt, found := strings.Cut(block, "\n")
		require.True(t, found)
		totalQuote += len(excerpt)
	}
	assert.LessOrEqual(t, totalQuote, budget.MaxTotalQuoteChars)
}

func TestBuildSkipsOverlongChunkEntirely(t *testing.T) {
	b := NewBuilder(Budget{
		MaxContextChars:    12000,
		MaxQuoteChars:      450,
		MaxQuotes:          4,
		MaxTotalQuoteChars: 100,
	})

	// Clamped excerpt is still 450 chars, over the 100-char aggregate ceiling:
	// the chunk is skipped, not partially included.
	chunks := []retrieval.RetrievedChunk{
		testChunk("[A]", strings.Repeat("word ", 200), 0.1),
	}

	result := b.Build(chunks, 6)
	assert.Empty(t, result.ContextText)
	assert.Empty(t, result.Citations)
}

func TestClampCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", clamp("a\n\n b\t\tc", 100))
}

func TestClampNeverCutsMidWord(t *testing.T) {
	clamped := clamp("the quick brown fox jumps over the lazy dog", 20)

	require.True(t, strings.HasSuffix(clamped, "…"))
	trimmed := strings.TrimSuffix(clamped, "…")
	// Truncation point must land on a word boundary of the source.
	assert.True(t, strings.HasPrefix("the quick brown fox jumps over the lazy dog", trimmed+" "))
}

func TestClampUnderLimitReturnsFullText(t *testing.T) {
	assert.Equal(t, "short text", clamp("short text", 450))
}

func TestBuildEndToEndExample(t *testing.T) {
	// Three candidates scored [0.12, 0.19, 0.21], maxBlocks=2: exactly two
	// blocks in score order, citations list length 2.
	b := NewBuilder(Budget{
		MaxContextChars:    12000,
		MaxQuoteChars:      450,
		MaxQuotes:          4,
		MaxTotalQuoteChars: 1200,
	})

	chunks := []retrieval.RetrievedChunk{
		testChunk("[BigBook (3rd) — Step One — p.21 — Chunk#4]", "We admitted we were powerless over alcohol.", 0.12),
		testChunk("[BigBook (3rd) — Step One — p.22 — Chunk#5]", "That our lives had become unmanageable.", 0.19),
		testChunk("[12&12 — Step One — p.5 — Chunk#0]", "Who cares to admit complete defeat?", 0.21),
	}

	result := b.Build(chunks, 2)
	require.Len(t, result.Citations, 2)
	assert.Equal(t, 2, strings.Count(result.ContextText, "[BigBook"))
	assert.NotContains(t, result.ContextText, "[12&12")
}
