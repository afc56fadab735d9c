package answer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSourcesCollapsesDuplicateSections(t *testing.T) {
	raw := "Step one is about honesty. [A]\n\nSources:\n[A]\n[B]\n\nSources:\n[A]"
	out := normalizeSources(raw, []string{"[A]", "[B]"})

	assert.Equal(t, 1, strings.Count(out, "Sources:"))
	idxA := strings.Index(out, "[A]")
	idxB := strings.Index(out, "[B]")
	assert.Greater(t, idxA, -1)
	assert.Greater(t, idxB, idxA, "tokens keep first-seen order")
	assert.Equal(t, 1, strings.Count(out, "[A]"), "duplicates are removed")
}

func TestNormalizeSourcesStripsInlineTokens(t *testing.T) {
	raw := "The admission of powerlessness [X] is the foundation. [Y]"
	out := normalizeSources(raw, []string{"[X]", "[Y]"})

	body, _, found := strings.Cut(out, "\n\nSources:\n")
	assert.True(t, found)
	assert.NotContains(t, body, "[X]")
	assert.NotContains(t, body, "[Y]")
	assert.NotContains(t, body, "  ", "stripping leaves no double spaces")
	assert.Equal(t, "The admission of powerlessness is the foundation.", body)
}

func TestNormalizeSourcesNoBlockWithoutCitations(t *testing.T) {
	raw := "I could not find that in the text."
	out := normalizeSources(raw, nil)

	assert.Equal(t, raw, out)
	assert.NotContains(t, out, "Sources:")
}

func TestNormalizeSourcesDiscardsInventedTokens(t *testing.T) {
	raw := "See the chapter on resentment. [made-up]\n\nSources:\n[made-up]"
	out := normalizeSources(raw, []string{"[real]"})

	assert.NotContains(t, out, "[made-up]")
	// None of the supplied tokens appeared in the reply, so the supplied
	// list itself backs the section.
	assert.Contains(t, out, "Sources:\n[real]")

	// The invented token is gone from the body too, not just the section.
	body, _, found := strings.Cut(out, "\n\nSources:\n")
	assert.True(t, found)
	assert.Equal(t, "See the chapter on resentment.", body)
}

func TestNormalizeSourcesStripsTokensOutsideSuppliedSet(t *testing.T) {
	raw := "Resentment is discussed at length [hallucinated] in chapter five. [A]"
	out := normalizeSources(raw, []string{"[A]"})

	body, _, found := strings.Cut(out, "\n\nSources:\n")
	assert.True(t, found)
	assert.Equal(t, "Resentment is discussed at length in chapter five.", body)
	assert.NotContains(t, out, "[hallucinated]")
}

func TestNormalizeReplyClampsOverlongBody(t *testing.T) {
	raw := strings.Repeat("word ", 100) + "[A]\n\nSources:\n[A]"
	out := normalizeReply(raw, []string{"[A]"}, 50)

	body, _, found := strings.Cut(out, "\n\nSources:\n")
	assert.True(t, found)
	assert.LessOrEqual(t, len(body), 50+len("…"))
	assert.True(t, strings.HasSuffix(body, "…"))
	assert.NotContains(t, body, "wor…", "truncation lands on a word boundary")
	assert.Contains(t, out, "Sources:\n[A]", "the clamp never eats the citation section")
}

func TestNormalizeReplyZeroDisablesClamp(t *testing.T) {
	raw := strings.Repeat("word ", 100)
	out := normalizeReply(raw, nil, 0)
	assert.Equal(t, strings.TrimSpace(raw), out)
}

func TestNormalizeSourcesFallsBackToSuppliedList(t *testing.T) {
	raw := "An answer that cites nothing inline."
	out := normalizeSources(raw, []string{"[A]", "[B]", "[A]"})

	assert.Contains(t, out, "Sources:\n[A]\n[B]")
	assert.Equal(t, 1, strings.Count(out, "[A]"))
}

func TestNormalizeSourcesHeaderCaseInsensitive(t *testing.T) {
	raw := "Body text. [A]\n\nSOURCES:\n[A]"
	out := normalizeSources(raw, []string{"[A]"})

	assert.Equal(t, 1, strings.Count(strings.ToLower(out), "sources:"))
	assert.True(t, strings.HasPrefix(out, "Body text."))
}
