package grounding

import (
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/stepstudy/bigbook-rag/internal/core/retrieval"
)

// blockSeparator visibly divides accepted blocks inside the grounding text.
const blockSeparator = "\n\n---\n\n"

// Budget holds the character/count ceilings applied when assembling retrieved
// excerpts into the grounding block. Retrieval is intentionally wide (short
// queries like "fear" or "resentment" need many candidates); the budget is what
// narrows the context the model actually sees.
type Budget struct {
	MaxContextChars    int // ceiling on the whole assembled context
	MaxQuoteChars      int // per-excerpt clamp
	MaxQuotes          int // absolute cap on accepted excerpts
	MaxTotalQuoteChars int // ceiling on the sum of clamped excerpts
}

// DefaultBudget mirrors the deployment defaults.
func DefaultBudget() Budget {
	return Budget{
		MaxContextChars:    12000,
		MaxQuoteChars:      450,
		MaxQuotes:          4,
		MaxTotalQuoteChars: 1200,
	}
}

// CitationRecord is the user-facing companion of an accepted block, appended in
// the same order the blocks were accepted.
type CitationRecord struct {
	Cite       string
	ID         string
	DocID      string
	ChunkIndex int
	Score      float64
	Metadata   retrieval.ChunkMetadata
}

// BuildResult is the assembled grounding block plus its citation records and a
// token estimate for cost visibility.
type BuildResult struct {
	ContextText   string
	Citations     []CitationRecord
	TokenEstimate int
}

// Builder assembles ranked chunks into a budgeted grounding block.
type Builder struct {
	budget  Budget
	encoder *tiktoken.Tiktoken
	logger  *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBuilderLogger sets the Builder's logger.
func WithBuilderLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates a Builder. The cl100k_base encoder matches the OpenAI
// embedding and chat models in use; when the encoder cannot be initialized
// (tiktoken loads its ranks lazily and may need network access on first use)
// the estimate falls back to the chars/4 approximation.
func NewBuilder(budget Budget, opts ...BuilderOption) *Builder {
	b := &Builder{
		budget: budget,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}

	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		b.logger.Warn("tiktoken encoder unavailable, using chars/4 token estimate", "error", err)
	} else {
		b.encoder = encoder
	}
	return b
}

// estimateTokens counts tokens with the encoder when available and falls back
// to the chars/4 approximation otherwise.
func (b *Builder) estimateTokens(text string) int {
	if b.encoder != nil {
		return len(b.encoder.Encode(text, nil, nil))
	}
	return len(text) / 4
}

// Build walks chunks in the given order (most relevant first) and accepts a
// prefix under the budget: stop at maxBlocks or MaxQuotes accepted blocks, and
// skip-and-stop as soon as a candidate would push the running context or quote
// totals over their ceilings. First fit, no backtracking. Zero input chunks is
// a normal outcome and yields an empty context.
func (b *Builder) Build(chunks []retrieval.RetrievedChunk, maxBlocks int) *BuildResult {
	var blocks []string
	var citations []CitationRecord

	totalCtx := 0
	totalQuote := 0

	for _, c := range chunks {
		if len(blocks) >= maxBlocks || len(blocks) >= b.budget.MaxQuotes {
			break
		}

		excerpt := clamp(c.Text, b.budget.MaxQuoteChars)
		block := c.Cite + "\n" + excerpt

		if totalCtx+len(block) > b.budget.MaxContextChars {
			break
		}
		if totalQuote+len(excerpt) > b.budget.MaxTotalQuoteChars {
			break
		}

		blocks = append(blocks, block)
		citations = append(citations, CitationRecord{
			Cite:       c.Cite,
			ID:         c.ID,
			DocID:      c.DocID,
			ChunkIndex: c.ChunkIndex,
			Score:      c.Score,
			Metadata:   c.Metadata,
		})

		totalCtx += len(block)
		totalQuote += len(excerpt)
	}

	contextText := strings.Join(blocks, blockSeparator)

	result := &BuildResult{
		ContextText:   contextText,
		Citations:     citations,
		TokenEstimate: b.estimateTokens(contextText),
	}

	b.logger.Debug("grounding block assembled",
		"candidates", len(chunks),
		"accepted", len(citations),
		"contextChars", len(contextText),
		"tokenEstimate", result.TokenEstimate,
	)

	return result
}

// clamp collapses whitespace runs to single spaces and hard-truncates at the
// last whitespace boundary before maxChars, appending an ellipsis. Never cuts
// mid-word.
func clamp(text string, maxChars int) string {
	t := strings.Join(strings.Fields(text), " ")
	if len(t) <= maxChars {
		return t
	}

	cut := t[:maxChars]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}
