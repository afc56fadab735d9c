package answer

import (
	"context"

	"github.com/samber/mo"

	"github.com/stepstudy/bigbook-rag/internal/core/grounding"
	"github.com/stepstudy/bigbook-rag/internal/core/retrieval"
	"github.com/stepstudy/bigbook-rag/internal/core/session"
)

// AnswerParams carries one question through the pipeline.
type AnswerParams struct {
	Question  string
	SessionID string           // empty = no history, no persistence
	Filter    retrieval.Filter // optional metadata constraints
	MaxBlocks int              // grounding blocks ceiling (default: 6)
}

// AnswerResult is the post-processed reply plus the citations that backed it.
type AnswerResult struct {
	Text          string
	CitationsUsed []grounding.CitationRecord
	ContextCount  int
}

// CompletionRequest is the two-channel prompt handed to the chat provider.
// Grounding, when present, must be sent as its own system-role turn so
// retrieved text is never concatenated into the instruction channel.
type CompletionRequest struct {
	SystemPrompt string
	Grounding    mo.Option[string]
	History      []session.Turn
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

// ChatClient is the chat-completion provider boundary.
type ChatClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Embedder turns the question into a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BudgetGuard gates paid provider calls against the daily spend ceiling.
// Check must be called before the first paid call of a request.
type BudgetGuard interface {
	Check() error
	Record() error
}
