package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/mo"

	"github.com/stepstudy/bigbook-rag/internal/core/grounding"
	"github.com/stepstudy/bigbook-rag/internal/core/retrieval"
	"github.com/stepstudy/bigbook-rag/internal/core/session"
)

const (
	// DefaultTopK widens initial retrieval; single-word queries need many
	// candidates before the budgeter narrows them.
	DefaultTopK = 30

	// DefaultMaxBlocks caps grounding blocks per request.
	DefaultMaxBlocks = 6

	// DefaultTemperature keeps answers close to the text.
	DefaultTemperature = 0.3
)

// Service runs the answer pipeline: guard → embed → retrieve → budget →
// complete → normalize. Stages are strictly sequential; each stage's output is
// the next stage's input.
type Service struct {
	store    retrieval.Store
	embedder Embedder
	chat     ChatClient
	builder  *grounding.Builder

	sessions      session.Store
	guard         BudgetGuard
	topK          int
	temperature   float64
	maxTokens     int
	maxReplyChars int
	historyLimit  int
	logger        *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSessionStore enables history replay and transcript persistence.
func WithSessionStore(store session.Store) ServiceOption {
	return func(s *Service) { s.sessions = store }
}

// WithBudgetGuard gates paid calls against a daily spend ceiling.
func WithBudgetGuard(guard BudgetGuard) ServiceOption {
	return func(s *Service) { s.guard = guard }
}

// WithTopK overrides the retrieval width.
func WithTopK(k int) ServiceOption {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithTemperature overrides the completion temperature.
func WithTemperature(temp float64) ServiceOption {
	return func(s *Service) { s.temperature = temp }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) ServiceOption {
	return func(s *Service) { s.maxTokens = n }
}

// WithMaxReplyChars enables a last-ditch clamp of the answer body for replies
// that blow past the quoting instructions. Zero disables it.
func WithMaxReplyChars(n int) ServiceOption {
	return func(s *Service) { s.maxReplyChars = n }
}

// WithAnswerLogger sets the Service's logger.
func WithAnswerLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a Service.
func NewService(
	store retrieval.Store,
	embedder Embedder,
	chat ChatClient,
	builder *grounding.Builder,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		store:        store,
		embedder:     embedder,
		chat:         chat,
		builder:      builder,
		topK:         DefaultTopK,
		temperature:  DefaultTemperature,
		historyLimit: session.DefaultLimit,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Answer runs one question through the full pipeline.
func (s *Service) Answer(ctx context.Context, params AnswerParams) (*AnswerResult, error) {
	question := strings.TrimSpace(params.Question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}
	if err := params.Filter.Validate(); err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}

	// The ceiling is enforced before any paid call is made.
	if s.guard != nil {
		if err := s.guard.Check(); err != nil {
			return nil, err
		}
	}

	maxBlocks := params.MaxBlocks
	if maxBlocks <= 0 {
		maxBlocks = DefaultMaxBlocks
	}

	history, err := s.loadHistory(ctx, params.SessionID)
	if err != nil {
		return nil, err
	}

	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	chunks, err := s.store.Query(ctx, vector, s.topK, params.Filter)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	build := s.builder.Build(chunks, maxBlocks)

	s.logger.Info("grounding assembled",
		"retrieved", len(chunks),
		"accepted", len(build.Citations),
		"tokenEstimate", build.TokenEstimate,
	)

	req := CompletionRequest{
		SystemPrompt: systemPrompt,
		History:      history,
		UserPrompt:   renderUserPrompt(question),
		Temperature:  s.temperature,
		MaxTokens:    s.maxTokens,
	}

	if strings.TrimSpace(build.ContextText) != "" {
		req.Grounding = mo.Some(groundingPreamble + "\n\n" + build.ContextText)
	} else {
		req.Grounding = mo.Some(noContextInstruction)
	}

	raw, err := s.chat.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	if s.guard != nil {
		if err := s.guard.Record(); err != nil {
			s.logger.Warn("failed to record spend", "error", err)
		}
	}

	supplied := make([]string, 0, len(build.Citations))
	for _, c := range build.Citations {
		supplied = append(supplied, c.Cite)
	}
	text := normalizeReply(raw, supplied, s.maxReplyChars)

	if err := s.persistTurns(ctx, params.SessionID, question, text); err != nil {
		s.logger.Warn("failed to persist session turns", "error", err)
	}

	return &AnswerResult{
		Text:          text,
		CitationsUsed: build.Citations,
		ContextCount:  len(build.Citations),
	}, nil
}

func (s *Service) loadHistory(ctx context.Context, sessionID string) ([]session.Turn, error) {
	if s.sessions == nil || sessionID == "" {
		return nil, nil
	}
	history, err := s.sessions.Load(ctx, sessionID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}
	return history, nil
}

func (s *Service) persistTurns(ctx context.Context, sessionID, question, answerText string) error {
	if s.sessions == nil || sessionID == "" {
		return nil
	}
	if err := s.sessions.Append(ctx, sessionID, session.RoleUser, question); err != nil {
		return err
	}
	return s.sessions.Append(ctx, sessionID, session.RoleAssistant, answerText)
}
