package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/stepstudy/bigbook-rag/internal/core/answer"
	"github.com/stepstudy/bigbook-rag/internal/core/ingest"
	"github.com/stepstudy/bigbook-rag/internal/core/session"
)

const (
	// DefaultChatModel is the default chat completion model.
	DefaultChatModel = "gpt-4o-mini"

	// DefaultTimeout bounds a single completion call.
	DefaultTimeout = 60 * time.Second
)

// ErrAPIKeyNotSet is returned when no OpenAI API key is configured.
var ErrAPIKeyNotSet = errors.New("OpenAI API key not set: please set OPENAI_API_KEY environment variable")

// ChatClient generates chat completions through the OpenAI API. Calls are not
// retried; a failed completion surfaces to the caller immediately.
type ChatClient struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

type chatOptions struct {
	model   string
	timeout time.Duration
}

// ChatOption configures a ChatClient.
type ChatOption func(*chatOptions)

// WithChatModel overrides the chat model.
func WithChatModel(model string) ChatOption {
	return func(o *chatOptions) {
		if model != "" {
			o.model = model
		}
	}
}

// WithChatTimeout overrides the per-call timeout.
func WithChatTimeout(timeout time.Duration) ChatOption {
	return func(o *chatOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// NewChatClient creates a ChatClient.
func NewChatClient(apiKey string, opts ...ChatOption) (*ChatClient, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	options := chatOptions{
		model:   DefaultChatModel,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &ChatClient{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   options.model,
		timeout: options.timeout,
	}, nil
}

// ModelName returns the chat model in use.
func (c *ChatClient) ModelName() string {
	return c.model
}

// Complete sends the request as a message sequence: system prompt, history,
// user turn, and then the grounding system turn last when present. The
// grounding travels as its own system-role message so retrieved text stays
// separated from the instruction channel.
func (c *ChatClient) Complete(ctx context.Context, req answer.CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+3)
	messages = append(messages, openai.SystemMessage(req.SystemPrompt))

	for _, turn := range req.History {
		switch turn.Role {
		case session.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}

	messages = append(messages, openai.UserMessage(req.UserPrompt))

	if grounding, ok := req.Grounding.Get(); ok {
		messages = append(messages, openai.SystemMessage(grounding))
	}

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}

	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}

	return completion.Choices[0].Message.Content, nil
}

var (
	_ answer.ChatClient = (*ChatClient)(nil)
	_ answer.Embedder   = (*Embedder)(nil)
	_ ingest.Embedder   = (*Embedder)(nil)
)
