package session

import "context"

// DefaultLimit bounds how much history a request replays into the prompt.
const DefaultLimit = 10

// Turn is one message of a session transcript.
type Turn struct {
	Role    string
	Content string
}

// Roles used in transcripts.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Store is an append-only per-session message log. Load returns the most
// recent limit turns in chronological order. History never influences
// retrieval; it is only replayed verbatim into the prompt transcript.
// TTL/eviction beyond truncation-to-last-N is a deployment concern.
type Store interface {
	Append(ctx context.Context, sessionID, role, content string) error
	Load(ctx context.Context, sessionID string, limit int) ([]Turn, error)
}
