// Package adapter connects the engine to agent backends: profile lookup
// and per-agent chat. An adapter speaks for agents; the platform LLM client
// speaks for the coordinator.
package adapter

import (
	"context"
	"fmt"

	"github.com/towow-net/towow/pkg/llm"
)

// Error wraps a failure talking to an agent backend. During offer
// collection these are swallowed and the participant exits; in the
// formulation stage they trigger the degraded path.
type Error struct {
	AgentID string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("adapter: %s for agent %s: %v", e.Op, e.AgentID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// AgentAdapter provides access to agents: their profiles and a chat
// channel that answers as the agent. Implementations must be safe for
// concurrent use; offers for all participants are collected in parallel.
type AgentAdapter interface {
	// GetProfile returns the agent's profile document. Unknown agents
	// yield a minimal profile rather than an error.
	GetProfile(ctx context.Context, agentID string) (map[string]any, error)

	// Chat sends a conversation to the agent and returns its reply text.
	Chat(ctx context.Context, agentID string, messages []llm.Message, systemPrompt string) (string, error)
}

// Streamer is implemented by adapters that can stream replies chunk by
// chunk. The engine itself only uses Chat; streaming serves interactive
// surfaces.
type Streamer interface {
	ChatStream(ctx context.Context, agentID string, messages []llm.Message, systemPrompt string) (<-chan string, error)
}
