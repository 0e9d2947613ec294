package adapter

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/towow-net/towow/pkg/llm"
)

// SimulatedAdapter answers as each agent by prompting the platform LLM
// with the agent's stored profile. It is the default adapter when agents
// have no live backend of their own.
type SimulatedAdapter struct {
	client   llm.Client
	profiles map[string]map[string]any
	logger   *slog.Logger
}

// NewSimulatedAdapter creates a SimulatedAdapter over a static profile
// map keyed by agent ID. A nil logger falls back to slog.Default.
func NewSimulatedAdapter(client llm.Client, profiles map[string]map[string]any, logger *slog.Logger) *SimulatedAdapter {
	if profiles == nil {
		profiles = map[string]map[string]any{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SimulatedAdapter{client: client, profiles: profiles, logger: logger}
}

// GetProfile implements AgentAdapter. Unknown agents get a minimal
// profile containing only their ID.
func (a *SimulatedAdapter) GetProfile(ctx context.Context, agentID string) (map[string]any, error) {
	if profile, ok := a.profiles[agentID]; ok {
		return profile, nil
	}
	return map[string]any{"agent_id": agentID}, nil
}

// Chat implements AgentAdapter. The agent's profile is appended to the
// last user message so the model answers in character.
func (a *SimulatedAdapter) Chat(ctx context.Context, agentID string, messages []llm.Message, systemPrompt string) (string, error) {
	profile, _ := a.GetProfile(ctx, agentID)
	profileJSON, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		profileJSON = []byte("{}")
	}

	full := make([]llm.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == llm.RoleUser {
			msg.Content += "\n\nYour profile:\n" + string(profileJSON)
		}
		full = append(full, msg)
	}

	resp, err := a.client.Chat(ctx, &llm.Request{
		Messages:     full,
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		a.logger.ErrorContext(ctx, "agent chat failed", "agent_id", agentID, "error", err)
		return "", &Error{AgentID: agentID, Op: "chat", Err: err}
	}
	return resp.Content, nil
}

// ChatStream implements Streamer by emitting the full reply as one chunk.
func (a *SimulatedAdapter) ChatStream(ctx context.Context, agentID string, messages []llm.Message, systemPrompt string) (<-chan string, error) {
	reply, err := a.Chat(ctx, agentID, messages, systemPrompt)
	if err != nil {
		return nil, err
	}
	ch := make(chan string, 1)
	ch <- reply
	close(ch)
	return ch, nil
}
