package adapter

import (
	"context"

	"github.com/towow-net/towow/pkg/llm"
)

// StaticAdapter serves canned replies keyed by agent ID. It exists for
// tests and offline demos; agents without a canned reply echo the last
// user message.
type StaticAdapter struct {
	Profiles map[string]map[string]any
	Replies  map[string]string
}

// GetProfile implements AgentAdapter.
func (a *StaticAdapter) GetProfile(ctx context.Context, agentID string) (map[string]any, error) {
	if profile, ok := a.Profiles[agentID]; ok {
		return profile, nil
	}
	return map[string]any{"agent_id": agentID}, nil
}

// Chat implements AgentAdapter.
func (a *StaticAdapter) Chat(ctx context.Context, agentID string, messages []llm.Message, systemPrompt string) (string, error) {
	if reply, ok := a.Replies[agentID]; ok {
		return reply, nil
	}
	if len(messages) > 0 {
		return messages[len(messages)-1].Content, nil
	}
	return "", nil
}
