package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/towow-net/towow/pkg/llm"
)

func TestSimulatedAdapter_ChatInjectsProfile(t *testing.T) {
	var captured *llm.Request
	client := llm.ChatFunc(func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		captured = req
		return &llm.Response{Content: "in-character reply"}, nil
	})

	a := NewSimulatedAdapter(client, map[string]map[string]any{
		"agent_1": {"skills": []string{"catering"}},
	}, nil)

	reply, err := a.Chat(context.Background(), "agent_1",
		[]llm.Message{{Role: llm.RoleUser, Content: "Can you help?"}}, "system prompt")
	require.NoError(t, err)
	assert.Equal(t, "in-character reply", reply)

	require.NotNil(t, captured)
	assert.Equal(t, "system prompt", captured.SystemPrompt)
	require.Len(t, captured.Messages, 1)
	assert.Contains(t, captured.Messages[0].Content, "Can you help?")
	assert.Contains(t, captured.Messages[0].Content, "Your profile:")
	assert.Contains(t, captured.Messages[0].Content, "catering")
}

func TestSimulatedAdapter_ChatErrorWrapped(t *testing.T) {
	client := llm.ChatFunc(func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		return nil, errors.New("provider down")
	})

	a := NewSimulatedAdapter(client, nil, nil)
	_, err := a.Chat(context.Background(), "agent_1", []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, "")
	require.Error(t, err)

	var adapterErr *Error
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, "agent_1", adapterErr.AgentID)
	assert.Equal(t, "chat", adapterErr.Op)
}

func TestSimulatedAdapter_GetProfileUnknownAgent(t *testing.T) {
	a := NewSimulatedAdapter(llm.ChatFunc(nil), nil, nil)

	profile, err := a.GetProfile(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"agent_id": "ghost"}, profile)
}

func TestStaticAdapter(t *testing.T) {
	a := &StaticAdapter{
		Profiles: map[string]map[string]any{"a": {"name": "A"}},
		Replies:  map[string]string{"a": "canned"},
	}

	reply, err := a.Chat(context.Background(), "a", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "canned", reply)

	echo, err := a.Chat(context.Background(), "b",
		[]llm.Message{{Role: llm.RoleUser, Content: "echo me"}}, "")
	require.NoError(t, err)
	assert.Equal(t, "echo me", echo)
}
