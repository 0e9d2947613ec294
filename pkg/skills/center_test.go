package skills

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/towow-net/towow/pkg/llm"
	"github.com/towow-net/towow/pkg/models"
)

func centerInput(client llm.Client) CenterInput {
	return CenterInput{
		Demand: &models.DemandSnapshot{RawIntent: "organize a hackathon"},
		Offers: []*models.Offer{
			{AgentID: "a", Content: "I can host", Capabilities: []string{"venue"}, Confidence: 0.8},
			{AgentID: "b", Content: "I can cater", Confidence: 0.6},
		},
		Participants: []*models.AgentParticipant{
			{AgentID: "a", DisplayName: "Venue Owner"},
			{AgentID: "b", DisplayName: "Caterer"},
		},
		RoundNumber: 1,
		LLM:         client,
	}
}

func TestCenterSkill_PassesToolCallsThrough(t *testing.T) {
	client := llm.ChatFunc(func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		return &llm.Response{
			Content: "<think>internal</think>reasoning text",
			ToolCalls: []llm.ToolCall{
				{Name: ToolAskAgent, Arguments: map[string]any{"agent_id": "a", "question": "when?"}},
				{Name: ToolOutputPlan, Arguments: map[string]any{"plan_text": "do it"}},
			},
		}, nil
	})

	result, err := NewCenterCoordinatorSkill().Execute(context.Background(), centerInput(client))
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 2)
	assert.Equal(t, ToolAskAgent, result.ToolCalls[0].Name)
	assert.Equal(t, "a", result.ToolCalls[0].Arguments["agent_id"])
	assert.Equal(t, "reasoning text", result.Content)
}

func TestCenterSkill_TextOnlyDegradesToOutputPlan(t *testing.T) {
	client := llm.ChatFunc(func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		return &llm.Response{Content: "<think>hm</think>Here is my plan: pair a with b."}, nil
	})

	result, err := NewCenterCoordinatorSkill().Execute(context.Background(), centerInput(client))
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, ToolOutputPlan, result.ToolCalls[0].Name)
	assert.Equal(t, "Here is my plan: pair a with b.", result.ToolCalls[0].Arguments["plan_text"])
}

func TestCenterSkill_EmptyResponseFails(t *testing.T) {
	client := llm.ChatFunc(func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		return &llm.Response{Content: "  "}, nil
	})

	_, err := NewCenterCoordinatorSkill().Execute(context.Background(), centerInput(client))
	var skillErr *SkillError
	require.ErrorAs(t, err, &skillErr)
}

func TestCenterSkill_UnknownToolNameFails(t *testing.T) {
	client := llm.ChatFunc(func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		return &llm.Response{ToolCalls: []llm.ToolCall{{Name: "launch_rocket"}}}, nil
	})

	_, err := NewCenterCoordinatorSkill().Execute(context.Background(), centerInput(client))
	var skillErr *SkillError
	require.ErrorAs(t, err, &skillErr)
	assert.Contains(t, err.Error(), "launch_rocket")
}

func TestCenterSkill_RestrictedRoundOffersTerminalToolsOnly(t *testing.T) {
	var offered []string
	client := llm.ChatFunc(func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		offered = nil
		for _, td := range req.Tools {
			offered = append(offered, td.Name)
		}
		return &llm.Response{ToolCalls: []llm.ToolCall{
			{Name: ToolOutputPlan, Arguments: map[string]any{"plan_text": "final"}},
		}}, nil
	})

	in := centerInput(client)
	in.ToolsRestricted = true
	in.ExtraTools = []llm.ToolDefinition{{Name: "custom_tool"}}

	_, err := NewCenterCoordinatorSkill().Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{ToolOutputPlan, ToolCreateMachine}, offered)
}

func TestCenterSkill_RestrictedRoundRejectsNonTerminalTool(t *testing.T) {
	client := llm.ChatFunc(func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		return &llm.Response{ToolCalls: []llm.ToolCall{
			{Name: ToolAskAgent, Arguments: map[string]any{"agent_id": "a", "question": "?"}},
		}}, nil
	})

	in := centerInput(client)
	in.ToolsRestricted = true

	_, err := NewCenterCoordinatorSkill().Execute(context.Background(), in)
	var skillErr *SkillError
	require.ErrorAs(t, err, &skillErr)
}

func TestCenterSkill_ExtraToolsOfferedAndAccepted(t *testing.T) {
	client := llm.ChatFunc(func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		names := make([]string, 0, len(req.Tools))
		for _, td := range req.Tools {
			names = append(names, td.Name)
		}
		assert.Contains(t, names, "budget_check")
		return &llm.Response{ToolCalls: []llm.ToolCall{
			{Name: "budget_check", Arguments: map[string]any{"limit": 100.0}},
		}}, nil
	})

	in := centerInput(client)
	in.ExtraTools = []llm.ToolDefinition{{Name: "budget_check", Description: "check the budget"}}

	result, err := NewCenterCoordinatorSkill().Execute(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "budget_check", result.ToolCalls[0].Name)
}

func TestCenterSkill_FirstRoundPromptContainsOffers(t *testing.T) {
	var prompt string
	client := llm.ChatFunc(func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		prompt = req.Messages[0].Content
		return &llm.Response{ToolCalls: []llm.ToolCall{
			{Name: ToolOutputPlan, Arguments: map[string]any{"plan_text": "p"}},
		}}, nil
	})

	_, err := NewCenterCoordinatorSkill().Execute(context.Background(), centerInput(client))
	require.NoError(t, err)
	assert.Contains(t, prompt, "## Demand")
	assert.Contains(t, prompt, "I can host")
	assert.Contains(t, prompt, "Venue Owner")
	assert.Contains(t, prompt, "Capabilities: venue")
}

func TestCenterSkill_LaterRoundsMaskOffersAndShowReplies(t *testing.T) {
	var prompt string
	client := llm.ChatFunc(func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		prompt = req.Messages[0].Content
		return &llm.Response{ToolCalls: []llm.ToolCall{
			{Name: ToolOutputPlan, Arguments: map[string]any{"plan_text": "p"}},
		}}, nil
	})

	in := centerInput(client)
	in.RoundNumber = 2
	in.History = []HistoryEntry{
		{"type": "agent_reply", "agent_id": "a", "question": "when?", "response": "next week"},
	}

	_, err := NewCenterCoordinatorSkill().Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Contains(t, prompt, "masked")
	assert.NotContains(t, prompt, "I can host")
	assert.Contains(t, prompt, "New Replies This Round")
	assert.Contains(t, prompt, "next week")
}

func TestCenterSkill_ChineseDemandSelectsChinesePrompt(t *testing.T) {
	var system string
	client := llm.ChatFunc(func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		system = req.SystemPrompt
		return &llm.Response{ToolCalls: []llm.ToolCall{
			{Name: ToolOutputPlan, Arguments: map[string]any{"plan_text": "p"}},
		}}, nil
	})

	in := centerInput(client)
	in.Demand = &models.DemandSnapshot{RawIntent: "帮我组织一场活动"}

	_, err := NewCenterCoordinatorSkill().Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Contains(t, system, "多方资源协调规划者")
}
