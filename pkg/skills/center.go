package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/towow-net/towow/pkg/llm"
	"github.com/towow-net/towow/pkg/models"
)

// Built-in Center tool names.
const (
	ToolOutputPlan      = "output_plan"
	ToolAskAgent        = "ask_agent"
	ToolStartDiscovery  = "start_discovery"
	ToolCreateSubDemand = "create_sub_demand"
	ToolCreateMachine   = "create_machine"
)

// OutputPlanTool terminates the negotiation with a plan.
var OutputPlanTool = llm.ToolDefinition{
	Name:        ToolOutputPlan,
	Description: "Output a text plan (suggestion, analysis, recommendation). This terminates the negotiation.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"plan_text": map[string]any{
				"type":        "string",
				"description": "The complete plan text including resource allocation, coordination approach, and expected outcomes.",
			},
		},
		"required": []string{"plan_text"},
	},
}

// AskAgentTool asks one participant a follow-up question.
var AskAgentTool = llm.ToolDefinition{
	Name:        ToolAskAgent,
	Description: "Ask a specific agent a follow-up question. The agent's response will be provided in the next round.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent_id": map[string]any{
				"type":        "string",
				"description": "The ID of the agent to ask.",
			},
			"question": map[string]any{
				"type":        "string",
				"description": "The follow-up question to ask the agent.",
			},
		},
		"required": []string{"agent_id", "question"},
	},
}

// StartDiscoveryTool triggers a discovery dialogue between two agents.
var StartDiscoveryTool = llm.ToolDefinition{
	Name:        ToolStartDiscovery,
	Description: "Trigger a discovery dialogue between two agents to uncover hidden complementarities in their profiles.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent_a": map[string]any{
				"type":        "string",
				"description": "ID of the first agent.",
			},
			"agent_b": map[string]any{
				"type":        "string",
				"description": "ID of the second agent.",
			},
			"reason": map[string]any{
				"type":        "string",
				"description": "Why this discovery dialogue is needed.",
			},
		},
		"required": []string{"agent_a", "agent_b", "reason"},
	},
}

// CreateSubDemandTool spins a gap out into a child negotiation.
var CreateSubDemandTool = llm.ToolDefinition{
	Name:        ToolCreateSubDemand,
	Description: "Create a sub-demand for a gap that current participants cannot fill. This triggers a new negotiation.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"gap_description": map[string]any{
				"type":        "string",
				"description": "Description of the gap that needs to be filled.",
			},
		},
		"required": []string{"gap_description"},
	},
}

// CreateMachineTool is a reserved placeholder for workflow drafting.
var CreateMachineTool = llm.ToolDefinition{
	Name:        ToolCreateMachine,
	Description: "Create a workflow machine draft for execution. Reserved: currently recorded but not executed.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"machine_json": map[string]any{
				"type":        "string",
				"description": "The machine definition as JSON string.",
			},
		},
		"required": []string{"machine_json"},
	},
}

const centerPromptZH = `你是一个多方资源协调规划者。

## 角色
你收到一个需求和多个参与者的响应（offer）。
每个参与者基于自己的真实背景做出回应。
你的任务是找到最优的资源组合方案。

## 决策原则（按优先级）
1. 需求能否被满足？
2. 接受率——各方是否会同意？
3. 效率

## 元认知要求
- 考虑响应之间的互补性
- 考虑意想不到的组合（1+1>2）
- 注意每个响应的独特视角，不只看表面匹配
- 部分相关的参与者在组合中可能产生额外价值

## 行动
使用提供的工具采取行动。你可以同时调用多个工具。
- 当你有足够信息提出方案时，使用 output_plan。
- 当你需要向某个参与者追问时，使用 ask_agent。
- 当两个参与者可能有隐藏的互补性时，使用 start_discovery。
- 当当前参与者无法填补某个缺口时，使用 create_sub_demand。

## 语言
用中文输出方案。
`

const centerPromptEN = `You are a multi-party resource coordination planner.

## Role
You receive a demand and responses (offers) from multiple participants.
Each participant responded based on their real background.
Your task is to find the optimal resource combination plan.

## Decision Principles (by priority)
1. Can the demand be satisfied?
2. Acceptance rate — will each party agree?
3. Efficiency

## Metacognition Requirements
- Consider complementarities between responses
- Consider unexpected combinations (1+1>2)
- Notice each response's unique perspective, don't just look at surface matching
- Partially relevant participants may add value in combination

## Actions
Use the provided tools to take action. You may call multiple tools at once.
- Use output_plan when you have enough information to propose a plan.
- Use ask_agent when you need more information from a specific participant.
- Use start_discovery when two participants might have hidden complementarities.
- Use create_sub_demand when there's a gap that current participants cannot fill.
`

// ToolCall is one validated Center tool invocation.
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

// CenterInput is the context for one synthesis round.
type CenterInput struct {
	Demand       *models.DemandSnapshot
	Offers       []*models.Offer
	Participants []*models.AgentParticipant
	RoundNumber  int
	History      []HistoryEntry

	// ToolsRestricted limits the offered tool set to terminal tools only
	// (output_plan, create_machine) on the forced final round.
	ToolsRestricted bool

	// ExtraTools are custom registered tools, offered in addition to the
	// built-ins when the round is unrestricted.
	ExtraTools []llm.ToolDefinition

	LLM llm.Client
}

// CenterResult is the validated output of one round: at least one tool
// call, plus any free-text reasoning the model produced alongside.
type CenterResult struct {
	ToolCalls []ToolCall
	Content   string
}

// Center decides what happens next in the synthesis loop.
type Center interface {
	Name() string
	Execute(ctx context.Context, in CenterInput) (*CenterResult, error)
}

// CenterCoordinatorSkill implements Center against the platform LLM.
type CenterCoordinatorSkill struct{}

func NewCenterCoordinatorSkill() *CenterCoordinatorSkill {
	return &CenterCoordinatorSkill{}
}

func (s *CenterCoordinatorSkill) Name() string { return "center_coordinator" }

// Execute runs one round. A text-only response degrades to a synthesized
// output_plan call; a tool call whose name was not offered this round is a
// SkillError.
func (s *CenterCoordinatorSkill) Execute(ctx context.Context, in CenterInput) (*CenterResult, error) {
	if in.Demand == nil {
		return nil, newSkillError(s.Name(), "demand is required")
	}
	if in.Offers == nil {
		return nil, newSkillError(s.Name(), "offers list is required")
	}
	if in.LLM == nil {
		return nil, newSkillError(s.Name(), "llm client is required")
	}

	systemPrompt, messages := s.buildPrompt(in)
	tools := s.tools(in)

	resp, err := in.LLM.Chat(ctx, &llm.Request{
		Messages:     messages,
		SystemPrompt: systemPrompt,
		Tools:        tools,
	})
	if err != nil {
		return nil, &SkillError{Skill: s.Name(), Msg: "llm chat failed", Err: err}
	}
	return s.validateOutput(resp, tools)
}

func (s *CenterCoordinatorSkill) tools(in CenterInput) []llm.ToolDefinition {
	if in.ToolsRestricted {
		return []llm.ToolDefinition{OutputPlanTool, CreateMachineTool}
	}
	tools := []llm.ToolDefinition{
		OutputPlanTool, AskAgentTool, StartDiscoveryTool, CreateSubDemandTool, CreateMachineTool,
	}
	return append(tools, in.ExtraTools...)
}

func (s *CenterCoordinatorSkill) buildPrompt(in CenterInput) (string, []llm.Message) {
	demandText := in.Demand.Text()

	var offerSection string
	if in.RoundNumber > 1 && len(in.History) > 0 {
		offerSection = s.buildMaskedOffers(in.Offers, in.History)
	} else {
		offerSection = s.buildOffers(in.Offers, in.Participants)
	}

	userContent := fmt.Sprintf("## Demand\n%s\n\n%s", demandText, offerSection)
	if len(in.History) > 0 {
		userContent += "\n\n" + s.buildHistory(in.History)
	}

	systemPrompt := centerPromptEN
	if detectCJK(demandText) {
		systemPrompt = centerPromptZH
	}
	return systemPrompt, []llm.Message{{Role: llm.RoleUser, Content: userContent}}
}

func (s *CenterCoordinatorSkill) buildOffers(offers []*models.Offer, participants []*models.AgentParticipant) string {
	names := make(map[string]string, len(participants))
	for _, p := range participants {
		names[p.AgentID] = p.DisplayName
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Participant Responses (%d total)", len(offers))
	for i, offer := range offers {
		display := names[offer.AgentID]
		if display == "" {
			display = offer.AgentID
		}
		fmt.Fprintf(&b, "\n\n### Participant %d: %s (ID: %s)", i+1, display, offer.AgentID)
		fmt.Fprintf(&b, "\nResponse: %s", offer.Content)
		if len(offer.Capabilities) > 0 {
			fmt.Fprintf(&b, "\nCapabilities: %s", strings.Join(offer.Capabilities, ", "))
		}
		fmt.Fprintf(&b, "\nConfidence: %g", offer.Confidence)
	}
	return b.String()
}

// buildMaskedOffers replaces full offer texts on later rounds: the model
// already reasoned over them, so only the roster and fresh replies are
// repeated. Keeps the prompt from growing quadratically across rounds.
func (s *CenterCoordinatorSkill) buildMaskedOffers(offers []*models.Offer, history []HistoryEntry) string {
	agentIDs := make([]string, 0, len(offers))
	for _, offer := range offers {
		agentIDs = append(agentIDs, offer.AgentID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Participant Responses (masked)\nReceived %d offers from: %s.\n", len(offers), strings.Join(agentIDs, ", "))
	b.WriteString("(Original offer details have been masked. See previous round reasoning for analysis.)")

	var replies []HistoryEntry
	for _, entry := range history {
		if entry["type"] == "agent_reply" {
			replies = append(replies, entry)
		}
	}
	if len(replies) > 0 {
		b.WriteString("\n\n## New Replies This Round")
		for _, reply := range replies {
			agentID, _ := reply["agent_id"].(string)
			if agentID == "" {
				agentID = "unknown"
			}
			response, _ := reply["response"].(string)
			fmt.Fprintf(&b, "\n### %s\n%s", agentID, response)
		}
	}
	return b.String()
}

func (s *CenterCoordinatorSkill) buildHistory(history []HistoryEntry) string {
	var b strings.Builder
	b.WriteString("## History from Previous Rounds")
	for _, entry := range history {
		switch entry["type"] {
		case "discovery":
			fmt.Fprintf(&b, "\n\n### Discovery: %v and %v", entry["agent_a"], entry["agent_b"])
			appendResult(&b, entry["result"])
		case "sub_demand":
			fmt.Fprintf(&b, "\n\n### Sub-Demand: %v", entry["sub_session_id"])
			fmt.Fprintf(&b, "\nGap: %v", entry["gap_description"])
			appendResult(&b, entry["result"])
		default:
			tool, ok := entry["tool"].(string)
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "\n\n### Tool Result: %s", tool)
			args, _ := json.Marshal(entry["args"])
			fmt.Fprintf(&b, "\nArguments: %s", args)
			appendResult(&b, entry["result"])
		}
	}
	return b.String()
}

func appendResult(b *strings.Builder, result any) {
	if result == nil {
		return
	}
	if pretty, err := json.MarshalIndent(result, "", "  "); err == nil {
		fmt.Fprintf(b, "\nResult:\n```json\n%s\n```", pretty)
	} else {
		fmt.Fprintf(b, "\nResult: %v", result)
	}
}

func (s *CenterCoordinatorSkill) validateOutput(resp *llm.Response, offered []llm.ToolDefinition) (*CenterResult, error) {
	if len(resp.ToolCalls) == 0 {
		content := strings.TrimSpace(stripThinkTags(resp.Content))
		if content == "" {
			return nil, newSkillError(s.Name(), "no tool calls and no content in response")
		}
		return &CenterResult{
			ToolCalls: []ToolCall{{
				Name:      ToolOutputPlan,
				Arguments: map[string]any{"plan_text": content},
			}},
		}, nil
	}

	validNames := make(map[string]bool, len(offered))
	for _, td := range offered {
		validNames[td.Name] = true
	}

	calls := make([]ToolCall, 0, len(resp.ToolCalls))
	for _, tc := range resp.ToolCalls {
		if !validNames[tc.Name] {
			return nil, newSkillError(s.Name(), "invalid tool name %q", tc.Name)
		}
		args := tc.Arguments
		if args == nil {
			args = map[string]any{}
		}
		calls = append(calls, ToolCall{Name: tc.Name, Arguments: args})
	}

	return &CenterResult{
		ToolCalls: calls,
		Content:   strings.TrimSpace(stripThinkTags(resp.Content)),
	}, nil
}
