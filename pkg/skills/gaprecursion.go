package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/towow-net/towow/pkg/llm"
)

const gapRecursionPrompt = `You need to convert a resource gap into an independent demand. This demand will be broadcast to the network for other participants to respond to.

Rules:
1. The sub-demand should be more specific than the original demand.
2. The sub-demand should be self-contained — readers should not need to know the parent demand's details.
3. But preserve enough context for responders to understand the background.

Output in JSON format:
{
  "sub_demand_text": "the independent sub-demand",
  "context": "relevant background context from the parent demand"
}
`

// GapRecursionInput carries the gap and its parent demand context.
type GapRecursionInput struct {
	GapDescription string
	DemandContext  string
	LLM            llm.Client
}

// GapRecursionResult is a self-contained sub-demand.
type GapRecursionResult struct {
	SubDemandText string
	Context       string
}

// GapRecursion turns a coverage gap into a broadcastable sub-demand.
type GapRecursion interface {
	Name() string
	Execute(ctx context.Context, in GapRecursionInput) (*GapRecursionResult, error)
}

// GapRecursionSkill implements GapRecursion against the platform LLM.
type GapRecursionSkill struct{}

func NewGapRecursionSkill() *GapRecursionSkill {
	return &GapRecursionSkill{}
}

func (s *GapRecursionSkill) Name() string { return "gap_recursion" }

// Execute runs the skill. Non-JSON output degrades to using the raw reply
// as the sub-demand text; an empty reply is a SkillError.
func (s *GapRecursionSkill) Execute(ctx context.Context, in GapRecursionInput) (*GapRecursionResult, error) {
	if in.GapDescription == "" {
		return nil, newSkillError(s.Name(), "gap_description is required")
	}
	if in.LLM == nil {
		return nil, newSkillError(s.Name(), "llm client is required")
	}

	demandContext := in.DemandContext
	if demandContext == "" {
		demandContext = "(no parent context)"
	}
	userContent := fmt.Sprintf(
		"## Original Demand\n%s\n\n## Identified Gap\n%s\n\nPlease generate an independent sub-demand.",
		demandContext, in.GapDescription,
	)

	resp, err := in.LLM.Chat(ctx, &llm.Request{
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: userContent}},
		SystemPrompt: gapRecursionPrompt,
	})
	if err != nil {
		return nil, &SkillError{Skill: s.Name(), Msg: "llm chat failed", Err: err}
	}
	return s.validateOutput(resp.Content, in)
}

func (s *GapRecursionSkill) validateOutput(raw string, in GapRecursionInput) (*GapRecursionResult, error) {
	cleaned := stripCodeFence(raw)

	subDemand := strings.TrimSpace(cleaned)
	subContext := in.DemandContext

	var parsed struct {
		SubDemandText string `json:"sub_demand_text"`
		Context       string `json:"context"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil {
		subDemand = parsed.SubDemandText
		subContext = parsed.Context
	}

	if subDemand == "" {
		return nil, newSkillError(s.Name(), "sub_demand_text is empty")
	}
	return &GapRecursionResult{SubDemandText: subDemand, Context: subContext}, nil
}
