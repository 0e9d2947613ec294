package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/towow-net/towow/pkg/adapter"
	"github.com/towow-net/towow/pkg/llm"
)

const formulationPromptZH = `你代表一个真实的人。你的任务是理解用户真正需要什么，并基于你对他们的了解，帮助他们更准确、完整地表达需求。

规则：
1. 区分"需要"和"要求"——具体的要求可能只是满足真实需要的一种方式。
2. 从用户画像中补充相关上下文，让响应者能更好地理解。
3. 不要替换用户的原始意图——丰富和补充它。
4. 保留用户的偏好，但标注哪些是硬约束、哪些是可协商的。

用户画像：
%s

以 JSON 格式输出：
{
  "formulated_text": "丰富后的需求文本",
  "enrichments": {
    "hard_constraints": ["..."],
    "negotiable_preferences": ["..."],
    "context_added": ["..."]
  }
}
`

const formulationPromptEN = `You represent a real person. Your task is to understand what the user truly needs and help them express it more accurately and completely, based on your knowledge of them.

Rules:
1. Distinguish "needs" from "requirements" — the specific ask may be just one way to satisfy the real need.
2. Supplement with relevant context from the user's profile so responders understand better.
3. Do not replace the user's original intent — enrich and supplement it.
4. Preserve the user's preferences, but mark which are hard constraints and which are negotiable.

The user's profile:
%s

Output in JSON format:
{
  "formulated_text": "the enriched demand text",
  "enrichments": {
    "hard_constraints": ["..."],
    "negotiable_preferences": ["..."],
    "context_added": ["..."]
  }
}
`

// FormulationInput carries what the formulation skill needs for one run.
type FormulationInput struct {
	RawIntent string
	AgentID   string
	Profile   map[string]any
	Adapter   adapter.AgentAdapter
}

// FormulationResult is the enriched demand.
type FormulationResult struct {
	FormulatedText string
	Enrichments    map[string]any
}

// Formulation enriches a raw demand before broadcast.
type Formulation interface {
	Name() string
	Execute(ctx context.Context, in FormulationInput) (*FormulationResult, error)
}

// DemandFormulationSkill implements Formulation by asking the initiating
// user's own agent to restate the demand with profile context.
type DemandFormulationSkill struct{}

func NewDemandFormulationSkill() *DemandFormulationSkill {
	return &DemandFormulationSkill{}
}

func (s *DemandFormulationSkill) Name() string { return "demand_formulation" }

// Execute runs the skill. Non-JSON model output degrades to using the raw
// reply as the formulated text; an empty reply is a SkillError.
func (s *DemandFormulationSkill) Execute(ctx context.Context, in FormulationInput) (*FormulationResult, error) {
	if in.RawIntent == "" {
		return nil, newSkillError(s.Name(), "raw_intent is required")
	}
	if in.AgentID == "" {
		return nil, newSkillError(s.Name(), "agent_id is required")
	}
	if in.Adapter == nil {
		return nil, newSkillError(s.Name(), "adapter is required")
	}

	systemPrompt, messages := s.buildPrompt(in)

	raw, err := in.Adapter.Chat(ctx, in.AgentID, messages, systemPrompt)
	if err != nil {
		return nil, &SkillError{Skill: s.Name(), Msg: "agent chat failed", Err: err}
	}
	return s.validateOutput(raw)
}

func (s *DemandFormulationSkill) buildPrompt(in FormulationInput) (string, []llm.Message) {
	profile := profileJSON(in.Profile)

	if detectCJK(in.RawIntent) {
		return fmt.Sprintf(formulationPromptZH, profile), []llm.Message{
			{Role: llm.RoleUser, Content: fmt.Sprintf("用户说：%s\n请生成丰富后的需求表述。", in.RawIntent)},
		}
	}
	return fmt.Sprintf(formulationPromptEN, profile), []llm.Message{
		{Role: llm.RoleUser, Content: fmt.Sprintf("The user says: %s\nPlease generate an enriched demand expression.", in.RawIntent)},
	}
}

func (s *DemandFormulationSkill) validateOutput(raw string) (*FormulationResult, error) {
	cleaned := stripCodeFence(raw)

	var parsed struct {
		FormulatedText string         `json:"formulated_text"`
		Enrichments    map[string]any `json:"enrichments"`
	}
	formulated := strings.TrimSpace(cleaned)
	enrichments := map[string]any{}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil {
		formulated = parsed.FormulatedText
		if parsed.Enrichments != nil {
			enrichments = parsed.Enrichments
		}
	}

	if formulated == "" {
		return nil, newSkillError(s.Name(), "formulated_text is empty")
	}
	return &FormulationResult{FormulatedText: formulated, Enrichments: enrichments}, nil
}
