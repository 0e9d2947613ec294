package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/towow-net/towow/pkg/adapter"
	"github.com/towow-net/towow/pkg/llm"
)

const offerPromptZH = `你代表一个真实的人。你的任务是基于你的真实背景，诚实地回应这个需求。

规则：
1. 只描述你的 profile 中记录的能力和经历。
2. 如果需求部分相关，明确说明哪些相关、哪些不相关。
3. 如果完全不相关，说"这个需求不在我的能力范围内"，并简述你能做什么。
4. 思考：在这个需求的语境下，你的哪些经历可能有意想不到的价值？

你的画像：
%s

以 JSON 格式输出：
{
  "content": "你对需求的回应",
  "capabilities": ["相关能力1", "相关能力2"],
  "confidence": 0.0 到 1.0
}
`

const offerPromptEN = `You represent a real person/service. Your task is to honestly respond to this demand based on your actual background.

Rules:
1. Only describe capabilities and experiences recorded in your profile.
2. If the demand is partially relevant, clearly state what's relevant and what's not.
3. If completely irrelevant, say "I can't help with this."
4. Think: in the context of this demand, which of your experiences might have unexpected value?

Your profile:
%s

Output in JSON format:
{
  "content": "your response to the demand",
  "capabilities": ["relevant capability 1", "relevant capability 2"],
  "confidence": 0.0 to 1.0
}
`

// OfferInput carries what the offer skill needs for one participant.
type OfferInput struct {
	AgentID    string
	DemandText string
	Profile    map[string]any
	Adapter    adapter.AgentAdapter
}

// OfferResult is a participant's validated response. Confidence is always
// within [0, 1].
type OfferResult struct {
	Content      string
	Capabilities []string
	Confidence   float64
}

// OfferGeneration produces one participant's offer for a demand.
type OfferGeneration interface {
	Name() string
	Execute(ctx context.Context, in OfferInput) (*OfferResult, error)
}

// OfferGenerationSkill implements OfferGeneration by asking the
// participant's agent to respond in character.
type OfferGenerationSkill struct{}

func NewOfferGenerationSkill() *OfferGenerationSkill {
	return &OfferGenerationSkill{}
}

func (s *OfferGenerationSkill) Name() string { return "offer_generation" }

// Execute runs the skill. Non-JSON output degrades to the raw reply with
// confidence 0.5; an empty reply is a SkillError (the engine turns that
// into a participant exit, never a run failure).
func (s *OfferGenerationSkill) Execute(ctx context.Context, in OfferInput) (*OfferResult, error) {
	if in.AgentID == "" {
		return nil, newSkillError(s.Name(), "agent_id is required")
	}
	if in.DemandText == "" {
		return nil, newSkillError(s.Name(), "demand_text is required")
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

func (s *OfferGenerationSkill) buildPrompt(in OfferInput) (string, []llm.Message) {
	profile := profileJSON(in.Profile)

	if detectCJK(in.DemandText) {
		return fmt.Sprintf(offerPromptZH, profile), []llm.Message{
			{Role: llm.RoleUser, Content: fmt.Sprintf("需求：%s\n请给出你的回应。", in.DemandText)},
		}
	}
	return fmt.Sprintf(offerPromptEN, profile), []llm.Message{
		{Role: llm.RoleUser, Content: fmt.Sprintf("Demand: %s\nPlease give your response.", in.DemandText)},
	}
}

func (s *OfferGenerationSkill) validateOutput(raw string) (*OfferResult, error) {
	cleaned := stripCodeFence(raw)

	content := strings.TrimSpace(cleaned)
	var capabilities []string
	confidence := 0.5

	var parsed struct {
		Content      string   `json:"content"`
		Capabilities []string `json:"capabilities"`
		Confidence   any      `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil {
		content = parsed.Content
		capabilities = parsed.Capabilities
		confidence = coerceConfidence(parsed.Confidence)
	}

	if content == "" {
		return nil, newSkillError(s.Name(), "content is empty")
	}

	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	if capabilities == nil {
		capabilities = []string{}
	}

	return &OfferResult{
		Content:      content,
		Capabilities: capabilities,
		Confidence:   confidence,
	}, nil
}

// coerceConfidence accepts numbers and numeric strings. A missing value
// is 0; any other type falls back to 0.5 so a sloppy model does not sink
// an otherwise valid offer.
func coerceConfidence(v any) float64 {
	switch c := v.(type) {
	case float64:
		return c
	case string:
		if f, err := strconv.ParseFloat(c, 64); err == nil {
			return f
		}
	case nil:
		return 0
	}
	return 0.5
}
