package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/towow-net/towow/pkg/llm"
)

const discoveryPrompt = `You are a resource discovery specialist. Two participants have each given their responses, but their profiles may contain relevant capabilities not mentioned in their offers. Your task is to discover complementarities and potential collaboration value between them.

Rules:
1. Focus on parts of the profile NOT covered in the offer.
2. Look for unexpected complementarities and combinations.
3. If there's conflict, find coordination paths acceptable to both parties.

Output in JSON format:
{
  "discovery_report": {
    "new_associations": ["association 1", "association 2"],
    "coordination": "coordination approach or null if not needed",
    "additional_contributions": {
      "agent_a": ["potential contribution 1"],
      "agent_b": ["potential contribution 1"]
    },
    "summary": "brief summary of discoveries"
  }
}
`

// DiscoveryAgent describes one side of a discovery dialogue.
type DiscoveryAgent struct {
	AgentID     string
	DisplayName string
	Offer       string
	Profile     map[string]any
}

// SubNegotiationInput carries the two agents and the trigger reason.
type SubNegotiationInput struct {
	AgentA DiscoveryAgent
	AgentB DiscoveryAgent
	Reason string
	LLM    llm.Client
}

// DiscoveryReport is the structured outcome of a discovery dialogue.
type DiscoveryReport struct {
	NewAssociations         []string       `json:"new_associations"`
	Coordination            string         `json:"coordination,omitempty"`
	AdditionalContributions map[string]any `json:"additional_contributions"`
	Summary                 string         `json:"summary"`
}

// SubNegotiation runs a discovery dialogue between two participants.
type SubNegotiation interface {
	Name() string
	Execute(ctx context.Context, in SubNegotiationInput) (*DiscoveryReport, error)
}

// SubNegotiationSkill implements SubNegotiation against the platform LLM.
type SubNegotiationSkill struct{}

func NewSubNegotiationSkill() *SubNegotiationSkill {
	return &SubNegotiationSkill{}
}

func (s *SubNegotiationSkill) Name() string { return "sub_negotiation" }

// Execute runs the dialogue. Non-JSON output degrades to a report whose
// summary is the raw text; a report with neither summary nor associations
// is a SkillError.
func (s *SubNegotiationSkill) Execute(ctx context.Context, in SubNegotiationInput) (*DiscoveryReport, error) {
	if in.AgentA.AgentID == "" {
		return nil, newSkillError(s.Name(), "agent_a is required")
	}
	if in.AgentB.AgentID == "" {
		return nil, newSkillError(s.Name(), "agent_b is required")
	}
	if in.Reason == "" {
		return nil, newSkillError(s.Name(), "reason is required")
	}
	if in.LLM == nil {
		return nil, newSkillError(s.Name(), "llm client is required")
	}

	resp, err := in.LLM.Chat(ctx, &llm.Request{
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: s.buildUserContent(in)}},
		SystemPrompt: discoveryPrompt,
	})
	if err != nil {
		return nil, &SkillError{Skill: s.Name(), Msg: "llm chat failed", Err: err}
	}
	return s.validateOutput(resp.Content)
}

func (s *SubNegotiationSkill) buildUserContent(in SubNegotiationInput) string {
	return fmt.Sprintf(
		"## Trigger Reason\n%s\n\n"+
			"## Participant A: %s\nOffer: %s\nProfile:\n%s\n\n"+
			"## Participant B: %s\nOffer: %s\nProfile:\n%s",
		in.Reason,
		displayOrID(in.AgentA), offerOrNone(in.AgentA.Offer), profileJSON(in.AgentA.Profile),
		displayOrID(in.AgentB), offerOrNone(in.AgentB.Offer), profileJSON(in.AgentB.Profile),
	)
}

func displayOrID(a DiscoveryAgent) string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.AgentID
}

func offerOrNone(offer string) string {
	if offer == "" {
		return "(no offer)"
	}
	return offer
}

func (s *SubNegotiationSkill) validateOutput(raw string) (*DiscoveryReport, error) {
	cleaned := stripCodeFence(raw)

	var parsed struct {
		DiscoveryReport *DiscoveryReport `json:"discovery_report"`
	}
	var report *DiscoveryReport
	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil && parsed.DiscoveryReport != nil {
		report = parsed.DiscoveryReport
	} else if err == nil {
		// The model may emit the report fields at top level.
		var flat DiscoveryReport
		if err := json.Unmarshal([]byte(cleaned), &flat); err == nil {
			report = &flat
		}
	}
	if report == nil {
		report = &DiscoveryReport{Summary: strings.TrimSpace(raw)}
	}

	if report.NewAssociations == nil {
		report.NewAssociations = []string{}
	}
	if report.AdditionalContributions == nil {
		report.AdditionalContributions = map[string]any{}
	}

	if report.Summary == "" && len(report.NewAssociations) == 0 {
		return nil, newSkillError(s.Name(), "discovery report has no content")
	}
	return report, nil
}
