// Package events defines the negotiation event stream: typed event
// constructors and pusher implementations that deliver events to observers.
//
// Events are facts about session progress, not commands. The engine pushes
// them in order per session; pusher failures never affect the negotiation.
package events

import (
	"time"

	"github.com/towow-net/towow/pkg/models"
)

// Event type tags, dot-namespaced by emitting stage.
const (
	TypeFormulationReady      = "formulation.ready"
	TypeResonanceActivated    = "resonance.activated"
	TypeOfferReceived         = "offer.received"
	TypeBarrierComplete       = "barrier.complete"
	TypeCenterToolCall        = "center.tool_call"
	TypePlanReady             = "plan.ready"
	TypeSubNegotiationStarted = "sub_negotiation.started"

	// Reserved for the execution layer; the engine never emits these.
	TypeExecutionProgress = "execution.progress"
	TypeEchoReceived      = "echo.received"
)

// Event is a single negotiation event. Data carries the type-specific
// payload documented on each constructor.
type Event struct {
	EventType     string         `json:"event_type"`
	NegotiationID string         `json:"negotiation_id"`
	Timestamp     time.Time      `json:"timestamp"`
	EventID       string         `json:"event_id"`
	Data          map[string]any `json:"data"`
}

func newEvent(eventType, negotiationID string, data map[string]any) *Event {
	return &Event{
		EventType:     eventType,
		NegotiationID: negotiationID,
		Timestamp:     time.Now().UTC(),
		EventID:       models.NewID("evt"),
		Data:          data,
	}
}

// FormulationReady signals that the demand has been (possibly degraded)
// formulated. Data: raw_intent, formulated_text, enrichments.
func FormulationReady(negotiationID, rawIntent, formulatedText string, enrichments map[string]any) *Event {
	if enrichments == nil {
		enrichments = map[string]any{}
	}
	return newEvent(TypeFormulationReady, negotiationID, map[string]any{
		"raw_intent":      rawIntent,
		"formulated_text": formulatedText,
		"enrichments":     enrichments,
	})
}

// ActivatedAgent is one resonance match inside a ResonanceActivated event.
type ActivatedAgent struct {
	AgentID        string  `json:"agent_id"`
	DisplayName    string  `json:"display_name"`
	ResonanceScore float64 `json:"resonance_score"`
}

// ResonanceActivated signals which agents were selected for the session.
// Data: activated_count, agents.
func ResonanceActivated(negotiationID string, agents []ActivatedAgent) *Event {
	if agents == nil {
		agents = []ActivatedAgent{}
	}
	return newEvent(TypeResonanceActivated, negotiationID, map[string]any{
		"activated_count": len(agents),
		"agents":          agents,
	})
}

// OfferReceived signals that one participant replied with an offer.
// Data: agent_id, display_name, content, capabilities.
func OfferReceived(negotiationID, agentID, displayName, content string, capabilities []string) *Event {
	if capabilities == nil {
		capabilities = []string{}
	}
	return newEvent(TypeOfferReceived, negotiationID, map[string]any{
		"agent_id":     agentID,
		"display_name": displayName,
		"content":      content,
		"capabilities": capabilities,
	})
}

// BarrierComplete signals that every participant has replied or exited.
// Data: total_participants, offers_received, exited_count.
func BarrierComplete(negotiationID string, totalParticipants, offersReceived, exitedCount int) *Event {
	return newEvent(TypeBarrierComplete, negotiationID, map[string]any{
		"total_participants": totalParticipants,
		"offers_received":    offersReceived,
		"exited_count":       exitedCount,
	})
}

// CenterToolCall signals one tool invocation by the Center coordinator.
// Data: tool_name, tool_args, round_number.
func CenterToolCall(negotiationID, toolName string, toolArgs map[string]any, roundNumber int) *Event {
	if toolArgs == nil {
		toolArgs = map[string]any{}
	}
	return newEvent(TypeCenterToolCall, negotiationID, map[string]any{
		"tool_name":    toolName,
		"tool_args":    toolArgs,
		"round_number": roundNumber,
	})
}

// PlanReady signals the final plan. Always the last event of a completed
// session. Data: plan_text, center_rounds, participating_agents.
func PlanReady(negotiationID, planText string, centerRounds int, participatingAgents []string) *Event {
	if participatingAgents == nil {
		participatingAgents = []string{}
	}
	return newEvent(TypePlanReady, negotiationID, map[string]any{
		"plan_text":            planText,
		"center_rounds":        centerRounds,
		"participating_agents": participatingAgents,
	})
}

// SubNegotiationStarted signals that a child session was spun off for a
// gap. Data: sub_negotiation_id, gap_description.
func SubNegotiationStarted(negotiationID, subNegotiationID, gapDescription string) *Event {
	return newEvent(TypeSubNegotiationStarted, negotiationID, map[string]any{
		"sub_negotiation_id": subNegotiationID,
		"gap_description":    gapDescription,
	})
}
