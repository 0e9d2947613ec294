// Package models contains the negotiation domain types: demands, offers,
// participants, sessions and traces.
package models

import (
	"time"
)

// NegotiationState represents the lifecycle state of a negotiation session
type NegotiationState string

const (
	StateCreated        NegotiationState = "created"
	StateFormulating    NegotiationState = "formulating"
	StateFormulated     NegotiationState = "formulated"
	StateEncoding       NegotiationState = "encoding"
	StateOffering       NegotiationState = "offering"
	StateBarrierWaiting NegotiationState = "barrier_waiting"
	StateSynthesizing   NegotiationState = "synthesizing"
	StateCompleted      NegotiationState = "completed"
)

// AgentState represents a participant's state during offer collection
type AgentState string

const (
	AgentActive  AgentState = "active"
	AgentReplied AgentState = "replied"
	AgentExited  AgentState = "exited"
)

// DemandSnapshot is the immutable description of what the initiating user
// wants. FormulatedText is filled in by the formulation stage; RawIntent is
// never modified after creation.
type DemandSnapshot struct {
	RawIntent      string         `json:"raw_intent"`
	FormulatedText string         `json:"formulated_text,omitempty"`
	UserID         string         `json:"user_id,omitempty"`
	SceneID        string         `json:"scene_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Text returns the formulated text when present, the raw intent otherwise.
func (d *DemandSnapshot) Text() string {
	if d.FormulatedText != "" {
		return d.FormulatedText
	}
	return d.RawIntent
}

// Offer is a participant's response to a demand.
type Offer struct {
	AgentID      string         `json:"agent_id"`
	Content      string         `json:"content"`
	Capabilities []string       `json:"capabilities,omitempty"`
	Confidence   float64        `json:"confidence"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AgentParticipant is an agent activated for a session by resonance
// detection. Offer is nil until the participant replies.
type AgentParticipant struct {
	AgentID        string     `json:"agent_id"`
	DisplayName    string     `json:"display_name"`
	ResonanceScore float64    `json:"resonance_score"`
	State          AgentState `json:"state"`
	Offer          *Offer     `json:"offer,omitempty"`
}

// DefaultMaxCenterRounds bounds the synthesis loop when a session does not
// specify its own limit.
const DefaultMaxCenterRounds = 2

// NegotiationSession is the central aggregate of a negotiation run.
//
// The engine owns the session for the duration of StartNegotiation and
// mutates it from a single goroutine, except for per-participant fields
// written by the offer-collection goroutines (each goroutine touches only
// its own participant).
type NegotiationSession struct {
	NegotiationID       string              `json:"negotiation_id"`
	Demand              *DemandSnapshot     `json:"demand"`
	State               NegotiationState    `json:"state"`
	Participants        []*AgentParticipant `json:"participants"`
	CenterRounds        int                 `json:"center_rounds"`
	MaxCenterRounds     int                 `json:"max_center_rounds"`
	PlanOutput          string              `json:"plan_output,omitempty"`
	ParentNegotiationID string              `json:"parent_negotiation_id,omitempty"`
	Depth               int                 `json:"depth"`
	SubSessionIDs       []string            `json:"sub_session_ids,omitempty"`
	Trace               *TraceChain         `json:"trace,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	CompletedAt         *time.Time          `json:"completed_at,omitempty"`
	Metadata            map[string]any      `json:"metadata,omitempty"`
}

// NewSession creates a session in the CREATED state with a fresh "neg_"
// prefixed ID and the default synthesis round limit.
func NewSession(demand *DemandSnapshot) *NegotiationSession {
	return &NegotiationSession{
		NegotiationID:   NewID("neg"),
		Demand:          demand,
		State:           StateCreated,
		MaxCenterRounds: DefaultMaxCenterRounds,
		CreatedAt:       time.Now().UTC(),
	}
}

// NewSubSession creates a depth+1 child session for a gap spun out of the
// parent. Child IDs carry the "sub_" prefix so the lineage is visible in
// event streams.
func NewSubSession(parent *NegotiationSession, subDemandText string) *NegotiationSession {
	return &NegotiationSession{
		NegotiationID: NewID("sub"),
		Demand: &DemandSnapshot{
			RawIntent: subDemandText,
			UserID:    parent.Demand.UserID,
			SceneID:   parent.Demand.SceneID,
		},
		State:               StateCreated,
		MaxCenterRounds:     parent.MaxCenterRounds,
		ParentNegotiationID: parent.NegotiationID,
		Depth:               parent.Depth + 1,
		CreatedAt:           time.Now().UTC(),
	}
}

// ActiveParticipants returns participants that have neither replied nor
// exited.
func (s *NegotiationSession) ActiveParticipants() []*AgentParticipant {
	var active []*AgentParticipant
	for _, p := range s.Participants {
		if p.State == AgentActive {
			active = append(active, p)
		}
	}
	return active
}

// CollectedOffers returns the offers of all participants that replied, in
// participant order.
func (s *NegotiationSession) CollectedOffers() []*Offer {
	var offers []*Offer
	for _, p := range s.Participants {
		if p.Offer != nil {
			offers = append(offers, p.Offer)
		}
	}
	return offers
}

// BarrierMet reports whether every participant has either replied or
// exited. Trivially true with zero participants.
func (s *NegotiationSession) BarrierMet() bool {
	for _, p := range s.Participants {
		if p.State != AgentReplied && p.State != AgentExited {
			return false
		}
	}
	return true
}

// FindParticipant returns the participant with the given agent ID, or nil.
func (s *NegotiationSession) FindParticipant(agentID string) *AgentParticipant {
	for _, p := range s.Participants {
		if p.AgentID == agentID {
			return p
		}
	}
	return nil
}
