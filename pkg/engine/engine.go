// Package engine drives negotiation sessions through their lifecycle:
// formulation, resonance-based participant activation, concurrent offer
// collection behind a barrier, and a bounded Center synthesis loop that
// ends in a plan.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/towow-net/towow/pkg/adapter"
	"github.com/towow-net/towow/pkg/events"
	"github.com/towow-net/towow/pkg/llm"
	"github.com/towow-net/towow/pkg/models"
	"github.com/towow-net/towow/pkg/resonance"
	"github.com/towow-net/towow/pkg/skills"
)

// Default stage timeouts.
const (
	DefaultOfferTimeout        = 30 * time.Second
	DefaultConfirmationTimeout = 300 * time.Second
)

// validTransitions is the session state machine. COMPLETED is reachable
// from every non-terminal state so fatal short-circuits stay legal.
var validTransitions = map[models.NegotiationState][]models.NegotiationState{
	models.StateCreated:        {models.StateFormulating, models.StateCompleted},
	models.StateFormulating:    {models.StateFormulated, models.StateCompleted},
	models.StateFormulated:     {models.StateEncoding, models.StateCompleted},
	models.StateEncoding:       {models.StateOffering, models.StateCompleted},
	models.StateOffering:       {models.StateBarrierWaiting, models.StateCompleted},
	models.StateBarrierWaiting: {models.StateSynthesizing, models.StateCompleted},
	models.StateSynthesizing:   {models.StateSynthesizing, models.StateCompleted},
	models.StateCompleted:      {},
}

// ToolContext is handed to custom tool handlers alongside the session.
type ToolContext struct {
	Adapter      adapter.AgentAdapter
	LLM          llm.Client
	DisplayNames map[string]string
	Engine       *Engine
}

// ToolHandler extends the Center's tool set. Handler errors are fatal to
// the session; handlers that want softer semantics must recover
// internally.
type ToolHandler interface {
	ToolName() string
	Handle(ctx context.Context, session *models.NegotiationSession, args map[string]any, tc *ToolContext) (any, error)
}

// ToolDefiner is optionally implemented by handlers that want to describe
// their schema to the model. Handlers without it are offered by name only.
type ToolDefiner interface {
	ToolDefinition() llm.ToolDefinition
}

// StartParams bundles the per-run collaborators of one negotiation.
// Adapter, LLM and Center are required; the remaining skills are optional
// and their stages degrade when absent.
type StartParams struct {
	Adapter adapter.AgentAdapter
	LLM     llm.Client

	Center         skills.Center
	Formulation    skills.Formulation
	Offer          skills.OfferGeneration
	SubNegotiation skills.SubNegotiation
	GapRecursion   skills.GapRecursion

	// AgentVectors is the candidate pool for resonance detection, in a
	// stable order (ties keep this order).
	AgentVectors []resonance.AgentVector
	KStar        int

	DisplayNames map[string]string

	// RegisterSession is called for every child session the engine
	// creates, before the child starts.
	RegisterSession func(*models.NegotiationSession)

	// AwaitConfirmation blocks after formulation until
	// ConfirmFormulation fires or the confirmation timeout elapses.
	AwaitConfirmation bool
}

// Engine runs negotiations. One Engine serves many concurrent sessions;
// per-session state lives on the session itself and each session is
// advanced by exactly one driver goroutine.
type Engine struct {
	encoder             resonance.Encoder
	detector            resonance.Detector
	pusher              events.Pusher
	offerTimeout        time.Duration
	confirmationTimeout time.Duration
	logger              *slog.Logger

	handlersMu   sync.RWMutex
	toolHandlers map[string]ToolHandler

	confirmMu     sync.Mutex
	confirmations map[string]*confirmation
}

// Option configures an Engine.
type Option func(*Engine)

// WithOfferTimeout sets the per-participant offer budget.
func WithOfferTimeout(d time.Duration) Option {
	return func(e *Engine) { e.offerTimeout = d }
}

// WithConfirmationTimeout sets how long a confirmation rendezvous waits.
func WithConfirmationTimeout(d time.Duration) Option {
	return func(e *Engine) { e.confirmationTimeout = d }
}

// WithLogger sets the engine's base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates an Engine. Encoder, detector and pusher are required.
func New(encoder resonance.Encoder, detector resonance.Detector, pusher events.Pusher, opts ...Option) (*Engine, error) {
	if encoder == nil {
		return nil, fmt.Errorf("engine: encoder is required: %w", ErrConfig)
	}
	if detector == nil {
		return nil, fmt.Errorf("engine: resonance detector is required: %w", ErrConfig)
	}
	if pusher == nil {
		return nil, fmt.Errorf("engine: event pusher is required: %w", ErrConfig)
	}

	e := &Engine{
		encoder:             encoder,
		detector:            detector,
		pusher:              pusher,
		offerTimeout:        DefaultOfferTimeout,
		confirmationTimeout: DefaultConfirmationTimeout,
		logger:              slog.Default(),
		toolHandlers:        make(map[string]ToolHandler),
		confirmations:       make(map[string]*confirmation),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// builtinTools guards custom handler registration.
var builtinTools = map[string]bool{
	skills.ToolOutputPlan:      true,
	skills.ToolAskAgent:        true,
	skills.ToolStartDiscovery:  true,
	skills.ToolCreateSubDemand: true,
	skills.ToolCreateMachine:   true,
}

// RegisterToolHandler adds a custom Center tool. Built-in names and
// duplicates are rejected.
func (e *Engine) RegisterToolHandler(handler ToolHandler) error {
	name := handler.ToolName()
	if builtinTools[name] {
		return fmt.Errorf("engine: tool %q is built-in and cannot be overridden: %w", name, ErrConfig)
	}

	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	if _, exists := e.toolHandlers[name]; exists {
		return fmt.Errorf("engine: tool %q is already registered: %w", name, ErrConfig)
	}
	e.toolHandlers[name] = handler
	return nil
}

func (e *Engine) lookupHandler(name string) ToolHandler {
	e.handlersMu.RLock()
	defer e.handlersMu.RUnlock()
	return e.toolHandlers[name]
}

// extraToolDefinitions describes registered custom tools for an
// unrestricted Center round.
func (e *Engine) extraToolDefinitions() []llm.ToolDefinition {
	e.handlersMu.RLock()
	defer e.handlersMu.RUnlock()

	defs := make([]llm.ToolDefinition, 0, len(e.toolHandlers))
	for name, handler := range e.toolHandlers {
		if definer, ok := handler.(ToolDefiner); ok {
			defs = append(defs, definer.ToolDefinition())
			continue
		}
		defs = append(defs, llm.ToolDefinition{Name: name})
	}
	return defs
}

// StartNegotiation drives session from CREATED to COMPLETED and returns
// it. On a fatal failure the session keeps its last valid state and an
// empty plan output; callers classify the outcome from both.
func (e *Engine) StartNegotiation(ctx context.Context, session *models.NegotiationSession, params StartParams) (*models.NegotiationSession, error) {
	if session == nil || session.Demand == nil {
		return nil, fmt.Errorf("engine: session with demand is required: %w", ErrConfig)
	}
	if params.Adapter == nil {
		return session, fmt.Errorf("engine: adapter is required: %w", ErrConfig)
	}
	if params.LLM == nil {
		return session, fmt.Errorf("engine: llm client is required: %w", ErrConfig)
	}
	if params.Center == nil {
		return session, fmt.Errorf("engine: center skill is required: %w", ErrConfig)
	}
	if session.State != models.StateCreated {
		return session, fmt.Errorf("engine: session must be in %s state, got %s: %w",
			models.StateCreated, session.State, ErrConfig)
	}
	if session.MaxCenterRounds <= 0 {
		session.MaxCenterRounds = models.DefaultMaxCenterRounds
	}

	logger := e.logger.With("negotiation_id", session.NegotiationID, "depth", session.Depth)
	logger.InfoContext(ctx, "starting negotiation", "raw_intent", session.Demand.RawIntent)

	if err := e.runFormulation(ctx, session, params, logger); err != nil {
		return session, err
	}
	if err := e.runEncoding(ctx, session, params, logger); err != nil {
		return session, err
	}
	if err := e.runOffers(ctx, session, params, logger); err != nil {
		return session, err
	}
	if err := e.runSynthesis(ctx, session, params, logger); err != nil {
		return session, err
	}

	logger.InfoContext(ctx, "negotiation completed",
		"center_rounds", session.CenterRounds,
		"participants", len(session.Participants),
		"offers", len(session.CollectedOffers()),
	)
	return session, nil
}

// transition moves the session to next, enforcing the state machine.
func (e *Engine) transition(session *models.NegotiationSession, next models.NegotiationState) error {
	for _, allowed := range validTransitions[session.State] {
		if allowed == next {
			session.State = next
			return nil
		}
	}
	return &InvalidTransitionError{From: session.State, To: next}
}

// pushEvent delivers an event, swallowing pusher failures: observability
// must never stall or fail a negotiation.
func (e *Engine) pushEvent(ctx context.Context, logger *slog.Logger, event *events.Event) {
	if err := e.pusher.Push(ctx, event); err != nil {
		logger.ErrorContext(ctx, "failed to push event", "event_type", event.EventType, "error", err)
	}
}

func (e *Engine) traceStep(session *models.NegotiationSession, step, summary string) {
	if session.Trace == nil {
		return
	}
	entry := session.Trace.Add(step)
	entry.OutputSummary = summary
}

func (e *Engine) markCompleted(session *models.NegotiationSession) {
	now := time.Now().UTC()
	session.CompletedAt = &now
	if session.Trace != nil {
		session.Trace.Complete()
	}
}
