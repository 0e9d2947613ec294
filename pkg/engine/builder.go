package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/towow-net/towow/pkg/adapter"
	"github.com/towow-net/towow/pkg/events"
	"github.com/towow-net/towow/pkg/llm"
	"github.com/towow-net/towow/pkg/registry"
	"github.com/towow-net/towow/pkg/resonance"
	"github.com/towow-net/towow/pkg/skills"
)

// Builder assembles an Engine and the StartParams for its negotiations in
// one fluent pass. The zero-value defaults are the standard skill set,
// in-memory cosine detection and a null event pusher; encoder, adapter,
// LLM client and Center must be supplied.
type Builder struct {
	encoder  resonance.Encoder
	detector resonance.Detector
	pusher   events.Pusher
	opts     []Option

	params   StartParams
	handlers []ToolHandler
}

// NewBuilder starts a builder with the default skills wired in.
func NewBuilder() *Builder {
	return &Builder{
		params: StartParams{
			Center:         skills.NewCenterCoordinatorSkill(),
			Formulation:    skills.NewDemandFormulationSkill(),
			Offer:          skills.NewOfferGenerationSkill(),
			SubNegotiation: skills.NewSubNegotiationSkill(),
			GapRecursion:   skills.NewGapRecursionSkill(),
		},
	}
}

func (b *Builder) WithEncoder(encoder resonance.Encoder) *Builder {
	b.encoder = encoder
	return b
}

func (b *Builder) WithDetector(detector resonance.Detector) *Builder {
	b.detector = detector
	return b
}

func (b *Builder) WithPusher(pusher events.Pusher) *Builder {
	b.pusher = pusher
	return b
}

func (b *Builder) WithAdapter(a adapter.AgentAdapter) *Builder {
	b.params.Adapter = a
	return b
}

func (b *Builder) WithLLM(client llm.Client) *Builder {
	b.params.LLM = client
	return b
}

func (b *Builder) WithCenter(center skills.Center) *Builder {
	b.params.Center = center
	return b
}

func (b *Builder) WithFormulation(f skills.Formulation) *Builder {
	b.params.Formulation = f
	return b
}

func (b *Builder) WithOffer(o skills.OfferGeneration) *Builder {
	b.params.Offer = o
	return b
}

func (b *Builder) WithSubNegotiation(s skills.SubNegotiation) *Builder {
	b.params.SubNegotiation = s
	return b
}

func (b *Builder) WithGapRecursion(g skills.GapRecursion) *Builder {
	b.params.GapRecursion = g
	return b
}

// WithAgentPool sets the resonance candidates and the top-k cut.
func (b *Builder) WithAgentPool(vectors []resonance.AgentVector, kStar int) *Builder {
	b.params.AgentVectors = vectors
	b.params.KStar = kStar
	return b
}

func (b *Builder) WithDisplayNames(names map[string]string) *Builder {
	b.params.DisplayNames = names
	return b
}

// WithRegistry wires a session registry as the register-session callback,
// so spawned child sessions are tracked alongside their parents.
func (b *Builder) WithRegistry(reg *registry.Registry) *Builder {
	b.params.RegisterSession = reg.Register
	return b
}

func (b *Builder) WithAwaitConfirmation(await bool) *Builder {
	b.params.AwaitConfirmation = await
	return b
}

func (b *Builder) WithOfferTimeout(d time.Duration) *Builder {
	b.opts = append(b.opts, WithOfferTimeout(d))
	return b
}

func (b *Builder) WithConfirmationTimeout(d time.Duration) *Builder {
	b.opts = append(b.opts, WithConfirmationTimeout(d))
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.opts = append(b.opts, WithLogger(logger))
	return b
}

// WithToolHandler registers a custom Center tool. Registration errors
// surface from Build.
func (b *Builder) WithToolHandler(h ToolHandler) *Builder {
	b.handlers = append(b.handlers, h)
	return b
}

// Build validates the configuration and returns the Engine together with
// the StartParams to pass to StartNegotiation.
func (b *Builder) Build() (*Engine, StartParams, error) {
	if b.encoder == nil {
		return nil, StartParams{}, fmt.Errorf("builder: encoder is required: %w", ErrConfig)
	}
	if b.params.Adapter == nil {
		return nil, StartParams{}, fmt.Errorf("builder: adapter is required: %w", ErrConfig)
	}
	if b.params.LLM == nil {
		return nil, StartParams{}, fmt.Errorf("builder: llm client is required: %w", ErrConfig)
	}
	if b.params.Center == nil {
		return nil, StartParams{}, fmt.Errorf("builder: center skill is required: %w", ErrConfig)
	}

	detector := b.detector
	if detector == nil {
		detector = resonance.CosineDetector{}
	}
	pusher := b.pusher
	if pusher == nil {
		pusher = events.NullPusher{}
	}

	eng, err := New(b.encoder, detector, pusher, b.opts...)
	if err != nil {
		return nil, StartParams{}, err
	}
	for _, h := range b.handlers {
		if err := eng.RegisterToolHandler(h); err != nil {
			return nil, StartParams{}, err
		}
	}
	return eng, b.params, nil
}
