package events

import (
	"context"
	"log/slog"
	"sync"
)

// Pusher delivers events to an observer channel (websocket bridge, queue,
// log, test recorder). Implementations must be safe for concurrent use;
// offer-collection pushes events from multiple goroutines.
type Pusher interface {
	Push(ctx context.Context, event *Event) error
	PushMany(ctx context.Context, events []*Event) error
}

// NullPusher discards all events.
type NullPusher struct{}

func (NullPusher) Push(ctx context.Context, event *Event) error { return nil }

func (NullPusher) PushMany(ctx context.Context, events []*Event) error { return nil }

// LogPusher writes each event to a structured logger at info level.
type LogPusher struct {
	logger *slog.Logger
}

// NewLogPusher creates a LogPusher. A nil logger falls back to slog.Default.
func NewLogPusher(logger *slog.Logger) *LogPusher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPusher{logger: logger}
}

func (p *LogPusher) Push(ctx context.Context, event *Event) error {
	p.logger.InfoContext(ctx, "negotiation event",
		"event_type", event.EventType,
		"negotiation_id", event.NegotiationID,
		"event_id", event.EventID,
		"data", event.Data,
	)
	return nil
}

func (p *LogPusher) PushMany(ctx context.Context, events []*Event) error {
	for _, ev := range events {
		if err := p.Push(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// MultiPusher fans each event out to several pushers. The first error is
// returned after all pushers have been attempted.
type MultiPusher struct {
	pushers []Pusher
}

func NewMultiPusher(pushers ...Pusher) *MultiPusher {
	return &MultiPusher{pushers: pushers}
}

func (p *MultiPusher) Push(ctx context.Context, event *Event) error {
	var firstErr error
	for _, inner := range p.pushers {
		if err := inner.Push(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *MultiPusher) PushMany(ctx context.Context, events []*Event) error {
	var firstErr error
	for _, ev := range events {
		if err := p.Push(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Recorder buffers events in memory. Used by tests and the demo binary to
// inspect the stream after a run.
type Recorder struct {
	mu     sync.Mutex
	events []*Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Push(ctx context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) PushMany(ctx context.Context, events []*Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

// Events returns a snapshot of everything recorded so far.
func (r *Recorder) Events() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns recorded events matching the given type tag, in order.
func (r *Recorder) OfType(eventType string) []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Event
	for _, ev := range r.events {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}
