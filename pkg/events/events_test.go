package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		event    *Event
		wantType string
		wantData map[string]any
	}{
		{
			name:     "formulation ready",
			event:    FormulationReady("neg_1", "raw", "enriched", map[string]any{"context_added": []string{"budget"}}),
			wantType: TypeFormulationReady,
			wantData: map[string]any{
				"raw_intent":      "raw",
				"formulated_text": "enriched",
			},
		},
		{
			name:     "barrier complete",
			event:    BarrierComplete("neg_1", 3, 2, 1),
			wantType: TypeBarrierComplete,
			wantData: map[string]any{
				"total_participants": 3,
				"offers_received":    2,
				"exited_count":       1,
			},
		},
		{
			name:     "center tool call",
			event:    CenterToolCall("neg_1", "ask_agent", map[string]any{"agent_id": "a"}, 2),
			wantType: TypeCenterToolCall,
			wantData: map[string]any{
				"tool_name":    "ask_agent",
				"round_number": 2,
			},
		},
		{
			name:     "plan ready",
			event:    PlanReady("neg_1", "the plan", 1, []string{"a", "b"}),
			wantType: TypePlanReady,
			wantData: map[string]any{
				"plan_text":     "the plan",
				"center_rounds": 1,
			},
		},
		{
			name:     "sub negotiation started",
			event:    SubNegotiationStarted("neg_1", "sub_2", "missing sponsor"),
			wantType: TypeSubNegotiationStarted,
			wantData: map[string]any{
				"sub_negotiation_id": "sub_2",
				"gap_description":    "missing sponsor",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.event.EventType)
			assert.Equal(t, "neg_1", tt.event.NegotiationID)
			assert.True(t, strings.HasPrefix(tt.event.EventID, "evt_"))
			assert.False(t, tt.event.Timestamp.IsZero())
			for k, v := range tt.wantData {
				assert.Equal(t, v, tt.event.Data[k], "data key %s", k)
			}
		})
	}
}

func TestConstructors_NilSlicesBecomeEmpty(t *testing.T) {
	ev := OfferReceived("neg_1", "a", "Agent A", "content", nil)
	assert.Equal(t, []string{}, ev.Data["capabilities"])

	ev = ResonanceActivated("neg_1", nil)
	assert.Equal(t, 0, ev.Data["activated_count"])

	ev = PlanReady("neg_1", "plan", 1, nil)
	assert.Equal(t, []string{}, ev.Data["participating_agents"])
}

func TestEvent_JSONShape(t *testing.T) {
	ev := OfferReceived("neg_1", "a", "Agent A", "I can help", []string{"catering"})

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "offer.received", decoded["event_type"])
	assert.Equal(t, "neg_1", decoded["negotiation_id"])
	assert.Contains(t, decoded, "timestamp")
	assert.Contains(t, decoded, "event_id")
	assert.Contains(t, decoded, "data")
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	ctx := context.Background()

	require.NoError(t, rec.Push(ctx, BarrierComplete("neg_1", 1, 1, 0)))
	require.NoError(t, rec.PushMany(ctx, []*Event{
		PlanReady("neg_1", "plan", 1, nil),
		PlanReady("neg_2", "plan", 1, nil),
	}))

	assert.Len(t, rec.Events(), 3)
	assert.Len(t, rec.OfType(TypePlanReady), 2)
	assert.Empty(t, rec.OfType(TypeOfferReceived))
}

func TestRecorder_ConcurrentPush(t *testing.T) {
	rec := NewRecorder()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = rec.Push(ctx, OfferReceived("neg_1", "a", "A", "x", nil))
		}()
	}
	wg.Wait()

	assert.Len(t, rec.Events(), 20)
}

type failingPusher struct{ err error }

func (f failingPusher) Push(ctx context.Context, event *Event) error { return f.err }
func (f failingPusher) PushMany(ctx context.Context, events []*Event) error {
	return f.err
}

func TestMultiPusher_CollectsFirstErrorButTriesAll(t *testing.T) {
	rec := NewRecorder()
	boom := errors.New("boom")
	multi := NewMultiPusher(failingPusher{err: boom}, rec)

	err := multi.Push(context.Background(), BarrierComplete("neg_1", 0, 0, 0))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, rec.Events(), 1)
}
