package resonance

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineDetector_Detect(t *testing.T) {
	detector := CosineDetector{}
	ctx := context.Background()

	demand := []float32{1, 0, 0}
	agents := []AgentVector{
		{AgentID: "orthogonal", Vector: []float32{0, 1, 0}},
		{AgentID: "aligned", Vector: []float32{2, 0, 0}},
		{AgentID: "opposite", Vector: []float32{-1, 0, 0}},
		{AgentID: "diagonal", Vector: []float32{1, 1, 0}},
	}

	matches, err := detector.Detect(ctx, demand, agents, 10)
	require.NoError(t, err)
	require.Len(t, matches, 4)

	assert.Equal(t, "aligned", matches[0].AgentID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	assert.Equal(t, "diagonal", matches[1].AgentID)
	assert.InDelta(t, 1/math.Sqrt2, matches[1].Score, 1e-9)
	assert.Equal(t, "orthogonal", matches[2].AgentID)
	assert.InDelta(t, 0.0, matches[2].Score, 1e-9)
	assert.Equal(t, "opposite", matches[3].AgentID)
	assert.InDelta(t, -1.0, matches[3].Score, 1e-9)
}

func TestCosineDetector_TruncatesToKStar(t *testing.T) {
	detector := CosineDetector{}

	agents := []AgentVector{
		{AgentID: "a", Vector: []float32{1, 0}},
		{AgentID: "b", Vector: []float32{0.9, 0.1}},
		{AgentID: "c", Vector: []float32{0, 1}},
	}

	matches, err := detector.Detect(context.Background(), []float32{1, 0}, agents, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].AgentID)
	assert.Equal(t, "b", matches[1].AgentID)
}

func TestCosineDetector_EmptyResults(t *testing.T) {
	detector := CosineDetector{}
	ctx := context.Background()
	agents := []AgentVector{{AgentID: "a", Vector: []float32{1, 0}}}

	tests := []struct {
		name   string
		demand []float32
		agents []AgentVector
		kStar  int
	}{
		{name: "k_star zero", demand: []float32{1, 0}, agents: agents, kStar: 0},
		{name: "k_star negative", demand: []float32{1, 0}, agents: agents, kStar: -1},
		{name: "no agents", demand: []float32{1, 0}, agents: nil, kStar: 5},
		{name: "zero demand vector", demand: []float32{0, 0}, agents: agents, kStar: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := detector.Detect(ctx, tt.demand, tt.agents, tt.kStar)
			require.NoError(t, err)
			assert.Empty(t, matches)
		})
	}
}

func TestCosineDetector_ZeroNormAgentScoresZero(t *testing.T) {
	detector := CosineDetector{}

	matches, err := detector.Detect(context.Background(), []float32{1, 0}, []AgentVector{
		{AgentID: "zero", Vector: []float32{0, 0}},
		{AgentID: "real", Vector: []float32{1, 0}},
	}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "real", matches[0].AgentID)
	assert.Equal(t, "zero", matches[1].AgentID)
	assert.Equal(t, 0.0, matches[1].Score)
}

func TestCosineDetector_StableTieBreak(t *testing.T) {
	detector := CosineDetector{}

	// Identical vectors produce identical scores; input order must hold.
	agents := []AgentVector{
		{AgentID: "first", Vector: []float32{1, 1}},
		{AgentID: "second", Vector: []float32{1, 1}},
		{AgentID: "third", Vector: []float32{1, 1}},
	}

	matches, err := detector.Detect(context.Background(), []float32{1, 1}, agents, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "first", matches[0].AgentID)
	assert.Equal(t, "second", matches[1].AgentID)
	assert.Equal(t, "third", matches[2].AgentID)
}

func TestHashEncoder_Deterministic(t *testing.T) {
	enc := NewHashEncoder(0)
	ctx := context.Background()

	v1, err := enc.Encode(ctx, "find me a venue")
	require.NoError(t, err)
	v2, err := enc.Encode(ctx, "find me a venue")
	require.NoError(t, err)
	v3, err := enc.Encode(ctx, "something else")
	require.NoError(t, err)

	assert.Len(t, v1, 768)
	assert.Equal(t, v1, v2)
	assert.NotEqual(t, v1, v3)
}

func TestHashEncoder_UnitNorm(t *testing.T) {
	enc := NewHashEncoder(64)

	vec, err := enc.Encode(context.Background(), "hello")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, norm(vec), 1e-6)
}

func TestHashEncoder_RejectsEmptyText(t *testing.T) {
	enc := NewHashEncoder(0)
	ctx := context.Background()

	var encErr *EncodingError

	_, err := enc.Encode(ctx, "")
	require.ErrorAs(t, err, &encErr)

	_, err = enc.Encode(ctx, "   \n\t")
	require.ErrorAs(t, err, &encErr)

	_, err = enc.EncodeBatch(ctx, []string{"fine", " "})
	require.ErrorAs(t, err, &encErr)
}

func TestHashEncoder_EncodeBatch(t *testing.T) {
	enc := NewHashEncoder(32)
	ctx := context.Background()

	out, err := enc.EncodeBatch(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.NotEqual(t, out[0], out[1])

	out, err = enc.EncodeBatch(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}
