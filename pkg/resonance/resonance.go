// Package resonance matches demands to agents in embedding space.
//
// An Encoder turns text into a vector; a Detector ranks candidate agents by
// similarity to the demand vector and keeps the top k_star.
package resonance

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// EncodingError indicates that text could not be turned into a vector.
// It is fatal to the negotiation that required the encoding.
type EncodingError struct {
	Msg string
	Err error
}

func (e *EncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("encoding: %s: %v", e.Msg, e.Err)
	}
	return "encoding: " + e.Msg
}

func (e *EncodingError) Unwrap() error { return e.Err }

// Encoder converts text into embedding vectors. Implementations must reject
// empty or whitespace-only input with an EncodingError.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// AgentVector pairs an agent ID with its profile embedding. Detectors see
// candidates as an ordered slice so equal scores keep their input order.
type AgentVector struct {
	AgentID string
	Vector  []float32
}

// Match is one ranked detection result.
type Match struct {
	AgentID string
	Score   float64
}

// Detector selects up to kStar agents whose vectors resonate with the
// demand vector, ranked by descending score.
type Detector interface {
	Detect(ctx context.Context, demand []float32, agents []AgentVector, kStar int) ([]Match, error)
}

// normThreshold guards against division by near-zero vector norms.
const normThreshold = 1e-10

// CosineDetector ranks agents by cosine similarity, in memory.
type CosineDetector struct{}

// Detect implements Detector. A kStar <= 0, an empty candidate set, or a
// near-zero demand vector all yield an empty result. Candidates with a
// near-zero norm score 0 rather than erroring; the sort is stable so tied
// scores keep candidate order.
func (CosineDetector) Detect(ctx context.Context, demand []float32, agents []AgentVector, kStar int) ([]Match, error) {
	if kStar <= 0 || len(agents) == 0 {
		return nil, nil
	}

	demandNorm := norm(demand)
	if demandNorm < normThreshold {
		return nil, nil
	}

	matches := make([]Match, 0, len(agents))
	for _, agent := range agents {
		agentNorm := norm(agent.Vector)
		if agentNorm < normThreshold {
			matches = append(matches, Match{AgentID: agent.AgentID, Score: 0})
			continue
		}
		matches = append(matches, Match{
			AgentID: agent.AgentID,
			Score:   dot(demand, agent.Vector) / (demandNorm * agentNorm),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > kStar {
		matches = matches[:kStar]
	}
	return matches, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
