package resonance

import (
	"context"
	"crypto/md5"
	"fmt"
	"strings"
)

// HashEncoder is a deterministic, offline encoder: the vector is derived
// from an MD5 digest of the text. Same text, same vector, no network. Meant
// for tests and local runs without an embeddings provider; the geometry is
// meaningless beyond equality.
type HashEncoder struct {
	dimension int
}

// NewHashEncoder creates a HashEncoder. A dimension <= 0 selects 768.
func NewHashEncoder(dimension int) *HashEncoder {
	if dimension <= 0 {
		dimension = 768
	}
	return &HashEncoder{dimension: dimension}
}

// Encode implements Encoder.
func (e *HashEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &EncodingError{Msg: "cannot encode empty text"}
	}

	vec := make([]float32, e.dimension)

	digest := md5.Sum([]byte(text))
	for i, b := range digest {
		idx := (i * 32) % e.dimension
		vec[idx] = float32(b) / 255.0
	}

	for i := range vec {
		if vec[i] == 0 {
			d := md5.Sum([]byte(fmt.Sprintf("%s_%d", text, i)))
			vec[i] = float32(d[0]) / 255.0
		}
	}

	normalize(vec)
	return vec, nil
}

// EncodeBatch implements Encoder.
func (e *HashEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, &EncodingError{Msg: fmt.Sprintf("cannot encode empty text at index %d", i)}
		}
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Encode(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// normalize scales v to unit length in place. Near-zero vectors are left
// untouched.
func normalize(v []float32) {
	n := norm(v)
	if n < normThreshold {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
}
