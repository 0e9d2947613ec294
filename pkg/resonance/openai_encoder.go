package resonance

import (
	"context"
	"strconv"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

// DefaultEmbeddingModel is used when no model is configured.
const DefaultEmbeddingModel = oai.EmbeddingModelTextEmbedding3Small

// OpenAIEncoder implements Encoder on the OpenAI embeddings API.
type OpenAIEncoder struct {
	client oai.Client
	model  string
}

// NewOpenAIEncoder constructs an OpenAIEncoder. An empty model selects
// DefaultEmbeddingModel; an empty baseURL keeps the API default (set it to
// point at an OpenAI-compatible gateway).
func NewOpenAIEncoder(apiKey, model, baseURL string) (*OpenAIEncoder, error) {
	if apiKey == "" {
		return nil, &EncodingError{Msg: "openai encoder: api key must not be empty"}
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}

	return &OpenAIEncoder{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Encode implements Encoder.
func (e *OpenAIEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &EncodingError{Msg: "cannot encode empty text"}
	}

	resp, err := e.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: e.model,
		Input: oai.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(text),
		},
	})
	if err != nil {
		return nil, &EncodingError{Msg: "embed request failed", Err: err}
	}
	if len(resp.Data) == 0 {
		return nil, &EncodingError{Msg: "empty embeddings response"}
	}

	vec := float64ToFloat32(resp.Data[0].Embedding)
	normalize(vec)
	return vec, nil
}

// EncodeBatch implements Encoder.
func (e *OpenAIEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, &EncodingError{Msg: "cannot encode empty text at index " + strconv.Itoa(i)}
		}
	}

	resp, err := e.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: e.model,
		Input: oai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	})
	if err != nil {
		return nil, &EncodingError{Msg: "embed batch request failed", Err: err}
	}
	if len(resp.Data) != len(texts) {
		return nil, &EncodingError{Msg: "embeddings response size mismatch"}
	}

	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if int(item.Index) >= len(texts) {
			return nil, &EncodingError{Msg: "embeddings response index out of range"}
		}
		vec := float64ToFloat32(item.Embedding)
		normalize(vec)
		out[item.Index] = vec
	}
	return out, nil
}

func float64ToFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
