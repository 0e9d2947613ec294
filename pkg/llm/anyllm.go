package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anyllm "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"
)

// AnyLLMClient implements Client on top of any-llm-go, so the negotiation
// platform can run against OpenAI, Anthropic, Gemini, Ollama and friends
// with one code path.
type AnyLLMClient struct {
	backend anyllm.Provider
	model   string
}

// NewAnyLLMClient creates a client for the named provider. providerName is
// one of: openai, anthropic, gemini, ollama, deepseek, mistral, groq.
// Without an explicit API key option, the provider reads its usual
// environment variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...).
func NewAnyLLMClient(providerName, model string, opts ...anyllm.Option) (*AnyLLMClient, error) {
	if providerName == "" {
		return nil, fmt.Errorf("llm: provider name must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("llm: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: create %q backend: %w", providerName, err)
	}
	return &AnyLLMClient{backend: backend, model: model}, nil
}

func createBackend(providerName string, opts ...anyllm.Option) (anyllm.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q", providerName)
	}
}

// Chat implements Client.
func (c *AnyLLMClient) Chat(ctx context.Context, req *Request) (*Response, error) {
	params := c.buildParams(req)

	resp, err := c.backend.Completion(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("llm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm: empty choices in response")
	}

	choice := resp.Choices[0]
	out := &Response{
		Content:    choice.Message.ContentString(),
		StopReason: choice.FinishReason,
	}

	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if raw := tc.Function.Arguments; raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("llm: decode arguments of tool %q: %w", tc.Function.Name, err)
			}
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return out, nil
}

func (c *AnyLLMClient) buildParams(req *Request) anyllm.CompletionParams {
	var messages []anyllm.Message

	if req.SystemPrompt != "" {
		messages = append(messages, anyllm.Message{
			Role:    anyllm.RoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, anyllm.Message{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	params := anyllm.CompletionParams{
		Model:    c.model,
		Messages: messages,
	}

	for _, td := range req.Tools {
		params.Tools = append(params.Tools, anyllm.Tool{
			Type: "function",
			Function: anyllm.Function{
				Name:        td.Name,
				Description: td.Description,
				Parameters:  td.InputSchema,
			},
		})
	}
	return params
}
