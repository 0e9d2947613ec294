// Package llm defines the platform LLM client used by skills, plus an
// implementation backed by github.com/mozilla-ai/any-llm-go.
package llm

import "context"

// Message is one turn of a conversation sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolDefinition describes a tool offered to the model for a request.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolCall is one tool invocation requested by the model, with its
// arguments already decoded from the provider's JSON payload.
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Request carries one chat completion request.
type Request struct {
	Messages     []Message
	SystemPrompt string
	Tools        []ToolDefinition
}

// Response is the model's reply. Content may be empty when the model
// answers exclusively with tool calls.
type Response struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason string
}

// Client is the platform LLM interface the Center and text-only skills
// talk to. Implementations must be safe for concurrent use.
type Client interface {
	Chat(ctx context.Context, req *Request) (*Response, error)
}

// ChatFunc adapts a function to the Client interface. Tests script model
// behavior with it.
type ChatFunc func(ctx context.Context, req *Request) (*Response, error)

func (f ChatFunc) Chat(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
