// Package llmrouter resolves a caller's requested model to a provider,
// translates between the OpenAI/Anthropic wire formats and Nexus's unified
// request/response shape, and dispatches the call.
package llmrouter

import "net/http"

// Role mirrors the small set of chat roles every provider's wire format
// agrees on.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// FinishReason is the unified terminal-state vocabulary; provider adapters
// map their own enums onto this one and back.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishContentFilter FinishReason = "content_filter"
)

// ContentPart is one piece of a message's content. Only Type-appropriate
// fields are populated.
type ContentPart struct {
	Type     string `json:"type"` // "text" | "image_url"
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// ToolCall is a single function invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON object, provider-agnostic
}

// Message is one turn of the unified conversation. A message carries either
// Content or ToolCalls (assistant turns proposing calls) or is a ToolCallID-
// tagged tool result.
type Message struct {
	Role       Role          `json:"role"`
	Content    []ContentPart `json:"content,omitempty"`
	Name       string        `json:"name,omitempty"`
	ToolCalls  []ToolCall    `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

// Text concatenates every text content part, the common case of a plain
// string message.
func (m Message) Text() string {
	var out string
	for _, p := range m.Content {
		if p.Type == "text" {
			out += p.Text
		}
	}
	return out
}

// ToolDefinition is a function the model may call, in JSON-schema form.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolChoice controls whether/which tool the model must call. Mode is one
// of "auto", "none", "required", "function"; Function is set only for the
// latter.
type ToolChoice struct {
	Mode     string `json:"mode"`
	Function string `json:"function,omitempty"`
}

// Request is the unified shape every wire-format request is translated
// into before dispatch, and every provider adapter translates back out of.
type Request struct {
	Model       string          `json:"model"`
	Messages    []Message       `json:"messages"`
	System      string          `json:"system,omitempty"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	ToolChoice  *ToolChoice     `json:"tool_choice,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	MaxTokens   *int64          `json:"max_tokens,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`

	// ExtraHeaders carries the result of applying header-transform rules
	// to the inbound HTTP request; provider clients add these on top of
	// their own auth headers before sending the upstream request. Never
	// serialized into the provider's wire body.
	ExtraHeaders http.Header `json:"-"`

	// ForwardedKey is the caller-supplied credential for providers
	// configured with forward_token; when non-empty, provider clients use
	// this instead of their statically configured API key. Never
	// serialized into the provider's wire body.
	ForwardedKey string `json:"-"`
}

// Usage carries token accounting, faithfully forwarded from whichever
// provider reported it.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Response is a complete, non-streaming unified reply.
type Response struct {
	ID           string       `json:"id"`
	Model        string       `json:"model"`
	Message      Message      `json:"message"`
	FinishReason FinishReason `json:"finish_reason"`
	Usage        Usage        `json:"usage"`
}

// Chunk is one increment of a streaming reply. Delta carries only the new
// content since the previous chunk. FinishReason and Usage are zero-valued
// until the terminal chunk, which always carries both — the adapter's
// streaming contract guarantees this even when the upstream closes early.
type Chunk struct {
	ID           string       `json:"id"`
	Model        string       `json:"model"`
	Delta        Message      `json:"delta"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
	Usage        *Usage       `json:"usage,omitempty"`
}

// IsTerminal reports whether this chunk carries a finish reason, i.e. is
// the last chunk of the stream.
func (c Chunk) IsTerminal() bool { return c.FinishReason != "" }
