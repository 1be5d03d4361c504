// Package anthropic implements the Anthropic Messages wire protocol,
// translating to and from llmrouter's unified request/response shape.
package anthropic

type wireRequest struct {
	Model      string        `json:"model"`
	System     string        `json:"system,omitempty"`
	Messages   []wireMessage `json:"messages"`
	MaxTokens  int64         `json:"max_tokens"`
	Temperature *float64     `json:"temperature,omitempty"`
	TopP        *float64     `json:"top_p,omitempty"`
	StopSequences []string   `json:"stop_sequences,omitempty"`
	Stream      bool         `json:"stream,omitempty"`
	Tools       []wireTool   `json:"tools,omitempty"`
	ToolChoice  any          `json:"tool_choice,omitempty"`
}

type wireMessage struct {
	Role    string       `json:"role"` // "user" | "assistant"
	Content []wireBlock  `json:"content"`
}

type wireBlock struct {
	Type      string         `json:"type"` // "text" | "tool_use" | "tool_result"
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

type wireTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

type wireResponse struct {
	ID         string      `json:"id"`
	Model      string      `json:"model"`
	Content    []wireBlock `json:"content"`
	StopReason string      `json:"stop_reason"`
	Usage      wireUsage   `json:"usage"`
	Error      *wireError  `json:"error,omitempty"`
}

type wireUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type wireError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// wireEvent is the envelope for every SSE `data:` line; only the fields
// relevant to the event's Type are populated.
type wireEvent struct {
	Type         string      `json:"type"`
	Message      *wireResponse `json:"message,omitempty"`
	Index        int         `json:"index"`
	ContentBlock *wireBlock  `json:"content_block,omitempty"`
	Delta        *wireDelta  `json:"delta,omitempty"`
	Usage        *wireUsage  `json:"usage,omitempty"`
}

type wireDelta struct {
	Type        string `json:"type"` // "text_delta" | "input_json_delta"
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}
