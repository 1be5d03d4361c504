package httpserver

import (
	"github.com/bytedance/sonic"

	"github.com/grafbase/nexus/internal/llmrouter"
)

// The client-facing Anthropic Messages wire shape, mirroring
// internal/llmrouter/anthropic's provider-side types for the same reason
// wire_openai.go keeps its own copy: this is the inbound boundary, not the
// outbound-to-provider one.
type anthropicMessagesRequest struct {
	Model         string              `json:"model"`
	System        string              `json:"system,omitempty"`
	Messages      []anthropicMessage  `json:"messages"`
	MaxTokens     int64               `json:"max_tokens"`
	Temperature   *float64            `json:"temperature,omitempty"`
	TopP          *float64            `json:"top_p,omitempty"`
	StopSequences []string            `json:"stop_sequences,omitempty"`
	Stream        bool                `json:"stream,omitempty"`
	Tools         []anthropicTool     `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

type anthropicMessagesResponse struct {
	ID         string           `json:"id"`
	Type       string           `json:"type"`
	Role       string           `json:"role"`
	Model      string           `json:"model"`
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      anthropicUsage   `json:"usage"`
}

type anthropicUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

func anthropicRequestToUnified(req *anthropicMessagesRequest) *llmrouter.Request {
	out := &llmrouter.Request{
		Model:       req.Model,
		System:      req.System,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.StopSequences,
		Stream:      req.Stream,
		MaxTokens:   &req.MaxTokens,
	}
	for _, m := range req.Messages {
		msg := llmrouter.Message{Role: llmrouter.Role(m.Role)}
		for _, b := range m.Content {
			switch b.Type {
			case "text":
				msg.Content = append(msg.Content, llmrouter.ContentPart{Type: "text", Text: b.Text})
			case "tool_use":
				argsJSON, _ := sonic.MarshalString(b.Input)
				msg.ToolCalls = append(msg.ToolCalls, llmrouter.ToolCall{ID: b.ID, Name: b.Name, Arguments: argsJSON})
			case "tool_result":
				msg.Role = llmrouter.RoleTool
				msg.ToolCallID = b.ToolUseID
				msg.Content = append(msg.Content, llmrouter.ContentPart{Type: "text", Text: b.Content})
			}
		}
		out.Messages = append(out.Messages, msg)
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, llmrouter.ToolDefinition{Name: t.Name, Description: t.Description, Parameters: t.InputSchema})
	}
	return out
}

func unifiedResponseToAnthropic(resp *llmrouter.Response) *anthropicMessagesResponse {
	var blocks []anthropicBlock
	for _, p := range resp.Message.Content {
		if p.Type == "text" {
			blocks = append(blocks, anthropicBlock{Type: "text", Text: p.Text})
		}
	}
	for _, tc := range resp.Message.ToolCalls {
		var input map[string]any
		_ = sonic.UnmarshalString(tc.Arguments, &input)
		blocks = append(blocks, anthropicBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: input})
	}
	return &anthropicMessagesResponse{
		ID:         resp.ID,
		Type:       "message",
		Role:       "assistant",
		Model:      resp.Model,
		Content:    blocks,
		StopReason: anthropicStopReason(resp.FinishReason),
		Usage:      anthropicUsage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens},
	}
}

func anthropicStopReason(fr llmrouter.FinishReason) string {
	switch fr {
	case llmrouter.FinishLength:
		return "max_tokens"
	case llmrouter.FinishToolCalls:
		return "tool_use"
	case llmrouter.FinishContentFilter:
		return "stop_sequence"
	default:
		return "end_turn"
	}
}

// anthropicSSEEvent is one outbound event/data pair. It carries the
// event type name and the marshaled payload; the caller writes both lines.
type anthropicSSEEvent struct {
	Event string
	Data  any
}

// anthropicChunksFromUnified maps one unified Chunk onto the Anthropic
// streaming envelope's sequence of typed events. A chunk's text emits one
// content_block_delta and each of its tool calls one more; a chunk with only
// a role emits nothing; the terminal chunk also emits message_delta followed
// by message_stop, the
// mirror image of anthropic.translateEvent on the provider side.
func anthropicChunksFromUnified(id, model string, c llmrouter.Chunk) []anthropicSSEEvent {
	var events []anthropicSSEEvent

	if text := c.Delta.Text(); text != "" {
		events = append(events, anthropicSSEEvent{Event: "content_block_delta", Data: map[string]any{
			"type":  "content_block_delta",
			"index": 0,
			"delta": map[string]any{"type": "text_delta", "text": text},
		}})
	}
	for _, tc := range c.Delta.ToolCalls {
		events = append(events, anthropicSSEEvent{Event: "content_block_delta", Data: map[string]any{
			"type":  "content_block_delta",
			"index": 0,
			"delta": map[string]any{"type": "input_json_delta", "partial_json": tc.Arguments},
		}})
	}

	if c.IsTerminal() {
		usage := anthropicUsage{}
		if c.Usage != nil {
			usage = anthropicUsage{InputTokens: c.Usage.InputTokens, OutputTokens: c.Usage.OutputTokens}
		}
		events = append(events, anthropicSSEEvent{Event: "message_delta", Data: map[string]any{
			"type":  "message_delta",
			"delta": map[string]any{"stop_reason": anthropicStopReason(c.FinishReason)},
			"usage": usage,
		}})
		events = append(events, anthropicSSEEvent{Event: "message_stop", Data: map[string]any{"type": "message_stop"}})
	}

	return events
}
