package httpserver

import (
	"github.com/grafbase/nexus/internal/llmrouter"
)

// The client-facing OpenAI Chat Completions wire shape. Kept separate from
// internal/llmrouter/openai's provider-side wire types even though the
// schema is the same protocol, since this is a distinct system boundary
// (inbound from arbitrary OpenAI-compatible callers, not outbound to a
// configured provider) and the two sides evolve independently.
type openAIChatRequest struct {
	Model       string             `json:"model"`
	Messages    []openAIMessage    `json:"messages"`
	Tools       []openAITool       `json:"tools,omitempty"`
	ToolChoice  any                `json:"tool_choice,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
	MaxTokens   *int64             `json:"max_tokens,omitempty"`
	Stop        []string           `json:"stop,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type openAIMessage struct {
	Role       string             `json:"role"`
	Content    string             `json:"content,omitempty"`
	Name       string             `json:"name,omitempty"`
	ToolCalls  []openAIToolCall   `json:"tool_calls,omitempty"`
	ToolCallID string             `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIToolCallFunc `json:"function"`
}

type openAIToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type openAIChatResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Model   string             `json:"model"`
	Choices []openAIChoice     `json:"choices"`
	Usage   openAIUsage        `json:"usage"`
}

type openAIChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

type openAIChatChunk struct {
	ID      string                `json:"id"`
	Object  string                `json:"object"`
	Model   string                `json:"model"`
	Choices []openAIChunkChoice   `json:"choices"`
	Usage   *openAIUsage          `json:"usage,omitempty"`
}

type openAIChunkChoice struct {
	Index        int                `json:"index"`
	Delta        openAIChunkDelta   `json:"delta"`
	FinishReason *string            `json:"finish_reason"`
}

type openAIChunkDelta struct {
	Role      string           `json:"role,omitempty"`
	Content   string           `json:"content,omitempty"`
	ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAIModelList struct {
	Object string          `json:"object"`
	Data   []openAIModelObj `json:"data"`
}

type openAIModelObj struct {
	ID     string `json:"id"`
	Object string `json:"object"`
}

func openAIRequestToUnified(req *openAIChatRequest) *llmrouter.Request {
	out := &llmrouter.Request{
		Model:       req.Model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Stop:        req.Stop,
		Stream:      req.Stream,
	}
	for _, m := range req.Messages {
		msg := llmrouter.Message{
			Role:       llmrouter.Role(m.Role),
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		if m.Content != "" {
			msg.Content = []llmrouter.ContentPart{{Type: "text", Text: m.Content}}
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, llmrouter.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
		}
		out.Messages = append(out.Messages, msg)
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, llmrouter.ToolDefinition{Name: t.Function.Name, Description: t.Function.Description, Parameters: t.Function.Parameters})
	}
	return out
}

func unifiedResponseToOpenAI(resp *llmrouter.Response) *openAIChatResponse {
	msg := openAIMessage{Role: string(resp.Message.Role), Content: resp.Message.Text()}
	for _, tc := range resp.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, openAIToolCall{ID: tc.ID, Type: "function", Function: openAIToolCallFunc{Name: tc.Name, Arguments: tc.Arguments}})
	}
	return &openAIChatResponse{
		ID:      resp.ID,
		Object:  "chat.completion",
		Model:   resp.Model,
		Choices: []openAIChoice{{Message: msg, FinishReason: string(resp.FinishReason)}},
		Usage: openAIUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
}

func unifiedChunkToOpenAI(c llmrouter.Chunk) *openAIChatChunk {
	delta := openAIChunkDelta{Role: string(c.Delta.Role), Content: c.Delta.Text()}
	for _, tc := range c.Delta.ToolCalls {
		delta.ToolCalls = append(delta.ToolCalls, openAIToolCall{ID: tc.ID, Type: "function", Function: openAIToolCallFunc{Name: tc.Name, Arguments: tc.Arguments}})
	}
	var finish *string
	if c.FinishReason != "" {
		s := string(c.FinishReason)
		finish = &s
	}
	chunk := &openAIChatChunk{
		ID:      c.ID,
		Object:  "chat.completion.chunk",
		Model:   c.Model,
		Choices: []openAIChunkChoice{{Delta: delta, FinishReason: finish}},
	}
	if c.Usage != nil {
		chunk.Usage = &openAIUsage{PromptTokens: c.Usage.InputTokens, CompletionTokens: c.Usage.OutputTokens, TotalTokens: c.Usage.InputTokens + c.Usage.OutputTokens}
	}
	return chunk
}
