package openai

import (
	"github.com/grafbase/nexus/internal/llmrouter"
)

func toWireRequest(req *llmrouter.Request) *wireRequest {
	out := &wireRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Stop:        req.Stop,
		Stream:      req.Stream,
	}
	if req.Stream {
		out.StreamOptions = &wireStreamOptions{IncludeUsage: true}
	}

	if req.System != "" {
		out.Messages = append(out.Messages, wireMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, toWireMessage(m))
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, wireTool{
			Type: "function",
			Function: wireFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	if req.ToolChoice != nil {
		switch req.ToolChoice.Mode {
		case "function":
			out.ToolChoice = map[string]any{"type": "function", "function": map[string]string{"name": req.ToolChoice.Function}}
		default:
			out.ToolChoice = req.ToolChoice.Mode
		}
	}

	return out
}

func toWireMessage(m llmrouter.Message) wireMessage {
	wm := wireMessage{
		Role:       string(m.Role),
		Content:    m.Text(),
		Name:       m.Name,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: wireToolCallFunc{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return wm
}

func fromWireMessage(wm wireMessage) llmrouter.Message {
	m := llmrouter.Message{
		Role:       llmrouter.Role(wm.Role),
		Name:       wm.Name,
		ToolCallID: wm.ToolCallID,
	}
	if wm.Content != "" {
		m.Content = []llmrouter.ContentPart{{Type: "text", Text: wm.Content}}
	}
	for _, tc := range wm.ToolCalls {
		m.ToolCalls = append(m.ToolCalls, llmrouter.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return m
}

func fromWireFinishReason(fr string) llmrouter.FinishReason {
	switch fr {
	case "length":
		return llmrouter.FinishLength
	case "tool_calls", "function_call":
		return llmrouter.FinishToolCalls
	case "content_filter":
		return llmrouter.FinishContentFilter
	case "stop", "":
		return llmrouter.FinishStop
	default:
		return llmrouter.FinishStop
	}
}

func fromWireResponse(wr *wireResponse) *llmrouter.Response {
	out := &llmrouter.Response{
		ID:           wr.ID,
		Model:        wr.Model,
		FinishReason: llmrouter.FinishStop,
	}
	if len(wr.Choices) > 0 {
		c := wr.Choices[0]
		out.Message = fromWireMessage(c.Message)
		out.FinishReason = fromWireFinishReason(c.FinishReason)
	}
	if wr.Usage != nil {
		out.Usage = llmrouter.Usage{InputTokens: wr.Usage.PromptTokens, OutputTokens: wr.Usage.CompletionTokens}
	}
	return out
}

func fromWireChunk(wc *wireChunk) llmrouter.Chunk {
	out := llmrouter.Chunk{ID: wc.ID, Model: wc.Model}
	if len(wc.Choices) > 0 {
		c := wc.Choices[0]
		delta := llmrouter.Message{Role: llmrouter.Role(c.Delta.Role)}
		if c.Delta.Content != "" {
			delta.Content = []llmrouter.ContentPart{{Type: "text", Text: c.Delta.Content}}
		}
		for _, tc := range c.Delta.ToolCalls {
			delta.ToolCalls = append(delta.ToolCalls, llmrouter.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		out.Delta = delta
		if c.FinishReason != "" {
			out.FinishReason = fromWireFinishReason(c.FinishReason)
		}
	}
	if wc.Usage != nil {
		out.Usage = &llmrouter.Usage{InputTokens: wc.Usage.PromptTokens, OutputTokens: wc.Usage.CompletionTokens}
	}
	return out
}
