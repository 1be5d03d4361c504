package anthropic

import (
	"github.com/grafbase/nexus/internal/llmrouter"
)

const defaultMaxTokens = 4096

// toWireRequest extracts any system-role message into the top-level
// `system` field (Anthropic has no system role in `messages`) and maps
// tool_result messages, which Anthropic represents as user-role content
// blocks rather than a distinct tool role.
func toWireRequest(req *llmrouter.Request) *wireRequest {
	out := &wireRequest{
		Model:         req.Model,
		System:        req.System,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		StopSequences: req.Stop,
		Stream:        req.Stream,
		MaxTokens:     defaultMaxTokens,
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}

	for _, m := range req.Messages {
		switch m.Role {
		case llmrouter.RoleSystem:
			if out.System == "" {
				out.System = m.Text()
			}
		case llmrouter.RoleTool:
			out.Messages = append(out.Messages, wireMessage{
				Role: "user",
				Content: []wireBlock{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Text(),
				}},
			})
		default:
			out.Messages = append(out.Messages, toWireMessage(m))
		}
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, wireTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}

	if req.ToolChoice != nil {
		switch req.ToolChoice.Mode {
		case "function":
			out.ToolChoice = map[string]any{"type": "tool", "name": req.ToolChoice.Function}
		case "required":
			out.ToolChoice = map[string]any{"type": "any"}
		case "none":
			out.ToolChoice = map[string]any{"type": "none"}
		default:
			out.ToolChoice = map[string]any{"type": "auto"}
		}
	}

	return out
}

func toWireMessage(m llmrouter.Message) wireMessage {
	role := string(m.Role)
	if role != "user" && role != "assistant" {
		role = "assistant"
	}
	wm := wireMessage{Role: role}
	if text := m.Text(); text != "" {
		wm.Content = append(wm.Content, wireBlock{Type: "text", Text: text})
	}
	for _, tc := range m.ToolCalls {
		wm.Content = append(wm.Content, wireBlock{
			Type:  "tool_use",
			ID:    tc.ID,
			Name:  tc.Name,
			Input: jsonToMap(tc.Arguments),
		})
	}
	return wm
}

func fromWireFinishReason(sr string) llmrouter.FinishReason {
	switch sr {
	case "max_tokens":
		return llmrouter.FinishLength
	case "tool_use":
		return llmrouter.FinishToolCalls
	case "end_turn", "stop_sequence", "":
		return llmrouter.FinishStop
	default:
		return llmrouter.FinishStop
	}
}

func fromWireResponse(wr *wireResponse) *llmrouter.Response {
	msg := llmrouter.Message{Role: llmrouter.RoleAssistant}
	for _, b := range wr.Content {
		switch b.Type {
		case "text":
			msg.Content = append(msg.Content, llmrouter.ContentPart{Type: "text", Text: b.Text})
		case "tool_use":
			msg.ToolCalls = append(msg.ToolCalls, llmrouter.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: mapToJSON(b.Input),
			})
		}
	}
	return &llmrouter.Response{
		ID:           wr.ID,
		Model:        wr.Model,
		Message:      msg,
		FinishReason: fromWireFinishReason(wr.StopReason),
		Usage:        llmrouter.Usage{InputTokens: wr.Usage.InputTokens, OutputTokens: wr.Usage.OutputTokens},
	}
}
