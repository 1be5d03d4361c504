package google

import (
	"strings"

	"github.com/bytedance/sonic"

	"github.com/grafbase/nexus/internal/llmrouter"
)

// toWireRequest maps the unified assistant/user roles onto Gemini's
// "model"/"user" vocabulary and lifts any system content into
// systemInstruction, per the specification's Google translation rule.
func toWireRequest(req *llmrouter.Request) *wireRequest {
	out := &wireRequest{}

	if req.System != "" {
		out.SystemInstruction = &wireContent{Parts: []wirePart{{Text: req.System}}}
	}

	for _, m := range req.Messages {
		switch m.Role {
		case llmrouter.RoleSystem:
			if out.SystemInstruction == nil {
				out.SystemInstruction = &wireContent{Parts: []wirePart{{Text: m.Text()}}}
			}
		case llmrouter.RoleTool:
			out.Contents = append(out.Contents, wireContent{
				Role: "user",
				Parts: []wirePart{{FunctionResponse: &wireFuncResponse{
					Name:     m.Name,
					Response: map[string]any{"result": m.Text()},
				}}},
			})
		default:
			out.Contents = append(out.Contents, toWireContent(m))
		}
	}

	if len(req.Tools) > 0 {
		decls := make([]wireFunctionDecl, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, wireFunctionDecl{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
		}
		out.Tools = []wireTool{{FunctionDeclarations: decls}}
	}

	cfg := &wireGenConfig{Temperature: req.Temperature, TopP: req.TopP, StopSequences: req.Stop}
	if req.MaxTokens != nil {
		cfg.MaxOutputTokens = req.MaxTokens
	}
	out.GenerationConfig = cfg

	return out
}

func toWireContent(m llmrouter.Message) wireContent {
	role := "user"
	if m.Role == llmrouter.RoleAssistant {
		role = "model"
	}
	wc := wireContent{Role: role}
	if text := m.Text(); text != "" {
		wc.Parts = append(wc.Parts, wirePart{Text: text})
	}
	for _, tc := range m.ToolCalls {
		var args map[string]any
		_ = sonic.UnmarshalString(tc.Arguments, &args)
		wc.Parts = append(wc.Parts, wirePart{FunctionCall: &wireFunctionCall{Name: tc.Name, Args: args}})
	}
	return wc
}

func fromWireFinishReason(fr string) llmrouter.FinishReason {
	switch strings.ToUpper(fr) {
	case "MAX_TOKENS":
		return llmrouter.FinishLength
	case "SAFETY", "RECITATION":
		return llmrouter.FinishContentFilter
	case "STOP", "":
		return llmrouter.FinishStop
	default:
		return llmrouter.FinishStop
	}
}

func fromWireResponse(model string, wr *wireResponse) *llmrouter.Response {
	out := &llmrouter.Response{Model: model, FinishReason: llmrouter.FinishStop}
	if len(wr.Candidates) > 0 {
		c := wr.Candidates[0]
		msg := llmrouter.Message{Role: llmrouter.RoleAssistant}
		hasCall := false
		for _, p := range c.Content.Parts {
			if p.Text != "" {
				msg.Content = append(msg.Content, llmrouter.ContentPart{Type: "text", Text: p.Text})
			}
			if p.FunctionCall != nil {
				hasCall = true
				argsJSON, _ := sonic.MarshalString(p.FunctionCall.Args)
				msg.ToolCalls = append(msg.ToolCalls, llmrouter.ToolCall{Name: p.FunctionCall.Name, Arguments: argsJSON})
			}
		}
		out.Message = msg
		out.FinishReason = fromWireFinishReason(c.FinishReason)
		if hasCall {
			out.FinishReason = llmrouter.FinishToolCalls
		}
	}
	if wr.UsageMetadata != nil {
		out.Usage = llmrouter.Usage{InputTokens: wr.UsageMetadata.PromptTokenCount, OutputTokens: wr.UsageMetadata.CandidatesTokenCount}
	}
	return out
}
