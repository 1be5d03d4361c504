package google

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafbase/nexus/internal/llmrouter"
)

func TestAdapterMapsAssistantRoleToModelAndLiftsSystemInstruction(t *testing.T) {
	req := &llmrouter.Request{
		Model:  "gemini-1.5-pro",
		System: "be terse",
		Messages: []llmrouter.Message{
			{Role: llmrouter.RoleUser, Content: []llmrouter.ContentPart{{Type: "text", Text: "hi"}}},
			{Role: llmrouter.RoleAssistant, Content: []llmrouter.ContentPart{{Type: "text", Text: "hello"}}},
		},
	}

	wireReq := toWireRequest(req)
	require.NotNil(t, wireReq.SystemInstruction)
	assert.Equal(t, "be terse", wireReq.SystemInstruction.Parts[0].Text)
	require.Len(t, wireReq.Contents, 2)
	assert.Equal(t, "user", wireReq.Contents[0].Role)
	assert.Equal(t, "model", wireReq.Contents[1].Role)
}

func TestAdapterMapsToolResultToFunctionResponsePart(t *testing.T) {
	req := &llmrouter.Request{
		Model: "gemini-1.5-pro",
		Messages: []llmrouter.Message{
			{Role: llmrouter.RoleTool, Name: "get_weather", Content: []llmrouter.ContentPart{{Type: "text", Text: "72F"}}},
		},
	}

	wireReq := toWireRequest(req)
	require.Len(t, wireReq.Contents, 1)
	require.NotNil(t, wireReq.Contents[0].Parts[0].FunctionResponse)
	assert.Equal(t, "get_weather", wireReq.Contents[0].Parts[0].FunctionResponse.Name)
}

func TestFromWireResponseSetsToolCallsFinishReason(t *testing.T) {
	wr := &wireResponse{
		Candidates: []wireCandidate{{
			Content: wireContent{Parts: []wirePart{
				{FunctionCall: &wireFunctionCall{Name: "get_weather", Args: map[string]any{"city": "nyc"}}},
			}},
			FinishReason: "STOP",
		}},
		UsageMetadata: &wireUsage{PromptTokenCount: 4, CandidatesTokenCount: 2},
	}

	resp := fromWireResponse("gemini-1.5-pro", wr)
	assert.Equal(t, llmrouter.FinishToolCalls, resp.FinishReason)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "get_weather", resp.Message.ToolCalls[0].Name)
	assert.Equal(t, int64(4), resp.Usage.InputTokens)
}
