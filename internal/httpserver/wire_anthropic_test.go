package httpserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafbase/nexus/internal/llmrouter"
)

func TestAnthropicRequestToUnifiedLiftsSystemAndMapsToolBlocks(t *testing.T) {
	req := &anthropicMessagesRequest{
		Model:     "claude-3-5-sonnet",
		System:    "be terse",
		MaxTokens: 512,
		Messages: []anthropicMessage{
			{Role: "user", Content: []anthropicBlock{{Type: "text", Text: "hi"}}},
			{Role: "assistant", Content: []anthropicBlock{
				{Type: "tool_use", ID: "tu_1", Name: "get_weather", Input: map[string]any{"city": "nyc"}},
			}},
			{Role: "user", Content: []anthropicBlock{
				{Type: "tool_result", ToolUseID: "tu_1", Content: `{"temp":72}`},
			}},
		},
	}

	unified := anthropicRequestToUnified(req)

	assert.Equal(t, "be terse", unified.System)
	require.NotNil(t, unified.MaxTokens)
	assert.Equal(t, int64(512), *unified.MaxTokens)
	require.Len(t, unified.Messages, 3)
	assert.Equal(t, "get_weather", unified.Messages[1].ToolCalls[0].Name)
	assert.Equal(t, llmrouter.RoleTool, unified.Messages[2].Role)
	assert.Equal(t, "tu_1", unified.Messages[2].ToolCallID)
}

func TestUnifiedResponseToAnthropicMapsStopReasonAndBlocks(t *testing.T) {
	resp := &llmrouter.Response{
		ID:           "msg_1",
		Model:        "claude-3-5-sonnet",
		FinishReason: llmrouter.FinishLength,
		Message: llmrouter.Message{
			Role:    llmrouter.RoleAssistant,
			Content: []llmrouter.ContentPart{{Type: "text", Text: "hello"}},
		},
		Usage: llmrouter.Usage{InputTokens: 8, OutputTokens: 2},
	}

	out := unifiedResponseToAnthropic(resp)

	assert.Equal(t, "max_tokens", out.StopReason)
	require.Len(t, out.Content, 1)
	assert.Equal(t, "hello", out.Content[0].Text)
	assert.Equal(t, int64(8), out.Usage.InputTokens)
}

func TestAnthropicChunksFromUnifiedEmitsDeltaThenStopOnTerminal(t *testing.T) {
	mid := anthropicChunksFromUnified("msg_1", "claude-3-5-sonnet", llmrouter.Chunk{
		Delta: llmrouter.Message{Content: []llmrouter.ContentPart{{Type: "text", Text: "hel"}}},
	})
	require.Len(t, mid, 1)
	assert.Equal(t, "content_block_delta", mid[0].Event)

	term := anthropicChunksFromUnified("msg_1", "claude-3-5-sonnet", llmrouter.Chunk{
		FinishReason: llmrouter.FinishToolCalls,
		Usage:        &llmrouter.Usage{InputTokens: 1, OutputTokens: 2},
	})
	require.Len(t, term, 2)
	assert.Equal(t, "message_delta", term[0].Event)
	assert.Equal(t, "message_stop", term[1].Event)
}
