package bedrock

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafbase/nexus/internal/llmrouter"
)

func TestToMessagesMapsToolCallsAndToolResults(t *testing.T) {
	msgs := []llmrouter.Message{
		{Role: llmrouter.RoleUser, Content: []llmrouter.ContentPart{{Type: "text", Text: "what's the weather"}}},
		{Role: llmrouter.RoleAssistant, ToolCalls: []llmrouter.ToolCall{{ID: "call_1", Name: "get_weather", Arguments: `{"city":"nyc"}`}}},
		{Role: llmrouter.RoleTool, ToolCallID: "call_1", Content: []llmrouter.ContentPart{{Type: "text", Text: "72F"}}},
	}

	out := toMessages(msgs)
	require.Len(t, out, 3)
	assert.Equal(t, types.ConversationRoleUser, out[0].Role)

	toolUse, ok := out[1].Content[0].(*types.ContentBlockMemberToolUse)
	require.True(t, ok)
	assert.Equal(t, "get_weather", *toolUse.Value.Name)

	toolResult, ok := out[2].Content[0].(*types.ContentBlockMemberToolResult)
	require.True(t, ok)
	assert.Equal(t, "call_1", *toolResult.Value.ToolUseId)
}

func TestFromStopReasonMapsToolUseAndMaxTokens(t *testing.T) {
	assert.Equal(t, llmrouter.FinishToolCalls, fromStopReason(types.StopReasonToolUse))
	assert.Equal(t, llmrouter.FinishLength, fromStopReason(types.StopReasonMaxTokens))
	assert.Equal(t, llmrouter.FinishStop, fromStopReason(types.StopReasonEndTurn))
}

func TestTranslateStreamEventTextDeltaIsNotTerminal(t *testing.T) {
	event := &types.ConverseStreamOutputMemberContentBlockDelta{
		Value: types.ContentBlockDeltaEvent{Delta: &types.ContentBlockDeltaMemberText{Value: "hi"}},
	}
	chunk, terminal, ok := translateStreamEvent("claude", event)
	assert.True(t, ok)
	assert.False(t, terminal)
	assert.Equal(t, "hi", chunk.Delta.Text())
}

func TestTranslateStreamEventMessageStopIsTerminal(t *testing.T) {
	event := &types.ConverseStreamOutputMemberMessageStop{
		Value: types.MessageStopEvent{StopReason: types.StopReasonEndTurn},
	}
	chunk, terminal, ok := translateStreamEvent("claude", event)
	assert.True(t, ok)
	assert.True(t, terminal)
	assert.Equal(t, llmrouter.FinishStop, chunk.FinishReason)
}
