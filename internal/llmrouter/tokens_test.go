package llmrouter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateInputTokensZeroForEmptyRequest(t *testing.T) {
	assert.Equal(t, int64(0), EstimateInputTokens(&Request{}))
}

func TestEstimateInputTokensRoundsUpToOne(t *testing.T) {
	req := &Request{Messages: []Message{{Role: RoleUser, Content: []ContentPart{{Type: "text", Text: "hi"}}}}}
	assert.Equal(t, int64(1), EstimateInputTokens(req))
}

func TestEstimateInputTokensCountsSystemToolsAndMessages(t *testing.T) {
	req := &Request{
		System: "0123456789", // 10 chars
		Messages: []Message{
			{Role: RoleUser, Content: []ContentPart{{Type: "text", Text: "0123456789"}}}, // 10 chars
		},
		Tools: []ToolDefinition{{Name: "0123456789", Description: "0123456789"}}, // 20 chars
	}
	// 40 chars / 4 = 10 tokens
	assert.Equal(t, int64(10), EstimateInputTokens(req))
}
