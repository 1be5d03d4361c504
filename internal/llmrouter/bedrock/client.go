// Package bedrock implements the AWS Bedrock Converse/ConverseStream
// unified inference API, absent from the teacher and grounded on
// yduwcui-ai-gateway's internal/backendauth/aws.go for the SigV4 credential
// chain (config.LoadDefaultConfig with region and optional shared
// credentials file), generalized here to construct a bedrockruntime client
// directly rather than hand-signing requests, per the specification's
// explicit call for the Converse/ConverseStream APIs.
package bedrock

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/grafbase/nexus/internal/llmrouter"
	"github.com/grafbase/nexus/internal/perrors"
)

type Client struct {
	rt      *bedrockruntime.Client
	timeout time.Duration
}

// NewClient loads AWS credentials via the standard chain (environment,
// shared config/profile, IAM role) — forward_token is rejected for Bedrock
// at config validation, so no per-caller credential ever reaches here.
func NewClient(ctx context.Context, region, profile string, timeout time.Duration) (*Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, perrors.Internal("failed to load AWS credential chain for bedrock", err)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{rt: bedrockruntime.NewFromConfig(cfg), timeout: timeout}, nil
}

// ListModels has no per-account discovery through bedrockruntime (that
// lives on the separate bedrock control-plane client, out of scope here);
// Bedrock models are expected to be configured explicitly via
// llm.providers.<name>.models rather than discovered.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (c *Client) Complete(ctx context.Context, in *llmrouter.Request) (*llmrouter.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	input := toConverseInput(in)
	out, err := c.rt.Converse(ctx, input)
	if err != nil {
		return nil, perrors.ConnectionError("bedrock converse request failed", err)
	}

	return fromConverseOutput(in.Model, out), nil
}

func (c *Client) Stream(ctx context.Context, in *llmrouter.Request) (<-chan llmrouter.Chunk, error) {
	input := toConverseStreamInput(in)
	out, err := c.rt.ConverseStream(ctx, input)
	if err != nil {
		return nil, perrors.ConnectionError("bedrock converse_stream request failed", err)
	}

	ch := make(chan llmrouter.Chunk)

	go func() {
		defer close(ch)
		stream := out.GetStream()
		defer stream.Close()

		sawTerminal := false
		for event := range stream.Events() {
			chunk, terminal, ok := translateStreamEvent(in.Model, event)
			if !ok {
				continue
			}
			if terminal {
				sawTerminal = true
			}
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
		}

		if !sawTerminal {
			select {
			case ch <- llmrouter.Chunk{Model: in.Model, FinishReason: llmrouter.FinishStop, Usage: &llmrouter.Usage{}}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

func toConverseInput(in *llmrouter.Request) *bedrockruntime.ConverseInput {
	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(in.Model),
		Messages:        toMessages(in.Messages),
		InferenceConfig: toInferenceConfig(in),
	}
	if in.System != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: in.System}}
	}
	if len(in.Tools) > 0 {
		input.ToolConfig = toToolConfig(in)
	}
	return input
}

func toConverseStreamInput(in *llmrouter.Request) *bedrockruntime.ConverseStreamInput {
	c := toConverseInput(in)
	return &bedrockruntime.ConverseStreamInput{
		ModelId:         c.ModelId,
		Messages:        c.Messages,
		System:          c.System,
		InferenceConfig: c.InferenceConfig,
		ToolConfig:      c.ToolConfig,
	}
}

func toInferenceConfig(in *llmrouter.Request) *types.InferenceConfiguration {
	cfg := &types.InferenceConfiguration{}
	if in.MaxTokens != nil {
		v := int32(*in.MaxTokens)
		cfg.MaxTokens = aws.Int32(v)
	}
	if in.Temperature != nil {
		v := float32(*in.Temperature)
		cfg.Temperature = aws.Float32(v)
	}
	if in.TopP != nil {
		v := float32(*in.TopP)
		cfg.TopP = aws.Float32(v)
	}
	if len(in.Stop) > 0 {
		cfg.StopSequences = in.Stop
	}
	return cfg
}

func toMessages(msgs []llmrouter.Message) []types.Message {
	out := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		role := types.ConversationRoleUser
		if m.Role == llmrouter.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		var blocks []types.ContentBlock
		if text := m.Text(); text != "" {
			blocks = append(blocks, &types.ContentBlockMemberText{Value: text})
		}
		for _, tc := range m.ToolCalls {
			blocks = append(blocks, &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
				ToolUseId: aws.String(tc.ID),
				Name:      aws.String(tc.Name),
				Input:     documentFromJSON(tc.Arguments),
			}})
		}
		if m.Role == llmrouter.RoleTool {
			blocks = append(blocks, &types.ContentBlockMemberToolResult{Value: types.ToolResultBlock{
				ToolUseId: aws.String(m.ToolCallID),
				Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: m.Text()}},
			}})
		}
		out = append(out, types.Message{Role: role, Content: blocks})
	}
	return out
}

func toToolConfig(in *llmrouter.Request) *types.ToolConfiguration {
	tools := make([]types.Tool, 0, len(in.Tools))
	for _, t := range in.Tools {
		tools = append(tools, &types.ToolMemberToolSpec{Value: types.ToolSpecification{
			Name:        aws.String(t.Name),
			Description: aws.String(t.Description),
			InputSchema: &types.ToolInputSchemaMemberJson{Value: documentFromMap(t.Parameters)},
		}})
	}
	return &types.ToolConfiguration{Tools: tools}
}

func fromConverseOutput(model string, out *bedrockruntime.ConverseOutput) *llmrouter.Response {
	resp := &llmrouter.Response{Model: model, FinishReason: fromStopReason(out.StopReason)}
	if msgOut, ok := out.Output.(*types.ConverseOutputMemberMessage); ok {
		resp.Message = fromMessage(msgOut.Value)
	}
	if out.Usage != nil {
		resp.Usage = llmrouter.Usage{InputTokens: int64(aws.ToInt32(out.Usage.InputTokens)), OutputTokens: int64(aws.ToInt32(out.Usage.OutputTokens))}
	}
	return resp
}

func fromMessage(m types.Message) llmrouter.Message {
	msg := llmrouter.Message{Role: llmrouter.RoleAssistant}
	for _, block := range m.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			msg.Content = append(msg.Content, llmrouter.ContentPart{Type: "text", Text: b.Value})
		case *types.ContentBlockMemberToolUse:
			msg.ToolCalls = append(msg.ToolCalls, llmrouter.ToolCall{
				ID:        aws.ToString(b.Value.ToolUseId),
				Name:      aws.ToString(b.Value.Name),
				Arguments: jsonFromDocument(b.Value.Input),
			})
		}
	}
	return msg
}

func fromStopReason(sr types.StopReason) llmrouter.FinishReason {
	switch sr {
	case types.StopReasonMaxTokens:
		return llmrouter.FinishLength
	case types.StopReasonToolUse:
		return llmrouter.FinishToolCalls
	case types.StopReasonContentFiltered:
		return llmrouter.FinishContentFilter
	default:
		return llmrouter.FinishStop
	}
}

func translateStreamEvent(model string, event types.ConverseStreamOutput) (llmrouter.Chunk, bool, bool) {
	switch e := event.(type) {
	case *types.ConverseStreamOutputMemberContentBlockDelta:
		if delta, ok := e.Value.Delta.(*types.ContentBlockDeltaMemberText); ok {
			return llmrouter.Chunk{Model: model, Delta: llmrouter.Message{Content: []llmrouter.ContentPart{{Type: "text", Text: delta.Value}}}}, false, true
		}
		if delta, ok := e.Value.Delta.(*types.ContentBlockDeltaMemberToolUse); ok {
			return llmrouter.Chunk{Model: model, Delta: llmrouter.Message{ToolCalls: []llmrouter.ToolCall{{Arguments: aws.ToString(delta.Value.Input)}}}}, false, true
		}
		return llmrouter.Chunk{}, false, false
	case *types.ConverseStreamOutputMemberMessageStop:
		return llmrouter.Chunk{Model: model, FinishReason: fromStopReason(e.Value.StopReason)}, true, true
	case *types.ConverseStreamOutputMemberMetadata:
		usage := llmrouter.Usage{}
		if e.Value.Usage != nil {
			usage = llmrouter.Usage{InputTokens: int64(aws.ToInt32(e.Value.Usage.InputTokens)), OutputTokens: int64(aws.ToInt32(e.Value.Usage.OutputTokens))}
		}
		return llmrouter.Chunk{Model: model, FinishReason: llmrouter.FinishStop, Usage: &usage}, true, true
	default:
		return llmrouter.Chunk{}, false, false
	}
}
