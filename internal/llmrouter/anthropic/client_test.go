package anthropic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafbase/nexus/internal/llmrouter"
	"github.com/grafbase/nexus/internal/perrors"
)

func TestAdapterExtractsSystemMessageAndDefaultsMaxTokens(t *testing.T) {
	req := &llmrouter.Request{
		Model: "claude-3-5-sonnet",
		Messages: []llmrouter.Message{
			{Role: llmrouter.RoleSystem, Content: []llmrouter.ContentPart{{Type: "text", Text: "be terse"}}},
			{Role: llmrouter.RoleUser, Content: []llmrouter.ContentPart{{Type: "text", Text: "hi"}}},
		},
	}

	wireReq := toWireRequest(req)
	assert.Equal(t, "be terse", wireReq.System)
	assert.Len(t, wireReq.Messages, 1)
	assert.Equal(t, int64(defaultMaxTokens), wireReq.MaxTokens)
}

func TestAdapterMapsToolResultToUserRoleContentBlock(t *testing.T) {
	req := &llmrouter.Request{
		Model: "claude-3-5-sonnet",
		Messages: []llmrouter.Message{
			{Role: llmrouter.RoleTool, ToolCallID: "call_1", Content: []llmrouter.ContentPart{{Type: "text", Text: "72F"}}},
		},
	}

	wireReq := toWireRequest(req)
	require.Len(t, wireReq.Messages, 1)
	assert.Equal(t, "user", wireReq.Messages[0].Role)
	assert.Equal(t, "tool_result", wireReq.Messages[0].Content[0].Type)
	assert.Equal(t, "call_1", wireReq.Messages[0].Content[0].ToolUseID)
}

func TestClientCompleteSendsAnthropicAuthHeaders(t *testing.T) {
	var gotKey, gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("Anthropic-Version")
		w.Write([]byte(`{"id":"msg_1","model":"claude-3-5-sonnet","content":[{"type":"text","text":"hi"}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":1}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-ant-test", 5*time.Second)
	resp, err := c.Complete(context.Background(), &llmrouter.Request{Model: "claude-3-5-sonnet"})
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test", gotKey)
	assert.Equal(t, apiVersion, gotVersion)
	assert.Equal(t, "hi", resp.Message.Text())
}

func TestClientCompletePrefersForwardedKeyOverStaticKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		w.Write([]byte(`{"id":"msg_1","model":"claude-3-5-sonnet","content":[{"type":"text","text":"hi"}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":1}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-ant-static", 5*time.Second)
	_, err := c.Complete(context.Background(), &llmrouter.Request{
		Model:        "claude-3-5-sonnet",
		ForwardedKey: "sk-ant-caller",
	})
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-caller", gotKey)
}

func TestClientCompleteMaps404ToModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"no such model"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-ant-test", 5*time.Second)
	_, err := c.Complete(context.Background(), &llmrouter.Request{Model: "missing"})

	require.Error(t, err)
	perr, ok := err.(*perrors.Err)
	require.True(t, ok)
	assert.Equal(t, perrors.ErrCodeModelNotFound, perr.Code)
	assert.Contains(t, perr.Message, "Model 'missing'")
}

func TestClientCompleteMaps401ToAuthenticationFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("bad key"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-ant-test", 5*time.Second)
	_, err := c.Complete(context.Background(), &llmrouter.Request{Model: "claude-3-5-sonnet"})

	require.Error(t, err)
	perr, ok := err.(*perrors.Err)
	require.True(t, ok)
	assert.Equal(t, perrors.ErrCodeAuthenticationFailed, perr.Code)
}

func TestClientStreamTerminatesOnMessageDelta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		w.Write([]byte("data: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_1\",\"model\":\"claude-3-5-sonnet\"}}\n\n"))
		flusher.Flush()
		w.Write([]byte("data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"hi\"}}\n\n"))
		flusher.Flush()
		w.Write([]byte("data: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\"},\"usage\":{\"output_tokens\":2}}\n\n"))
		flusher.Flush()
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-ant-test", 5*time.Second)
	ch, err := c.Stream(context.Background(), &llmrouter.Request{Model: "claude-3-5-sonnet", Stream: true})
	require.NoError(t, err)

	var chunks []llmrouter.Chunk
	for chunk := range ch {
		chunks = append(chunks, chunk)
	}
	require.Len(t, chunks, 3)
	assert.False(t, chunks[0].IsTerminal())
	assert.Equal(t, "msg_1", chunks[1].ID, "id threaded from message_start into later chunks")
	assert.True(t, chunks[2].IsTerminal())
	assert.Equal(t, int64(2), chunks[2].Usage.OutputTokens)
}

func TestClientStreamSynthesizesTerminalOnEarlyClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		w.Write([]byte("data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"hi\"}}\n\n"))
		flusher.Flush()
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-ant-test", 5*time.Second)
	ch, err := c.Stream(context.Background(), &llmrouter.Request{Model: "claude-3-5-sonnet", Stream: true})
	require.NoError(t, err)

	var chunks []llmrouter.Chunk
	for chunk := range ch {
		chunks = append(chunks, chunk)
	}
	require.Len(t, chunks, 2)
	assert.True(t, chunks[1].IsTerminal())
}
