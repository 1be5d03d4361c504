package mcpfed

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleRequestToolsListReportsOnlySearchAndExecute(t *testing.T) {
	f := newTestFederation(t)

	resp := HandleRequest(context.Background(), f, CallerIdentity{}, Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "tools/list"})
	require.Nil(t, resp.Error)

	result, ok := resp.Result.(toolsListResult)
	require.True(t, ok)
	require.Len(t, result.Tools, 2)
	assert.Equal(t, ToolSearch, result.Tools[0].Name)
	assert.Equal(t, ToolExecute, result.Tools[1].Name)
}

func TestHandleRequestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	f := newTestFederation(t)

	resp := HandleRequest(context.Background(), f, CallerIdentity{}, Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "bogus/method"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
}

func TestHandleRequestToolsCallExecuteUnknownToolReturnsToolNotFound(t *testing.T) {
	f := newTestFederation(t)

	params, err := jsonMarshal(callToolParams{Name: ToolExecute, Arguments: map[string]any{"name": "fs__read_file"}})
	require.NoError(t, err)

	resp := HandleRequest(context.Background(), f, CallerIdentity{}, Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "tools/call", Params: params})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
}

func TestHandleRequestToolsCallSearchReturnsResults(t *testing.T) {
	f := newTestFederation(t)
	require.NoError(t, f.index.Put(Tool{PublicName: "fs__read_file", Server: "fs", Description: "read a file from disk"}))

	params, err := jsonMarshal(callToolParams{Name: ToolSearch, Arguments: map[string]any{"keywords": []any{"read"}}})
	require.NoError(t, err)

	resp := HandleRequest(context.Background(), f, CallerIdentity{}, Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "tools/call", Params: params})
	require.Nil(t, resp.Error)

	result, ok := resp.Result.(callToolResult)
	require.True(t, ok)
	require.Len(t, result.Content, 1)
	assert.Contains(t, result.Content[0].Text, "fs__read_file")

	var payload searchResponsePayload
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &payload))
	require.Len(t, payload.Groups, 1)
	assert.Equal(t, "fs", payload.Groups[0].Server)
}

func TestHandleRequestToolsCallSearchWithNoHitsReturnsEmptyResults(t *testing.T) {
	f := newTestFederation(t)
	require.NoError(t, f.index.Put(Tool{PublicName: "fs__read_file", Server: "fs", Description: "read a file from disk"}))

	params, err := jsonMarshal(callToolParams{Name: ToolSearch, Arguments: map[string]any{"keywords": []any{"zzzznomatch"}}})
	require.NoError(t, err)

	resp := HandleRequest(context.Background(), f, CallerIdentity{}, Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "tools/call", Params: params})
	require.Nil(t, resp.Error)

	result, ok := resp.Result.(callToolResult)
	require.True(t, ok)

	var payload searchResponsePayload
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &payload))
	assert.Empty(t, payload.Results)
}

func TestHandleRequestUnknownToolNameInToolsCall(t *testing.T) {
	f := newTestFederation(t)

	params, err := jsonMarshal(callToolParams{Name: "not_search_or_execute"})
	require.NoError(t, err)

	resp := HandleRequest(context.Background(), f, CallerIdentity{}, Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "tools/call", Params: params})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
}
