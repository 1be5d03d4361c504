package mcpfed

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/grafbase/nexus/internal/perrors"
)

// The two tools Nexus ever reports from tools/list. Every downstream tool
// is reachable only through these two, never listed directly.
const (
	ToolSearch  = "search"
	ToolExecute = "execute"
)

// Request is a JSON-RPC 2.0 request as received on the MCP HTTP endpoint.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response. Result and Error are mutually
// exclusive; exactly one is set on any response with a non-nil ID.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type toolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type toolsListResult struct {
	Tools []toolDescriptor `json:"tools"`
}

// searchResponsePayload is the JSON body carried in the search tool's
// text content block: a flat, rank-ordered result list (the contract
// spec.md's search() describes) plus a server-grouped view of the same
// results and, when nothing matched, fuzzy name suggestions.
type searchResponsePayload struct {
	Results     []SearchResult      `json:"results"`
	Groups      []SearchResultGroup `json:"groups"`
	Suggestions []string            `json:"suggestions,omitempty"`
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type callToolResult struct {
	Content []contentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      map[string]any `json:"serverInfo"`
}

// searchToolSchema and executeToolSchema are the fixed input schemas
// advertised for the two public tools; downstream tool schemas never
// surface here, only through the payload of an execute call's result.
var searchToolSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"keywords": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Keywords to search for across every reachable tool's name, description and parameters",
		},
	},
	"required": []string{"keywords"},
}

var executeToolSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"name": map[string]any{
			"type":        "string",
			"description": "The namespaced tool name returned by search, e.g. \"fs__read_file\"",
		},
		"arguments": map[string]any{
			"type":        "object",
			"description": "Arguments to pass through to the underlying tool",
		},
	},
	"required": []string{"name"},
}

// HandleRequest dispatches one JSON-RPC request against the federation and
// always returns a Response, even on error — errors are folded into the
// response body per JSON-RPC 2.0 rather than returned as a Go error, since
// the caller (the HTTP handler) writes exactly one JSON body either way.
func HandleRequest(ctx context.Context, f *Federation, ident CallerIdentity, req Request) Response {
	switch req.Method {
	case "initialize":
		return ok(req.ID, initializeResult{
			ProtocolVersion: "2024-11-05",
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      map[string]any{"name": "nexus", "version": "1"},
		})
	case "notifications/initialized", "ping":
		return Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{}}
	case "tools/list":
		return ok(req.ID, toolsListResult{Tools: []toolDescriptor{
			{Name: ToolSearch, Description: "Search for tools across every connected MCP server this caller may use", InputSchema: searchToolSchema},
			{Name: ToolExecute, Description: "Execute a tool previously returned by search", InputSchema: executeToolSchema},
		}})
	case "tools/call":
		return handleToolsCall(ctx, f, ident, req)
	default:
		return errResp(req.ID, perrors.MethodNotFound(req.Method))
	}
}

func handleToolsCall(ctx context.Context, f *Federation, ident CallerIdentity, req Request) Response {
	var params callToolParams
	if err := jsonUnmarshal(req.Params, &params); err != nil {
		return errResp(req.ID, perrors.InvalidRequest("malformed tools/call params", err))
	}

	switch params.Name {
	case ToolSearch:
		return handleSearch(ctx, f, ident, req.ID, params.Arguments)
	case ToolExecute:
		return handleExecute(ctx, f, ident, req.ID, params.Arguments)
	default:
		return errResp(req.ID, perrors.ToolNotFound(params.Name))
	}
}

func handleSearch(ctx context.Context, f *Federation, ident CallerIdentity, id json.RawMessage, args map[string]any) Response {
	keywords, err := stringSlice(args["keywords"])
	if err != nil {
		return errResp(id, perrors.InvalidRequest("keywords must be a list of strings", err))
	}

	results, err := f.Search(ctx, keywords, ident)
	if err != nil {
		return errResp(id, err)
	}

	payload := searchResponsePayload{Results: results, Groups: GroupByServer(results)}
	if len(results) == 0 {
		payload.Suggestions = f.SuggestNames(strings.Join(keywords, " "), 5)
	}

	body, err := jsonMarshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "marshal search results failed", slog.Any("error", err))
		return errResp(id, perrors.Internal("failed to encode search results", err))
	}

	return ok(id, callToolResult{Content: []contentBlock{{Type: "text", Text: string(body)}}})
}

func handleExecute(ctx context.Context, f *Federation, ident CallerIdentity, id json.RawMessage, args map[string]any) Response {
	name, _ := args["name"].(string)
	if name == "" {
		return errResp(id, perrors.InvalidRequest("name is required", nil))
	}

	toolArgs, _ := args["arguments"].(map[string]any)

	res, err := f.Execute(ctx, name, toolArgs, ident)
	if err != nil {
		return errResp(id, err)
	}

	return ok(id, callToolResult{
		Content: []contentBlock{{Type: "text", Text: res.Text}},
		IsError: res.IsError,
	})
}

func stringSlice(v any) ([]string, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, perrors.InvalidRequest("keywords must be an array", nil)
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, perrors.InvalidRequest("keywords must all be strings", nil)
		}
		out = append(out, s)
	}
	return out, nil
}

func ok(id json.RawMessage, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

func errResp(id json.RawMessage, err error) Response {
	perr, ok := err.(*perrors.Err)
	if !ok {
		return Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: -32603, Message: "internal error"}}
	}
	return Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: perr.JSONRPCCode(), Message: perr.Message}}
}
