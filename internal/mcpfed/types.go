// Package mcpfed federates downstream MCP tool servers behind the two
// tools Nexus exposes publicly: search and execute. It owns the set of
// downstream sessions, the lexical tool index, and enforces access control
// and rate limits before dispatching a call to its originating server.
//
// Grounded on curaious-uno's pkg/agent-framework/tools/mcp_tool.go (the
// mark3labs/mcp-go client wiring) generalized from "one agent's toolset"
// to "many namespaced servers behind one federated index".
package mcpfed

import (
	"encoding/json"

	"github.com/grafbase/nexus/internal/config"
)

// Tool is one downstream tool, namespaced as "{server}__{name}" for public
// exposure. Dynamic tools (auth-forwarding servers) are populated per
// session rather than placed in the shared static index.
type Tool struct {
	PublicName   string
	OriginalName string
	Server       string
	Description  string
	InputSchema  json.RawMessage

	AccessControl config.AccessControl
	RateLimit     *config.RateLimitRule
}

// SearchResult is one entry returned by search(), matching the public
// tool shape callers see.
type SearchResult struct {
	Name        string          `json:"name"`
	Server      string          `json:"server"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// SearchResultGroup buckets a flat, rank-ordered result list by origin
// server, for callers that want a server-level view of a search.
type SearchResultGroup struct {
	Server  string         `json:"server"`
	Results []SearchResult `json:"results"`
}

// GroupByServer buckets already-ranked results by origin server, preserving
// each result's relative rank both within its group and across groups — a
// group's position follows the rank of its first member.
func GroupByServer(results []SearchResult) []SearchResultGroup {
	order := make([]string, 0, len(results))
	groups := make(map[string]*SearchResultGroup, len(results))
	for _, r := range results {
		g, ok := groups[r.Server]
		if !ok {
			g = &SearchResultGroup{Server: r.Server}
			groups[r.Server] = g
			order = append(order, r.Server)
		}
		g.Results = append(g.Results, r)
	}
	out := make([]SearchResultGroup, 0, len(order))
	for _, name := range order {
		out = append(out, *groups[name])
	}
	return out
}

// CallResult is the raw downstream tool result, passed back to the caller
// as-is (text content concatenated; MCP lets a tool return multiple
// content blocks, of which Nexus keeps the text ones and drops the
// rest).
type CallResult struct {
	Text    string
	IsError bool
}
