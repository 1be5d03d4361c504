// Package ratelimit implements Nexus's two rate-limit hierarchies: the
// HTTP-level chain (global, per-IP, per-MCP-server, per-MCP-tool) enforced
// before a request is let through at all, and the LLM token-limit tree
// (model+group, model, provider+group, provider) charged against a single
// most-specific rule before a chat completion is dispatched upstream.
//
// Grounded on curaious-uno's pkg/gateway/middlewares/virtual_key_middleware
// token-bucket/Redis-Lua rate limiter, generalized from "one key, one rule"
// to "many scopes, hierarchical resolution, two swappable backends".
package ratelimit

import "fmt"

// Scope identifies which level of a hierarchy a Key belongs to.
type Scope int

const (
	ScopeGlobal Scope = iota
	ScopeIP
	ScopeMCPServer
	ScopeMCPTool
	ScopeLLMModelPerGroup
	ScopeLLMModel
	ScopeLLMProviderPerGroup
	ScopeLLMProvider
)

func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeIP:
		return "ip"
	case ScopeMCPServer:
		return "mcp_server"
	case ScopeMCPTool:
		return "mcp_tool"
	case ScopeLLMModelPerGroup:
		return "llm_model_per_group"
	case ScopeLLMModel:
		return "llm_model"
	case ScopeLLMProviderPerGroup:
		return "llm_provider_per_group"
	case ScopeLLMProvider:
		return "llm_provider"
	default:
		return "unknown"
	}
}

// Key identifies one governor within a Store. Two Keys with the same Scope
// and Ident address the same underlying counter/bucket.
type Key struct {
	Scope Scope
	Ident string
}

func (k Key) String() string {
	if k.Ident == "" {
		return k.Scope.String()
	}
	return fmt.Sprintf("%s:%s", k.Scope, k.Ident)
}

func GlobalKey() Key                         { return Key{Scope: ScopeGlobal} }
func IPKey(ip string) Key                    { return Key{Scope: ScopeIP, Ident: ip} }
func MCPServerKey(server string) Key         { return Key{Scope: ScopeMCPServer, Ident: server} }
func MCPToolKey(server, tool string) Key     { return Key{Scope: ScopeMCPTool, Ident: server + "/" + tool} }
func LLMModelPerGroupKey(model, group string) Key {
	return Key{Scope: ScopeLLMModelPerGroup, Ident: model + "/" + group}
}
func LLMModelKey(model string) Key { return Key{Scope: ScopeLLMModel, Ident: model} }
func LLMProviderPerGroupKey(provider, group string) Key {
	return Key{Scope: ScopeLLMProviderPerGroup, Ident: provider + "/" + group}
}
func LLMProviderKey(provider string) Key { return Key{Scope: ScopeLLMProvider, Ident: provider} }
