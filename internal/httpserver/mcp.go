package httpserver

import (
	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"

	"github.com/grafbase/nexus/internal/identity"
	"github.com/grafbase/nexus/internal/mcpfed"
)

// handleMCP is the single JSON-RPC 2.0 entrypoint exposing search and
// execute. It runs after the shared middleware chain has already resolved
// and rate-limited the caller; this handler only translates identity into
// mcpfed.CallerIdentity and dispatches.
func (s *Server) handleMCP(ctx *fasthttp.RequestCtx) {
	var req mcpfed.Request
	if err := sonic.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeJSON(ctx, fasthttp.StatusOK, mcpfed.Response{
			JSONRPC: "2.0",
			Error:   &mcpfed.RPCError{Code: -32700, Message: "parse error"},
		})
		return
	}

	ident := identity.FromContext(ctx)
	callerIdent := mcpfed.CallerIdentity{
		Group:       ident.Group,
		HasIdentity: ident.HasClientID(),
		Bearer:      string(ident.AuthToken),
	}

	resp := mcpfed.HandleRequest(ctx, s.federation, callerIdent, req)

	// JSON-RPC always answers 200 with the error folded into the body,
	// the malformed-request case above included.
	writeJSON(ctx, fasthttp.StatusOK, resp)
}
