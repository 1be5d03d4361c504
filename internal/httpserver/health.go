package httpserver

import "github.com/valyala/fasthttp"

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"status":"ok"}`)
}

// handleOAuthProtectedResource backs RFC 9728 discovery so MCP clients that
// speak OAuth2 can find the issuer Nexus validates bearer tokens against.
func (s *Server) handleOAuthProtectedResource(ctx *fasthttp.RequestCtx) {
	cfg := s.cfg.Server.OAuthProtectedResource
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{
		"resource":              cfg.Resource,
		"authorization_servers": cfg.AuthorizationServers,
	})
}
