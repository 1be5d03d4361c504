// Package httpserver wires Nexus's fasthttp routes — the MCP JSON-RPC
// endpoint and the OpenAI/Anthropic-compatible LLM endpoints — behind the
// shared logging → trace-context → OAuth2 → identification → rate-limit
// middleware chain, following curaious-uno's internal/api idiom of a Server
// struct that owns every dependency and builds one fasthttp.RequestHandler.
package httpserver

import (
	"context"
	"log/slog"
	"time"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/grafbase/nexus/internal/config"
	"github.com/grafbase/nexus/internal/identity"
	"github.com/grafbase/nexus/internal/llmrouter"
	"github.com/grafbase/nexus/internal/mcpfed"
	"github.com/grafbase/nexus/internal/ratelimit"
)

// Server owns every dependency the HTTP surface needs and builds the
// fasthttp handler tree once at startup.
type Server struct {
	cfg        config.Config
	federation *mcpfed.Federation
	router     *llmrouter.Router
	chain      *ratelimit.HTTPChain
	extractor  *identity.Extractor
}

func New(cfg config.Config, federation *mcpfed.Federation, llmr *llmrouter.Router, chain *ratelimit.HTTPChain, extractor *identity.Extractor) *Server {
	return &Server{cfg: cfg, federation: federation, router: llmr, chain: chain, extractor: extractor}
}

// Handler builds the full route tree wrapped in the middleware chain.
func (s *Server) Handler() fasthttp.RequestHandler {
	r := router.New()

	r.GET("/health", s.handleHealth)
	r.GET("/.well-known/oauth-protected-resource", s.handleOAuthProtectedResource)
	r.POST("/mcp", s.handleMCP)
	r.POST("/llm/openai/v1/chat/completions", s.handleOpenAIChatCompletions)
	r.GET("/llm/openai/v1/models", s.handleOpenAIModels)
	r.POST("/llm/anthropic/v1/messages", s.handleAnthropicMessages)

	return s.withMiddlewares(r.Handler)
}

// Run starts the fasthttp server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &fasthttp.Server{Handler: s.Handler(), Name: "nexus"}

	errCh := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "listening", slog.String("addr", s.cfg.Server.ListenAddr))
		errCh <- srv.ListenAndServe(s.cfg.Server.ListenAddr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.ShutdownWithContext(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
