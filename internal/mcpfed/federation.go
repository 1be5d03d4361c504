package mcpfed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/grafbase/nexus/internal/config"
	"github.com/grafbase/nexus/internal/perrors"
	"github.com/grafbase/nexus/internal/ratelimit"
)

// defaultReconnectInterval is used when config.MCPConfig.ReconnectInterval
// is unset, mirroring llmrouter's discovery-loop fallback.
const defaultReconnectInterval = 30 * time.Second

var tracer = otel.Tracer("mcpfed")

// Federation owns every static downstream session, the shared search
// index built from them, and the per-token cache of dynamic
// (auth-forwarding) sessions. It implements the two tools Nexus exposes
// publicly: search and execute.
type Federation struct {
	cfg   config.MCPConfig
	chain *ratelimit.HTTPChain

	mu       sync.RWMutex
	sessions map[string]*Session // static servers only, keyed by name
	index    *Index

	dynamic map[string]*DynamicCache // forward-auth servers, keyed by name

	cache *toolsCache // last known-good tools/list per static server
}

// New connects every static server, populates the shared index, and
// leaves forward-auth servers to be dialed lazily per caller. Per the
// specification's startup lifecycle, a single server's connect failure is
// logged and skipped rather than aborting the whole federation.
func New(ctx context.Context, cfg config.MCPConfig, chain *ratelimit.HTTPChain) (*Federation, error) {
	index, err := NewIndex()
	if err != nil {
		return nil, err
	}

	f := &Federation{
		cfg:      cfg,
		chain:    chain,
		sessions: map[string]*Session{},
		index:    index,
		dynamic:  map[string]*DynamicCache{},
		cache:    newToolsCache(),
	}

	for name, srv := range cfg.Servers {
		if srv.Auth.IsForward() {
			f.dynamic[name] = NewDynamicCache(name, srv, cfg.HeaderInsert, 1024, 0)
			continue
		}

		session, err := Dial(ctx, name, srv, cfg.HeaderInsert, "")
		if err != nil {
			slog.ErrorContext(ctx, "mcp server connect failed, continuing without it", slog.String("server", name), slog.Any("error", err))
			continue
		}

		tools, err := session.ListTools(ctx)
		if err != nil {
			slog.WarnContext(ctx, "mcp server tools/list failed after connect, falling back to last known catalog", slog.String("server", name), slog.Any("error", err))
			if cached, ok := f.cache.get(name); ok {
				tools = cached
			} else {
				_ = session.Close()
				continue
			}
		}

		for _, t := range tools {
			if err := index.Put(t); err != nil {
				return nil, fmt.Errorf("mcpfed: index %q: %w", t.PublicName, err)
			}
		}

		f.cache.put(name, tools)
		f.sessions[name] = session
	}

	return f, nil
}

// Run drives the best-effort reconnect loop for static servers until ctx is
// cancelled: it periodically health-checks connected sessions, drops ones
// that stop answering (their last known tools stay searchable via the
// index and toolsCache), and retries dialing every server currently down.
// Callers that don't need reconnect behavior (e.g. short-lived tests) may
// simply never call Run.
func (f *Federation) Run(ctx context.Context) {
	interval := f.cfg.ReconnectInterval
	if interval <= 0 {
		interval = defaultReconnectInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.reconcileServers(ctx)
		}
	}
}

// reconcileServers health-checks every currently connected static session
// and retries dialing every one currently down. A server that fails its
// health check is dropped from f.sessions but left in the index and
// toolsCache, so search keeps surfacing its tools through the outage; a
// server that reconnects has its catalog refreshed and re-indexed.
func (f *Federation) reconcileServers(ctx context.Context) {
	f.mu.RLock()
	connected := make([]string, 0, len(f.sessions))
	for name := range f.sessions {
		connected = append(connected, name)
	}
	f.mu.RUnlock()

	for _, name := range connected {
		f.mu.RLock()
		session := f.sessions[name]
		f.mu.RUnlock()

		if _, err := session.ListTools(ctx); err != nil {
			slog.WarnContext(ctx, "mcp server health probe failed, marking down", slog.String("server", name), slog.Any("error", err))
			f.mu.Lock()
			_ = session.Close()
			delete(f.sessions, name)
			f.mu.Unlock()
		}
	}

	f.mu.RLock()
	down := make([]string, 0)
	for name, srv := range f.cfg.Servers {
		if srv.Auth.IsForward() {
			continue
		}
		if _, ok := f.sessions[name]; !ok {
			down = append(down, name)
		}
	}
	f.mu.RUnlock()

	for _, name := range down {
		f.reconnectServer(ctx, name)
	}
}

func (f *Federation) reconnectServer(ctx context.Context, name string) {
	srv := f.cfg.Servers[name]

	session, err := Dial(ctx, name, srv, f.cfg.HeaderInsert, "")
	if err != nil {
		slog.WarnContext(ctx, "mcp server reconnect attempt failed", slog.String("server", name), slog.Any("error", err))
		return
	}

	tools, err := session.ListTools(ctx)
	if err != nil {
		cached, ok := f.cache.get(name)
		if !ok {
			slog.WarnContext(ctx, "mcp server reconnect tools/list failed", slog.String("server", name), slog.Any("error", err))
			_ = session.Close()
			return
		}
		slog.WarnContext(ctx, "mcp server reconnect tools/list failed, falling back to last known catalog", slog.String("server", name), slog.Any("error", err))
		tools = cached
	}

	f.mu.Lock()
	_ = f.index.RemoveServer(name)
	for _, t := range tools {
		if err := f.index.Put(t); err != nil {
			slog.ErrorContext(ctx, "mcp server reconnect index put failed", slog.String("server", name), slog.String("tool", t.PublicName), slog.Any("error", err))
		}
	}
	f.sessions[name] = session
	f.mu.Unlock()

	f.cache.put(name, tools)
	slog.InfoContext(ctx, "mcp server reconnected", slog.String("server", name), slog.Int("tool_count", len(tools)))
}

// Close tears down every static session; subprocess children are signalled
// and reaped by their transport's Close.
func (f *Federation) Close() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var firstErr error
	for _, s := range f.sessions {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Search runs the multi-keyword fuzzy lexical search over tools this
// caller's group can see. Dynamic servers require a bearer token to
// search at all — without one, only static tools participate.
func (f *Federation) Search(ctx context.Context, keywords []string, ident CallerIdentity) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "mcpfed.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("keyword_count", len(keywords)))
	if id, ok := ctx.Value("requestID").(string); ok && id != "" {
		span.SetAttributes(attribute.String("request_id", id))
	}

	accessible := func(t Tool) bool {
		return CheckAccess(t.AccessControl, ident.Group, ident.HasIdentity)
	}

	f.mu.RLock()
	results, err := f.index.Search(keywords, accessible)
	f.mu.RUnlock()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, perrors.Internal("search failed", err)
	}

	if ident.Bearer != "" {
		for name, cache := range f.dynamic {
			_, idx, err := cache.GetOrCreate(ctx, ident.Bearer, ident.Group)
			if err != nil {
				slog.WarnContext(ctx, "dynamic mcp server unavailable for search", slog.String("server", name), slog.Any("error", err))
				continue
			}
			extra, err := idx.Search(keywords, func(Tool) bool { return true })
			if err != nil {
				continue
			}
			results = append(results, extra...)
		}
		if len(results) > maxSearchResults {
			results = results[:maxSearchResults]
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(results)))
	return results, nil
}

// SuggestNames fuzzy-matches query against every statically indexed tool's
// public name, for callers to offer a hint when a search comes back empty.
func (f *Federation) SuggestNames(query string, limit int) []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.index.Suggest(query, limit)
}

// CallerIdentity is the subset of identity.ClientIdentity federation needs;
// declared locally so this package doesn't import identity (which would
// create a cycle once identity's middleware wires the rate limiter).
type CallerIdentity struct {
	Group       string
	HasIdentity bool
	Bearer      string
}

// Execute resolves name in the index (or, if unresolved and a bearer token
// is present, in the caller's dynamic servers), enforces ACL and the
// server+tool rate-limit pair, and dispatches to the originating session.
func (f *Federation) Execute(ctx context.Context, name string, args map[string]any, ident CallerIdentity) (CallResult, error) {
	ctx, span := tracer.Start(ctx, "mcpfed.Execute: "+name)
	defer span.End()
	if id, ok := ctx.Value("requestID").(string); ok && id != "" {
		span.SetAttributes(attribute.String("request_id", id))
	}

	server, toolName, ok := splitPublicName(name)
	if !ok {
		return CallResult{}, perrors.ToolNotFound(name)
	}

	f.mu.RLock()
	tool, found := f.index.Lookup(name)
	session, isStatic := f.sessions[server]
	f.mu.RUnlock()

	if !found && ident.Bearer != "" {
		if cache, ok := f.dynamic[server]; ok {
			s, idx, err := cache.GetOrCreate(ctx, ident.Bearer, ident.Group)
			if err == nil {
				if t, ok := idx.Lookup(name); ok {
					tool, found, session, isStatic = t, true, s, false
				}
			}
		}
	}

	if !found {
		// Deliberately identical to an unknown tool name, per the ACL
		// deny-empty scenario: existence must not leak through the error.
		span.SetStatus(codes.Error, "tool not found")
		return CallResult{}, perrors.ToolNotFound(name)
	}

	if !CheckAccess(tool.AccessControl, ident.Group, ident.HasIdentity) {
		span.SetStatus(codes.Error, "tool not found")
		return CallResult{}, perrors.ToolNotFound(name)
	}

	if f.chain != nil {
		d, err := f.chain.CheckMCPServerAndTool(ctx, server, toolName, f.cfg.Servers[server].RateLimit, toolOverrideRateLimit(f.cfg.Servers[server], toolName))
		if err != nil {
			return CallResult{}, perrors.Internal("rate limit check failed", err)
		}
		if !d.Allowed {
			return CallResult{}, perrors.RateLimitExceeded(fmt.Sprintf("rate limit exceeded for tool %q", name))
		}
	}

	if !isStatic && session == nil {
		return CallResult{}, perrors.ToolNotFound(name)
	}

	res, err := session.CallTool(ctx, toolName, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return CallResult{}, perrors.ConnectionError("downstream tool call failed", err)
	}

	return res, nil
}

func splitPublicName(name string) (server, tool string, ok bool) {
	idx := strings.Index(name, "__")
	if idx < 0 {
		return "", "", false
	}
	return name[:idx], name[idx+2:], true
}

// toolOverrideRateLimit returns only the tool-level override rule, or nil
// when none is configured. Unlike EffectiveRateLimit (which falls back to
// the server-level rule for a single-value resolution), the rate-limit
// chain checks server and tool rules as two independent buckets, so folding
// the server rule in here would double-consume it.
func toolOverrideRateLimit(srv *config.DownstreamServer, toolName string) *config.RateLimitRule {
	if srv == nil {
		return nil
	}
	if override, ok := srv.Tools[toolName]; ok && override.RateLimit != nil {
		return override.RateLimit
	}
	return nil
}
