package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/propagation"

	"github.com/grafbase/nexus/internal/identity"
)

var tracePropagator = propagation.TraceContext{}

// withMiddlewares composes the fixed chain the specification requires:
// logging, trace-context extraction, OAuth2 validation (skipped for
// unauthenticated surfaces), client identification, then global/per-ip
// rate limiting, before the route handler runs. Following curaious-uno's
// routes.go withMiddlewares idiom of one function wrapping the whole
// router.Handler rather than per-route middleware registration.
func (s *Server) withMiddlewares(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		path := string(ctx.Path())

		requestID := requestIDFrom(ctx)
		ctx.SetUserValue("requestID", requestID)
		ctx.Response.Header.Set("X-Request-Id", requestID)

		h := http.Header{}
		ctx.Request.Header.VisitAll(func(k, v []byte) {
			h.Add(string(k), string(v))
		})
		traceCtx := tracePropagator.Extract(ctx, propagation.HeaderCarrier(h))
		ctx.SetUserValue("traceCtx", traceCtx)

		if isPublicRoute(path) {
			next(ctx)
			logRequest(ctx, path, start)
			return
		}

		wrapped := s.extractor.Middleware(func(ctx *fasthttp.RequestCtx) {
			s.rateLimitGlobalAndIP(ctx, next)
		})
		wrapped(ctx)

		logRequest(ctx, path, start)
	}
}

func logRequest(ctx *fasthttp.RequestCtx, path string, start time.Time) {
	slog.InfoContext(ctx, "request handled",
		slog.String("method", string(ctx.Method())),
		slog.String("path", path),
		slog.Int("status", ctx.Response.StatusCode()),
		slog.Duration("duration", time.Since(start)),
		slog.String("request_id", string(ctx.Response.Header.Peek("X-Request-Id"))),
	)
}

// requestIDFrom reuses an inbound X-Request-Id (a caller or upstream proxy
// already assigned one worth correlating against) or mints a fresh v4 uuid,
// giving every request/span/log line a stable correlation id.
func requestIDFrom(ctx *fasthttp.RequestCtx) string {
	if id := string(ctx.Request.Header.Peek("X-Request-Id")); id != "" {
		return id
	}
	return uuid.NewString()
}

func isPublicRoute(path string) bool {
	switch path {
	case "/health", "/.well-known/oauth-protected-resource":
		return true
	default:
		return false
	}
}

// rateLimitGlobalAndIP enforces the two fixed HTTP-level rules applicable
// to every authenticated request, then hands off to the route handler.
// Per-server/per-tool and per-model/per-provider token limits are enforced
// deeper in the call, where the specific target is known.
func (s *Server) rateLimitGlobalAndIP(ctx *fasthttp.RequestCtx, next fasthttp.RequestHandler) {
	if s.chain == nil {
		next(ctx)
		return
	}

	ip := identity.ClientIP(
		string(ctx.Request.Header.Peek("X-Real-Ip")),
		string(ctx.Request.Header.Peek("X-Forwarded-For")),
		ctx.RemoteIP().String(),
		s.cfg.Server.XForwardedForTrustedHops,
	)

	decision, err := s.chain.CheckGlobalAndIP(ctx, ip)
	if err != nil {
		writeInternalError(ctx)
		return
	}
	if !decision.Allowed {
		writeRateLimited(ctx)
		return
	}

	next(ctx)
}
