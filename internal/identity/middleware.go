package identity

import (
	"strings"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("identity")

// Handler is Nexus's fasthttp middleware signature: every stage wraps the
// next one and decides whether to call it.
type Handler func(ctx *fasthttp.RequestCtx)

// identityKey is the fasthttp user-value key ClientIdentity is stashed
// under for downstream handlers and the rate limiter chain to read.
const identityKey = "nexus.identity"

type fasthttpHeaders struct{ ctx *fasthttp.RequestCtx }

func (h fasthttpHeaders) Header(name string) string {
	return string(h.ctx.Request.Header.Peek(name))
}

// Middleware validates the caller (when OAuth2 is configured) and stashes
// the resolved ClientIdentity on the request context for every handler
// downstream of it, including the rate limiter chain.
func (e *Extractor) Middleware(next Handler) Handler {
	return func(ctx *fasthttp.RequestCtx) {
		spanCtx, span := tracer.Start(ctx, "identity.Middleware")
		defer span.End()

		bearer := extractBearer(string(ctx.Request.Header.Peek("Authorization")))

		ident, err := e.ValidateAndExtract(spanCtx, bearer, fasthttpHeaders{ctx})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			writeUnauthorized(ctx)
			return
		}

		ctx.SetUserValue(identityKey, ident)
		next(ctx)
	}
}

func extractBearer(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func writeUnauthorized(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"error":{"type":"authentication_error","message":"authentication failed"}}`)
}

// FromContext retrieves the ClientIdentity stashed by Middleware. Callers
// that run unauthenticated (e.g. when OAuth2 is disabled) still get a
// zero-value ClientIdentity with an empty ClientID.
func FromContext(ctx *fasthttp.RequestCtx) ClientIdentity {
	if v, ok := ctx.UserValue(identityKey).(ClientIdentity); ok {
		return v
	}
	return ClientIdentity{}
}
