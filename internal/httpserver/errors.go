package httpserver

import (
	"log/slog"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"

	"github.com/grafbase/nexus/internal/perrors"
)

type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeError formats err (any error, taxonomized via perrors.As) as the
// OpenAI-style {error:{type,message}} envelope every LLM endpoint and the
// MCP endpoint's transport-level failures share; JSON-RPC-level failures
// go through mcpfed's own Response.Error shape instead.
func writeError(ctx *fasthttp.RequestCtx, err error) {
	perr := perrors.As(err)
	perr.Print(ctx)

	env := errorEnvelope{}
	env.Error.Type = perr.Code.Kind
	env.Error.Message = perr.Message

	body, _ := sonic.Marshal(env)
	ctx.SetStatusCode(perr.HTTPStatus())
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func writeInternalError(ctx *fasthttp.RequestCtx) {
	writeError(ctx, perrors.Internal("internal error", nil))
}

func writeRateLimited(ctx *fasthttp.RequestCtx) {
	writeError(ctx, perrors.RateLimitExceeded("rate limit exceeded"))
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal response body", slog.Any("error", err))
		writeInternalError(ctx)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}
