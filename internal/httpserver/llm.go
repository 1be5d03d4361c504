package httpserver

import (
	"bufio"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"

	"github.com/grafbase/nexus/internal/identity"
	"github.com/grafbase/nexus/internal/llmrouter"
	"github.com/grafbase/nexus/internal/perrors"
)

func inboundHeaders(ctx *fasthttp.RequestCtx) http.Header {
	h := http.Header{}
	ctx.Request.Header.VisitAll(func(k, v []byte) {
		h.Add(string(k), string(v))
	})
	return h
}

func forwardedProviderKey(ctx *fasthttp.RequestCtx) string {
	return string(ctx.Request.Header.Peek("X-Provider-API-Key"))
}

// checkLLMTokens resolves the requested model to its provider and applies
// the model/provider token hierarchy before the request is dispatched,
// same ordering CheckGlobalAndIP already applied ahead of routing.
func (s *Server) checkLLMTokens(ctx *fasthttp.RequestCtx, req *llmrouter.Request) error {
	if s.chain == nil {
		return nil
	}
	provider, model, modelTree, providerTree, err := s.router.ResolveRateLimitTrees(req.Model)
	if err != nil {
		return err
	}
	if modelTree == nil && providerTree == nil {
		return nil
	}
	ident := identity.FromContext(ctx)
	decision, err := s.chain.CheckLLMTokens(ctx, provider, model, ident.Group, modelTree, providerTree, llmrouter.EstimateInputTokens(req))
	if err != nil {
		return perrors.Internal("rate limit check failed", err)
	}
	if !decision.Allowed {
		return perrors.RateLimitExceeded("token rate limit exceeded")
	}
	return nil
}

func (s *Server) handleOpenAIChatCompletions(ctx *fasthttp.RequestCtx) {
	var req openAIChatRequest
	if err := sonic.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, perrors.InvalidRequest("malformed request body", err))
		return
	}
	if req.Model == "" {
		writeError(ctx, perrors.InvalidRequest("model is required", nil))
		return
	}

	unified := openAIRequestToUnified(&req)
	headers := inboundHeaders(ctx)
	key := forwardedProviderKey(ctx)

	if err := s.checkLLMTokens(ctx, unified); err != nil {
		writeError(ctx, err)
		return
	}

	if !req.Stream {
		resp, err := s.router.Complete(ctx, unified, headers, key)
		if err != nil {
			writeError(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, unifiedResponseToOpenAI(resp))
		return
	}

	ch, err := s.router.Stream(ctx, unified, headers, key)
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.SetContentType("text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		for chunk := range ch {
			buf, err := sonic.Marshal(unifiedChunkToOpenAI(chunk))
			if err != nil {
				slog.WarnContext(ctx, "failed to encode openai stream chunk", slog.Any("error", err))
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", buf); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		_ = w.Flush()
	})
}

func (s *Server) handleOpenAIModels(ctx *fasthttp.RequestCtx) {
	// Reachable models are whichever bare names the discovery task has
	// currently published, same source the router itself resolves against.
	snap := s.router.ModelMapSnapshot()
	list := openAIModelList{Object: "list"}
	for id := range snap.Models {
		list.Data = append(list.Data, openAIModelObj{ID: id, Object: "model"})
	}
	writeJSON(ctx, fasthttp.StatusOK, list)
}

func (s *Server) handleAnthropicMessages(ctx *fasthttp.RequestCtx) {
	var req anthropicMessagesRequest
	if err := sonic.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, perrors.InvalidRequest("malformed request body", err))
		return
	}
	if req.Model == "" {
		writeError(ctx, perrors.InvalidRequest("model is required", nil))
		return
	}

	unified := anthropicRequestToUnified(&req)
	headers := inboundHeaders(ctx)
	key := forwardedProviderKey(ctx)

	if err := s.checkLLMTokens(ctx, unified); err != nil {
		writeError(ctx, err)
		return
	}

	if !req.Stream {
		resp, err := s.router.Complete(ctx, unified, headers, key)
		if err != nil {
			writeError(ctx, err)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, unifiedResponseToAnthropic(resp))
		return
	}

	ch, err := s.router.Stream(ctx, unified, headers, key)
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.SetContentType("text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		id, model := "", req.Model
		fmt.Fprint(w, "event: message_start\n")
		fmt.Fprintf(w, "data: {\"type\":\"message_start\",\"message\":{\"id\":%q,\"model\":%q,\"role\":\"assistant\"}}\n\n", id, model)
		_ = w.Flush()

		for chunk := range ch {
			for _, ev := range anthropicChunksFromUnified(id, model, chunk) {
				buf, err := sonic.Marshal(ev.Data)
				if err != nil {
					slog.WarnContext(ctx, "failed to encode anthropic stream event", slog.Any("error", err))
					continue
				}
				fmt.Fprintf(w, "event: %s\n", ev.Event)
				fmt.Fprintf(w, "data: %s\n\n", buf)
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
}
