package llmrouter

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/grafbase/nexus/internal/config"
	"github.com/grafbase/nexus/internal/perrors"
)

var tracer = otel.Tracer("llmrouter")

// Router resolves a requested model string to a Provider and upstream
// model ID and dispatches unified requests to it, following the
// specification's two-path resolution: explicit "provider/model" or a bare
// name looked up in the live ModelMap snapshot.
type Router struct {
	cfg       config.LLMConfig
	providers map[string]Provider
	modelMap  *ModelMap
}

func NewRouter(cfg config.LLMConfig, providers map[string]Provider, modelMap *ModelMap) *Router {
	return &Router{cfg: cfg, providers: providers, modelMap: modelMap}
}

// resolution is the fully-resolved target of one request: which provider,
// which upstream model ID, and which header-transform rules apply.
type resolution struct {
	providerName    string
	provider        Provider
	providerConfig  *config.ProviderConfig
	upstreamModel   string
	headerTransform []config.HeaderTransformRule
}

func (r *Router) resolve(requestedModel string) (*resolution, error) {
	if idx := strings.Index(requestedModel, "/"); idx >= 0 {
		providerName, modelID := requestedModel[:idx], requestedModel[idx+1:]
		pc, ok := r.cfg.Providers[providerName]
		if !ok {
			return nil, perrors.ModelNotFound(requestedModel)
		}
		provider, ok := r.providers[providerName]
		if !ok {
			return nil, perrors.ModelNotFound(requestedModel)
		}
		upstream := modelID
		transform := pc.HeaderTransform
		if mc, ok := pc.Models[modelID]; ok {
			if mc.Rename != "" {
				upstream = mc.Rename
			}
			transform = EffectiveHeaderTransform(pc.HeaderTransform, mc.HeaderTransform)
		}
		return &resolution{
			providerName:    providerName,
			provider:        provider,
			providerConfig:  pc,
			upstreamModel:   upstream,
			headerTransform: transform,
		}, nil
	}

	rm, ok := r.modelMap.Resolve(requestedModel)
	if !ok {
		return nil, perrors.ModelNotFound(requestedModel)
	}
	pc, ok := r.cfg.Providers[rm.Provider]
	if !ok {
		return nil, perrors.ModelNotFound(requestedModel)
	}
	provider, ok := r.providers[rm.Provider]
	if !ok {
		return nil, perrors.ModelNotFound(requestedModel)
	}
	transform := pc.HeaderTransform
	if mc, ok := pc.Models[rm.UpstreamID]; ok {
		transform = EffectiveHeaderTransform(pc.HeaderTransform, mc.HeaderTransform)
	}
	return &resolution{
		providerName:    rm.Provider,
		provider:        provider,
		providerConfig:  pc,
		upstreamModel:   rm.UpstreamID,
		headerTransform: transform,
	}, nil
}

// ModelMapSnapshot exposes the current discovery snapshot for the
// OpenAI-compatible /v1/models listing.
func (r *Router) ModelMapSnapshot() *Snapshot {
	return r.modelMap.Load()
}

// ResolveRateLimitTrees returns the model-level and provider-level token
// rate-limit trees that apply to a requested model string, for the caller
// to check via ratelimit.CheckLLMTokens before dispatch.
func (r *Router) ResolveRateLimitTrees(requestedModel string) (provider, model string, modelTree, providerTree *config.LLMRateLimitTree, err error) {
	res, err := r.resolve(requestedModel)
	if err != nil {
		return "", "", nil, nil, err
	}
	// Models is keyed by the exposed model id, which differs from
	// upstreamModel when the model has a rename.
	modelKey := res.upstreamModel
	if idx := strings.Index(requestedModel, "/"); idx >= 0 {
		modelKey = requestedModel[idx+1:]
	}
	if mc, ok := res.providerConfig.Models[modelKey]; ok {
		modelTree = mc.RateLimit
	}
	providerTree = res.providerConfig.RateLimit
	return res.providerName, res.upstreamModel, modelTree, providerTree, nil
}

// ResolveProviderAndModel exposes resolution for rate-limit key derivation
// without dispatching a call.
func (r *Router) ResolveProviderAndModel(requestedModel string) (provider, model string, err error) {
	res, err := r.resolve(requestedModel)
	if err != nil {
		return "", "", err
	}
	return res.providerName, res.upstreamModel, nil
}

// Complete resolves req.Model and dispatches a non-streaming call.
// inboundHeaders and forwardedKey implement the token-forwarding and
// header-transform rules; forwardedKey is the caller's X-Provider-API-Key,
// used only when the resolved provider has forward_token enabled.
func (r *Router) Complete(ctx context.Context, req *Request, inboundHeaders http.Header, forwardedKey string) (*Response, error) {
	ctx, span := tracer.Start(ctx, "llmrouter.Complete")
	defer span.End()

	res, err := r.resolve(req.Model)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("provider", res.providerName), attribute.String("model", res.upstreamModel))

	if err := checkForwardToken(res.providerConfig, forwardedKey); err != nil {
		return nil, err
	}

	upstreamReq := *req
	upstreamReq.Model = res.upstreamModel
	upstreamReq.ExtraHeaders = http.Header{}
	ApplyHeaderTransform(res.headerTransform, inboundHeaders, upstreamReq.ExtraHeaders)
	if res.providerConfig.ForwardToken {
		upstreamReq.ForwardedKey = stripToken(forwardedKey)
	}

	out, err := res.provider.Complete(ctx, &upstreamReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, perrors.As(err)
	}
	return out, nil
}

// Stream resolves req.Model and dispatches a streaming call.
func (r *Router) Stream(ctx context.Context, req *Request, inboundHeaders http.Header, forwardedKey string) (<-chan Chunk, error) {
	ctx, span := tracer.Start(ctx, "llmrouter.Stream")
	defer span.End()

	res, err := r.resolve(req.Model)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("provider", res.providerName), attribute.String("model", res.upstreamModel))

	if err := checkForwardToken(res.providerConfig, forwardedKey); err != nil {
		return nil, err
	}

	upstreamReq := *req
	upstreamReq.Model = res.upstreamModel
	upstreamReq.Stream = true
	upstreamReq.ExtraHeaders = http.Header{}
	ApplyHeaderTransform(res.headerTransform, inboundHeaders, upstreamReq.ExtraHeaders)
	if res.providerConfig.ForwardToken {
		upstreamReq.ForwardedKey = stripToken(forwardedKey)
	}

	ch, err := res.provider.Stream(ctx, &upstreamReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, perrors.As(err)
	}
	return ch, nil
}

func checkForwardToken(pc *config.ProviderConfig, forwardedKey string) error {
	if !pc.ForwardToken {
		return nil
	}
	if stripToken(forwardedKey) == "" {
		return perrors.AuthenticationFailed("no provider API key resolved for forward_token provider", nil)
	}
	return nil
}
