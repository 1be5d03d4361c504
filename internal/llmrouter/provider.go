package llmrouter

import (
	"context"
)

// Provider is one upstream model provider. Every wire-format client in
// this package (openai, anthropic, google, bedrock) implements it against
// the unified Request/Response/Chunk shape, following curaious-uno's
// pkg/gateway providers/*/client.go idiom of one struct wrapping a shared
// *http.Client plus per-provider marshal/unmarshal helpers.
type Provider interface {
	// ListModels returns the bare model IDs this provider currently
	// serves, called by the discovery task every DiscoveryInterval.
	ListModels(ctx context.Context) ([]string, error)

	// Complete performs one non-streaming call.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Stream performs one streaming call. The returned channel is closed
	// after the terminal chunk (or after an early upstream close, in
	// which case a synthetic terminal chunk is sent first) or if ctx is
	// cancelled first.
	Stream(ctx context.Context, req *Request) (<-chan Chunk, error)
}
