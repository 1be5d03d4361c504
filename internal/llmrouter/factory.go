package llmrouter

import (
	"context"
	"fmt"

	"github.com/grafbase/nexus/internal/config"
	"github.com/grafbase/nexus/internal/llmrouter/anthropic"
	"github.com/grafbase/nexus/internal/llmrouter/bedrock"
	"github.com/grafbase/nexus/internal/llmrouter/google"
	"github.com/grafbase/nexus/internal/llmrouter/openai"
)

// BuildProviders constructs one llmrouter.Provider per configured provider
// entry, following curaious-uno's pkg/gateway/providers.go switch-on-kind
// factory. Bedrock construction needs a context (credential-chain lookup);
// the others are pure in-memory client setup.
func BuildProviders(ctx context.Context, cfg config.LLMConfig) (map[string]Provider, error) {
	providers := make(map[string]Provider, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		p, err := buildProvider(ctx, pc)
		if err != nil {
			return nil, fmt.Errorf("llm.providers.%s: %w", name, err)
		}
		providers[name] = p
	}
	return providers, nil
}

func buildProvider(ctx context.Context, pc *config.ProviderConfig) (Provider, error) {
	switch pc.Kind {
	case config.ProviderOpenAI:
		return openai.NewClient(pc.BaseURL, pc.APIKey, pc.RequestTimeout), nil
	case config.ProviderAnthropic:
		return anthropic.NewClient(pc.BaseURL, pc.APIKey, pc.RequestTimeout), nil
	case config.ProviderGoogle:
		return google.NewClient(pc.BaseURL, pc.APIKey, pc.RequestTimeout), nil
	case config.ProviderBedrock:
		return bedrock.NewClient(ctx, pc.AWSRegion, pc.AWSProfile, pc.RequestTimeout)
	default:
		return nil, fmt.Errorf("unknown provider kind %q", pc.Kind)
	}
}
