package ratelimit

import (
	"context"

	"github.com/grafbase/nexus/internal/config"
)

// ResolveLLMRule picks the single most specific non-nil rule among
// model+group, model, provider+group, provider, in that order. An absent
// group (no client identity resolved) skips straight past the +group
// slots. A nil result means no limit applies at any level.
func ResolveLLMRule(modelTree, providerTree *config.LLMRateLimitTree, group string) *config.RateLimitRule {
	if modelTree != nil {
		if group != "" {
			if r := modelTree.PerGroup[group]; r != nil {
				return r
			}
		}
		if modelTree.Default != nil {
			return modelTree.Default
		}
	}

	if providerTree != nil {
		if group != "" {
			if r := providerTree.PerGroup[group]; r != nil {
				return r
			}
		}
		if providerTree.Default != nil {
			return providerTree.Default
		}
	}

	return nil
}

// CheckLLMTokens resolves the applicable rule and, if one applies, consumes
// inputTokens against the (model, provider) key most specific to it. It is
// a no-op success when no rule applies at any level.
func CheckLLMTokens(ctx context.Context, store Store, provider, model, group string, modelTree, providerTree *config.LLMRateLimitTree, inputTokens int64) (Decision, error) {
	rule := ResolveLLMRule(modelTree, providerTree, group)
	if rule == nil {
		return Decision{Allowed: true}, nil
	}

	var key Key
	switch {
	case modelTree != nil && group != "" && modelTree.PerGroup[group] == rule:
		key = LLMModelPerGroupKey(model, group)
	case modelTree != nil && modelTree.Default == rule:
		key = LLMModelKey(model)
	case providerTree != nil && group != "" && providerTree.PerGroup[group] == rule:
		key = LLMProviderPerGroupKey(provider, group)
	default:
		key = LLMProviderKey(provider)
	}

	return store.CheckAndConsume(ctx, key, Rule{Limit: rule.Limit, Interval: rule.Interval}, inputTokens)
}
