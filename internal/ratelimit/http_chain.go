package ratelimit

import (
	"context"

	"github.com/grafbase/nexus/internal/config"
)

// HTTPChain enforces the fixed-order HTTP-level hierarchy: global, then
// per-IP, then (for MCP execute calls) per-server, then per-tool. Each
// level that has a configured rule is checked and, on success, consumed
// before the next level is checked. A later level's rejection does NOT
// refund units already consumed at earlier levels in the same call — by
// design, matching the specification's hierarchical semantics over a
// transactional "all or nothing" one, since refunding would require a
// second round-trip per level and the backends offer no atomic multi-key
// rollback primitive.
type HTTPChain struct {
	store  Store
	global *Rule
	perIP  *Rule
}

func NewHTTPChain(store Store, cfg config.GlobalRateLimitConfig) *HTTPChain {
	c := &HTTPChain{store: store}
	if cfg.Global != nil {
		c.global = &Rule{Limit: cfg.Global.Limit, Interval: cfg.Global.Interval}
	}
	if cfg.PerIP != nil {
		c.perIP = &Rule{Limit: cfg.PerIP.Limit, Interval: cfg.PerIP.Interval}
	}
	return c
}

// CheckGlobalAndIP runs the first two fixed levels, applicable to every
// request regardless of which endpoint it targets.
func (c *HTTPChain) CheckGlobalAndIP(ctx context.Context, ip string) (Decision, error) {
	if c.global != nil {
		d, err := c.store.CheckAndConsume(ctx, GlobalKey(), *c.global, 1)
		if err != nil || !d.Allowed {
			return d, err
		}
	}

	if c.perIP != nil && ip != "" {
		d, err := c.store.CheckAndConsume(ctx, IPKey(ip), *c.perIP, 1)
		if err != nil || !d.Allowed {
			return d, err
		}
	}

	return Decision{Allowed: true}, nil
}

// CheckLLMTokens enforces the model/provider token hierarchy ahead of an
// LLM dispatch, delegating to the package-level resolver against this
// chain's store.
func (c *HTTPChain) CheckLLMTokens(ctx context.Context, provider, model, group string, modelTree, providerTree *config.LLMRateLimitTree, inputTokens int64) (Decision, error) {
	return CheckLLMTokens(ctx, c.store, provider, model, group, modelTree, providerTree, inputTokens)
}

// CheckMCPServerAndTool runs the last two fixed levels, applicable only to
// MCP execute() calls: the server-level rule (if configured), then the
// tool-level override (if the tool has its own rate_limit; otherwise the
// tool inherits no additional limit beyond its server's).
func (c *HTTPChain) CheckMCPServerAndTool(ctx context.Context, server, tool string, serverRule, toolRule *config.RateLimitRule) (Decision, error) {
	if serverRule != nil {
		d, err := c.store.CheckAndConsume(ctx, MCPServerKey(server), Rule{Limit: serverRule.Limit, Interval: serverRule.Interval}, 1)
		if err != nil || !d.Allowed {
			return d, err
		}
	}

	if toolRule != nil {
		d, err := c.store.CheckAndConsume(ctx, MCPToolKey(server, tool), Rule{Limit: toolRule.Limit, Interval: toolRule.Interval}, 1)
		if err != nil || !d.Allowed {
			return d, err
		}
	}

	return Decision{Allowed: true}, nil
}
