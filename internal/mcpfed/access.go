package mcpfed

import "github.com/grafbase/nexus/internal/config"

// CheckAccess implements the two-phase ACL algorithm: deny is checked
// before allow and wins outright; an empty (but present) allow list denies
// everyone; a non-empty allow list requires group membership, and an
// absent identity fails that check. Absence of any configuration at all
// admits unconditionally.
//
// Grounded on the original Rust implementation's crates/mcp/src/access.rs
// check_access, carried over field-for-field since the spec's prose alone
// underdetermines the allow-empty / deny-after-allow ordering.
func CheckAccess(ac config.AccessControl, group string, hasIdentity bool) bool {
	if hasIdentity {
		for _, denied := range ac.Deny {
			if denied == group {
				return false
			}
		}
	}

	if ac.HasAllow() {
		if len(ac.Allow) == 0 {
			return false
		}
		if !hasIdentity {
			return false
		}
		for _, allowed := range ac.Allow {
			if allowed == group {
				return true
			}
		}
		return false
	}

	return true
}

// EffectiveAccessControl resolves the tool-level override if present
// (replacing, not merging with, the server-level policy), else the
// server-level policy.
func EffectiveAccessControl(server config.AccessControl, tool *config.ToolOverride) config.AccessControl {
	if tool != nil {
		return tool.AccessControl
	}
	return server
}

// EffectiveRateLimit resolves the tool-level rate-limit override if
// present, else the server-level rule.
func EffectiveRateLimit(server *config.RateLimitRule, tool *config.ToolOverride) *config.RateLimitRule {
	if tool != nil && tool.RateLimit != nil {
		return tool.RateLimit
	}
	return server
}
