package mcpfed

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grafbase/nexus/internal/config"
)

func TestCheckAccessNoRestrictionsAllowsAll(t *testing.T) {
	ac := config.AccessControl{}
	assert.True(t, CheckAccess(ac, "", false))
	assert.True(t, CheckAccess(ac, "any_group", true))
}

func TestCheckAccessEmptyAllowDeniesAll(t *testing.T) {
	ac := config.AccessControl{Allow: []string{}}
	assert.False(t, CheckAccess(ac, "", false))
	assert.False(t, CheckAccess(ac, "any_group", true))
}

func TestCheckAccessAllowRestrictsAccess(t *testing.T) {
	ac := config.AccessControl{Allow: []string{"premium", "enterprise"}}
	assert.False(t, CheckAccess(ac, "", false))
	assert.False(t, CheckAccess(ac, "basic", true))
	assert.True(t, CheckAccess(ac, "premium", true))
	assert.True(t, CheckAccess(ac, "enterprise", true))
}

func TestCheckAccessDenyBlocksSpecificGroups(t *testing.T) {
	ac := config.AccessControl{Deny: []string{"suspended", "trial_expired"}}
	assert.True(t, CheckAccess(ac, "", false))
	assert.True(t, CheckAccess(ac, "premium", true))
	assert.False(t, CheckAccess(ac, "suspended", true))
	assert.False(t, CheckAccess(ac, "trial_expired", true))
}

func TestCheckAccessDenyWinsOverAllow(t *testing.T) {
	ac := config.AccessControl{
		Allow: []string{"premium", "suspended"},
		Deny:  []string{"suspended"},
	}
	assert.True(t, CheckAccess(ac, "premium", true))
	assert.False(t, CheckAccess(ac, "suspended", true))
}

func TestEffectiveAccessControlToolOverridesServer(t *testing.T) {
	server := config.AccessControl{Allow: []string{"basic"}}
	tool := &config.ToolOverride{AccessControl: config.AccessControl{Allow: []string{"premium"}}}

	eff := EffectiveAccessControl(server, tool)
	assert.False(t, CheckAccess(eff, "basic", true))
	assert.True(t, CheckAccess(eff, "premium", true))

	// No override: server-level applies unchanged.
	eff = EffectiveAccessControl(server, nil)
	assert.True(t, CheckAccess(eff, "basic", true))
}
