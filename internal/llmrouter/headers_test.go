package llmrouter

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grafbase/nexus/internal/config"
)

func TestApplyHeaderTransformForwardWithRename(t *testing.T) {
	inbound := http.Header{"X-Trace-Id": []string{"abc123"}}
	dst := http.Header{}
	ApplyHeaderTransform([]config.HeaderTransformRule{
		{Kind: "forward", Name: "X-Trace-Id", Rename: "X-Request-Id"},
	}, inbound, dst)
	assert.Equal(t, "abc123", dst.Get("X-Request-Id"))
	assert.Empty(t, dst.Get("X-Trace-Id"))
}

func TestApplyHeaderTransformForwardUsesDefaultWhenAbsent(t *testing.T) {
	inbound := http.Header{}
	dst := http.Header{}
	ApplyHeaderTransform([]config.HeaderTransformRule{
		{Kind: "forward", Name: "X-Env", Default: "production"},
	}, inbound, dst)
	assert.Equal(t, "production", dst.Get("X-Env"))
}

func TestApplyHeaderTransformInsert(t *testing.T) {
	dst := http.Header{}
	ApplyHeaderTransform([]config.HeaderTransformRule{
		{Kind: "insert", Name: "X-Nexus", Value: "1"},
	}, http.Header{}, dst)
	assert.Equal(t, "1", dst.Get("X-Nexus"))
}

func TestApplyHeaderTransformRemoveByPattern(t *testing.T) {
	dst := http.Header{"X-Debug-Foo": []string{"1"}, "X-Keep": []string{"1"}}
	ApplyHeaderTransform([]config.HeaderTransformRule{
		{Kind: "remove", Pattern: "^x-debug-"},
	}, http.Header{}, dst)
	assert.Empty(t, dst.Get("X-Debug-Foo"))
	assert.Equal(t, "1", dst.Get("X-Keep"))
}

func TestApplyHeaderTransformRenameDuplicateKeepsBoth(t *testing.T) {
	inbound := http.Header{"X-Client-Group": []string{"premium"}}
	dst := http.Header{}
	ApplyHeaderTransform([]config.HeaderTransformRule{
		{Kind: "rename_duplicate", Name: "X-Client-Group", Rename: "X-Tenant"},
	}, inbound, dst)
	assert.Equal(t, "premium", dst.Get("X-Client-Group"))
	assert.Equal(t, "premium", dst.Get("X-Tenant"))
}

func TestApplyHeaderTransformDeclarationOrder(t *testing.T) {
	inbound := http.Header{"X-A": []string{"1"}}
	dst := http.Header{}
	ApplyHeaderTransform([]config.HeaderTransformRule{
		{Kind: "forward", Name: "X-A"},
		{Kind: "remove", Name: "X-A"},
	}, inbound, dst)
	assert.Empty(t, dst.Get("X-A"), "remove after forward in declaration order should win")
}

func TestEffectiveHeaderTransformModelReplacesProvider(t *testing.T) {
	provider := []config.HeaderTransformRule{{Kind: "insert", Name: "X-Provider", Value: "1"}}
	model := []config.HeaderTransformRule{{Kind: "insert", Name: "X-Model", Value: "1"}}

	eff := EffectiveHeaderTransform(provider, model)
	assert.Equal(t, model, eff)

	eff = EffectiveHeaderTransform(provider, nil)
	assert.Equal(t, provider, eff)
}
