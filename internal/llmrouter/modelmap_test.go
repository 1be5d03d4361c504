package llmrouter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafbase/nexus/internal/config"
)

type fakeLister struct {
	ids []string
	err error
}

func (f *fakeLister) ListModels(ctx context.Context) ([]string, error) {
	return f.ids, f.err
}

func TestDiscoverOnceMergesBareAndExplicitModels(t *testing.T) {
	providers := map[string]*config.ProviderConfig{
		"openai": {Name: "openai", Models: map[string]*config.ModelConfig{"gpt-4o-mini": {}}},
	}
	listers := map[string]modelLister{"openai": &fakeLister{ids: []string{"gpt-4o", "gpt-4o-mini"}}}

	snap, err := DiscoverOnce(context.Background(), providers, listers, true, nil, []string{"openai"})
	require.NoError(t, err)

	assert.Equal(t, ResolvedModel{Provider: "openai", UpstreamID: "gpt-4o"}, snap.Models["gpt-4o"])
	assert.Equal(t, ResolvedModel{Provider: "openai", UpstreamID: "gpt-4o-mini"}, snap.Models["gpt-4o-mini"])
	assert.Equal(t, ResolvedModel{Provider: "openai", UpstreamID: "gpt-4o-mini"}, snap.Models["openai/gpt-4o-mini"])
}

func TestDiscoverOnceAppliesModelFilterCaseInsensitively(t *testing.T) {
	providers := map[string]*config.ProviderConfig{
		"openai": {Name: "openai", ModelFilter: "^GPT-4"},
	}
	listers := map[string]modelLister{"openai": &fakeLister{ids: []string{"gpt-4o", "text-embedding-3-small"}}}

	snap, err := DiscoverOnce(context.Background(), providers, listers, true, nil, []string{"openai"})
	require.NoError(t, err)

	_, hasGPT := snap.Models["gpt-4o"]
	_, hasEmbedding := snap.Models["text-embedding-3-small"]
	assert.True(t, hasGPT)
	assert.False(t, hasEmbedding)
}

func TestDiscoverOnceDedupesByProviderConfigurationOrder(t *testing.T) {
	providers := map[string]*config.ProviderConfig{
		"a": {Name: "a"},
		"b": {Name: "b"},
	}
	listers := map[string]modelLister{
		"a": &fakeLister{ids: []string{"shared-model"}},
		"b": &fakeLister{ids: []string{"shared-model"}},
	}

	snap, err := DiscoverOnce(context.Background(), providers, listers, true, nil, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "a", snap.Models["shared-model"].Provider)
}

func TestDiscoverOnceDedupeFollowsDeclaredOrderNotMapOrder(t *testing.T) {
	providers := map[string]*config.ProviderConfig{
		"a": {Name: "a"},
		"b": {Name: "b"},
	}
	listers := map[string]modelLister{
		"a": &fakeLister{ids: []string{"shared-model"}},
		"b": &fakeLister{ids: []string{"shared-model"}},
	}

	snap, err := DiscoverOnce(context.Background(), providers, listers, true, nil, []string{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, "b", snap.Models["shared-model"].Provider)
}

func TestDiscoverOnceAbortOnErrorPropagatesFailure(t *testing.T) {
	providers := map[string]*config.ProviderConfig{
		"broken": {Name: "broken"},
	}
	listers := map[string]modelLister{"broken": &fakeLister{err: errors.New("upstream down")}}

	_, err := DiscoverOnce(context.Background(), providers, listers, true, nil, []string{"broken"})
	assert.Error(t, err)
}

func TestDiscoverOnceToleratesFailureAndKeepsPriorSnapshot(t *testing.T) {
	providers := map[string]*config.ProviderConfig{
		"broken": {Name: "broken"},
	}
	prev := &Snapshot{Models: map[string]ResolvedModel{
		"old-model": {Provider: "broken", UpstreamID: "old-model"},
	}}
	listers := map[string]modelLister{"broken": &fakeLister{err: errors.New("upstream down")}}

	snap, err := DiscoverOnce(context.Background(), providers, listers, false, prev, []string{"broken"})
	require.NoError(t, err)
	assert.Equal(t, ResolvedModel{Provider: "broken", UpstreamID: "old-model"}, snap.Models["old-model"])
}

func TestModelMapPublishWakesWaiters(t *testing.T) {
	mm := NewModelMap()
	done := make(chan struct{})
	go func() {
		_ = mm.Wait(context.Background())
		close(done)
	}()

	mm.Publish(&Snapshot{Models: map[string]ResolvedModel{"m": {Provider: "p", UpstreamID: "m"}}})

	<-done
	rm, ok := mm.Resolve("m")
	assert.True(t, ok)
	assert.Equal(t, "p", rm.Provider)
}
