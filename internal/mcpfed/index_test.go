package mcpfed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexSearchFindsByKeyword(t *testing.T) {
	idx, err := NewIndex()
	require.NoError(t, err)

	require.NoError(t, idx.Put(Tool{
		PublicName:  "fs__read_file",
		Server:      "fs",
		Description: "Read the contents of a file from the local filesystem",
		InputSchema: []byte(`{"type":"object","properties":{"path":{"type":"string"}}}`),
	}))
	require.NoError(t, idx.Put(Tool{
		PublicName:  "web__fetch_url",
		Server:      "web",
		Description: "Fetch a URL over HTTP",
	}))

	results, err := idx.Search([]string{"read", "file"}, func(Tool) bool { return true })
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "fs__read_file", results[0].Name)
}

func TestIndexSearchFuzzyToleratesTypo(t *testing.T) {
	idx, err := NewIndex()
	require.NoError(t, err)

	require.NoError(t, idx.Put(Tool{
		PublicName:  "fs__read_file",
		Server:      "fs",
		Description: "Read the contents of a file",
	}))

	results, err := idx.Search([]string{"raed"}, func(Tool) bool { return true })
	require.NoError(t, err)
	assert.NotEmpty(t, results, "single-edit typo should still match via fuzzy query")
}

func TestIndexSearchRespectsAccessibleFilter(t *testing.T) {
	idx, err := NewIndex()
	require.NoError(t, err)

	require.NoError(t, idx.Put(Tool{PublicName: "a__x", Server: "a", Description: "read data"}))
	require.NoError(t, idx.Put(Tool{PublicName: "b__y", Server: "b", Description: "read data"}))

	results, err := idx.Search([]string{"read"}, func(t Tool) bool { return t.Server == "a" })
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "a__x", r.Name)
	}
}

func TestIndexSearchAnnotatesServer(t *testing.T) {
	idx, err := NewIndex()
	require.NoError(t, err)

	require.NoError(t, idx.Put(Tool{PublicName: "fs__read_file", Server: "fs", Description: "read a file"}))

	results, err := idx.Search([]string{"read"}, func(Tool) bool { return true })
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "fs", results[0].Server)
}

func TestGroupByServerPreservesRankOrderAcrossAndWithinGroups(t *testing.T) {
	results := []SearchResult{
		{Name: "fs__read_file", Server: "fs"},
		{Name: "web__fetch_url", Server: "web"},
		{Name: "fs__write_file", Server: "fs"},
	}

	groups := GroupByServer(results)
	require.Len(t, groups, 2)
	assert.Equal(t, "fs", groups[0].Server)
	require.Len(t, groups[0].Results, 2)
	assert.Equal(t, "fs__read_file", groups[0].Results[0].Name)
	assert.Equal(t, "fs__write_file", groups[0].Results[1].Name)
	assert.Equal(t, "web", groups[1].Server)
}

func TestIndexSuggestFuzzyMatchesToolNames(t *testing.T) {
	idx, err := NewIndex()
	require.NoError(t, err)

	require.NoError(t, idx.Put(Tool{PublicName: "fs__read_file", Server: "fs", Description: "read a file"}))

	suggestions := idx.Suggest("fs__read_fle", 5)
	assert.Contains(t, suggestions, "fs__read_file")
}

func TestIndexRemoveServer(t *testing.T) {
	idx, err := NewIndex()
	require.NoError(t, err)

	require.NoError(t, idx.Put(Tool{PublicName: "fs__read_file", Server: "fs", Description: "read a file"}))
	require.NoError(t, idx.RemoveServer("fs"))

	_, ok := idx.Lookup("fs__read_file")
	assert.False(t, ok)
}
