package mcpfed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolsCachePutGet(t *testing.T) {
	c := newToolsCache()

	_, ok := c.get("fs")
	assert.False(t, ok)

	tools := []Tool{{PublicName: "fs__read_file", Server: "fs"}}
	c.put("fs", tools)

	got, ok := c.get("fs")
	assert.True(t, ok)
	assert.Equal(t, tools, got)
}

func TestToolsCacheRemove(t *testing.T) {
	c := newToolsCache()
	c.put("fs", []Tool{{PublicName: "fs__read_file", Server: "fs"}})

	c.remove("fs")

	_, ok := c.get("fs")
	assert.False(t, ok)
}
