package mcpfed

import "sync"

// toolsCache holds the last successful tools/list result per static
// downstream server. The reconnect-retry loop consults it when a server
// answers Dial but then fails a fresh tools/list — falling back to the
// last known catalog keeps that server's tools visible in search instead
// of dropping them for the length of one more retry interval.
//
// Grounded on the original Rust implementation's crates/mcp/src/cache.rs
// bounded-cache idiom, adapted from its per-(token,group) dynamic-session
// keying (ported separately as DynamicCache) to the simpler per-server key
// this reconnect path needs.
type toolsCache struct {
	mu    sync.RWMutex
	tools map[string][]Tool
}

func newToolsCache() *toolsCache {
	return &toolsCache{tools: map[string][]Tool{}}
}

func (c *toolsCache) put(server string, tools []Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools[server] = tools
}

func (c *toolsCache) get(server string) ([]Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tools[server]
	return t, ok
}

func (c *toolsCache) remove(server string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tools, server)
}
