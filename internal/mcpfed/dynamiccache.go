package mcpfed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/grafbase/nexus/internal/config"
)

// dynamicEntry is one cached per-(token,group) session plus its own
// group-filtered search index, built once per bearer token and reused
// across requests until it idles out.
type dynamicEntry struct {
	session *Session
	index   *Index
}

// DynamicCache holds auth-forwarding ("dynamic") downstream sessions,
// keyed by a hash of the caller's bearer token plus their group so that
// two identities never share tools filtered for the other. Unlike static
// servers' tools, dynamic tools are never placed in the shared index —
// each cache entry owns its own private one.
//
// Grounded on the original Rust implementation's crates/mcp/src/cache.rs
// DynamicDownstreamCache (mini_moka cache keyed by sha256(token)+group,
// refresh_lock to collapse concurrent misses into one dial), ported onto
// hashicorp/golang-lru/v2's expirable LRU for the idle-timeout eviction
// the pack's in-memory rate limiter also reaches for.
type DynamicCache struct {
	cfg          *config.DownstreamServer
	name         string
	headerInsert []config.HeaderInsertRule

	cache      *lru.LRU[string, *dynamicEntry]
	refreshMus sync.Map // cache key -> *sync.Mutex, collapses concurrent misses
}

func NewDynamicCache(name string, cfg *config.DownstreamServer, globalHeaderInsert []config.HeaderInsertRule, maxSize int, idleTimeout time.Duration) *DynamicCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	if idleTimeout <= 0 {
		idleTimeout = 10 * time.Minute
	}
	return &DynamicCache{
		cfg:          cfg,
		name:         name,
		headerInsert: globalHeaderInsert,
		cache:        lru.NewLRU[string, *dynamicEntry](maxSize, nil, idleTimeout),
	}
}

func cacheKey(bearer, group string) string {
	sum := sha256.Sum256([]byte(bearer))
	key := hex.EncodeToString(sum[:])
	if group != "" {
		key += "_" + group
	}
	return key
}

// GetOrCreate returns the cached session+index for (bearer, group),
// dialing and indexing on first use. Concurrent misses for the same key
// collapse onto one dial via a per-key mutex, mirroring the Rust
// implementation's refresh_lock.
func (c *DynamicCache) GetOrCreate(ctx context.Context, bearer, group string) (*Session, *Index, error) {
	key := cacheKey(bearer, group)

	if entry, ok := c.cache.Get(key); ok {
		// Re-adding renews the entry's expiry, so only idle entries expire.
		c.cache.Add(key, entry)
		return entry.session, entry.index, nil
	}

	muAny, _ := c.refreshMus.LoadOrStore(key, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()
	defer c.refreshMus.Delete(key)

	if entry, ok := c.cache.Get(key); ok {
		return entry.session, entry.index, nil
	}

	session, err := Dial(ctx, c.name, c.cfg, c.headerInsert, bearer)
	if err != nil {
		return nil, nil, err
	}

	tools, err := session.ListTools(ctx)
	if err != nil {
		_ = session.Close()
		return nil, nil, err
	}

	idx, err := NewIndex()
	if err != nil {
		_ = session.Close()
		return nil, nil, err
	}
	for _, t := range tools {
		if !CheckAccess(t.AccessControl, group, group != "") {
			continue
		}
		if err := idx.Put(t); err != nil {
			_ = session.Close()
			return nil, nil, err
		}
	}

	c.cache.Add(key, &dynamicEntry{session: session, index: idx})
	return session, idx, nil
}
