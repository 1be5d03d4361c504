package llmrouter

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/grafbase/nexus/internal/config"
)

// ResolvedModel is one entry in a ModelMap snapshot: a bare model name's
// provider and the upstream ID to send that provider.
type ResolvedModel struct {
	Provider   string
	UpstreamID string
}

// Snapshot is one immutable published view of every bare model name
// currently reachable, deduplicated by provider-configuration order.
type Snapshot struct {
	Models map[string]ResolvedModel
}

// ModelMap is the single-producer (discovery task), many-consumer (request
// handlers) published view of bare model names. Readers call Load and hold
// the returned snapshot for the duration of one request — no locking on the
// hot path, matching the specification's watch-channel publication model.
// Go has no direct equivalent of a watch channel in the standard library
// reachable from this pack, so this is built on atomic.Pointer for the
// lock-free read side plus a broadcast channel closed-and-replaced on every
// publish for callers that want to wait for the next update (used only by
// tests and the discovery loop itself, never the hot request path).
type ModelMap struct {
	snap atomic.Pointer[Snapshot]

	mu      sync.Mutex
	waiters chan struct{}
}

func NewModelMap() *ModelMap {
	m := &ModelMap{waiters: make(chan struct{})}
	m.snap.Store(&Snapshot{Models: map[string]ResolvedModel{}})
	return m
}

// Load returns the current snapshot. Never nil.
func (m *ModelMap) Load() *Snapshot { return m.snap.Load() }

// Publish installs a new snapshot and wakes any waiters.
func (m *ModelMap) Publish(s *Snapshot) {
	m.snap.Store(s)
	m.mu.Lock()
	close(m.waiters)
	m.waiters = make(chan struct{})
	m.mu.Unlock()
}

// Wait blocks until the next Publish or ctx cancellation.
func (m *ModelMap) Wait(ctx context.Context) error {
	m.mu.Lock()
	ch := m.waiters
	m.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resolve looks up a bare model name in the current snapshot.
func (m *ModelMap) Resolve(name string) (ResolvedModel, bool) {
	rm, ok := m.Load().Models[name]
	return rm, ok
}

// ListersFromProviders adapts a built provider map to the discovery task's
// narrower dependency, since every Provider satisfies modelLister but the
// map element types don't convert automatically.
func ListersFromProviders(providers map[string]Provider) map[string]modelLister {
	out := make(map[string]modelLister, len(providers))
	for name, p := range providers {
		out[name] = p
	}
	return out
}

// modelLister is the subset of Provider the discovery task needs, named
// separately so tests can supply a fake without a full Provider.
type modelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// orderedProviderNames returns every key of providers, ordered by order
// first (skipping any name in order that isn't actually configured) and
// then appending whatever's left over in sorted order. The leftover branch
// only matters for callers (tests, mainly) that build a providers map
// without going through config.LoadConfig, since LoadConfig always derives
// order from the same map's keys.
func orderedProviderNames(providers map[string]*config.ProviderConfig, order []string) []string {
	names := make([]string, 0, len(providers))
	seen := make(map[string]bool, len(providers))
	for _, name := range order {
		if _, ok := providers[name]; !ok {
			continue
		}
		names = append(names, name)
		seen[name] = true
	}
	var rest []string
	for name := range providers {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// DiscoverOnce runs one discovery pass across every provider concurrently
// and returns the deduplicated snapshot without publishing it. abortOnError
// controls whether one provider's failure aborts the whole pass (used at
// startup, via errgroup.Group) or is merely logged and skipped, keeping the
// prior snapshot's entries for that provider (used by the steady-state
// ticker). order is the provider-configuration order (config.LLMConfig's
// ProviderOrder) that the first-wins dedup below must respect; providers is
// a map purely for O(1) lookup by name and carries no order guarantee of
// its own.
func DiscoverOnce(ctx context.Context, providers map[string]*config.ProviderConfig, listers map[string]modelLister, abortOnError bool, prev *Snapshot, order []string) (*Snapshot, error) {
	type discovered struct {
		provider string
		bare     []string
		explicit []string
	}

	results := make([]discovered, len(providers))
	names := orderedProviderNames(providers, order)

	run := func(i int) error {
		name := names[i]
		pc := providers[name]
		lister := listers[name]

		bare := []string{}
		if lister != nil {
			ids, err := lister.ListModels(ctx)
			if err != nil {
				if abortOnError {
					return err
				}
				slog.WarnContext(ctx, "model discovery failed for provider, keeping prior snapshot", slog.String("provider", name), slog.Any("error", err))
				bare = previousBareModels(prev, name)
			} else {
				bare = ids
			}
		}

		if pc.ModelFilter != "" {
			re, err := regexp.Compile("(?i)" + pc.ModelFilter)
			if err == nil {
				filtered := bare[:0:0]
				for _, id := range bare {
					if re.MatchString(id) {
						filtered = append(filtered, id)
					}
				}
				bare = filtered
			}
		}

		explicit := make([]string, 0, len(pc.Models))
		for id := range pc.Models {
			explicit = append(explicit, id)
		}

		results[i] = discovered{provider: name, bare: bare, explicit: explicit}
		return nil
	}

	if abortOnError {
		g, gctx := errgroup.WithContext(ctx)
		_ = gctx
		for i := range names {
			i := i
			g.Go(func() error { return run(i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		var wg sync.WaitGroup
		for i := range names {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = run(i)
			}()
		}
		wg.Wait()
	}

	snap := &Snapshot{Models: map[string]ResolvedModel{}}
	for _, name := range names { // provider-configuration order for first-wins dedup
		var d *discovered
		for i := range results {
			if results[i].provider == name {
				d = &results[i]
				break
			}
		}
		if d == nil {
			continue
		}
		for _, id := range d.bare {
			if strings.Contains(id, "/") {
				continue
			}
			if _, exists := snap.Models[id]; exists {
				slog.WarnContext(ctx, "duplicate bare model name skipped", slog.String("model", id), slog.String("provider", d.provider))
				continue
			}
			snap.Models[id] = ResolvedModel{Provider: d.provider, UpstreamID: id}
		}
		for _, id := range d.explicit {
			bare := d.provider + "/" + id
			snap.Models[bare] = ResolvedModel{Provider: d.provider, UpstreamID: id}
		}
	}

	return snap, nil
}

func previousBareModels(prev *Snapshot, provider string) []string {
	if prev == nil {
		return nil
	}
	var out []string
	for name, rm := range prev.Models {
		if rm.Provider == provider && !strings.Contains(name, "/") {
			out = append(out, name)
		}
	}
	return out
}

// RunDiscoveryLoop performs one abort-on-failure startup discovery pass,
// then republishes on every interval tick until ctx is cancelled, each tick
// tolerating individual provider failures by keeping their prior entries.
func RunDiscoveryLoop(ctx context.Context, mm *ModelMap, providers map[string]*config.ProviderConfig, listers map[string]modelLister, interval time.Duration, order []string) error {
	snap, err := DiscoverOnce(ctx, providers, listers, true, nil, order)
	if err != nil {
		return err
	}
	mm.Publish(snap)

	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			next, err := DiscoverOnce(ctx, providers, listers, false, mm.Load(), order)
			if err != nil {
				slog.ErrorContext(ctx, "model discovery tick failed unexpectedly", slog.Any("error", err))
				continue
			}
			mm.Publish(next)
		}
	}
}
