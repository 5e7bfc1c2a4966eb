// Package hub serves N in-process subscribers from exactly one upstream
// watch per logical selector. A selector is (kind, namespace); a hub key is
// the canonical string derived from it. The hub caches the last known value
// per uid for each key so a newly attached subscriber can seed itself via
// Snapshot before catching up on the live broadcast.
package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/exp/slices"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/dreamware/orka/internal/delta"
	"github.com/dreamware/orka/internal/world"
)

// Selector identifies one watch stream: a GVK and an optional namespace.
// An empty Namespace means cluster-scoped / all-namespaces, per the caller's
// convention.
type Selector struct {
	GVK       schema.GroupVersionKind
	Namespace string
}

// Key renders the selector's canonical hub key, "<kind>|<namespace>".
func (s Selector) Key() string {
	return fmt.Sprintf("%s|%s", s.GVK.Kind, s.Namespace)
}

// LiteEvent is one live change fanned out to subscribers.
type LiteEvent struct {
	Kind delta.Kind
	Obj  world.LiteObj
}

// Upstream starts watching a selector and delivers events on the returned
// channel until ctx is canceled or the watch itself fails, at which point
// the channel is closed. Implementations own their own reconnection below
// this boundary if they want transparent resumption; the hub's supervisor
// only retries the call itself after a failure.
type Upstream interface {
	Watch(ctx context.Context, sel Selector) (<-chan LiteEvent, error)
}

const (
	defaultCapacity = 2048
	retryBackoff    = 2 * time.Second
	maxRetryBackoff = 30 * time.Second
)

// WatchHub is the process-wide singleton described by the design: one
// broadcaster and one cache per key, at most one upstream subscription per
// key. Callers own the instance (constructed once at process start) rather
// than reaching for a package-level singleton, so it can be wired through
// dependency injection and torn down in tests.
type WatchHub struct {
	mu           sync.Mutex
	broadcasters map[string]*broadcaster
	cache        map[string]map[delta.Uid]world.LiteObj
	cancel       map[string]context.CancelFunc

	upstream Upstream
	logger   *slog.Logger
	capacity int
	wg       sync.WaitGroup
}

// New constructs an empty hub. upstream is first consulted for a key the
// first time that key is subscribed to, and again by the key's supervisor
// whenever a previous watch failed or ended. capacity sizes every per-key
// broadcaster (config.Config.BroadcastCapacity, §6); a value below 1 falls
// back to defaultCapacity.
func New(upstream Upstream, logger *slog.Logger, capacity int) *WatchHub {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity < 1 {
		capacity = defaultCapacity
	}
	return &WatchHub{
		broadcasters: make(map[string]*broadcaster),
		cache:        make(map[string]map[delta.Uid]world.LiteObj),
		cancel:       make(map[string]context.CancelFunc),
		upstream:     upstream,
		logger:       logger,
		capacity:     capacity,
	}
}

// Subscribe returns a receiver for sel's key. The first subscriber for a
// key (the slow path) installs a broadcaster and starts the per-key
// upstream supervisor; every subsequent subscriber (the fast path) just
// attaches to the existing broadcaster.
func (h *WatchHub) Subscribe(ctx context.Context, sel Selector) <-chan LiteEvent {
	key := sel.Key()

	h.mu.Lock()
	b, ok := h.broadcasters[key]
	if ok {
		h.mu.Unlock()
		return b.subscribe()
	}

	b = newBroadcaster(h.capacity)
	h.broadcasters[key] = b
	h.cache[key] = make(map[delta.Uid]world.LiteObj)
	supCtx, cancel := context.WithCancel(context.Background())
	h.cancel[key] = cancel
	h.mu.Unlock()

	h.wg.Add(1)
	go h.runUpstream(supCtx, key, sel, b)

	return b.subscribe()
}

// Snapshot returns the hub's cached values for key, sorted by uid ascending;
// callers needing another order sort as needed. It is the seed a newly attached subscriber uses before it
// starts reading the live channel returned by Subscribe.
func (h *WatchHub) Snapshot(key string) []world.LiteObj {
	h.mu.Lock()
	defer h.mu.Unlock()

	m := h.cache[key]
	out := make([]world.LiteObj, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	// Unordered per the design ("callers sort as needed"); sorting here by
	// uid only gives callers a stable order to diff against across calls.
	slices.SortFunc(out, func(a, b world.LiteObj) int {
		if a.Uid.Less(b.Uid) {
			return -1
		}
		if b.Uid.Less(a.Uid) {
			return 1
		}
		return 0
	})
	return out
}

// Prime bulk-inserts items into key's cache, e.g. from an initial list
// fetched before the live watch catches up.
func (h *WatchHub) Prime(key string, items []world.LiteObj) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.cache[key]
	if !ok {
		m = make(map[delta.Uid]world.LiteObj)
		h.cache[key] = m
	}
	for _, it := range items {
		m[it.Uid] = it
	}
}

// Shutdown cancels every per-key upstream supervisor and waits for them to
// return. Existing subscriber channels are left open but will receive no
// further events.
func (h *WatchHub) Shutdown() {
	h.mu.Lock()
	for _, cancel := range h.cancel {
		cancel()
	}
	h.mu.Unlock()
	h.wg.Wait()
}

// runUpstream is the per-key supervisor: it starts the upstream watch,
// folds events into the cache, and rebroadcasts them, retrying with a
// capped backoff if the upstream call itself fails. Dropping the last
// receiver does not stop this loop; only Shutdown or ctx cancellation does.
func (h *WatchHub) runUpstream(ctx context.Context, key string, sel Selector, b *broadcaster) {
	defer h.wg.Done()

	backoff := retryBackoff
	for {
		events, err := h.upstream.Watch(ctx, sel)
		if err != nil {
			h.logger.Warn("hub upstream watch failed", "component", "hub", "key", key, "err", err)
			select {
			case <-time.After(backoff):
				backoff *= 2
				if backoff > maxRetryBackoff {
					backoff = maxRetryBackoff
				}
				continue
			case <-ctx.Done():
				return
			}
		}
		backoff = retryBackoff

		if !h.drain(ctx, key, events, b) {
			return
		}
		// events closed without ctx cancellation: upstream ended: retry.
		h.logger.Warn("hub upstream watch ended, retrying", "component", "hub", "key", key)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
	}
}

// drain folds events into the cache and rebroadcasts them until events
// closes or ctx is canceled. It returns false if ctx was canceled (the
// caller should stop the supervisor entirely).
func (h *WatchHub) drain(ctx context.Context, key string, events <-chan LiteEvent, b *broadcaster) bool {
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return true
			}
			h.fold(key, evt)
			b.publish(evt)
		case <-ctx.Done():
			return false
		}
	}
}

func (h *WatchHub) fold(key string, evt LiteEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.cache[key]
	if !ok {
		m = make(map[delta.Uid]world.LiteObj)
		h.cache[key] = m
	}
	switch evt.Kind {
	case delta.Applied:
		m[evt.Obj.Uid] = evt.Obj
	case delta.Deleted:
		delete(m, evt.Obj.Uid)
	}
}
