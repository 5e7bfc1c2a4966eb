// Package world folds a stream of deltas into successive, immutable
// snapshots. A Builder is the sole writer of its internal state; readers
// only ever see a published Snapshot, never the builder's live map.
package world

import (
	"sync"
	"sync/atomic"

	"golang.org/x/exp/slices"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/dreamware/orka/internal/delta"
	"github.com/dreamware/orka/internal/project"
	"github.com/dreamware/orka/internal/store"
)

// KV is one ordered key/value pair, used for labels and annotations.
type KV struct {
	Key   string
	Value string
}

// LiteObj is the projected, indexable form of an object retained in a
// Snapshot.
type LiteObj struct {
	Uid         delta.Uid
	Namespace   string // empty for cluster-scoped kinds
	Name        string
	CreationTS  int64 // unix seconds; 0 if unknown or unparsable
	Projected   []project.Entry
	Labels      []KV
	Annotations []KV
}

// Snapshot is an immutable, epoch-tagged point-in-time view of a Builder's
// state. Items are sorted ascending by (Name, Uid).
type Snapshot struct {
	Epoch uint64
	Items []LiteObj
}

// Builder folds deltas into successive Snapshots. It is safe for one
// writer goroutine to call Apply/Freeze while other goroutines read
// published Snapshot handles; the Builder itself is not safe for
// concurrent Apply/Freeze calls from multiple goroutines (the ingest
// pipeline serializes those through its single worker).
type Builder struct {
	proj *project.Projector

	mu    sync.Mutex
	live  *store.Map[delta.Uid, LiteObj]
	epoch uint64

	parseErrors atomic.Uint64
}

// NewBuilder returns a Builder that renders projected paths with proj.
// proj may be nil, in which case every LiteObj has an empty Projected
// sequence.
func NewBuilder(proj *project.Projector) *Builder {
	return &Builder{
		proj: proj,
		live: store.New[delta.Uid, LiteObj](),
	}
}

// Apply folds one batch of deltas in source order: Applied parses raw into
// a LiteObj and inserts/replaces it under its uid; Deleted removes any
// entry for uid (a no-op if absent). A delta whose raw document fails to
// parse is skipped and counted via ParseErrors; it does not abort the
// batch.
func (b *Builder) Apply(batch []delta.Delta) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range batch {
		switch d.Kind {
		case delta.Deleted:
			b.live.Delete(d.Uid)
		case delta.Applied:
			obj, ok := b.parse(d.Uid, d.Raw)
			if !ok {
				b.parseErrors.Add(1)
				continue
			}
			b.live.Put(d.Uid, obj)
		}
	}
}

// ParseErrors reports the running count of Applied deltas whose raw
// document failed to parse (§4.A: absent/empty name).
func (b *Builder) ParseErrors() uint64 {
	return b.parseErrors.Load()
}

// Freeze atomically increments the epoch and returns an immutable Snapshot
// of the builder's current state, items sorted ascending by (Name, Uid).
// Successive calls on the same Builder yield strictly increasing epochs,
// starting at 1.
func (b *Builder) Freeze() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.epoch++
	items := make([]LiteObj, 0, b.live.Len())
	b.live.Each(func(_ delta.Uid, obj LiteObj) {
		items = append(items, obj)
	})
	slices.SortFunc(items, func(a, b LiteObj) int {
		if a.Name != b.Name {
			if a.Name < b.Name {
				return -1
			}
			return 1
		}
		if a.Uid.Less(b.Uid) {
			return -1
		}
		if b.Uid.Less(a.Uid) {
			return 1
		}
		return 0
	})
	return Snapshot{Epoch: b.epoch, Items: items}
}

// parse implements the §4.A/§4.D raw-document parsing rules. Go's
// map[string]any decode of a JSON object does not retain source key
// order, so labels/annotations are emitted in key-ascending order instead
// — still deterministic, just not literally "source order".
func (b *Builder) parse(uid delta.Uid, raw *unstructured.Unstructured) (LiteObj, bool) {
	if raw == nil {
		return LiteObj{}, false
	}
	name := raw.GetName()
	if name == "" {
		return LiteObj{}, false
	}

	obj := LiteObj{
		Uid:       uid,
		Name:      name,
		Namespace: raw.GetNamespace(),
	}
	if ts := raw.GetCreationTimestamp(); !ts.IsZero() {
		obj.CreationTS = ts.Unix()
	}
	obj.Labels = stringEntriesAt(raw.Object, "metadata", "labels")
	obj.Annotations = stringEntriesAt(raw.Object, "metadata", "annotations")
	if b.proj != nil {
		obj.Projected = b.proj.Project(raw)
	}
	return obj, true
}

// stringEntriesAt walks obj[path...] expecting a map[string]any, and
// returns its entries in key-ascending order, skipping any non-string
// value rather than dropping the whole map (§4.A: "non-string label/
// annotation values → omitted").
func stringEntriesAt(obj map[string]any, path ...string) []KV {
	cur := any(obj)
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[p]
		if !ok {
			return nil
		}
	}
	m, ok := cur.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if _, ok := v.(string); ok {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	slices.Sort(keys)
	out := make([]KV, 0, len(keys))
	for _, k := range keys {
		out = append(out, KV{Key: k, Value: m[k].(string)})
	}
	return out
}
