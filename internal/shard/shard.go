// Package shard maps a (kind, namespace) pair onto a stable ShardKey, the
// partitioning unit used by the index's per-shard posting lists.
//
// Implementations must be pure and deterministic: the same (kind,
// namespace) always plans to the same Key, for the lifetime of a planner
// instance.
package shard

import (
	"hash/fnv"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Key is a stable function of (kind, namespace) via a Planner.
type Key struct {
	GvkID    uint32
	NsBucket uint16
}

// Planner computes a Key for a given GroupVersionKind and optional
// namespace (empty string for cluster-scoped kinds).
type Planner interface {
	Plan(gvk schema.GroupVersionKind, namespace string) Key
	// NumBuckets reports the total number of distinct ns_bucket values this
	// planner can produce, so callers (the index, in particular) know how
	// many shards to allocate.
	NumBuckets() int
}

// GvkID derives a stable 32-bit identifier for a GroupVersionKind using the
// same FNV-1a construction as namespace bucketing, so callers never need a
// separate registry just to get a gvk_id.
func GvkID(gvk schema.GroupVersionKind) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(gvk.String()))
	return h.Sum32()
}

// Modulo buckets namespaces into a fixed number of shards by hashing the
// namespace with 64-bit FNV-1a, truncating to the low 16 bits, then taking
// the modulus — in that order. Buckets <= 1 always resolve to bucket 0.
type Modulo struct {
	Buckets uint16
}

// NewModulo clamps buckets into the valid u16 range; less than 1 is
// treated as 1 (a degenerate single-bucket planner, matching "buckets <= 1"
// in the plan() contract).
func NewModulo(buckets int) Modulo {
	if buckets < 1 {
		buckets = 1
	}
	if buckets > int(^uint16(0)) {
		buckets = int(^uint16(0))
	}
	return Modulo{Buckets: uint16(buckets)}
}

func (m Modulo) NumBuckets() int { return int(m.Buckets) }

func (m Modulo) Plan(gvk schema.GroupVersionKind, namespace string) Key {
	key := Key{GvkID: GvkID(gvk)}
	if m.Buckets <= 1 {
		return key
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(namespace))
	// Truncate the 64-bit hash to its low 16 bits before taking the
	// modulus: this matches the reference implementation's behavior
	// exactly, not a mod computed on the full 64-bit hash.
	key.NsBucket = uint16(h.Sum64()) % m.Buckets
	return key
}

// Exact maps namespaces directly to a bucket via an explicit table,
// falling back to bucket 0 for unlisted namespaces (including the
// cluster-scoped empty string, unless explicitly mapped).
type Exact struct {
	Buckets map[string]uint16
}

// NewExact builds an Exact planner from an explicit namespace->bucket
// table.
func NewExact(buckets map[string]uint16) Exact {
	return Exact{Buckets: buckets}
}

func (e Exact) Plan(gvk schema.GroupVersionKind, namespace string) Key {
	return Key{GvkID: GvkID(gvk), NsBucket: e.Buckets[namespace]}
}

// NumBuckets returns one more than the largest bucket value in the table
// (bucket 0 is always reachable via fallback), so a caller allocating one
// shard per bucket has enough slots for every value Plan can return.
func (e Exact) NumBuckets() int {
	max := uint16(0)
	for _, b := range e.Buckets {
		if b > max {
			max = b
		}
	}
	return int(max) + 1
}
