// Package shard: shard planning.
//
// # Overview
//
// A shard Key partitions the cluster's objects for the index: its ns_bucket
// decides which posting-list shard a document's entries land in. The world
// builder does not shard its state.
//
// # Key
//
// A Key is (gvk_id, ns_bucket). gvk_id is derived once per
// GroupVersionKind via GvkID and is independent of the chosen Planner.
// ns_bucket partitions namespaces and is Planner-specific.
//
// # Planners
//
// Modulo hashes the namespace with 64-bit FNV-1a, truncates to the low 16
// bits, then reduces modulo the bucket count — in that exact order, so the
// bucket a namespace lands in is stable across process restarts and
// independent of bucket count only when the count itself is unchanged.
//
// Exact looks namespaces up in a fixed table, useful when an operator
// wants specific namespaces pinned to specific shards (e.g. co-locating a
// noisy namespace with extra capacity). Namespaces absent from the table
// fall back to bucket 0.
//
// # Invariants
//
// Plan is pure: the same (gvk, namespace) always yields the same Key for
// the lifetime of a Planner. Callers needing to reshard (change bucket
// count) must rebuild state from a fresh Snapshot rather than mutate a
// live Planner's bucket count in place.
package shard
