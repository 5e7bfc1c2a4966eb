package index

import "container/heap"

// mergeEntry is one candidate in the k-way merge: the next unmerged doc id
// from shard shrd, at position pos within that shard's matched list.
type mergeEntry struct {
	doc  uint32
	shrd int
	pos  int
}

type mergeHeap []mergeEntry

func (h mergeHeap) Len() int            { return len(h) }
func (h mergeHeap) Less(i, j int) bool  { return h[i].doc < h[j].doc }
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(mergeEntry)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// mergeShards combines each shard's independently-matched, ascending doc
// id list into one globally ordered stream. Doc ids are positions into
// items already sorted (name, uid) ascending, so merging by doc id alone
// reproduces that same global order.
func mergeShards(perShard [][]uint32) []uint32 {
	h := make(mergeHeap, 0, len(perShard))
	for s, docs := range perShard {
		if len(docs) > 0 {
			h = append(h, mergeEntry{doc: docs[0], shrd: s, pos: 0})
		}
	}
	heap.Init(&h)

	var total int
	for _, docs := range perShard {
		total += len(docs)
	}
	out := make([]uint32, 0, total)

	for h.Len() > 0 {
		top := heap.Pop(&h).(mergeEntry)
		out = append(out, top.doc)
		next := top.pos + 1
		if next < len(perShard[top.shrd]) {
			heap.Push(&h, mergeEntry{doc: perShard[top.shrd][next], shrd: top.shrd, pos: next})
		}
	}
	return out
}
