// Package index builds a sharded inverted index over a single
// world.Snapshot and answers queries with a globally stable ordering
// identical to the snapshot's own (name, uid) order.
//
// An Index is bound 1:1 to the Snapshot it was built from: doc ids
// returned by Search are positions into that Snapshot's Items and are
// meaningless against any other snapshot.
package index

import (
	"strings"

	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/dreamware/orka/internal/shard"
	"github.com/dreamware/orka/internal/world"
)

// Hit is one matched document, referencing its position into the bound
// snapshot's Items.
type Hit struct {
	Doc   uint32
	Score float32
}

// SearchDebug carries the counters original_source's search tests exercise
// alongside hits: how many shards were visited, how many documents were
// scanned against non-posting-list predicates (free-text substrings), and
// how many matched before the limit was applied.
type SearchDebug struct {
	ShardsVisited int
	DocsScanned   int
	DocsMatched   int
}

// shardIndex holds one shard's posting lists. Every posting list is
// stored in ascending global-doc-id order, which callers get for free
// because Build visits Items (already name/uid sorted) in order.
type shardIndex struct {
	docs         []uint32 // all doc ids owned by this shard, ascending
	byNamespace  map[string][]uint32
	byLabel      map[string][]uint32 // key: "k=v"
	byAnnotation map[string][]uint32 // key: "k=v"
	byProjected  map[string][]uint32 // key: "path_id=value"
	text         map[uint32]string   // doc id -> lowercased name + projected values, for substring terms
	bytes        int
}

// Index is a sharded, queryable view of one snapshot.
type Index struct {
	snapshot  *world.Snapshot
	shards    []*shardIndex
	pathNames map[string]uint32 // configured path name -> path_id, for "<pathname>:<v>" terms
}

// Build partitions snapshot.Items across planner.NumBuckets() shards using
// planner.Plan(gvk, item.Namespace).NsBucket, and builds each shard's
// posting lists. pathNames resolves a query's "<pathname>:<v>" terms to
// the path_id a Projector assigned when building the snapshot; it may be
// nil if no projected-path queries are needed.
func Build(snapshot *world.Snapshot, gvk schema.GroupVersionKind, planner shard.Planner, pathNames map[string]uint32) *Index {
	n := planner.NumBuckets()
	if n < 1 {
		n = 1
	}
	shards := make([]*shardIndex, n)
	for i := range shards {
		shards[i] = &shardIndex{
			byNamespace:  map[string][]uint32{},
			byLabel:      map[string][]uint32{},
			byAnnotation: map[string][]uint32{},
			byProjected:  map[string][]uint32{},
			text:         map[uint32]string{},
		}
	}

	for i, item := range snapshot.Items {
		docID := uint32(i)
		key := planner.Plan(gvk, item.Namespace)
		si := shards[int(key.NsBucket)%n]

		si.docs = append(si.docs, docID)
		si.byNamespace[item.Namespace] = append(si.byNamespace[item.Namespace], docID)
		for _, kv := range item.Labels {
			k := kv.Key + "=" + kv.Value
			si.byLabel[k] = append(si.byLabel[k], docID)
			si.bytes += len(k) + 4
		}
		for _, kv := range item.Annotations {
			k := kv.Key + "=" + kv.Value
			si.byAnnotation[k] = append(si.byAnnotation[k], docID)
			si.bytes += len(k) + 4
		}

		var textParts []string
		textParts = append(textParts, item.Name)
		for _, e := range item.Projected {
			k := projectedKey(e.PathID, e.Rendered)
			si.byProjected[k] = append(si.byProjected[k], docID)
			si.bytes += len(k) + 4
			textParts = append(textParts, e.Rendered)
		}
		si.text[docID] = strings.ToLower(strings.Join(textParts, " "))
		si.bytes += len(item.Namespace) + 4
	}

	return &Index{snapshot: snapshot, shards: shards, pathNames: pathNames}
}

// Bytes reports the total approximate byte size owned by all shards'
// postings, for the index_bytes metric.
func (idx *Index) Bytes() int {
	total := 0
	for _, s := range idx.shards {
		total += s.bytes
	}
	return total
}

// Docs reports the count of documents in the bound snapshot, for the
// index_docs metric.
func (idx *Index) Docs() int {
	return len(idx.snapshot.Items)
}
