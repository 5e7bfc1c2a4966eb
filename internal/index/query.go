package index

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// term is one parsed query clause.
type term struct {
	kind  termKind
	key   string // label/annotation key, or resolved "<path_id>" for projected terms
	value string
}

type termKind int

const (
	termNamespace termKind = iota
	termLabel
	termAnnotation
	termProjected
	termFreeText
)

func projectedKey(pathID uint32, value string) string {
	return fmt.Sprintf("%d=%s", pathID, value)
}

// parseQuery splits a single-line, whitespace-separated query into terms,
// resolving any "<pathname>:<v>" term against pathNames. An empty query
// (or one of only whitespace) produces no terms, matching everything.
func (idx *Index) parseQuery(query string) []term {
	fields := strings.Fields(query)
	terms := make([]term, 0, len(fields))
	for _, f := range fields {
		switch {
		case strings.HasPrefix(f, "ns:"):
			terms = append(terms, term{kind: termNamespace, value: f[len("ns:"):]})
		case strings.HasPrefix(f, "label:"):
			k, v := splitKV(f[len("label:"):])
			terms = append(terms, term{kind: termLabel, key: k, value: v})
		case strings.HasPrefix(f, "anno:"):
			k, v := splitKV(f[len("anno:"):])
			terms = append(terms, term{kind: termAnnotation, key: k, value: v})
		default:
			if i := strings.IndexByte(f, ':'); i >= 0 {
				name, v := f[:i], f[i+1:]
				if pathID, ok := idx.pathNames[name]; ok {
					terms = append(terms, term{kind: termProjected, key: fmt.Sprintf("%d", pathID), value: v})
					continue
				}
			}
			terms = append(terms, term{kind: termFreeText, value: strings.ToLower(f)})
		}
	}
	return terms
}

func splitKV(s string) (string, string) {
	if i := strings.IndexByte(s, '='); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

// Search evaluates query against the bound snapshot and returns up to
// limit hits ordered by (name, uid) ascending, matching the snapshot's own
// item order.
func (idx *Index) Search(query string, limit int) []Hit {
	hits, _ := idx.SearchWithDebug(query, limit)
	return hits
}

// SearchWithDebug behaves like Search but also returns counters describing
// the work done, mirroring the reference implementation's debug-augmented
// search result.
func (idx *Index) SearchWithDebug(query string, limit int) ([]Hit, SearchDebug) {
	terms := idx.parseQuery(query)

	perShard := make([][]uint32, len(idx.shards))
	scannedPerShard := make([]int, len(idx.shards))
	visitedPerShard := make([]bool, len(idx.shards))

	g, _ := errgroup.WithContext(context.Background())
	for i, si := range idx.shards {
		i, si := i, si
		if len(si.docs) == 0 {
			continue
		}
		g.Go(func() error {
			matched, scanned := evalShard(si, terms)
			// Each goroutine only ever writes its own index i, so these
			// slice slots need no synchronization — unlike a single shared
			// counter, which concurrent shards would corrupt.
			perShard[i] = matched
			scannedPerShard[i] = scanned
			visitedPerShard[i] = true
			return nil
		})
	}
	_ = g.Wait() // evalShard never errors

	var dbg SearchDebug
	for i := range idx.shards {
		dbg.DocsScanned += scannedPerShard[i]
		dbg.DocsMatched += len(perShard[i])
		if visitedPerShard[i] {
			dbg.ShardsVisited++
		}
	}

	merged := mergeShards(perShard)
	if limit >= 0 && limit < len(merged) {
		merged = merged[:limit]
	}

	hits := make([]Hit, len(merged))
	for i, doc := range merged {
		hits[i] = Hit{Doc: doc, Score: 1.0}
	}
	return hits, dbg
}

// evalShard applies every typed-filter term as a sorted-list intersection,
// then filters the remaining candidates by any free-text terms (a
// substring scan, since there is no posting list to intersect against).
// It returns the matched doc ids in ascending order and how many
// candidates were scanned for free-text matching.
func evalShard(si *shardIndex, terms []term) ([]uint32, int) {
	candidates := si.docs
	var freeText []string

	for _, t := range terms {
		switch t.kind {
		case termNamespace:
			candidates = intersectSorted(candidates, si.byNamespace[t.value])
		case termLabel:
			candidates = intersectSorted(candidates, si.byLabel[t.key+"="+t.value])
		case termAnnotation:
			candidates = intersectSorted(candidates, si.byAnnotation[t.key+"="+t.value])
		case termProjected:
			candidates = intersectSorted(candidates, si.byProjected[t.key+"="+t.value])
		case termFreeText:
			freeText = append(freeText, t.value)
		}
	}

	if len(freeText) == 0 {
		out := make([]uint32, len(candidates))
		copy(out, candidates)
		return out, 0
	}
	scanned := len(candidates)

	out := make([]uint32, 0, len(candidates))
	for _, doc := range candidates {
		text := si.text[doc]
		matchesAll := true
		for _, ft := range freeText {
			if !strings.Contains(text, ft) {
				matchesAll = false
				break
			}
		}
		if matchesAll {
			out = append(out, doc)
		}
	}
	return out, scanned
}

// intersectSorted merges two ascending-sorted doc id lists, keeping only
// ids present in both.
func intersectSorted(a, b []uint32) []uint32 {
	out := make([]uint32, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}
