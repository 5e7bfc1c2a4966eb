package world

import "golang.org/x/exp/slices"

// Compose concatenates the items of several independent snapshots (e.g.
// one pipeline per kind) and sorts the result by (Namespace, Name, Uid)
// ascending, matching the composition rule independent per-kind pipelines
// must satisfy for a deterministic combined view.
//
// Compose does not deduplicate: callers composing snapshots whose uid
// spaces may overlap must ensure that invariant upstream, since each
// source snapshot already guarantees per-uid uniqueness on its own.
func Compose(snapshots ...*Snapshot) []LiteObj {
	var total int
	for _, s := range snapshots {
		if s != nil {
			total += len(s.Items)
		}
	}
	out := make([]LiteObj, 0, total)
	for _, s := range snapshots {
		if s == nil {
			continue
		}
		out = append(out, s.Items...)
	}
	slices.SortFunc(out, func(a, b LiteObj) int {
		if a.Namespace != b.Namespace {
			if a.Namespace < b.Namespace {
				return -1
			}
			return 1
		}
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
	return out
}
