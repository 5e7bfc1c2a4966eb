// Package project renders configured JSON paths of a raw object into a
// small ordered sequence of (path_id, rendered value) pairs.
//
// A Projector is stateless and deterministic for a given document: the same
// raw input always yields the same projected sequence, in path-declaration
// order. path_id is an opaque identifier agreed between whatever configured
// the path set and the index that indexes it — the projector never
// interprets it.
package project

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/util/jsonpath"
)

// Entry is one rendered projection: (path_id, rendered_value).
type Entry struct {
	PathID   uint32
	Rendered string
}

// PathSpec names one configured projected path. Expr is a kubectl-style
// JSONPath expression, e.g. "{.spec.containers[0].image}".
type PathSpec struct {
	PathID uint32
	Expr   string
}

// Projector renders a fixed, ordered set of paths against raw documents.
type Projector struct {
	paths   []PathSpec
	parsers []*jsonpath.JSONPath
}

// New compiles the given path specs. Paths are evaluated in the order
// given on every call to Project. An invalid JSONPath expression is a
// configuration error, returned immediately rather than surfaced per
// document.
func New(paths []PathSpec) (*Projector, error) {
	parsers := make([]*jsonpath.JSONPath, len(paths))
	for i, p := range paths {
		jp := jsonpath.New(fmt.Sprintf("path-%d", p.PathID)).AllowMissingKeys(true)
		if err := jp.Parse(p.Expr); err != nil {
			return nil, fmt.Errorf("project: compile path %d (%q): %w", p.PathID, p.Expr, err)
		}
		parsers[i] = jp
	}
	return &Projector{paths: append([]PathSpec(nil), paths...), parsers: parsers}, nil
}

// Project renders every configured path against raw. Absent or
// object-valued paths are omitted from the result, never producing a
// zero-value entry.
func (p *Projector) Project(raw *unstructured.Unstructured) []Entry {
	if raw == nil {
		return nil
	}
	out := make([]Entry, 0, len(p.paths))
	for i, spec := range p.paths {
		results, err := p.parsers[i].FindResults(raw.Object)
		if err != nil || len(results) == 0 {
			continue
		}
		rendered, ok := renderResults(results)
		if !ok {
			continue
		}
		out = append(out, Entry{PathID: spec.PathID, Rendered: rendered})
	}
	return out
}
