package project

import (
	"testing"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func obj(data map[string]any) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: data}
}

func TestProjectScalarsAndArrays(t *testing.T) {
	p, err := New([]PathSpec{
		{PathID: 1, Expr: "{.spec.image}"},
		{PathID: 2, Expr: "{.spec.replicas}"},
		{PathID: 3, Expr: "{.spec.ready}"},
		{PathID: 4, Expr: "{.spec.ports}"},
		{PathID: 5, Expr: "{.spec.missing}"},
		{PathID: 6, Expr: "{.spec.nested}"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	doc := obj(map[string]any{
		"spec": map[string]any{
			"image":    "nginx:latest",
			"replicas": int64(3),
			"ready":    true,
			"ports":    []any{int64(80), int64(443)},
			"nested":   map[string]any{"a": "b"},
		},
	})

	entries := p.Project(doc)
	want := map[uint32]string{
		1: "nginx:latest",
		2: "3",
		3: "true",
		4: "80,443",
	}
	got := map[uint32]string{}
	for _, e := range entries {
		got[e.PathID] = e.Rendered
	}
	for id, val := range want {
		if got[id] != val {
			t.Errorf("path %d: got %q, want %q", id, got[id], val)
		}
	}
	if _, ok := got[5]; ok {
		t.Errorf("path 5 (missing) should be omitted, got %q", got[5])
	}
	if _, ok := got[6]; ok {
		t.Errorf("path 6 (object-valued) should be omitted, got %q", got[6])
	}
}

func TestProjectDeterministicOrder(t *testing.T) {
	p, err := New([]PathSpec{
		{PathID: 2, Expr: "{.b}"},
		{PathID: 1, Expr: "{.a}"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	doc := obj(map[string]any{"a": "x", "b": "y"})
	entries := p.Project(doc)
	if len(entries) != 2 || entries[0].PathID != 2 || entries[1].PathID != 1 {
		t.Fatalf("expected declaration order [2,1], got %+v", entries)
	}
}

func TestProjectNilDoc(t *testing.T) {
	p, err := New([]PathSpec{{PathID: 1, Expr: "{.a}"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := p.Project(nil); got != nil {
		t.Fatalf("expected nil result for nil doc, got %+v", got)
	}
}

func TestNewInvalidPath(t *testing.T) {
	_, err := New([]PathSpec{{PathID: 1, Expr: "{.a"}})
	if err == nil {
		t.Fatalf("expected error for malformed JSONPath expression")
	}
}
