package world

import (
	"testing"

	"github.com/dreamware/orka/internal/delta"
)

func TestComposeDeterministic(t *testing.T) {
	u1, u2, u3 := delta.NewUid(), delta.NewUid(), delta.NewUid()
	a := &Snapshot{Epoch: 1, Items: []LiteObj{
		{Uid: u1, Name: "alpha", Namespace: "default"},
	}}
	bSnap := &Snapshot{Epoch: 1, Items: []LiteObj{
		{Uid: u2, Name: "beta", Namespace: "default"},
		{Uid: u3, Name: "alpha", Namespace: "prod"},
	}}

	out1 := Compose(a, bSnap)
	out2 := Compose(bSnap, a)

	if len(out1) != 3 || len(out2) != 3 {
		t.Fatalf("expected 3 composed items, got %d and %d", len(out1), len(out2))
	}
	for i := range out1 {
		if out1[i].Uid != out2[i].Uid {
			t.Fatalf("compose result order depends on input order at %d: %+v vs %+v", i, out1[i], out2[i])
		}
	}
	// default ns sorts before prod; within default, alpha before beta.
	if out1[0].Namespace != "default" || out1[0].Name != "alpha" {
		t.Fatalf("unexpected compose order: %+v", out1)
	}
}

func TestComposeNilSnapshotsIgnored(t *testing.T) {
	u1 := delta.NewUid()
	a := &Snapshot{Epoch: 1, Items: []LiteObj{{Uid: u1, Name: "a"}}}
	out := Compose(nil, a, nil)
	if len(out) != 1 || out[0].Uid != u1 {
		t.Fatalf("expected nil snapshots to be skipped, got %+v", out)
	}
}
