// Package integration exercises the ingest -> world -> index -> hub
// pipeline end to end, covering the multi-component scenarios spec.md §8
// describes (S1 replay, S4 multi-kind composition, S5 hub fan-out, S6
// backpressure) at a level no single package's unit tests can reach alone.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/dreamware/orka/internal/delta"
	"github.com/dreamware/orka/internal/hub"
	"github.com/dreamware/orka/internal/index"
	"github.com/dreamware/orka/internal/ingest"
	"github.com/dreamware/orka/internal/shard"
	"github.com/dreamware/orka/internal/world"
)

var podGVK = schema.GroupVersionKind{Group: "", Version: "v1", Kind: "Pod"}

func appliedPod(name, namespace string) delta.Delta {
	raw := &unstructured.Unstructured{Object: map[string]any{
		"metadata": map[string]any{"name": name, "namespace": namespace},
	}}
	return delta.NewApplied(delta.NewUid(), raw)
}

// TestEndToEndReplayAndSearch covers S1 (basic replay) plus a search over
// the resulting index, wiring ingest straight into index.Build.
func TestEndToEndReplayAndSearch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	builder := world.NewBuilder(nil)
	sender, backend := ingest.Spawn(ctx, 8, builder, nil)
	defer sender.Close()

	require.NoError(t, sender.Send(ctx, appliedPod("api-gateway", "default")))
	require.NoError(t, sender.Send(ctx, appliedPod("worker", "default")))

	require.Eventually(t, func() bool {
		return backend.Current().Epoch >= 1
	}, time.Second, 5*time.Millisecond)

	snap := backend.Current()
	require.Len(t, snap.Items, 2)

	idx := index.Build(&snap, podGVK, shard.NewModulo(2), nil)
	hits := idx.Search("gateway", 10)
	require.Len(t, hits, 1)
	require.Equal(t, "api-gateway", snap.Items[hits[0].Doc].Name)
}

// TestEndToEndMultiKindComposition covers S4: two independent pipelines
// (one per kind) compose deterministically via world.Compose.
func TestEndToEndMultiKindComposition(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	podBuilder := world.NewBuilder(nil)
	podSender, podBackend := ingest.Spawn(ctx, 8, podBuilder, nil)
	defer podSender.Close()

	deployBuilder := world.NewBuilder(nil)
	deploySender, deployBackend := ingest.Spawn(ctx, 8, deployBuilder, nil)
	defer deploySender.Close()

	require.NoError(t, podSender.Send(ctx, appliedPod("web-1", "prod")))
	require.NoError(t, deploySender.Send(ctx, appliedPod("web", "prod")))

	require.Eventually(t, func() bool { return podBackend.Current().Epoch >= 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return deployBackend.Current().Epoch >= 1 }, time.Second, 5*time.Millisecond)

	podSnap := podBackend.Current()
	deploySnap := deployBackend.Current()

	composed := world.Compose(&podSnap, &deploySnap)
	require.Len(t, composed, 2)
	// (namespace, name, uid) ascending: both are "prod", names "web" < "web-1".
	require.Equal(t, "web", composed[0].Name)
	require.Equal(t, "web-1", composed[1].Name)
}

// TestEndToEndWatchFanOut covers S5: the hub fans one upstream stream out
// to its subscribers, a subscriber attached mid-stream sees only the tail,
// and Snapshot reflects the full cache.
func TestEndToEndWatchFanOut(t *testing.T) {
	up := newRecordingUpstream()
	h := hub.New(up, nil, 0)
	defer h.Shutdown()

	sel := hub.Selector{GVK: podGVK, Namespace: "default"}
	sub1 := h.Subscribe(context.Background(), sel)

	u1 := delta.NewUid()
	u2 := delta.NewUid()
	up.emit(hub.LiteEvent{Kind: delta.Applied, Obj: world.LiteObj{Uid: u1, Name: "a"}})
	recvEvt(t, sub1)

	sub2 := h.Subscribe(context.Background(), sel)
	up.emit(hub.LiteEvent{Kind: delta.Applied, Obj: world.LiteObj{Uid: u2, Name: "b"}})
	recvEvt(t, sub1)
	require.Equal(t, u2, recvEvt(t, sub2).Obj.Uid)

	up.emit(hub.LiteEvent{Kind: delta.Deleted, Obj: world.LiteObj{Uid: u1, Name: "a"}})
	recvEvt(t, sub1)
	recvEvt(t, sub2)

	snap := h.Snapshot(sel.Key())
	require.Len(t, snap, 1)
	require.Equal(t, u2, snap[0].Uid)
}

// TestEndToEndBackpressure covers S6: a burst far exceeding the ingest
// channel's capacity is delivered with no loss once every Send succeeds.
func TestEndToEndBackpressure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	builder := world.NewBuilder(nil)
	sender, backend := ingest.Spawn(ctx, 4, builder, nil)
	defer sender.Close()

	const n = 500
	for i := 0; i < n; i++ {
		require.NoError(t, sender.Send(ctx, appliedPod("pod", "default")))
	}

	require.Eventually(t, func() bool {
		return len(backend.Current().Items) == n
	}, 2*time.Second, 5*time.Millisecond)
}

// recordingUpstream is a minimal hub.Upstream whose single channel the test
// drives directly, mirroring the real upstream's "one watch per key"
// contract without needing a live cluster.
type recordingUpstream struct {
	ch chan hub.LiteEvent
}

func newRecordingUpstream() *recordingUpstream {
	return &recordingUpstream{ch: make(chan hub.LiteEvent)}
}

func (u *recordingUpstream) Watch(ctx context.Context, sel hub.Selector) (<-chan hub.LiteEvent, error) {
	return u.ch, nil
}

func (u *recordingUpstream) emit(evt hub.LiteEvent) {
	u.ch <- evt
}

func recvEvt(t *testing.T, ch <-chan hub.LiteEvent) hub.LiteEvent {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return hub.LiteEvent{}
	}
}
