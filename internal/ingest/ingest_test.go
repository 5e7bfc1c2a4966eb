package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/dreamware/orka/internal/delta"
	"github.com/dreamware/orka/internal/world"
)

func appliedNamed(name, namespace string) delta.Delta {
	raw := &unstructured.Unstructured{Object: map[string]any{
		"metadata": map[string]any{"name": name, "namespace": namespace},
	}}
	return delta.NewApplied(delta.NewUid(), raw)
}

func TestBackendCurrentBeforeFirstPublish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, backend := Spawn(ctx, 8, world.NewBuilder(nil), nil)
	snap := backend.Current()
	assert.Equal(t, uint64(0), snap.Epoch)
	assert.Empty(t, snap.Items)
}

func TestSpawnPublishesAfterSend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender, backend := Spawn(ctx, 8, world.NewBuilder(nil), nil)

	require.NoError(t, sender.Send(ctx, appliedNamed("a", "ns")))

	require.Eventually(t, func() bool {
		return backend.Current().Epoch >= 1
	}, time.Second, time.Millisecond)

	snap := backend.Current()
	assert.Len(t, snap.Items, 1)
	assert.Equal(t, "a", snap.Items[0].Name)
}

func TestSpawnCoalescesBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender, backend := Spawn(ctx, 64, world.NewBuilder(nil), nil)

	for i := 0; i < 20; i++ {
		require.NoError(t, sender.Send(ctx, appliedNamed(fmt.Sprintf("obj-%02d", i), "ns")))
	}

	require.Eventually(t, func() bool {
		return len(backend.Current().Items) == 20
	}, time.Second, time.Millisecond)

	// A burst sent faster than the idle window should coalesce into very
	// few publish cycles rather than one epoch bump per delta.
	assert.Less(t, backend.Current().Epoch, uint64(20))
}

func TestSenderCloseTerminatesWithFinalPublish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender, backend := Spawn(ctx, 8, world.NewBuilder(nil), nil)

	require.NoError(t, sender.Send(ctx, appliedNamed("final", "ns")))
	sender.Close()

	require.Eventually(t, func() bool {
		return backend.State() == Terminated
	}, time.Second, time.Millisecond)

	snap := backend.Current()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "final", snap.Items[0].Name)
}

func TestBackpressureNoLoss(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender, backend := Spawn(ctx, 8, world.NewBuilder(nil), nil)

	const total = 2000
	uids := make([]delta.Uid, total)
	for i := 0; i < total; i++ {
		d := appliedNamed(fmt.Sprintf("obj-%d", i), "ns")
		uids[i] = d.Uid
		require.NoError(t, sender.Send(ctx, d))
	}
	sender.Close()

	require.Eventually(t, func() bool {
		return backend.State() == Terminated
	}, 5*time.Second, time.Millisecond)

	snap := backend.Current()
	assert.Len(t, snap.Items, total)
}

func TestContextCancellationTerminates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sender, backend := Spawn(ctx, 8, world.NewBuilder(nil), nil)
	require.NoError(t, sender.Send(ctx, appliedNamed("a", "ns")))
	cancel()

	require.Eventually(t, func() bool {
		return backend.State() == Terminated
	}, time.Second, time.Millisecond)
}
