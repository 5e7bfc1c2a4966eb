package main

import (
	"context"
	"sync"

	"github.com/dreamware/orka/internal/delta"
	"github.com/dreamware/orka/internal/hub"
	"github.com/dreamware/orka/internal/world"
)

// upstreamBridge implements hub.Upstream by replaying the same deltas
// /ingest hands to the ingest pipeline as hub.LiteEvents, one channel per
// hub key. It stands in for a real upstream watch (e.g. a Kubernetes
// informer) in this demo host.
type upstreamBridge struct {
	mu   sync.Mutex
	subs map[string]chan hub.LiteEvent
}

func newUpstreamBridge() *upstreamBridge {
	return &upstreamBridge{subs: make(map[string]chan hub.LiteEvent)}
}

// Watch implements hub.Upstream. The hub calls this the first time a key is
// subscribed to, and again if a previous watch failed or ended; every call
// for the same key returns the same channel.
func (b *upstreamBridge) Watch(ctx context.Context, sel hub.Selector) (<-chan hub.LiteEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subs[sel.Key()]
	if !ok {
		ch = make(chan hub.LiteEvent, 64)
		b.subs[sel.Key()] = ch
	}
	return ch, nil
}

// forward converts d into a LiteEvent and delivers it, non-blocking, to
// whichever channel Watch handed out for sel's key (a no-op if nothing has
// subscribed to that key yet).
func (b *upstreamBridge) forward(sel hub.Selector, d delta.Delta) {
	b.mu.Lock()
	ch, ok := b.subs[sel.Key()]
	b.mu.Unlock()
	if !ok {
		return
	}

	evt := hub.LiteEvent{Kind: d.Kind}
	if d.Kind == delta.Applied && d.Raw != nil {
		evt.Obj = world.LiteObj{
			Uid:       d.Uid,
			Name:      d.Raw.GetName(),
			Namespace: d.Raw.GetNamespace(),
		}
	} else {
		evt.Obj = world.LiteObj{Uid: d.Uid}
	}

	select {
	case ch <- evt:
	default:
	}
}
