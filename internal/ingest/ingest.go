// Package ingest runs the pipeline that receives Deltas from one or more
// producers, coalesces and folds them into a world.Builder, and publishes
// the resulting snapshot for lock-free reads.
//
// The ingest worker is the sole writer of its Builder; all state transfer
// into and out of the worker happens over channels or the published atomic
// snapshot pointer, following the same goroutine/context-cancellation
// shape as the rest of this codebase's background workers.
package ingest

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dreamware/orka/internal/delta"
	"github.com/dreamware/orka/internal/world"
)

// State names the ingest worker's position in its lifecycle.
type State int

const (
	Idle State = iota
	Draining
	Folding
	Publishing
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Draining:
		return "Draining"
	case Folding:
		return "Folding"
	case Publishing:
		return "Publishing"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

const (
	// idleWindow is how long the channel must go quiet before a pending
	// batch is considered "drained" and flushed (the idle-detection half
	// of the flush-window policy).
	idleWindow = 2 * time.Millisecond
	// maxFlushLatency bounds how long pending work may wait before an
	// unconditional publish even under sustained inbound traffic (the
	// bounded max-latency timer half of the policy).
	maxFlushLatency = 50 * time.Millisecond
)

// Sender is the producer-facing handle returned by Spawn. Multiple
// producers may hold and use a Sender concurrently.
type Sender struct {
	ch chan delta.Delta
}

// Send enqueues a delta, blocking if the channel is at capacity
// (backpressure) until capacity frees up or ctx is done.
func (s *Sender) Send(ctx context.Context, d delta.Delta) error {
	select {
	case s.ch <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals that no further deltas will be sent. The ingest worker
// drains any in-flight deltas, performs one final Publish, and then
// terminates.
func (s *Sender) Close() {
	close(s.ch)
}

// Backend exposes the most recently published snapshot to readers.
type Backend struct {
	current atomic.Pointer[world.Snapshot]
	state   atomic.Int32
	logger  *slog.Logger
}

// Current returns the most recently published snapshot. Before the first
// publish it returns an empty, zero-epoch snapshot; Current never returns
// nil and never exposes a partially-built snapshot.
func (b *Backend) Current() world.Snapshot {
	if s := b.current.Load(); s != nil {
		return *s
	}
	return world.Snapshot{}
}

// State reports the ingest worker's current lifecycle state.
func (b *Backend) State() State {
	return State(b.state.Load())
}

func (b *Backend) publish(snap world.Snapshot) {
	b.current.Store(&snap)
}

func (b *Backend) setState(s State) {
	b.state.Store(int32(s))
}

// Spawn starts the ingest worker goroutine and returns the producer-facing
// Sender and the reader-facing Backend. capacity bounds the inbound
// channel; when full, Send blocks (§4.E bounded queue).
func Spawn(ctx context.Context, capacity int, builder *world.Builder, logger *slog.Logger) (*Sender, *Backend) {
	if logger == nil {
		logger = slog.Default()
	}
	sender := &Sender{ch: make(chan delta.Delta, capacity)}
	backend := &Backend{logger: logger}
	// Before the first Publish, Current() returns the zero-value snapshot
	// (Epoch 0, no items) rather than forcing a Freeze — forcing one here
	// would burn epoch 1 on an empty builder, breaking S1's "first freeze
	// yields epoch=1 with the batch's items" expectation.

	go runWorker(ctx, sender.ch, builder, backend, logger)
	return sender, backend
}

// runWorker implements the Idle -> Draining -> Folding -> Publishing ->
// Idle state machine, terminating after one final Publish once the sender
// is closed and drained.
func runWorker(ctx context.Context, ch <-chan delta.Delta, builder *world.Builder, backend *Backend, logger *slog.Logger) {
	backend.setState(Idle)

	var pending []delta.Delta
	var idleTimer, maxTimer *time.Timer
	var idleC, maxC <-chan time.Time

	stopPending := func() {
		if idleTimer != nil {
			idleTimer.Stop()
			idleTimer, idleC = nil, nil
		}
		if maxTimer != nil {
			maxTimer.Stop()
			maxTimer, maxC = nil, nil
		}
	}

	flush := func() {
		if len(pending) == 0 {
			return
		}
		backend.setState(Folding)
		builder.Apply(pending)
		pending = pending[:0]

		backend.setState(Publishing)
		backend.publish(builder.Freeze())
		backend.setState(Idle)
		stopPending()
	}

	terminate := func(reason string) {
		flush()
		backend.setState(Terminated)
		logger.Info("ingest worker terminated", "component", "ingest", "reason", reason)
	}

	for {
		select {
		case d, ok := <-ch:
			if !ok {
				terminate("sender closed")
				return
			}
			backend.setState(Draining)
			if len(pending) == 0 {
				maxTimer = time.NewTimer(maxFlushLatency)
				maxC = maxTimer.C
			}
			pending = append(pending, d)

			if idleTimer != nil {
				idleTimer.Stop()
			}
			idleTimer = time.NewTimer(idleWindow)
			idleC = idleTimer.C

		case <-idleC:
			// Channel has gone quiet since the last delta: the batch is
			// drained, publish it now.
			flush()

		case <-maxC:
			logger.Warn("ingest flush on max-latency timer", "component", "ingest", "pending", len(pending))
			flush()

		case <-ctx.Done():
			terminate("context canceled")
			return
		}
	}
}
