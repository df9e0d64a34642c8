package router

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ryandielhenn/r2rmesh/pkg/frame"
)

// startGate is a single-shot readiness signal. While armed, the event loop
// discards everything but the bootstrap message.
type startGate struct {
	waiting  atomic.Bool
	once     sync.Once
	received chan struct{}
}

func newStartGate() *startGate {
	return &startGate{received: make(chan struct{})}
}

func (g *startGate) arm()        { g.waiting.Store(true) }
func (g *startGate) armed() bool { return g.waiting.Load() }
func (g *startGate) signal()     { g.once.Do(func() { close(g.received) }) }

func (g *startGate) isSet() bool {
	select {
	case <-g.received:
		return true
	default:
		return false
	}
}

func (g *startGate) wait(ctx context.Context, limit time.Duration) bool {
	if g.isSet() {
		return true
	}
	timer := time.NewTimer(limit)
	defer timer.Stop()
	select {
	case <-g.received:
		return true
	case <-timer.C:
		return g.isSet()
	case <-ctx.Done():
		return g.isSet()
	}
}

// WaitForStartSignal arms the pre-start phase: until the bootstrap message
// arrives (or EmitStartSignal is called), inbound traffic is discarded.
func (r *Router) WaitForStartSignal() {
	r.gate.arm()
	// a signal that landed before arming must not leave the gate shut
	if r.gate.isSet() {
		r.gate.waiting.Store(false)
	}
}

// EmitStartSignal marks the start signal as received and ends the pre-start phase.
func (r *Router) EmitStartSignal() {
	r.gate.signal()
	r.gate.waiting.Store(false)
}

// StartSignalReceived waits up to Config.StartWait for the start signal.
// It is best effort: a late signal yields false.
func (r *Router) StartSignalReceived() bool {
	return r.gate.wait(context.Background(), r.cfg.StartWait)
}

// StartSignalReceivedContext is StartSignalReceived bounded by ctx as well.
func (r *Router) StartSignalReceivedContext(ctx context.Context) bool {
	return r.gate.wait(ctx, r.cfg.StartWait)
}

// StartSignalSeen reports, without waiting, whether the start signal arrived.
func (r *Router) StartSignalSeen() bool {
	return r.gate.isSet()
}

// BroadcastStartSignal sends the bootstrap message to every other peer.
func (r *Router) BroadcastStartSignal() (int, error) {
	self, ok := r.SelfPeer()
	if !ok {
		return 0, ErrNoSelf
	}
	return r.Broadcast(frame.Build(self.Name, nil, frame.TypeStart))
}
