package router

import (
	"sync"
	"time"

	"github.com/ryandielhenn/r2rmesh/pkg/frame"
)

// AckState is a snapshot of the acknowledgment state kept for one remote peer.
type AckState struct {
	Awaiting    bool
	RetryCycles int
	Retransmits int
	LastSent    frame.Message
}

type ackEntry struct {
	awaiting    bool
	cycles      int
	retransmits int
	lastSent    Transmission
	sentAt      time.Time
}

type ackTracker struct {
	mu    sync.Mutex
	peers map[string]*ackEntry
}

func newAckTracker() *ackTracker {
	return &ackTracker{peers: make(map[string]*ackEntry)}
}

func (a *ackTracker) add(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.peers[name]; !ok {
		a.peers[name] = &ackEntry{}
	}
}

func (a *ackTracker) awaiting(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.peers[name]
	return ok && e.awaiting
}

// sent records a completed send to tx's recipient. Ack-requesting sends
// become the retained copy.
func (a *ackTracker) sent(tx Transmission, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.peers[tx.Peer.Name]
	if !ok {
		return
	}
	if tx.Msg.AckRequested() {
		e.awaiting = true
		e.cycles = 0
		e.lastSent = tx
		e.sentAt = now
	} else if !e.awaiting {
		e.cycles = 0
	}
}

// resolve clears the awaiting state and drops the retained copy.
func (a *ackTracker) resolve(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.peers[name]
	if !ok || !e.awaiting {
		return false
	}
	e.awaiting = false
	e.cycles = 0
	e.lastSent = Transmission{}
	return true
}

// due advances the retry counter of every awaiting peer by one drain cycle
// and returns the retained copies that must be resent. Their counters restart
// and they stay awaiting. A zero timeout disables the wall-clock deadline.
func (a *ackTracker) due(maxCycles int, timeout time.Duration, now time.Time) []Transmission {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []Transmission
	for _, e := range a.peers {
		if !e.awaiting {
			continue
		}
		e.cycles++
		expired := timeout > 0 && now.Sub(e.sentAt) >= timeout
		if e.cycles > maxCycles || expired {
			e.cycles = 0
			e.retransmits++
			e.sentAt = now
			out = append(out, e.lastSent)
		}
	}
	return out
}

func (a *ackTracker) state(name string) (AckState, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.peers[name]
	if !ok {
		return AckState{}, false
	}
	return AckState{
		Awaiting:    e.awaiting,
		RetryCycles: e.cycles,
		Retransmits: e.retransmits,
		LastSent:    e.lastSent.Msg.Clone(),
	}, true
}
