package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryandielhenn/r2rmesh/pkg/frame"
	"github.com/ryandielhenn/r2rmesh/pkg/transport"
)

func TestStartSignalObservedByWaiter(t *testing.T) {
	r := newTestRouter(t, newMockTransport(), Config{}, "M", "A")
	r.WaitForStartSignal()

	go func() {
		time.Sleep(50 * time.Millisecond)
		r.EmitStartSignal()
	}()

	start := time.Now()
	assert.True(t, r.StartSignalReceived())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestStartSignalGivesUp(t *testing.T) {
	r := newTestRouter(t, newMockTransport(), Config{StartWait: 30 * time.Millisecond}, "M", "A")
	r.WaitForStartSignal()

	start := time.Now()
	assert.False(t, r.StartSignalReceived())
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	// a late signal is still recorded for later callers
	r.EmitStartSignal()
	assert.True(t, r.StartSignalReceived())
}

func TestStartSignalContextCancel(t *testing.T) {
	r := newTestRouter(t, newMockTransport(), Config{StartWait: time.Minute}, "M", "A")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, r.StartSignalReceivedContext(ctx))
}

func TestPreStartPhaseDiscardsTraffic(t *testing.T) {
	r := newTestRouter(t, newMockTransport(), Config{}, "M", "A")
	r.WaitForStartSignal()

	r.processIncoming(frame.Build("A", []byte("early"), "CMD"))
	assert.False(t, r.ThereArePendingTransmissions(), "discarded while waiting for START")

	r.processIncoming(frame.Build("A", nil, frame.TypeStart))
	assert.True(t, r.StartSignalReceived())
	assert.False(t, r.ThereArePendingTransmissions(), "START is consumed by the gate")

	r.processIncoming(frame.Build("A", []byte("late"), "CMD"))
	tx, err := r.GetNewTransmission()
	require.NoError(t, err)
	assert.Equal(t, []byte("late"), tx.Msg.Content())
}

func TestStartBroadcastAcrossMemoryTransport(t *testing.T) {
	hub := transport.NewHub()
	cfg := Config{PollTimeout: 5 * time.Millisecond}
	m := newTestRouter(t, transport.NewMemory(hub), cfg, "M", "A", "B")
	a := newTestRouter(t, transport.NewMemory(hub), cfg, "A", "M", "B")
	b := newTestRouter(t, transport.NewMemory(hub), cfg, "B", "M", "A")

	a.WaitForStartSignal()
	b.WaitForStartSignal()
	for _, r := range []*Router{m, a, b} {
		require.NoError(t, r.EstablishCommunications())
		defer r.Close()
	}

	n, err := m.BroadcastStartSignal()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.True(t, a.StartSignalReceived())
	assert.True(t, b.StartSignalReceived())
}

func TestWaitAfterSignalLeavesGateOpen(t *testing.T) {
	r := newTestRouter(t, newMockTransport(), Config{}, "M", "A")
	r.EmitStartSignal()
	r.WaitForStartSignal()
	assert.False(t, r.gate.armed())
}

func TestConcurrentWaitAndEmitNeverStrandsGate(t *testing.T) {
	for i := 0; i < 500; i++ {
		r := newTestRouter(t, newMockTransport(), Config{}, "M", "A")
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); r.WaitForStartSignal() }()
		go func() { defer wg.Done(); r.EmitStartSignal() }()
		wg.Wait()
		require.True(t, r.StartSignalSeen())
		require.False(t, r.gate.armed(), "run %d", i)
	}
}
