package router

import (
	"context"
	"sync"

	"github.com/ryandielhenn/r2rmesh/pkg/directory"
	"github.com/ryandielhenn/r2rmesh/pkg/frame"
)

// Transmission is a message paired with the peer it goes to (outbound) or
// came from (inbound).
type Transmission struct {
	Peer directory.Endpoint
	Msg  frame.Message

	// ackResponse marks protocol acks, which are never held back by a
	// pending ack towards the same peer.
	ackResponse bool
}

// outQueue is only drained by the event loop; producers only append.
type outQueue struct {
	mu    sync.Mutex
	items []Transmission
}

func (q *outQueue) push(tx Transmission) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, tx)
	return len(q.items)
}

func (q *outQueue) at(i int) (Transmission, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i < 0 || i >= len(q.items) {
		return Transmission{}, false
	}
	return q.items[i], true
}

func (q *outQueue) removeAt(i int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i < 0 || i >= len(q.items) {
		return
	}
	copy(q.items[i:], q.items[i+1:])
	q.items[len(q.items)-1] = Transmission{}
	q.items = q.items[:len(q.items)-1]
}

func (q *outQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *outQueue) snapshot() []Transmission {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Transmission(nil), q.items...)
}

// inQueue is a FIFO with a one-slot wakeup channel for blocking readers.
type inQueue struct {
	mu     sync.Mutex
	items  []Transmission
	notify chan struct{}
}

func newInQueue() *inQueue {
	return &inQueue{notify: make(chan struct{}, 1)}
}

func (q *inQueue) push(tx Transmission) int {
	q.mu.Lock()
	q.items = append(q.items, tx)
	n := len(q.items)
	q.mu.Unlock()
	q.signal()
	return n
}

func (q *inQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *inQueue) pop() (Transmission, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return Transmission{}, false
	}
	tx := q.items[0]
	q.items[0] = Transmission{}
	q.items = q.items[1:]
	more := len(q.items) > 0
	q.mu.Unlock()
	// pass the wakeup on so a second waiter sees the remaining items
	if more {
		q.signal()
	}
	return tx, true
}

func (q *inQueue) wait(ctx context.Context) (Transmission, error) {
	for {
		if tx, ok := q.pop(); ok {
			return tx, nil
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return Transmission{}, ctx.Err()
		}
	}
}

func (q *inQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
