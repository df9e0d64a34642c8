package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/ryandielhenn/r2rmesh/pkg/frame"
)

const defaultInboxSize = 1024

// Hub is the shared address space of in-process transports.
type Hub struct {
	mu     sync.RWMutex
	byAddr map[string]*Memory
}

func NewHub() *Hub {
	return &Hub{byAddr: make(map[string]*Memory)}
}

func (h *Hub) lookup(addr string) (*Memory, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m, ok := h.byAddr[addr]
	return m, ok
}

// Memory is an in-process Transport. Connect may name an address that is not
// bound yet; routes are resolved on every send, like a lazy socket connect.
type Memory struct {
	hub      *Hub
	identity string
	addr     string
	inbox    chan frame.Message

	mu     sync.Mutex
	routes []string
	closed bool
	done   chan struct{}
}

func NewMemory(hub *Hub) *Memory {
	return &Memory{
		hub:   hub,
		inbox: make(chan frame.Message, defaultInboxSize),
		done:  make(chan struct{}),
	}
}

func (m *Memory) Bind(identity, addr string) error {
	m.hub.mu.Lock()
	defer m.hub.mu.Unlock()
	if _, ok := m.hub.byAddr[addr]; ok {
		return fmt.Errorf("%w: %s", ErrAddrInUse, addr)
	}
	m.mu.Lock()
	m.identity = identity
	m.addr = addr
	m.mu.Unlock()
	m.hub.byAddr[addr] = m
	return nil
}

func (m *Memory) Connect(addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.routes = append(m.routes, addr)
	return nil
}

func (m *Memory) SendMultipart(msg frame.Message) error {
	if len(msg) == 0 {
		return fmt.Errorf("%w: no identity frame", frame.ErrMalformed)
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.identity == "" {
		m.mu.Unlock()
		return ErrNotBound
	}
	from := m.identity
	routes := append([]string(nil), m.routes...)
	m.mu.Unlock()

	to := msg.Peer()
	for _, addr := range routes {
		peer, ok := m.hub.lookup(addr)
		if !ok || peer.identity != to {
			continue
		}
		return peer.deliver(msg.WithPeer(from))
	}
	return fmt.Errorf("%w: %s", ErrUnroutable, to)
}

func (m *Memory) deliver(msg frame.Message) error {
	select {
	case <-m.done:
		return fmt.Errorf("%w: %s", ErrUnroutable, m.identity)
	default:
	}
	select {
	case m.inbox <- msg:
		return nil
	default:
		return fmt.Errorf("transport: inbox of %s is full", m.identity)
	}
}

func (m *Memory) Poll(timeout time.Duration) (frame.Message, error) {
	select {
	case msg := <-m.inbox:
		return msg, nil
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-m.inbox:
		return msg, nil
	case <-m.done:
		return nil, ErrClosed
	case <-timer.C:
		return nil, ErrNothingReady
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	addr := m.addr
	close(m.done)
	m.mu.Unlock()

	m.hub.mu.Lock()
	if m.hub.byAddr[addr] == m {
		delete(m.hub.byAddr, addr)
	}
	m.hub.mu.Unlock()
	return nil
}
