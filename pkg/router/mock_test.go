package router

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ryandielhenn/r2rmesh/pkg/directory"
	"github.com/ryandielhenn/r2rmesh/pkg/frame"
	"github.com/ryandielhenn/r2rmesh/pkg/transport"
)

// mockTransport records every send. With echoAcks set it answers each
// ack-requesting send with an ack from the recipient.
type mockTransport struct {
	mu        sync.Mutex
	sent      []frame.Message
	bound     string
	connected []string
	closed    bool
	echoAcks  bool
	connErr   error
	inbox     chan frame.Message
}

func newMockTransport() *mockTransport {
	return &mockTransport{inbox: make(chan frame.Message, 256)}
}

func (m *mockTransport) Bind(identity, addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bound = identity
	return nil
}

func (m *mockTransport) Connect(addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connErr != nil {
		return m.connErr
	}
	m.connected = append(m.connected, addr)
	return nil
}

func (m *mockTransport) SendMultipart(msg frame.Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg.Clone())
	echo := m.echoAcks
	m.mu.Unlock()
	if echo && msg.AckRequested() {
		m.inbox <- frame.BuildAck(msg.Peer())
	}
	return nil
}

func (m *mockTransport) Poll(timeout time.Duration) (frame.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-m.inbox:
		return msg, nil
	case <-timer.C:
		return nil, transport.ErrNothingReady
	}
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockTransport) sends() []frame.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]frame.Message(nil), m.sent...)
}

// newTestRouter registers names in order; the first one is self.
func newTestRouter(t *testing.T, tr transport.Transport, cfg Config, names ...string) *Router {
	t.Helper()
	r := New(tr, cfg)
	for i, name := range names {
		ep := directory.Endpoint{
			Name:       name,
			ServerAddr: "inproc://" + name,
			ClientAddr: "inproc://" + name,
		}
		require.NoError(t, r.AddPeer(ep, i == 0))
	}
	return r
}
