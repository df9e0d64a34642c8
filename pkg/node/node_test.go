package node

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryandielhenn/r2rmesh/pkg/directory"
	"github.com/ryandielhenn/r2rmesh/pkg/router"
	"github.com/ryandielhenn/r2rmesh/pkg/transport"
)

func newTestNode(t *testing.T, hub *transport.Hub, names ...string) *Node {
	t.Helper()
	r := router.New(transport.NewMemory(hub), router.Config{PollTimeout: 5 * time.Millisecond})
	for i, name := range names {
		ep := directory.Endpoint{Name: name, ServerAddr: "inproc://" + name, ClientAddr: "inproc://" + name}
		require.NoError(t, r.AddPeer(ep, i == 0))
	}
	t.Cleanup(func() { _ = r.Close() })
	return NewNode(r, ":0", nil)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	n := newTestNode(t, transport.NewHub(), "M")
	rec := do(t, n.Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestSendToSelfThenRecv(t *testing.T) {
	n := newTestNode(t, transport.NewHub(), "M", "A")
	h := n.Handler()

	rec := do(t, h, http.MethodPost, "/send/M?type=NOTE", "hello")
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(t, h, http.MethodGet, "/recv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got RecvResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, RecvResp{Peer: "M", Type: "NOTE", Content: "hello"}, got)

	rec = do(t, h, http.MethodGet, "/recv", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSendUnknownPeer(t *testing.T) {
	n := newTestNode(t, transport.NewHub(), "M")
	rec := do(t, n.Handler(), http.MethodPost, "/send/Z", "x")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendRejectsGet(t *testing.T) {
	n := newTestNode(t, transport.NewHub(), "M")
	rec := do(t, n.Handler(), http.MethodGet, "/send/M", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBroadcastCopies(t *testing.T) {
	n := newTestNode(t, transport.NewHub(), "M", "A", "B")
	rec := do(t, n.Handler(), http.MethodPost, "/broadcast?type=CMD", "go")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var got broadcastResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2, got.Copies)
	assert.Equal(t, 2, n.Router().PendingOutbound())
}

func TestInfo(t *testing.T) {
	n := newTestNode(t, transport.NewHub(), "M", "A")
	require.Equal(t, http.StatusAccepted, do(t, n.Handler(), http.MethodPost, "/send/A", "x").Code)

	rec := do(t, n.Handler(), http.MethodGet, "/info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got infoResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "M", got.Self)
	assert.Equal(t, []string{"M", "A"}, got.Peers)
	assert.Equal(t, 1, got.PendingOut)
	assert.False(t, got.StartReceived)
	assert.False(t, got.Running)
}

func TestRecvWaitsAcrossPeers(t *testing.T) {
	hub := transport.NewHub()
	m := newTestNode(t, hub, "M", "A")
	a := newTestNode(t, hub, "A", "M")
	require.NoError(t, m.Router().EstablishCommunications())
	require.NoError(t, a.Router().EstablishCommunications())

	require.Equal(t, http.StatusAccepted, do(t, m.Handler(), http.MethodPost, "/send/A?ack=1", "ping").Code)

	rec := do(t, a.Handler(), http.MethodGet, "/recv?wait=2s", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got RecvResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, RecvResp{Peer: "M", Type: "MESSAGE", Content: "ping"}, got)
}

func TestRecvBadWait(t *testing.T) {
	n := newTestNode(t, transport.NewHub(), "M")
	rec := do(t, n.Handler(), http.MethodGet, "/recv?wait=soon", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "tcp://peer-a:7000", NormalizeEndpoint("peer-a", "7000"))
	assert.Equal(t, "tcp://peer-a:7100", NormalizeEndpoint("peer-a:7100", "7000"))
	assert.Equal(t, "ipc:///tmp/a", NormalizeEndpoint("ipc:///tmp/a", "7000"))
}

func TestNormalizeHostPort(t *testing.T) {
	assert.Equal(t, "node:8080", NormalizeHostPort("http://node", "8080"))
	assert.Equal(t, "node:9000", NormalizeHostPort("https://node:9000", "8080"))
}

func TestParseWait(t *testing.T) {
	d, err := parseWait("250")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	d, err = parseWait("1s")
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	d, err = parseWait("")
	require.NoError(t, err)
	assert.Zero(t, d)
}
