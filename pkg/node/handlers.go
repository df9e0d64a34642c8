package node

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ryandielhenn/r2rmesh/pkg/frame"
	"github.com/ryandielhenn/r2rmesh/pkg/router"
)

// maxBody caps the content accepted by /send and /broadcast.
const maxBody = 16 << 20

type infoResp struct {
	Self          string   `json:"self"`
	Peers         []string `json:"peers"`
	PendingIn     int      `json:"pendingIn"`
	PendingOut    int      `json:"pendingOut"`
	StartReceived bool     `json:"startReceived"`
	Running       bool     `json:"running"`
}

// RecvResp is the body of a successful /recv.
type RecvResp struct {
	Peer    string `json:"peer"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

type broadcastResp struct {
	Copies int `json:"copies"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Healthz returns 200 OK to indicate the node is alive.
func (n *Node) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (n *Node) Info(w http.ResponseWriter, _ *http.Request) {
	self, _ := n.r.SelfPeer()
	var peers []string
	for _, p := range n.r.Peers().All() {
		peers = append(peers, p.Name)
	}
	writeJSON(w, http.StatusOK, infoResp{
		Self:          self.Name,
		Peers:         peers,
		PendingIn:     n.r.PendingInbound(),
		PendingOut:    n.r.PendingOutbound(),
		StartReceived: n.r.StartSignalSeen(),
		Running:       n.r.Running(),
	})
}

func readContent(w http.ResponseWriter, req *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

func msgType(req *http.Request) string {
	if t := req.URL.Query().Get("type"); t != "" {
		return t
	}
	return frame.TypeMessage
}

// Send queues the request body for one peer. ?ack=1 asks for an acknowledgment.
func (n *Node) Send(w http.ResponseWriter, req *http.Request) {
	peer := req.PathValue("peer")
	content, ok := readContent(w, req)
	if !ok {
		return
	}
	ack := truthy(req.URL.Query().Get("ack"))
	err := n.r.EnqueueSend(peer, frame.Build(peer, content, msgType(req)), ack)
	switch {
	case errors.Is(err, router.ErrUnknownPeer):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		n.logger.Warn("send failed", zap.String("peer", peer), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Broadcast queues one copy of the request body per other peer.
func (n *Node) Broadcast(w http.ResponseWriter, req *http.Request) {
	content, ok := readContent(w, req)
	if !ok {
		return
	}
	copies, err := n.r.Broadcast(frame.Build("", content, msgType(req)))
	if err != nil {
		n.logger.Warn("broadcast failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, broadcastResp{Copies: copies})
}

// Recv pops the oldest inbound transmission, 204 when there is none.
// ?wait=<duration> blocks up to that long for one to arrive.
func (n *Node) Recv(w http.ResponseWriter, req *http.Request) {
	wait, err := parseWait(req.URL.Query().Get("wait"))
	if err != nil {
		http.Error(w, "invalid wait", http.StatusBadRequest)
		return
	}

	var tx router.Transmission
	if wait > 0 {
		ctx, cancel := context.WithTimeout(req.Context(), wait)
		defer cancel()
		tx, err = n.r.NextTransmission(ctx)
	} else {
		tx, err = n.r.GetNewTransmission()
	}
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, RecvResp{
		Peer:    tx.Peer.Name,
		Type:    tx.Msg.Type(),
		Content: string(tx.Msg.Content()),
	})
}
