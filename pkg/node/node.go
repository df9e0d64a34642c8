package node

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ryandielhenn/r2rmesh/internal/telemetry"
	"github.com/ryandielhenn/r2rmesh/pkg/router"
)

// Node exposes a router to local clients over HTTP.
type Node struct {
	r      *router.Router
	addr   string
	logger *zap.Logger
}

func NewNode(r *router.Router, addr string, logger *zap.Logger) *Node {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Node{r: r, addr: addr, logger: logger.Named("http")}
}

func (n *Node) Addr() string {
	return n.addr
}

func (n *Node) Router() *router.Router {
	return n.r
}

// Handler returns the API mux. Every route except /metrics is instrumented.
func (n *Node) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", telemetry.Instrument("healthz", http.HandlerFunc(n.Healthz)))
	mux.Handle("GET /info", telemetry.Instrument("info", http.HandlerFunc(n.Info)))
	mux.Handle("POST /send/{peer}", telemetry.Instrument("send", http.HandlerFunc(n.Send)))
	mux.Handle("POST /broadcast", telemetry.Instrument("broadcast", http.HandlerFunc(n.Broadcast)))
	mux.Handle("GET /recv", telemetry.Instrument("recv", http.HandlerFunc(n.Recv)))
	mux.Handle("/metrics", telemetry.MetricsHandler())
	return mux
}
