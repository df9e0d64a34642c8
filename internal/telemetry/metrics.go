package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	DirectionOut = "out"
	DirectionIn  = "in"

	QueueOutbound = "outbound"
	QueueInbound  = "inbound"

	DropUnknownPeer = "unknown_peer"
	DropMalformed   = "malformed"
	DropPreStart    = "pre_start"
	DropSendError   = "send_error"
	DropStrayAck    = "stray_ack"
)

var (
	Registry = prometheus.NewRegistry()

	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "r2rmesh",
			Name:      "messages_total",
			Help:      "Messages enqueued or delivered, by local peer, remote peer and direction.",
		},
		[]string{"self", "peer", "direction"},
	)

	RetransmitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "r2rmesh",
			Name:      "retransmits_total",
			Help:      "Ack-requesting messages resent after the retry threshold.",
		},
		[]string{"self", "peer"},
	)

	AcksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "r2rmesh",
			Name:      "acks_total",
			Help:      "Ack responses that resolved a pending send.",
		},
		[]string{"self", "peer"},
	)

	DroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "r2rmesh",
			Name:      "dropped_total",
			Help:      "Messages dropped by the event loop, by reason.",
		},
		[]string{"self", "reason"},
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "r2rmesh",
			Name:      "queue_depth",
			Help:      "Current length of the transmission queues.",
		},
		[]string{"self", "queue"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "r2rmesh",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"op", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "r2rmesh",
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "r2rmesh",
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by version and git_sha).",
		},
		[]string{"version", "git_sha"},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "r2rmesh",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(MessagesTotal, RetransmitsTotal, AcksTotal, DroppedTotal, QueueDepth,
		RequestsTotal, RequestDuration, buildInfo, uptime)
}

// MetricsHandler exposes /metrics. Mount it with mux.Handle("/metrics", telemetry.MetricsHandler()).
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup, e.g. with ldflags-provided values.
func SetBuildInfo(version, gitSHA string) {
	buildInfo.WithLabelValues(version, gitSHA).Set(1)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Instrument wraps an http.Handler to record metrics under the provided "op" label.
func Instrument(op string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: 200}
		start := time.Now()

		next.ServeHTTP(sw, r)

		class := strconv.Itoa(sw.status/100) + "xx"
		RequestsTotal.WithLabelValues(op, class).Inc()
		RequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	})
}
