package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrumentCountsByStatusClass(t *testing.T) {
	h := Instrument("probe", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("probe", "2xx"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got := testutil.ToFloat64(RequestsTotal.WithLabelValues("probe", "2xx")); got != before+1 {
		t.Fatalf("requests_total = %v, want %v", got, before+1)
	}
}

func TestMetricsHandlerExposesRouterFamilies(t *testing.T) {
	MessagesTotal.WithLabelValues("M", "A", DirectionOut).Inc()
	SetBuildInfo("test", "deadbeef")

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{"r2rmesh_messages_total", "r2rmesh_build_info", "r2rmesh_uptime_seconds"} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %s", want)
		}
	}
}
