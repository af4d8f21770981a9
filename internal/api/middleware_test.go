package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"fleetnav/internal/metrics"
)

func TestRateLimit(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	h := RateLimit(0.001, 1, ok)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/grid", nil))
	if rr.Code != 200 {
		t.Fatalf("first request: %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/grid", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 {
		t.Fatalf("healthz throttled: %d", rr.Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	if h := RateLimit(0, 10, ok); h == nil {
		t.Fatal("nil handler")
	}
}

func TestInstrumentRecordsStatus(t *testing.T) {
	var seen int
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		seen = w.(*statusRecorder).status
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/abc", nil))
	if rr.Code != http.StatusTeapot || seen != http.StatusTeapot {
		t.Fatalf("status %d / %d", rr.Code, seen)
	}
	if got := routeLabel("/v1/runs/abc"); got != "/v1/runs/{id}" {
		t.Fatalf("label %s", got)
	}
	if got := routeLabel("/v1/grid"); got != "/v1/grid" {
		t.Fatalf("label %s", got)
	}
	if got := routeLabel("/v1/robots/7/recharge"); got != "/v1/robots/{id}/recharge" {
		t.Fatalf("label %s", got)
	}
	if got := routeLabel("/v1/robots/7/launch"); got != "other" {
		t.Fatalf("label %s", got)
	}
}

func countSeries(c prometheus.Collector) int {
	ch := make(chan prometheus.Metric, 1024)
	c.Collect(ch)
	close(ch)
	n := 0
	for range ch {
		n++
	}
	return n
}

func TestInstrumentUnknownPathsShareOneSeries(t *testing.T) {
	h := Instrument(http.NotFoundHandler())
	// one request first so the "other" series exists before counting
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/junk/first", nil))
	before := countSeries(metrics.HTTPRequests)
	for i := 0; i < 50; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, fmt.Sprintf("/junk/%d", i), nil))
	}
	if after := countSeries(metrics.HTTPRequests); after != before {
		t.Fatalf("series grew from %d to %d", before, after)
	}
}
