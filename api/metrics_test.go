package main

import (
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// The collectors are process wide, so every check compares against the value
// read before the request.

func TestMetricsCountRequestsByRoute(t *testing.T) {
	app, _ := newTestApplication(t)
	ts := newTestServer(t, app)
	token := ts.registerAndLogin("alice", "correct horse")
	tk := ts.createTask(token, "buy milk", "", "")

	counter := httpRequests.WithLabelValues("PUT /tasks/{id}", "200")
	before := testutil.ToFloat64(counter)
	res := ts.do(http.MethodPut, "/tasks/"+tk.ID.String(), token, map[string]string{"status": statusDone})
	if res.status != http.StatusOK {
		t.Fatalf("update status = %d, body %s", res.status, res.body)
	}
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("http_requests_total{PUT /tasks/{id},200} = %v, want %v", got, before+1)
	}

	missing := httpRequests.WithLabelValues("unmatched", "404")
	before = testutil.ToFloat64(missing)
	if res := ts.do(http.MethodGet, "/nowhere", "", nil); res.status != http.StatusNotFound {
		t.Fatalf("unknown route status = %d", res.status)
	}
	if got := testutil.ToFloat64(missing); got != before+1 {
		t.Fatalf("http_requests_total{unmatched,404} = %v, want %v", got, before+1)
	}
}

func TestMetricsCountAuthFailures(t *testing.T) {
	app, _ := newTestApplication(t)
	ts := newTestServer(t, app)

	invalid := authFailures.WithLabelValues("invalid_token")
	before := testutil.ToFloat64(invalid)
	if res := ts.do(http.MethodGet, "/tasks", "not-a-token", nil); res.status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.status)
	}
	if got := testutil.ToFloat64(invalid); got != before+1 {
		t.Fatalf("auth_failures{invalid_token} = %v, want %v", got, before+1)
	}

	missing := authFailures.WithLabelValues("missing_token")
	before = testutil.ToFloat64(missing)
	ts.do(http.MethodGet, "/tasks", "", nil)
	if got := testutil.ToFloat64(missing); got != before+1 {
		t.Fatalf("auth_failures{missing_token} = %v, want %v", got, before+1)
	}
}

func TestMetricsLabelRateLimitedRequests(t *testing.T) {
	app, _ := newTestApplication(t)
	app.limiter = newIPLimiter(1, 1)
	ts := newTestServer(t, app)

	limited := httpRequests.WithLabelValues("rate_limited", "429")
	unmatched := httpRequests.WithLabelValues("unmatched", "429")
	blocked := rateLimited.WithLabelValues("memory")
	beforeLimited := testutil.ToFloat64(limited)
	beforeUnmatched := testutil.ToFloat64(unmatched)
	beforeBlocked := testutil.ToFloat64(blocked)

	ts.do(http.MethodGet, "/healthcheck", "", nil)
	if res := ts.do(http.MethodGet, "/healthcheck", "", nil); res.status != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", res.status)
	}

	if got := testutil.ToFloat64(limited); got != beforeLimited+1 {
		t.Fatalf("http_requests_total{rate_limited,429} = %v, want %v", got, beforeLimited+1)
	}
	if got := testutil.ToFloat64(unmatched); got != beforeUnmatched {
		t.Fatalf("429 counted as unmatched: %v", got)
	}
	if got := testutil.ToFloat64(blocked); got != beforeBlocked+1 {
		t.Fatalf("rate_limiter_blocked_total{memory} = %v, want %v", got, beforeBlocked+1)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app, _ := newTestApplication(t)
	ts := newTestServer(t, app)
	ts.do(http.MethodGet, "/healthcheck", "", nil)

	res := ts.do(http.MethodGet, "/metrics", "", nil)
	if res.status != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.status)
	}
	for _, want := range []string{"http_requests_total", "http_request_duration_seconds"} {
		if !strings.Contains(string(res.body), want) {
			t.Fatalf("exposition does not contain %s", want)
		}
	}
}
