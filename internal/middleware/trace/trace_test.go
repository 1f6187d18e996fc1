package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"budgetcal/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Handler: slog.NewTextHandler(&buf, nil), Component: "test"})
	m := NewMiddleware(logger, func(*http.Request) string { return "10.0.0.1" })

	var seen string
	var scoped *log.Logger
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		scoped = log.FromContext(r.Context())
		scoped.InfoContext(r.Context(), "inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("unexpected request id %q", seen)
	}
	if rr.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("header %q does not match context id %q", rr.Header().Get(RequestIDHeader), seen)
	}
	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, "inside handler") {
			line = l
		}
	}
	if scoped == nil || !strings.Contains(line, "request_id="+seen) {
		t.Fatalf("handler log lacks the request id: %q", line)
	}
	if rr.Code != http.StatusTeapot {
		t.Fatalf("status not passed through: %d", rr.Code)
	}
	if got := m.GetMetrics().TotalRequests; got != 1 {
		t.Fatalf("TotalRequests = %d, want 1", got)
	}
}

func TestGenerateRequestIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := GenerateRequestID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
