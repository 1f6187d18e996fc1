package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
	"time"
)

// appMetrics counts user actions for /metrics.
type appMetrics struct {
	uptime        time.Time
	eventsCreated atomic.Int64
	eventsEdited  atomic.Int64
	eventsDeleted atomic.Int64
	toggles       atomic.Int64
	monthLoads    atomic.Int64
	signIns       atomic.Int64
	signInFailed  atomic.Int64
}

func newAppMetrics() *appMetrics {
	return &appMetrics{uptime: time.Now()}
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{}, len(s.checks)+1)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			checks[name] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	checks["sessions"] = map[string]interface{}{
		"entries": s.sessions.Size(),
		"status":  "ok",
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

type metric struct {
	name, help, kind string
	value            float64
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()
	m := s.appMetrics

	metrics := []metric{
		{"http_requests_total", "Total number of HTTP requests", "counter", float64(traceMetrics.TotalRequests)},
		{"http_request_duration_avg_microseconds", "Average request duration", "gauge", float64(traceMetrics.AverageResponseTime)},
		{"events_created_total", "Events created", "counter", float64(m.eventsCreated.Load())},
		{"events_edited_total", "Events edited", "counter", float64(m.eventsEdited.Load())},
		{"events_deleted_total", "Events deleted", "counter", float64(m.eventsDeleted.Load())},
		{"events_toggled_total", "Done flags toggled", "counter", float64(m.toggles.Load())},
		{"month_loads_total", "Months fetched from the store", "counter", float64(m.monthLoads.Load())},
		{"sign_ins_total", "Successful sign ins", "counter", float64(m.signIns.Load())},
		{"sign_in_failures_total", "Rejected sign ins", "counter", float64(m.signInFailed.Load())},
		{"sessions_active", "Cached calendar sessions", "gauge", float64(s.sessions.Size())},
		{"rate_limit_hits_total", "Total rate limit hits", "counter", float64(rateLimitMetrics.TotalHits)},
		{"active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", float64(rateLimitMetrics.ClientCount)},
		{"suspicious_requests_total", "Total suspicious requests detected", "counter", float64(securityMetrics.SuspiciousRequests)},
		{"uptime_seconds", "Application uptime in seconds", "gauge", time.Since(m.uptime).Seconds()},
	}
	if s.propagationStats != nil {
		st := s.propagationStats()
		metrics = append(metrics,
			metric{"propagation_submitted_total", "Color propagation tasks submitted", "counter", float64(st.Submitted)},
			metric{"propagation_succeeded_total", "Color propagation tasks finished", "counter", float64(st.Succeeded)},
			metric{"propagation_failed_total", "Color propagation tasks failed", "counter", float64(st.Failed)},
		)
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].name < metrics[j].name })

	w.WriteHeader(http.StatusOK)
	for _, m := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %.0f\n\n", m.name, m.help, m.name, m.kind, m.name, m.value)
	}
}
