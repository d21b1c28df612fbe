package middleware

import (
	"net/http"
	"strings"
	"sync/atomic"
)

// MetricsCollector counts requests, errors, and eligibility check
// submissions.
type MetricsCollector struct {
	requestCount *atomic.Int64
	errorCount   *atomic.Int64
	checkCount   *atomic.Int64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector(requestCount, errorCount, checkCount *atomic.Int64) *MetricsCollector {
	return &MetricsCollector{
		requestCount: requestCount,
		errorCount:   errorCount,
		checkCount:   checkCount,
	}
}

// Middleware returns middleware that counts requests and errors. Check
// submissions are counted separately so /metrics can report evaluation
// volume next to raw traffic.
func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mc.requestCount.Add(1)
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/checks") {
			mc.checkCount.Add(1)
		}

		// Wrap response writer to capture status
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		// Count errors (4xx and 5xx)
		if rw.statusCode >= 400 {
			mc.errorCount.Add(1)
		}
	})
}
