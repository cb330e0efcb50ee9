package observability

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// modelKey carries the per-request model holder through the context.
type modelKey struct{}

// SetModel records the resolved model for the current request so the
// metrics middleware labels its counters with it. No-op for requests that
// did not pass through MetricsMiddleware.
func SetModel(ctx context.Context, model string) {
	if holder, ok := ctx.Value(modelKey{}).(*string); ok && model != "" {
		*holder = model
	}
}

// MetricsMiddleware wraps an HTTP handler to record request metrics.
//
// It captures:
//   - modelgate_requests_total (counter): incremented per request with method, status class, and model labels
//   - modelgate_request_duration_seconds (histogram): request duration with method and model labels
//   - modelgate_streaming_connections_active (gauge): incremented while an SSE streaming response is in flight
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Streaming callers either ask for SSE explicitly or hit the
		// streaming action; the gauge covers the connection's lifetime.
		if r.Header.Get("Accept") == "text/event-stream" ||
			r.URL.Query().Get("alt") == "sse" ||
			strings.Contains(r.URL.Path, ":streamGenerateContent") {
			StreamingConnections.Inc()
			defer StreamingConnections.Dec()
		}

		// The model is only known after routing; the handler fills the
		// holder in via SetModel once it has resolved the request.
		model := "unknown"
		r = r.WithContext(context.WithValue(r.Context(), modelKey{}, &model))

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()

		// Status class label like "2xx", "4xx", "5xx".
		statusStr := strconv.Itoa(sw.status/100) + "xx"

		RequestsTotal.WithLabelValues(r.Method, statusStr, model).Inc()
		RequestDuration.WithLabelValues(r.Method, model).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

// WriteHeader captures the status code and delegates to the underlying writer.
func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

// Write delegates to the underlying writer and marks the status as written.
func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}

// Flush delegates to the underlying writer if it implements http.Flusher.
// This is essential for SSE streaming support.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter, enabling http.ResponseController
// and similar utilities to access the original writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
