package router

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// Counter receives one increment per request, named after its status class.
type Counter interface {
	Increment(name string)
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// StatusCounterName is the counter bumped for a response status, e.g. http_2xx.
func StatusCounterName(status int) string {
	return "http_" + strconv.Itoa(status/100) + "xx"
}

// statusMiddleware counts responses by status class and logs each push request.
func statusMiddleware(counter Counter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			if counter != nil {
				counter.Increment(StatusCounterName(wrapped.statusCode))
			}
			slog.Debug("Handled request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"latency_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
