package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mwvgroup/pittgoogle-user/internal/events"
	"github.com/mwvgroup/pittgoogle-user/internal/handlers"
	"github.com/mwvgroup/pittgoogle-user/internal/processor"
)

type stubProcessor struct{ calls int }

func (s *stubProcessor) Process(context.Context, *events.PushMessage) (*processor.Outcome, error) {
	s.calls++
	return &processor.Outcome{}, nil
}

type countingCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingCounter) Increment(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[name]++
}

const validPush = `{"message":{"data":"YQ==","publish_time":"2024-05-06T07:08:09Z"}}`

func TestRouter_Routes(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCalls  int
	}{
		{name: "push", method: http.MethodPost, path: "/", body: validPush, wantStatus: http.StatusNoContent, wantCalls: 1},
		{name: "empty push", method: http.MethodPost, path: "/", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "get on push route", method: http.MethodGet, path: "/", wantStatus: http.StatusMethodNotAllowed},
		{name: "put on push route", method: http.MethodPut, path: "/", body: validPush, wantStatus: http.StatusMethodNotAllowed},
		{name: "health", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK},
		{name: "unknown path", method: http.MethodPost, path: "/classify", body: validPush, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &stubProcessor{}
			router := NewRouter(handlers.NewHandlers(proc), nil)

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.Handler().ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %v, want %v", w.Code, tt.wantStatus)
			}
			if proc.calls != tt.wantCalls {
				t.Errorf("Process() calls = %d, want %d", proc.calls, tt.wantCalls)
			}
		})
	}
}

func TestRouter_HealthCheck(t *testing.T) {
	router := NewRouter(handlers.NewHandlers(&stubProcessor{}), nil)

	w := httptest.NewRecorder()
	router.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Body.String() != "OK" {
		t.Errorf("Health check body = %q, want OK", w.Body.String())
	}
}

func TestStatusMiddleware_Counts(t *testing.T) {
	counter := &countingCounter{}
	router := NewRouter(handlers.NewHandlers(&stubProcessor{}), counter)
	handler := router.Handler()

	for _, body := range []string{validPush, validPush, `{}`} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	}
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if counter.counts["http_2xx"] != 2 || counter.counts["http_4xx"] != 1 {
		t.Errorf("counts = %v, want 2 http_2xx and 1 http_4xx", counter.counts)
	}
	if len(counter.counts) != 2 {
		t.Errorf("health checks should not be counted: %v", counter.counts)
	}
}

func TestNewServer(t *testing.T) {
	server := NewServer("8080", handlers.NewHandlers(&stubProcessor{}), nil)
	if server.Addr != ":8080" {
		t.Errorf("Addr = %s, want :8080", server.Addr)
	}
	if server.ReadTimeout == 0 || server.WriteTimeout == 0 || server.IdleTimeout == 0 {
		t.Error("server timeouts must be set")
	}
}
