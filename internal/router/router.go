// Package router provides HTTP routing for the classifier service.
package router

import (
	"net/http"

	"github.com/mwvgroup/pittgoogle-user/internal/handlers"
)

// Router wraps the HTTP mux and provides route configuration.
type Router struct {
	mux      *http.ServeMux
	handlers *handlers.Handlers
	counter  Counter
}

// NewRouter creates a new router with all routes configured. counter may be nil.
func NewRouter(h *handlers.Handlers, counter Counter) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		handlers: h,
		counter:  counter,
	}
	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	// Pub/Sub push subscription route
	r.mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/" {
			http.NotFound(w, req)
			return
		}
		if req.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		r.handlers.Push(w, req)
	})

	r.mux.HandleFunc("/health", r.handlers.Health)
}

// Handler returns the HTTP handler with the status middleware applied.
func (r *Router) Handler() http.Handler {
	return statusMiddleware(r.counter)(r.mux)
}
