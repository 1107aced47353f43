package router

import (
	"net/http"
	"time"

	"github.com/mwvgroup/pittgoogle-user/internal/handlers"
)

// NewServer creates a new HTTP server with the router configured.
// The write timeout covers a full classification including both sinks.
func NewServer(port string, h *handlers.Handlers, counter Counter) *http.Server {
	router := NewRouter(h, counter)
	return &http.Server{
		Addr:         ":" + port,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
