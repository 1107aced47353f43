package handlers

import (
	"errors"
	"net/http"

	"github.com/mwvgroup/pittgoogle-user/internal/events"
)

// StatusFor maps a fatal processing error to its HTTP status.
func StatusFor(err error) int {
	if errors.Is(err, events.ErrBadRequest) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), StatusFor(err))
}
