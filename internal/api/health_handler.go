package api

import (
	"net/http"
	"time"
)

// HealthCheck reports service liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "pattern-delivery",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
