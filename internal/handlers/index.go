package handlers

import (
	"net/http"
	"time"
)

// Healthz odpowiada gdy serwer działa (GET /healthz)
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   h.clock().UTC().Format(time.RFC3339),
	})
}
