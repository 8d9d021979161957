package handlers

import "net/http"

// Me zwraca tożsamość zalogowanego użytkownika (GET /me)
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, identity(r))
}
