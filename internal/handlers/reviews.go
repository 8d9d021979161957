package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"digilib/internal/models"
)

type reviewRequest struct {
	Text string `json:"text"`
}

// ListBookReviews zwraca recenzje książki (GET /books/{id}/reviews)
func (h *Handler) ListBookReviews(w http.ResponseWriter, r *http.Request) {
	list, err := h.reviews.ListByBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilReviews(list))
}

// AddReview dodaje recenzję (POST /books/{id}/reviews)
func (h *Handler) AddReview(w http.ResponseWriter, r *http.Request) {
	var body reviewRequest
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	review, err := h.reviews.Add(r.Context(), chi.URLParam(r, "id"), identity(r).UserID, body.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

// LikeReview dodaje lub cofa polubienie (POST /reviews/{id}/like)
func (h *Handler) LikeReview(w http.ResponseWriter, r *http.Request) {
	review, err := h.reviews.ToggleLike(r.Context(), chi.URLParam(r, "id"), identity(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

// ListReviews zwraca wszystkie recenzje do moderacji (GET /reviews)
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	list, err := h.reviews.ListAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilReviews(list))
}

// DeleteReview usuwa recenzję (DELETE /reviews/{id})
func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	if err := h.reviews.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func nonNilReviews(list []*models.Review) []*models.Review {
	if list == nil {
		return []*models.Review{}
	}
	return list
}
