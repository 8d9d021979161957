package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"digilib/internal/lending"
	"digilib/internal/models"
)

type submitRequestBody struct {
	BookID string             `json:"book_id"`
	CopyID string             `json:"copy_id"`
	Type   models.RequestType `json:"type"`
}

// Checkout wypożycza książkę albo zapisuje na listę oczekujących (POST /books/{id}/checkout).
// 201 oznacza wypożyczenie, 202 wpis na listę.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	res, err := h.engine.Checkout(r.Context(), chi.URLParam(r, "id"), id.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if res.Waitlisted {
		writeJSON(w, http.StatusAccepted, res)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// LeaveWaitlist wypisuje czytelnika z listy oczekujących (DELETE /books/{id}/waitlist)
func (h *Handler) LeaveWaitlist(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	if err := h.engine.LeaveWaitlist(r.Context(), chi.URLParam(r, "id"), id.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitRequest składa prośbę o wypożyczenie, zwrot lub przedłużenie (POST /requests)
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var body submitRequestBody
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	req, err := h.engine.Submit(r.Context(), lending.SubmitInput{
		BorrowerID: identity(r).UserID,
		BookID:     body.BookID,
		CopyID:     body.CopyID,
		Type:       body.Type,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// MyLoans zwraca aktywne wypożyczenia zalogowanego czytelnika (GET /me/loans)
func (h *Handler) MyLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.engine.ActiveLoans(r.Context(), lending.LoanQuery{BorrowerID: identity(r).UserID})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(loans))
}

// MyHistory zwraca zakończone wypożyczenia (GET /me/history)
func (h *Handler) MyHistory(w http.ResponseWriter, r *http.Request) {
	loans, err := h.engine.History(r.Context(), identity(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(loans))
}

// MyFines zwraca zestawienie kar (GET /me/fines)
func (h *Handler) MyFines(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.BorrowerFines(r.Context(), identity(r).UserID, h.clock())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func nonNil(loans []*models.Loan) []*models.Loan {
	if loans == nil {
		return []*models.Loan{}
	}
	return loans
}
