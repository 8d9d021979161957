package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"digilib/internal/lending"
	"digilib/internal/models"
	"digilib/internal/store"
)

type deskRequest struct {
	Barcode    string `json:"barcode"`
	BorrowerID string `json:"borrower_id"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type extendRequestBody struct {
	Days int `json:"days"`
}

// ListLoans zwraca aktywne wypożyczenia, opcjonalnie dla czytelnika lub książki (GET /loans)
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loans, err := h.engine.ActiveLoans(r.Context(), lending.LoanQuery{
		BorrowerID: q.Get("borrower_id"),
		BookID:     q.Get("book_id"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(loans))
}

// OverdueLoans zwraca przeterminowane wypożyczenia (GET /loans/overdue)
func (h *Handler) OverdueLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.engine.Overdue(r.Context(), h.clock())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(loans))
}

// CheckinLoan przyjmuje zwrot wypożyczenia (POST /loans/{id}/checkin)
func (h *Handler) CheckinLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := h.engine.Checkin(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// ExtendLoan przedłuża wypożyczenie (POST /loans/{id}/extend). Czytelnicy
// proszą o przedłużenie przez POST /requests. Bez podanej liczby dni
// obowiązuje przedłużenie z regulaminu.
func (h *Handler) ExtendLoan(w http.ResponseWriter, r *http.Request) {
	var body extendRequestBody
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &body); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	if body.Days == 0 {
		body.Days = h.engine.Policy().ExtensionDays
	}
	loan, err := h.engine.RequestExtension(r.Context(), chi.URLParam(r, "id"), body.Days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// DeskCheckin przyjmuje zwrot zeskanowanego egzemplarza (POST /desk/checkin)
func (h *Handler) DeskCheckin(w http.ResponseWriter, r *http.Request) {
	var req deskRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	loan, err := h.engine.CheckinByBarcode(r.Context(), req.Barcode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// DeskCheckout wypożycza zeskanowany egzemplarz czytelnikowi (POST /desk/checkout)
func (h *Handler) DeskCheckout(w http.ResponseWriter, r *http.Request) {
	var req deskRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	loan, err := h.engine.CheckoutByBarcode(r.Context(), req.Barcode, strings.TrimSpace(req.BorrowerID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

// ExpireHolds zwalnia przeterminowane odłożenia (POST /holds/expire)
func (h *Handler) ExpireHolds(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.ExpireHolds(r.Context(), h.clock())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"expired": n})
}

// ListRequests zwraca prośby czytelników (GET /requests?status=&type=&borrower_id=&book_id=)
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reqs, err := h.engine.ListRequests(r.Context(), store.RequestFilter{
		BorrowerID: q.Get("borrower_id"),
		BookID:     q.Get("book_id"),
		Type:       models.RequestType(q.Get("type")),
		Status:     models.RequestStatus(q.Get("status")),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if reqs == nil {
		reqs = []*models.Request{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

// ApproveRequest zatwierdza prośbę i wykonuje jej skutek (POST /requests/{id}/approve)
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.engine.Resolve(r.Context(), chi.URLParam(r, "id"), lending.DecisionApprove, "", identity(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// RejectRequest odrzuca prośbę z podanym powodem (POST /requests/{id}/reject)
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	var body rejectRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &body); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	req, err := h.engine.Resolve(r.Context(), chi.URLParam(r, "id"), lending.DecisionReject, body.Reason, identity(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
