package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"digilib/internal/lending"
	"digilib/internal/models"
)

// bookDetail to książka z bieżącą dostępnością egzemplarzy
type bookDetail struct {
	*models.Book
	TotalCopies     int `json:"total_copies"`
	AvailableCopies int `json:"available_copies"`
}

// createBookRequest to dane nowej pozycji katalogowej
type createBookRequest struct {
	lending.BookInput
	Copies int `json:"copies"`
}

type adjustCopiesRequest struct {
	Count *int `json:"count"`
}

// ListBooks zwraca listę książek (GET /books)
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.engine.ListBooks(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if books == nil {
		books = []*models.Book{}
	}
	writeJSON(w, http.StatusOK, books)
}

// SearchBooks wyszukuje książki po tytule, autorze lub gatunku (GET /books/search?q=)
func (h *Handler) SearchBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.engine.SearchBooks(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if books == nil {
		books = []*models.Book{}
	}
	writeJSON(w, http.StatusOK, books)
}

// ShowBook zwraca szczegóły książki (GET /books/{id})
func (h *Handler) ShowBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	book, err := h.engine.GetBook(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	copies, err := h.engine.ListCopies(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	now := h.clock()
	detail := bookDetail{Book: book, TotalCopies: len(copies)}
	for _, c := range copies {
		if c.IsAvailable() && !c.IsHeld(now) {
			detail.AvailableCopies++
		}
	}
	writeJSON(w, http.StatusOK, detail)
}

// CreateBook dodaje książkę z egzemplarzami (POST /books)
func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	book, copies, err := h.engine.AddBook(r.Context(), req.BookInput, req.Copies)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"book": book, "copies": copies})
}

// UpdateBook poprawia dane katalogowe (PUT /books/{id})
func (h *Handler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	var in lending.BookInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	book, err := h.engine.UpdateBook(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// AdjustCopies zmienia liczbę egzemplarzy (PUT /books/{id}/copies)
func (h *Handler) AdjustCopies(w http.ResponseWriter, r *http.Request) {
	var req adjustCopiesRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Count == nil {
		h.writeError(w, r, &lending.ValidationError{Field: "count", Reason: "pole jest wymagane"})
		return
	}
	copies, err := h.engine.AdjustCopyCount(r.Context(), chi.URLParam(r, "id"), *req.Count)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, copies)
}

// ListCopies zwraca egzemplarze książki z kodami kreskowymi (GET /books/{id}/copies)
func (h *Handler) ListCopies(w http.ResponseWriter, r *http.Request) {
	copies, err := h.engine.ListCopies(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if copies == nil {
		copies = []*models.Copy{}
	}
	writeJSON(w, http.StatusOK, copies)
}

// CopyByBarcode wyszukuje egzemplarz po kodzie kreskowym (GET /copies/{barcode})
func (h *Handler) CopyByBarcode(w http.ResponseWriter, r *http.Request) {
	c, err := h.engine.CopyByBarcode(r.Context(), chi.URLParam(r, "barcode"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ShowWaitlist zwraca listę oczekujących na książkę (GET /books/{id}/waitlist)
func (h *Handler) ShowWaitlist(w http.ResponseWriter, r *http.Request) {
	wl, err := h.engine.Waitlist(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if wl.Entries == nil {
		wl.Entries = []models.WaitlistEntry{}
	}
	writeJSON(w, http.StatusOK, wl)
}

// ServeWaitlist wypożycza egzemplarz pierwszej osobie z listy (POST /books/{id}/waitlist/serve)
func (h *Handler) ServeWaitlist(w http.ResponseWriter, r *http.Request) {
	loan, err := h.engine.ServeWaitlist(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}
