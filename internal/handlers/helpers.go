package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"digilib/internal/lending"
	"digilib/internal/middleware"
	"digilib/internal/models"
	"digilib/internal/reviews"
)

const maxBodyBytes = 1 << 20

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errorResponse to treść odpowiedzi z błędem
type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("błąd kodowania odpowiedzi", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON czyta treść żądania do dst
func decodeJSON(r *http.Request, dst any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &lending.ValidationError{Field: "body", Reason: "pusta treść żądania"}
		}
		return &lending.ValidationError{Field: "body", Reason: fmt.Sprintf("nieprawidłowy JSON: %v", err)}
	}
	return nil
}

// statusFor mapuje błędy domenowe na kody HTTP
func statusFor(err error) int {
	switch {
	case errors.Is(err, lending.ErrValidation),
		errors.Is(err, reviews.ErrEmptyText),
		errors.Is(err, reviews.ErrTextTooLong):
		return http.StatusBadRequest
	case errors.Is(err, lending.ErrBookNotFound),
		errors.Is(err, lending.ErrCopyNotFound),
		errors.Is(err, lending.ErrLoanNotFound),
		errors.Is(err, lending.ErrRequestNotFound),
		errors.Is(err, reviews.ErrReviewNotFound),
		errors.Is(err, reviews.ErrBookNotFound):
		return http.StatusNotFound
	case lending.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError zapisuje błąd operacji. Błędy wewnętrzne trafiają do logu, a klient
// dostaje ogólny komunikat.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "błąd obsługi żądania",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeMessage(w, status, "Błąd wewnętrzny serwera")
		return
	}
	resp := errorResponse{Error: err.Error()}
	var verr *lending.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	writeJSON(w, status, resp)
}

// identity zwraca tożsamość wywołującego. Trasy wymagające logowania są
// chronione przez middleware, więc brak tożsamości to błąd konfiguracji routera.
func identity(r *http.Request) models.Identity {
	id, _ := middleware.IdentityFromContext(r.Context())
	return id
}
