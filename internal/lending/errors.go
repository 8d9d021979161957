package lending

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation jest opakowany przez każdy *ValidationError
	ErrValidation = errors.New("nieprawidłowe dane wejściowe")

	ErrCopyNotAvailable            = errors.New("egzemplarz nie jest dostępny")
	ErrNoCopyAvailable             = errors.New("brak dostępnego egzemplarza")
	ErrInsufficientAvailableCopies = errors.New("za mało dostępnych egzemplarzy")
	ErrLoanNotFound                = errors.New("nie znaleziono wypożyczenia")
	ErrLoanAlreadyClosed           = errors.New("wypożyczenie jest już zamknięte")
	ErrDuplicatePendingRequest     = errors.New("identyczna prośba czeka już na decyzję")
	ErrRequestNotFound             = errors.New("nie znaleziono prośby")
	ErrRequestAlreadyResolved      = errors.New("prośba została już rozpatrzona")

	ErrBookNotFound      = errors.New("nie znaleziono książki")
	ErrCopyNotFound      = errors.New("nie znaleziono egzemplarza")
	ErrNotOnWaitlist     = errors.New("czytelnik nie jest na liście oczekujących")
	ErrWaitlistEmpty     = errors.New("lista oczekujących jest pusta")
	ErrInvalidTransition = errors.New("niedozwolona zmiana stanu egzemplarza")
)

// ValidationError opisuje błędne pole wejściowe
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("nieprawidłowe pole %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func required(field string) error {
	return invalid(field, "pole jest wymagane")
}

// IsConflict sprawdza czy błąd wynika ze stanu danych, a nie z błędnego wejścia
func IsConflict(err error) bool {
	for _, target := range []error{
		ErrCopyNotAvailable, ErrNoCopyAvailable, ErrInsufficientAvailableCopies,
		ErrLoanAlreadyClosed, ErrDuplicatePendingRequest, ErrRequestAlreadyResolved,
		ErrNotOnWaitlist, ErrWaitlistEmpty, ErrInvalidTransition,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
