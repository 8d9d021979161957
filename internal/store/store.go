// Package store definiuje transakcyjny kontrakt przechowywania danych,
// wspólny dla backendów: pamięć, SQL i Firestore.
package store

import (
	"context"
	"errors"

	"digilib/internal/models"
)

// ErrNotFound zwracany przez metody Get gdy rekord nie istnieje
var ErrNotFound = errors.New("store: nie znaleziono rekordu")

// Store uruchamia funkcje w atomowych transakcjach. Gdy fn zwróci błąd,
// żaden z jej zapisów nie staje się widoczny.
type Store interface {
	Update(ctx context.Context, fn func(Tx) error) error
	View(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// LoanFilter zawęża ListLoans. Puste pola pasują do wszystkiego.
type LoanFilter struct {
	BorrowerID string
	BookID     string
	CopyID     string
	Status     models.LoanStatus
}

// Match sprawdza czy wypożyczenie spełnia filtr
func (f LoanFilter) Match(l *models.Loan) bool {
	return (f.BorrowerID == "" || l.BorrowerID == f.BorrowerID) &&
		(f.BookID == "" || l.BookID == f.BookID) &&
		(f.CopyID == "" || l.CopyID == f.CopyID) &&
		(f.Status == "" || l.Status == f.Status)
}

// RequestFilter zawęża ListRequests. Puste pola pasują do wszystkiego.
type RequestFilter struct {
	BorrowerID string
	BookID     string
	Type       models.RequestType
	Status     models.RequestStatus
}

// Match sprawdza czy prośba spełnia filtr
func (f RequestFilter) Match(r *models.Request) bool {
	return (f.BorrowerID == "" || r.BorrowerID == f.BorrowerID) &&
		(f.BookID == "" || r.BookID == f.BookID) &&
		(f.Type == "" || r.Type == f.Type) &&
		(f.Status == "" || r.Status == f.Status)
}

// Tx to widok danych wewnątrz jednej transakcji. Odczyty widzą wcześniejsze
// zapisy tej samej transakcji.
type Tx interface {
	GetBook(id string) (*models.Book, error)
	// ListBooks zwraca książki posortowane po tytule, potem po ID
	ListBooks() ([]*models.Book, error)
	PutBook(b *models.Book) error

	GetCopy(id string) (*models.Copy, error)
	GetCopyByBarcode(barcode string) (*models.Copy, error)
	// ListCopies zwraca egzemplarze książki rosnąco po numerze
	ListCopies(bookID string) ([]*models.Copy, error)
	PutCopy(c *models.Copy) error
	DeleteCopy(id string) error

	GetLoan(id string) (*models.Loan, error)
	// ListLoans zwraca wypożyczenia rosnąco po dacie wypożyczenia
	ListLoans(f LoanFilter) ([]*models.Loan, error)
	PutLoan(l *models.Loan) error

	GetRequest(id string) (*models.Request, error)
	// ListRequests zwraca prośby rosnąco po dacie złożenia
	ListRequests(f RequestFilter) ([]*models.Request, error)
	PutRequest(r *models.Request) error

	// GetWaitlist nigdy nie zwraca ErrNotFound - brak listy to pusta lista
	GetWaitlist(bookID string) (*models.Waitlist, error)
	PutWaitlist(w *models.Waitlist) error

	GetReview(id string) (*models.Review, error)
	// ListReviews zwraca recenzje od najnowszej. Pusty bookID oznacza wszystkie książki.
	ListReviews(bookID string) ([]*models.Review, error)
	PutReview(r *models.Review) error
	DeleteReview(id string) error
}
