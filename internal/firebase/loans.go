package firebase

import (
	"cloud.google.com/go/firestore"

	"digilib/internal/models"
	"digilib/internal/store"
)

// GetLoan pobiera wypożyczenie po ID
func (t *tx) GetLoan(id string) (*models.Loan, error) {
	return getDoc[models.Loan](t, LoansCollection, id)
}

// ListLoans pobiera wypożyczenia spełniające filtr.
// Do Firestore idzie tylko najbardziej selektywny warunek, reszta jest filtrowana po stronie aplikacji.
func (t *tx) ListLoans(f store.LoanFilter) ([]*models.Loan, error) {
	var q firestore.Query
	coll := t.s.collection(LoansCollection)
	switch {
	case f.CopyID != "":
		q = coll.Where("copy_id", "==", f.CopyID)
	case f.BorrowerID != "":
		q = coll.Where("borrower_id", "==", f.BorrowerID)
	case f.BookID != "":
		q = coll.Where("book_id", "==", f.BookID)
	case f.Status != "":
		q = coll.Where("status", "==", string(f.Status))
	default:
		q = coll.Query
	}

	loans, err := listDocs(t, LoansCollection, q, f.Match)
	if err != nil {
		return nil, err
	}
	store.SortLoans(loans)
	return loans, nil
}

// PutLoan zapisuje wypożyczenie
func (t *tx) PutLoan(l *models.Loan) error {
	return t.set(LoansCollection, l.ID, *l)
}
