package lending

import (
	"context"
	"time"

	"digilib/internal/models"
	"digilib/internal/store"
)

// GetLoan pobiera wypożyczenie po ID
func (e *Engine) GetLoan(ctx context.Context, loanID string) (*models.Loan, error) {
	var loan *models.Loan
	err := e.store.View(ctx, func(tx store.Tx) error {
		l, err := tx.GetLoan(loanID)
		if err != nil {
			return notFound(err, ErrLoanNotFound)
		}
		loan = l
		return nil
	})
	return loan, err
}

// History zwraca zamknięte wypożyczenia. Pusty borrowerID oznacza wszystkich czytelników.
func (e *Engine) History(ctx context.Context, borrowerID string) ([]*models.Loan, error) {
	return e.listLoans(ctx, store.LoanFilter{BorrowerID: borrowerID, Status: models.LoanStatusReturned})
}

// LoanQuery zawęża listę aktywnych wypożyczeń
type LoanQuery struct {
	BorrowerID string
	BookID     string
}

// ActiveLoans zwraca aktywne wypożyczenia
func (e *Engine) ActiveLoans(ctx context.Context, q LoanQuery) ([]*models.Loan, error) {
	return e.listLoans(ctx, store.LoanFilter{BorrowerID: q.BorrowerID, BookID: q.BookID, Status: models.LoanStatusActive})
}

// Overdue zwraca aktywne wypożyczenia po terminie na dzień asOf
func (e *Engine) Overdue(ctx context.Context, asOf time.Time) ([]*models.Loan, error) {
	loans, err := e.ActiveLoans(ctx, LoanQuery{})
	if err != nil {
		return nil, err
	}
	var out []*models.Loan
	for _, l := range loans {
		if l.IsOverdue(asOf) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (e *Engine) listLoans(ctx context.Context, f store.LoanFilter) ([]*models.Loan, error) {
	var loans []*models.Loan
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		loans, err = tx.ListLoans(f)
		return err
	})
	return loans, err
}

// LoanFine to kara za jedno wypożyczenie
type LoanFine struct {
	Loan        *models.Loan `json:"loan"`
	Amount      models.Money `json:"amount"`
	DaysOverdue int          `json:"days_overdue"`
	Accruing    bool         `json:"accruing"` // Wypożyczenie aktywne, kara wciąż rośnie
}

// FineSummary to zestawienie kar czytelnika. Outstanding obejmuje tylko
// kary aktywnych wypożyczeń; kary ustalone przy zwrocie są w Settled.
type FineSummary struct {
	BorrowerID  string       `json:"borrower_id"`
	Items       []LoanFine   `json:"items"`
	Outstanding models.Money `json:"outstanding"`
	Settled     models.Money `json:"settled"`
	Total       models.Money `json:"total"`
}

// BorrowerFines zestawia kary czytelnika: naliczane dla aktywnych wypożyczeń
// po terminie i ustalone przy zwrocie dla zamkniętych.
func (e *Engine) BorrowerFines(ctx context.Context, borrowerID string, asOf time.Time) (*FineSummary, error) {
	if borrowerID == "" {
		return nil, required("borrower_id")
	}
	loans, err := e.listLoans(ctx, store.LoanFilter{BorrowerID: borrowerID})
	if err != nil {
		return nil, err
	}

	summary := &FineSummary{BorrowerID: borrowerID, Items: []LoanFine{}}
	for _, l := range loans {
		amount := e.ComputeFine(l, asOf)
		if amount <= 0 {
			continue
		}
		item := LoanFine{Loan: l, Amount: amount, Accruing: l.IsActive()}
		if l.IsActive() {
			item.DaysOverdue = l.DaysOverdue(asOf)
		} else if l.CheckinDate != nil {
			item.DaysOverdue = l.DaysOverdue(*l.CheckinDate)
		}
		summary.Items = append(summary.Items, item)
		if item.Accruing {
			summary.Outstanding += amount
		} else {
			summary.Settled += amount
		}
		summary.Total += amount
	}
	return summary, nil
}
