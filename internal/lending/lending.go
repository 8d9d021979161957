package lending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"digilib/internal/lock"
	"digilib/internal/models"
	"digilib/internal/notify"
	"digilib/internal/store"
)

// checkoutAttempts to pierwsza próba plus jedno ponowienie po przegranym wyścigu o egzemplarz
const checkoutAttempts = 2

// CheckoutResult to wynik wypożyczenia: albo Loan, albo wpis na listę oczekujących
type CheckoutResult struct {
	Loan       *models.Loan `json:"loan,omitempty"`
	Waitlisted bool         `json:"waitlisted"`
	Position   int          `json:"position,omitempty"` // Pozycja na liście oczekujących, od 1
}

// Checkout wypożycza czytelnikowi dowolny dostępny egzemplarz książki.
// Gdy żaden nie jest dostępny, dopisuje czytelnika do listy oczekujących i
// zwraca wynik z Waitlisted=true zamiast błędu.
func (e *Engine) Checkout(ctx context.Context, bookID, borrowerID string) (*CheckoutResult, error) {
	if bookID == "" {
		return nil, required("book_id")
	}
	if borrowerID == "" {
		return nil, required("borrower_id")
	}

	var (
		res    *CheckoutResult
		events []notify.Event
	)
	err := e.withLocks(ctx, []string{lock.BookKey(bookID)}, func() error {
		var err error
		for attempt := 1; attempt <= checkoutAttempts; attempt++ {
			res, events, err = e.checkoutOnce(ctx, bookID, borrowerID)
			if !errors.Is(err, ErrCopyNotAvailable) {
				return err
			}
			e.logger.WarnContext(ctx, "egzemplarz zajęty w trakcie wypożyczenia",
				"book_id", bookID, "borrower_id", borrowerID, "attempt", attempt)
		}
		return fmt.Errorf("%w: %v", ErrNoCopyAvailable, err)
	})
	if err != nil {
		if errors.Is(err, ErrNoCopyAvailable) {
			e.recorder.Checkout(OutcomeNoCopy)
		} else {
			e.recorder.Checkout(OutcomeError)
		}
		return nil, err
	}

	if res.Waitlisted {
		e.recorder.Checkout(OutcomeWaitlisted)
		e.logger.InfoContext(ctx, "czytelnik na liście oczekujących",
			"book_id", bookID, "borrower_id", borrowerID, "position", res.Position)
	} else {
		e.recorder.Checkout(OutcomeLoan)
		e.logger.InfoContext(ctx, "wypożyczono egzemplarz",
			"loan_id", res.Loan.ID, "copy_id", res.Loan.CopyID, "borrower_id", borrowerID)
	}
	e.publish(ctx, events)
	return res, nil
}

func (e *Engine) checkoutOnce(ctx context.Context, bookID, borrowerID string) (*CheckoutResult, []notify.Event, error) {
	now := e.now()
	var (
		res    *CheckoutResult
		events []notify.Event
	)
	err := e.store.Update(ctx, func(tx store.Tx) error {
		res, events = nil, nil
		if _, err := tx.GetBook(bookID); err != nil {
			return notFound(err, ErrBookNotFound)
		}
		c, err := findAvailableCopy(tx, bookID, borrowerID, now)
		if err != nil {
			return err
		}

		if c == nil {
			wl, err := tx.GetWaitlist(bookID)
			if err != nil {
				return err
			}
			if wl.Add(borrowerID, now) {
				wl.UpdatedAt = now
				if err := tx.PutWaitlist(wl); err != nil {
					return err
				}
				events = append(events, notify.Event{Type: notify.WaitlistJoined, BookID: bookID, BorrowerID: borrowerID, OccurredAt: now})
			}
			res = &CheckoutResult{Waitlisted: true, Position: wl.Position(borrowerID)}
			return nil
		}

		loan, err := e.openLoan(tx, c.ID, borrowerID, now)
		if err != nil {
			return err
		}
		res = &CheckoutResult{Loan: loan}
		events = append(events, loanEvent(notify.LoanOpened, loan, now))
		return nil
	})
	return res, events, err
}

// openLoan zmienia stan egzemplarza na wypożyczony i zakłada wypożyczenie.
// Dostępność jest sprawdzana ponownie w tej samej transakcji. Czytelnik
// znika z listy oczekujących na tę książkę; wpisy innych zostają.
func (e *Engine) openLoan(tx store.Tx, copyID, borrowerID string, now time.Time) (*models.Loan, error) {
	c, err := tx.GetCopy(copyID)
	if err != nil {
		return nil, notFound(err, ErrCopyNotFound)
	}
	if !c.AvailableFor(borrowerID, now) {
		return nil, fmt.Errorf("%w: %s", ErrCopyNotAvailable, c.Barcode)
	}
	next, err := transition(c.Status, eventCheckout)
	if err != nil {
		return nil, err
	}
	c.Status = next
	c.ClearHold()
	c.UpdatedAt = now
	if err := tx.PutCopy(c); err != nil {
		return nil, err
	}

	loan := &models.Loan{
		ID:           e.newID(),
		CopyID:       c.ID,
		BookID:       c.BookID,
		BorrowerID:   borrowerID,
		Barcode:      c.Barcode,
		Status:       models.LoanStatusActive,
		CheckoutDate: now,
		DueDate:      now.Add(days(e.policy.LoanDays)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.PutLoan(loan); err != nil {
		return nil, err
	}

	wl, err := tx.GetWaitlist(c.BookID)
	if err != nil {
		return nil, err
	}
	if wl.Remove(borrowerID) {
		wl.UpdatedAt = now
		if err := tx.PutWaitlist(wl); err != nil {
			return nil, err
		}
	}
	return loan, nil
}

// CheckoutByBarcode wypożycza konkretny egzemplarz zeskanowany przy biurku
func (e *Engine) CheckoutByBarcode(ctx context.Context, code, borrowerID string) (*models.Loan, error) {
	if borrowerID == "" {
		return nil, required("borrower_id")
	}
	c, err := e.CopyByBarcode(ctx, code)
	if err != nil {
		return nil, err
	}

	var (
		loan   *models.Loan
		events []notify.Event
	)
	err = e.withLocks(ctx, []string{lock.BookKey(c.BookID), lock.CopyKey(c.ID)}, func() error {
		return e.store.Update(ctx, func(tx store.Tx) error {
			now := e.now()
			l, err := e.openLoan(tx, c.ID, borrowerID, now)
			if err != nil {
				return err
			}
			loan = l
			events = []notify.Event{loanEvent(notify.LoanOpened, l, now)}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, ErrCopyNotAvailable) {
			e.recorder.Checkout(OutcomeNoCopy)
		} else {
			e.recorder.Checkout(OutcomeError)
		}
		return nil, err
	}

	e.recorder.Checkout(OutcomeLoan)
	e.logger.InfoContext(ctx, "wypożyczono egzemplarz przy biurku",
		"loan_id", loan.ID, "barcode", loan.Barcode, "borrower_id", borrowerID)
	e.publish(ctx, events)
	return loan, nil
}

// Checkin zamyka wypożyczenie i zwraca egzemplarz na półkę. Kara jest
// ustalana w chwili zwrotu i później się nie zmienia.
func (e *Engine) Checkin(ctx context.Context, loanID string) (*models.Loan, error) {
	if loanID == "" {
		return nil, required("loan_id")
	}
	var current *models.Loan
	err := e.store.View(ctx, func(tx store.Tx) error {
		l, err := tx.GetLoan(loanID)
		if err != nil {
			return notFound(err, ErrLoanNotFound)
		}
		current = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.checkinLocked(ctx, current)
}

// CheckinByBarcode przyjmuje zwrot zeskanowanego egzemplarza
func (e *Engine) CheckinByBarcode(ctx context.Context, code string) (*models.Loan, error) {
	c, err := e.CopyByBarcode(ctx, code)
	if err != nil {
		return nil, err
	}
	var current *models.Loan
	err = e.store.View(ctx, func(tx store.Tx) error {
		loans, err := tx.ListLoans(store.LoanFilter{CopyID: c.ID, Status: models.LoanStatusActive})
		if err != nil {
			return err
		}
		if len(loans) == 0 {
			return fmt.Errorf("%w: brak aktywnego wypożyczenia egzemplarza %s", ErrLoanNotFound, c.Barcode)
		}
		current = loans[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.checkinLocked(ctx, current)
}

func (e *Engine) checkinLocked(ctx context.Context, current *models.Loan) (*models.Loan, error) {
	var (
		loan   *models.Loan
		events []notify.Event
	)
	err := e.withLocks(ctx, []string{lock.BookKey(current.BookID), lock.CopyKey(current.CopyID)}, func() error {
		return e.store.Update(ctx, func(tx store.Tx) error {
			var err error
			loan, events, err = e.checkinTx(tx, current.ID, e.now())
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	e.recorder.Checkin()
	e.logger.InfoContext(ctx, "przyjęto zwrot",
		"loan_id", loan.ID, "copy_id", loan.CopyID, "fine", loan.Fine.String())
	e.publish(ctx, events)
	return loan, nil
}

// checkinTx zamyka wypożyczenie w transakcji tx. Przy polityce fifo-hold
// zwrócony egzemplarz zostaje odłożony dla pierwszej osoby z listy.
func (e *Engine) checkinTx(tx store.Tx, loanID string, now time.Time) (*models.Loan, []notify.Event, error) {
	loan, err := tx.GetLoan(loanID)
	if err != nil {
		return nil, nil, notFound(err, ErrLoanNotFound)
	}
	if !loan.IsActive() {
		return nil, nil, fmt.Errorf("%w: %s", ErrLoanAlreadyClosed, loan.ID)
	}

	c, err := tx.GetCopy(loan.CopyID)
	if err != nil {
		return nil, nil, notFound(err, ErrCopyNotFound)
	}
	next, err := transition(c.Status, eventCheckin)
	if err != nil {
		return nil, nil, err
	}

	// kara liczona przed zmianą statusu, potem zamrożona
	loan.Fine = loan.FineAt(now, e.policy.FineRatePerDay)
	loan.Status = models.LoanStatusReturned
	checkin := now
	loan.CheckinDate = &checkin
	loan.UpdatedAt = now
	if err := tx.PutLoan(loan); err != nil {
		return nil, nil, err
	}

	c.Status = next
	c.ClearHold()
	c.UpdatedAt = now
	events := []notify.Event{loanEvent(notify.LoanClosed, loan, now)}
	if e.policy.HoldPolicy == HoldPolicyFIFO {
		ev, err := e.placeHold(tx, c, now)
		if err != nil {
			return nil, nil, err
		}
		if ev != nil {
			events = append(events, *ev)
		}
	}
	if err := tx.PutCopy(c); err != nil {
		return nil, nil, err
	}
	return loan, events, nil
}

// RequestExtension przesuwa termin zwrotu aktywnego wypożyczenia o days dni
func (e *Engine) RequestExtension(ctx context.Context, loanID string, days int) (*models.Loan, error) {
	if loanID == "" {
		return nil, required("loan_id")
	}
	if days < 1 || days > MaxDays {
		return nil, invalid("days", fmt.Sprintf("musi wynosić od 1 do %d", MaxDays))
	}
	var current *models.Loan
	err := e.store.View(ctx, func(tx store.Tx) error {
		l, err := tx.GetLoan(loanID)
		if err != nil {
			return notFound(err, ErrLoanNotFound)
		}
		current = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	var (
		loan   *models.Loan
		events []notify.Event
	)
	err = e.withLocks(ctx, []string{lock.BookKey(current.BookID), lock.CopyKey(current.CopyID)}, func() error {
		return e.store.Update(ctx, func(tx store.Tx) error {
			now := e.now()
			l, err := extendTx(tx, loanID, days, now)
			if err != nil {
				return err
			}
			loan = l
			events = []notify.Event{loanEvent(notify.LoanExtended, l, now)}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "przedłużono wypożyczenie",
		"loan_id", loan.ID, "due", loan.EffectiveDueDate().Format(time.DateOnly))
	e.publish(ctx, events)
	return loan, nil
}

// extendTx przesuwa efektywny termin zwrotu. Pierwotny DueDate zostaje bez zmian.
func extendTx(tx store.Tx, loanID string, n int, now time.Time) (*models.Loan, error) {
	loan, err := tx.GetLoan(loanID)
	if err != nil {
		return nil, notFound(err, ErrLoanNotFound)
	}
	if !loan.IsActive() {
		return nil, fmt.Errorf("%w: %s", ErrLoanAlreadyClosed, loan.ID)
	}
	ext := loan.EffectiveDueDate().Add(days(n))
	loan.ExtensionDate = &ext
	loan.UpdatedAt = now
	if err := tx.PutLoan(loan); err != nil {
		return nil, err
	}
	return loan, nil
}

func loanEvent(typ string, l *models.Loan, now time.Time) notify.Event {
	return notify.Event{
		Type:       typ,
		BookID:     l.BookID,
		CopyID:     l.CopyID,
		LoanID:     l.ID,
		BorrowerID: l.BorrowerID,
		OccurredAt: now,
	}
}
