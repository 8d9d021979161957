package lending

import (
	"context"
	"fmt"
	"time"

	"digilib/internal/lock"
	"digilib/internal/models"
	"digilib/internal/notify"
	"digilib/internal/store"
)

// Waitlist zwraca listę oczekujących na książkę
func (e *Engine) Waitlist(ctx context.Context, bookID string) (*models.Waitlist, error) {
	var wl *models.Waitlist
	err := e.store.View(ctx, func(tx store.Tx) error {
		if _, err := tx.GetBook(bookID); err != nil {
			return notFound(err, ErrBookNotFound)
		}
		var err error
		wl, err = tx.GetWaitlist(bookID)
		return err
	})
	return wl, err
}

// LeaveWaitlist wypisuje czytelnika z listy oczekujących
func (e *Engine) LeaveWaitlist(ctx context.Context, bookID, borrowerID string) error {
	now := e.now()
	err := e.withLocks(ctx, []string{lock.BookKey(bookID)}, func() error {
		return e.store.Update(ctx, func(tx store.Tx) error {
			if _, err := tx.GetBook(bookID); err != nil {
				return notFound(err, ErrBookNotFound)
			}
			wl, err := tx.GetWaitlist(bookID)
			if err != nil {
				return err
			}
			if !wl.Remove(borrowerID) {
				return ErrNotOnWaitlist
			}
			wl.UpdatedAt = now
			return tx.PutWaitlist(wl)
		})
	})
	if err != nil {
		return err
	}
	e.publish(ctx, []notify.Event{{Type: notify.WaitlistLeft, BookID: bookID, BorrowerID: borrowerID, OccurredAt: now}})
	return nil
}

// ServeWaitlist wypożycza dostępny egzemplarz pierwszej osobie z listy
// oczekujących. Tak bibliotekarz obsługuje listę przy polityce none.
func (e *Engine) ServeWaitlist(ctx context.Context, bookID string) (*models.Loan, error) {
	var (
		loan   *models.Loan
		events []notify.Event
	)
	err := e.withLocks(ctx, []string{lock.BookKey(bookID)}, func() error {
		return e.store.Update(ctx, func(tx store.Tx) error {
			now := e.now()
			if _, err := tx.GetBook(bookID); err != nil {
				return notFound(err, ErrBookNotFound)
			}
			wl, err := tx.GetWaitlist(bookID)
			if err != nil {
				return err
			}
			head, ok, err := popWaiting(tx, wl)
			if err != nil {
				return err
			}
			if !ok {
				return ErrWaitlistEmpty
			}
			c, err := findAvailableCopy(tx, bookID, head.BorrowerID, now)
			if err != nil {
				return err
			}
			if c == nil {
				return ErrNoCopyAvailable
			}
			wl.UpdatedAt = now
			if err := tx.PutWaitlist(wl); err != nil {
				return err
			}
			l, err := e.openLoan(tx, c.ID, head.BorrowerID, now)
			if err != nil {
				return err
			}
			loan = l
			events = []notify.Event{loanEvent(notify.LoanOpened, l, now)}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	e.recorder.Checkout(OutcomeLoan)
	e.logger.InfoContext(ctx, "obsłużono listę oczekujących", "book_id", bookID, "loan_id", loan.ID, "borrower_id", loan.BorrowerID)
	e.publish(ctx, events)
	return loan, nil
}

// ExpireHolds zwalnia odłożenia, których termin minął przed asOf. Przy
// polityce fifo-hold egzemplarz trafia do kolejnej osoby z listy.
// Zwraca liczbę zwolnionych odłożeń.
func (e *Engine) ExpireHolds(ctx context.Context, asOf time.Time) (int, error) {
	asOf = asOf.UTC().Truncate(time.Millisecond)
	books, err := e.ListBooks(ctx)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, b := range books {
		var (
			n      int
			events []notify.Event
		)
		err := e.withLocks(ctx, []string{lock.BookKey(b.ID)}, func() error {
			return e.store.Update(ctx, func(tx store.Tx) error {
				n, events = 0, nil
				copies, err := tx.ListCopies(b.ID)
				if err != nil {
					return err
				}
				for _, c := range copies {
					if !c.HoldExpired(asOf) {
						continue
					}
					events = append(events, notify.Event{Type: notify.HoldExpired, BookID: b.ID, CopyID: c.ID, BorrowerID: c.HeldFor, OccurredAt: asOf})
					c.ClearHold()
					c.UpdatedAt = asOf
					if e.policy.HoldPolicy == HoldPolicyFIFO && c.IsAvailable() {
						ev, err := e.placeHold(tx, c, asOf)
						if err != nil {
							return err
						}
						if ev != nil {
							events = append(events, *ev)
						}
					}
					if err := tx.PutCopy(c); err != nil {
						return err
					}
					n++
				}
				return nil
			})
		})
		if err != nil {
			return expired, fmt.Errorf("błąd zwalniania odłożeń książki %s: %w", b.ID, err)
		}
		if n > 0 {
			e.logger.InfoContext(ctx, "zwolniono odłożenia", "book_id", b.ID, "count", n)
		}
		expired += n
		e.publish(ctx, events)
	}
	return expired, nil
}

// placeHold odkłada egzemplarz c dla pierwszej osoby z listy oczekujących.
// Zmienia c, ale go nie zapisuje. Zwraca nil gdy lista jest pusta.
func (e *Engine) placeHold(tx store.Tx, c *models.Copy, now time.Time) (*notify.Event, error) {
	wl, err := tx.GetWaitlist(c.BookID)
	if err != nil {
		return nil, err
	}
	before := wl.Len()
	head, ok, err := popWaiting(tx, wl)
	if err != nil {
		return nil, err
	}
	if wl.Len() != before {
		wl.UpdatedAt = now
		if err := tx.PutWaitlist(wl); err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, nil
	}
	until := now.Add(days(e.policy.HoldGraceDays))
	c.HeldFor = head.BorrowerID
	c.HoldUntil = &until
	return &notify.Event{Type: notify.HoldPlaced, BookID: c.BookID, CopyID: c.ID, BorrowerID: head.BorrowerID, OccurredAt: now}, nil
}

// popWaiting zdejmuje z kolejki pierwszego czytelnika, który nie ma jeszcze
// aktywnego wypożyczenia tej książki. Pominięci też znikają z kolejki.
func popWaiting(tx store.Tx, wl *models.Waitlist) (models.WaitlistEntry, bool, error) {
	for {
		head, ok := wl.PopFront()
		if !ok {
			return models.WaitlistEntry{}, false, nil
		}
		active, err := tx.ListLoans(store.LoanFilter{BorrowerID: head.BorrowerID, BookID: wl.BookID, Status: models.LoanStatusActive})
		if err != nil {
			return models.WaitlistEntry{}, false, err
		}
		if len(active) == 0 {
			return head, true, nil
		}
	}
}
