package lending

import (
	"context"
	"fmt"
	"strings"
	"time"

	"digilib/internal/lock"
	"digilib/internal/models"
	"digilib/internal/notify"
	"digilib/internal/store"
)

// Decision to decyzja bibliotekarza w sprawie prośby
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// SubmitInput to prośba składana przez czytelnika
type SubmitInput struct {
	BorrowerID string             `json:"borrower_id" validate:"required"`
	BookID     string             `json:"book_id" validate:"required"`
	CopyID     string             `json:"copy_id"`
	Type       models.RequestType `json:"type" validate:"required"`
}

// Submit zapisuje prośbę czytelnika. Odrzuca ją, gdy identyczna prośba
// (ten sam czytelnik, książka i typ) czeka już na decyzję.
func (e *Engine) Submit(ctx context.Context, in SubmitInput) (*models.Request, error) {
	if err := e.validateStruct(in); err != nil {
		return nil, err
	}
	if !in.Type.Valid() {
		return nil, invalid("type", fmt.Sprintf("nieznany typ prośby %q", in.Type))
	}

	now := e.now()
	var req *models.Request
	err := e.withLocks(ctx, []string{lock.BookKey(in.BookID)}, func() error {
		return e.store.Update(ctx, func(tx store.Tx) error {
			if _, err := tx.GetBook(in.BookID); err != nil {
				return notFound(err, ErrBookNotFound)
			}
			if in.CopyID != "" {
				c, err := tx.GetCopy(in.CopyID)
				if err != nil {
					return notFound(err, ErrCopyNotFound)
				}
				if c.BookID != in.BookID {
					return invalid("copy_id", "egzemplarz należy do innej książki")
				}
			}
			pending, err := tx.ListRequests(store.RequestFilter{
				BorrowerID: in.BorrowerID,
				BookID:     in.BookID,
				Type:       in.Type,
				Status:     models.RequestStatusPending,
			})
			if err != nil {
				return err
			}
			if len(pending) > 0 {
				return fmt.Errorf("%w: %s", ErrDuplicatePendingRequest, pending[0].ID)
			}
			req = &models.Request{
				ID:          e.newID(),
				BorrowerID:  in.BorrowerID,
				BookID:      in.BookID,
				CopyID:      in.CopyID,
				Type:        in.Type,
				Status:      models.RequestStatusPending,
				RequestDate: now,
			}
			return tx.PutRequest(req)
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "złożono prośbę", "request_id", req.ID, "type", req.Type, "borrower_id", req.BorrowerID)
	e.publish(ctx, []notify.Event{{Type: notify.RequestSubmitted, BookID: req.BookID, CopyID: req.CopyID, RequestID: req.ID, BorrowerID: req.BorrowerID, OccurredAt: now}})
	return req, nil
}

// Resolve rozpatruje prośbę. Przy zatwierdzeniu najpierw wykonuje zmianę
// stanu (wypożyczenie, zwrot, przedłużenie) i dopiero w tej samej
// transakcji oznacza prośbę jako rozpatrzoną. Gdy zmiana się nie uda,
// prośba pozostaje w stanie pending.
func (e *Engine) Resolve(ctx context.Context, requestID string, decision Decision, reason, resolvedBy string) (*models.Request, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, invalid("decision", fmt.Sprintf("nieznana decyzja %q", decision))
	}
	reason = strings.TrimSpace(reason)

	current, err := e.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	keys := []string{lock.BookKey(current.BookID)}
	if current.CopyID != "" {
		keys = append(keys, lock.CopyKey(current.CopyID))
	}

	var (
		req    *models.Request
		events []notify.Event
	)
	err = e.withLocks(ctx, keys, func() error {
		return e.store.Update(ctx, func(tx store.Tx) error {
			now := e.now()
			events = nil
			r, err := tx.GetRequest(requestID)
			if err != nil {
				return notFound(err, ErrRequestNotFound)
			}
			if !r.IsPending() {
				return fmt.Errorf("%w: %s", ErrRequestAlreadyResolved, r.ID)
			}

			if decision == DecisionApprove {
				loan, evs, err := e.applyRequest(tx, r, now)
				if err != nil {
					return err
				}
				r.LoanID = loan.ID
				r.Status = models.RequestStatusApproved
				events = append(events, evs...)
			} else {
				r.Status = models.RequestStatusRejected
				r.RejectionReason = reason
			}
			resolved := now
			r.ResolvedDate = &resolved
			r.ResolvedBy = resolvedBy
			req = r

			typ := notify.RequestApproved
			if decision == DecisionReject {
				typ = notify.RequestRejected
			}
			events = append(events, notify.Event{Type: typ, BookID: r.BookID, CopyID: r.CopyID, LoanID: r.LoanID, RequestID: r.ID, BorrowerID: r.BorrowerID, OccurredAt: now})
			return tx.PutRequest(r)
		})
	})
	if err != nil {
		return nil, err
	}

	e.recorder.RequestResolved(string(decision))
	e.logger.InfoContext(ctx, "rozpatrzono prośbę", "request_id", req.ID, "decision", decision, "resolved_by", resolvedBy)
	e.publish(ctx, events)
	return req, nil
}

// applyRequest wykonuje zmianę stanu odpowiadającą zatwierdzonej prośbie
func (e *Engine) applyRequest(tx store.Tx, r *models.Request, now time.Time) (*models.Loan, []notify.Event, error) {
	switch r.Type {
	case models.RequestTypeCheckin:
		copyID := r.CopyID
		if copyID != "" {
			c, err := tx.GetCopy(copyID)
			if err != nil {
				return nil, nil, notFound(err, ErrCopyNotFound)
			}
			if !c.AvailableFor(r.BorrowerID, now) {
				copyID = ""
			}
		}
		if copyID == "" {
			c, err := findAvailableCopy(tx, r.BookID, r.BorrowerID, now)
			if err != nil {
				return nil, nil, err
			}
			if c == nil {
				return nil, nil, ErrNoCopyAvailable
			}
			copyID = c.ID
		}
		loan, err := e.openLoan(tx, copyID, r.BorrowerID, now)
		if err != nil {
			return nil, nil, err
		}
		return loan, []notify.Event{loanEvent(notify.LoanOpened, loan, now)}, nil

	case models.RequestTypeCheckout:
		loan, err := borrowerActiveLoan(tx, r)
		if err != nil {
			return nil, nil, err
		}
		return e.checkinTx(tx, loan.ID, now)

	case models.RequestTypeExtend:
		loan, err := borrowerActiveLoan(tx, r)
		if err != nil {
			return nil, nil, err
		}
		loan, err = extendTx(tx, loan.ID, e.policy.ExtensionDays, now)
		if err != nil {
			return nil, nil, err
		}
		return loan, []notify.Event{loanEvent(notify.LoanExtended, loan, now)}, nil
	}
	return nil, nil, invalid("type", fmt.Sprintf("nieznany typ prośby %q", r.Type))
}

// borrowerActiveLoan szuka aktywnego wypożyczenia, którego dotyczy prośba
func borrowerActiveLoan(tx store.Tx, r *models.Request) (*models.Loan, error) {
	loans, err := tx.ListLoans(store.LoanFilter{
		BorrowerID: r.BorrowerID,
		BookID:     r.BookID,
		CopyID:     r.CopyID,
		Status:     models.LoanStatusActive,
	})
	if err != nil {
		return nil, err
	}
	if len(loans) == 0 {
		return nil, fmt.Errorf("%w: czytelnik %s nie ma aktywnego wypożyczenia książki %s", ErrLoanNotFound, r.BorrowerID, r.BookID)
	}
	return loans[0], nil
}

// GetRequest pobiera prośbę po ID
func (e *Engine) GetRequest(ctx context.Context, requestID string) (*models.Request, error) {
	var req *models.Request
	err := e.store.View(ctx, func(tx store.Tx) error {
		r, err := tx.GetRequest(requestID)
		if err != nil {
			return notFound(err, ErrRequestNotFound)
		}
		req = r
		return nil
	})
	return req, err
}

// ListRequests zwraca prośby spełniające filtr
func (e *Engine) ListRequests(ctx context.Context, f store.RequestFilter) ([]*models.Request, error) {
	var reqs []*models.Request
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		reqs, err = tx.ListRequests(f)
		return err
	})
	return reqs, err
}
