// Package notify publikuje zdarzenia wypożyczeń (np. "egzemplarz odłożony
// dla czytelnika") do odbiorców poza silnikiem.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Typy zdarzeń
const (
	LoanOpened       = "loan.opened"
	LoanClosed       = "loan.closed"
	LoanExtended     = "loan.extended"
	WaitlistJoined   = "waitlist.joined"
	WaitlistLeft     = "waitlist.left"
	HoldPlaced       = "hold.placed"
	HoldExpired      = "hold.expired"
	RequestSubmitted = "request.submitted"
	RequestApproved  = "request.approved"
	RequestRejected  = "request.rejected"
	CopiesAdjusted   = "copies.adjusted"
)

// Event to pojedyncze zdarzenie domenowe
type Event struct {
	Type       string    `json:"type"`
	BookID     string    `json:"book_id,omitempty"`
	CopyID     string    `json:"copy_id,omitempty"`
	LoanID     string    `json:"loan_id,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	BorrowerID string    `json:"borrower_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier przyjmuje zdarzenia po zatwierdzeniu transakcji
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop odrzuca wszystkie zdarzenia
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Log zapisuje zdarzenia w logu
type Log struct {
	Logger *slog.Logger
}

func (l Log) Publish(ctx context.Context, ev Event) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "zdarzenie",
		"type", ev.Type,
		"book_id", ev.BookID,
		"copy_id", ev.CopyID,
		"loan_id", ev.LoanID,
		"request_id", ev.RequestID,
		"borrower_id", ev.BorrowerID,
	)
	return nil
}

// Fanout przekazuje zdarzenie do wszystkich odbiorców i łączy błędy
type Fanout []Notifier

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range f {
		if err := n.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
