package sqlstore

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"digilib/internal/models"
)

var json = jsoniter.ConfigFastest

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func toMillisPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func fromMillisPtr(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}

type bookRow struct {
	ID            string `db:"id"`
	Title         string `db:"title"`
	Author        string `db:"author"`
	Genre         string `db:"genre"`
	Language      string `db:"language"`
	SeriesTitle   string `db:"series_title"`
	VolumeNumber  int    `db:"volume_number"`
	LCCNumber     string `db:"lcc_number"`
	CopiesCreated int    `db:"copies_created"`
	CopiesRemoved int    `db:"copies_removed"`
	LastSerial    int    `db:"last_serial"`
	CreatedAt     int64  `db:"created_at"`
	UpdatedAt     int64  `db:"updated_at"`
}

func newBookRow(b *models.Book) bookRow {
	return bookRow{
		ID: b.ID, Title: b.Title, Author: b.Author, Genre: b.Genre, Language: b.Language,
		SeriesTitle: b.SeriesTitle, VolumeNumber: b.VolumeNumber, LCCNumber: b.LCCNumber,
		CopiesCreated: b.CopiesCreated, CopiesRemoved: b.CopiesRemoved, LastSerial: b.LastSerial,
		CreatedAt: toMillis(b.CreatedAt), UpdatedAt: toMillis(b.UpdatedAt),
	}
}

func (r bookRow) model() *models.Book {
	return &models.Book{
		ID: r.ID, Title: r.Title, Author: r.Author, Genre: r.Genre, Language: r.Language,
		SeriesTitle: r.SeriesTitle, VolumeNumber: r.VolumeNumber, LCCNumber: r.LCCNumber,
		CopiesCreated: r.CopiesCreated, CopiesRemoved: r.CopiesRemoved, LastSerial: r.LastSerial,
		CreatedAt: fromMillis(r.CreatedAt), UpdatedAt: fromMillis(r.UpdatedAt),
	}
}

type copyRow struct {
	ID        string `db:"id"`
	BookID    string `db:"book_id"`
	Barcode   string `db:"barcode"`
	Serial    int    `db:"serial"`
	Status    string `db:"status"`
	HeldFor   string `db:"held_for"`
	HoldUntil *int64 `db:"hold_until"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

func newCopyRow(c *models.Copy) copyRow {
	return copyRow{
		ID: c.ID, BookID: c.BookID, Barcode: c.Barcode, Serial: c.Serial, Status: string(c.Status),
		HeldFor: c.HeldFor, HoldUntil: toMillisPtr(c.HoldUntil),
		CreatedAt: toMillis(c.CreatedAt), UpdatedAt: toMillis(c.UpdatedAt),
	}
}

func (r copyRow) model() *models.Copy {
	return &models.Copy{
		ID: r.ID, BookID: r.BookID, Barcode: r.Barcode, Serial: r.Serial, Status: models.CopyStatus(r.Status),
		HeldFor: r.HeldFor, HoldUntil: fromMillisPtr(r.HoldUntil),
		CreatedAt: fromMillis(r.CreatedAt), UpdatedAt: fromMillis(r.UpdatedAt),
	}
}

type loanRow struct {
	ID            string `db:"id"`
	CopyID        string `db:"copy_id"`
	BookID        string `db:"book_id"`
	BorrowerID    string `db:"borrower_id"`
	Barcode       string `db:"barcode"`
	Status        string `db:"status"`
	CheckoutDate  int64  `db:"checkout_date"`
	DueDate       int64  `db:"due_date"`
	ExtensionDate *int64 `db:"extension_date"`
	CheckinDate   *int64 `db:"checkin_date"`
	Fine          int64  `db:"fine"`
	CreatedAt     int64  `db:"created_at"`
	UpdatedAt     int64  `db:"updated_at"`
}

func newLoanRow(l *models.Loan) loanRow {
	return loanRow{
		ID: l.ID, CopyID: l.CopyID, BookID: l.BookID, BorrowerID: l.BorrowerID, Barcode: l.Barcode,
		Status: string(l.Status), CheckoutDate: toMillis(l.CheckoutDate), DueDate: toMillis(l.DueDate),
		ExtensionDate: toMillisPtr(l.ExtensionDate), CheckinDate: toMillisPtr(l.CheckinDate),
		Fine: int64(l.Fine), CreatedAt: toMillis(l.CreatedAt), UpdatedAt: toMillis(l.UpdatedAt),
	}
}

func (r loanRow) model() *models.Loan {
	return &models.Loan{
		ID: r.ID, CopyID: r.CopyID, BookID: r.BookID, BorrowerID: r.BorrowerID, Barcode: r.Barcode,
		Status: models.LoanStatus(r.Status), CheckoutDate: fromMillis(r.CheckoutDate), DueDate: fromMillis(r.DueDate),
		ExtensionDate: fromMillisPtr(r.ExtensionDate), CheckinDate: fromMillisPtr(r.CheckinDate),
		Fine: models.Money(r.Fine), CreatedAt: fromMillis(r.CreatedAt), UpdatedAt: fromMillis(r.UpdatedAt),
	}
}

type requestRow struct {
	ID              string `db:"id"`
	BorrowerID      string `db:"borrower_id"`
	BookID          string `db:"book_id"`
	CopyID          string `db:"copy_id"`
	LoanID          string `db:"loan_id"`
	Type            string `db:"request_type"`
	Status          string `db:"status"`
	RequestDate     int64  `db:"request_date"`
	ResolvedDate    *int64 `db:"resolved_date"`
	ResolvedBy      string `db:"resolved_by"`
	RejectionReason string `db:"rejection_reason"`
}

func newRequestRow(r *models.Request) requestRow {
	return requestRow{
		ID: r.ID, BorrowerID: r.BorrowerID, BookID: r.BookID, CopyID: r.CopyID, LoanID: r.LoanID,
		Type: string(r.Type), Status: string(r.Status), RequestDate: toMillis(r.RequestDate),
		ResolvedDate: toMillisPtr(r.ResolvedDate), ResolvedBy: r.ResolvedBy, RejectionReason: r.RejectionReason,
	}
}

func (r requestRow) model() *models.Request {
	return &models.Request{
		ID: r.ID, BorrowerID: r.BorrowerID, BookID: r.BookID, CopyID: r.CopyID, LoanID: r.LoanID,
		Type: models.RequestType(r.Type), Status: models.RequestStatus(r.Status), RequestDate: fromMillis(r.RequestDate),
		ResolvedDate: fromMillisPtr(r.ResolvedDate), ResolvedBy: r.ResolvedBy, RejectionReason: r.RejectionReason,
	}
}

type waitlistRow struct {
	BookID    string `db:"book_id"`
	Entries   string `db:"entries"`
	UpdatedAt int64  `db:"updated_at"`
}

type waitlistEntry struct {
	BorrowerID string `json:"borrower_id"`
	JoinedAt   int64  `json:"joined_at"`
}

func newWaitlistRow(w *models.Waitlist) (waitlistRow, error) {
	entries := make([]waitlistEntry, 0, len(w.Entries))
	for _, e := range w.Entries {
		entries = append(entries, waitlistEntry{BorrowerID: e.BorrowerID, JoinedAt: toMillis(e.JoinedAt)})
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return waitlistRow{}, fmt.Errorf("kodowanie listy oczekujących: %w", err)
	}
	return waitlistRow{BookID: w.BookID, Entries: string(data), UpdatedAt: toMillis(w.UpdatedAt)}, nil
}

func (r waitlistRow) model() (*models.Waitlist, error) {
	var entries []waitlistEntry
	if err := json.Unmarshal([]byte(r.Entries), &entries); err != nil {
		return nil, fmt.Errorf("dekodowanie listy oczekujących: %w", err)
	}
	w := &models.Waitlist{BookID: r.BookID, UpdatedAt: fromMillis(r.UpdatedAt)}
	for _, e := range entries {
		w.Entries = append(w.Entries, models.WaitlistEntry{BorrowerID: e.BorrowerID, JoinedAt: fromMillis(e.JoinedAt)})
	}
	return w, nil
}

type reviewRow struct {
	ID        string `db:"id"`
	BookID    string `db:"book_id"`
	UserID    string `db:"user_id"`
	Content   string `db:"content"`
	Likes     string `db:"likes"`
	CreatedAt int64  `db:"created_at"`
}

func newReviewRow(r *models.Review) (reviewRow, error) {
	likes := r.Likes
	if likes == nil {
		likes = []string{}
	}
	data, err := json.Marshal(likes)
	if err != nil {
		return reviewRow{}, fmt.Errorf("kodowanie polubień: %w", err)
	}
	return reviewRow{ID: r.ID, BookID: r.BookID, UserID: r.UserID, Content: r.Text, Likes: string(data), CreatedAt: toMillis(r.CreatedAt)}, nil
}

func (r reviewRow) model() (*models.Review, error) {
	var likes []string
	if err := json.Unmarshal([]byte(r.Likes), &likes); err != nil {
		return nil, fmt.Errorf("dekodowanie polubień: %w", err)
	}
	return &models.Review{ID: r.ID, BookID: r.BookID, UserID: r.UserID, Text: r.Content, Likes: likes, CreatedAt: fromMillis(r.CreatedAt)}, nil
}
