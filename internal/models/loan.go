package models

import "time"

// LoanStatus określa status wypożyczenia
type LoanStatus string

const (
	LoanStatusActive   LoanStatus = "active"   // Aktywne wypożyczenie
	LoanStatusReturned LoanStatus = "returned" // Zwrócone
)

const day = 24 * time.Hour

// Loan reprezentuje wypożyczenie egzemplarza
type Loan struct {
	ID            string     `json:"id" firestore:"id"`
	CopyID        string     `json:"copy_id" firestore:"copy_id"`
	BookID        string     `json:"book_id" firestore:"book_id"`
	BorrowerID    string     `json:"borrower_id" firestore:"borrower_id"`
	Barcode       string     `json:"barcode" firestore:"barcode"` // Denormalizacja dla biurka wypożyczeń
	Status        LoanStatus `json:"status" firestore:"status"`
	CheckoutDate  time.Time  `json:"checkout_date" firestore:"checkout_date"`
	DueDate       time.Time  `json:"due_date" firestore:"due_date"`
	ExtensionDate *time.Time `json:"extension_date,omitempty" firestore:"extension_date,omitempty"`
	CheckinDate   *time.Time `json:"checkin_date,omitempty" firestore:"checkin_date,omitempty"`
	Fine          Money      `json:"fine" firestore:"fine"` // Ustalana przy zwrocie
	CreatedAt     time.Time  `json:"created_at" firestore:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" firestore:"updated_at"`
}

// IsActive sprawdza czy wypożyczenie jest otwarte
func (l *Loan) IsActive() bool {
	return l.Status == LoanStatusActive
}

// EffectiveDueDate zwraca termin zwrotu z uwzględnieniem przedłużenia
func (l *Loan) EffectiveDueDate() time.Time {
	if l.ExtensionDate != nil {
		return *l.ExtensionDate
	}
	return l.DueDate
}

// DaysOverdue zwraca liczbę pełnych dni po terminie (0 gdy w terminie)
func (l *Loan) DaysOverdue(asOf time.Time) int {
	late := asOf.Sub(l.EffectiveDueDate())
	if late <= 0 {
		return 0
	}
	return int(late / day)
}

// IsOverdue sprawdza czy aktywne wypożyczenie jest przeterminowane
func (l *Loan) IsOverdue(asOf time.Time) bool {
	return l.IsActive() && asOf.After(l.EffectiveDueDate())
}

// FineAt oblicza karę na dany dzień. Dla zwróconych wypożyczeń kara jest zamrożona.
func (l *Loan) FineAt(asOf time.Time, ratePerDay Money) Money {
	if !l.IsActive() {
		return l.Fine
	}
	return Money(l.DaysOverdue(asOf)) * ratePerDay
}

// DaysUntilDue zwraca liczbę dni do terminu zwrotu
func (l *Loan) DaysUntilDue(asOf time.Time) int {
	if !l.IsActive() {
		return 0
	}
	return int(l.EffectiveDueDate().Sub(asOf) / day)
}
