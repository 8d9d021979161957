package models

import "time"

// RequestType określa rodzaj prośby czytelnika.
// Nazewnictwo pochodzi z interfejsu biurka: "checkin" to prośba o wypożyczenie,
// "checkout" to zgłoszenie zwrotu.
type RequestType string

const (
	RequestTypeCheckin  RequestType = "checkin"
	RequestTypeCheckout RequestType = "checkout"
	RequestTypeExtend   RequestType = "extend"
)

// Valid sprawdza czy typ jest znany
func (t RequestType) Valid() bool {
	switch t {
	case RequestTypeCheckin, RequestTypeCheckout, RequestTypeExtend:
		return true
	}
	return false
}

// RequestStatus określa stan prośby
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// Request reprezentuje prośbę czytelnika czekającą na decyzję bibliotekarza
type Request struct {
	ID              string        `json:"id" firestore:"id"`
	BorrowerID      string        `json:"borrower_id" firestore:"borrower_id"`
	BookID          string        `json:"book_id" firestore:"book_id"`
	CopyID          string        `json:"copy_id,omitempty" firestore:"copy_id"`
	LoanID          string        `json:"loan_id,omitempty" firestore:"loan_id"` // Wypożyczenie, którego dotyczyło zatwierdzenie
	Type            RequestType   `json:"type" firestore:"type"`
	Status          RequestStatus `json:"status" firestore:"status"`
	RequestDate     time.Time     `json:"request_date" firestore:"request_date"`
	ResolvedDate    *time.Time    `json:"resolved_date,omitempty" firestore:"resolved_date,omitempty"`
	ResolvedBy      string        `json:"resolved_by,omitempty" firestore:"resolved_by"`
	RejectionReason string        `json:"rejection_reason,omitempty" firestore:"rejection_reason"`
}

// IsPending sprawdza czy prośba czeka na decyzję
func (r *Request) IsPending() bool {
	return r.Status == RequestStatusPending
}
