package models

import "time"

// WaitlistEntry to pojedynczy wpis na liście oczekujących
type WaitlistEntry struct {
	BorrowerID string    `json:"borrower_id" firestore:"borrower_id"`
	JoinedAt   time.Time `json:"joined_at" firestore:"joined_at"`
}

// Waitlist to kolejka FIFO czytelników czekających na egzemplarz książki
type Waitlist struct {
	BookID    string          `json:"book_id" firestore:"book_id"`
	Entries   []WaitlistEntry `json:"entries" firestore:"entries"`
	UpdatedAt time.Time       `json:"updated_at" firestore:"updated_at"`
}

// Position zwraca pozycję czytelnika liczoną od 1, albo 0 gdy go nie ma
func (w *Waitlist) Position(borrowerID string) int {
	for i, e := range w.Entries {
		if e.BorrowerID == borrowerID {
			return i + 1
		}
	}
	return 0
}

// Add dopisuje czytelnika na koniec kolejki. Zwraca false gdy już na niej jest.
func (w *Waitlist) Add(borrowerID string, at time.Time) bool {
	if w.Position(borrowerID) > 0 {
		return false
	}
	w.Entries = append(w.Entries, WaitlistEntry{BorrowerID: borrowerID, JoinedAt: at})
	return true
}

// Remove usuwa czytelnika z kolejki
func (w *Waitlist) Remove(borrowerID string) bool {
	pos := w.Position(borrowerID)
	if pos == 0 {
		return false
	}
	w.Entries = append(w.Entries[:pos-1:pos-1], w.Entries[pos:]...)
	return true
}

// PopFront zdejmuje pierwszego czytelnika z kolejki
func (w *Waitlist) PopFront() (WaitlistEntry, bool) {
	if len(w.Entries) == 0 {
		return WaitlistEntry{}, false
	}
	head := w.Entries[0]
	w.Entries = append([]WaitlistEntry(nil), w.Entries[1:]...)
	return head, true
}

// Len zwraca długość kolejki
func (w *Waitlist) Len() int {
	return len(w.Entries)
}

// Clone zwraca głęboką kopię listy
func (w *Waitlist) Clone() *Waitlist {
	out := *w
	out.Entries = append([]WaitlistEntry(nil), w.Entries...)
	return &out
}
