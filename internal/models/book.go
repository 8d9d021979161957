package models

import "time"

// CopyStatus określa stan fizycznego egzemplarza
type CopyStatus string

const (
	CopyStatusAvailable CopyStatus = "available" // Na półce
	CopyStatusBorrowed  CopyStatus = "borrowed"  // Wypożyczony
	CopyStatusLost      CopyStatus = "lost"      // Zagubiony, stan końcowy
)

// Book reprezentuje pozycję katalogową. Egzemplarze są osobnymi rekordami.
type Book struct {
	ID            string    `json:"id" firestore:"id"`
	Title         string    `json:"title" firestore:"title"`
	Author        string    `json:"author" firestore:"author"`
	Genre         string    `json:"genre" firestore:"genre"`
	Language      string    `json:"language" firestore:"language"`
	SeriesTitle   string    `json:"series_title,omitempty" firestore:"series_title"`
	VolumeNumber  int       `json:"volume_number,omitempty" firestore:"volume_number"`
	LCCNumber     string    `json:"lcc_number" firestore:"lcc_number"`
	CopiesCreated int       `json:"copies_created" firestore:"copies_created"`
	CopiesRemoved int       `json:"copies_removed" firestore:"copies_removed"`
	LastSerial    int       `json:"last_serial" firestore:"last_serial"` // Najwyższy kiedykolwiek nadany numer egzemplarza
	CreatedAt     time.Time `json:"created_at" firestore:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" firestore:"updated_at"`
}

// TotalCopies zwraca liczbę egzemplarzy, które nie zostały usunięte
func (b *Book) TotalCopies() int {
	return b.CopiesCreated - b.CopiesRemoved
}

// Copy reprezentuje pojedynczy egzemplarz książki z kodem kreskowym
type Copy struct {
	ID        string     `json:"id" firestore:"id"`
	BookID    string     `json:"book_id" firestore:"book_id"`
	Barcode   string     `json:"barcode" firestore:"barcode"`
	Serial    int        `json:"serial" firestore:"serial"`
	Status    CopyStatus `json:"status" firestore:"status"`
	HeldFor   string     `json:"held_for,omitempty" firestore:"held_for"`
	HoldUntil *time.Time `json:"hold_until,omitempty" firestore:"hold_until,omitempty"`
	CreatedAt time.Time  `json:"created_at" firestore:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" firestore:"updated_at"`
}

// IsAvailable sprawdza czy egzemplarz stoi na półce
func (c *Copy) IsAvailable() bool {
	return c.Status == CopyStatusAvailable
}

// IsHeld sprawdza czy egzemplarz jest odłożony dla kogoś z listy oczekujących
func (c *Copy) IsHeld(now time.Time) bool {
	return c.HeldFor != "" && c.HoldUntil != nil && now.Before(*c.HoldUntil)
}

// HoldExpired zwraca true gdy odłożenie istnieje, ale minął jego termin
func (c *Copy) HoldExpired(now time.Time) bool {
	return c.HeldFor != "" && !c.IsHeld(now)
}

// AvailableFor sprawdza czy dany czytelnik może wypożyczyć egzemplarz
func (c *Copy) AvailableFor(borrowerID string, now time.Time) bool {
	if !c.IsAvailable() {
		return false
	}
	return !c.IsHeld(now) || c.HeldFor == borrowerID
}

// ClearHold usuwa odłożenie egzemplarza
func (c *Copy) ClearHold() {
	c.HeldFor = ""
	c.HoldUntil = nil
}
