package lending

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"digilib/internal/barcode"
	"digilib/internal/lock"
	"digilib/internal/models"
	"digilib/internal/notify"
	"digilib/internal/store"
)

const lccAttempts = 8

// BookInput to dane katalogowe książki
type BookInput struct {
	Title        string `json:"title" validate:"required,max=300"`
	Author       string `json:"author" validate:"required,max=200"`
	Genre        string `json:"genre" validate:"required,max=100"`
	Language     string `json:"language" validate:"required,max=50"`
	SeriesTitle  string `json:"series_title" validate:"max=300"`
	VolumeNumber int    `json:"volume_number" validate:"gte=0"`
}

func (in *BookInput) trim() {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Genre = strings.TrimSpace(in.Genre)
	in.Language = strings.TrimSpace(in.Language)
	in.SeriesTitle = strings.TrimSpace(in.SeriesTitle)
}

// AddBook dodaje książkę do katalogu razem z copyCount dostępnymi egzemplarzami
func (e *Engine) AddBook(ctx context.Context, in BookInput, copyCount int) (*models.Book, []*models.Copy, error) {
	in.trim()
	if err := e.validateStruct(in); err != nil {
		return nil, nil, err
	}
	if copyCount < 1 || copyCount > MaxCopyCount {
		return nil, nil, invalid("copy_count", fmt.Sprintf("musi wynosić od 1 do %d", MaxCopyCount))
	}

	now := e.now()
	var (
		book   *models.Book
		copies []*models.Copy
	)
	err := e.store.Update(ctx, func(tx store.Tx) error {
		lcc, err := e.uniqueLCC(tx, in, copyCount)
		if err != nil {
			return err
		}
		book = &models.Book{
			ID:            e.newID(),
			Title:         in.Title,
			Author:        in.Author,
			Genre:         in.Genre,
			Language:      in.Language,
			SeriesTitle:   in.SeriesTitle,
			VolumeNumber:  in.VolumeNumber,
			LCCNumber:     lcc,
			CopiesCreated: copyCount,
			LastSerial:    copyCount,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		copies = make([]*models.Copy, 0, copyCount)
		for serial := 1; serial <= copyCount; serial++ {
			c := e.newCopy(book, serial, now)
			if err := tx.PutCopy(c); err != nil {
				return err
			}
			copies = append(copies, c)
		}
		return tx.PutBook(book)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("błąd dodawania książki: %w", err)
	}

	e.logger.InfoContext(ctx, "dodano książkę", "book_id", book.ID, "lcc", book.LCCNumber, "copies", copyCount)
	return book, copies, nil
}

// uniqueLCC losuje numer LCC, którego kody kreskowe nie kolidują z istniejącymi
func (e *Engine) uniqueLCC(tx store.Tx, in BookInput, copyCount int) (string, error) {
	for attempt := 0; attempt < lccAttempts; attempt++ {
		lcc := e.newLCC(in.Genre, in.Author)
		free := true
		for serial := 1; serial <= copyCount && free; serial++ {
			_, err := tx.GetCopyByBarcode(barcode.Format(lcc, serial))
			switch {
			case err == nil:
				free = false
			case !errors.Is(err, store.ErrNotFound):
				return "", err
			}
		}
		if free {
			return lcc, nil
		}
	}
	return "", fmt.Errorf("nie udało się wygenerować unikalnego numeru LCC po %d próbach", lccAttempts)
}

func (e *Engine) newCopy(book *models.Book, serial int, now time.Time) *models.Copy {
	return &models.Copy{
		ID:        e.newID(),
		BookID:    book.ID,
		Barcode:   barcode.Format(book.LCCNumber, serial),
		Serial:    serial,
		Status:    models.CopyStatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UpdateBook poprawia dane katalogowe. Numer LCC i egzemplarze pozostają bez zmian.
func (e *Engine) UpdateBook(ctx context.Context, bookID string, in BookInput) (*models.Book, error) {
	in.trim()
	if err := e.validateStruct(in); err != nil {
		return nil, err
	}
	now := e.now()
	var book *models.Book
	err := e.withLocks(ctx, []string{lock.BookKey(bookID)}, func() error {
		return e.store.Update(ctx, func(tx store.Tx) error {
			b, err := tx.GetBook(bookID)
			if err != nil {
				return notFound(err, ErrBookNotFound)
			}
			b.Title = in.Title
			b.Author = in.Author
			b.Genre = in.Genre
			b.Language = in.Language
			b.SeriesTitle = in.SeriesTitle
			b.VolumeNumber = in.VolumeNumber
			b.UpdatedAt = now
			book = b
			return tx.PutBook(b)
		})
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// AdjustCopyCount zmienia liczbę egzemplarzy książki. Nowe egzemplarze dostają
// kolejne nieużyte numery. Przy zmniejszaniu usuwane są tylko egzemplarze
// dostępne i nieodłożone, od najwyższego numeru; wypożyczone nigdy.
func (e *Engine) AdjustCopyCount(ctx context.Context, bookID string, newCount int) ([]*models.Copy, error) {
	if newCount < 0 || newCount > MaxCopyCount {
		return nil, invalid("copy_count", fmt.Sprintf("musi wynosić od 0 do %d", MaxCopyCount))
	}

	now := e.now()
	var (
		result []*models.Copy
		events []notify.Event
	)
	err := e.withLocks(ctx, []string{lock.BookKey(bookID)}, func() error {
		return e.store.Update(ctx, func(tx store.Tx) error {
			events = nil
			book, err := tx.GetBook(bookID)
			if err != nil {
				return notFound(err, ErrBookNotFound)
			}
			copies, err := tx.ListCopies(bookID)
			if err != nil {
				return err
			}

			current := len(copies)
			switch {
			case newCount > current:
				for i := 1; i <= newCount-current; i++ {
					c := e.newCopy(book, book.LastSerial+i, now)
					if err := tx.PutCopy(c); err != nil {
						return err
					}
				}
				book.CopiesCreated += newCount - current
				book.LastSerial += newCount - current
			case newCount < current:
				need := current - newCount
				removable := make([]*models.Copy, 0, need)
				for i := len(copies) - 1; i >= 0; i-- {
					c := copies[i]
					if c.IsAvailable() && !c.IsHeld(now) {
						removable = append(removable, c)
					}
				}
				if len(removable) < need {
					return fmt.Errorf("%w: nie można usunąć %d egzemplarzy, dostępnych jest tylko %d",
						ErrInsufficientAvailableCopies, need, len(removable))
				}
				for _, c := range removable[:need] {
					if _, err := transition(c.Status, eventRemove); err != nil {
						return err
					}
					if err := tx.DeleteCopy(c.ID); err != nil {
						return err
					}
				}
				book.CopiesRemoved += need
			default:
				result = copies
				return nil
			}

			book.UpdatedAt = now
			if err := tx.PutBook(book); err != nil {
				return err
			}
			result, err = tx.ListCopies(bookID)
			if err != nil {
				return err
			}
			events = append(events, notify.Event{Type: notify.CopiesAdjusted, BookID: bookID, OccurredAt: now})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "zmieniono liczbę egzemplarzy", "book_id", bookID, "count", newCount)
	e.publish(ctx, events)
	return result, nil
}

// GetBook pobiera książkę po ID
func (e *Engine) GetBook(ctx context.Context, bookID string) (*models.Book, error) {
	var book *models.Book
	err := e.store.View(ctx, func(tx store.Tx) error {
		b, err := tx.GetBook(bookID)
		if err != nil {
			return notFound(err, ErrBookNotFound)
		}
		book = b
		return nil
	})
	return book, err
}

// ListBooks pobiera cały katalog
func (e *Engine) ListBooks(ctx context.Context) ([]*models.Book, error) {
	var books []*models.Book
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		books, err = tx.ListBooks()
		return err
	})
	return books, err
}

// SearchBooks wyszukuje książki po tytule, autorze, gatunku lub serii
func (e *Engine) SearchBooks(ctx context.Context, query string) ([]*models.Book, error) {
	books, err := e.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return books, nil
	}
	// filtruj po stronie aplikacji
	var out []*models.Book
	for _, b := range books {
		if strings.Contains(strings.ToLower(b.Title), query) ||
			strings.Contains(strings.ToLower(b.Author), query) ||
			strings.Contains(strings.ToLower(b.Genre), query) ||
			strings.Contains(strings.ToLower(b.SeriesTitle), query) {
			out = append(out, b)
		}
	}
	return out, nil
}

// ListCopies pobiera egzemplarze książki
func (e *Engine) ListCopies(ctx context.Context, bookID string) ([]*models.Copy, error) {
	var copies []*models.Copy
	err := e.store.View(ctx, func(tx store.Tx) error {
		if _, err := tx.GetBook(bookID); err != nil {
			return notFound(err, ErrBookNotFound)
		}
		var err error
		copies, err = tx.ListCopies(bookID)
		return err
	})
	return copies, err
}

// CopyByBarcode wyszukuje egzemplarz po kodzie kreskowym
func (e *Engine) CopyByBarcode(ctx context.Context, code string) (*models.Copy, error) {
	code = barcode.Normalize(code)
	if code == "" {
		return nil, required("barcode")
	}
	var c *models.Copy
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		c, err = tx.GetCopyByBarcode(code)
		return notFound(err, ErrCopyNotFound)
	})
	return c, err
}

// FindAvailableCopy zwraca dostępny egzemplarz o najniższym numerze albo nil
func (e *Engine) FindAvailableCopy(ctx context.Context, bookID string) (*models.Copy, error) {
	now := e.now()
	var c *models.Copy
	err := e.store.View(ctx, func(tx store.Tx) error {
		if _, err := tx.GetBook(bookID); err != nil {
			return notFound(err, ErrBookNotFound)
		}
		var err error
		c, err = findAvailableCopy(tx, bookID, "", now)
		return err
	})
	return c, err
}

// findAvailableCopy wybiera egzemplarz dla czytelnika: najpierw odłożony dla
// niego, w przeciwnym razie dostępny i nieodłożony o najniższym numerze.
func findAvailableCopy(tx store.Tx, bookID, borrowerID string, now time.Time) (*models.Copy, error) {
	copies, err := tx.ListCopies(bookID)
	if err != nil {
		return nil, err
	}
	var first *models.Copy
	for _, c := range copies {
		if !c.AvailableFor(borrowerID, now) {
			continue
		}
		if borrowerID != "" && c.IsHeld(now) && c.HeldFor == borrowerID {
			return c, nil
		}
		if first == nil {
			first = c
		}
	}
	return first, nil
}
