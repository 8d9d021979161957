package firebase

import (
	"digilib/internal/models"
	"digilib/internal/store"
)

// GetBook pobiera książkę po ID
func (t *tx) GetBook(id string) (*models.Book, error) {
	return getDoc[models.Book](t, BooksCollection, id)
}

// ListBooks pobiera wszystkie książki posortowane po tytule
func (t *tx) ListBooks() ([]*models.Book, error) {
	q := t.s.collection(BooksCollection).Query
	books, err := listDocs(t, BooksCollection, q, func(*models.Book) bool { return true })
	if err != nil {
		return nil, err
	}
	store.SortBooks(books)
	return books, nil
}

// PutBook zapisuje książkę
func (t *tx) PutBook(b *models.Book) error {
	return t.set(BooksCollection, b.ID, *b)
}

// GetCopy pobiera egzemplarz po ID
func (t *tx) GetCopy(id string) (*models.Copy, error) {
	return getDoc[models.Copy](t, CopiesCollection, id)
}

// GetCopyByBarcode wyszukuje egzemplarz po kodzie kreskowym
func (t *tx) GetCopyByBarcode(barcode string) (*models.Copy, error) {
	q := t.s.collection(CopiesCollection).Where("barcode", "==", barcode)
	copies, err := listDocs(t, CopiesCollection, q, func(c *models.Copy) bool { return c.Barcode == barcode })
	if err != nil {
		return nil, err
	}
	if len(copies) == 0 {
		return nil, store.ErrNotFound
	}
	return copies[0], nil
}

// ListCopies pobiera egzemplarze książki rosnąco po numerze
func (t *tx) ListCopies(bookID string) ([]*models.Copy, error) {
	q := t.s.collection(CopiesCollection).Where("book_id", "==", bookID)
	copies, err := listDocs(t, CopiesCollection, q, func(c *models.Copy) bool { return c.BookID == bookID })
	if err != nil {
		return nil, err
	}
	store.SortCopies(copies)
	return copies, nil
}

// PutCopy zapisuje egzemplarz
func (t *tx) PutCopy(c *models.Copy) error {
	return t.set(CopiesCollection, c.ID, *c)
}

// DeleteCopy usuwa egzemplarz
func (t *tx) DeleteCopy(id string) error {
	if _, err := t.GetCopy(id); err != nil {
		return err
	}
	return t.remove(CopiesCollection, id)
}
