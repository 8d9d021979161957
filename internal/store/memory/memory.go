// Package memory to backend magazynu w pamięci procesu. Używany w testach
// i w trybie deweloperskim bez bazy danych.
package memory

import (
	"context"
	"errors"
	"sync"

	"digilib/internal/models"
	"digilib/internal/store"
)

// ErrReadOnly zwracany przy próbie zapisu w transakcji View
var ErrReadOnly = errors.New("memory: transakcja tylko do odczytu")

type state struct {
	books     map[string]models.Book
	copies    map[string]models.Copy
	loans     map[string]models.Loan
	requests  map[string]models.Request
	waitlists map[string]models.Waitlist
	reviews   map[string]models.Review
}

func newState() *state {
	return &state{
		books:     map[string]models.Book{},
		copies:    map[string]models.Copy{},
		loans:     map[string]models.Loan{},
		requests:  map[string]models.Request{},
		waitlists: map[string]models.Waitlist{},
		reviews:   map[string]models.Review{},
	}
}

// clone kopiuje mapy. Wartości są kopiowane przy każdym Get/Put, więc
// współdzielone wycinki nigdy nie są modyfikowane w miejscu.
func (s *state) clone() *state {
	return &state{
		books:     cloneMap(s.books),
		copies:    cloneMap(s.copies),
		loans:     cloneMap(s.loans),
		requests:  cloneMap(s.requests),
		waitlists: cloneMap(s.waitlists),
		reviews:   cloneMap(s.reviews),
	}
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Store trzyma dane w pamięci. Transakcje zapisu działają na kopii stanu,
// która zastępuje stan główny dopiero po sukcesie.
type Store struct {
	mu    sync.RWMutex
	state *state
}

// New tworzy pusty magazyn
func New() *Store {
	return &Store{state: newState()}
}

// Update wykonuje fn w transakcji zapisu
func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{st: s.state.clone()}
	if err := fn(t); err != nil {
		return err
	}
	s.state = t.st
	return nil
}

// View wykonuje fn w transakcji tylko do odczytu
func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&tx{st: s.state, readOnly: true})
}

// Close nic nie robi
func (s *Store) Close() error {
	return nil
}

type tx struct {
	st       *state
	readOnly bool
}

func (t *tx) writable() error {
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (t *tx) GetBook(id string) (*models.Book, error) {
	b, ok := t.st.books[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &b, nil
}

func (t *tx) ListBooks() ([]*models.Book, error) {
	out := make([]*models.Book, 0, len(t.st.books))
	for _, b := range t.st.books {
		b := b
		out = append(out, &b)
	}
	store.SortBooks(out)
	return out, nil
}

func (t *tx) PutBook(b *models.Book) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.books[b.ID] = *b
	return nil
}

func (t *tx) GetCopy(id string) (*models.Copy, error) {
	c, ok := t.st.copies[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (t *tx) GetCopyByBarcode(barcode string) (*models.Copy, error) {
	for _, c := range t.st.copies {
		if c.Barcode == barcode {
			c := c
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) ListCopies(bookID string) ([]*models.Copy, error) {
	var out []*models.Copy
	for _, c := range t.st.copies {
		if c.BookID == bookID {
			c := c
			out = append(out, &c)
		}
	}
	store.SortCopies(out)
	return out, nil
}

func (t *tx) PutCopy(c *models.Copy) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.copies[c.ID] = *c
	return nil
}

func (t *tx) DeleteCopy(id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.copies[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.st.copies, id)
	return nil
}

func (t *tx) GetLoan(id string) (*models.Loan, error) {
	l, ok := t.st.loans[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &l, nil
}

func (t *tx) ListLoans(f store.LoanFilter) ([]*models.Loan, error) {
	var out []*models.Loan
	for _, l := range t.st.loans {
		l := l
		if f.Match(&l) {
			out = append(out, &l)
		}
	}
	store.SortLoans(out)
	return out, nil
}

func (t *tx) PutLoan(l *models.Loan) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.loans[l.ID] = *l
	return nil
}

func (t *tx) GetRequest(id string) (*models.Request, error) {
	r, ok := t.st.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (t *tx) ListRequests(f store.RequestFilter) ([]*models.Request, error) {
	var out []*models.Request
	for _, r := range t.st.requests {
		r := r
		if f.Match(&r) {
			out = append(out, &r)
		}
	}
	store.SortRequests(out)
	return out, nil
}

func (t *tx) PutRequest(r *models.Request) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.requests[r.ID] = *r
	return nil
}

func (t *tx) GetWaitlist(bookID string) (*models.Waitlist, error) {
	w, ok := t.st.waitlists[bookID]
	if !ok {
		return &models.Waitlist{BookID: bookID}, nil
	}
	return w.Clone(), nil
}

func (t *tx) PutWaitlist(w *models.Waitlist) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.waitlists[w.BookID] = *w.Clone()
	return nil
}

func (t *tx) GetReview(id string) (*models.Review, error) {
	r, ok := t.st.reviews[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r.Likes = append([]string(nil), r.Likes...)
	return &r, nil
}

func (t *tx) ListReviews(bookID string) ([]*models.Review, error) {
	var out []*models.Review
	for _, r := range t.st.reviews {
		if bookID != "" && r.BookID != bookID {
			continue
		}
		r := r
		r.Likes = append([]string(nil), r.Likes...)
		out = append(out, &r)
	}
	store.SortReviews(out)
	return out, nil
}

func (t *tx) PutReview(r *models.Review) error {
	if err := t.writable(); err != nil {
		return err
	}
	cp := *r
	cp.Likes = append([]string(nil), r.Likes...)
	t.st.reviews[r.ID] = cp
	return nil
}

func (t *tx) DeleteReview(id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.reviews[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.st.reviews, id)
	return nil
}
