package firebase

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"digilib/internal/store"
)

const (
	// BooksCollection to nazwa kolekcji książek w Firestore
	BooksCollection     = "books"
	CopiesCollection    = "copies"
	LoansCollection     = "loans"
	RequestsCollection  = "requests"
	WaitlistsCollection = "waitlists"
	ReviewsCollection   = "reviews"
)

// ErrReadOnly zwracany przy próbie zapisu w transakcji View
var ErrReadOnly = errors.New("firebase: transakcja tylko do odczytu")

// Store implementuje store.Store na transakcjach Firestore.
// Firestore wymaga, by wszystkie odczyty poprzedzały zapisy, więc zapisy są
// buforowane i wysyłane na końcu funkcji transakcji.
type Store struct {
	client *firestore.Client
	prefix string
}

// StoreOption konfiguruje Store
type StoreOption func(*Store)

// WithCollectionPrefix dodaje prefiks do nazw kolekcji (np. osobne środowiska)
func WithCollectionPrefix(prefix string) StoreOption {
	return func(s *Store) { s.prefix = prefix }
}

// NewStore tworzy magazyn na bazie klienta Firestore
func NewStore(client *firestore.Client, opts ...StoreOption) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update wykonuje fn w transakcji Firestore. Firestore może powtórzyć fn przy konflikcie.
func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, ftx *firestore.Transaction) error {
		t := s.newTx(ftx, false)
		if err := fn(t); err != nil {
			return err
		}
		return t.flush()
	})
}

// View wykonuje fn w transakcji tylko do odczytu
func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, ftx *firestore.Transaction) error {
		return fn(s.newTx(ftx, true))
	}, firestore.ReadOnly)
}

// Close nie zamyka klienta - należy on do Client
func (s *Store) Close() error {
	return nil
}

func (s *Store) collection(name string) *firestore.CollectionRef {
	return s.client.Collection(s.prefix + name)
}

type pendingWrite struct {
	data    any
	deleted bool
}

type tx struct {
	s        *Store
	ftx      *firestore.Transaction
	readOnly bool
	pending  map[string]map[string]pendingWrite
}

func (s *Store) newTx(ftx *firestore.Transaction, readOnly bool) *tx {
	return &tx{s: s, ftx: ftx, readOnly: readOnly, pending: map[string]map[string]pendingWrite{}}
}

func (t *tx) set(coll, id string, data any) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if t.pending[coll] == nil {
		t.pending[coll] = map[string]pendingWrite{}
	}
	t.pending[coll][id] = pendingWrite{data: data}
	return nil
}

func (t *tx) remove(coll, id string) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if t.pending[coll] == nil {
		t.pending[coll] = map[string]pendingWrite{}
	}
	t.pending[coll][id] = pendingWrite{deleted: true}
	return nil
}

func (t *tx) flush() error {
	for coll, docs := range t.pending {
		for id, w := range docs {
			ref := t.s.collection(coll).Doc(id)
			var err error
			if w.deleted {
				err = t.ftx.Delete(ref)
			} else {
				err = t.ftx.Set(ref, w.data)
			}
			if err != nil {
				return fmt.Errorf("błąd zapisu dokumentu %s/%s: %w", coll, id, err)
			}
		}
	}
	return nil
}

// getDoc czyta dokument uwzględniając zapisy buforowane w tej transakcji
func getDoc[T any](t *tx, coll, id string) (*T, error) {
	if id == "" {
		return nil, store.ErrNotFound
	}
	if w, ok := t.pending[coll][id]; ok {
		if w.deleted {
			return nil, store.ErrNotFound
		}
		v := w.data.(T)
		return &v, nil
	}
	doc, err := t.ftx.Get(t.s.collection(coll).Doc(id))
	if status.Code(err) == codes.NotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("błąd pobierania dokumentu %s/%s: %w", coll, id, err)
	}
	var v T
	if err := doc.DataTo(&v); err != nil {
		return nil, fmt.Errorf("błąd parsowania dokumentu %s/%s: %w", coll, id, err)
	}
	return &v, nil
}

// listDocs wykonuje zapytanie i scala wynik z buforowanymi zapisami.
// Filtrowanie keep odbywa się po stronie aplikacji, więc nie są potrzebne indeksy złożone.
func listDocs[T any](t *tx, coll string, q firestore.Query, keep func(*T) bool) ([]*T, error) {
	var out []*T
	iter := t.ftx.Documents(q)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("błąd pobierania kolekcji %s: %w", coll, err)
		}
		if _, ok := t.pending[coll][doc.Ref.ID]; ok {
			continue
		}
		var v T
		if err := doc.DataTo(&v); err != nil {
			return nil, fmt.Errorf("błąd parsowania dokumentu %s/%s: %w", coll, doc.Ref.ID, err)
		}
		if keep(&v) {
			out = append(out, &v)
		}
	}
	for _, w := range t.pending[coll] {
		if w.deleted {
			continue
		}
		v := w.data.(T)
		if keep(&v) {
			out = append(out, &v)
		}
	}
	return out, nil
}
