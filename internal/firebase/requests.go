package firebase

import (
	"cloud.google.com/go/firestore"

	"digilib/internal/models"
	"digilib/internal/store"
)

// GetRequest pobiera prośbę po ID
func (t *tx) GetRequest(id string) (*models.Request, error) {
	return getDoc[models.Request](t, RequestsCollection, id)
}

// ListRequests pobiera prośby spełniające filtr, od najstarszej
func (t *tx) ListRequests(f store.RequestFilter) ([]*models.Request, error) {
	var q firestore.Query
	coll := t.s.collection(RequestsCollection)
	switch {
	case f.BorrowerID != "":
		q = coll.Where("borrower_id", "==", f.BorrowerID)
	case f.BookID != "":
		q = coll.Where("book_id", "==", f.BookID)
	case f.Status != "":
		q = coll.Where("status", "==", string(f.Status))
	default:
		q = coll.Query
	}

	reqs, err := listDocs(t, RequestsCollection, q, f.Match)
	if err != nil {
		return nil, err
	}
	store.SortRequests(reqs)
	return reqs, nil
}

// PutRequest zapisuje prośbę
func (t *tx) PutRequest(r *models.Request) error {
	return t.set(RequestsCollection, r.ID, *r)
}

// GetWaitlist pobiera listę oczekujących. Dokument ma ID książki.
func (t *tx) GetWaitlist(bookID string) (*models.Waitlist, error) {
	w, err := getDoc[models.Waitlist](t, WaitlistsCollection, bookID)
	if err == store.ErrNotFound {
		return &models.Waitlist{BookID: bookID}, nil
	}
	if err != nil {
		return nil, err
	}
	return w.Clone(), nil
}

// PutWaitlist zapisuje listę oczekujących
func (t *tx) PutWaitlist(w *models.Waitlist) error {
	return t.set(WaitlistsCollection, w.BookID, *w.Clone())
}
