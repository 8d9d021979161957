package firebase

import (
	"digilib/internal/models"
	"digilib/internal/store"
)

// GetReview pobiera recenzję po ID
func (t *tx) GetReview(id string) (*models.Review, error) {
	r, err := getDoc[models.Review](t, ReviewsCollection, id)
	if err != nil {
		return nil, err
	}
	r.Likes = append([]string(nil), r.Likes...)
	return r, nil
}

// ListReviews pobiera recenzje książki (albo wszystkie) od najnowszej
func (t *tx) ListReviews(bookID string) ([]*models.Review, error) {
	q := t.s.collection(ReviewsCollection).Query
	if bookID != "" {
		q = q.Where("book_id", "==", bookID)
	}
	reviews, err := listDocs(t, ReviewsCollection, q, func(r *models.Review) bool {
		return bookID == "" || r.BookID == bookID
	})
	if err != nil {
		return nil, err
	}
	store.SortReviews(reviews)
	return reviews, nil
}

// PutReview zapisuje recenzję
func (t *tx) PutReview(r *models.Review) error {
	cp := *r
	cp.Likes = append([]string(nil), r.Likes...)
	return t.set(ReviewsCollection, r.ID, cp)
}

// DeleteReview usuwa recenzję
func (t *tx) DeleteReview(id string) error {
	if _, err := t.GetReview(id); err != nil {
		return err
	}
	return t.remove(ReviewsCollection, id)
}
