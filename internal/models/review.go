package models

import "time"

// Review reprezentuje recenzję książki napisaną przez czytelnika
type Review struct {
	ID        string    `json:"id" firestore:"id"`
	BookID    string    `json:"book_id" firestore:"book_id"`
	UserID    string    `json:"user_id" firestore:"user_id"`
	Text      string    `json:"text" firestore:"text"`
	Likes     []string  `json:"likes" firestore:"likes"`
	CreatedAt time.Time `json:"created_at" firestore:"created_at"`
}

// LikedBy sprawdza czy użytkownik polubił recenzję
func (r *Review) LikedBy(userID string) bool {
	for _, id := range r.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// ToggleLike dodaje albo usuwa polubienie. Zwraca true gdy recenzja jest teraz polubiona.
func (r *Review) ToggleLike(userID string) bool {
	for i, id := range r.Likes {
		if id == userID {
			r.Likes = append(r.Likes[:i:i], r.Likes[i+1:]...)
			return false
		}
	}
	r.Likes = append(r.Likes, userID)
	return true
}
