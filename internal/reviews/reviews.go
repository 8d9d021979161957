// Package reviews obsługuje recenzje książek i ich polubienia.
package reviews

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"digilib/internal/lock"
	"digilib/internal/models"
	"digilib/internal/store"
)

const maxTextLen = 5000

var (
	ErrReviewNotFound = errors.New("nie znaleziono recenzji")
	ErrBookNotFound   = errors.New("nie znaleziono książki")
	ErrEmptyText      = errors.New("treść recenzji nie może być pusta")
	ErrTextTooLong    = fmt.Errorf("treść recenzji może mieć najwyżej %d znaków", maxTextLen)
)

// Service zapisuje recenzje w magazynie
type Service struct {
	store  store.Store
	locker lock.Locker
	clock  func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option konfiguruje Service
type Option func(*Service)

// WithClock podmienia zegar
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithLogger ustawia logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New tworzy serwis recenzji
func New(st store.Store, locker lock.Locker, opts ...Option) *Service {
	if locker == nil {
		locker = lock.NewMemory()
	}
	s := &Service{
		store:  st,
		locker: locker,
		clock:  time.Now,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add dodaje recenzję książki
func (s *Service) Add(ctx context.Context, bookID, userID, text string) (*models.Review, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if utf8.RuneCountInString(text) > maxTextLen {
		return nil, ErrTextTooLong
	}

	r := &models.Review{
		ID:        s.newID(),
		BookID:    bookID,
		UserID:    userID,
		Text:      text,
		Likes:     []string{},
		CreatedAt: s.clock().UTC().Truncate(time.Millisecond),
	}
	err := s.store.Update(ctx, func(tx store.Tx) error {
		if _, err := tx.GetBook(bookID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrBookNotFound
			}
			return err
		}
		return tx.PutReview(r)
	})
	if err != nil {
		return nil, fmt.Errorf("błąd dodawania recenzji: %w", err)
	}
	s.logger.InfoContext(ctx, "dodano recenzję", "review_id", r.ID, "book_id", bookID, "user_id", userID)
	return r, nil
}

// ToggleLike dodaje albo cofa polubienie recenzji przez użytkownika
func (s *Service) ToggleLike(ctx context.Context, reviewID, userID string) (*models.Review, error) {
	unlock, err := s.locker.Lock(ctx, lock.ReviewKey(reviewID))
	if err != nil {
		return nil, fmt.Errorf("błąd blokady recenzji: %w", err)
	}
	defer unlock()

	var review *models.Review
	err = s.store.Update(ctx, func(tx store.Tx) error {
		r, err := tx.GetReview(reviewID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrReviewNotFound
			}
			return err
		}
		r.ToggleLike(userID)
		review = r
		return tx.PutReview(r)
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

// ListByBook zwraca recenzje książki od najnowszej
func (s *Service) ListByBook(ctx context.Context, bookID string) ([]*models.Review, error) {
	var out []*models.Review
	err := s.store.View(ctx, func(tx store.Tx) error {
		if _, err := tx.GetBook(bookID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrBookNotFound
			}
			return err
		}
		var err error
		out, err = tx.ListReviews(bookID)
		return err
	})
	return out, err
}

// ListAll zwraca wszystkie recenzje, do moderacji
func (s *Service) ListAll(ctx context.Context) ([]*models.Review, error) {
	var out []*models.Review
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListReviews("")
		return err
	})
	return out, err
}

// Delete usuwa recenzję
func (s *Service) Delete(ctx context.Context, reviewID string) error {
	unlock, err := s.locker.Lock(ctx, lock.ReviewKey(reviewID))
	if err != nil {
		return fmt.Errorf("błąd blokady recenzji: %w", err)
	}
	defer unlock()

	err = s.store.Update(ctx, func(tx store.Tx) error {
		if err := tx.DeleteReview(reviewID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrReviewNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "usunięto recenzję", "review_id", reviewID)
	return nil
}
