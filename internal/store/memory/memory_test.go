package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"digilib/internal/models"
	"digilib/internal/store"
	"digilib/internal/store/storetest"
)

func TestMemoryStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New()
	})
}

func TestViewRejectsWrites(t *testing.T) {
	s := New()
	err := s.View(context.Background(), func(tx store.Tx) error {
		return tx.PutBook(&models.Book{ID: "b1"})
	})
	require.ErrorIs(t, err, ErrReadOnly)
}

func TestUpdateHonoursCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := s.Update(ctx, func(store.Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}
