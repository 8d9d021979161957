// Package storetest zawiera wspólny zestaw testów dla implementacji store.Store.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digilib/internal/models"
	"digilib/internal/store"
)

// Factory tworzy świeży, pusty magazyn dla pojedynczego testu
type Factory func(t *testing.T) store.Store

var base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// Run uruchamia zestaw testów kontraktu store.Store
func Run(t *testing.T, newStore Factory) {
	t.Run("Books", func(t *testing.T) { testBooks(t, newStore(t)) })
	t.Run("Copies", func(t *testing.T) { testCopies(t, newStore(t)) })
	t.Run("Loans", func(t *testing.T) { testLoans(t, newStore(t)) })
	t.Run("Requests", func(t *testing.T) { testRequests(t, newStore(t)) })
	t.Run("Waitlists", func(t *testing.T) { testWaitlists(t, newStore(t)) })
	t.Run("Reviews", func(t *testing.T) { testReviews(t, newStore(t)) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("ReadYourWrites", func(t *testing.T) { testReadYourWrites(t, newStore(t)) })
}

func update(t *testing.T, s store.Store, fn func(store.Tx) error) {
	t.Helper()
	require.NoError(t, s.Update(context.Background(), fn))
}

func view(t *testing.T, s store.Store, fn func(store.Tx) error) {
	t.Helper()
	require.NoError(t, s.View(context.Background(), fn))
}

func testBooks(t *testing.T, s store.Store) {
	update(t, s, func(tx store.Tx) error {
		require.NoError(t, tx.PutBook(&models.Book{ID: "b2", Title: "Solaris", Author: "Stanisław Lem", Genre: "Science Fiction", Language: "pl", CreatedAt: base, UpdatedAt: base}))
		return tx.PutBook(&models.Book{ID: "b1", Title: "Lalka", Author: "Bolesław Prus", Genre: "Classic", Language: "pl", SeriesTitle: "Lektury", VolumeNumber: 3, LCCNumber: "Z12.BOL", CopiesCreated: 2, LastSerial: 2, CreatedAt: base, UpdatedAt: base})
	})

	view(t, s, func(tx store.Tx) error {
		b, err := tx.GetBook("b1")
		require.NoError(t, err)
		assert.Equal(t, "Lalka", b.Title)
		assert.Equal(t, "Lektury", b.SeriesTitle)
		assert.Equal(t, 3, b.VolumeNumber)
		assert.Equal(t, 2, b.CopiesCreated)
		assert.True(t, base.Equal(b.CreatedAt))

		books, err := tx.ListBooks()
		require.NoError(t, err)
		require.Len(t, books, 2)
		assert.Equal(t, "b1", books[0].ID)
		assert.Equal(t, "b2", books[1].ID)

		_, err = tx.GetBook("missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})

	update(t, s, func(tx store.Tx) error {
		b, err := tx.GetBook("b2")
		require.NoError(t, err)
		b.Title = "Solaris (wyd. II)"
		return tx.PutBook(b)
	})
	view(t, s, func(tx store.Tx) error {
		b, err := tx.GetBook("b2")
		require.NoError(t, err)
		assert.Equal(t, "Solaris (wyd. II)", b.Title)
		return nil
	})
}

func testCopies(t *testing.T, s store.Store) {
	hold := base.Add(72 * time.Hour)
	update(t, s, func(tx store.Tx) error {
		for _, c := range []*models.Copy{
			{ID: "c3", BookID: "b1", Barcode: "FA1.SAP-C3", Serial: 3, Status: models.CopyStatusAvailable, CreatedAt: base},
			{ID: "c1", BookID: "b1", Barcode: "FA1.SAP-C1", Serial: 1, Status: models.CopyStatusBorrowed, CreatedAt: base},
			{ID: "c2", BookID: "b1", Barcode: "FA1.SAP-C2", Serial: 2, Status: models.CopyStatusAvailable, HeldFor: "carol", HoldUntil: &hold, CreatedAt: base},
			{ID: "x1", BookID: "b2", Barcode: "HI2.DAV-C1", Serial: 1, Status: models.CopyStatusAvailable, CreatedAt: base},
		} {
			require.NoError(t, tx.PutCopy(c))
		}
		return nil
	})

	view(t, s, func(tx store.Tx) error {
		copies, err := tx.ListCopies("b1")
		require.NoError(t, err)
		require.Len(t, copies, 3)
		assert.Equal(t, []int{1, 2, 3}, []int{copies[0].Serial, copies[1].Serial, copies[2].Serial})
		assert.Equal(t, "carol", copies[1].HeldFor)
		require.NotNil(t, copies[1].HoldUntil)
		assert.True(t, hold.Equal(*copies[1].HoldUntil))
		assert.Nil(t, copies[0].HoldUntil)

		c, err := tx.GetCopyByBarcode("HI2.DAV-C1")
		require.NoError(t, err)
		assert.Equal(t, "x1", c.ID)

		_, err = tx.GetCopyByBarcode("NOPE-C1")
		assert.ErrorIs(t, err, store.ErrNotFound)

		empty, err := tx.ListCopies("none")
		require.NoError(t, err)
		assert.Empty(t, empty)
		return nil
	})

	update(t, s, func(tx store.Tx) error {
		return tx.DeleteCopy("c3")
	})
	view(t, s, func(tx store.Tx) error {
		_, err := tx.GetCopy("c3")
		assert.ErrorIs(t, err, store.ErrNotFound)
		copies, err := tx.ListCopies("b1")
		require.NoError(t, err)
		assert.Len(t, copies, 2)
		return nil
	})
}

func testLoans(t *testing.T, s store.Store) {
	ext := base.Add(21 * 24 * time.Hour)
	returned := base.Add(20 * 24 * time.Hour)
	update(t, s, func(tx store.Tx) error {
		require.NoError(t, tx.PutLoan(&models.Loan{ID: "l2", CopyID: "c2", BookID: "b1", BorrowerID: "bob", Status: models.LoanStatusActive, CheckoutDate: base.Add(time.Hour), DueDate: base.Add(14 * 24 * time.Hour)}))
		require.NoError(t, tx.PutLoan(&models.Loan{ID: "l1", CopyID: "c1", BookID: "b1", BorrowerID: "alice", Status: models.LoanStatusReturned, CheckoutDate: base, DueDate: base.Add(14 * 24 * time.Hour), ExtensionDate: &ext, CheckinDate: &returned, Fine: 500}))
		return tx.PutLoan(&models.Loan{ID: "l3", CopyID: "x1", BookID: "b2", BorrowerID: "alice", Status: models.LoanStatusActive, CheckoutDate: base.Add(2 * time.Hour), DueDate: base.Add(14 * 24 * time.Hour)})
	})

	view(t, s, func(tx store.Tx) error {
		l, err := tx.GetLoan("l1")
		require.NoError(t, err)
		assert.Equal(t, models.Money(500), l.Fine)
		require.NotNil(t, l.ExtensionDate)
		assert.True(t, ext.Equal(*l.ExtensionDate))
		require.NotNil(t, l.CheckinDate)

		all, err := tx.ListLoans(store.LoanFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "l1", all[0].ID)
		assert.Equal(t, "l3", all[2].ID)

		alice, err := tx.ListLoans(store.LoanFilter{BorrowerID: "alice", Status: models.LoanStatusActive})
		require.NoError(t, err)
		require.Len(t, alice, 1)
		assert.Equal(t, "l3", alice[0].ID)

		byCopy, err := tx.ListLoans(store.LoanFilter{CopyID: "c2"})
		require.NoError(t, err)
		require.Len(t, byCopy, 1)

		byBook, err := tx.ListLoans(store.LoanFilter{BookID: "b1"})
		require.NoError(t, err)
		assert.Len(t, byBook, 2)

		_, err = tx.GetLoan("missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
}

func testRequests(t *testing.T, s store.Store) {
	update(t, s, func(tx store.Tx) error {
		require.NoError(t, tx.PutRequest(&models.Request{ID: "r2", BorrowerID: "alice", BookID: "b1", Type: models.RequestTypeExtend, Status: models.RequestStatusPending, RequestDate: base.Add(time.Minute)}))
		return tx.PutRequest(&models.Request{ID: "r1", BorrowerID: "alice", BookID: "b1", CopyID: "c1", Type: models.RequestTypeCheckin, Status: models.RequestStatusPending, RequestDate: base})
	})
	update(t, s, func(tx store.Tx) error {
		r, err := tx.GetRequest("r2")
		require.NoError(t, err)
		now := base.Add(time.Hour)
		r.Status = models.RequestStatusRejected
		r.RejectionReason = "za wcześnie"
		r.ResolvedDate = &now
		return tx.PutRequest(r)
	})

	view(t, s, func(tx store.Tx) error {
		all, err := tx.ListRequests(store.RequestFilter{BorrowerID: "alice"})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "r1", all[0].ID)
		assert.Equal(t, "c1", all[0].CopyID)

		pending, err := tx.ListRequests(store.RequestFilter{Status: models.RequestStatusPending})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "r1", pending[0].ID)

		r, err := tx.GetRequest("r2")
		require.NoError(t, err)
		assert.Equal(t, "za wcześnie", r.RejectionReason)
		require.NotNil(t, r.ResolvedDate)

		_, err = tx.GetRequest("missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
}

func testWaitlists(t *testing.T, s store.Store) {
	view(t, s, func(tx store.Tx) error {
		w, err := tx.GetWaitlist("b1")
		require.NoError(t, err)
		assert.Equal(t, "b1", w.BookID)
		assert.Zero(t, w.Len())
		return nil
	})

	update(t, s, func(tx store.Tx) error {
		w, err := tx.GetWaitlist("b1")
		require.NoError(t, err)
		w.Add("carol", base)
		w.Add("erin", base.Add(time.Minute))
		w.UpdatedAt = base
		return tx.PutWaitlist(w)
	})

	view(t, s, func(tx store.Tx) error {
		w, err := tx.GetWaitlist("b1")
		require.NoError(t, err)
		require.Equal(t, 2, w.Len())
		assert.Equal(t, "carol", w.Entries[0].BorrowerID)
		assert.Equal(t, 2, w.Position("erin"))
		return nil
	})
}

func testReviews(t *testing.T, s store.Store) {
	update(t, s, func(tx store.Tx) error {
		require.NoError(t, tx.PutReview(&models.Review{ID: "v1", BookID: "b1", UserID: "alice", Text: "Świetna", CreatedAt: base}))
		require.NoError(t, tx.PutReview(&models.Review{ID: "v2", BookID: "b1", UserID: "bob", Text: "Nudna", Likes: []string{"alice"}, CreatedAt: base.Add(time.Hour)}))
		return tx.PutReview(&models.Review{ID: "v3", BookID: "b2", UserID: "bob", Text: "Ok", CreatedAt: base.Add(2 * time.Hour)})
	})

	view(t, s, func(tx store.Tx) error {
		b1, err := tx.ListReviews("b1")
		require.NoError(t, err)
		require.Len(t, b1, 2)
		assert.Equal(t, "v2", b1[0].ID)
		assert.Equal(t, []string{"alice"}, b1[0].Likes)

		all, err := tx.ListReviews("")
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "v3", all[0].ID)
		return nil
	})

	update(t, s, func(tx store.Tx) error {
		return tx.DeleteReview("v1")
	})
	view(t, s, func(tx store.Tx) error {
		_, err := tx.GetReview("v1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
}

func testRollback(t *testing.T, s store.Store) {
	boom := errors.New("boom")
	err := s.Update(context.Background(), func(tx store.Tx) error {
		require.NoError(t, tx.PutBook(&models.Book{ID: "b1", Title: "Lalka", CreatedAt: base, UpdatedAt: base}))
		require.NoError(t, tx.PutCopy(&models.Copy{ID: "c1", BookID: "b1", Barcode: "Z1.PRU-C1", Serial: 1, Status: models.CopyStatusAvailable, CreatedAt: base}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	view(t, s, func(tx store.Tx) error {
		_, err := tx.GetBook("b1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = tx.GetCopy("c1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
}

func testReadYourWrites(t *testing.T, s store.Store) {
	update(t, s, func(tx store.Tx) error {
		return tx.PutCopy(&models.Copy{ID: "c1", BookID: "b1", Barcode: "Z1.PRU-C1", Serial: 1, Status: models.CopyStatusAvailable, CreatedAt: base})
	})

	update(t, s, func(tx store.Tx) error {
		c, err := tx.GetCopy("c1")
		require.NoError(t, err)
		c.Status = models.CopyStatusBorrowed
		require.NoError(t, tx.PutCopy(c))
		require.NoError(t, tx.PutCopy(&models.Copy{ID: "c2", BookID: "b1", Barcode: "Z1.PRU-C2", Serial: 2, Status: models.CopyStatusAvailable, CreatedAt: base}))

		again, err := tx.GetCopy("c1")
		require.NoError(t, err)
		assert.Equal(t, models.CopyStatusBorrowed, again.Status)

		copies, err := tx.ListCopies("b1")
		require.NoError(t, err)
		require.Len(t, copies, 2)
		assert.Equal(t, models.CopyStatusBorrowed, copies[0].Status)

		byBarcode, err := tx.GetCopyByBarcode("Z1.PRU-C2")
		require.NoError(t, err)
		assert.Equal(t, "c2", byBarcode.ID)

		require.NoError(t, tx.DeleteCopy("c2"))
		copies, err = tx.ListCopies("b1")
		require.NoError(t, err)
		assert.Len(t, copies, 1)
		return nil
	})
}
