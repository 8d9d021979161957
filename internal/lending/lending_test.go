package lending_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"digilib/internal/lending"
	"digilib/internal/lock"
	"digilib/internal/models"
	"digilib/internal/notify"
	"digilib/internal/store"
	"digilib/internal/store/memory"
	"digilib/internal/store/sqlstore"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingRecorder struct {
	mu        sync.Mutex
	checkouts map[string]int
	checkins  int
	resolved  map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{checkouts: map[string]int{}, resolved: map[string]int{}}
}

func (r *countingRecorder) Checkout(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkouts[outcome]++
}

func (r *countingRecorder) Checkin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkins++
}

func (r *countingRecorder) RequestResolved(decision string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved[decision]++
}

func (r *countingRecorder) LockWait(time.Duration) {}

type captureNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *captureNotifier) Publish(_ context.Context, ev notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *captureNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Type)
	}
	return out
}

type harness struct {
	engine   *lending.Engine
	store    store.Store
	clock    *fakeClock
	recorder *countingRecorder
	events   *captureNotifier
}

func sequentialLCC() func(genre, author string) string {
	var n atomic.Int64
	return func(genre, author string) string {
		return fmt.Sprintf("T%d.TST", n.Add(1))
	}
}

func newHarness(t *testing.T, st store.Store, policy lending.Policy) *harness {
	t.Helper()
	h := &harness{
		store:    st,
		clock:    &fakeClock{now: t0},
		recorder: newCountingRecorder(),
		events:   &captureNotifier{},
	}
	e, err := lending.New(st, lock.NewMemory(),
		lending.WithPolicy(policy),
		lending.WithClock(h.clock.Now),
		lending.WithLCCGenerator(sequentialLCC()),
		lending.WithRecorder(h.recorder),
		lending.WithNotifier(h.events),
	)
	require.NoError(t, err)
	h.engine = e
	return h
}

type backend struct {
	name string
	open func(t *testing.T) store.Store
}

func backends() []backend {
	return []backend{
		{"memory", func(t *testing.T) store.Store { return memory.New() }},
		{"sqlite", func(t *testing.T) store.Store {
			s, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "lending.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		}},
	}
}

func bookX() lending.BookInput {
	return lending.BookInput{Title: "X", Author: "Olga Tokarczuk", Genre: "Fiction", Language: "pl"}
}

func (h *harness) addBook(t *testing.T, copies int) (*models.Book, []*models.Copy) {
	t.Helper()
	b, cs, err := h.engine.AddBook(context.Background(), bookX(), copies)
	require.NoError(t, err)
	return b, cs
}

func (h *harness) copies(t *testing.T, bookID string) []*models.Copy {
	t.Helper()
	cs, err := h.engine.ListCopies(context.Background(), bookID)
	require.NoError(t, err)
	return cs
}

// assertInvariants sprawdza licznik egzemplarzy i relację borrowed <=> aktywne wypożyczenie
func (h *harness) assertInvariants(t *testing.T) {
	t.Helper()
	require.NoError(t, h.store.View(context.Background(), func(tx store.Tx) error {
		books, err := tx.ListBooks()
		require.NoError(t, err)
		for _, b := range books {
			copies, err := tx.ListCopies(b.ID)
			require.NoError(t, err)
			assert.Equal(t, b.TotalCopies(), len(copies), "book %s", b.ID)
			for _, c := range copies {
				active, err := tx.ListLoans(store.LoanFilter{CopyID: c.ID, Status: models.LoanStatusActive})
				require.NoError(t, err)
				if c.Status == models.CopyStatusBorrowed {
					assert.Len(t, active, 1, "copy %s", c.Barcode)
				} else {
					assert.Empty(t, active, "copy %s", c.Barcode)
				}
			}
		}
		return nil
	}))
}

func TestScenarios(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, b.open(t), lending.DefaultPolicy())

			// A
			book, copies := h.addBook(t, 2)
			require.Len(t, copies, 2)
			assert.Equal(t, book.LCCNumber+"-C1", copies[0].Barcode)
			assert.Equal(t, book.LCCNumber+"-C2", copies[1].Barcode)

			alice, err := h.engine.Checkout(ctx, book.ID, "alice")
			require.NoError(t, err)
			require.False(t, alice.Waitlisted)
			assert.Equal(t, copies[0].ID, alice.Loan.CopyID)
			assert.Equal(t, t0.Add(14*24*time.Hour), alice.Loan.DueDate)

			bob, err := h.engine.Checkout(ctx, book.ID, "bob")
			require.NoError(t, err)
			assert.Equal(t, copies[1].ID, bob.Loan.CopyID)

			carol, err := h.engine.Checkout(ctx, book.ID, "carol")
			require.NoError(t, err)
			assert.True(t, carol.Waitlisted)
			assert.Nil(t, carol.Loan)
			assert.Equal(t, 1, carol.Position)

			again, err := h.engine.Checkout(ctx, book.ID, "carol")
			require.NoError(t, err)
			assert.True(t, again.Waitlisted)

			wl, err := h.engine.Waitlist(ctx, book.ID)
			require.NoError(t, err)
			require.Len(t, wl.Entries, 1)
			assert.Equal(t, "carol", wl.Entries[0].BorrowerID)

			cs := h.copies(t, book.ID)
			assert.Equal(t, models.CopyStatusBorrowed, cs[0].Status)
			assert.Equal(t, models.CopyStatusBorrowed, cs[1].Status)
			h.assertInvariants(t)

			// B
			h.clock.Advance(24 * time.Hour)
			returned, err := h.engine.Checkin(ctx, alice.Loan.ID)
			require.NoError(t, err)
			assert.Equal(t, models.LoanStatusReturned, returned.Status)
			require.NotNil(t, returned.CheckinDate)
			assert.Equal(t, models.Money(0), returned.Fine)
			assert.Equal(t, models.CopyStatusAvailable, h.copies(t, book.ID)[0].Status)

			dave, err := h.engine.Checkout(ctx, book.ID, "dave")
			require.NoError(t, err)
			require.NotNil(t, dave.Loan)
			assert.Equal(t, copies[0].ID, dave.Loan.CopyID)

			// kolejka pozostaje nietknięta przy polityce none
			wl, err = h.engine.Waitlist(ctx, book.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, wl.Position("carol"))
			h.assertInvariants(t)

			// D
			_, err = h.engine.Checkin(ctx, dave.Loan.ID)
			require.NoError(t, err)
			remaining, err := h.engine.AdjustCopyCount(ctx, book.ID, 1)
			require.NoError(t, err)
			require.Len(t, remaining, 1)
			assert.Equal(t, copies[1].ID, remaining[0].ID)
			assert.Equal(t, models.CopyStatusBorrowed, remaining[0].Status)

			_, err = h.engine.AdjustCopyCount(ctx, book.ID, 0)
			require.ErrorIs(t, err, lending.ErrInsufficientAvailableCopies)

			got, err := h.engine.GetBook(ctx, book.ID)
			require.NoError(t, err)
			assert.Equal(t, 2, got.CopiesCreated)
			assert.Equal(t, 1, got.CopiesRemoved)
			assert.Equal(t, 1, got.TotalCopies())
			h.assertInvariants(t)
		})
	}
}

func TestAdjustCopyCountBothBorrowed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.New(), lending.DefaultPolicy())
	book, _ := h.addBook(t, 2)
	for _, who := range []string{"alice", "bob"} {
		_, err := h.engine.Checkout(ctx, book.ID, who)
		require.NoError(t, err)
	}

	_, err := h.engine.AdjustCopyCount(ctx, book.ID, 0)
	require.ErrorIs(t, err, lending.ErrInsufficientAvailableCopies)
	assert.Len(t, h.copies(t, book.ID), 2)

	_, err = h.engine.AdjustCopyCount(ctx, book.ID, lending.MaxCopyCount+1)
	require.ErrorIs(t, err, lending.ErrValidation)
	assert.Len(t, h.copies(t, book.ID), 2)
	h.assertInvariants(t)
}

func TestAdjustCopyCountUsesNextUnusedSerial(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.New(), lending.DefaultPolicy())
	book, _ := h.addBook(t, 2)

	_, err := h.engine.AdjustCopyCount(ctx, book.ID, 1)
	require.NoError(t, err)
	copies, err := h.engine.AdjustCopyCount(ctx, book.ID, 3)
	require.NoError(t, err)

	serials := make([]int, 0, len(copies))
	for _, c := range copies {
		serials = append(serials, c.Serial)
		assert.Equal(t, models.CopyStatusAvailable, c.Status)
	}
	assert.Equal(t, []int{1, 3, 4}, serials)
	assert.Equal(t, book.LCCNumber+"-C4", copies[2].Barcode)

	got, err := h.engine.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.LastSerial)
	assert.Equal(t, 3, got.TotalCopies())

	_, err = h.engine.AdjustCopyCount(ctx, book.ID, -1)
	require.ErrorIs(t, err, lending.ErrValidation)
	_, err = h.engine.AdjustCopyCount(ctx, "missing", 1)
	require.ErrorIs(t, err, lending.ErrBookNotFound)
	h.assertInvariants(t)
}

func TestScenarioCFineFrozenAtCheckin(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			policy := lending.DefaultPolicy()
			policy.FineRatePerDay = 1
			h := newHarness(t, b.open(t), policy)
			book, _ := h.addBook(t, 1)

			res, err := h.engine.Checkout(ctx, book.ID, "alice")
			require.NoError(t, err)
			loan := res.Loan

			// termin minął pięć dni temu
			h.clock.Advance(19 * 24 * time.Hour)
			assert.Equal(t, models.Money(5), h.engine.ComputeFine(loan, h.clock.Now()))

			closed, err := h.engine.Checkin(ctx, loan.ID)
			require.NoError(t, err)
			assert.Equal(t, models.Money(5), closed.Fine)

			later := h.clock.Now().Add(10 * 24 * time.Hour)
			assert.Equal(t, models.Money(5), h.engine.ComputeFine(closed, later))

			stored, err := h.engine.GetLoan(ctx, loan.ID)
			require.NoError(t, err)
			assert.Equal(t, models.Money(5), stored.Fine)
			assert.Equal(t, models.Money(5), lending.ComputeFine(stored, later, 1))
		})
	}
}

func TestFineMonotonicWhileActive(t *testing.T) {
	due := t0
	loan := &models.Loan{Status: models.LoanStatusActive, DueDate: due}
	prev := models.Money(0)
	for h := -48; h <= 24*30; h += 7 {
		fine := lending.ComputeFine(loan, due.Add(time.Duration(h)*time.Hour), 100)
		assert.GreaterOrEqual(t, fine, prev)
		assert.GreaterOrEqual(t, fine, models.Money(0))
		prev = fine
	}

	ext := due.Add(3 * 24 * time.Hour)
	loan.ExtensionDate = &ext
	assert.Equal(t, models.Money(0), lending.ComputeFine(loan, due.Add(2*24*time.Hour), 100))
	assert.Equal(t, models.Money(200), lending.ComputeFine(loan, ext.Add(2*24*time.Hour+time.Hour), 100))
}

func TestCheckinTwice(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.New(), lending.DefaultPolicy())
	book, _ := h.addBook(t, 1)
	res, err := h.engine.Checkout(ctx, book.ID, "alice")
	require.NoError(t, err)

	_, err = h.engine.Checkin(ctx, res.Loan.ID)
	require.NoError(t, err)
	before := h.copies(t, book.ID)

	_, err = h.engine.Checkin(ctx, res.Loan.ID)
	require.ErrorIs(t, err, lending.ErrLoanAlreadyClosed)
	assert.Equal(t, before, h.copies(t, book.ID))

	_, err = h.engine.Checkin(ctx, "missing")
	require.ErrorIs(t, err, lending.ErrLoanNotFound)
	assert.Equal(t, 1, h.recorder.checkins)
}

func TestConcurrentCheckoutSingleCopy(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.New(), lending.DefaultPolicy())
	book, copies := h.addBook(t, 1)

	const borrowers = 16
	results := make([]*lending.CheckoutResult, borrowers)
	var g errgroup.Group
	for i := 0; i < borrowers; i++ {
		g.Go(func() error {
			res, err := h.engine.Checkout(ctx, book.ID, fmt.Sprintf("reader-%02d", i))
			results[i] = res
			return err
		})
	}
	require.NoError(t, g.Wait())

	loans, waitlisted := 0, 0
	for _, res := range results {
		if res.Waitlisted {
			waitlisted++
			continue
		}
		loans++
		assert.Equal(t, copies[0].ID, res.Loan.CopyID)
	}
	assert.Equal(t, 1, loans)
	assert.Equal(t, borrowers-1, waitlisted)

	wl, err := h.engine.Waitlist(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, borrowers-1, wl.Len())
	h.assertInvariants(t)
}

func TestConcurrentCheckoutTwoEngines(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	locker := lock.NewMemory()
	var engines []*lending.Engine
	for i := 0; i < 2; i++ {
		e, err := lending.New(st, locker, lending.WithLCCGenerator(sequentialLCC()))
		require.NoError(t, err)
		engines = append(engines, e)
	}
	book, _, err := engines[0].AddBook(ctx, bookX(), 1)
	require.NoError(t, err)

	var (
		g     errgroup.Group
		loans atomic.Int32
	)
	for i := 0; i < 8; i++ {
		e := engines[i%2]
		g.Go(func() error {
			res, err := e.Checkout(ctx, book.ID, fmt.Sprintf("r%d", i))
			if err == nil && !res.Waitlisted {
				loans.Add(1)
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), loans.Load())
}

// racyStore udaje konkurencyjne wypożyczenie: pierwsze n odczytów GetCopy
// widzi egzemplarz jako wypożyczony.
type racyStore struct {
	store.Store
	mu    sync.Mutex
	races int
}

func (s *racyStore) Update(ctx context.Context, fn func(store.Tx) error) error {
	return s.Store.Update(ctx, func(tx store.Tx) error {
		return fn(&racyTx{Tx: tx, s: s})
	})
}

type racyTx struct {
	store.Tx
	s *racyStore
}

func (t *racyTx) GetCopy(id string) (*models.Copy, error) {
	c, err := t.Tx.GetCopy(id)
	if err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.s.races > 0 {
		t.s.races--
		c.Status = models.CopyStatusBorrowed
	}
	return c, nil
}

func TestCheckoutRetriesOnceAfterLostRace(t *testing.T) {
	ctx := context.Background()
	st := &racyStore{Store: memory.New()}
	h := newHarness(t, st, lending.DefaultPolicy())
	book, copies := h.addBook(t, 1)

	st.races = 1
	res, err := h.engine.Checkout(ctx, book.ID, "alice")
	require.NoError(t, err)
	require.NotNil(t, res.Loan)
	assert.Equal(t, copies[0].ID, res.Loan.CopyID)
	h.assertInvariants(t)
}

func TestCheckoutSurfacesNoCopyAfterSecondLostRace(t *testing.T) {
	ctx := context.Background()
	st := &racyStore{Store: memory.New()}
	h := newHarness(t, st, lending.DefaultPolicy())
	book, _ := h.addBook(t, 1)

	st.races = 2
	_, err := h.engine.Checkout(ctx, book.ID, "alice")
	require.ErrorIs(t, err, lending.ErrNoCopyAvailable)
	assert.Equal(t, 1, h.recorder.checkouts[lending.OutcomeNoCopy])

	// nic nie zostało zapisane
	cs := h.copies(t, book.ID)
	assert.Equal(t, models.CopyStatusAvailable, cs[0].Status)
	active, err := h.engine.ActiveLoans(ctx, lending.LoanQuery{})
	require.NoError(t, err)
	assert.Empty(t, active)
	wl, err := h.engine.Waitlist(ctx, book.ID)
	require.NoError(t, err)
	assert.Zero(t, wl.Len())
}

func TestAddBookValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.New(), lending.DefaultPolicy())

	tests := []struct {
		name   string
		in     lending.BookInput
		copies int
		field  string
	}{
		{"missing title", lending.BookInput{Author: "A", Genre: "Fiction", Language: "pl"}, 1, "title"},
		{"missing author", lending.BookInput{Title: "T", Genre: "Fiction", Language: "pl"}, 1, "author"},
		{"missing genre", lending.BookInput{Title: "T", Author: "A", Language: "pl"}, 1, "genre"},
		{"blank language", lending.BookInput{Title: "T", Author: "A", Genre: "Fiction", Language: "  "}, 1, "language"},
		{"negative volume", lending.BookInput{Title: "T", Author: "A", Genre: "Fiction", Language: "pl", VolumeNumber: -1}, 1, "volume_number"},
		{"zero copies", bookX(), 0, "copy_count"},
		{"too many copies", bookX(), lending.MaxCopyCount + 1, "copy_count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := h.engine.AddBook(ctx, tt.in, tt.copies)
			require.ErrorIs(t, err, lending.ErrValidation)
			var verr *lending.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	books, err := h.engine.ListBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestAddBookRegeneratesCollidingLCC(t *testing.T) {
	ctx := context.Background()
	calls := 0
	gen := func(genre, author string) string {
		calls++
		if calls <= 2 {
			return "F100.TOK"
		}
		return "F200.TOK"
	}
	e, err := lending.New(memory.New(), nil, lending.WithLCCGenerator(gen))
	require.NoError(t, err)

	first, _, err := e.AddBook(ctx, bookX(), 1)
	require.NoError(t, err)
	second, copies, err := e.AddBook(ctx, bookX(), 1)
	require.NoError(t, err)
	assert.Equal(t, "F100.TOK", first.LCCNumber)
	assert.Equal(t, "F200.TOK", second.LCCNumber)
	assert.Equal(t, "F200.TOK-C1", copies[0].Barcode)
}

func TestSearchAndUpdateBook(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.New(), lending.DefaultPolicy())
	book, _ := h.addBook(t, 1)
	_, _, err := h.engine.AddBook(ctx, lending.BookInput{Title: "Solaris", Author: "Stanisław Lem", Genre: "Science Fiction", Language: "pl"}, 1)
	require.NoError(t, err)

	found, err := h.engine.SearchBooks(ctx, "lem")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Solaris", found[0].Title)

	all, err := h.engine.SearchBooks(ctx, " ")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	in := bookX()
	in.Title = "Księgi Jakubowe"
	in.SeriesTitle = "Dzieła"
	in.VolumeNumber = 2
	updated, err := h.engine.UpdateBook(ctx, book.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Księgi Jakubowe", updated.Title)
	assert.Equal(t, book.LCCNumber, updated.LCCNumber)

	_, err = h.engine.UpdateBook(ctx, "missing", in)
	require.ErrorIs(t, err, lending.ErrBookNotFound)
}

func TestFindAvailableCopyLowestSerial(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.New(), lending.DefaultPolicy())
	book, copies := h.addBook(t, 3)

	c, err := h.engine.FindAvailableCopy(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, copies[0].ID, c.ID)

	_, err = h.engine.CheckoutByBarcode(ctx, copies[0].Barcode, "alice")
	require.NoError(t, err)
	c, err = h.engine.FindAvailableCopy(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, copies[1].ID, c.ID)

	for _, who := range []string{"bob", "carol"} {
		_, err := h.engine.Checkout(ctx, book.ID, who)
		require.NoError(t, err)
	}
	c, err = h.engine.FindAvailableCopy(ctx, book.ID)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestDeskBarcodeOperations(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.New(), lending.DefaultPolicy())
	book, copies := h.addBook(t, 2)

	loan, err := h.engine.CheckoutByBarcode(ctx, " "+copies[1].Barcode+" ", "alice")
	require.NoError(t, err)
	assert.Equal(t, copies[1].ID, loan.CopyID)
	assert.Equal(t, book.ID, loan.BookID)

	_, err = h.engine.CheckoutByBarcode(ctx, copies[1].Barcode, "bob")
	require.ErrorIs(t, err, lending.ErrCopyNotAvailable)

	_, err = h.engine.CheckoutByBarcode(ctx, "NOPE-C9", "bob")
	require.ErrorIs(t, err, lending.ErrCopyNotFound)

	closed, err := h.engine.CheckinByBarcode(ctx, copies[1].Barcode)
	require.NoError(t, err)
	assert.Equal(t, loan.ID, closed.ID)
	assert.Equal(t, models.LoanStatusReturned, closed.Status)

	_, err = h.engine.CheckinByBarcode(ctx, copies[1].Barcode)
	require.ErrorIs(t, err, lending.ErrLoanNotFound)
	h.assertInvariants(t)
}

func TestRequestExtension(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.New(), lending.DefaultPolicy())
	book, _ := h.addBook(t, 1)
	res, err := h.engine.Checkout(ctx, book.ID, "alice")
	require.NoError(t, err)

	_, err = h.engine.RequestExtension(ctx, res.Loan.ID, 0)
	require.ErrorIs(t, err, lending.ErrValidation)
	// Duże wartości przepełniały time.Duration i cofały termin zwrotu
	_, err = h.engine.RequestExtension(ctx, res.Loan.ID, 200000)
	var verr *lending.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "days", verr.Field)
	got, err := h.engine.GetLoan(ctx, res.Loan.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ExtensionDate)

	other, _ := h.addBook(t, 1)
	long, err := h.engine.Checkout(ctx, other.ID, "bob")
	require.NoError(t, err)
	maxed, err := h.engine.RequestExtension(ctx, long.Loan.ID, lending.MaxDays)
	require.NoError(t, err)
	assert.Equal(t, long.Loan.DueDate.Add(lending.MaxDays*24*time.Hour), maxed.EffectiveDueDate())

	ext, err := h.engine.RequestExtension(ctx, res.Loan.ID, 5)
	require.NoError(t, err)
	require.NotNil(t, ext.ExtensionDate)
	assert.Equal(t, res.Loan.DueDate, ext.DueDate)
	assert.Equal(t, res.Loan.DueDate.Add(5*24*time.Hour), ext.EffectiveDueDate())

	ext, err = h.engine.RequestExtension(ctx, res.Loan.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, res.Loan.DueDate.Add(7*24*time.Hour), ext.EffectiveDueDate())

	_, err = h.engine.Checkin(ctx, res.Loan.ID)
	require.NoError(t, err)
	_, err = h.engine.RequestExtension(ctx, res.Loan.ID, 1)
	require.ErrorIs(t, err, lending.ErrLoanAlreadyClosed)
	_, err = h.engine.RequestExtension(ctx, "missing", 1)
	require.ErrorIs(t, err, lending.ErrLoanNotFound)
}

func TestLedgerQueries(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.New(), lending.DefaultPolicy())
	book, _ := h.addBook(t, 3)

	a1, err := h.engine.Checkout(ctx, book.ID, "alice")
	require.NoError(t, err)
	h.clock.Advance(time.Hour)
	a2, err := h.engine.Checkout(ctx, book.ID, "alice")
	require.NoError(t, err)
	_, err = h.engine.Checkout(ctx, book.ID, "bob")
	require.NoError(t, err)

	// alice oddaje pierwszy egzemplarz 3 dni po terminie
	h.clock.Advance(17 * 24 * time.Hour)
	_, err = h.engine.Checkin(ctx, a1.Loan.ID)
	require.NoError(t, err)

	history, err := h.engine.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, a1.Loan.ID, history[0].ID)
	all, err := h.engine.History(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	active, err := h.engine.ActiveLoans(ctx, lending.LoanQuery{BorrowerID: "alice"})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a2.Loan.ID, active[0].ID)

	overdue, err := h.engine.Overdue(ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Len(t, overdue, 2)
	overdue, err = h.engine.Overdue(ctx, t0)
	require.NoError(t, err)
	assert.Empty(t, overdue)

	fines, err := h.engine.BorrowerFines(ctx, "alice", h.clock.Now())
	require.NoError(t, err)
	require.Len(t, fines.Items, 2)
	// oba wypożyczenia alice są 3 pełne dni po terminie
	var frozen, accruing lending.LoanFine
	for _, it := range fines.Items {
		if it.Accruing {
			accruing = it
		} else {
			frozen = it
		}
	}
	assert.Equal(t, models.Money(300), frozen.Amount)
	assert.Equal(t, 3, frozen.DaysOverdue)
	assert.Equal(t, models.Money(300), accruing.Amount)
	assert.Equal(t, 3, accruing.DaysOverdue)
	assert.Equal(t, a2.Loan.ID, accruing.Loan.ID)
	assert.Equal(t, models.Money(300), fines.Outstanding)
	assert.Equal(t, models.Money(300), fines.Settled)
	assert.Equal(t, models.Money(600), fines.Total)

	// kara zamrożona przy zwrocie nie rośnie, rośnie tylko zaległość
	h.clock.Advance(24 * time.Hour)
	later, err := h.engine.BorrowerFines(ctx, "alice", h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, models.Money(400), later.Outstanding)
	assert.Equal(t, models.Money(300), later.Settled)

	none, err := h.engine.BorrowerFines(ctx, "carol", h.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, none.Items)
	assert.Zero(t, none.Total)
	assert.Zero(t, none.Outstanding)
}

func TestServeWaitlist(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.New(), lending.DefaultPolicy())
	book, _ := h.addBook(t, 1)

	alice, err := h.engine.Checkout(ctx, book.ID, "alice")
	require.NoError(t, err)
	_, err = h.engine.Checkout(ctx, book.ID, "bob")
	require.NoError(t, err)

	_, err = h.engine.ServeWaitlist(ctx, book.ID)
	require.ErrorIs(t, err, lending.ErrNoCopyAvailable)
	wl, err := h.engine.Waitlist(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, wl.Position("bob"))

	_, err = h.engine.Checkin(ctx, alice.Loan.ID)
	require.NoError(t, err)
	loan, err := h.engine.ServeWaitlist(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", loan.BorrowerID)

	_, err = h.engine.ServeWaitlist(ctx, book.ID)
	require.ErrorIs(t, err, lending.ErrWaitlistEmpty)
	h.assertInvariants(t)
}

func TestCheckoutRemovesBorrowerFromWaitlist(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.New(), lending.DefaultPolicy())
	book, _ := h.addBook(t, 1)

	alice, err := h.engine.Checkout(ctx, book.ID, "alice")
	require.NoError(t, err)
	for _, who := range []string{"bob", "carol"} {
		res, err := h.engine.Checkout(ctx, book.ID, who)
		require.NoError(t, err)
		require.True(t, res.Waitlisted)
	}

	// bob dostaje nowy egzemplarz bezpośrednio i znika z kolejki, carol zostaje
	_, err = h.engine.AdjustCopyCount(ctx, book.ID, 2)
	require.NoError(t, err)
	bob, err := h.engine.Checkout(ctx, book.ID, "bob")
	require.NoError(t, err)
	require.NotNil(t, bob.Loan)
	wl, err := h.engine.Waitlist(ctx, book.ID)
	require.NoError(t, err)
	assert.Zero(t, wl.Position("bob"))
	assert.Equal(t, 1, wl.Position("carol"))

	_, err = h.engine.Checkin(ctx, alice.Loan.ID)
	require.NoError(t, err)
	served, err := h.engine.ServeWaitlist(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", served.BorrowerID)

	active, err := h.engine.ActiveLoans(ctx, lending.LoanQuery{BorrowerID: "bob", BookID: book.ID})
	require.NoError(t, err)
	assert.Len(t, active, 1)
	h.assertInvariants(t)
}

// putWaitlist zapisuje kolejkę z pominięciem silnika, np. wpisy sprzed aktualizacji
func (h *harness) putWaitlist(t *testing.T, bookID string, borrowers ...string) {
	t.Helper()
	require.NoError(t, h.store.Update(context.Background(), func(tx store.Tx) error {
		wl, err := tx.GetWaitlist(bookID)
		if err != nil {
			return err
		}
		for _, b := range borrowers {
			wl.Add(b, t0)
		}
		return tx.PutWaitlist(wl)
	}))
}

func TestWaitlistSkipsBorrowersWithActiveLoan(t *testing.T) {
	ctx := context.Background()

	t.Run("serve", func(t *testing.T) {
		h := newHarness(t, memory.New(), lending.DefaultPolicy())
		book, _ := h.addBook(t, 2)
		_, err := h.engine.Checkout(ctx, book.ID, "bob")
		require.NoError(t, err)
		h.putWaitlist(t, book.ID, "bob", "carol")

		loan, err := h.engine.ServeWaitlist(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, "carol", loan.BorrowerID)
		wl, err := h.engine.Waitlist(ctx, book.ID)
		require.NoError(t, err)
		assert.Zero(t, wl.Len())
	})

	t.Run("only borrowers with a loan", func(t *testing.T) {
		h := newHarness(t, memory.New(), lending.DefaultPolicy())
		book, _ := h.addBook(t, 2)
		_, err := h.engine.Checkout(ctx, book.ID, "bob")
		require.NoError(t, err)
		h.putWaitlist(t, book.ID, "bob")

		_, err = h.engine.ServeWaitlist(ctx, book.ID)
		require.ErrorIs(t, err, lending.ErrWaitlistEmpty)
		active, err := h.engine.ActiveLoans(ctx, lending.LoanQuery{BorrowerID: "bob", BookID: book.ID})
		require.NoError(t, err)
		assert.Len(t, active, 1)
	})

	t.Run("fifo hold", func(t *testing.T) {
		policy := lending.DefaultPolicy()
		policy.HoldPolicy = lending.HoldPolicyFIFO
		h := newHarness(t, memory.New(), policy)
		book, _ := h.addBook(t, 2)
		alice, err := h.engine.Checkout(ctx, book.ID, "alice")
		require.NoError(t, err)
		_, err = h.engine.Checkout(ctx, book.ID, "bob")
		require.NoError(t, err)
		h.putWaitlist(t, book.ID, "bob", "carol")

		_, err = h.engine.Checkin(ctx, alice.Loan.ID)
		require.NoError(t, err)
		held := h.copies(t, book.ID)[0]
		assert.Equal(t, "carol", held.HeldFor)
		wl, err := h.engine.Waitlist(ctx, book.ID)
		require.NoError(t, err)
		assert.Zero(t, wl.Len())
		h.assertInvariants(t)
	})
}

func TestLeaveWaitlist(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.New(), lending.DefaultPolicy())
	book, _ := h.addBook(t, 1)
	_, err := h.engine.Checkout(ctx, book.ID, "alice")
	require.NoError(t, err)
	_, err = h.engine.Checkout(ctx, book.ID, "bob")
	require.NoError(t, err)

	require.NoError(t, h.engine.LeaveWaitlist(ctx, book.ID, "bob"))
	require.ErrorIs(t, h.engine.LeaveWaitlist(ctx, book.ID, "bob"), lending.ErrNotOnWaitlist)
	require.ErrorIs(t, h.engine.LeaveWaitlist(ctx, "missing", "bob"), lending.ErrBookNotFound)
	assert.Contains(t, h.events.types(), notify.WaitlistLeft)
}

func TestFIFOHoldPolicy(t *testing.T) {
	ctx := context.Background()
	policy := lending.DefaultPolicy()
	policy.HoldPolicy = lending.HoldPolicyFIFO
	policy.HoldGraceDays = 3
	h := newHarness(t, memory.New(), policy)
	book, copies := h.addBook(t, 1)

	alice, err := h.engine.Checkout(ctx, book.ID, "alice")
	require.NoError(t, err)
	for _, who := range []string{"bob", "carol"} {
		res, err := h.engine.Checkout(ctx, book.ID, who)
		require.NoError(t, err)
		require.True(t, res.Waitlisted)
	}

	_, err = h.engine.Checkin(ctx, alice.Loan.ID)
	require.NoError(t, err)
	held := h.copies(t, book.ID)[0]
	assert.Equal(t, models.CopyStatusAvailable, held.Status)
	assert.Equal(t, "bob", held.HeldFor)
	require.NotNil(t, held.HoldUntil)
	assert.Equal(t, t0.Add(3*24*time.Hour), *held.HoldUntil)

	// egzemplarz odłożony dla boba nie jest dostępny dla innych
	res, err := h.engine.Checkout(ctx, book.ID, "carol")
	require.NoError(t, err)
	assert.True(t, res.Waitlisted)
	assert.Equal(t, 1, res.Position)
	_, err = h.engine.CheckoutByBarcode(ctx, copies[0].Barcode, "dave")
	require.ErrorIs(t, err, lending.ErrCopyNotAvailable)
	_, err = h.engine.AdjustCopyCount(ctx, book.ID, 0)
	require.ErrorIs(t, err, lending.ErrInsufficientAvailableCopies)

	bob, err := h.engine.Checkout(ctx, book.ID, "bob")
	require.NoError(t, err)
	require.NotNil(t, bob.Loan)
	assert.Empty(t, h.copies(t, book.ID)[0].HeldFor)

	// zwrot odkłada egzemplarz dla carol; odłożenie wygasa po 3 dniach
	_, err = h.engine.Checkin(ctx, bob.Loan.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", h.copies(t, book.ID)[0].HeldFor)

	n, err := h.engine.ExpireHolds(ctx, h.clock.Now().Add(24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	h.clock.Advance(4 * 24 * time.Hour)
	n, err = h.engine.ExpireHolds(ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	c := h.copies(t, book.ID)[0]
	assert.Empty(t, c.HeldFor)
	assert.Nil(t, c.HoldUntil)

	dave, err := h.engine.Checkout(ctx, book.ID, "dave")
	require.NoError(t, err)
	assert.NotNil(t, dave.Loan)

	types := h.events.types()
	assert.Contains(t, types, notify.HoldPlaced)
	assert.Contains(t, types, notify.HoldExpired)
	h.assertInvariants(t)
}

func TestExpiredHoldPassesToNextInLine(t *testing.T) {
	ctx := context.Background()
	policy := lending.DefaultPolicy()
	policy.HoldPolicy = lending.HoldPolicyFIFO
	h := newHarness(t, memory.New(), policy)
	book, _ := h.addBook(t, 1)

	alice, err := h.engine.Checkout(ctx, book.ID, "alice")
	require.NoError(t, err)
	for _, who := range []string{"bob", "carol"} {
		_, err := h.engine.Checkout(ctx, book.ID, who)
		require.NoError(t, err)
	}
	_, err = h.engine.Checkin(ctx, alice.Loan.ID)
	require.NoError(t, err)

	h.clock.Advance(time.Duration(policy.HoldGraceDays)*24*time.Hour + time.Minute)
	n, err := h.engine.ExpireHolds(ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	c := h.copies(t, book.ID)[0]
	assert.Equal(t, "carol", c.HeldFor)
	wl, err := h.engine.Waitlist(ctx, book.ID)
	require.NoError(t, err)
	assert.Zero(t, wl.Len())
}

func TestRequestQueue(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, b.open(t), lending.DefaultPolicy())
			book, copies := h.addBook(t, 2)

			req, err := h.engine.Submit(ctx, lending.SubmitInput{BorrowerID: "alice", BookID: book.ID, CopyID: copies[1].ID, Type: models.RequestTypeCheckin})
			require.NoError(t, err)
			assert.Equal(t, models.RequestStatusPending, req.Status)

			_, err = h.engine.Submit(ctx, lending.SubmitInput{BorrowerID: "alice", BookID: book.ID, Type: models.RequestTypeCheckin})
			require.ErrorIs(t, err, lending.ErrDuplicatePendingRequest)

			approved, err := h.engine.Resolve(ctx, req.ID, lending.DecisionApprove, "", "librarian")
			require.NoError(t, err)
			assert.Equal(t, models.RequestStatusApproved, approved.Status)
			assert.Equal(t, "librarian", approved.ResolvedBy)
			require.NotNil(t, approved.ResolvedDate)
			loan, err := h.engine.GetLoan(ctx, approved.LoanID)
			require.NoError(t, err)
			assert.Equal(t, copies[1].ID, loan.CopyID)

			_, err = h.engine.Resolve(ctx, req.ID, lending.DecisionReject, "za późno", "librarian")
			require.ErrorIs(t, err, lending.ErrRequestAlreadyResolved)

			ext, err := h.engine.Submit(ctx, lending.SubmitInput{BorrowerID: "alice", BookID: book.ID, Type: models.RequestTypeExtend})
			require.NoError(t, err)
			_, err = h.engine.Resolve(ctx, ext.ID, lending.DecisionApprove, "", "librarian")
			require.NoError(t, err)
			loan, err = h.engine.GetLoan(ctx, loan.ID)
			require.NoError(t, err)
			assert.Equal(t, loan.DueDate.Add(7*24*time.Hour), loan.EffectiveDueDate())

			ret, err := h.engine.Submit(ctx, lending.SubmitInput{BorrowerID: "alice", BookID: book.ID, Type: models.RequestTypeCheckout})
			require.NoError(t, err)
			resolved, err := h.engine.Resolve(ctx, ret.ID, lending.DecisionApprove, "", "librarian")
			require.NoError(t, err)
			assert.Equal(t, loan.ID, resolved.LoanID)
			loan, err = h.engine.GetLoan(ctx, loan.ID)
			require.NoError(t, err)
			assert.Equal(t, models.LoanStatusReturned, loan.Status)

			rej, err := h.engine.Submit(ctx, lending.SubmitInput{BorrowerID: "bob", BookID: book.ID, Type: models.RequestTypeCheckin})
			require.NoError(t, err)
			rejected, err := h.engine.Resolve(ctx, rej.ID, lending.DecisionReject, " brak karty ", "librarian")
			require.NoError(t, err)
			assert.Equal(t, models.RequestStatusRejected, rejected.Status)
			assert.Equal(t, "brak karty", rejected.RejectionReason)

			pending, err := h.engine.ListRequests(ctx, store.RequestFilter{Status: models.RequestStatusPending})
			require.NoError(t, err)
			assert.Empty(t, pending)
			all, err := h.engine.ListRequests(ctx, store.RequestFilter{})
			require.NoError(t, err)
			assert.Len(t, all, 4)
			h.assertInvariants(t)
		})
	}
}

func TestFailedApprovalLeavesRequestPending(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.New(), lending.DefaultPolicy())
	book, _ := h.addBook(t, 1)
	_, err := h.engine.Checkout(ctx, book.ID, "alice")
	require.NoError(t, err)

	req, err := h.engine.Submit(ctx, lending.SubmitInput{BorrowerID: "bob", BookID: book.ID, Type: models.RequestTypeCheckin})
	require.NoError(t, err)
	_, err = h.engine.Resolve(ctx, req.ID, lending.DecisionApprove, "", "librarian")
	require.ErrorIs(t, err, lending.ErrNoCopyAvailable)

	got, err := h.engine.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPending())
	assert.Empty(t, got.LoanID)

	ret, err := h.engine.Submit(ctx, lending.SubmitInput{BorrowerID: "bob", BookID: book.ID, Type: models.RequestTypeCheckout})
	require.NoError(t, err)
	_, err = h.engine.Resolve(ctx, ret.ID, lending.DecisionApprove, "", "librarian")
	require.ErrorIs(t, err, lending.ErrLoanNotFound)
	got, err = h.engine.GetRequest(ctx, ret.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPending())
	assert.Empty(t, h.recorder.resolved)
	h.assertInvariants(t)
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.New(), lending.DefaultPolicy())
	book, _ := h.addBook(t, 1)
	_, otherCopies := h.addBook(t, 1)

	_, err := h.engine.Submit(ctx, lending.SubmitInput{BookID: book.ID, Type: models.RequestTypeCheckin})
	require.ErrorIs(t, err, lending.ErrValidation)
	_, err = h.engine.Submit(ctx, lending.SubmitInput{BorrowerID: "a", BookID: book.ID, Type: "borrow"})
	require.ErrorIs(t, err, lending.ErrValidation)
	_, err = h.engine.Submit(ctx, lending.SubmitInput{BorrowerID: "a", BookID: "missing", Type: models.RequestTypeCheckin})
	require.ErrorIs(t, err, lending.ErrBookNotFound)
	_, err = h.engine.Submit(ctx, lending.SubmitInput{BorrowerID: "a", BookID: book.ID, CopyID: "missing", Type: models.RequestTypeCheckin})
	require.ErrorIs(t, err, lending.ErrCopyNotFound)
	_, err = h.engine.Submit(ctx, lending.SubmitInput{BorrowerID: "a", BookID: book.ID, CopyID: otherCopies[0].ID, Type: models.RequestTypeCheckin})
	require.ErrorIs(t, err, lending.ErrValidation)

	_, err = h.engine.Resolve(ctx, "missing", lending.DecisionApprove, "", "x")
	require.ErrorIs(t, err, lending.ErrRequestNotFound)
	_, err = h.engine.Resolve(ctx, "missing", "maybe", "", "x")
	require.ErrorIs(t, err, lending.ErrValidation)
}

func TestCheckoutOutcomesAndEvents(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.New(), lending.DefaultPolicy())
	book, _ := h.addBook(t, 1)

	_, err := h.engine.Checkout(ctx, book.ID, "alice")
	require.NoError(t, err)
	_, err = h.engine.Checkout(ctx, book.ID, "bob")
	require.NoError(t, err)
	_, err = h.engine.Checkout(ctx, "missing", "bob")
	require.ErrorIs(t, err, lending.ErrBookNotFound)
	_, err = h.engine.Checkout(ctx, book.ID, "")
	require.ErrorIs(t, err, lending.ErrValidation)

	assert.Equal(t, 1, h.recorder.checkouts[lending.OutcomeLoan])
	assert.Equal(t, 1, h.recorder.checkouts[lending.OutcomeWaitlisted])
	assert.Equal(t, 1, h.recorder.checkouts[lending.OutcomeError])
	assert.Equal(t, []string{notify.LoanOpened, notify.WaitlistJoined}, h.events.types())
}

func TestNewRejectsBadPolicy(t *testing.T) {
	p := lending.DefaultPolicy()
	p.HoldPolicy = "lottery"
	_, err := lending.New(memory.New(), nil, lending.WithPolicy(p))
	require.Error(t, err)

	p = lending.DefaultPolicy()
	p.LoanDays = 0
	_, err = lending.New(memory.New(), nil, lending.WithPolicy(p))
	require.Error(t, err)

	_, err = lending.New(nil, nil)
	require.Error(t, err)
}

func TestIsConflict(t *testing.T) {
	assert.True(t, lending.IsConflict(fmt.Errorf("x: %w", lending.ErrNoCopyAvailable)))
	assert.True(t, lending.IsConflict(lending.ErrRequestAlreadyResolved))
	assert.False(t, lending.IsConflict(lending.ErrLoanNotFound))
	assert.False(t, lending.IsConflict(&lending.ValidationError{Field: "x"}))
}
