// Package lending to silnik wypożyczeń: jedyne miejsce, które zmienia stan
// egzemplarzy, wypożyczeń, próśb i list oczekujących.
//
// Każda operacja zmieniająca stan zajmuje blokadę książki (i egzemplarza,
// gdy jest znany) przed rozpoczęciem transakcji, a wszystkie zmiany w
// magazynie wykonuje w jednej transakcji store.Store.Update.
package lending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"digilib/internal/barcode"
	"digilib/internal/lock"
	"digilib/internal/notify"
	"digilib/internal/store"
)

// Recorder zbiera metryki operacji
type Recorder interface {
	Checkout(outcome string)
	Checkin()
	RequestResolved(decision string)
	LockWait(d time.Duration)
}

// Wyniki wypożyczenia dla Recorder.Checkout
const (
	OutcomeLoan       = "loan"
	OutcomeWaitlisted = "waitlisted"
	OutcomeNoCopy     = "no_copy"
	OutcomeError      = "error"
)

type nopRecorder struct{}

func (nopRecorder) Checkout(string)        {}
func (nopRecorder) Checkin()               {}
func (nopRecorder) RequestResolved(string) {}
func (nopRecorder) LockWait(time.Duration) {}

// Engine to silnik wypożyczeń
type Engine struct {
	store    store.Store
	locker   lock.Locker
	policy   Policy
	clock    func() time.Time
	newID    func() string
	newLCC   func(genre, author string) string
	logger   *slog.Logger
	recorder Recorder
	notifier notify.Notifier
	validate *validator.Validate
}

// Option konfiguruje Engine
type Option func(*Engine)

// WithPolicy ustawia regulamin
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithClock podmienia zegar, np. w testach
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithIDGenerator podmienia generator identyfikatorów
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// WithLCCGenerator podmienia generator numerów LCC
func WithLCCGenerator(gen func(genre, author string) string) Option {
	return func(e *Engine) { e.newLCC = gen }
}

// WithLogger ustawia logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRecorder ustawia odbiorcę metryk
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithNotifier ustawia odbiorcę zdarzeń
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// New tworzy silnik. Brak blokad oznacza blokady w pamięci procesu.
func New(st store.Store, locker lock.Locker, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, errors.New("lending: magazyn jest wymagany")
	}
	if locker == nil {
		locker = lock.NewMemory()
	}
	e := &Engine{
		store:    st,
		locker:   locker,
		policy:   DefaultPolicy(),
		clock:    time.Now,
		newID:    uuid.NewString,
		newLCC:   barcode.NewLCC,
		logger:   slog.Default(),
		recorder: nopRecorder{},
		notifier: notify.Nop{},
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.policy.Validate(); err != nil {
		return nil, fmt.Errorf("lending: %w", err)
	}
	return e, nil
}

// Policy zwraca regulamin silnika
func (e *Engine) Policy() Policy {
	return e.policy
}

// now zwraca czas z dokładnością do milisekundy, tak jak przechowują go magazyny SQL
func (e *Engine) now() time.Time {
	return e.clock().UTC().Truncate(time.Millisecond)
}

func (e *Engine) withLocks(ctx context.Context, keys []string, fn func() error) error {
	start := time.Now()
	unlock, err := e.locker.Lock(ctx, keys...)
	if err != nil {
		return fmt.Errorf("błąd blokady %v: %w", keys, err)
	}
	defer unlock()
	e.recorder.LockWait(time.Since(start))
	return fn()
}

// publish wysyła zdarzenia po zatwierdzeniu transakcji. Błąd publikacji nie cofa operacji.
func (e *Engine) publish(ctx context.Context, events []notify.Event) {
	for _, ev := range events {
		if err := e.notifier.Publish(ctx, ev); err != nil {
			e.logger.WarnContext(ctx, "nie udało się opublikować zdarzenia", "type", ev.Type, "error", err)
		}
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// validateStruct zamienia błędy walidatora na *ValidationError
func (e *Engine) validateStruct(v any) error {
	err := e.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return invalid(fe.Field(), fmt.Sprintf("reguła %s", fe.Tag()))
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, store.ErrNotFound) {
		return sentinel
	}
	return err
}
