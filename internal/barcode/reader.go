package barcode

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
)

// ErrNoReader zwracany gdy żaden czytnik nie jest dostępny
var ErrNoReader = errors.New("barcode: brak czytnika")

// Reader odczytuje kolejne kody kreskowe. Zwraca io.EOF gdy wejście się skończyło.
type Reader interface {
	Read(ctx context.Context) (string, error)
	Name() string
}

// ManualEntryReader czyta kody wpisywane ręcznie albo ze skanera działającego
// jako klawiatura - jeden kod na linię.
type ManualEntryReader struct {
	scanner *bufio.Scanner
}

// NewManualEntryReader tworzy czytnik z dowolnego strumienia tekstu
func NewManualEntryReader(r io.Reader) *ManualEntryReader {
	return &ManualEntryReader{scanner: bufio.NewScanner(r)}
}

// Read zwraca następny niepusty kod
func (m *ManualEntryReader) Read(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if !m.scanner.Scan() {
			if err := m.scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		if code := Normalize(m.scanner.Text()); code != "" {
			return code, nil
		}
	}
}

// Name zwraca nazwę czytnika
func (m *ManualEntryReader) Name() string {
	return "manual"
}

// Prober to czytnik, który potrafi sprawdzić czy sprzęt jest podłączony
type Prober interface {
	Reader
	Available() bool
}

// Select wybiera pierwszy dostępny czytnik. Czytnik ręczny jest zawsze dostępny,
// więc zwykle podaje się go jako ostatni.
func Select(readers ...Reader) (Reader, error) {
	for _, r := range readers {
		if r == nil {
			continue
		}
		if p, ok := r.(Prober); ok && !p.Available() {
			slog.Info("czytnik niedostępny, próbuję następnego", "reader", r.Name())
			continue
		}
		return r, nil
	}
	return nil, ErrNoReader
}
