// Package desk obsługuje stanowisko wypożyczeń: czyta kody kreskowe
// z czytnika i wysyła je do API jako wypożyczenia lub zwroty.
package desk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"digilib/internal/barcode"
	"digilib/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Mode to rodzaj operacji wykonywanej dla każdego zeskanowanego kodu
type Mode string

const (
	ModeCheckin  Mode = "checkin"
	ModeCheckout Mode = "checkout"
)

// APIError to odpowiedź serwera z kodem błędu
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("serwer zwrócił %d: %s", e.Status, e.Message)
}

// Client wywołuje trasy /desk serwera
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient tworzy klienta dla adresu serwera i tokenu bibliotekarza
func NewClient(baseURL, token string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: hc}
}

// Checkin przyjmuje zwrot egzemplarza
func (c *Client) Checkin(ctx context.Context, code string) (*models.Loan, error) {
	return c.post(ctx, "/desk/checkin", map[string]string{"barcode": code})
}

// Checkout wypożycza egzemplarz czytelnikowi
func (c *Client) Checkout(ctx context.Context, code, borrowerID string) (*models.Loan, error) {
	return c.post(ctx, "/desk/checkout", map[string]string{"barcode": code, "borrower_id": borrowerID})
}

func (c *Client) post(ctx context.Context, path string, body any) (*models.Loan, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("błąd połączenia z serwerem: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	var loan models.Loan
	if err := json.NewDecoder(resp.Body).Decode(&loan); err != nil {
		return nil, fmt.Errorf("błąd dekodowania odpowiedzi: %w", err)
	}
	return &loan, nil
}

// Station łączy czytnik z klientem API
type Station struct {
	Reader     barcode.Reader
	Client     *Client
	Mode       Mode
	BorrowerID string // Wymagany w trybie checkout
	Logger     *slog.Logger
}

// Run obsługuje kolejne kody aż do końca wejścia lub anulowania ctx.
// Błąd pojedynczego kodu jest logowany i nie przerywa pracy.
func (s *Station) Run(ctx context.Context) (handled int, err error) {
	if s.Mode == ModeCheckout && s.BorrowerID == "" {
		return 0, errors.New("tryb checkout wymaga identyfikatora czytelnika")
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for {
		code, err := s.Reader.Read(ctx)
		if errors.Is(err, io.EOF) {
			return handled, nil
		}
		if err != nil {
			return handled, err
		}

		var loan *models.Loan
		switch s.Mode {
		case ModeCheckin:
			loan, err = s.Client.Checkin(ctx, code)
		case ModeCheckout:
			loan, err = s.Client.Checkout(ctx, code, s.BorrowerID)
		default:
			return handled, fmt.Errorf("nieznany tryb stanowiska %q", s.Mode)
		}
		if err != nil {
			logger.Warn("operacja nieudana", "barcode", code, "mode", s.Mode, "error", err)
			continue
		}
		handled++
		logger.Info("operacja wykonana",
			"barcode", code,
			"mode", s.Mode,
			"loan_id", loan.ID,
			"borrower_id", loan.BorrowerID,
			"due", loan.EffectiveDueDate().Format(time.DateOnly),
			"fine", loan.Fine.String(),
		)
	}
}
