package firebase

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// Credentials wskazuje skąd wziąć klucz konta serwisowego
type Credentials struct {
	Path string // Rozwój lokalny - ścieżka do pliku
	JSON string // Produkcja - treść pliku w zmiennej środowiskowej
}

// Configured sprawdza czy podano jakiekolwiek dane logowania
func (c Credentials) Configured() bool {
	return c.Path != "" || c.JSON != ""
}

// Client zawiera klientów Firebase
type Client struct {
	App       *firebase.App
	Auth      *auth.Client
	Firestore *firestore.Client
}

// InitFirebase inicjalizuje klienta Firebase
func InitFirebase(ctx context.Context, creds Credentials) (*Client, error) {
	var opt option.ClientOption
	switch {
	case creds.Path != "":
		if _, err := os.Stat(creds.Path); os.IsNotExist(err) {
			return nil, fmt.Errorf("plik credentials nie istnieje: %s", creds.Path)
		}
		opt = option.WithCredentialsFile(creds.Path)
	case creds.JSON != "":
		opt = option.WithCredentialsJSON([]byte(creds.JSON))
	default:
		return nil, fmt.Errorf("brak FIREBASE_CREDENTIALS_PATH lub FIREBASE_CREDENTIALS_JSON")
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("błąd inicjalizacji Firebase App: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("błąd inicjalizacji Firebase Auth: %w", err)
	}

	firestoreClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("błąd inicjalizacji Firestore: %w", err)
	}

	slog.Info("Firebase zainicjalizowany pomyślnie")
	return &Client{
		App:       app,
		Auth:      authClient,
		Firestore: firestoreClient,
	}, nil
}

// Close zamyka połączenia z Firebase
func (c *Client) Close() error {
	if c.Firestore != nil {
		return c.Firestore.Close()
	}
	return nil
}
