package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"digilib/internal/barcode"
	"digilib/internal/desk"
	"digilib/internal/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Brak pliku .env - używam zmiennych systemowych")
	}

	server := flag.String("server", envOr("DIGILIB_URL", "http://localhost:8080"), "adres serwera")
	mode := flag.String("mode", string(desk.ModeCheckin), "checkin albo checkout")
	borrower := flag.String("borrower", "", "czytelnik (tryb checkout)")
	flag.Parse()

	logger := logging.InitLogger(os.Getenv("LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Skaner działający jako klawiatura wysyła kody na stdin
	reader, err := barcode.Select(barcode.NewManualEntryReader(os.Stdin))
	if err != nil {
		log.Fatalf("Brak czytnika kodów: %v", err)
	}
	logger.Info("stanowisko gotowe", "reader", reader.Name(), "mode", *mode, "server", *server)

	station := &desk.Station{
		Reader:     reader,
		Client:     desk.NewClient(*server, os.Getenv("DIGILIB_TOKEN"), nil),
		Mode:       desk.Mode(*mode),
		BorrowerID: *borrower,
		Logger:     logger,
	}
	n, err := station.Run(ctx)
	if err != nil && ctx.Err() == nil {
		log.Fatalf("Błąd stanowiska: %v", err)
	}
	logger.Info("stanowisko zamknięte", "handled", n)
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
