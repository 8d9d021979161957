package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"digilib/internal/config"
	"digilib/internal/firebase"
	"digilib/internal/middleware"
	"digilib/internal/models"
)

func main() {
	// Wczytaj zmienne środowiskowe
	if err := godotenv.Load(); err != nil {
		log.Println("Brak pliku .env - używam zmiennych systemowych")
	}

	userID := flag.String("user", "", "identyfikator użytkownika (UID w Firebase)")
	role := flag.String("role", string(models.RoleAdmin), "rola: admin albo reader")
	ttl := flag.Duration("ttl", 24*time.Hour, "ważność tokenu JWT (tryb bez Firebase)")
	flag.Parse()

	if *userID == "" {
		log.Fatal("Podaj -user")
	}
	r := models.UserRole(*role)
	if !r.Valid() {
		log.Fatalf("Nieznana rola: %s", *role)
	}

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Błąd konfiguracji: %v", err)
	}
	ctx := context.Background()

	creds := firebase.Credentials{Path: cfg.FirebaseCredentialsPath, JSON: cfg.FirebaseCredentialsJSON}
	if creds.Configured() {
		client, err := firebase.InitFirebase(ctx, creds)
		if err != nil {
			log.Fatalf("Błąd inicjalizacji Firebase: %v", err)
		}
		defer client.Close()

		if err := client.SetRole(ctx, *userID, r); err != nil {
			log.Fatalf("Błąd nadawania roli: %v", err)
		}
		fmt.Printf("✓ Nadano rolę %s użytkownikowi %s\n", r, *userID)
		fmt.Println("Rola obowiązuje po odświeżeniu tokenu ID przez klienta.")
		return
	}

	// Bez Firebase wystawiamy podpisany token JWT
	auth, err := middleware.NewJWTAuthenticator(cfg.JWTSecret)
	if err != nil {
		log.Fatalf("Błąd konfiguracji JWT: %v", err)
	}
	token, err := auth.IssueToken(models.Identity{UserID: *userID, Role: r}, *ttl)
	if err != nil {
		log.Fatalf("Błąd wystawiania tokenu: %v", err)
	}
	fmt.Printf("=== Token dla %s (rola %s, ważny %s) ===\n", *userID, r, *ttl)
	fmt.Println(token)
}
