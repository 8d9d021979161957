package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"digilib/internal/app"
	"digilib/internal/config"
	"digilib/internal/firebase"
	"digilib/internal/lending"
	"digilib/internal/lock"
)

type seedBook struct {
	lending.BookInput
	Copies int
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Brak pliku .env - używam zmiennych systemowych")
	}
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Błąd konfiguracji: %v", err)
	}
	if cfg.StoreDriver == config.DriverMemory {
		log.Fatal("Magazyn w pamięci znika po zakończeniu programu - ustaw STORE_DRIVER")
	}
	ctx := context.Background()

	var fb *firebase.Client
	creds := firebase.Credentials{Path: cfg.FirebaseCredentialsPath, JSON: cfg.FirebaseCredentialsJSON}
	if cfg.StoreDriver == config.DriverFirestore {
		if fb, err = firebase.InitFirebase(ctx, creds); err != nil {
			log.Fatalf("Błąd inicjalizacji Firebase: %v", err)
		}
		defer fb.Close()
	}
	st, err := app.OpenStore(ctx, cfg, fb)
	if err != nil {
		log.Fatalf("Błąd otwarcia magazynu: %v", err)
	}
	defer st.Close()

	engine, err := lending.New(st, lock.NewMemory(), lending.WithPolicy(cfg.Policy()))
	if err != nil {
		log.Fatalf("Błąd inicjalizacji silnika: %v", err)
	}

	log.Println("Dodawanie przykładowych książek do bazy danych...")

	books := []seedBook{
		{lending.BookInput{Title: "Wiedźmin: Ostatnie życzenie", Author: "Andrzej Sapkowski", Genre: "Fantasy", Language: "pl", SeriesTitle: "Saga o Wiedźminie", VolumeNumber: 1}, 3},
		{lending.BookInput{Title: "Wiedźmin: Miecz przeznaczenia", Author: "Andrzej Sapkowski", Genre: "Fantasy", Language: "pl", SeriesTitle: "Saga o Wiedźminie", VolumeNumber: 2}, 2},
		{lending.BookInput{Title: "Zbrodnia i kara", Author: "Fiodor Dostojewski", Genre: "Literary Fiction", Language: "pl"}, 2},
		{lending.BookInput{Title: "Sapiens: Od zwierząt do bogów", Author: "Yuval Noah Harari", Genre: "History", Language: "pl"}, 4},
		{lending.BookInput{Title: "Rok 1984", Author: "George Orwell", Genre: "Speculative Fiction", Language: "pl"}, 2},
		{lending.BookInput{Title: "Solaris", Author: "Stanisław Lem", Genre: "Speculative Fiction", Language: "pl"}, 1},
		{lending.BookInput{Title: "Harry Potter i Kamień Filozoficzny", Author: "J.K. Rowling", Genre: "Fantasy", Language: "pl", SeriesTitle: "Harry Potter", VolumeNumber: 1}, 5},
		{lending.BookInput{Title: "Kod da Vinci", Author: "Dan Brown", Genre: "Thriller/Suspense", Language: "pl"}, 2},
		{lending.BookInput{Title: "Mistrz i Małgorzata", Author: "Michaił Bułhakow", Genre: "Novels", Language: "pl"}, 2},
		{lending.BookInput{Title: "Thinking, Fast and Slow", Author: "Daniel Kahneman", Genre: "Non-Fiction", Language: "en"}, 1},
	}

	successCount := 0
	for _, b := range books {
		book, copies, err := engine.AddBook(ctx, b.BookInput, b.Copies)
		if err != nil {
			log.Printf("❌ Błąd dodawania książki '%s': %v", b.Title, err)
			continue
		}
		log.Printf("✓ Dodano: %s - %s (%s, egzemplarzy: %d)", book.Title, book.Author, book.LCCNumber, len(copies))
		successCount++
	}

	log.Printf("\n✅ Pomyślnie dodano %d/%d książek do bazy danych", successCount, len(books))
}
