// Package lock dostarcza blokady na klucze (książka, egzemplarz, recenzja),
// w pamięci procesu albo rozproszone przez Redis.
package lock

import (
	"context"
	"sort"
)

// Locker blokuje zestaw kluczy. Klucze są zajmowane w porządku
// leksykograficznym, więc dwa wywołania z nakładającymi się kluczami nie
// zakleszczą się. Zwrócona funkcja zwalnia wszystkie klucze; można ją
// wywołać wielokrotnie.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (func(), error)
}

// BookKey to klucz sekcji krytycznej wyboru egzemplarza
func BookKey(bookID string) string {
	return "book:" + bookID
}

// CopyKey to klucz pojedynczego egzemplarza
func CopyKey(copyID string) string {
	return "copy:" + copyID
}

// ReviewKey to klucz recenzji
func ReviewKey(reviewID string) string {
	return "review:" + reviewID
}

// normalize sortuje klucze i usuwa duplikaty oraz puste wartości
func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
