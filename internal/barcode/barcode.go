// Package barcode generuje numery LCC i kody kreskowe egzemplarzy oraz
// dostarcza czytniki kodów dla biurka wypożyczeń.
package barcode

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// ErrInvalid zwracany gdy kod nie ma postaci {lcc}-C{n}
var ErrInvalid = errors.New("barcode: nieprawidłowy kod kreskowy")

// genrePrefixes odwzorowuje gatunek (małymi literami) na prefiks klasyfikacji
var genrePrefixes = map[string]string{
	"adventure":                "AD",
	"art & photography":        "AP",
	"biography/autobiography":  "BA",
	"business/economics":       "BE",
	"creative non-fiction":     "CN",
	"crime":                    "CR",
	"drama/plays":              "DP",
	"education":                "ED",
	"experimental":             "EX",
	"fantasy":                  "FA",
	"graphic novels/comics":    "GN",
	"health & wellness":        "HW",
	"historical fiction":       "HF",
	"history":                  "HI",
	"horror":                   "HO",
	"humor/satire":             "HS",
	"interview":                "IN",
	"journalism":               "JR",
	"literary fiction":         "LF",
	"memoir":                   "ME",
	"mystery":                  "MY",
	"novels":                   "NO",
	"non-fiction":              "NF",
	"philosophy":               "PH",
	"poetry":                   "PO",
	"politics/current affairs": "PC",
	"reference":                "RE",
	"religion/spirituality":    "RS",
	"romance":                  "RO",
	"science":                  "SC",
	"science & technology":     "ST",
	"self-help":                "SH",
	"short stories":            "SS",
	"speculative fiction":      "SF",
	"thriller/suspense":        "TS",
	"travel":                   "TR",
	"true adventure":           "TA",
	"true crime":               "TC",
	"young adult (ya)":         "YA",
}

// unknownGenrePrefix dla gatunków spoza tabeli
const unknownGenrePrefix = "Z"

// GenrePrefix zwraca prefiks klasyfikacji dla gatunku
func GenrePrefix(genre string) string {
	if p, ok := genrePrefixes[strings.ToLower(strings.TrimSpace(genre))]; ok {
		return p
	}
	return unknownGenrePrefix
}

// NewLCC generuje numer w postaci {PREFIKS}{0-999}.{AUT}
func NewLCC(genre, author string) string {
	return LCC(genre, author, rand.IntN(1000))
}

// LCC składa numer z podanej liczby klasyfikacyjnej
func LCC(genre, author string, class int) string {
	return fmt.Sprintf("%s%d.%s", GenrePrefix(genre), class, authorCutter(author))
}

// unknownAuthor zastępuje kod autora, gdy autor jest pusty
const unknownAuthor = "UNK"

// authorCutter to pierwsze trzy znaki autora wielkimi literami
func authorCutter(author string) string {
	if author == "" {
		return unknownAuthor
	}
	runes := []rune(author)
	if len(runes) > 3 {
		runes = runes[:3]
	}
	return strings.ToUpper(string(runes))
}

// Format zwraca kod kreskowy egzemplarza
func Format(lcc string, serial int) string {
	return fmt.Sprintf("%s-C%d", lcc, serial)
}

// Parse rozkłada kod kreskowy na numer LCC i numer egzemplarza
func Parse(code string) (lcc string, serial int, err error) {
	code = Normalize(code)
	i := strings.LastIndex(code, "-C")
	if i <= 0 {
		return "", 0, ErrInvalid
	}
	serial, err = strconv.Atoi(code[i+2:])
	if err != nil || serial < 1 {
		return "", 0, ErrInvalid
	}
	return code[:i], serial, nil
}

// Normalize usuwa białe znaki i zamienia litery na wielkie
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
