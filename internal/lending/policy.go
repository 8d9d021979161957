package lending

import (
	"fmt"
	"time"

	"digilib/internal/models"
)

// HoldPolicy określa co dzieje się z listą oczekujących przy zwrocie
type HoldPolicy string

const (
	// HoldPolicyNone - lista jest obsługiwana ręcznie przez ServeWaitlist
	HoldPolicyNone HoldPolicy = "none"
	// HoldPolicyFIFO - zwrócony egzemplarz jest odkładany dla pierwszej osoby z listy
	HoldPolicyFIFO HoldPolicy = "fifo-hold"
)

// Policy to stałe regulaminu wypożyczalni
type Policy struct {
	LoanDays       int
	FineRatePerDay models.Money
	ExtensionDays  int
	HoldPolicy     HoldPolicy
	HoldGraceDays  int
}

// DefaultPolicy zwraca regulamin domyślny: 14 dni, 1.00 za dzień zwłoki
func DefaultPolicy() Policy {
	return Policy{
		LoanDays:       14,
		FineRatePerDay: 100,
		ExtensionDays:  7,
		HoldPolicy:     HoldPolicyNone,
		HoldGraceDays:  3,
	}
}

// Górne granice liczby dni i egzemplarzy przyjmowanych przez silnik
const (
	MaxDays      = 365
	MaxCopyCount = 1000
)

// Validate sprawdza spójność regulaminu
func (p Policy) Validate() error {
	if p.LoanDays < 1 {
		return fmt.Errorf("okres wypożyczenia musi wynosić co najmniej 1 dzień")
	}
	if p.LoanDays > MaxDays || p.ExtensionDays > MaxDays || p.HoldGraceDays > MaxDays {
		return fmt.Errorf("okresy regulaminu mogą wynosić najwyżej %d dni", MaxDays)
	}
	if p.FineRatePerDay < 0 {
		return fmt.Errorf("stawka kary nie może być ujemna")
	}
	if p.ExtensionDays < 1 {
		return fmt.Errorf("przedłużenie musi wynosić co najmniej 1 dzień")
	}
	switch p.HoldPolicy {
	case HoldPolicyNone:
	case HoldPolicyFIFO:
		if p.HoldGraceDays < 1 {
			return fmt.Errorf("czas odłożenia musi wynosić co najmniej 1 dzień")
		}
	default:
		return fmt.Errorf("nieznana polityka listy oczekujących: %q", p.HoldPolicy)
	}
	return nil
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
