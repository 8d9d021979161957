package lending

import (
	"time"

	"digilib/internal/models"
)

// ComputeFine zwraca karę za zwłokę na dzień asOf: pełne dni po terminie
// (z przedłużeniem) razy stawka. Dla zwróconego wypożyczenia zwraca karę
// ustaloną przy zwrocie.
func ComputeFine(loan *models.Loan, asOf time.Time, ratePerDay models.Money) models.Money {
	return loan.FineAt(asOf, ratePerDay)
}

// ComputeFine liczy karę według stawki z regulaminu silnika
func (e *Engine) ComputeFine(loan *models.Loan, asOf time.Time) models.Money {
	return ComputeFine(loan, asOf, e.policy.FineRatePerDay)
}
