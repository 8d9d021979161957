package lending

import (
	"fmt"

	"digilib/internal/models"
)

type copyEvent string

const (
	eventCheckout copyEvent = "checkout"
	eventCheckin  copyEvent = "checkin"
	eventRemove   copyEvent = "remove"
)

// statusRemoved oznacza, że egzemplarz zostaje usunięty z magazynu
const statusRemoved models.CopyStatus = ""

// Jedyne dozwolone przejścia. Stan lost nie ma wyjść.
var transitions = map[models.CopyStatus]map[copyEvent]models.CopyStatus{
	models.CopyStatusAvailable: {
		eventCheckout: models.CopyStatusBorrowed,
		eventRemove:   statusRemoved,
	},
	models.CopyStatusBorrowed: {
		eventCheckin: models.CopyStatusAvailable,
	},
}

func transition(from models.CopyStatus, ev copyEvent) (models.CopyStatus, error) {
	next, ok := transitions[from][ev]
	if !ok {
		return from, fmt.Errorf("%w: %s --%s-->", ErrInvalidTransition, from, ev)
	}
	return next, nil
}
