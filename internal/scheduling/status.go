package scheduling

import (
	"errors"
	"fmt"

	"github.com/ona-asso/ona-api/internal/models"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

var forwardRank = map[models.AppointmentStatus]int{
	models.AppointmentScheduled:  0,
	models.AppointmentConfirmed:  1,
	models.AppointmentInProgress: 2,
	models.AppointmentCompleted:  3,
}

// CanTransition reports whether an appointment may move from one status to
// another. Without strict mode every known status is reachable. In strict
// mode the main path only moves forward, cancellation and no-show are
// reachable from any open state, and terminal states are final.
func CanTransition(from, to models.AppointmentStatus, strict bool) bool {
	if !to.Valid() {
		return false
	}
	if from == to || !strict {
		return true
	}
	if from.IsTerminal() {
		return false
	}
	if to == models.AppointmentCancelled || to == models.AppointmentNoShow {
		return true
	}
	return forwardRank[to] > forwardRank[from]
}

// ValidateTransition wraps CanTransition into an error.
func ValidateTransition(from, to models.AppointmentStatus, strict bool) error {
	if CanTransition(from, to, strict) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// StatusAfterReschedule returns the status an appointment keeps after an edit.
// A confirmed appointment whose date or times change needs a new confirmation.
func StatusAfterReschedule(current models.AppointmentStatus, before, after Interval) models.AppointmentStatus {
	if current != models.AppointmentConfirmed {
		return current
	}
	if before.Date.Equal(after.Date) && before.Start == after.Start && before.End == after.End {
		return current
	}
	return models.AppointmentScheduled
}
