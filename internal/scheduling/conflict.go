package scheduling

import (
	"errors"

	"github.com/ona-asso/ona-api/internal/models"
)

var (
	// ErrEndBeforeStart rejects empty or inverted time ranges.
	ErrEndBeforeStart = errors.New("end time must be after start time")
	// ErrPastDate rejects new appointments dated before today.
	ErrPastDate = errors.New("appointment date cannot be in the past")
	// ErrOutsideSlot rejects bookings that do not fit the referenced slot.
	ErrOutsideSlot = errors.New("appointment does not fit the availability slot")
	// ErrSlotFull rejects bookings on a slot already at capacity.
	ErrSlotFull = errors.New("availability slot is fully booked")
)

// ValidateWindow checks the time range of an appointment. The past-date rule
// only applies to new appointments so existing ones can still be edited.
func ValidateWindow(iv Interval, isNew bool, today models.Date) error {
	if !iv.Valid() {
		return ErrEndBeforeStart
	}
	if isNew && iv.Date.Before(today) {
		return ErrPastDate
	}
	return nil
}

// FindConflicts returns the appointments overlapping candidate. The appointment
// identified by excludeID is ignored so an edit never conflicts with itself,
// and cancelled appointments never conflict.
func FindConflicts(candidate Interval, excludeID string, existing []models.Appointment) []models.Appointment {
	var conflicts []models.Appointment
	for _, a := range existing {
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		if !a.Status.OccupiesSlot() {
			continue
		}
		if AppointmentInterval(a).Overlaps(candidate) {
			conflicts = append(conflicts, a)
		}
	}
	return conflicts
}

// CheckSlotBooking verifies a booking against the slot it originates from:
// the slot must accept bookings, have an occurrence containing the window and
// still have capacity. booked counts the other occupying appointments on that
// slot and date.
func CheckSlotBooking(occurrences []Occurrence, slotID string, window Interval, booked int) error {
	for _, occ := range occurrences {
		if occ.SlotID != slotID || occ.SlotType != models.SlotAvailability || !occ.IsBookable {
			continue
		}
		if !occ.Contains(window) {
			continue
		}
		capacity := occ.MaxAppointments
		if capacity < 1 {
			capacity = 1
		}
		if booked >= capacity {
			return ErrSlotFull
		}
		return nil
	}
	return ErrOutsideSlot
}
