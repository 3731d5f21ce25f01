package scheduling

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ona-asso/ona-api/internal/models"
)

func TestCanTransitionStrict(t *testing.T) {
	cases := []struct {
		from, to models.AppointmentStatus
		allowed  bool
	}{
		{models.AppointmentScheduled, models.AppointmentConfirmed, true},
		{models.AppointmentScheduled, models.AppointmentCompleted, true},
		{models.AppointmentConfirmed, models.AppointmentInProgress, true},
		{models.AppointmentInProgress, models.AppointmentNoShow, true},
		{models.AppointmentConfirmed, models.AppointmentCancelled, true},
		{models.AppointmentConfirmed, models.AppointmentScheduled, false},
		{models.AppointmentCompleted, models.AppointmentScheduled, false},
		{models.AppointmentCancelled, models.AppointmentConfirmed, false},
		{models.AppointmentNoShow, models.AppointmentCancelled, false},
		{models.AppointmentCompleted, models.AppointmentCompleted, true},
		{models.AppointmentScheduled, models.AppointmentStatus("LOST"), false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to, true), "%s -> %s", tc.from, tc.to)
	}
}

func TestCanTransitionPermissive(t *testing.T) {
	assert.True(t, CanTransition(models.AppointmentCompleted, models.AppointmentScheduled, false))
	assert.True(t, CanTransition(models.AppointmentCancelled, models.AppointmentConfirmed, false))
	assert.False(t, CanTransition(models.AppointmentScheduled, models.AppointmentStatus(""), false))
}

func TestValidateTransitionWrapsSentinel(t *testing.T) {
	err := ValidateTransition(models.AppointmentCompleted, models.AppointmentScheduled, true)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.NoError(t, ValidateTransition(models.AppointmentScheduled, models.AppointmentConfirmed, true))
}

func TestStatusAfterReschedule(t *testing.T) {
	before := NewInterval(date("2024-01-08"), clock("10:00"), clock("11:00"))
	moved := NewInterval(date("2024-01-08"), clock("10:30"), clock("11:00"))

	assert.Equal(t, models.AppointmentScheduled, StatusAfterReschedule(models.AppointmentConfirmed, before, moved))
	assert.Equal(t, models.AppointmentConfirmed, StatusAfterReschedule(models.AppointmentConfirmed, before, before))
	assert.Equal(t, models.AppointmentInProgress, StatusAfterReschedule(models.AppointmentInProgress, before, moved))

	otherDay := NewInterval(date("2024-01-09"), clock("10:00"), clock("11:00"))
	assert.Equal(t, models.AppointmentScheduled, StatusAfterReschedule(models.AppointmentConfirmed, before, otherDay))
}
