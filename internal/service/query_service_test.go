package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ona-asso/ona-api/internal/models"
	"github.com/ona-asso/ona-api/internal/scheduling"
	appErrors "github.com/ona-asso/ona-api/pkg/errors"
)

func newQueryFixture(slots []models.AvailabilitySlot, appointments ...models.Appointment) *QueryService {
	calendars := newStubCalendarRepo(
		ownerFixture("cal-ada", "v-ada", "Ada", "Martin", models.RoleVolunteerInterview),
		ownerFixture("cal-bob", "v-bob", "Bob", "Durand", models.RoleVolunteerInterview),
		ownerFixture("cal-cle", "v-cle", "Clé", "Bernard", models.RoleEmployee),
		ownerFixture("cal-gov", "v-gov", "Gil", "Roux", models.RoleVolunteerGovernance),
	)
	return NewQueryService(calendars, newStubSlotRepo(slots...), newStubAppointmentRepo(appointments...), nil, nil, testSchedulingConfig(), nil)
}

func TestQueryServiceFreeSlots(t *testing.T) {
	svc := newQueryFixture(
		[]models.AvailabilitySlot{weeklySlot("slot-1", "cal-ada", models.Monday, "09:00", "12:00")},
		existingAppointment("appt-1", "cal-ada", "2024-01-15", "10:00", "11:00", models.AppointmentScheduled),
	)

	free, err := svc.FreeSlots(context.Background(), adaPrincipal, "", day("2024-01-08"), day("2024-01-15"))
	require.NoError(t, err)
	require.Len(t, free, 3)
	assert.Equal(t, day("2024-01-08"), free[0].Date)
	assert.Equal(t, tod("09:00"), free[1].Start)
	assert.Equal(t, tod("10:00"), free[1].End)
	assert.Equal(t, tod("11:00"), free[2].Start)
	assert.Equal(t, tod("12:00"), free[2].End)
}

func TestQueryServiceFreeSlotsDropsElapsed(t *testing.T) {
	svc := newQueryFixture([]models.AvailabilitySlot{weeklySlot("slot-1", "cal-ada", models.Monday, "07:00", "08:30")})

	free, err := svc.FreeSlots(context.Background(), staffPrincipal, "cal-ada", day("2024-01-01"), day("2024-01-08"))
	require.NoError(t, err)
	assert.Empty(t, free)
}

func TestQueryServiceFreeSlotsActingAs(t *testing.T) {
	svc := newQueryFixture([]models.AvailabilitySlot{weeklySlot("slot-b", "cal-bob", models.Monday, "14:00", "16:00")})

	staff := staffPrincipal
	staff.ActingAs = "v-bob"
	free, err := svc.FreeSlots(context.Background(), staff, "", day("2024-01-15"), day("2024-01-15"))
	require.NoError(t, err)
	require.Len(t, free, 1)
	assert.Equal(t, "cal-bob", free[0].CalendarID)

	ada := adaPrincipal
	ada.ActingAs = "v-bob"
	_, err = svc.FreeSlots(context.Background(), ada, "", day("2024-01-15"), day("2024-01-15"))
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestQueryServiceAvailableVolunteers(t *testing.T) {
	svc := newQueryFixture(
		[]models.AvailabilitySlot{
			weeklySlot("slot-a", "cal-ada", models.Monday, "09:00", "12:00"),
			weeklySlot("slot-b", "cal-bob", models.Monday, "09:00", "12:00"),
			weeklySlot("slot-c", "cal-cle", models.Monday, "08:00", "18:00"),
		},
		existingAppointment("appt-b", "cal-bob", "2024-01-15", "10:30", "11:30", models.AppointmentConfirmed),
	)

	window := scheduling.NewInterval(day("2024-01-15"), tod("10:00"), tod("11:00"))
	result, err := svc.AvailableVolunteers(context.Background(), staffPrincipal, window)
	require.NoError(t, err)
	require.Len(t, result.Available, 2)
	assert.Equal(t, "Bernard", result.Available[0].LastName)
	assert.Equal(t, "Martin", result.Available[1].LastName)
	require.Len(t, result.Unavailable, 1)
	assert.Equal(t, "Durand", result.Unavailable[0].LastName)

	_, err = svc.AvailableVolunteers(context.Background(), governancePrincipal, window)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.AvailableVolunteers(context.Background(), staffPrincipal, scheduling.NewInterval(day("2024-01-15"), tod("11:00"), tod("10:00")))
	require.Error(t, err)
}

func TestQueryServiceCalendarData(t *testing.T) {
	svc := newQueryFixture(
		[]models.AvailabilitySlot{weeklySlot("slot-1", "cal-ada", models.Monday, "09:00", "12:00")},
		existingAppointment("appt-1", "cal-ada", "2024-01-15", "10:00", "11:00", models.AppointmentScheduled),
	)

	data, err := svc.CalendarData(context.Background(), bobPrincipal, "cal-ada", day("2024-01-08"), day("2024-01-21"))
	require.NoError(t, err)
	assert.Equal(t, "Ada Martin", data.Volunteer)
	assert.Equal(t, models.CalendarViewWeek, data.Settings.DefaultView)
	assert.Len(t, data.Occurrences, 2)
	assert.Len(t, data.Appointments, 1)

	_, err = svc.CalendarData(context.Background(), bobPrincipal, "cal-missing", day("2024-01-08"), day("2024-01-21"))
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestQueryServiceWeek(t *testing.T) {
	orphan := existingAppointment("appt-o", "", "2024-01-16", "14:00", "14:30", models.AppointmentScheduled)
	orphan.CalendarID = nil
	orphan.BeneficiaryID = "ben-2"
	cancelled := existingAppointment("appt-c", "cal-bob", "2024-01-17", "09:00", "12:00", models.AppointmentCancelled)
	svc := newQueryFixture(
		[]models.AvailabilitySlot{weeklySlot("slot-1", "cal-ada", models.Monday, "09:00", "12:00")},
		existingAppointment("appt-1", "cal-ada", "2024-01-15", "10:00", "11:00", models.AppointmentScheduled),
		orphan,
		cancelled,
	)

	wednesday := day("2024-01-17")
	view, err := svc.Week(context.Background(), staffPrincipal, &wednesday)
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-15"), view.Start)
	assert.Equal(t, day("2024-01-21"), view.End)
	assert.Equal(t, day("2024-01-08"), view.Previous)
	require.Len(t, view.Days, 7)

	monday := view.Days[0]
	require.Len(t, monday.Volunteers, 3)
	var ada VolunteerDay
	for _, v := range monday.Volunteers {
		if v.CalendarID == "cal-ada" {
			ada = v
		}
	}
	assert.Len(t, ada.FreeIntervals, 2)
	assert.Len(t, ada.Appointments, 1)

	require.Len(t, view.Days[1].OrphanAppointments, 1)
	assert.Equal(t, "appt-o", view.Days[1].OrphanAppointments[0].ID)

	assert.Equal(t, 2, view.Stats.Appointments)
	assert.Equal(t, 1, view.Stats.OrphanAppointments)
	assert.Equal(t, 1.5, view.Stats.TotalHours)
	assert.Equal(t, 2, view.Stats.UniqueBeneficiaries)
}
