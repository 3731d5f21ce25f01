package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ona-asso/ona-api/internal/authz"
	"github.com/ona-asso/ona-api/internal/models"
	"github.com/ona-asso/ona-api/internal/scheduling"
	"github.com/ona-asso/ona-api/internal/service"
)

type scheduleQueryStub struct {
	lastCalendar string
	lastFrom     models.Date
	lastTo       models.Date
	lastWindow   scheduling.Interval
	lastDay      *models.Date
	eligibility  *scheduling.Eligibility
	called       bool
}

func (s *scheduleQueryStub) FreeSlots(ctx context.Context, principal authz.Principal, calendarID string, from, to models.Date) ([]scheduling.FreeInterval, error) {
	s.called, s.lastCalendar, s.lastFrom, s.lastTo = true, calendarID, from, to
	return []scheduling.FreeInterval{{Interval: scheduling.NewInterval(from, models.NewTimeOfDay(9, 0), models.NewTimeOfDay(10, 0))}}, nil
}

func (s *scheduleQueryStub) CalendarAppointments(ctx context.Context, principal authz.Principal, calendarID string, from, to models.Date) ([]models.Appointment, error) {
	s.called, s.lastCalendar, s.lastFrom, s.lastTo = true, calendarID, from, to
	return []models.Appointment{}, nil
}

func (s *scheduleQueryStub) AvailableVolunteers(ctx context.Context, principal authz.Principal, window scheduling.Interval) (*scheduling.Eligibility, error) {
	s.called, s.lastWindow = true, window
	return s.eligibility, nil
}

func (s *scheduleQueryStub) Week(ctx context.Context, principal authz.Principal, day *models.Date) (*service.WeekView, error) {
	s.called, s.lastDay = true, day
	return &service.WeekView{}, nil
}

func owner(id, first, last string) models.CalendarOwner {
	return models.CalendarOwner{VolunteerCalendar: models.VolunteerCalendar{ID: id}, FirstName: first, LastName: last}
}

func TestFragmentFreeSlotsDefaultsToNextWeek(t *testing.T) {
	svc := &scheduleQueryStub{}
	h := NewFragmentHandler(svc, time.UTC)
	c, w := newTestContext(http.MethodGet, "/fragments/free-slots?calendar_id=cal-1", "", staffClaims)

	h.FreeSlots(c)

	require.Equal(t, http.StatusOK, w.Code)
	today := models.DateOf(time.Now().UTC())
	assert.Equal(t, "cal-1", svc.lastCalendar)
	assert.Equal(t, today, svc.lastFrom)
	assert.Equal(t, today.AddDays(7), svc.lastTo)
}

func TestFragmentAppointmentsUsesRange(t *testing.T) {
	svc := &scheduleQueryStub{}
	h := NewFragmentHandler(svc, time.UTC)
	c, w := newTestContext(http.MethodGet, "/fragments/appointments?start=2024-01-08&end=2024-01-10", "", staffClaims)

	h.Appointments(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", svc.lastCalendar)
	assert.Equal(t, models.NewDate(2024, 1, 8), svc.lastFrom)
	assert.Equal(t, models.NewDate(2024, 1, 10), svc.lastTo)
}

func TestFragmentAvailableVolunteersPlaceholder(t *testing.T) {
	svc := &scheduleQueryStub{}
	h := NewFragmentHandler(svc, time.UTC)
	c, w := newTestContext(http.MethodGet, "/fragments/available-volunteers?format=html&appointment_date=2024-01-08", "", staffClaims)

	h.AvailableVolunteers(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, svc.called)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, w.Body.String(), `<option value="">`)
	assert.NotContains(t, w.Body.String(), "optgroup")
}

func TestFragmentAvailableVolunteersMissingParamsJSON(t *testing.T) {
	svc := &scheduleQueryStub{}
	h := NewFragmentHandler(svc, time.UTC)
	c, w := newTestContext(http.MethodGet, "/fragments/available-volunteers?start_time=09:00", "", staffClaims)

	h.AvailableVolunteers(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, svc.called)
}

func TestFragmentAvailableVolunteersHTML(t *testing.T) {
	svc := &scheduleQueryStub{eligibility: &scheduling.Eligibility{
		Available:   []models.CalendarOwner{owner("cal-marie", "Marie", "Curie")},
		Unavailable: []models.CalendarOwner{owner("cal-paul", "Paul", "Dupont")},
	}}
	h := NewFragmentHandler(svc, time.UTC)
	c, w := newTestContext(http.MethodGet, "/fragments/available-volunteers?format=html&appointment_date=2024-01-08&start_time=10:00&end_time=11:00", "", staffClaims)

	h.AvailableVolunteers(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.NewDate(2024, 1, 8), svc.lastWindow.Date)
	assert.Equal(t, models.NewTimeOfDay(10, 0), svc.lastWindow.Start)
	assert.Equal(t, models.NewTimeOfDay(11, 0), svc.lastWindow.End)

	body := w.Body.String()
	assert.Contains(t, body, `<optgroup label="Bénévoles disponibles">`)
	assert.Contains(t, body, `<option value="cal-marie">Marie Curie ✓</option>`)
	assert.Contains(t, body, `<option value="cal-paul" class="text-gray-400">Paul Dupont</option>`)
	assert.Less(t, strings.Index(body, "cal-marie"), strings.Index(body, "cal-paul"))
}

func TestFragmentAvailableVolunteersEscapesNames(t *testing.T) {
	svc := &scheduleQueryStub{eligibility: &scheduling.Eligibility{
		Available: []models.CalendarOwner{owner("cal-x", "<b>Eve</b>", "Martin")},
	}}
	h := NewFragmentHandler(svc, time.UTC)
	c, w := newTestContext(http.MethodGet, "/fragments/available-volunteers?format=html&appointment_date=2024-01-08&start_time=10:00&end_time=11:00", "", staffClaims)

	h.AvailableVolunteers(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "<b>")
	assert.NotContains(t, w.Body.String(), "indisponibles")
}

func TestFragmentAvailableVolunteersJSON(t *testing.T) {
	svc := &scheduleQueryStub{eligibility: &scheduling.Eligibility{
		Available:   []models.CalendarOwner{owner("cal-marie", "Marie", "Curie")},
		Unavailable: []models.CalendarOwner{},
	}}
	h := NewFragmentHandler(svc, time.UTC)
	c, w := newTestContext(http.MethodGet, "/fragments/available-volunteers?appointment_date=2024-01-08&start_time=10:00&end_time=11:00", "", staffClaims)

	h.AvailableVolunteers(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"available":[`)
	assert.Contains(t, w.Body.String(), `"cal-marie"`)
}

func TestFragmentWeekPassesDay(t *testing.T) {
	svc := &scheduleQueryStub{}
	h := NewFragmentHandler(svc, time.UTC)
	c, w := newTestContext(http.MethodGet, "/fragments/week?date=2024-01-10", "", staffClaims)

	h.Week(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.lastDay)
	assert.Equal(t, models.NewDate(2024, 1, 10), *svc.lastDay)

	c, w = newTestContext(http.MethodGet, "/fragments/week", "", staffClaims)
	h.Week(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, svc.lastDay)
}
