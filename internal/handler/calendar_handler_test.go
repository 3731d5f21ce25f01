package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ona-asso/ona-api/internal/authz"
	"github.com/ona-asso/ona-api/internal/models"
	"github.com/ona-asso/ona-api/internal/service"
	appErrors "github.com/ona-asso/ona-api/pkg/errors"
)

type calendarServiceStub struct {
	lastPrincipal authz.Principal
	lastSettings  models.UpdateCalendarSettingsRequest
	err           error
}

func (s *calendarServiceStub) Get(ctx context.Context, principal authz.Principal, id string) (*models.CalendarOwner, error) {
	s.lastPrincipal = principal
	if s.err != nil {
		return nil, s.err
	}
	o := owner(id, "Marie", "Curie")
	return &o, nil
}

func (s *calendarServiceStub) GetMine(ctx context.Context, principal authz.Principal) (*models.CalendarOwner, error) {
	s.lastPrincipal = principal
	if s.err != nil {
		return nil, s.err
	}
	o := owner("cal-mine", "Marie", "Curie")
	return &o, nil
}

func (s *calendarServiceStub) UpdateSettings(ctx context.Context, principal authz.Principal, id string, req models.UpdateCalendarSettingsRequest) (*models.VolunteerCalendar, error) {
	s.lastPrincipal, s.lastSettings = principal, req
	if s.err != nil {
		return nil, s.err
	}
	return &models.VolunteerCalendar{ID: id}, nil
}

type calendarDataStub struct {
	lastFrom models.Date
	lastTo   models.Date
}

func (s *calendarDataStub) CalendarData(ctx context.Context, principal authz.Principal, calendarID string, from, to models.Date) (*service.CalendarData, error) {
	s.lastFrom, s.lastTo = from, to
	return &service.CalendarData{CalendarID: calendarID, Start: from, End: to}, nil
}

type calendarExporterStub struct {
	lastFrom models.Date
	lastTo   models.Date
}

func (s *calendarExporterStub) Export(ctx context.Context, principal authz.Principal, calendarID string, from, to models.Date) ([]byte, string, error) {
	s.lastFrom, s.lastTo = from, to
	return []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"), "calendar-" + calendarID + ".ics", nil
}

func TestCalendarHandlerMeActingAsQuery(t *testing.T) {
	svc := &calendarServiceStub{}
	h := NewCalendarHandler(svc, &calendarDataStub{}, &calendarExporterStub{}, time.UTC)
	c, w := newTestContext(http.MethodGet, "/calendars/me?volunteerId=v-marie", "", staffClaims)

	h.Me(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "v-marie", svc.lastPrincipal.ActingAs)
	assert.Contains(t, w.Body.String(), `"cal-mine"`)
}

func TestCalendarHandlerMeNoCalendar(t *testing.T) {
	svc := &calendarServiceStub{err: appErrors.Clone(appErrors.ErrNotFound, "calendar not found")}
	h := NewCalendarHandler(svc, &calendarDataStub{}, &calendarExporterStub{}, nil)
	c, w := newTestContext(http.MethodGet, "/calendars/me", "", staffClaims)

	h.Me(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCalendarHandlerUpdateSettings(t *testing.T) {
	svc := &calendarServiceStub{}
	h := NewCalendarHandler(svc, &calendarDataStub{}, &calendarExporterStub{}, time.UTC)
	c, w := newTestContext(http.MethodPut, "/calendars/cal-1/settings", `{"default_view":"month","reminder_hours_before":48}`, staffClaims,
		gin.Param{Key: "id", Value: "cal-1"})

	h.UpdateSettings(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.lastSettings.DefaultView)
	assert.Equal(t, models.CalendarViewMonth, *svc.lastSettings.DefaultView)
}

func TestCalendarHandlerDataDefaultRange(t *testing.T) {
	data := &calendarDataStub{}
	h := NewCalendarHandler(&calendarServiceStub{}, data, &calendarExporterStub{}, time.UTC)
	c, w := newTestContext(http.MethodGet, "/calendars/cal-1/data?start=2024-01-08", "", staffClaims, gin.Param{Key: "id", Value: "cal-1"})

	h.Data(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.NewDate(2024, 1, 8), data.lastFrom)
	assert.Equal(t, models.NewDate(2024, 1, 15), data.lastTo)
}

func TestCalendarHandlerICS(t *testing.T) {
	exporter := &calendarExporterStub{}
	h := NewCalendarHandler(&calendarServiceStub{}, &calendarDataStub{}, exporter, time.UTC)
	c, w := newTestContext(http.MethodGet, "/calendars/cal-1/ics?start=2024-01-01", "", staffClaims, gin.Param{Key: "id", Value: "cal-1"})

	h.ICS(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="calendar-cal-1.ics"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, w.Body.String(), "BEGIN:VCALENDAR")
	assert.Equal(t, models.NewDate(2024, 1, 31), exporter.lastTo)
}

func TestCalendarHandlerDataRejectsBadEnd(t *testing.T) {
	data := &calendarDataStub{}
	h := NewCalendarHandler(&calendarServiceStub{}, data, &calendarExporterStub{}, time.UTC)
	c, w := newTestContext(http.MethodGet, "/calendars/cal-1/data?end=tomorrow", "", staffClaims, gin.Param{Key: "id", Value: "cal-1"})

	h.Data(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
