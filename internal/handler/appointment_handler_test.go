package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ona-asso/ona-api/internal/authz"
	"github.com/ona-asso/ona-api/internal/models"
	appErrors "github.com/ona-asso/ona-api/pkg/errors"
)

type appointmentServiceStub struct {
	lastFilter models.AppointmentFilter
	lastReq    models.AppointmentRequest
	lastStatus models.UpdateStatusRequest
	lastID     string
	called     bool
	err        error
}

func (s *appointmentServiceStub) List(ctx context.Context, principal authz.Principal, filter models.AppointmentFilter) ([]models.AppointmentDetail, *models.Pagination, error) {
	s.called, s.lastFilter = true, filter
	return []models.AppointmentDetail{}, &models.Pagination{Page: 1, PageSize: 20}, s.err
}

func (s *appointmentServiceStub) Get(ctx context.Context, principal authz.Principal, id string) (*models.AppointmentDetail, error) {
	s.called, s.lastID = true, id
	if s.err != nil {
		return nil, s.err
	}
	return &models.AppointmentDetail{}, nil
}

func (s *appointmentServiceStub) Create(ctx context.Context, principal authz.Principal, req models.AppointmentRequest) (*models.Appointment, error) {
	s.called, s.lastReq = true, req
	if s.err != nil {
		return nil, s.err
	}
	return &models.Appointment{ID: "appt-1", Status: models.AppointmentScheduled}, nil
}

func (s *appointmentServiceStub) Update(ctx context.Context, principal authz.Principal, id string, req models.AppointmentRequest) (*models.Appointment, error) {
	s.called, s.lastID, s.lastReq = true, id, req
	if s.err != nil {
		return nil, s.err
	}
	return &models.Appointment{ID: id}, nil
}

func (s *appointmentServiceStub) UpdateStatus(ctx context.Context, principal authz.Principal, id string, req models.UpdateStatusRequest) (*models.Appointment, error) {
	s.called, s.lastID, s.lastStatus = true, id, req
	if s.err != nil {
		return nil, s.err
	}
	return &models.Appointment{ID: id, Status: req.Status}, nil
}

func (s *appointmentServiceStub) Delete(ctx context.Context, principal authz.Principal, id string) error {
	s.called, s.lastID = true, id
	return s.err
}

func TestAppointmentHandlerListFilters(t *testing.T) {
	svc := &appointmentServiceStub{}
	h := NewAppointmentHandler(svc)
	c, w := newTestContext(http.MethodGet, "/appointments?calendar_id=6f1c2a9e-3d4b-4c5a-9e8f-1a2b3c4d5e6f&status=scheduled,%20CONFIRMED&start=2024-01-08&end=2024-01-14&orphan=true", "", staffClaims)

	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "6f1c2a9e-3d4b-4c5a-9e8f-1a2b3c4d5e6f", svc.lastFilter.CalendarID)
	assert.Equal(t, []models.AppointmentStatus{models.AppointmentScheduled, models.AppointmentConfirmed}, svc.lastFilter.Statuses)
	require.NotNil(t, svc.lastFilter.DateFrom)
	require.NotNil(t, svc.lastFilter.DateTo)
	assert.Equal(t, models.NewDate(2024, 1, 8), *svc.lastFilter.DateFrom)
	assert.Equal(t, models.NewDate(2024, 1, 14), *svc.lastFilter.DateTo)
	assert.True(t, svc.lastFilter.OrphanOnly)
}

func TestAppointmentHandlerListRejectsUnknownStatus(t *testing.T) {
	svc := &appointmentServiceStub{}
	h := NewAppointmentHandler(svc)
	c, w := newTestContext(http.MethodGet, "/appointments?status=DONE", "", staffClaims)

	h.List(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, svc.called)
}

func TestAppointmentHandlerListRejectsMalformedIDs(t *testing.T) {
	for _, target := range []string{"/appointments?calendar_id=abc", "/appointments?beneficiary_id=x"} {
		svc := &appointmentServiceStub{}
		h := NewAppointmentHandler(svc)
		c, w := newTestContext(http.MethodGet, target, "", staffClaims)

		h.List(c)

		require.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.False(t, svc.called)
	}
}

func TestAppointmentHandlerCreate(t *testing.T) {
	svc := &appointmentServiceStub{}
	h := NewAppointmentHandler(svc)
	body := `{"calendar_id":"cal-1","beneficiary_id":"ben-1","appointment_date":"2024-01-08","start_time":"10:00","end_time":"10:30","appointment_type":"INTERVIEW","title":"Premier entretien"}`
	c, w := newTestContext(http.MethodPost, "/appointments", body, staffClaims)

	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.lastReq.CalendarID)
	assert.Equal(t, "cal-1", *svc.lastReq.CalendarID)
	assert.Equal(t, models.NewDate(2024, 1, 8), svc.lastReq.AppointmentDate)
	assert.Equal(t, models.NewTimeOfDay(10, 30), svc.lastReq.EndTime)
	assert.Contains(t, w.Body.String(), `"id":"appt-1"`)
}

func TestAppointmentHandlerCreateConflict(t *testing.T) {
	svc := &appointmentServiceStub{err: appErrors.Clone(appErrors.ErrConflict, "time slot already booked")}
	h := NewAppointmentHandler(svc)
	body := `{"calendar_id":"cal-1","beneficiary_id":"ben-1","appointment_date":"2024-01-08","start_time":"10:00","end_time":"10:30","appointment_type":"INTERVIEW","title":"Entretien"}`
	c, w := newTestContext(http.MethodPost, "/appointments", body, staffClaims)

	h.Create(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "CONFLICT")
}

func TestAppointmentHandlerCreateBadTime(t *testing.T) {
	svc := &appointmentServiceStub{}
	h := NewAppointmentHandler(svc)
	body := `{"beneficiary_id":"ben-1","appointment_date":"2024-01-08","start_time":"25:00","end_time":"10:30"}`
	c, w := newTestContext(http.MethodPost, "/appointments", body, staffClaims)

	h.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, svc.called)
}

func TestAppointmentHandlerUpdateStatus(t *testing.T) {
	svc := &appointmentServiceStub{}
	h := NewAppointmentHandler(svc)
	c, w := newTestContext(http.MethodPatch, "/appointments/appt-1/status", `{"status":"COMPLETED","completion_notes":"ok"}`, staffClaims,
		gin.Param{Key: "id", Value: "appt-1"})

	h.UpdateStatus(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "appt-1", svc.lastID)
	assert.Equal(t, models.AppointmentCompleted, svc.lastStatus.Status)
	require.NotNil(t, svc.lastStatus.CompletionNotes)
	assert.Equal(t, "ok", *svc.lastStatus.CompletionNotes)
}

func TestAppointmentHandlerDelete(t *testing.T) {
	svc := &appointmentServiceStub{}
	h := NewAppointmentHandler(svc)
	c, w := newTestContext(http.MethodDelete, "/appointments/appt-1", "", staffClaims, gin.Param{Key: "id", Value: "appt-1"})

	h.Delete(c)
	c.Writer.WriteHeaderNow()

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "appt-1", svc.lastID)
}

func TestAppointmentHandlerGetNotFound(t *testing.T) {
	svc := &appointmentServiceStub{err: appErrors.Clone(appErrors.ErrNotFound, "appointment not found")}
	h := NewAppointmentHandler(svc)
	c, w := newTestContext(http.MethodGet, "/appointments/missing", "", staffClaims, gin.Param{Key: "id", Value: "missing"})

	h.Get(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}
