package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ona-asso/ona-api/internal/authz"
	"github.com/ona-asso/ona-api/internal/models"
	"github.com/ona-asso/ona-api/internal/service"
	appErrors "github.com/ona-asso/ona-api/pkg/errors"
	"github.com/ona-asso/ona-api/pkg/response"
)

type calendarService interface {
	Get(ctx context.Context, principal authz.Principal, id string) (*models.CalendarOwner, error)
	GetMine(ctx context.Context, principal authz.Principal) (*models.CalendarOwner, error)
	UpdateSettings(ctx context.Context, principal authz.Principal, id string, req models.UpdateCalendarSettingsRequest) (*models.VolunteerCalendar, error)
}

type calendarDataService interface {
	CalendarData(ctx context.Context, principal authz.Principal, calendarID string, from, to models.Date) (*service.CalendarData, error)
}

type calendarExporter interface {
	Export(ctx context.Context, principal authz.Principal, calendarID string, from, to models.Date) ([]byte, string, error)
}

// CalendarHandler exposes /calendars endpoints.
type CalendarHandler struct {
	calendars calendarService
	data      calendarDataService
	exporter  calendarExporter
	location  *time.Location
}

// NewCalendarHandler constructs a CalendarHandler.
func NewCalendarHandler(calendars calendarService, data calendarDataService, exporter calendarExporter, location *time.Location) *CalendarHandler {
	if location == nil {
		location = time.UTC
	}
	return &CalendarHandler{calendars: calendars, data: data, exporter: exporter, location: location}
}

// Me godoc
// @Summary Current volunteer calendar
// @Tags Calendars
// @Produce json
// @Param X-Acting-As header string false "Volunteer staff acts as"
// @Success 200 {object} response.Envelope
// @Router /calendars/me [get]
func (h *CalendarHandler) Me(c *gin.Context) {
	calendar, err := h.calendars.GetMine(c.Request.Context(), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, calendar, nil)
}

// Get godoc
// @Summary Get calendar
// @Tags Calendars
// @Produce json
// @Param id path string true "Calendar ID"
// @Success 200 {object} response.Envelope
// @Router /calendars/{id} [get]
func (h *CalendarHandler) Get(c *gin.Context) {
	calendar, err := h.calendars.Get(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, calendar, nil)
}

// UpdateSettings godoc
// @Summary Update calendar settings
// @Tags Calendars
// @Accept json
// @Produce json
// @Param id path string true "Calendar ID"
// @Param payload body models.UpdateCalendarSettingsRequest true "Settings payload"
// @Success 200 {object} response.Envelope
// @Router /calendars/{id}/settings [put]
func (h *CalendarHandler) UpdateSettings(c *gin.Context) {
	var req models.UpdateCalendarSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid settings payload"))
		return
	}
	calendar, err := h.calendars.UpdateSettings(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, calendar, nil)
}

// Data godoc
// @Summary Calendar settings, slot occurrences and appointments for a date range
// @Tags Calendars
// @Produce json
// @Param id path string true "Calendar ID"
// @Param start query string false "First date (YYYY-MM-DD), defaults to today"
// @Param end query string false "Last date (YYYY-MM-DD), defaults to start plus 7 days"
// @Success 200 {object} response.Envelope
// @Router /calendars/{id}/data [get]
func (h *CalendarHandler) Data(c *gin.Context) {
	from, to, err := dateRange(c, h.location, 7)
	if err != nil {
		response.Error(c, err)
		return
	}
	data, err := h.data.CalendarData(c.Request.Context(), principalFromContext(c), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, data, nil)
}

// ICS godoc
// @Summary Export calendar as iCalendar
// @Tags Calendars
// @Produce text/calendar
// @Param id path string true "Calendar ID"
// @Param start query string false "First date (YYYY-MM-DD)"
// @Param end query string false "Last date (YYYY-MM-DD)"
// @Success 200 {file} file
// @Router /calendars/{id}/ics [get]
func (h *CalendarHandler) ICS(c *gin.Context) {
	from, to, err := dateRange(c, h.location, 30)
	if err != nil {
		response.Error(c, err)
		return
	}
	body, filename, err := h.exporter.Export(c.Request.Context(), principalFromContext(c), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, "text/calendar; charset=utf-8", body)
}
