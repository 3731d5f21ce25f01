package handler

import (
	"bytes"
	"context"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ona-asso/ona-api/internal/authz"
	"github.com/ona-asso/ona-api/internal/models"
	"github.com/ona-asso/ona-api/internal/scheduling"
	"github.com/ona-asso/ona-api/internal/service"
	appErrors "github.com/ona-asso/ona-api/pkg/errors"
	"github.com/ona-asso/ona-api/pkg/response"
)

type scheduleQueryService interface {
	FreeSlots(ctx context.Context, principal authz.Principal, calendarID string, from, to models.Date) ([]scheduling.FreeInterval, error)
	CalendarAppointments(ctx context.Context, principal authz.Principal, calendarID string, from, to models.Date) ([]models.Appointment, error)
	AvailableVolunteers(ctx context.Context, principal authz.Principal, window scheduling.Interval) (*scheduling.Eligibility, error)
	Week(ctx context.Context, principal authz.Principal, day *models.Date) (*service.WeekView, error)
}

var volunteerOptionsTemplate = template.Must(template.New("volunteer-options").Parse(
	`{{if .Empty}}<option value="">Sélectionnez d'abord une date et un horaire</option>{{else}}<option value="">Choisir un bénévole</option>` +
		`{{if .Available}}<optgroup label="Bénévoles disponibles">{{range .Available}}<option value="{{.ID}}">{{.OwnerName}} ✓</option>{{end}}</optgroup>{{end}}` +
		`{{if .Unavailable}}<optgroup label="Bénévoles indisponibles">{{range .Unavailable}}<option value="{{.ID}}" class="text-gray-400">{{.OwnerName}}</option>{{end}}</optgroup>{{end}}{{end}}`,
))

type volunteerOptions struct {
	Empty       bool
	Available   []models.CalendarOwner
	Unavailable []models.CalendarOwner
}

// FragmentHandler serves the partial payloads used for in-page updates.
type FragmentHandler struct {
	queries  scheduleQueryService
	location *time.Location
}

// NewFragmentHandler constructs a FragmentHandler.
func NewFragmentHandler(queries scheduleQueryService, location *time.Location) *FragmentHandler {
	if location == nil {
		location = time.UTC
	}
	return &FragmentHandler{queries: queries, location: location}
}

// FreeSlots godoc
// @Summary Free bookable intervals of a calendar
// @Tags Fragments
// @Produce json
// @Param calendar_id query string false "Calendar ID, defaults to the caller's calendar"
// @Param start query string false "First date (YYYY-MM-DD)"
// @Param end query string false "Last date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /fragments/free-slots [get]
func (h *FragmentHandler) FreeSlots(c *gin.Context) {
	from, to, err := dateRange(c, h.location, 7)
	if err != nil {
		response.Error(c, err)
		return
	}
	free, err := h.queries.FreeSlots(c.Request.Context(), principalFromContext(c), strings.TrimSpace(c.Query("calendar_id")), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, free, nil)
}

// Appointments godoc
// @Summary Appointments of a calendar
// @Tags Fragments
// @Produce json
// @Param calendar_id query string false "Calendar ID, defaults to the caller's calendar"
// @Param start query string false "First date (YYYY-MM-DD)"
// @Param end query string false "Last date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /fragments/appointments [get]
func (h *FragmentHandler) Appointments(c *gin.Context) {
	from, to, err := dateRange(c, h.location, 7)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.queries.CalendarAppointments(c.Request.Context(), principalFromContext(c), strings.TrimSpace(c.Query("calendar_id")), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// AvailableVolunteers godoc
// @Summary Volunteers able to take a window
// @Tags Fragments
// @Produce json,html
// @Param appointment_date query string true "Date (YYYY-MM-DD)"
// @Param start_time query string true "Start (HH:MM)"
// @Param end_time query string true "End (HH:MM)"
// @Param format query string false "html for select options"
// @Success 200 {object} response.Envelope
// @Router /fragments/available-volunteers [get]
func (h *FragmentHandler) AvailableVolunteers(c *gin.Context) {
	asHTML := strings.EqualFold(c.Query("format"), "html")

	date, err := queryDate(c, "appointment_date", "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	start, err := queryTime(c, "start_time")
	if err != nil {
		response.Error(c, err)
		return
	}
	end, err := queryTime(c, "end_time")
	if err != nil {
		response.Error(c, err)
		return
	}
	if date == nil || start == nil || end == nil {
		if asHTML {
			h.renderOptions(c, volunteerOptions{Empty: true})
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "appointment_date, start_time and end_time are required"))
		return
	}

	result, err := h.queries.AvailableVolunteers(c.Request.Context(), principalFromContext(c), scheduling.NewInterval(*date, *start, *end))
	if err != nil {
		response.Error(c, err)
		return
	}
	if asHTML {
		h.renderOptions(c, volunteerOptions{Available: result.Available, Unavailable: result.Unavailable})
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func (h *FragmentHandler) renderOptions(c *gin.Context, data volunteerOptions) {
	var buf bytes.Buffer
	if err := volunteerOptionsTemplate.Execute(&buf, data); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render volunteer options"))
		return
	}
	response.HTML(c, http.StatusOK, buf.Bytes())
}

// Week godoc
// @Summary Team planning for a week
// @Tags Fragments
// @Produce json
// @Param date query string false "Any date of the week (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /fragments/week [get]
func (h *FragmentHandler) Week(c *gin.Context) {
	day, err := queryDate(c, "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.queries.Week(c.Request.Context(), principalFromContext(c), day)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
