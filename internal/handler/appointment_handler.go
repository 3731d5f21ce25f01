package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ona-asso/ona-api/internal/authz"
	"github.com/ona-asso/ona-api/internal/models"
	appErrors "github.com/ona-asso/ona-api/pkg/errors"
	"github.com/ona-asso/ona-api/pkg/response"
)

type appointmentService interface {
	List(ctx context.Context, principal authz.Principal, filter models.AppointmentFilter) ([]models.AppointmentDetail, *models.Pagination, error)
	Get(ctx context.Context, principal authz.Principal, id string) (*models.AppointmentDetail, error)
	Create(ctx context.Context, principal authz.Principal, req models.AppointmentRequest) (*models.Appointment, error)
	Update(ctx context.Context, principal authz.Principal, id string, req models.AppointmentRequest) (*models.Appointment, error)
	UpdateStatus(ctx context.Context, principal authz.Principal, id string, req models.UpdateStatusRequest) (*models.Appointment, error)
	Delete(ctx context.Context, principal authz.Principal, id string) error
}

// AppointmentHandler exposes /appointments endpoints.
type AppointmentHandler struct {
	service appointmentService
}

// NewAppointmentHandler constructs an AppointmentHandler.
func NewAppointmentHandler(service appointmentService) *AppointmentHandler {
	return &AppointmentHandler{service: service}
}

// List godoc
// @Summary List appointments
// @Tags Appointments
// @Produce json
// @Param calendar_id query string false "Calendar filter"
// @Param beneficiary_id query string false "Beneficiary filter"
// @Param status query string false "Comma separated statuses"
// @Param start query string false "First date (YYYY-MM-DD)"
// @Param end query string false "Last date (YYYY-MM-DD)"
// @Param orphan query bool false "Only appointments without calendar"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /appointments [get]
func (h *AppointmentHandler) List(c *gin.Context) {
	from, err := queryDate(c, "start", "date_from")
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := queryDate(c, "end", "date_to")
	if err != nil {
		response.Error(c, err)
		return
	}
	calendarID, err := queryID(c, "calendar_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	beneficiaryID, err := queryID(c, "beneficiary_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	page, size := pageParams(c)
	filter := models.AppointmentFilter{
		CalendarID:    calendarID,
		BeneficiaryID: beneficiaryID,
		DateFrom:      from,
		DateTo:        to,
		OrphanOnly:    c.Query("orphan") == "true",
		Page:          page,
		PageSize:      size,
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := models.AppointmentStatus(strings.ToUpper(strings.TrimSpace(part)))
			if !status.Valid() {
				response.Error(c, appErrors.Validation("status", "unknown appointment status"))
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	appointments, pagination, err := h.service.List(c.Request.Context(), principalFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointments, pagination)
}

// Create godoc
// @Summary Book an appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body models.AppointmentRequest true "Appointment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments [post]
func (h *AppointmentHandler) Create(c *gin.Context) {
	var req models.AppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid appointment payload"))
		return
	}
	appointment, err := h.service.Create(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, appointment)
}

// Get godoc
// @Summary Get appointment detail
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id} [get]
func (h *AppointmentHandler) Get(c *gin.Context) {
	appointment, err := h.service.Get(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointment, nil)
}

// Update godoc
// @Summary Reschedule or edit an appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body models.AppointmentRequest true "Appointment payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments/{id} [put]
func (h *AppointmentHandler) Update(c *gin.Context) {
	var req models.AppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid appointment payload"))
		return
	}
	appointment, err := h.service.Update(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointment, nil)
}

// UpdateStatus godoc
// @Summary Move an appointment through its lifecycle
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body models.UpdateStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/status [patch]
func (h *AppointmentHandler) UpdateStatus(c *gin.Context) {
	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	appointment, err := h.service.UpdateStatus(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointment, nil)
}

// Delete godoc
// @Summary Delete an appointment
// @Tags Appointments
// @Param id path string true "Appointment ID"
// @Success 204
// @Router /appointments/{id} [delete]
func (h *AppointmentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), principalFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
