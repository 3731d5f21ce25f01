package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ona-asso/ona-api/internal/authz"
	"github.com/ona-asso/ona-api/internal/models"
	"github.com/ona-asso/ona-api/internal/scheduling"
	"github.com/ona-asso/ona-api/internal/service"
	appErrors "github.com/ona-asso/ona-api/pkg/errors"
	"github.com/ona-asso/ona-api/pkg/response"
)

type availabilityService interface {
	ListSlots(ctx context.Context, principal authz.Principal, calendarID string, filter models.SlotFilter) ([]models.AvailabilitySlot, *models.Pagination, error)
	GetSlot(ctx context.Context, principal authz.Principal, id string, date *models.Date) (*service.SlotBooking, error)
	CreateSlot(ctx context.Context, principal authz.Principal, calendarID string, req models.SlotRequest) (*models.AvailabilitySlot, error)
	UpdateSlot(ctx context.Context, principal authz.Principal, id string, req models.SlotRequest) (*models.AvailabilitySlot, error)
	DeleteSlot(ctx context.Context, principal authz.Principal, id string) error
	Occurrences(ctx context.Context, principal authz.Principal, id string, from, to models.Date) ([]scheduling.Occurrence, error)
	ListExceptions(ctx context.Context, principal authz.Principal, slotID string) ([]models.AvailabilityException, error)
	CreateException(ctx context.Context, principal authz.Principal, slotID string, req models.ExceptionRequest) (*models.AvailabilityException, error)
	DeleteException(ctx context.Context, principal authz.Principal, slotID, exceptionID string) error
}

// SlotHandler exposes availability slot and exception endpoints.
type SlotHandler struct {
	service availabilityService
}

// NewSlotHandler constructs a SlotHandler.
func NewSlotHandler(service availabilityService) *SlotHandler {
	return &SlotHandler{service: service}
}

// List godoc
// @Summary List the slots of a calendar
// @Tags Availability
// @Produce json
// @Param id path string true "Calendar ID"
// @Param slot_type query string false "AVAILABILITY, BUSY or UNAVAILABLE"
// @Param active query bool false "Only active slots"
// @Success 200 {object} response.Envelope
// @Router /calendars/{id}/slots [get]
func (h *SlotHandler) List(c *gin.Context) {
	page, size := pageParams(c)
	filter := models.SlotFilter{Page: page, PageSize: size, ActiveOnly: c.Query("active") == "true"}
	if raw := strings.ToUpper(strings.TrimSpace(c.Query("slot_type"))); raw != "" {
		slotType := models.SlotType(raw)
		filter.SlotType = &slotType
	}
	slots, pagination, err := h.service.ListSlots(c.Request.Context(), principalFromContext(c), c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, pagination)
}

// Create godoc
// @Summary Create a slot on a calendar
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Calendar ID"
// @Param payload body models.SlotRequest true "Slot payload"
// @Success 201 {object} response.Envelope
// @Router /calendars/{id}/slots [post]
func (h *SlotHandler) Create(c *gin.Context) {
	var req models.SlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot payload"))
		return
	}
	slot, err := h.service.CreateSlot(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// Get godoc
// @Summary Get a slot and its booking state
// @Tags Availability
// @Produce json
// @Param id path string true "Slot ID"
// @Param date query string false "Occurrence date to report bookings for"
// @Success 200 {object} response.Envelope
// @Router /slots/{id} [get]
func (h *SlotHandler) Get(c *gin.Context) {
	date, err := queryDate(c, "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	booking, err := h.service.GetSlot(c.Request.Context(), principalFromContext(c), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Update godoc
// @Summary Update a slot
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Slot ID"
// @Param payload body models.SlotRequest true "Slot payload"
// @Success 200 {object} response.Envelope
// @Router /slots/{id} [put]
func (h *SlotHandler) Update(c *gin.Context) {
	var req models.SlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot payload"))
		return
	}
	slot, err := h.service.UpdateSlot(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Delete godoc
// @Summary Delete a slot
// @Tags Availability
// @Param id path string true "Slot ID"
// @Success 204
// @Router /slots/{id} [delete]
func (h *SlotHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteSlot(c.Request.Context(), principalFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Occurrences godoc
// @Summary Expand a slot over a date range
// @Tags Availability
// @Produce json
// @Param id path string true "Slot ID"
// @Param start query string true "First date (YYYY-MM-DD)"
// @Param end query string true "Last date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /slots/{id}/occurrences [get]
func (h *SlotHandler) Occurrences(c *gin.Context) {
	from, err := queryDate(c, "start")
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := queryDate(c, "end")
	if err != nil {
		response.Error(c, err)
		return
	}
	if from == nil || to == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "start and end are required"))
		return
	}
	occurrences, err := h.service.Occurrences(c.Request.Context(), principalFromContext(c), c.Param("id"), *from, *to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occurrences, nil)
}

// ListExceptions godoc
// @Summary List the exceptions of a slot
// @Tags Availability
// @Produce json
// @Param id path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Router /slots/{id}/exceptions [get]
func (h *SlotHandler) ListExceptions(c *gin.Context) {
	exceptions, err := h.service.ListExceptions(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exceptions, nil)
}

// CreateException godoc
// @Summary Cancel, modify or move one occurrence of a slot
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Slot ID"
// @Param payload body models.ExceptionRequest true "Exception payload"
// @Success 201 {object} response.Envelope
// @Router /slots/{id}/exceptions [post]
func (h *SlotHandler) CreateException(c *gin.Context) {
	var req models.ExceptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid exception payload"))
		return
	}
	exception, err := h.service.CreateException(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exception)
}

// DeleteException godoc
// @Summary Delete a slot exception
// @Tags Availability
// @Param id path string true "Slot ID"
// @Param exceptionId path string true "Exception ID"
// @Success 204
// @Router /slots/{id}/exceptions/{exceptionId} [delete]
func (h *SlotHandler) DeleteException(c *gin.Context) {
	if err := h.service.DeleteException(c.Request.Context(), principalFromContext(c), c.Param("id"), c.Param("exceptionId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
