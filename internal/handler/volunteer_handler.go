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

type volunteerService interface {
	List(ctx context.Context, principal authz.Principal, filter models.VolunteerFilter) ([]models.Volunteer, *models.Pagination, error)
	Get(ctx context.Context, principal authz.Principal, id string) (*models.Volunteer, error)
	Provision(ctx context.Context, principal authz.Principal, req models.CreateVolunteerRequest) (*models.Volunteer, error)
	ChangeRole(ctx context.Context, principal authz.Principal, id string, req models.ChangeRoleRequest) (*models.Volunteer, error)
}

// VolunteerHandler exposes volunteer administration endpoints.
type VolunteerHandler struct {
	service volunteerService
}

// NewVolunteerHandler constructs a VolunteerHandler.
func NewVolunteerHandler(service volunteerService) *VolunteerHandler {
	return &VolunteerHandler{service: service}
}

// List godoc
// @Summary List volunteers
// @Tags Volunteers
// @Produce json
// @Param role query string false "Role filter"
// @Param status query string false "Status filter"
// @Param search query string false "Name or email"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /volunteers [get]
func (h *VolunteerHandler) List(c *gin.Context) {
	page, size := pageParams(c)
	filter := models.VolunteerFilter{
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     page,
		PageSize: size,
	}
	if raw := strings.ToUpper(strings.TrimSpace(c.Query("role"))); raw != "" {
		role := models.UserRole(raw)
		if !role.Valid() {
			response.Error(c, appErrors.Validation("role", "unknown role"))
			return
		}
		filter.Role = &role
	}
	if raw := strings.ToUpper(strings.TrimSpace(c.Query("status"))); raw != "" {
		status := models.VolunteerStatus(raw)
		filter.Status = &status
	}

	volunteers, pagination, err := h.service.List(c.Request.Context(), principalFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, volunteers, pagination)
}

// Get godoc
// @Summary Get volunteer
// @Tags Volunteers
// @Produce json
// @Param id path string true "Volunteer ID"
// @Success 200 {object} response.Envelope
// @Router /volunteers/{id} [get]
func (h *VolunteerHandler) Get(c *gin.Context) {
	volunteer, err := h.service.Get(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, volunteer, nil)
}

// Create godoc
// @Summary Provision a volunteer and its calendar
// @Tags Volunteers
// @Accept json
// @Produce json
// @Param payload body models.CreateVolunteerRequest true "Volunteer payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /volunteers [post]
func (h *VolunteerHandler) Create(c *gin.Context) {
	var req models.CreateVolunteerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid volunteer payload"))
		return
	}
	volunteer, err := h.service.Provision(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, volunteer)
}

// ChangeRole godoc
// @Summary Change the role of a volunteer
// @Description Moving to governance removes the volunteer's calendar, leaving governance creates one.
// @Tags Volunteers
// @Accept json
// @Produce json
// @Param id path string true "Volunteer ID"
// @Param payload body models.ChangeRoleRequest true "Role payload"
// @Success 200 {object} response.Envelope
// @Router /volunteers/{id}/role [patch]
func (h *VolunteerHandler) ChangeRole(c *gin.Context) {
	var req models.ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid role payload"))
		return
	}
	volunteer, err := h.service.ChangeRole(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, volunteer, nil)
}
