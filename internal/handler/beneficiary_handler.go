package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ona-asso/ona-api/internal/authz"
	"github.com/ona-asso/ona-api/internal/models"
	appErrors "github.com/ona-asso/ona-api/pkg/errors"
	"github.com/ona-asso/ona-api/pkg/response"
)

type beneficiaryService interface {
	Create(ctx context.Context, principal authz.Principal, req models.CreateBeneficiaryRequest) (*models.BeneficiaryWithSnapshot, error)
	Get(ctx context.Context, principal authz.Principal, id string) (*models.BeneficiaryWithSnapshot, error)
}

// BeneficiaryHandler exposes beneficiary registration.
type BeneficiaryHandler struct {
	service beneficiaryService
}

// NewBeneficiaryHandler constructs a BeneficiaryHandler.
func NewBeneficiaryHandler(service beneficiaryService) *BeneficiaryHandler {
	return &BeneficiaryHandler{service: service}
}

// Create godoc
// @Summary Register a beneficiary with its financial snapshot
// @Tags Beneficiaries
// @Accept json
// @Produce json
// @Param payload body models.CreateBeneficiaryRequest true "Beneficiary payload"
// @Success 201 {object} response.Envelope
// @Router /beneficiaries [post]
func (h *BeneficiaryHandler) Create(c *gin.Context) {
	var req models.CreateBeneficiaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid beneficiary payload"))
		return
	}
	beneficiary, err := h.service.Create(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, beneficiary)
}

// Get godoc
// @Summary Get beneficiary
// @Tags Beneficiaries
// @Produce json
// @Param id path string true "Beneficiary ID"
// @Success 200 {object} response.Envelope
// @Router /beneficiaries/{id} [get]
func (h *BeneficiaryHandler) Get(c *gin.Context) {
	beneficiary, err := h.service.Get(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, beneficiary, nil)
}
