package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/ona-asso/ona-api/pkg/errors"
	"github.com/ona-asso/ona-api/pkg/response"
)

// AuthHandler reports who the bearer token belongs to.
type AuthHandler struct{}

// NewAuthHandler creates a new handler.
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

type whoAmI struct {
	UserID      string `json:"user_id"`
	VolunteerID string `json:"volunteer_id,omitempty"`
	Role        string `json:"role"`
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	Superuser   bool   `json:"superuser"`
	ActingAs    string `json:"acting_as,omitempty"`
}

// Me godoc
// @Summary Current principal
// @Description Returns the identity resolved from the bearer token
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	principal := principalFromContext(c)
	response.JSON(c, http.StatusOK, whoAmI{
		UserID:      claims.UserID,
		VolunteerID: claims.VolunteerID,
		Role:        string(claims.Role),
		Email:       claims.Email,
		FullName:    claims.FullName,
		Superuser:   claims.Superuser,
		ActingAs:    principal.ActingAs,
	}, nil)
}
