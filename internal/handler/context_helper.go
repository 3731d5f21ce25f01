package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ona-asso/ona-api/internal/authz"
	"github.com/ona-asso/ona-api/internal/middleware"
	"github.com/ona-asso/ona-api/internal/models"
	appErrors "github.com/ona-asso/ona-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func principalFromContext(c *gin.Context) authz.Principal {
	principal := authz.FromClaims(claimsFromContext(c))
	actingAs := strings.TrimSpace(c.GetHeader(middleware.ActingAsHeader))
	if actingAs == "" {
		actingAs = strings.TrimSpace(c.Query("volunteerId"))
	}
	principal.ActingAs = actingAs
	return principal
}

func queryDate(c *gin.Context, names ...string) (*models.Date, error) {
	for _, name := range names {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			continue
		}
		parsed, err := models.ParseDate(raw)
		if err != nil {
			return nil, appErrors.Validation(name, "must be a date formatted YYYY-MM-DD")
		}
		return &parsed, nil
	}
	return nil, nil
}

// queryID reads an optional identifier filter.
func queryID(c *gin.Context, name string) (string, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return "", nil
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", appErrors.Validation(name, "must be a valid identifier")
	}
	return raw, nil
}

func queryTime(c *gin.Context, name string) (*models.TimeOfDay, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	parsed, err := models.ParseTimeOfDay(raw)
	if err != nil {
		return nil, appErrors.Validation(name, "must be a time formatted HH:MM")
	}
	return &parsed, nil
}

// dateRange reads start and end, falling back to today and today plus span days.
func dateRange(c *gin.Context, location *time.Location, span int) (models.Date, models.Date, error) {
	start, err := queryDate(c, "start")
	if err != nil {
		return models.Date{}, models.Date{}, err
	}
	end, err := queryDate(c, "end")
	if err != nil {
		return models.Date{}, models.Date{}, err
	}
	if start == nil {
		today := models.DateOf(time.Now().In(location))
		start = &today
	}
	if end == nil {
		last := start.AddDays(span)
		end = &last
	}
	return *start, *end, nil
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", c.Query("limit")))
	return page, size
}
