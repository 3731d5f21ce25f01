package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/ona-asso/ona-api/internal/models"
	appErrors "github.com/ona-asso/ona-api/pkg/errors"
)

type authVolunteerRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.Volunteer, error)
}

// AuthConfig defines configuration for token validation and issuance.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
	Audience          []string
}

// AuthService validates bearer tokens minted by the association's identity layer
// and issues tokens for operators.
type AuthService struct {
	volunteers authVolunteerRepository
	logger     *zap.Logger
	config     AuthConfig
	now        func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(volunteers authVolunteerRepository, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 24 * time.Hour
	}
	return &AuthService{volunteers: volunteers, logger: logger, config: config, now: time.Now}
}

// ValidateToken parses and verifies an access token.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if s.config.Issuer != "" && claims.Issuer != "" && claims.Issuer != s.config.Issuer {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unexpected token issuer")
	}
	return claims, nil
}

// ResolveVolunteer fills the volunteer identity of claims that only carry a user id.
func (s *AuthService) ResolveVolunteer(ctx context.Context, claims *models.JWTClaims) error {
	if claims == nil || claims.VolunteerID != "" || s.volunteers == nil || claims.UserID == "" {
		return nil
	}
	volunteer, err := s.volunteers.FindByUserID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve volunteer")
	}
	claims.VolunteerID = volunteer.ID
	if claims.Role == "" {
		claims.Role = volunteer.Role
	}
	return nil
}

// IssueToken mints an access token for a volunteer.
func (s *AuthService) IssueToken(volunteer *models.Volunteer, superuser bool) (*models.IssuedToken, error) {
	if volunteer == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "volunteer is required")
	}
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	subject := volunteer.ID
	if volunteer.UserID != nil && *volunteer.UserID != "" {
		subject = *volunteer.UserID
	}
	claims := &models.JWTClaims{
		UserID:      subject,
		VolunteerID: volunteer.ID,
		Role:        volunteer.Role,
		Email:       volunteer.Email,
		FullName:    volunteer.FullName(),
		Superuser:   superuser,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   subject,
			Audience:  s.config.Audience,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}
	s.logger.Info("access token issued", zap.String("volunteer_id", volunteer.ID), zap.Bool("superuser", superuser))
	return &models.IssuedToken{
		AccessToken: signed,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:    issuedAt,
	}, nil
}
