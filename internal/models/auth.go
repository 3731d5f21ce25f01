package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the JWT payload issued by the association's auth layer.
type JWTClaims struct {
	UserID      string   `json:"user_id"`
	VolunteerID string   `json:"volunteer_id,omitempty"`
	Role        UserRole `json:"role"`
	Email       string   `json:"email"`
	FullName    string   `json:"full_name"`
	Superuser   bool     `json:"superuser,omitempty"`
	jwt.RegisteredClaims
}

// IssuedToken is returned when a token is minted for a volunteer.
type IssuedToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
}
