// Package authz decides what a principal may do on calendar resources.
package authz

import (
	"github.com/ona-asso/ona-api/internal/models"
	appErrors "github.com/ona-asso/ona-api/pkg/errors"
)

// Action is the kind of access requested.
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

// Principal is the authenticated actor of a request.
type Principal struct {
	UserID      string
	VolunteerID string
	Role        models.UserRole
	Superuser   bool
	// ActingAs is the volunteer the request targets when staff works on someone else's calendar.
	ActingAs string
}

// FromClaims builds a principal from token claims.
func FromClaims(claims *models.JWTClaims) Principal {
	if claims == nil {
		return Principal{}
	}
	return Principal{
		UserID:      claims.UserID,
		VolunteerID: claims.VolunteerID,
		Role:        claims.Role,
		Superuser:   claims.Superuser,
	}
}

// Elevated reports principals with unrestricted rights.
func (p Principal) Elevated() bool {
	return p.Superuser || p.Role.IsStaff()
}

// Resource describes the ownership of what is being accessed. OwnerVolunteerID
// is the volunteer owning the calendar, empty for orphan appointments.
// CreatedBy is the volunteer who created the resource.
type Resource struct {
	OwnerVolunteerID string
	CreatedBy        string
}

// Authorize returns nil when p may perform action on res.
//
// Governance volunteers have no access. Staff and superusers may do anything.
// Interview volunteers read everything and write only what sits on their own
// calendar or what they created themselves.
func Authorize(p Principal, action Action, res Resource) error {
	if p.UserID == "" && p.VolunteerID == "" {
		return appErrors.ErrUnauthorized
	}
	if p.Superuser {
		return nil
	}
	switch p.Role {
	case models.RoleVolunteerGovernance:
		return appErrors.Clone(appErrors.ErrForbidden, "governance volunteers have no access to calendars")
	case models.RoleAdmin, models.RoleEmployee:
		return nil
	case models.RoleVolunteerInterview:
		if action == ActionRead {
			return nil
		}
		if p.VolunteerID != "" && res.OwnerVolunteerID == p.VolunteerID {
			return nil
		}
		if res.CreatedBy != "" && res.CreatedBy == p.VolunteerID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "you can only modify your own calendar")
	default:
		return appErrors.ErrForbidden
	}
}

// TargetVolunteer resolves the volunteer a request acts on. Only elevated
// principals may target another volunteer.
func TargetVolunteer(p Principal) (string, error) {
	if p.ActingAs == "" || p.ActingAs == p.VolunteerID {
		return p.VolunteerID, nil
	}
	if !p.Elevated() {
		return "", appErrors.Clone(appErrors.ErrForbidden, "only staff can act on behalf of another volunteer")
	}
	return p.ActingAs, nil
}

// CanOwnCalendar reports whether a volunteer with role may hold a calendar.
func CanOwnCalendar(role models.UserRole) bool {
	return role.Valid() && !role.IsGovernance()
}
