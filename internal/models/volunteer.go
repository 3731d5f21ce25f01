package models

import "time"

// VolunteerStatus describes whether a volunteer is currently engaged.
type VolunteerStatus string

const (
	VolunteerActive    VolunteerStatus = "ACTIVE"
	VolunteerInactive  VolunteerStatus = "INACTIVE"
	VolunteerSuspended VolunteerStatus = "SUSPENDED"
)

// Volunteer represents a member of the association (staff or volunteer).
type Volunteer struct {
	ID        string          `db:"id" json:"id"`
	UserID    *string         `db:"user_id" json:"user_id,omitempty"`
	FirstName string          `db:"first_name" json:"first_name"`
	LastName  string          `db:"last_name" json:"last_name"`
	Email     string          `db:"email" json:"email"`
	Phone     *string         `db:"phone" json:"phone,omitempty"`
	Role      UserRole        `db:"role" json:"role"`
	Status    VolunteerStatus `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name.
func (v Volunteer) FullName() string {
	switch {
	case v.FirstName == "":
		return v.LastName
	case v.LastName == "":
		return v.FirstName
	}
	return v.FirstName + " " + v.LastName
}

// VolunteerFilter captures filtering criteria for listing volunteers.
type VolunteerFilter struct {
	Role     *UserRole
	Status   *VolunteerStatus
	Search   string
	Page     int
	PageSize int
}

// CreateVolunteerRequest provisions a volunteer account.
type CreateVolunteerRequest struct {
	UserID    *string  `json:"user_id"`
	FirstName string   `json:"first_name" validate:"required,max=100"`
	LastName  string   `json:"last_name" validate:"required,max=100"`
	Email     string   `json:"email" validate:"required,email"`
	Phone     *string  `json:"phone" validate:"omitempty,max=30"`
	Role      UserRole `json:"role" validate:"required,oneof=ADMIN EMPLOYEE VOLUNTEER_INTERVIEW VOLUNTEER_GOVERNANCE"`
}

// ChangeRoleRequest moves a volunteer to another role.
type ChangeRoleRequest struct {
	Role UserRole `json:"role" validate:"required,oneof=ADMIN EMPLOYEE VOLUNTEER_INTERVIEW VOLUNTEER_GOVERNANCE"`
}
