package models

// UserRole represents the roles a volunteer account can hold.
type UserRole string

const (
	RoleAdmin               UserRole = "ADMIN"
	RoleEmployee            UserRole = "EMPLOYEE"
	RoleVolunteerInterview  UserRole = "VOLUNTEER_INTERVIEW"
	RoleVolunteerGovernance UserRole = "VOLUNTEER_GOVERNANCE"
)

// Valid reports whether the role is one of the known values.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleEmployee, RoleVolunteerInterview, RoleVolunteerGovernance:
		return true
	}
	return false
}

// IsStaff reports roles with unrestricted scheduling rights.
func (r UserRole) IsStaff() bool {
	return r == RoleAdmin || r == RoleEmployee
}

// IsGovernance reports the governance role, which never owns a calendar.
func (r UserRole) IsGovernance() bool {
	return r == RoleVolunteerGovernance
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
