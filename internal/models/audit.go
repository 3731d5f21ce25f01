package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Audit actions recorded for mutating requests.
const (
	AuditActionCreate = "CREATE"
	AuditActionUpdate = "UPDATE"
	AuditActionDelete = "DELETE"
)

// Audited resources.
const (
	AuditResourceVolunteer   = "volunteer"
	AuditResourceCalendar    = "calendar"
	AuditResourceSlot        = "availability_slot"
	AuditResourceAppointment = "appointment"
	AuditResourceBeneficiary = "beneficiary"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID          string         `db:"id" json:"id"`
	VolunteerID *string        `db:"volunteer_id" json:"volunteer_id,omitempty"`
	UserID      *string        `db:"user_id" json:"user_id,omitempty"`
	ActingAs    *string        `db:"acting_as" json:"acting_as,omitempty"`
	Action      string         `db:"action" json:"action"`
	Resource    string         `db:"resource" json:"resource"`
	ResourceID  *string        `db:"resource_id" json:"resource_id,omitempty"`
	Payload     types.JSONText `db:"payload" json:"payload"`
	RequestID   string         `db:"request_id" json:"request_id"`
	IPAddress   string         `db:"ip_address" json:"ip_address"`
	UserAgent   string         `db:"user_agent" json:"user_agent"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}
