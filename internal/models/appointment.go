package models

import "time"

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	AppointmentScheduled  AppointmentStatus = "SCHEDULED"
	AppointmentConfirmed  AppointmentStatus = "CONFIRMED"
	AppointmentInProgress AppointmentStatus = "IN_PROGRESS"
	AppointmentCompleted  AppointmentStatus = "COMPLETED"
	AppointmentCancelled  AppointmentStatus = "CANCELLED"
	AppointmentNoShow     AppointmentStatus = "NO_SHOW"
)

// Valid reports whether the status is known.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentScheduled, AppointmentConfirmed, AppointmentInProgress,
		AppointmentCompleted, AppointmentCancelled, AppointmentNoShow:
		return true
	}
	return false
}

// IsTerminal reports statuses that end the lifecycle.
func (s AppointmentStatus) IsTerminal() bool {
	return s == AppointmentCompleted || s == AppointmentCancelled || s == AppointmentNoShow
}

// OccupiesSlot reports whether an appointment in this status blocks its time range.
func (s AppointmentStatus) OccupiesSlot() bool {
	return s != AppointmentCancelled
}

// AppointmentType classifies the purpose of an appointment.
type AppointmentType string

const (
	AppointmentInterview      AppointmentType = "INTERVIEW"
	AppointmentFollowUp       AppointmentType = "FOLLOW_UP"
	AppointmentAdministrative AppointmentType = "ADMINISTRATIVE"
	AppointmentSocial         AppointmentType = "SOCIAL"
	AppointmentOther          AppointmentType = "OTHER"
)

// Appointment is a booking between a volunteer calendar and a beneficiary.
type Appointment struct {
	ID               string            `db:"id" json:"id"`
	CalendarID       *string           `db:"calendar_id" json:"calendar_id,omitempty"`
	BeneficiaryID    string            `db:"beneficiary_id" json:"beneficiary_id"`
	AppointmentDate  Date              `db:"appointment_date" json:"appointment_date"`
	StartTime        TimeOfDay         `db:"start_time" json:"start_time"`
	EndTime          TimeOfDay         `db:"end_time" json:"end_time"`
	AppointmentType  AppointmentType   `db:"appointment_type" json:"appointment_type"`
	Title            string            `db:"title" json:"title"`
	Description      string            `db:"description" json:"description"`
	Location         string            `db:"location" json:"location"`
	Status           AppointmentStatus `db:"status" json:"status"`
	PreparationNotes string            `db:"preparation_notes" json:"preparation_notes"`
	CompletionNotes  string            `db:"completion_notes" json:"completion_notes"`
	SlotID           *string           `db:"slot_id" json:"slot_id,omitempty"`
	CreatedBy        *string           `db:"created_by" json:"created_by,omitempty"`
	ReminderSentAt   *time.Time        `db:"reminder_sent_at" json:"reminder_sent_at,omitempty"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
}

// IsOrphan reports appointments without an assigned volunteer.
func (a Appointment) IsOrphan() bool {
	return a.CalendarID == nil || *a.CalendarID == ""
}

// Duration returns the appointment length.
func (a Appointment) Duration() time.Duration {
	return a.EndTime.Sub(a.StartTime)
}

// AppointmentDetail is an appointment joined with beneficiary and volunteer names.
type AppointmentDetail struct {
	Appointment
	BeneficiaryFirstName string  `db:"beneficiary_first_name" json:"beneficiary_first_name"`
	BeneficiaryLastName  string  `db:"beneficiary_last_name" json:"beneficiary_last_name"`
	VolunteerID          *string `db:"volunteer_id" json:"volunteer_id,omitempty"`
	VolunteerFirstName   *string `db:"volunteer_first_name" json:"volunteer_first_name,omitempty"`
	VolunteerLastName    *string `db:"volunteer_last_name" json:"volunteer_last_name,omitempty"`
}

// BeneficiaryName returns the beneficiary display name.
func (a AppointmentDetail) BeneficiaryName() string {
	return Volunteer{FirstName: a.BeneficiaryFirstName, LastName: a.BeneficiaryLastName}.FullName()
}

// VolunteerName returns the assigned volunteer display name, empty for orphans.
func (a AppointmentDetail) VolunteerName() string {
	var first, last string
	if a.VolunteerFirstName != nil {
		first = *a.VolunteerFirstName
	}
	if a.VolunteerLastName != nil {
		last = *a.VolunteerLastName
	}
	return Volunteer{FirstName: first, LastName: last}.FullName()
}

// AppointmentFilter narrows appointment listings.
type AppointmentFilter struct {
	CalendarID    string
	BeneficiaryID string
	CreatedBy     string
	Statuses      []AppointmentStatus
	DateFrom      *Date
	DateTo        *Date
	OrphanOnly    bool
	Page          int
	PageSize      int
}

// AppointmentRequest is the create/update payload of an appointment.
type AppointmentRequest struct {
	CalendarID       *string         `json:"calendar_id"`
	BeneficiaryID    string          `json:"beneficiary_id" validate:"required"`
	AppointmentDate  Date            `json:"appointment_date"`
	StartTime        TimeOfDay       `json:"start_time"`
	EndTime          TimeOfDay       `json:"end_time"`
	AppointmentType  AppointmentType `json:"appointment_type" validate:"required,oneof=INTERVIEW FOLLOW_UP ADMINISTRATIVE SOCIAL OTHER"`
	Title            string          `json:"title" validate:"required,max=200"`
	Description      string          `json:"description"`
	Location         string          `json:"location" validate:"max=200"`
	PreparationNotes string          `json:"preparation_notes"`
	CompletionNotes  string          `json:"completion_notes"`
	SlotID           *string         `json:"slot_id"`
}

// UpdateStatusRequest moves an appointment through its lifecycle.
type UpdateStatusRequest struct {
	Status          AppointmentStatus `json:"status" validate:"required,oneof=SCHEDULED CONFIRMED IN_PROGRESS COMPLETED CANCELLED NO_SHOW"`
	CompletionNotes *string           `json:"completion_notes"`
}

// AppointmentConflict identifies an existing appointment overlapping a candidate.
type AppointmentConflict struct {
	AppointmentID string    `json:"appointment_id"`
	Date          Date      `json:"date"`
	StartTime     TimeOfDay `json:"start_time"`
	EndTime       TimeOfDay `json:"end_time"`
	Title         string    `json:"title"`
}

// AppointmentConflictError is returned when a booking collides with existing ones.
type AppointmentConflictError struct {
	Type      string                `json:"type"`
	Message   string                `json:"message"`
	Volunteer string                `json:"volunteer,omitempty"`
	Conflicts []AppointmentConflict `json:"conflicts,omitempty"`
}

// Error implements the error interface for conflict errors.
func (e *AppointmentConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
