package models

import "time"

// SlotType classifies an availability window.
type SlotType string

const (
	SlotAvailability SlotType = "AVAILABILITY"
	SlotBusy         SlotType = "BUSY"
	SlotUnavailable  SlotType = "UNAVAILABLE"
)

// RecurrenceType controls how a slot repeats.
type RecurrenceType string

const (
	RecurrenceNone     RecurrenceType = "NONE"
	RecurrenceWeekly   RecurrenceType = "WEEKLY"
	RecurrenceBiweekly RecurrenceType = "BIWEEKLY"
	RecurrenceMonthly  RecurrenceType = "MONTHLY"
)

// IsRecurring reports whether the slot repeats.
func (r RecurrenceType) IsRecurring() bool {
	return r == RecurrenceWeekly || r == RecurrenceBiweekly || r == RecurrenceMonthly
}

// ExceptionType describes how an exception overrides one occurrence.
type ExceptionType string

const (
	ExceptionCancelled ExceptionType = "CANCELLED"
	ExceptionModified  ExceptionType = "MODIFIED"
	ExceptionMoved     ExceptionType = "MOVED"
)

// AvailabilitySlot is a recurring or one-off window on a volunteer calendar.
type AvailabilitySlot struct {
	ID              string         `db:"id" json:"id"`
	CalendarID      string         `db:"calendar_id" json:"calendar_id"`
	SlotType        SlotType       `db:"slot_type" json:"slot_type"`
	RecurrenceType  RecurrenceType `db:"recurrence_type" json:"recurrence_type"`
	Weekday         *Weekday       `db:"weekday" json:"weekday,omitempty"`
	SpecificDate    *Date          `db:"specific_date" json:"specific_date,omitempty"`
	StartTime       TimeOfDay      `db:"start_time" json:"start_time"`
	EndTime         TimeOfDay      `db:"end_time" json:"end_time"`
	ValidFrom       Date           `db:"valid_from" json:"valid_from"`
	ValidUntil      *Date          `db:"valid_until" json:"valid_until,omitempty"`
	Title           string         `db:"title" json:"title"`
	Notes           string         `db:"notes" json:"notes"`
	IsBookable      bool           `db:"is_bookable" json:"is_bookable"`
	MaxAppointments int            `db:"max_appointments" json:"max_appointments"`
	IsActive        bool           `db:"is_active" json:"is_active"`
	CreatedBy       *string        `db:"created_by" json:"created_by,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// Duration returns the slot length.
func (s AvailabilitySlot) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// AcceptsBookings reports whether the slot may host appointments at all.
func (s AvailabilitySlot) AcceptsBookings() bool {
	return s.IsActive && s.IsBookable && s.SlotType == SlotAvailability
}

// SlotFilter narrows slot listings.
type SlotFilter struct {
	CalendarID string
	SlotType   *SlotType
	ActiveOnly bool
	Page       int
	PageSize   int
}

// AvailabilityException overrides a single occurrence of a slot.
type AvailabilityException struct {
	ID            string        `db:"id" json:"id"`
	SlotID        string        `db:"slot_id" json:"slot_id"`
	ExceptionDate Date          `db:"exception_date" json:"exception_date"`
	ExceptionType ExceptionType `db:"exception_type" json:"exception_type"`
	NewStartTime  *TimeOfDay    `db:"new_start_time" json:"new_start_time,omitempty"`
	NewEndTime    *TimeOfDay    `db:"new_end_time" json:"new_end_time,omitempty"`
	NewDate       *Date         `db:"new_date" json:"new_date,omitempty"`
	Reason        string        `db:"reason" json:"reason"`
	CreatedBy     *string       `db:"created_by" json:"created_by,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// SlotRequest is the create/update payload of a slot.
type SlotRequest struct {
	SlotType        SlotType       `json:"slot_type" validate:"required,oneof=AVAILABILITY BUSY UNAVAILABLE"`
	RecurrenceType  RecurrenceType `json:"recurrence_type" validate:"required,oneof=NONE WEEKLY BIWEEKLY MONTHLY"`
	Weekday         *Weekday       `json:"weekday" validate:"omitempty,min=0,max=6"`
	SpecificDate    *Date          `json:"specific_date"`
	StartTime       TimeOfDay      `json:"start_time"`
	EndTime         TimeOfDay      `json:"end_time"`
	ValidFrom       *Date          `json:"valid_from"`
	ValidUntil      *Date          `json:"valid_until"`
	Title           string         `json:"title" validate:"max=200"`
	Notes           string         `json:"notes"`
	IsBookable      *bool          `json:"is_bookable"`
	MaxAppointments *int           `json:"max_appointments" validate:"omitempty,min=1,max=50"`
	IsActive        *bool          `json:"is_active"`
}

// ExceptionRequest is the create payload of an exception.
type ExceptionRequest struct {
	ExceptionDate Date          `json:"exception_date"`
	ExceptionType ExceptionType `json:"exception_type" validate:"required,oneof=CANCELLED MODIFIED MOVED"`
	NewStartTime  *TimeOfDay    `json:"new_start_time"`
	NewEndTime    *TimeOfDay    `json:"new_end_time"`
	NewDate       *Date         `json:"new_date"`
	Reason        string        `json:"reason" validate:"max=500"`
}
