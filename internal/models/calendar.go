package models

import "time"

// CalendarView is the default layout a volunteer sees.
type CalendarView string

const (
	CalendarViewDay   CalendarView = "day"
	CalendarViewWeek  CalendarView = "week"
	CalendarViewMonth CalendarView = "month"
)

// Calendar defaults applied on provisioning.
var (
	DefaultWorkStart           = NewTimeOfDay(8, 0)
	DefaultWorkEnd             = NewTimeOfDay(18, 0)
	DefaultReminderHoursBefore = 24
)

// VolunteerCalendar is the per-volunteer container of slots and appointments.
type VolunteerCalendar struct {
	ID                  string       `db:"id" json:"id"`
	VolunteerID         string       `db:"volunteer_id" json:"volunteer_id"`
	DefaultView         CalendarView `db:"default_view" json:"default_view"`
	WorkStartTime       TimeOfDay    `db:"work_start_time" json:"work_start_time"`
	WorkEndTime         TimeOfDay    `db:"work_end_time" json:"work_end_time"`
	ShowWeekends        bool         `db:"show_weekends" json:"show_weekends"`
	EmailReminders      bool         `db:"email_reminders" json:"email_reminders"`
	ReminderHoursBefore int          `db:"reminder_hours_before" json:"reminder_hours_before"`
	CreatedAt           time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time    `db:"updated_at" json:"updated_at"`
}

// NewVolunteerCalendar returns a calendar carrying the default settings.
func NewVolunteerCalendar(volunteerID string) VolunteerCalendar {
	return VolunteerCalendar{
		VolunteerID:         volunteerID,
		DefaultView:         CalendarViewWeek,
		WorkStartTime:       DefaultWorkStart,
		WorkEndTime:         DefaultWorkEnd,
		EmailReminders:      true,
		ReminderHoursBefore: DefaultReminderHoursBefore,
	}
}

// CalendarOwner is a calendar joined with its volunteer.
type CalendarOwner struct {
	VolunteerCalendar
	FirstName string   `db:"first_name" json:"first_name"`
	LastName  string   `db:"last_name" json:"last_name"`
	Email     string   `db:"email" json:"email"`
	Role      UserRole `db:"role" json:"role"`
}

// OwnerName returns the owning volunteer's display name.
func (c CalendarOwner) OwnerName() string {
	return Volunteer{FirstName: c.FirstName, LastName: c.LastName}.FullName()
}

// UpdateCalendarSettingsRequest changes display and reminder preferences.
type UpdateCalendarSettingsRequest struct {
	DefaultView         *CalendarView `json:"default_view" validate:"omitempty,oneof=day week month"`
	WorkStartTime       *TimeOfDay    `json:"work_start_time"`
	WorkEndTime         *TimeOfDay    `json:"work_end_time"`
	ShowWeekends        *bool         `json:"show_weekends"`
	EmailReminders      *bool         `json:"email_reminders"`
	ReminderHoursBefore *int          `json:"reminder_hours_before" validate:"omitempty,min=1,max=168"`
}

// CalendarSettings is the settings block of the calendar data payload.
type CalendarSettings struct {
	DefaultView   CalendarView `json:"default_view"`
	WorkStartTime TimeOfDay    `json:"work_start_time"`
	WorkEndTime   TimeOfDay    `json:"work_end_time"`
	ShowWeekends  bool         `json:"show_weekends"`
}

// Settings extracts the display settings.
func (c VolunteerCalendar) Settings() CalendarSettings {
	return CalendarSettings{
		DefaultView:   c.DefaultView,
		WorkStartTime: c.WorkStartTime,
		WorkEndTime:   c.WorkEndTime,
		ShowWeekends:  c.ShowWeekends,
	}
}
