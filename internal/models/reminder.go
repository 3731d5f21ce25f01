package models

import "time"

// ReminderCandidate is an open appointment whose volunteer asked for email reminders.
type ReminderCandidate struct {
	Appointment
	ReminderHoursBefore int    `db:"reminder_hours_before" json:"reminder_hours_before"`
	VolunteerEmail      string `db:"volunteer_email" json:"volunteer_email"`
	VolunteerFirstName  string `db:"volunteer_first_name" json:"volunteer_first_name"`
	VolunteerLastName   string `db:"volunteer_last_name" json:"volunteer_last_name"`
}

// StartsAt returns the appointment start in loc.
func (r ReminderCandidate) StartsAt(loc *time.Location) time.Time {
	return r.StartTime.On(r.AppointmentDate, loc)
}

// Due reports whether the reminder window has opened at now without the appointment having started.
func (r ReminderCandidate) Due(now time.Time, loc *time.Location) bool {
	start := r.StartsAt(loc)
	if !now.Before(start) {
		return false
	}
	return !now.Before(start.Add(-time.Duration(r.ReminderHoursBefore) * time.Hour))
}
