// Package scheduling holds the calendar engine: slot expansion, free/busy
// arithmetic, appointment conflicts, status transitions and volunteer
// eligibility. Everything here is pure and operates on models values.
package scheduling

import (
	"sort"
	"time"

	"github.com/ona-asso/ona-api/internal/models"
)

// Interval is a time range on a single civil date, half-open on its end.
type Interval struct {
	Date  models.Date      `json:"date"`
	Start models.TimeOfDay `json:"start_time"`
	End   models.TimeOfDay `json:"end_time"`
}

// NewInterval builds an Interval.
func NewInterval(date models.Date, start, end models.TimeOfDay) Interval {
	return Interval{Date: date, Start: start, End: end}
}

// Valid reports whether the interval is non-empty.
func (i Interval) Valid() bool {
	return i.End > i.Start
}

// Duration returns the interval length.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether both intervals share time on the same date.
// Back-to-back intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Date.Equal(o.Date) && o.Start < i.End && o.End > i.Start
}

// Contains reports whether o lies entirely within i.
func (i Interval) Contains(o Interval) bool {
	return i.Date.Equal(o.Date) && i.Start <= o.Start && o.End <= i.End
}

// StartAt returns the absolute start instant in loc.
func (i Interval) StartAt(loc *time.Location) time.Time {
	return i.Start.On(i.Date, loc)
}

// EndAt returns the absolute end instant in loc.
func (i Interval) EndAt(loc *time.Location) time.Time {
	return i.End.On(i.Date, loc)
}

// AppointmentInterval returns the time range booked by a.
func AppointmentInterval(a models.Appointment) Interval {
	return Interval{Date: a.AppointmentDate, Start: a.StartTime, End: a.EndTime}
}

func lessInterval(a, b Interval) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	return a.End < b.End
}

// SortIntervals orders by date then start then end.
func SortIntervals(intervals []Interval) {
	sort.SliceStable(intervals, func(i, j int) bool {
		return lessInterval(intervals[i], intervals[j])
	})
}
