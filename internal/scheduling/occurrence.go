package scheduling

import (
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/ona-asso/ona-api/internal/models"
)

// Occurrence is one dated instance of an availability slot.
type Occurrence struct {
	Interval
	SlotID          string               `json:"slot_id"`
	CalendarID      string               `json:"calendar_id"`
	SlotType        models.SlotType      `json:"slot_type"`
	Title           string               `json:"title"`
	IsBookable      bool                 `json:"is_bookable"`
	MaxAppointments int                  `json:"max_appointments"`
	Exception       models.ExceptionType `json:"exception,omitempty"`
	OriginalDate    *models.Date         `json:"original_date,omitempty"`
}

var rruleWeekdays = [...]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// OccurrenceDates lists the dates in [from, to] on which slot is scheduled,
// before exceptions are applied.
//
// Recurring slots are phased on the first matching weekday on or after
// valid_from, so a biweekly slot yields the same weeks whatever window is
// queried. Monthly slots repeat on that anchor's day of month, clamped to the
// last day of shorter months, and ignore the weekday after anchoring.
func OccurrenceDates(slot models.AvailabilitySlot, from, to models.Date) []models.Date {
	if from.After(to) {
		return nil
	}

	switch slot.RecurrenceType {
	case models.RecurrenceNone:
		if slot.SpecificDate == nil || !slot.SpecificDate.Between(from, to) {
			return nil
		}
		return []models.Date{*slot.SpecificDate}
	case models.RecurrenceWeekly, models.RecurrenceBiweekly, models.RecurrenceMonthly:
	default:
		return nil
	}

	if slot.Weekday == nil || !slot.Weekday.Valid() {
		return nil
	}

	lower := from
	if slot.ValidFrom.After(lower) {
		lower = slot.ValidFrom
	}
	upper := to
	if slot.ValidUntil != nil && slot.ValidUntil.Before(upper) {
		upper = *slot.ValidUntil
	}
	if lower.After(upper) {
		return nil
	}

	anchor := firstOnOrAfter(slot.ValidFrom, *slot.Weekday)
	if anchor.After(upper) {
		return nil
	}

	switch slot.RecurrenceType {
	case models.RecurrenceMonthly:
		return monthlyDates(anchor, lower, upper)
	case models.RecurrenceBiweekly:
		return weeklyDates(anchor, *slot.Weekday, 2, lower, upper)
	default:
		return weeklyDates(anchor, *slot.Weekday, 1, lower, upper)
	}
}

// IsOccurrence reports whether slot is scheduled on date, ignoring exceptions.
func IsOccurrence(slot models.AvailabilitySlot, date models.Date) bool {
	return len(OccurrenceDates(slot, date, date)) > 0
}

// Expand produces the occurrences of an active slot in [from, to] with its
// exceptions applied. A cancelled occurrence disappears, a modified one takes
// the new times and a moved one appears on its new date, including when the
// original date lies outside the window.
func Expand(slot models.AvailabilitySlot, exceptions []models.AvailabilityException, from, to models.Date) []Occurrence {
	if !slot.IsActive || from.After(to) {
		return nil
	}

	byDate := make(map[string]models.AvailabilityException, len(exceptions))
	for _, exc := range exceptions {
		if exc.SlotID != "" && exc.SlotID != slot.ID {
			continue
		}
		byDate[exc.ExceptionDate.String()] = exc
	}

	var out []Occurrence
	for _, date := range OccurrenceDates(slot, from, to) {
		occ := newOccurrence(slot, date)
		exc, ok := byDate[date.String()]
		if !ok {
			out = append(out, occ)
			continue
		}
		if applied, keep := applyException(occ, exc); keep && applied.Date.Between(from, to) {
			out = append(out, applied)
		}
	}

	for _, exc := range byDate {
		if exc.ExceptionType != models.ExceptionMoved || exc.NewDate == nil {
			continue
		}
		if exc.ExceptionDate.Between(from, to) || !exc.NewDate.Between(from, to) {
			continue
		}
		if !IsOccurrence(slot, exc.ExceptionDate) {
			continue
		}
		if applied, keep := applyException(newOccurrence(slot, exc.ExceptionDate), exc); keep {
			out = append(out, applied)
		}
	}

	SortOccurrences(out)
	return out
}

// ExpandAll expands every slot with the exceptions keyed by slot id.
func ExpandAll(slots []models.AvailabilitySlot, exceptions map[string][]models.AvailabilityException, from, to models.Date) []Occurrence {
	var out []Occurrence
	for _, slot := range slots {
		out = append(out, Expand(slot, exceptions[slot.ID], from, to)...)
	}
	SortOccurrences(out)
	return out
}

// SortOccurrences orders by date, start, end then slot id.
func SortOccurrences(occurrences []Occurrence) {
	sort.SliceStable(occurrences, func(i, j int) bool {
		a, b := occurrences[i], occurrences[j]
		if lessInterval(a.Interval, b.Interval) {
			return true
		}
		if lessInterval(b.Interval, a.Interval) {
			return false
		}
		return a.SlotID < b.SlotID
	})
}

func newOccurrence(slot models.AvailabilitySlot, date models.Date) Occurrence {
	return Occurrence{
		Interval:        Interval{Date: date, Start: slot.StartTime, End: slot.EndTime},
		SlotID:          slot.ID,
		CalendarID:      slot.CalendarID,
		SlotType:        slot.SlotType,
		Title:           slot.Title,
		IsBookable:      slot.IsBookable,
		MaxAppointments: slot.MaxAppointments,
	}
}

func applyException(occ Occurrence, exc models.AvailabilityException) (Occurrence, bool) {
	switch exc.ExceptionType {
	case models.ExceptionCancelled:
		return occ, false
	case models.ExceptionModified:
		if exc.NewStartTime != nil {
			occ.Start = *exc.NewStartTime
		}
		if exc.NewEndTime != nil {
			occ.End = *exc.NewEndTime
		}
	case models.ExceptionMoved:
		if exc.NewDate == nil {
			return occ, false
		}
		original := occ.Date
		occ.OriginalDate = &original
		occ.Date = *exc.NewDate
		if exc.NewStartTime != nil {
			occ.Start = *exc.NewStartTime
		}
		if exc.NewEndTime != nil {
			occ.End = *exc.NewEndTime
		}
	default:
		return occ, true
	}
	if !occ.Valid() {
		return occ, false
	}
	occ.Exception = exc.ExceptionType
	return occ, true
}

func firstOnOrAfter(d models.Date, wd models.Weekday) models.Date {
	delta := (int(wd) - int(d.Weekday()) + 7) % 7
	return d.AddDays(delta)
}

func daysBetween(a, b models.Date) int {
	return int(b.Sub(a.Time) / (24 * time.Hour))
}

func weeklyDates(anchor models.Date, wd models.Weekday, interval int, lower, upper models.Date) []models.Date {
	// fast-forward whole periods so the rule does not iterate from a distant valid_from
	period := 7 * interval
	if anchor.Before(lower) {
		anchor = anchor.AddDays(daysBetween(anchor, lower) / period * period)
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Interval:  interval,
		Dtstart:   anchor.Time,
		Until:     upper.Time,
		Byweekday: []rrule.Weekday{rruleWeekdays[wd]},
	})
	if err != nil {
		return nil
	}

	times := rule.Between(lower.Time, upper.Time, true)
	dates := make([]models.Date, 0, len(times))
	for _, t := range times {
		dates = append(dates, models.DateOf(t))
	}
	return dates
}

func monthlyDates(anchor, lower, upper models.Date) []models.Date {
	k := 0
	if anchor.Before(lower) {
		k = monthsBetween(anchor, lower) - 1
		if k < 0 {
			k = 0
		}
	}

	var dates []models.Date
	for ; ; k++ {
		d := addMonthsClamped(anchor, k)
		if d.After(upper) {
			break
		}
		if !d.Before(lower) {
			dates = append(dates, d)
		}
	}
	return dates
}

func monthsBetween(a, b models.Date) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

func addMonthsClamped(d models.Date, months int) models.Date {
	first := time.Date(d.Year(), d.Month()+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	day := d.Day()
	if day > last {
		day = last
	}
	return models.NewDate(first.Year(), first.Month(), day)
}
