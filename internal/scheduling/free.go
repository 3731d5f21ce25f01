package scheduling

import (
	"sort"
	"time"

	"github.com/ona-asso/ona-api/internal/models"
)

// MinFreeDuration is the shortest free interval worth offering.
const MinFreeDuration = 30 * time.Minute

// FreeInterval is the unbooked part of an availability occurrence.
type FreeInterval struct {
	Interval
	SlotID     string `json:"slot_id"`
	CalendarID string `json:"calendar_id"`
	Title      string `json:"title"`
	IsBookable bool   `json:"is_bookable"`
}

// Subtract removes every blocker from base, one blocker at a time. Each pass
// keeps disjoint pieces and splits overlapped ones into their uncovered
// before and after parts.
func Subtract(base Interval, blockers []Interval) []Interval {
	current := []Interval{base}
	for _, b := range blockers {
		if !b.Valid() || !b.Date.Equal(base.Date) {
			continue
		}
		next := make([]Interval, 0, len(current)+1)
		for _, iv := range current {
			if b.End <= iv.Start || b.Start >= iv.End {
				next = append(next, iv)
				continue
			}
			if b.Start > iv.Start {
				next = append(next, Interval{Date: iv.Date, Start: iv.Start, End: b.Start})
			}
			if b.End < iv.End {
				next = append(next, Interval{Date: iv.Date, Start: b.End, End: iv.End})
			}
		}
		current = next
	}
	return current
}

// FreeIntervals computes the free pieces of each availability occurrence.
// Appointments that still occupy their slot are subtracted, as are busy and
// unavailable occurrences of the same day. Pieces shorter than minDuration
// are dropped. Callers pass the occurrences and appointments of one calendar.
func FreeIntervals(occurrences []Occurrence, appointments []models.Appointment, minDuration time.Duration) []FreeInterval {
	blockers := make([]Interval, 0, len(appointments))
	for _, a := range appointments {
		if !a.Status.OccupiesSlot() {
			continue
		}
		blockers = append(blockers, AppointmentInterval(a))
	}
	for _, occ := range occurrences {
		if occ.SlotType == models.SlotBusy || occ.SlotType == models.SlotUnavailable {
			blockers = append(blockers, occ.Interval)
		}
	}

	var out []FreeInterval
	for _, occ := range occurrences {
		if occ.SlotType != models.SlotAvailability {
			continue
		}
		for _, piece := range Subtract(occ.Interval, blockers) {
			if piece.Duration() < minDuration {
				continue
			}
			out = append(out, FreeInterval{
				Interval:   piece,
				SlotID:     occ.SlotID,
				CalendarID: occ.CalendarID,
				Title:      occ.Title,
				IsBookable: occ.IsBookable,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return lessInterval(out[i].Interval, out[j].Interval)
	})
	return out
}

// DropElapsed removes intervals on past dates and today's intervals whose end
// has already passed. now is expected in the association's time zone.
func DropElapsed(intervals []FreeInterval, now time.Time) []FreeInterval {
	today := models.DateOf(now)
	clock := models.TimeOfDayOf(now)
	out := make([]FreeInterval, 0, len(intervals))
	for _, iv := range intervals {
		switch {
		case iv.Date.After(today):
			out = append(out, iv)
		case iv.Date.Equal(today) && iv.End > clock:
			out = append(out, iv)
		}
	}
	return out
}

// TotalDuration sums the length of intervals.
func TotalDuration(intervals []FreeInterval) time.Duration {
	var total time.Duration
	for _, iv := range intervals {
		total += iv.Duration()
	}
	return total
}
