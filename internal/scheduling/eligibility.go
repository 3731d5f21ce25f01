package scheduling

import (
	"sort"
	"strings"

	"github.com/ona-asso/ona-api/internal/models"
)

// CalendarSchedule gathers what eligibility needs to know about one calendar.
type CalendarSchedule struct {
	Owner        models.CalendarOwner
	Occurrences  []Occurrence
	Appointments []models.Appointment
}

// Eligibility partitions volunteers for a requested window.
type Eligibility struct {
	Available   []models.CalendarOwner `json:"available"`
	Unavailable []models.CalendarOwner `json:"unavailable"`
}

// IsAvailable reports whether an availability occurrence fully contains window,
// no busy or unavailable occurrence overlaps it and no appointment overlaps it.
func IsAvailable(window Interval, occurrences []Occurrence, appointments []models.Appointment) bool {
	contained := false
	for _, occ := range occurrences {
		switch occ.SlotType {
		case models.SlotAvailability:
			if occ.Contains(window) {
				contained = true
			}
		case models.SlotBusy, models.SlotUnavailable:
			if occ.Overlaps(window) {
				return false
			}
		}
	}
	if !contained {
		return false
	}
	return len(FindConflicts(window, "", appointments)) == 0
}

// PartitionVolunteers splits calendars into available and unavailable owners,
// both ordered by last name then first name. Governance volunteers are skipped.
func PartitionVolunteers(window Interval, schedules []CalendarSchedule) Eligibility {
	sorted := make([]CalendarSchedule, 0, len(schedules))
	for _, s := range schedules {
		if s.Owner.Role.IsGovernance() {
			continue
		}
		sorted = append(sorted, s)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return lessOwner(sorted[i].Owner, sorted[j].Owner)
	})

	result := Eligibility{
		Available:   []models.CalendarOwner{},
		Unavailable: []models.CalendarOwner{},
	}
	for _, s := range sorted {
		if IsAvailable(window, s.Occurrences, s.Appointments) {
			result.Available = append(result.Available, s.Owner)
			continue
		}
		result.Unavailable = append(result.Unavailable, s.Owner)
	}
	return result
}

func lessOwner(a, b models.CalendarOwner) bool {
	al, bl := strings.ToLower(a.LastName), strings.ToLower(b.LastName)
	if al != bl {
		return al < bl
	}
	return strings.ToLower(a.FirstName) < strings.ToLower(b.FirstName)
}
