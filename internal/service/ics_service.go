package service

import (
	"context"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/ona-asso/ona-api/internal/authz"
	"github.com/ona-asso/ona-api/internal/models"
	"github.com/ona-asso/ona-api/internal/scheduling"
)

const icsProductID = "-//ONA//Volunteer Calendar//FR"

type calendarDataSource interface {
	CalendarData(ctx context.Context, principal authz.Principal, calendarID string, from, to models.Date) (*CalendarData, error)
}

// ICSService renders calendars as iCalendar feeds.
type ICSService struct {
	source   calendarDataSource
	location *time.Location
	now      func() time.Time
}

// NewICSService constructs an ICSService.
func NewICSService(source calendarDataSource, config SchedulingConfig) *ICSService {
	config = config.withDefaults()
	return &ICSService{source: source, location: config.Location, now: config.Now}
}

// Export returns the feed of a calendar for [from, to] and its file name.
func (s *ICSService) Export(ctx context.Context, principal authz.Principal, calendarID string, from, to models.Date) ([]byte, string, error) {
	data, err := s.source.CalendarData(ctx, principal, calendarID, from, to)
	if err != nil {
		return nil, "", err
	}
	return []byte(s.Render(data)), fmt.Sprintf("calendar-%s.ics", data.CalendarID), nil
}

// Render serializes calendar data. Appointments become opaque events,
// availability occurrences transparent ones.
func (s *ICSService) Render(data *CalendarData) string {
	stamp := s.now().UTC()

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetXWRCalName(data.Volunteer)
	cal.SetXWRTimezone(s.location.String())

	for _, a := range data.Appointments {
		event := cal.AddEvent(fmt.Sprintf("appointment-%s@ona", a.ID))
		event.SetDtStampTime(stamp)
		event.SetCreatedTime(a.CreatedAt)
		event.SetModifiedAt(a.UpdatedAt)
		event.SetStartAt(a.StartTime.On(a.AppointmentDate, s.location))
		event.SetEndAt(a.EndTime.On(a.AppointmentDate, s.location))
		event.SetSummary(a.Title)
		if a.Location != "" {
			event.SetLocation(a.Location)
		}
		if a.Description != "" {
			event.SetDescription(a.Description)
		}
		event.SetStatus(appointmentICSStatus(a.Status))
		event.SetTimeTransparency(ical.TransparencyOpaque)
		event.AddProperty(ical.ComponentPropertyCategories, string(a.AppointmentType))
	}

	for _, occ := range data.Occurrences {
		event := cal.AddEvent(occurrenceUID(occ))
		event.SetDtStampTime(stamp)
		event.SetStartAt(occ.StartAt(s.location))
		event.SetEndAt(occ.EndAt(s.location))
		event.SetSummary(occurrenceSummary(occ))
		event.AddProperty(ical.ComponentPropertyCategories, string(occ.SlotType))
		if occ.SlotType == models.SlotAvailability {
			event.SetTimeTransparency(ical.TransparencyTransparent)
		} else {
			event.SetTimeTransparency(ical.TransparencyOpaque)
		}
	}

	return cal.Serialize()
}

func appointmentICSStatus(status models.AppointmentStatus) ical.ObjectStatus {
	switch status {
	case models.AppointmentScheduled:
		return ical.ObjectStatusTentative
	case models.AppointmentCancelled, models.AppointmentNoShow:
		return ical.ObjectStatusCancelled
	default:
		return ical.ObjectStatusConfirmed
	}
}

func occurrenceUID(occ scheduling.Occurrence) string {
	date := occ.Date
	if occ.OriginalDate != nil {
		date = *occ.OriginalDate
	}
	return fmt.Sprintf("slot-%s-%s@ona", occ.SlotID, date.Format("20060102"))
}

func occurrenceSummary(occ scheduling.Occurrence) string {
	label := "Disponible"
	switch occ.SlotType {
	case models.SlotBusy:
		label = "Occupé"
	case models.SlotUnavailable:
		label = "Indisponible"
	}
	if occ.Title == "" {
		return label
	}
	return label + " - " + occ.Title
}
