package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ona-asso/ona-api/internal/authz"
	"github.com/ona-asso/ona-api/internal/models"
	"github.com/ona-asso/ona-api/internal/scheduling"
	appErrors "github.com/ona-asso/ona-api/pkg/errors"
)

type scheduleCalendarReader interface {
	FindOwner(ctx context.Context, id string) (*models.CalendarOwner, error)
	FindByVolunteer(ctx context.Context, exec sqlx.ExtContext, volunteerID string) (*models.VolunteerCalendar, error)
	ListOwners(ctx context.Context) ([]models.CalendarOwner, error)
}

type scheduleSlotReader interface {
	ListActiveByCalendars(ctx context.Context, exec sqlx.ExtContext, calendarIDs []string) ([]models.AvailabilitySlot, error)
	ListExceptions(ctx context.Context, exec sqlx.ExtContext, slotIDs []string, from, to models.Date) ([]models.AvailabilityException, error)
}

type scheduleAppointmentReader interface {
	ListByCalendarsInRange(ctx context.Context, exec sqlx.ExtContext, calendarIDs []string, from, to models.Date) ([]models.Appointment, error)
	ListDetailsInRange(ctx context.Context, from, to models.Date) ([]models.AppointmentDetail, error)
}

// CalendarData is the combined payload rendered by calendar views.
type CalendarData struct {
	CalendarID   string                  `json:"calendar_id"`
	VolunteerID  string                  `json:"volunteer_id"`
	Volunteer    string                  `json:"volunteer"`
	Settings     models.CalendarSettings `json:"settings"`
	Start        models.Date             `json:"start"`
	End          models.Date             `json:"end"`
	Occurrences  []scheduling.Occurrence `json:"occurrences"`
	Appointments []models.Appointment    `json:"appointments"`
}

// VolunteerDay is one volunteer's column in the team week.
type VolunteerDay struct {
	CalendarID    string                     `json:"calendar_id"`
	VolunteerID   string                     `json:"volunteer_id"`
	Volunteer     string                     `json:"volunteer"`
	FreeIntervals []scheduling.FreeInterval  `json:"free_intervals"`
	Appointments  []models.AppointmentDetail `json:"appointments"`
}

// WeekDay groups the planning of one day.
type WeekDay struct {
	Date               models.Date                `json:"date"`
	Weekday            models.Weekday             `json:"weekday"`
	Volunteers         []VolunteerDay             `json:"volunteers"`
	OrphanAppointments []models.AppointmentDetail `json:"orphan_appointments"`
}

// WeekStats summarises the appointments of a week.
type WeekStats struct {
	TotalHours          float64 `json:"total_hours"`
	Appointments        int     `json:"appointments"`
	OrphanAppointments  int     `json:"orphan_appointments"`
	UniqueBeneficiaries int     `json:"unique_beneficiaries"`
}

// WeekView is the team planning of an ISO week.
type WeekView struct {
	Start    models.Date `json:"week_start"`
	End      models.Date `json:"week_end"`
	Previous models.Date `json:"prev_week"`
	Next     models.Date `json:"next_week"`
	Days     []WeekDay   `json:"days"`
	Stats    WeekStats   `json:"stats"`
}

// QueryService answers the read side of the calendar: free time, eligibility and views.
type QueryService struct {
	calendars    scheduleCalendarReader
	slots        scheduleSlotReader
	appointments scheduleAppointmentReader
	cache        *CacheService
	metrics      *MetricsService
	config       SchedulingConfig
	logger       *zap.Logger
}

// NewQueryService constructs a QueryService.
func NewQueryService(
	calendars scheduleCalendarReader,
	slots scheduleSlotReader,
	appointments scheduleAppointmentReader,
	cache *CacheService,
	metrics *MetricsService,
	config SchedulingConfig,
	logger *zap.Logger,
) *QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{
		calendars:    calendars,
		slots:        slots,
		appointments: appointments,
		cache:        cache,
		metrics:      metrics,
		config:       config.withDefaults(),
		logger:       logger,
	}
}

// FreeSlots returns the bookable free intervals of a calendar in [from, to].
// An empty calendarID targets the principal's own calendar, or the one it acts as.
func (s *QueryService) FreeSlots(ctx context.Context, principal authz.Principal, calendarID string, from, to models.Date) ([]scheduling.FreeInterval, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	owner, err := s.resolveCalendar(ctx, principal, calendarID)
	if err != nil {
		return nil, err
	}
	schedules, err := s.loadSchedules(ctx, []models.CalendarOwner{*owner}, from, to)
	if err != nil {
		return nil, err
	}
	schedule := schedules[0]
	free := scheduling.FreeIntervals(schedule.Occurrences, schedule.Appointments, s.config.MinFreeDuration)
	free = scheduling.DropElapsed(free, s.config.now())
	if free == nil {
		free = []scheduling.FreeInterval{}
	}
	return free, nil
}

// CalendarAppointments lists the appointments of a calendar in [from, to].
func (s *QueryService) CalendarAppointments(ctx context.Context, principal authz.Principal, calendarID string, from, to models.Date) ([]models.Appointment, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	owner, err := s.resolveCalendar(ctx, principal, calendarID)
	if err != nil {
		return nil, err
	}
	items, err := s.appointments.ListByCalendarsInRange(ctx, nil, []string{owner.ID}, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}
	if items == nil {
		items = []models.Appointment{}
	}
	return items, nil
}

// AvailableVolunteers partitions volunteers by whether they can take the window.
func (s *QueryService) AvailableVolunteers(ctx context.Context, principal authz.Principal, window scheduling.Interval) (*scheduling.Eligibility, error) {
	if err := authz.Authorize(principal, authz.ActionRead, authz.Resource{}); err != nil {
		return nil, err
	}
	if !window.Valid() {
		return nil, appErrors.Validation("end_time", scheduling.ErrEndBeforeStart.Error())
	}
	owners, err := s.calendars.ListOwners(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list calendars")
	}
	schedules, err := s.loadSchedules(ctx, owners, window.Date, window.Date)
	if err != nil {
		return nil, err
	}
	result := scheduling.PartitionVolunteers(window, schedules)
	return &result, nil
}

// CalendarData returns settings, occurrences and appointments of a calendar
// for [from, to]. Payloads are cached until the calendar changes.
func (s *QueryService) CalendarData(ctx context.Context, principal authz.Principal, calendarID string, from, to models.Date) (*CalendarData, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	owner, err := s.resolveCalendar(ctx, principal, calendarID)
	if err != nil {
		return nil, err
	}

	key := CalendarDataKey(owner.ID, from, to)
	var cached CalendarData
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	schedules, err := s.loadSchedules(ctx, []models.CalendarOwner{*owner}, from, to)
	if err != nil {
		return nil, err
	}
	data := &CalendarData{
		CalendarID:   owner.ID,
		VolunteerID:  owner.VolunteerID,
		Volunteer:    owner.OwnerName(),
		Settings:     owner.Settings(),
		Start:        from,
		End:          to,
		Occurrences:  schedules[0].Occurrences,
		Appointments: schedules[0].Appointments,
	}
	if data.Occurrences == nil {
		data.Occurrences = []scheduling.Occurrence{}
	}
	if data.Appointments == nil {
		data.Appointments = []models.Appointment{}
	}
	_ = s.cache.Set(ctx, key, data, s.config.CacheTTL)
	return data, nil
}

// Week builds the team planning of the ISO week containing day. A nil day means this week.
func (s *QueryService) Week(ctx context.Context, principal authz.Principal, day *models.Date) (*WeekView, error) {
	if err := authz.Authorize(principal, authz.ActionRead, authz.Resource{}); err != nil {
		return nil, err
	}
	anchor := s.config.today()
	if day != nil {
		anchor = *day
	}
	start := anchor.AddDays(-int(anchor.Weekday()))
	end := start.AddDays(6)

	owners, err := s.calendars.ListOwners(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list calendars")
	}
	schedules, err := s.loadSchedules(ctx, owners, start, end)
	if err != nil {
		return nil, err
	}
	details, err := s.appointments.ListDetailsInRange(ctx, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}

	view := &WeekView{
		Start:    start,
		End:      end,
		Previous: start.AddDays(-7),
		Next:     start.AddDays(7),
		Days:     make([]WeekDay, 0, 7),
		Stats:    weekStats(details),
	}
	now := s.config.now()
	for i := 0; i < 7; i++ {
		date := start.AddDays(i)
		wd := WeekDay{
			Date:               date,
			Weekday:            date.Weekday(),
			Volunteers:         make([]VolunteerDay, 0, len(schedules)),
			OrphanAppointments: []models.AppointmentDetail{},
		}
		for _, d := range details {
			if d.IsOrphan() && d.AppointmentDate.Equal(date) {
				wd.OrphanAppointments = append(wd.OrphanAppointments, d)
			}
		}
		for _, schedule := range schedules {
			occurrences := occurrencesOn(schedule.Occurrences, date)
			appointments := appointmentsOn(schedule.Appointments, date)
			free := scheduling.DropElapsed(scheduling.FreeIntervals(occurrences, appointments, s.config.MinFreeDuration), now)
			if free == nil {
				free = []scheduling.FreeInterval{}
			}
			column := VolunteerDay{
				CalendarID:    schedule.Owner.ID,
				VolunteerID:   schedule.Owner.VolunteerID,
				Volunteer:     schedule.Owner.OwnerName(),
				FreeIntervals: free,
				Appointments:  []models.AppointmentDetail{},
			}
			for _, d := range details {
				if !d.IsOrphan() && *d.CalendarID == schedule.Owner.ID && d.AppointmentDate.Equal(date) {
					column.Appointments = append(column.Appointments, d)
				}
			}
			wd.Volunteers = append(wd.Volunteers, column)
		}
		view.Days = append(view.Days, wd)
	}
	return view, nil
}

// loadSchedules fetches slots, exceptions and appointments of owners in three
// queries and expands them per calendar, keeping the owners' order.
func (s *QueryService) loadSchedules(ctx context.Context, owners []models.CalendarOwner, from, to models.Date) ([]scheduling.CalendarSchedule, error) {
	if len(owners) == 0 {
		return []scheduling.CalendarSchedule{}, nil
	}
	calendarIDs := make([]string, 0, len(owners))
	for _, o := range owners {
		calendarIDs = append(calendarIDs, o.ID)
	}

	slots, err := s.slots.ListActiveByCalendars(ctx, nil, calendarIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slots")
	}
	slotIDs := make([]string, 0, len(slots))
	slotsByCalendar := make(map[string][]models.AvailabilitySlot, len(owners))
	for _, slot := range slots {
		slotIDs = append(slotIDs, slot.ID)
		slotsByCalendar[slot.CalendarID] = append(slotsByCalendar[slot.CalendarID], slot)
	}

	exceptions, err := s.slots.ListExceptions(ctx, nil, slotIDs, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot exceptions")
	}
	exceptionsBySlot := make(map[string][]models.AvailabilityException, len(exceptions))
	for _, exc := range exceptions {
		exceptionsBySlot[exc.SlotID] = append(exceptionsBySlot[exc.SlotID], exc)
	}

	appointments, err := s.appointments.ListByCalendarsInRange(ctx, nil, calendarIDs, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointments")
	}
	appointmentsByCalendar := make(map[string][]models.Appointment, len(owners))
	for _, a := range appointments {
		if a.CalendarID != nil {
			appointmentsByCalendar[*a.CalendarID] = append(appointmentsByCalendar[*a.CalendarID], a)
		}
	}

	started := time.Now()
	schedules := make([]scheduling.CalendarSchedule, 0, len(owners))
	for _, owner := range owners {
		schedules = append(schedules, scheduling.CalendarSchedule{
			Owner:        owner,
			Occurrences:  scheduling.ExpandAll(slotsByCalendar[owner.ID], exceptionsBySlot, from, to),
			Appointments: appointmentsByCalendar[owner.ID],
		})
	}
	s.metrics.ObserveExpansion(time.Since(started))
	return schedules, nil
}

// resolveCalendar loads the calendar a read targets and checks access.
func (s *QueryService) resolveCalendar(ctx context.Context, principal authz.Principal, calendarID string) (*models.CalendarOwner, error) {
	if err := authz.Authorize(principal, authz.ActionRead, authz.Resource{}); err != nil {
		return nil, err
	}
	if calendarID == "" {
		volunteerID, err := authz.TargetVolunteer(principal)
		if err != nil {
			return nil, err
		}
		if volunteerID == "" {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "calendar not found")
		}
		calendar, err := s.calendars.FindByVolunteer(ctx, nil, volunteerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "calendar not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar")
		}
		calendarID = calendar.ID
	}

	owner, err := s.calendars.FindOwner(ctx, calendarID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "calendar not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar")
	}
	return owner, nil
}

func occurrencesOn(occurrences []scheduling.Occurrence, date models.Date) []scheduling.Occurrence {
	var out []scheduling.Occurrence
	for _, occ := range occurrences {
		if occ.Date.Equal(date) {
			out = append(out, occ)
		}
	}
	return out
}

func appointmentsOn(appointments []models.Appointment, date models.Date) []models.Appointment {
	var out []models.Appointment
	for _, a := range appointments {
		if a.AppointmentDate.Equal(date) {
			out = append(out, a)
		}
	}
	return out
}

func weekStats(details []models.AppointmentDetail) WeekStats {
	var stats WeekStats
	var total time.Duration
	beneficiaries := make(map[string]struct{})
	for _, d := range details {
		if d.Status == models.AppointmentCancelled {
			continue
		}
		stats.Appointments++
		if d.IsOrphan() {
			stats.OrphanAppointments++
		}
		total += d.Duration()
		beneficiaries[d.BeneficiaryID] = struct{}{}
	}
	stats.TotalHours = math.Round(total.Hours()*10) / 10
	stats.UniqueBeneficiaries = len(beneficiaries)
	return stats
}
