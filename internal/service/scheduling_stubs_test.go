package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/ona-asso/ona-api/internal/authz"
	"github.com/ona-asso/ona-api/internal/models"
)

var (
	staffPrincipal      = authz.Principal{UserID: "u-admin", VolunteerID: "v-admin", Role: models.RoleAdmin}
	adaPrincipal        = authz.Principal{UserID: "u-ada", VolunteerID: "v-ada", Role: models.RoleVolunteerInterview}
	bobPrincipal        = authz.Principal{UserID: "u-bob", VolunteerID: "v-bob", Role: models.RoleVolunteerInterview}
	governancePrincipal = authz.Principal{UserID: "u-gov", VolunteerID: "v-gov", Role: models.RoleVolunteerGovernance}
)

// fixedNow is Monday 8 January 2024, 09:00 UTC.
func fixedNow() time.Time {
	return time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
}

func testSchedulingConfig() SchedulingConfig {
	return SchedulingConfig{Location: time.UTC, StrictStatus: true, Now: fixedNow}
}

func strPtr(v string) *string { return &v }

func tod(raw string) models.TimeOfDay { return models.MustParseTimeOfDay(raw) }

func day(raw string) models.Date { return models.MustParseDate(raw) }

func weekdayPtr(w models.Weekday) *models.Weekday { return &w }

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func ownerFixture(calendarID, volunteerID, first, last string, role models.UserRole) models.CalendarOwner {
	calendar := models.NewVolunteerCalendar(volunteerID)
	calendar.ID = calendarID
	return models.CalendarOwner{VolunteerCalendar: calendar, FirstName: first, LastName: last, Email: first + "@ona.test", Role: role}
}

type stubCalendarRepo struct {
	owners  map[string]models.CalendarOwner
	locked  []string
	updated *models.VolunteerCalendar
	created []models.VolunteerCalendar
	deleted []string
	err     error
}

func newStubCalendarRepo(owners ...models.CalendarOwner) *stubCalendarRepo {
	repo := &stubCalendarRepo{owners: make(map[string]models.CalendarOwner)}
	for _, o := range owners {
		repo.owners[o.ID] = o
	}
	return repo
}

func (s *stubCalendarRepo) FindByID(ctx context.Context, id string) (*models.VolunteerCalendar, error) {
	if o, ok := s.owners[id]; ok {
		return &o.VolunteerCalendar, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubCalendarRepo) FindByVolunteer(ctx context.Context, exec sqlx.ExtContext, volunteerID string) (*models.VolunteerCalendar, error) {
	for _, o := range s.owners {
		if o.VolunteerID == volunteerID {
			calendar := o.VolunteerCalendar
			return &calendar, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubCalendarRepo) FindOwner(ctx context.Context, id string) (*models.CalendarOwner, error) {
	if s.err != nil {
		return nil, s.err
	}
	if o, ok := s.owners[id]; ok {
		return &o, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubCalendarRepo) ListOwners(ctx context.Context) ([]models.CalendarOwner, error) {
	var out []models.CalendarOwner
	for _, o := range s.owners {
		if o.Role.IsGovernance() {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *stubCalendarRepo) CreateIfMissing(ctx context.Context, exec sqlx.ExtContext, calendar *models.VolunteerCalendar) (*models.VolunteerCalendar, error) {
	for _, o := range s.owners {
		if o.VolunteerID == calendar.VolunteerID {
			existing := o.VolunteerCalendar
			return &existing, nil
		}
	}
	if calendar.ID == "" {
		calendar.ID = "cal-" + calendar.VolunteerID
	}
	s.created = append(s.created, *calendar)
	s.owners[calendar.ID] = models.CalendarOwner{VolunteerCalendar: *calendar}
	return calendar, nil
}

func (s *stubCalendarRepo) UpdateSettings(ctx context.Context, calendar *models.VolunteerCalendar) error {
	s.updated = calendar
	return nil
}

func (s *stubCalendarRepo) DeleteByVolunteer(ctx context.Context, exec sqlx.ExtContext, volunteerID string) error {
	s.deleted = append(s.deleted, volunteerID)
	for id, o := range s.owners {
		if o.VolunteerID == volunteerID {
			delete(s.owners, id)
		}
	}
	return nil
}

func (s *stubCalendarRepo) LockForBooking(ctx context.Context, exec sqlx.ExtContext, id string) error {
	s.locked = append(s.locked, id)
	return nil
}

type stubSlotRepo struct {
	slots      map[string]models.AvailabilitySlot
	exceptions []models.AvailabilityException
	created    *models.AvailabilitySlot
	createErr  error
}

func newStubSlotRepo(slots ...models.AvailabilitySlot) *stubSlotRepo {
	repo := &stubSlotRepo{slots: make(map[string]models.AvailabilitySlot)}
	for _, slot := range slots {
		repo.slots[slot.ID] = slot
	}
	return repo
}

func (s *stubSlotRepo) List(ctx context.Context, filter models.SlotFilter) ([]models.AvailabilitySlot, int, error) {
	var out []models.AvailabilitySlot
	for _, slot := range s.slots {
		if slot.CalendarID == filter.CalendarID {
			out = append(out, slot)
		}
	}
	return out, len(out), nil
}

func (s *stubSlotRepo) ListActiveByCalendars(ctx context.Context, exec sqlx.ExtContext, calendarIDs []string) ([]models.AvailabilitySlot, error) {
	wanted := make(map[string]bool, len(calendarIDs))
	for _, id := range calendarIDs {
		wanted[id] = true
	}
	var out []models.AvailabilitySlot
	for _, slot := range s.slots {
		if wanted[slot.CalendarID] && slot.IsActive {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (s *stubSlotRepo) FindByID(ctx context.Context, id string) (*models.AvailabilitySlot, error) {
	if slot, ok := s.slots[id]; ok {
		return &slot, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubSlotRepo) Create(ctx context.Context, slot *models.AvailabilitySlot) error {
	if s.createErr != nil {
		return s.createErr
	}
	if slot.ID == "" {
		slot.ID = "slot-new"
	}
	s.created = slot
	s.slots[slot.ID] = *slot
	return nil
}

func (s *stubSlotRepo) Update(ctx context.Context, slot *models.AvailabilitySlot) error {
	s.slots[slot.ID] = *slot
	return nil
}

func (s *stubSlotRepo) Delete(ctx context.Context, id string) error {
	if _, ok := s.slots[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.slots, id)
	return nil
}

func (s *stubSlotRepo) ListExceptions(ctx context.Context, exec sqlx.ExtContext, slotIDs []string, from, to models.Date) ([]models.AvailabilityException, error) {
	wanted := make(map[string]bool, len(slotIDs))
	for _, id := range slotIDs {
		wanted[id] = true
	}
	var out []models.AvailabilityException
	for _, exc := range s.exceptions {
		if wanted[exc.SlotID] {
			out = append(out, exc)
		}
	}
	return out, nil
}

func (s *stubSlotRepo) ListExceptionsBySlot(ctx context.Context, slotID string) ([]models.AvailabilityException, error) {
	return s.ListExceptions(ctx, nil, []string{slotID}, models.Date{}, models.Date{})
}

func (s *stubSlotRepo) FindException(ctx context.Context, id string) (*models.AvailabilityException, error) {
	for _, exc := range s.exceptions {
		if exc.ID == id {
			return &exc, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubSlotRepo) CreateException(ctx context.Context, exception *models.AvailabilityException) error {
	if s.createErr != nil {
		return s.createErr
	}
	if exception.ID == "" {
		exception.ID = "exc-new"
	}
	s.exceptions = append(s.exceptions, *exception)
	return nil
}

func (s *stubSlotRepo) DeleteException(ctx context.Context, id string) error {
	for i, exc := range s.exceptions {
		if exc.ID == id {
			s.exceptions = append(s.exceptions[:i], s.exceptions[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

type stubAppointmentRepo struct {
	appointments map[string]models.Appointment
	beneficiary  map[string]string
	slotBookings int
	created      *models.Appointment
	updated      *models.Appointment
	statusCalls  []models.AppointmentStatus
	deleted      []string
	candidates   []models.ReminderCandidate
	reminded     map[string]time.Time
	markErr      error
}

func newStubAppointmentRepo(appointments ...models.Appointment) *stubAppointmentRepo {
	repo := &stubAppointmentRepo{appointments: make(map[string]models.Appointment), reminded: make(map[string]time.Time)}
	for _, a := range appointments {
		repo.appointments[a.ID] = a
	}
	return repo
}

func (s *stubAppointmentRepo) List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, int, error) {
	var out []models.AppointmentDetail
	for _, a := range s.appointments {
		if filter.CalendarID != "" && (a.CalendarID == nil || *a.CalendarID != filter.CalendarID) {
			continue
		}
		out = append(out, models.AppointmentDetail{Appointment: a})
	}
	return out, len(out), nil
}

func (s *stubAppointmentRepo) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	if a, ok := s.appointments[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubAppointmentRepo) FindDetail(ctx context.Context, id string) (*models.AppointmentDetail, error) {
	if a, ok := s.appointments[id]; ok {
		return &models.AppointmentDetail{Appointment: a, BeneficiaryFirstName: "Jean", BeneficiaryLastName: "Valjean"}, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubAppointmentRepo) ListDetailsInRange(ctx context.Context, from, to models.Date) ([]models.AppointmentDetail, error) {
	var out []models.AppointmentDetail
	for _, a := range s.appointments {
		if a.AppointmentDate.Between(from, to) {
			out = append(out, models.AppointmentDetail{Appointment: a})
		}
	}
	return out, nil
}

func (s *stubAppointmentRepo) ListByCalendarsInRange(ctx context.Context, exec sqlx.ExtContext, calendarIDs []string, from, to models.Date) ([]models.Appointment, error) {
	wanted := make(map[string]bool, len(calendarIDs))
	for _, id := range calendarIDs {
		wanted[id] = true
	}
	var out []models.Appointment
	for _, a := range s.appointments {
		if a.CalendarID != nil && wanted[*a.CalendarID] && a.AppointmentDate.Between(from, to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubAppointmentRepo) ListForCalendarDate(ctx context.Context, exec sqlx.ExtContext, calendarID string, date models.Date) ([]models.Appointment, error) {
	return s.ListByCalendarsInRange(ctx, exec, []string{calendarID}, date, date)
}

func (s *stubAppointmentRepo) CountActiveForSlot(ctx context.Context, exec sqlx.ExtContext, slotID string, date models.Date, excludeID string) (int, error) {
	return s.slotBookings, nil
}

func (s *stubAppointmentRepo) Create(ctx context.Context, exec sqlx.ExtContext, appointment *models.Appointment) error {
	if appointment.ID == "" {
		appointment.ID = "appt-new"
	}
	s.created = appointment
	s.appointments[appointment.ID] = *appointment
	return nil
}

func (s *stubAppointmentRepo) Update(ctx context.Context, exec sqlx.ExtContext, appointment *models.Appointment) error {
	if _, ok := s.appointments[appointment.ID]; !ok {
		return sql.ErrNoRows
	}
	s.updated = appointment
	s.appointments[appointment.ID] = *appointment
	return nil
}

func (s *stubAppointmentRepo) UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus, completionNotes *string) error {
	a, ok := s.appointments[id]
	if !ok {
		return sql.ErrNoRows
	}
	a.Status = status
	s.appointments[id] = a
	s.statusCalls = append(s.statusCalls, status)
	return nil
}

func (s *stubAppointmentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := s.appointments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.appointments, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubAppointmentRepo) ListReminderCandidates(ctx context.Context, from, to models.Date) ([]models.ReminderCandidate, error) {
	return s.candidates, nil
}

func (s *stubAppointmentRepo) MarkReminderSent(ctx context.Context, id string, sentAt time.Time) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.reminded[id] = sentAt
	return nil
}

type stubBeneficiaries struct {
	known map[string]bool
}

func (s stubBeneficiaries) Exists(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error) {
	return s.known[id], nil
}
