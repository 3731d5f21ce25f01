package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ona-asso/ona-api/internal/authz"
	"github.com/ona-asso/ona-api/internal/models"
	"github.com/ona-asso/ona-api/internal/repository"
	"github.com/ona-asso/ona-api/internal/scheduling"
	appErrors "github.com/ona-asso/ona-api/pkg/errors"
)

// Conflict reasons reported in metrics.
const (
	conflictOverlap       = "overlap"
	conflictSlotFull      = "slot_full"
	conflictOutsideSlot   = "outside_slot"
	conflictSerialization = "serialization"
)

type appointmentRepository interface {
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	FindDetail(ctx context.Context, id string) (*models.AppointmentDetail, error)
	ListForCalendarDate(ctx context.Context, exec sqlx.ExtContext, calendarID string, date models.Date) ([]models.Appointment, error)
	CountActiveForSlot(ctx context.Context, exec sqlx.ExtContext, slotID string, date models.Date, excludeID string) (int, error)
	Create(ctx context.Context, exec sqlx.ExtContext, appointment *models.Appointment) error
	Update(ctx context.Context, exec sqlx.ExtContext, appointment *models.Appointment) error
	UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus, completionNotes *string) error
	Delete(ctx context.Context, id string) error
}

type bookingCalendarRepository interface {
	FindOwner(ctx context.Context, id string) (*models.CalendarOwner, error)
	LockForBooking(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type bookingSlotRepository interface {
	FindByID(ctx context.Context, id string) (*models.AvailabilitySlot, error)
	ListExceptions(ctx context.Context, exec sqlx.ExtContext, slotIDs []string, from, to models.Date) ([]models.AvailabilityException, error)
}

type beneficiaryChecker interface {
	Exists(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error)
}

// AppointmentService books, edits and moves appointments through their lifecycle.
type AppointmentService struct {
	appointments  appointmentRepository
	calendars     bookingCalendarRepository
	slots         bookingSlotRepository
	beneficiaries beneficiaryChecker
	tx            txProvider
	cache         *CacheService
	metrics       *MetricsService
	config        SchedulingConfig
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewAppointmentService constructs an AppointmentService.
func NewAppointmentService(
	appointments appointmentRepository,
	calendars bookingCalendarRepository,
	slots bookingSlotRepository,
	beneficiaries beneficiaryChecker,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	config SchedulingConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *AppointmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppointmentService{
		appointments:  appointments,
		calendars:     calendars,
		slots:         slots,
		beneficiaries: beneficiaries,
		tx:            tx,
		cache:         cache,
		metrics:       metrics,
		config:        config.withDefaults(),
		validator:     validate,
		logger:        logger,
	}
}

// List returns appointments ordered by date and start time.
func (s *AppointmentService) List(ctx context.Context, principal authz.Principal, filter models.AppointmentFilter) ([]models.AppointmentDetail, *models.Pagination, error) {
	if err := authz.Authorize(principal, authz.ActionRead, authz.Resource{}); err != nil {
		return nil, nil, err
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return nil, nil, appErrors.Validation("end", "end date must not be before start date")
	}
	items, total, err := s.appointments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}
	if items == nil {
		items = []models.AppointmentDetail{}
	}
	page, size := normalizePage(filter.Page, filter.PageSize, 50, 200)
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one appointment with display names.
func (s *AppointmentService) Get(ctx context.Context, principal authz.Principal, id string) (*models.AppointmentDetail, error) {
	if err := authz.Authorize(principal, authz.ActionRead, authz.Resource{}); err != nil {
		return nil, err
	}
	detail, err := s.appointments.FindDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	return detail, nil
}

// Create books a new appointment. Appointments without a calendar are orphans
// and skip the conflict check.
func (s *AppointmentService) Create(ctx context.Context, principal authz.Principal, req models.AppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidator(err, "invalid appointment payload")
	}
	appointment := &models.Appointment{Status: models.AppointmentScheduled}
	if principal.VolunteerID != "" {
		createdBy := principal.VolunteerID
		appointment.CreatedBy = &createdBy
	}
	applyAppointmentRequest(appointment, req)

	if err := s.book(ctx, principal, appointment, nil, true); err != nil {
		return nil, err
	}
	s.metrics.RecordAppointmentWrite("create")
	s.logger.Info("appointment booked",
		zap.String("appointment_id", appointment.ID),
		zap.String("date", appointment.AppointmentDate.String()),
		zap.Bool("orphan", appointment.IsOrphan()),
	)
	return appointment, nil
}

// Update edits an appointment. Rescheduling a confirmed appointment sends it back to SCHEDULED.
func (s *AppointmentService) Update(ctx context.Context, principal authz.Principal, id string, req models.AppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidator(err, "invalid appointment payload")
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeExisting(ctx, principal, current); err != nil {
		return nil, err
	}

	before := scheduling.AppointmentInterval(*current)
	updated := *current
	applyAppointmentRequest(&updated, req)
	updated.Status = scheduling.StatusAfterReschedule(current.Status, before, scheduling.AppointmentInterval(updated))
	if updated.Status != current.Status || !before.Date.Equal(updated.AppointmentDate) || before.Start != updated.StartTime {
		updated.ReminderSentAt = nil
	}

	if err := s.book(ctx, principal, &updated, current, false); err != nil {
		return nil, err
	}
	s.metrics.RecordAppointmentWrite("update")
	if updated.Status != current.Status {
		s.logger.Info("appointment rescheduled, confirmation reset",
			zap.String("appointment_id", id),
			zap.String("from", string(current.Status)),
			zap.String("to", string(updated.Status)),
		)
	}
	return &updated, nil
}

// UpdateStatus moves an appointment to another status.
func (s *AppointmentService) UpdateStatus(ctx context.Context, principal authz.Principal, id string, req models.UpdateStatusRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidator(err, "invalid status payload")
	}
	appointment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeExisting(ctx, principal, appointment); err != nil {
		return nil, err
	}
	if err := scheduling.ValidateTransition(appointment.Status, req.Status, s.config.StrictStatus); err != nil {
		return nil, appErrors.Validation("status", err.Error())
	}

	if err := s.appointments.UpdateStatus(ctx, id, req.Status, req.CompletionNotes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment status")
	}
	appointment.Status = req.Status
	if req.CompletionNotes != nil {
		appointment.CompletionNotes = *req.CompletionNotes
	}
	s.invalidate(ctx, appointment.CalendarID)
	return appointment, nil
}

// Delete removes an appointment.
func (s *AppointmentService) Delete(ctx context.Context, principal authz.Principal, id string) error {
	appointment, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeExisting(ctx, principal, appointment); err != nil {
		return err
	}
	if err := s.appointments.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete appointment")
	}
	s.invalidate(ctx, appointment.CalendarID)
	return nil
}

// book validates and persists appointment. previous is nil on creation.
func (s *AppointmentService) book(ctx context.Context, principal authz.Principal, appointment *models.Appointment, previous *models.Appointment, isNew bool) (err error) {
	window := scheduling.AppointmentInterval(*appointment)
	if verr := scheduling.ValidateWindow(window, isNew, s.config.today()); verr != nil {
		return windowError(verr)
	}

	var slot *models.AvailabilitySlot
	if appointment.SlotID != nil && *appointment.SlotID != "" {
		if slot, err = s.loadSlot(ctx, *appointment.SlotID); err != nil {
			return err
		}
		if appointment.IsOrphan() {
			calendarID := slot.CalendarID
			appointment.CalendarID = &calendarID
		} else if *appointment.CalendarID != slot.CalendarID {
			return appErrors.Validation("slot_id", "slot does not belong to the appointment's calendar")
		}
	} else {
		appointment.SlotID = nil
	}

	owner, err := s.authorizeTarget(ctx, principal, appointment, previous)
	if err != nil {
		return err
	}

	exists, err := s.beneficiaries.Exists(ctx, nil, appointment.BeneficiaryID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load beneficiary")
	}
	if !exists {
		return appErrors.Validation("beneficiary_id", "beneficiary not found")
	}

	tx, err := s.tx.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	excludeID := ""
	if previous != nil {
		excludeID = previous.ID
	}

	if owner != nil {
		if err = s.checkCalendar(ctx, tx, owner, appointment, window, excludeID); err != nil {
			return err
		}
	}
	if slot != nil {
		if err = s.checkSlot(ctx, tx, slot, window, excludeID); err != nil {
			return err
		}
	}

	if previous == nil {
		err = s.appointments.Create(ctx, tx, appointment)
	} else {
		err = s.appointments.Update(ctx, tx, appointment)
	}
	if err != nil {
		err = s.writeError(err, previous == nil)
		return err
	}
	if err = tx.Commit(); err != nil {
		err = s.writeError(err, previous == nil)
		return err
	}

	s.invalidate(ctx, appointment.CalendarID)
	if previous != nil && !sameCalendar(previous.CalendarID, appointment.CalendarID) {
		s.invalidate(ctx, previous.CalendarID)
	}
	return nil
}

func (s *AppointmentService) checkCalendar(ctx context.Context, tx sqlx.ExtContext, owner *models.CalendarOwner, appointment *models.Appointment, window scheduling.Interval, excludeID string) error {
	if err := s.calendars.LockForBooking(ctx, tx, owner.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "calendar not found")
		}
		return s.writeError(err, false)
	}
	existing, err := s.appointments.ListForCalendarDate(ctx, tx, owner.ID, appointment.AppointmentDate)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointments")
	}
	conflicts := scheduling.FindConflicts(window, excludeID, existing)
	if len(conflicts) == 0 {
		return nil
	}
	s.metrics.RecordBookingConflict(conflictOverlap)
	return conflictError(owner, conflicts)
}

func (s *AppointmentService) checkSlot(ctx context.Context, tx sqlx.ExtContext, slot *models.AvailabilitySlot, window scheduling.Interval, excludeID string) error {
	exceptions, err := s.slots.ListExceptions(ctx, tx, []string{slot.ID}, window.Date, window.Date)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot exceptions")
	}
	booked, err := s.appointments.CountActiveForSlot(ctx, tx, slot.ID, window.Date, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count slot bookings")
	}
	occurrences := scheduling.Expand(*slot, exceptions, window.Date, window.Date)
	switch err := scheduling.CheckSlotBooking(occurrences, slot.ID, window, booked); {
	case err == nil:
		return nil
	case errors.Is(err, scheduling.ErrSlotFull):
		s.metrics.RecordBookingConflict(conflictSlotFull)
		return appErrors.Clone(appErrors.ErrConflict, err.Error())
	default:
		s.metrics.RecordBookingConflict(conflictOutsideSlot)
		return appErrors.Validation("slot_id", err.Error())
	}
}

// authorizeTarget checks write access on the calendar the appointment lands on
// and returns its owner, nil for orphans.
func (s *AppointmentService) authorizeTarget(ctx context.Context, principal authz.Principal, appointment *models.Appointment, previous *models.Appointment) (*models.CalendarOwner, error) {
	if appointment.IsOrphan() {
		appointment.CalendarID = nil
		resource := authz.Resource{CreatedBy: principal.VolunteerID}
		if previous != nil {
			resource.CreatedBy = stringValue(previous.CreatedBy)
		}
		if err := authz.Authorize(principal, authz.ActionWrite, resource); err != nil {
			return nil, err
		}
		return nil, nil
	}

	owner, err := s.calendars.FindOwner(ctx, *appointment.CalendarID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Validation("calendar_id", "calendar not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar")
	}
	resource := authz.Resource{OwnerVolunteerID: owner.VolunteerID}
	if previous != nil && sameCalendar(previous.CalendarID, appointment.CalendarID) {
		resource.CreatedBy = stringValue(previous.CreatedBy)
	}
	if err := authz.Authorize(principal, authz.ActionWrite, resource); err != nil {
		return nil, err
	}
	if !authz.CanOwnCalendar(owner.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "governance volunteers cannot hold appointments")
	}
	return owner, nil
}

// authorizeExisting checks write access on an appointment as currently stored.
func (s *AppointmentService) authorizeExisting(ctx context.Context, principal authz.Principal, appointment *models.Appointment) error {
	resource := authz.Resource{CreatedBy: stringValue(appointment.CreatedBy)}
	if !appointment.IsOrphan() {
		owner, err := s.calendars.FindOwner(ctx, *appointment.CalendarID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar")
		}
		if owner != nil {
			resource.OwnerVolunteerID = owner.VolunteerID
		}
	}
	return authz.Authorize(principal, authz.ActionWrite, resource)
}

func (s *AppointmentService) load(ctx context.Context, id string) (*models.Appointment, error) {
	appointment, err := s.appointments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	return appointment, nil
}

func (s *AppointmentService) loadSlot(ctx context.Context, id string) (*models.AvailabilitySlot, error) {
	slot, err := s.slots.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Validation("slot_id", "slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot")
	}
	return slot, nil
}

func (s *AppointmentService) writeError(err error, create bool) error {
	if repository.IsSerializationFailure(err) {
		s.metrics.RecordBookingConflict(conflictSerialization)
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "the calendar changed while booking, please retry")
	}
	if repository.IsForeignKeyViolation(err) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "referenced calendar, slot or beneficiary no longer exists")
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
	}
	if create {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create appointment")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment")
}

func (s *AppointmentService) invalidate(ctx context.Context, calendarID *string) {
	if calendarID != nil {
		s.cache.InvalidateCalendars(ctx, *calendarID)
	}
}

func applyAppointmentRequest(appointment *models.Appointment, req models.AppointmentRequest) {
	appointment.CalendarID = req.CalendarID
	if appointment.CalendarID != nil && *appointment.CalendarID == "" {
		appointment.CalendarID = nil
	}
	appointment.BeneficiaryID = req.BeneficiaryID
	appointment.AppointmentDate = req.AppointmentDate
	appointment.StartTime = req.StartTime
	appointment.EndTime = req.EndTime
	appointment.AppointmentType = req.AppointmentType
	appointment.Title = req.Title
	appointment.Description = req.Description
	appointment.Location = req.Location
	appointment.PreparationNotes = req.PreparationNotes
	appointment.CompletionNotes = req.CompletionNotes
	appointment.SlotID = req.SlotID
}

func windowError(err error) error {
	switch {
	case errors.Is(err, scheduling.ErrPastDate):
		return appErrors.Validation("appointment_date", err.Error())
	default:
		return appErrors.Validation("end_time", err.Error())
	}
}

func conflictError(owner *models.CalendarOwner, conflicts []models.Appointment) error {
	details := &models.AppointmentConflictError{
		Type:      "appointment_overlap",
		Volunteer: owner.OwnerName(),
	}
	for _, c := range conflicts {
		details.Conflicts = append(details.Conflicts, models.AppointmentConflict{
			AppointmentID: c.ID,
			Date:          c.AppointmentDate,
			StartTime:     c.StartTime,
			EndTime:       c.EndTime,
			Title:         c.Title,
		})
	}
	first := conflicts[0]
	details.Message = fmt.Sprintf("%s already has an appointment from %s to %s on %s",
		details.Volunteer, first.StartTime, first.EndTime, first.AppointmentDate)

	appErr := appErrors.Clone(appErrors.ErrConflict, details.Message)
	appErr.Details = details
	return appErr
}

func sameCalendar(a, b *string) bool {
	return stringValue(a) == stringValue(b)
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
