package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ona-asso/ona-api/internal/authz"
	"github.com/ona-asso/ona-api/internal/models"
	"github.com/ona-asso/ona-api/internal/repository"
	"github.com/ona-asso/ona-api/internal/scheduling"
	appErrors "github.com/ona-asso/ona-api/pkg/errors"
)

// maxOccurrenceWindow bounds the range a single expansion request may cover.
const maxOccurrenceWindow = 366

type availabilityRepository interface {
	List(ctx context.Context, filter models.SlotFilter) ([]models.AvailabilitySlot, int, error)
	ListActiveByCalendars(ctx context.Context, exec sqlx.ExtContext, calendarIDs []string) ([]models.AvailabilitySlot, error)
	FindByID(ctx context.Context, id string) (*models.AvailabilitySlot, error)
	Create(ctx context.Context, slot *models.AvailabilitySlot) error
	Update(ctx context.Context, slot *models.AvailabilitySlot) error
	Delete(ctx context.Context, id string) error
	ListExceptions(ctx context.Context, exec sqlx.ExtContext, slotIDs []string, from, to models.Date) ([]models.AvailabilityException, error)
	ListExceptionsBySlot(ctx context.Context, slotID string) ([]models.AvailabilityException, error)
	FindException(ctx context.Context, id string) (*models.AvailabilityException, error)
	CreateException(ctx context.Context, exception *models.AvailabilityException) error
	DeleteException(ctx context.Context, id string) error
}

type calendarOwnerReader interface {
	FindOwner(ctx context.Context, id string) (*models.CalendarOwner, error)
}

type slotBookingCounter interface {
	CountActiveForSlot(ctx context.Context, exec sqlx.ExtContext, slotID string, date models.Date, excludeID string) (int, error)
}

// SlotBooking reports the booking state of a slot on one date.
type SlotBooking struct {
	Slot      models.AvailabilitySlot `json:"slot"`
	Date      models.Date             `json:"date"`
	Booked    int                     `json:"booked"`
	Available bool                    `json:"is_available_for_booking"`
}

// AvailabilityService manages slots and their exceptions.
type AvailabilityService struct {
	slots     availabilityRepository
	calendars calendarOwnerReader
	bookings  slotBookingCounter
	cache     *CacheService
	metrics   *MetricsService
	config    SchedulingConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs an AvailabilityService.
func NewAvailabilityService(
	slots availabilityRepository,
	calendars calendarOwnerReader,
	bookings slotBookingCounter,
	cache *CacheService,
	metrics *MetricsService,
	config SchedulingConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		slots:     slots,
		calendars: calendars,
		bookings:  bookings,
		cache:     cache,
		metrics:   metrics,
		config:    config.withDefaults(),
		validator: validate,
		logger:    logger,
	}
}

// ListSlots returns the slots of a calendar.
func (s *AvailabilityService) ListSlots(ctx context.Context, principal authz.Principal, calendarID string, filter models.SlotFilter) ([]models.AvailabilitySlot, *models.Pagination, error) {
	owner, err := s.loadCalendar(ctx, calendarID)
	if err != nil {
		return nil, nil, err
	}
	if err := authz.Authorize(principal, authz.ActionRead, authz.Resource{OwnerVolunteerID: owner.VolunteerID}); err != nil {
		return nil, nil, err
	}
	filter.CalendarID = calendarID
	items, total, err := s.slots.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list slots")
	}
	page, size := normalizePage(filter.Page, filter.PageSize, 50, 200)
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetSlot returns a slot and, when date is set, its booking state on that date.
func (s *AvailabilityService) GetSlot(ctx context.Context, principal authz.Principal, id string, date *models.Date) (*SlotBooking, error) {
	slot, _, err := s.authorizeSlot(ctx, principal, authz.ActionRead, id)
	if err != nil {
		return nil, err
	}
	result := &SlotBooking{Slot: *slot}
	if date == nil {
		result.Available = slot.AcceptsBookings()
		return result, nil
	}

	result.Date = *date
	booked, err := s.bookings.CountActiveForSlot(ctx, nil, slot.ID, *date, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count slot bookings")
	}
	result.Booked = booked
	result.Available = slot.AcceptsBookings() && scheduling.IsOccurrence(*slot, *date) && booked < slot.MaxAppointments
	return result, nil
}

// CreateSlot adds a slot to a calendar.
func (s *AvailabilityService) CreateSlot(ctx context.Context, principal authz.Principal, calendarID string, req models.SlotRequest) (*models.AvailabilitySlot, error) {
	owner, err := s.loadCalendar(ctx, calendarID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOwner(principal, owner); err != nil {
		return nil, err
	}

	slot := &models.AvailabilitySlot{
		CalendarID:      calendarID,
		ValidFrom:       s.config.today(),
		IsBookable:      true,
		MaxAppointments: 1,
		IsActive:        true,
	}
	if principal.VolunteerID != "" {
		createdBy := principal.VolunteerID
		slot.CreatedBy = &createdBy
	}
	if err := s.applySlotRequest(slot, req); err != nil {
		return nil, err
	}

	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create slot")
	}
	s.cache.InvalidateCalendars(ctx, calendarID)
	s.logger.Info("availability slot created", zap.String("slot_id", slot.ID), zap.String("calendar_id", calendarID))
	return slot, nil
}

// UpdateSlot replaces the definition of a slot.
func (s *AvailabilityService) UpdateSlot(ctx context.Context, principal authz.Principal, id string, req models.SlotRequest) (*models.AvailabilitySlot, error) {
	slot, owner, err := s.authorizeSlot(ctx, principal, authz.ActionWrite, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOwner(principal, owner); err != nil {
		return nil, err
	}
	if err := s.applySlotRequest(slot, req); err != nil {
		return nil, err
	}
	if err := s.slots.Update(ctx, slot); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update slot")
	}
	s.cache.InvalidateCalendars(ctx, slot.CalendarID)
	return slot, nil
}

// DeleteSlot removes a slot with its exceptions.
func (s *AvailabilityService) DeleteSlot(ctx context.Context, principal authz.Principal, id string) error {
	slot, _, err := s.authorizeSlot(ctx, principal, authz.ActionWrite, id)
	if err != nil {
		return err
	}
	if err := s.slots.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "slot not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete slot")
	}
	s.cache.InvalidateCalendars(ctx, slot.CalendarID)
	return nil
}

// Occurrences expands a slot over [from, to] with its exceptions applied.
func (s *AvailabilityService) Occurrences(ctx context.Context, principal authz.Principal, id string, from, to models.Date) ([]scheduling.Occurrence, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	slot, _, err := s.authorizeSlot(ctx, principal, authz.ActionRead, id)
	if err != nil {
		return nil, err
	}
	exceptions, err := s.slots.ListExceptions(ctx, nil, []string{slot.ID}, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exceptions")
	}
	start := time.Now()
	occurrences := scheduling.Expand(*slot, exceptions, from, to)
	s.metrics.ObserveExpansion(time.Since(start))
	if occurrences == nil {
		occurrences = []scheduling.Occurrence{}
	}
	return occurrences, nil
}

// ListExceptions returns the exceptions of a slot.
func (s *AvailabilityService) ListExceptions(ctx context.Context, principal authz.Principal, slotID string) ([]models.AvailabilityException, error) {
	if _, _, err := s.authorizeSlot(ctx, principal, authz.ActionRead, slotID); err != nil {
		return nil, err
	}
	exceptions, err := s.slots.ListExceptionsBySlot(ctx, slotID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exceptions")
	}
	if exceptions == nil {
		exceptions = []models.AvailabilityException{}
	}
	return exceptions, nil
}

// CreateException cancels, modifies or moves one occurrence of a slot.
func (s *AvailabilityService) CreateException(ctx context.Context, principal authz.Principal, slotID string, req models.ExceptionRequest) (*models.AvailabilityException, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidator(err, "invalid exception payload")
	}
	slot, _, err := s.authorizeSlot(ctx, principal, authz.ActionWrite, slotID)
	if err != nil {
		return nil, err
	}
	if req.ExceptionDate.IsZero() {
		return nil, appErrors.Validation("exception_date", "exception date is required")
	}
	if !scheduling.IsOccurrence(*slot, req.ExceptionDate) {
		return nil, appErrors.Validation("exception_date", "the slot has no occurrence on this date")
	}

	exception := &models.AvailabilityException{
		SlotID:        slot.ID,
		ExceptionDate: req.ExceptionDate,
		ExceptionType: req.ExceptionType,
		Reason:        req.Reason,
	}
	switch req.ExceptionType {
	case models.ExceptionModified:
		if req.NewStartTime == nil || req.NewEndTime == nil {
			return nil, appErrors.Validation("new_start_time", "new start and end times are required for a modified occurrence")
		}
		if *req.NewEndTime <= *req.NewStartTime {
			return nil, appErrors.Validation("new_end_time", scheduling.ErrEndBeforeStart.Error())
		}
		exception.NewStartTime = req.NewStartTime
		exception.NewEndTime = req.NewEndTime
	case models.ExceptionMoved:
		if req.NewDate == nil || req.NewDate.IsZero() {
			return nil, appErrors.Validation("new_date", "new date is required for a moved occurrence")
		}
		exception.NewDate = req.NewDate
		if req.NewStartTime != nil || req.NewEndTime != nil {
			start, end := slot.StartTime, slot.EndTime
			if req.NewStartTime != nil {
				start = *req.NewStartTime
			}
			if req.NewEndTime != nil {
				end = *req.NewEndTime
			}
			if end <= start {
				return nil, appErrors.Validation("new_end_time", scheduling.ErrEndBeforeStart.Error())
			}
			exception.NewStartTime = req.NewStartTime
			exception.NewEndTime = req.NewEndTime
		}
	}
	if principal.VolunteerID != "" {
		createdBy := principal.VolunteerID
		exception.CreatedBy = &createdBy
	}

	if err := s.slots.CreateException(ctx, exception); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an exception already exists for this date")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exception")
	}
	s.cache.InvalidateCalendars(ctx, slot.CalendarID)
	return exception, nil
}

// DeleteException restores an occurrence.
func (s *AvailabilityService) DeleteException(ctx context.Context, principal authz.Principal, slotID, exceptionID string) error {
	slot, _, err := s.authorizeSlot(ctx, principal, authz.ActionWrite, slotID)
	if err != nil {
		return err
	}
	exception, err := s.slots.FindException(ctx, exceptionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "exception not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exception")
	}
	if exception.SlotID != slot.ID {
		return appErrors.Clone(appErrors.ErrNotFound, "exception not found")
	}
	if err := s.slots.DeleteException(ctx, exceptionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "exception not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete exception")
	}
	s.cache.InvalidateCalendars(ctx, slot.CalendarID)
	return nil
}

func (s *AvailabilityService) applySlotRequest(slot *models.AvailabilitySlot, req models.SlotRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.FromValidator(err, "invalid slot payload")
	}
	slot.SlotType = req.SlotType
	slot.RecurrenceType = req.RecurrenceType
	slot.StartTime = req.StartTime
	slot.EndTime = req.EndTime
	slot.Title = req.Title
	slot.Notes = req.Notes
	slot.Weekday = nil
	slot.SpecificDate = nil
	if req.ValidFrom != nil && !req.ValidFrom.IsZero() {
		slot.ValidFrom = *req.ValidFrom
	}
	slot.ValidUntil = req.ValidUntil
	if req.IsBookable != nil {
		slot.IsBookable = *req.IsBookable
	}
	if req.MaxAppointments != nil {
		slot.MaxAppointments = *req.MaxAppointments
	}
	if req.IsActive != nil {
		slot.IsActive = *req.IsActive
	}

	if !slot.StartTime.Valid() || !slot.EndTime.Valid() || slot.EndTime <= slot.StartTime {
		return appErrors.Validation("end_time", scheduling.ErrEndBeforeStart.Error())
	}
	if slot.RecurrenceType.IsRecurring() {
		if req.Weekday == nil || !req.Weekday.Valid() {
			return appErrors.Validation("weekday", "weekday is required for recurring slots")
		}
		weekday := *req.Weekday
		slot.Weekday = &weekday
	} else {
		if req.SpecificDate == nil || req.SpecificDate.IsZero() {
			return appErrors.Validation("specific_date", "specific date is required for one-off slots")
		}
		date := *req.SpecificDate
		slot.SpecificDate = &date
	}
	if slot.ValidUntil != nil && slot.ValidUntil.Before(slot.ValidFrom) {
		return appErrors.Validation("valid_until", "valid until must not be before valid from")
	}
	if slot.MaxAppointments < 1 {
		slot.MaxAppointments = 1
	}
	return nil
}

func (s *AvailabilityService) authorizeSlot(ctx context.Context, principal authz.Principal, action authz.Action, id string) (*models.AvailabilitySlot, *models.CalendarOwner, error) {
	slot, err := s.slots.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "slot not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot")
	}
	owner, err := s.loadCalendar(ctx, slot.CalendarID)
	if err != nil {
		return nil, nil, err
	}
	if err := authz.Authorize(principal, action, authz.Resource{OwnerVolunteerID: owner.VolunteerID}); err != nil {
		return nil, nil, err
	}
	return slot, owner, nil
}

// authorizeOwner rejects writes on calendars held by governance volunteers.
func (s *AvailabilityService) authorizeOwner(principal authz.Principal, owner *models.CalendarOwner) error {
	if err := authz.Authorize(principal, authz.ActionWrite, authz.Resource{OwnerVolunteerID: owner.VolunteerID}); err != nil {
		return err
	}
	if !authz.CanOwnCalendar(owner.Role) {
		return appErrors.Clone(appErrors.ErrForbidden, "governance volunteers cannot own availability slots")
	}
	return nil
}

func (s *AvailabilityService) loadCalendar(ctx context.Context, id string) (*models.CalendarOwner, error) {
	owner, err := s.calendars.FindOwner(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "calendar not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar")
	}
	return owner, nil
}

func validateRange(from, to models.Date) error {
	if from.IsZero() || to.IsZero() {
		return appErrors.Validation("start", "start and end dates are required")
	}
	if to.Before(from) {
		return appErrors.Validation("end", "end date must not be before start date")
	}
	if to.Sub(from.Time) > maxOccurrenceWindow*24*time.Hour {
		return appErrors.Validation("end", "date range is limited to one year")
	}
	return nil
}
