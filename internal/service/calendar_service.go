package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ona-asso/ona-api/internal/authz"
	"github.com/ona-asso/ona-api/internal/models"
	appErrors "github.com/ona-asso/ona-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type calendarRepository interface {
	FindByID(ctx context.Context, id string) (*models.VolunteerCalendar, error)
	FindByVolunteer(ctx context.Context, exec sqlx.ExtContext, volunteerID string) (*models.VolunteerCalendar, error)
	FindOwner(ctx context.Context, id string) (*models.CalendarOwner, error)
	ListOwners(ctx context.Context) ([]models.CalendarOwner, error)
	CreateIfMissing(ctx context.Context, exec sqlx.ExtContext, calendar *models.VolunteerCalendar) (*models.VolunteerCalendar, error)
	UpdateSettings(ctx context.Context, calendar *models.VolunteerCalendar) error
	DeleteByVolunteer(ctx context.Context, exec sqlx.ExtContext, volunteerID string) error
	LockForBooking(ctx context.Context, exec sqlx.ExtContext, id string) error
}

// CalendarService owns calendar provisioning and settings.
type CalendarService struct {
	calendars calendarRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCalendarService constructs a CalendarService.
func NewCalendarService(calendars calendarRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{calendars: calendars, cache: cache, validator: validate, logger: logger}
}

// EnsureCalendarFor makes the calendar state of a volunteer match its role.
// Eligible volunteers get a calendar with default settings when they have
// none; governance volunteers lose theirs. exec may be a running transaction.
func (s *CalendarService) EnsureCalendarFor(ctx context.Context, exec sqlx.ExtContext, volunteer *models.Volunteer) (*models.VolunteerCalendar, error) {
	if volunteer == nil || volunteer.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "volunteer is required")
	}
	if !authz.CanOwnCalendar(volunteer.Role) {
		if err := s.calendars.DeleteByVolunteer(ctx, exec, volunteer.ID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove calendar")
		}
		return nil, nil
	}

	calendar := models.NewVolunteerCalendar(volunteer.ID)
	stored, err := s.calendars.CreateIfMissing(ctx, exec, &calendar)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to provision calendar")
	}
	if stored.ID == calendar.ID {
		s.logger.Info("calendar provisioned", zap.String("volunteer_id", volunteer.ID), zap.String("calendar_id", stored.ID))
	}
	return stored, nil
}

// Get returns a calendar with its owner.
func (s *CalendarService) Get(ctx context.Context, principal authz.Principal, id string) (*models.CalendarOwner, error) {
	owner, err := s.loadOwner(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(principal, authz.ActionRead, authz.Resource{OwnerVolunteerID: owner.VolunteerID}); err != nil {
		return nil, err
	}
	return owner, nil
}

// GetMine returns the calendar of the principal, or of the volunteer staff acts as.
func (s *CalendarService) GetMine(ctx context.Context, principal authz.Principal) (*models.CalendarOwner, error) {
	if err := authz.Authorize(principal, authz.ActionRead, authz.Resource{}); err != nil {
		return nil, err
	}
	volunteerID, err := authz.TargetVolunteer(principal)
	if err != nil {
		return nil, err
	}
	if volunteerID == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no volunteer is linked to this account")
	}
	calendar, err := s.calendars.FindByVolunteer(ctx, nil, volunteerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "calendar not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar")
	}
	return s.loadOwner(ctx, calendar.ID)
}

// UpdateSettings applies display and reminder preferences.
func (s *CalendarService) UpdateSettings(ctx context.Context, principal authz.Principal, id string, req models.UpdateCalendarSettingsRequest) (*models.VolunteerCalendar, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidator(err, "invalid calendar settings")
	}
	owner, err := s.loadOwner(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(principal, authz.ActionWrite, authz.Resource{OwnerVolunteerID: owner.VolunteerID}); err != nil {
		return nil, err
	}

	calendar := owner.VolunteerCalendar
	if req.DefaultView != nil {
		calendar.DefaultView = *req.DefaultView
	}
	if req.WorkStartTime != nil {
		calendar.WorkStartTime = *req.WorkStartTime
	}
	if req.WorkEndTime != nil {
		calendar.WorkEndTime = *req.WorkEndTime
	}
	if req.ShowWeekends != nil {
		calendar.ShowWeekends = *req.ShowWeekends
	}
	if req.EmailReminders != nil {
		calendar.EmailReminders = *req.EmailReminders
	}
	if req.ReminderHoursBefore != nil {
		calendar.ReminderHoursBefore = *req.ReminderHoursBefore
	}
	if calendar.WorkEndTime <= calendar.WorkStartTime {
		return nil, appErrors.Validation("work_end_time", "work end time must be after work start time")
	}

	if err := s.calendars.UpdateSettings(ctx, &calendar); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "calendar not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update calendar settings")
	}
	s.cache.InvalidateCalendars(ctx, calendar.ID)
	return &calendar, nil
}

func (s *CalendarService) loadOwner(ctx context.Context, id string) (*models.CalendarOwner, error) {
	owner, err := s.calendars.FindOwner(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "calendar not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar")
	}
	return owner, nil
}
