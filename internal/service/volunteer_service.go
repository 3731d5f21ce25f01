package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ona-asso/ona-api/internal/authz"
	"github.com/ona-asso/ona-api/internal/models"
	appErrors "github.com/ona-asso/ona-api/pkg/errors"
)

type volunteerRepository interface {
	List(ctx context.Context, filter models.VolunteerFilter) ([]models.Volunteer, int, error)
	FindByID(ctx context.Context, id string) (*models.Volunteer, error)
	ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, volunteer *models.Volunteer) error
	UpdateRole(ctx context.Context, exec sqlx.ExtContext, id string, role models.UserRole) error
	ListWithoutCalendar(ctx context.Context) ([]models.Volunteer, error)
}

type calendarProvisioner interface {
	EnsureCalendarFor(ctx context.Context, exec sqlx.ExtContext, volunteer *models.Volunteer) (*models.VolunteerCalendar, error)
}

// VolunteerService provisions volunteers and keeps their calendar in line with their role.
type VolunteerService struct {
	volunteers volunteerRepository
	calendars  calendarProvisioner
	tx         txProvider
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewVolunteerService constructs a VolunteerService.
func NewVolunteerService(volunteers volunteerRepository, calendars calendarProvisioner, tx txProvider, validate *validator.Validate, logger *zap.Logger) *VolunteerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VolunteerService{volunteers: volunteers, calendars: calendars, tx: tx, validator: validate, logger: logger}
}

func requireStaff(principal authz.Principal) error {
	if err := authz.Authorize(principal, authz.ActionRead, authz.Resource{}); err != nil {
		return err
	}
	if !principal.Elevated() {
		return appErrors.Clone(appErrors.ErrForbidden, "only staff can manage volunteers")
	}
	return nil
}

// List returns volunteers ordered by last then first name.
func (s *VolunteerService) List(ctx context.Context, principal authz.Principal, filter models.VolunteerFilter) ([]models.Volunteer, *models.Pagination, error) {
	if err := authz.Authorize(principal, authz.ActionRead, authz.Resource{}); err != nil {
		return nil, nil, err
	}
	items, total, err := s.volunteers.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list volunteers")
	}
	page, size := normalizePage(filter.Page, filter.PageSize, 20, 100)
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one volunteer.
func (s *VolunteerService) Get(ctx context.Context, principal authz.Principal, id string) (*models.Volunteer, error) {
	if err := authz.Authorize(principal, authz.ActionRead, authz.Resource{OwnerVolunteerID: id}); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Provision registers a volunteer and its calendar in one transaction.
func (s *VolunteerService) Provision(ctx context.Context, principal authz.Principal, req models.CreateVolunteerRequest) (result *models.Volunteer, err error) {
	if err := requireStaff(principal); err != nil {
		return nil, err
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidator(err, "invalid volunteer payload")
	}
	exists, err := s.volunteers.ExistsByEmail(ctx, req.Email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already used by another volunteer")
	}

	volunteer := &models.Volunteer{
		UserID:    req.UserID,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     req.Email,
		Phone:     req.Phone,
		Role:      req.Role,
		Status:    models.VolunteerActive,
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.volunteers.Create(ctx, tx, volunteer); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create volunteer")
		return nil, err
	}
	if _, err = s.calendars.EnsureCalendarFor(ctx, tx, volunteer); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit volunteer")
		return nil, err
	}

	s.logger.Info("volunteer provisioned", zap.String("volunteer_id", volunteer.ID), zap.String("role", string(volunteer.Role)))
	return volunteer, nil
}

// ChangeRole moves a volunteer to another role and syncs its calendar.
func (s *VolunteerService) ChangeRole(ctx context.Context, principal authz.Principal, id string, req models.ChangeRoleRequest) (result *models.Volunteer, err error) {
	if err := requireStaff(principal); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidator(err, "invalid role payload")
	}
	volunteer, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if volunteer.Role == req.Role {
		return volunteer, nil
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.volunteers.UpdateRole(ctx, tx, id, req.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "volunteer not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update role")
		return nil, err
	}
	previous := volunteer.Role
	volunteer.Role = req.Role
	if _, err = s.calendars.EnsureCalendarFor(ctx, tx, volunteer); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit role change")
		return nil, err
	}

	s.logger.Info("volunteer role changed",
		zap.String("volunteer_id", id),
		zap.String("from", string(previous)),
		zap.String("to", string(req.Role)),
	)
	return volunteer, nil
}

// BackfillCalendars provisions calendars for eligible volunteers that lack one.
func (s *VolunteerService) BackfillCalendars(ctx context.Context) (int, error) {
	missing, err := s.volunteers.ListWithoutCalendar(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list volunteers without calendar")
	}
	created := 0
	for i := range missing {
		if _, err := s.calendars.EnsureCalendarFor(ctx, nil, &missing[i]); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (s *VolunteerService) load(ctx context.Context, id string) (*models.Volunteer, error) {
	volunteer, err := s.volunteers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "volunteer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load volunteer")
	}
	return volunteer, nil
}

func normalizePage(page, size, fallback, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > limit {
		size = fallback
	}
	return page, size
}
