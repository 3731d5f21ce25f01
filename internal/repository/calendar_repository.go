package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ona-asso/ona-api/internal/models"
)

const calendarColumns = "id, volunteer_id, default_view, work_start_time, work_end_time, show_weekends, email_reminders, reminder_hours_before, created_at, updated_at"

const calendarOwnerSelect = `SELECT c.id, c.volunteer_id, c.default_view, c.work_start_time, c.work_end_time, c.show_weekends,
	c.email_reminders, c.reminder_hours_before, c.created_at, c.updated_at,
	v.first_name, v.last_name, v.email, v.role
FROM volunteer_calendars c
JOIN volunteers v ON v.id = c.volunteer_id`

// CalendarRepository persists volunteer calendars.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository constructs a CalendarRepository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

func (r *CalendarRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID loads a calendar by its identifier.
func (r *CalendarRepository) FindByID(ctx context.Context, id string) (*models.VolunteerCalendar, error) {
	query := "SELECT " + calendarColumns + " FROM volunteer_calendars WHERE id = $1"
	var calendar models.VolunteerCalendar
	if err := r.db.GetContext(ctx, &calendar, query, id); err != nil {
		return nil, lookupErr(err)
	}
	return &calendar, nil
}

// FindByVolunteer loads the calendar owned by a volunteer.
func (r *CalendarRepository) FindByVolunteer(ctx context.Context, exec sqlx.ExtContext, volunteerID string) (*models.VolunteerCalendar, error) {
	query := "SELECT " + calendarColumns + " FROM volunteer_calendars WHERE volunteer_id = $1"
	var calendar models.VolunteerCalendar
	if err := sqlx.GetContext(ctx, r.exec(exec), &calendar, query, volunteerID); err != nil {
		return nil, lookupErr(err)
	}
	return &calendar, nil
}

// FindOwner loads a calendar joined with its volunteer.
func (r *CalendarRepository) FindOwner(ctx context.Context, id string) (*models.CalendarOwner, error) {
	query := calendarOwnerSelect + " WHERE c.id = $1"
	var owner models.CalendarOwner
	if err := r.db.GetContext(ctx, &owner, query, id); err != nil {
		return nil, lookupErr(err)
	}
	return &owner, nil
}

// ListOwners returns calendars of volunteers outside the governance role, by last then first name.
func (r *CalendarRepository) ListOwners(ctx context.Context) ([]models.CalendarOwner, error) {
	query := calendarOwnerSelect + " WHERE v.role <> $1 ORDER BY v.last_name ASC, v.first_name ASC"
	var owners []models.CalendarOwner
	if err := r.db.SelectContext(ctx, &owners, query, models.RoleVolunteerGovernance); err != nil {
		return nil, fmt.Errorf("list calendar owners: %w", err)
	}
	return owners, nil
}

// CreateIfMissing inserts a calendar for the volunteer unless one exists, then returns the stored row.
func (r *CalendarRepository) CreateIfMissing(ctx context.Context, exec sqlx.ExtContext, calendar *models.VolunteerCalendar) (*models.VolunteerCalendar, error) {
	if calendar.ID == "" {
		calendar.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if calendar.CreatedAt.IsZero() {
		calendar.CreatedAt = now
	}
	calendar.UpdatedAt = now

	target := r.exec(exec)
	const insertQuery = `INSERT INTO volunteer_calendars (id, volunteer_id, default_view, work_start_time, work_end_time, show_weekends, email_reminders, reminder_hours_before, created_at, updated_at)
VALUES (:id, :volunteer_id, :default_view, :work_start_time, :work_end_time, :show_weekends, :email_reminders, :reminder_hours_before, :created_at, :updated_at)
ON CONFLICT (volunteer_id) DO NOTHING`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, calendar); err != nil {
		return nil, fmt.Errorf("create volunteer calendar: %w", err)
	}

	stored, err := r.FindByVolunteer(ctx, target, calendar.VolunteerID)
	if err != nil {
		return nil, fmt.Errorf("load volunteer calendar: %w", err)
	}
	return stored, nil
}

// UpdateSettings persists display and reminder preferences.
func (r *CalendarRepository) UpdateSettings(ctx context.Context, calendar *models.VolunteerCalendar) error {
	calendar.UpdatedAt = time.Now().UTC()
	const query = `UPDATE volunteer_calendars SET default_view = :default_view, work_start_time = :work_start_time, work_end_time = :work_end_time,
	show_weekends = :show_weekends, email_reminders = :email_reminders, reminder_hours_before = :reminder_hours_before, updated_at = :updated_at
WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, calendar)
	if err != nil {
		return fmt.Errorf("update calendar settings: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("calendar settings rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteByVolunteer removes the calendar of a volunteer. Slots, exceptions and appointments cascade.
func (r *CalendarRepository) DeleteByVolunteer(ctx context.Context, exec sqlx.ExtContext, volunteerID string) error {
	const query = `DELETE FROM volunteer_calendars WHERE volunteer_id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, volunteerID); err != nil {
		return fmt.Errorf("delete volunteer calendar: %w", err)
	}
	return nil
}

// LockForBooking takes a row lock on the calendar for the rest of the transaction.
func (r *CalendarRepository) LockForBooking(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `SELECT id FROM volunteer_calendars WHERE id = $1 FOR UPDATE`
	var locked string
	if err := sqlx.GetContext(ctx, r.exec(exec), &locked, query, id); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock volunteer calendar: %w", err)
	}
	return nil
}
