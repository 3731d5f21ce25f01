package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ona-asso/ona-api/internal/models"
)

const slotColumns = "id, calendar_id, slot_type, recurrence_type, weekday, specific_date, start_time, end_time, valid_from, valid_until, title, notes, is_bookable, max_appointments, is_active, created_by, created_at, updated_at"

const exceptionColumns = "id, slot_id, exception_date, exception_type, new_start_time, new_end_time, new_date, reason, created_by, created_at"

// AvailabilityRepository persists availability slots and their exceptions.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs an AvailabilityRepository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

func (r *AvailabilityRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns the slots of a calendar along with total count.
func (r *AvailabilityRepository) List(ctx context.Context, filter models.SlotFilter) ([]models.AvailabilitySlot, int, error) {
	base := "FROM availability_slots WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.CalendarID != "" {
		conditions = append(conditions, fmt.Sprintf("calendar_id = $%d", len(args)+1))
		args = append(args, filter.CalendarID)
	}
	if filter.SlotType != nil {
		conditions = append(conditions, fmt.Sprintf("slot_type = $%d", len(args)+1))
		args = append(args, *filter.SlotType)
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY weekday NULLS LAST, specific_date NULLS LAST, start_time LIMIT %d OFFSET %d", slotColumns, base, size, offset)
	var slots []models.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list availability slots: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count availability slots: %w", err)
	}
	return slots, total, nil
}

// ListActiveByCalendars returns the active slots of the given calendars.
func (r *AvailabilityRepository) ListActiveByCalendars(ctx context.Context, exec sqlx.ExtContext, calendarIDs []string) ([]models.AvailabilitySlot, error) {
	if len(calendarIDs) == 0 {
		return nil, nil
	}
	query := "SELECT " + slotColumns + " FROM availability_slots WHERE calendar_id = ANY($1) AND is_active = TRUE ORDER BY calendar_id, start_time"
	var slots []models.AvailabilitySlot
	if err := sqlx.SelectContext(ctx, r.exec(exec), &slots, query, pq.Array(calendarIDs)); err != nil {
		return nil, fmt.Errorf("list active slots: %w", err)
	}
	return slots, nil
}

// FindByID fetches a slot by ID.
func (r *AvailabilityRepository) FindByID(ctx context.Context, id string) (*models.AvailabilitySlot, error) {
	query := "SELECT " + slotColumns + " FROM availability_slots WHERE id = $1"
	var slot models.AvailabilitySlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, lookupErr(err)
	}
	return &slot, nil
}

// Create inserts a slot.
func (r *AvailabilityRepository) Create(ctx context.Context, slot *models.AvailabilitySlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now

	const query = `INSERT INTO availability_slots (id, calendar_id, slot_type, recurrence_type, weekday, specific_date, start_time, end_time, valid_from, valid_until,
	title, notes, is_bookable, max_appointments, is_active, created_by, created_at, updated_at)
VALUES (:id, :calendar_id, :slot_type, :recurrence_type, :weekday, :specific_date, :start_time, :end_time, :valid_from, :valid_until,
	:title, :notes, :is_bookable, :max_appointments, :is_active, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create availability slot: %w", err)
	}
	return nil
}

// Update modifies a slot.
func (r *AvailabilityRepository) Update(ctx context.Context, slot *models.AvailabilitySlot) error {
	slot.UpdatedAt = time.Now().UTC()
	const query = `UPDATE availability_slots SET slot_type = :slot_type, recurrence_type = :recurrence_type, weekday = :weekday, specific_date = :specific_date,
	start_time = :start_time, end_time = :end_time, valid_from = :valid_from, valid_until = :valid_until, title = :title, notes = :notes,
	is_bookable = :is_bookable, max_appointments = :max_appointments, is_active = :is_active, updated_at = :updated_at
WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, slot)
	if err != nil {
		return fmt.Errorf("update availability slot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("availability slot rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a slot. Exceptions cascade and appointments lose their slot reference.
func (r *AvailabilityRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM availability_slots WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete availability slot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("availability slot rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListExceptions returns the exceptions of the given slots touching [from, to],
// either by their original date or by the date an occurrence moves to.
func (r *AvailabilityRepository) ListExceptions(ctx context.Context, exec sqlx.ExtContext, slotIDs []string, from, to models.Date) ([]models.AvailabilityException, error) {
	if len(slotIDs) == 0 {
		return nil, nil
	}
	query := "SELECT " + exceptionColumns + ` FROM availability_exceptions
WHERE slot_id = ANY($1) AND ((exception_date BETWEEN $2 AND $3) OR (new_date BETWEEN $2 AND $3))
ORDER BY exception_date`
	var exceptions []models.AvailabilityException
	if err := sqlx.SelectContext(ctx, r.exec(exec), &exceptions, query, pq.Array(slotIDs), from, to); err != nil {
		return nil, fmt.Errorf("list availability exceptions: %w", err)
	}
	return exceptions, nil
}

// ListExceptionsBySlot returns every exception of a slot.
func (r *AvailabilityRepository) ListExceptionsBySlot(ctx context.Context, slotID string) ([]models.AvailabilityException, error) {
	query := "SELECT " + exceptionColumns + " FROM availability_exceptions WHERE slot_id = $1 ORDER BY exception_date"
	var exceptions []models.AvailabilityException
	if err := r.db.SelectContext(ctx, &exceptions, query, slotID); err != nil {
		return nil, fmt.Errorf("list slot exceptions: %w", err)
	}
	return exceptions, nil
}

// FindException fetches an exception by ID.
func (r *AvailabilityRepository) FindException(ctx context.Context, id string) (*models.AvailabilityException, error) {
	query := "SELECT " + exceptionColumns + " FROM availability_exceptions WHERE id = $1"
	var exception models.AvailabilityException
	if err := r.db.GetContext(ctx, &exception, query, id); err != nil {
		return nil, lookupErr(err)
	}
	return &exception, nil
}

// CreateException inserts an exception. A second exception for the same slot and date violates a unique constraint.
func (r *AvailabilityRepository) CreateException(ctx context.Context, exception *models.AvailabilityException) error {
	if exception.ID == "" {
		exception.ID = uuid.NewString()
	}
	if exception.CreatedAt.IsZero() {
		exception.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO availability_exceptions (id, slot_id, exception_date, exception_type, new_start_time, new_end_time, new_date, reason, created_by, created_at)
VALUES (:id, :slot_id, :exception_date, :exception_type, :new_start_time, :new_end_time, :new_date, :reason, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exception); err != nil {
		return fmt.Errorf("create availability exception: %w", err)
	}
	return nil
}

// DeleteException removes an exception.
func (r *AvailabilityRepository) DeleteException(ctx context.Context, id string) error {
	const query = `DELETE FROM availability_exceptions WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete availability exception: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("availability exception rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
