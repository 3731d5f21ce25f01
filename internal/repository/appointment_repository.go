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

const appointmentColumns = "id, calendar_id, beneficiary_id, appointment_date, start_time, end_time, appointment_type, title, description, location, status, preparation_notes, completion_notes, slot_id, created_by, reminder_sent_at, created_at, updated_at"

const appointmentDetailSelect = `SELECT a.id, a.calendar_id, a.beneficiary_id, a.appointment_date, a.start_time, a.end_time, a.appointment_type, a.title,
	a.description, a.location, a.status, a.preparation_notes, a.completion_notes, a.slot_id, a.created_by, a.reminder_sent_at,
	a.created_at, a.updated_at,
	b.first_name AS beneficiary_first_name, b.last_name AS beneficiary_last_name,
	v.id AS volunteer_id, v.first_name AS volunteer_first_name, v.last_name AS volunteer_last_name
FROM appointments a
JOIN beneficiaries b ON b.id = a.beneficiary_id
LEFT JOIN volunteer_calendars c ON c.id = a.calendar_id
LEFT JOIN volunteers v ON v.id = c.volunteer_id`

// AppointmentRepository persists appointments.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository constructs an AppointmentRepository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns appointments with beneficiary and volunteer names, ordered by date then start time.
func (r *AppointmentRepository) List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, int, error) {
	where := " WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.CalendarID != "" {
		conditions = append(conditions, fmt.Sprintf("a.calendar_id = $%d", len(args)+1))
		args = append(args, filter.CalendarID)
	}
	if filter.OrphanOnly {
		conditions = append(conditions, "a.calendar_id IS NULL")
	}
	if filter.BeneficiaryID != "" {
		conditions = append(conditions, fmt.Sprintf("a.beneficiary_id = $%d", len(args)+1))
		args = append(args, filter.BeneficiaryID)
	}
	if filter.CreatedBy != "" {
		conditions = append(conditions, fmt.Sprintf("a.created_by = $%d", len(args)+1))
		args = append(args, filter.CreatedBy)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		conditions = append(conditions, fmt.Sprintf("a.status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(statuses))
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("a.appointment_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("a.appointment_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if len(conditions) > 0 {
		where += " AND " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf("%s%s ORDER BY a.appointment_date ASC, a.start_time ASC LIMIT %d OFFSET %d", appointmentDetailSelect, where, size, offset)
	var items []models.AppointmentDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM appointments a" + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}
	return items, total, nil
}

// FindByID fetches an appointment by ID.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	query := "SELECT " + appointmentColumns + " FROM appointments WHERE id = $1"
	var appointment models.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, id); err != nil {
		return nil, lookupErr(err)
	}
	return &appointment, nil
}

// FindDetail fetches an appointment with beneficiary and volunteer names.
func (r *AppointmentRepository) FindDetail(ctx context.Context, id string) (*models.AppointmentDetail, error) {
	query := appointmentDetailSelect + " WHERE a.id = $1"
	var detail models.AppointmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, lookupErr(err)
	}
	return &detail, nil
}

// ListDetailsInRange returns every appointment dated within [from, to] with display names.
func (r *AppointmentRepository) ListDetailsInRange(ctx context.Context, from, to models.Date) ([]models.AppointmentDetail, error) {
	query := appointmentDetailSelect + " WHERE a.appointment_date BETWEEN $1 AND $2 ORDER BY a.appointment_date ASC, a.start_time ASC"
	var items []models.AppointmentDetail
	if err := r.db.SelectContext(ctx, &items, query, from, to); err != nil {
		return nil, fmt.Errorf("list appointments in range: %w", err)
	}
	return items, nil
}

// ListByCalendarsInRange returns the appointments of the given calendars dated within [from, to].
func (r *AppointmentRepository) ListByCalendarsInRange(ctx context.Context, exec sqlx.ExtContext, calendarIDs []string, from, to models.Date) ([]models.Appointment, error) {
	if len(calendarIDs) == 0 {
		return nil, nil
	}
	query := "SELECT " + appointmentColumns + ` FROM appointments
WHERE calendar_id = ANY($1) AND appointment_date BETWEEN $2 AND $3
ORDER BY appointment_date, start_time`
	var appointments []models.Appointment
	if err := sqlx.SelectContext(ctx, r.exec(exec), &appointments, query, pq.Array(calendarIDs), from, to); err != nil {
		return nil, fmt.Errorf("list calendar appointments: %w", err)
	}
	return appointments, nil
}

// ListForCalendarDate returns the appointments of a calendar on one date.
func (r *AppointmentRepository) ListForCalendarDate(ctx context.Context, exec sqlx.ExtContext, calendarID string, date models.Date) ([]models.Appointment, error) {
	query := "SELECT " + appointmentColumns + " FROM appointments WHERE calendar_id = $1 AND appointment_date = $2 ORDER BY start_time"
	var appointments []models.Appointment
	if err := sqlx.SelectContext(ctx, r.exec(exec), &appointments, query, calendarID, date); err != nil {
		return nil, fmt.Errorf("list appointments for date: %w", err)
	}
	return appointments, nil
}

// CountActiveForSlot counts scheduled or confirmed appointments booked on a slot for a date.
func (r *AppointmentRepository) CountActiveForSlot(ctx context.Context, exec sqlx.ExtContext, slotID string, date models.Date, excludeID string) (int, error) {
	query := `SELECT COUNT(*) FROM appointments WHERE slot_id = $1 AND appointment_date = $2 AND status IN ('SCHEDULED', 'CONFIRMED')`
	args := []interface{}{slotID, date}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, args...); err != nil {
		return 0, fmt.Errorf("count slot bookings: %w", err)
	}
	return count, nil
}

// Create inserts an appointment.
func (r *AppointmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, appointment *models.Appointment) error {
	if appointment.ID == "" {
		appointment.ID = uuid.NewString()
	}
	if appointment.Status == "" {
		appointment.Status = models.AppointmentScheduled
	}
	now := time.Now().UTC()
	if appointment.CreatedAt.IsZero() {
		appointment.CreatedAt = now
	}
	appointment.UpdatedAt = now

	const query = `INSERT INTO appointments (id, calendar_id, beneficiary_id, appointment_date, start_time, end_time, appointment_type, title, description,
	location, status, preparation_notes, completion_notes, slot_id, created_by, created_at, updated_at)
VALUES (:id, :calendar_id, :beneficiary_id, :appointment_date, :start_time, :end_time, :appointment_type, :title, :description,
	:location, :status, :preparation_notes, :completion_notes, :slot_id, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, appointment); err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

// Update modifies an appointment.
func (r *AppointmentRepository) Update(ctx context.Context, exec sqlx.ExtContext, appointment *models.Appointment) error {
	appointment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE appointments SET calendar_id = :calendar_id, beneficiary_id = :beneficiary_id, appointment_date = :appointment_date,
	start_time = :start_time, end_time = :end_time, appointment_type = :appointment_type, title = :title, description = :description,
	location = :location, status = :status, preparation_notes = :preparation_notes, completion_notes = :completion_notes, slot_id = :slot_id,
	reminder_sent_at = :reminder_sent_at, updated_at = :updated_at
WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, appointment)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("appointment rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus changes the status and optionally the completion notes.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus, completionNotes *string) error {
	now := time.Now().UTC()
	var (
		query string
		args  []interface{}
	)
	if completionNotes != nil {
		query = `UPDATE appointments SET status = $1, completion_notes = $2, updated_at = $3 WHERE id = $4`
		args = []interface{}{status, *completionNotes, now, id}
	} else {
		query = `UPDATE appointments SET status = $1, updated_at = $2 WHERE id = $3`
		args = []interface{}{status, now, id}
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("appointment status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an appointment.
func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM appointments WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("appointment rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListReminderCandidates returns open appointments between from and to whose
// calendar wants email reminders and that have not been reminded yet.
func (r *AppointmentRepository) ListReminderCandidates(ctx context.Context, from, to models.Date) ([]models.ReminderCandidate, error) {
	const query = `SELECT a.id, a.calendar_id, a.beneficiary_id, a.appointment_date, a.start_time, a.end_time, a.appointment_type, a.title,
	a.description, a.location, a.status, a.preparation_notes, a.completion_notes, a.slot_id, a.created_by, a.reminder_sent_at,
	a.created_at, a.updated_at,
	c.reminder_hours_before, v.email AS volunteer_email, v.first_name AS volunteer_first_name, v.last_name AS volunteer_last_name
FROM appointments a
JOIN volunteer_calendars c ON c.id = a.calendar_id
JOIN volunteers v ON v.id = c.volunteer_id
WHERE c.email_reminders = TRUE AND a.reminder_sent_at IS NULL AND a.status IN ('SCHEDULED', 'CONFIRMED')
	AND a.appointment_date BETWEEN $1 AND $2
ORDER BY a.appointment_date, a.start_time`
	var candidates []models.ReminderCandidate
	if err := r.db.SelectContext(ctx, &candidates, query, from, to); err != nil {
		return nil, fmt.Errorf("list reminder candidates: %w", err)
	}
	return candidates, nil
}

// MarkReminderSent stamps the reminder time of an appointment.
func (r *AppointmentRepository) MarkReminderSent(ctx context.Context, id string, sentAt time.Time) error {
	const query = `UPDATE appointments SET reminder_sent_at = $1 WHERE id = $2 AND reminder_sent_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, sentAt, id); err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}
