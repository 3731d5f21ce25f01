package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ona-asso/ona-api/internal/models"
)

const volunteerColumns = "id, user_id, first_name, last_name, email, phone, role, status, created_at, updated_at"

// VolunteerRepository manages persistence for volunteers.
type VolunteerRepository struct {
	db *sqlx.DB
}

// NewVolunteerRepository constructs a VolunteerRepository.
func NewVolunteerRepository(db *sqlx.DB) *VolunteerRepository {
	return &VolunteerRepository{db: db}
}

func (r *VolunteerRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns volunteers matching filters along with total count, ordered by last then first name.
func (r *VolunteerRepository) List(ctx context.Context, filter models.VolunteerFilter) ([]models.Volunteer, int, error) {
	base := "FROM volunteers WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf("(LOWER(first_name) LIKE $%d OR LOWER(last_name) LIKE $%d OR LOWER(email) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, search)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY last_name ASC, first_name ASC LIMIT %d OFFSET %d", volunteerColumns, base, size, offset)
	var volunteers []models.Volunteer
	if err := r.db.SelectContext(ctx, &volunteers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list volunteers: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count volunteers: %w", err)
	}

	return volunteers, total, nil
}

// FindByID fetches a volunteer by ID.
func (r *VolunteerRepository) FindByID(ctx context.Context, id string) (*models.Volunteer, error) {
	query := "SELECT " + volunteerColumns + " FROM volunteers WHERE id = $1"
	var volunteer models.Volunteer
	if err := r.db.GetContext(ctx, &volunteer, query, id); err != nil {
		return nil, lookupErr(err)
	}
	return &volunteer, nil
}

// FindByUserID fetches the volunteer bound to an auth user.
func (r *VolunteerRepository) FindByUserID(ctx context.Context, userID string) (*models.Volunteer, error) {
	query := "SELECT " + volunteerColumns + " FROM volunteers WHERE user_id = $1"
	var volunteer models.Volunteer
	if err := r.db.GetContext(ctx, &volunteer, query, userID); err != nil {
		return nil, err
	}
	return &volunteer, nil
}

// ExistsByEmail checks if another volunteer uses the same email.
func (r *VolunteerRepository) ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM volunteers WHERE LOWER(email) = LOWER($1)"
	args := []interface{}{email}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check volunteer email: %w", err)
	}
	return true, nil
}

// Create inserts a new volunteer record.
func (r *VolunteerRepository) Create(ctx context.Context, exec sqlx.ExtContext, volunteer *models.Volunteer) error {
	if volunteer.ID == "" {
		volunteer.ID = uuid.NewString()
	}
	if volunteer.Status == "" {
		volunteer.Status = models.VolunteerActive
	}
	now := time.Now().UTC()
	if volunteer.CreatedAt.IsZero() {
		volunteer.CreatedAt = now
	}
	volunteer.UpdatedAt = now

	const query = `INSERT INTO volunteers (id, user_id, first_name, last_name, email, phone, role, status, created_at, updated_at)
		VALUES (:id, :user_id, :first_name, :last_name, :email, :phone, :role, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, volunteer); err != nil {
		return fmt.Errorf("create volunteer: %w", err)
	}
	return nil
}

// UpdateRole changes the role of a volunteer.
func (r *VolunteerRepository) UpdateRole(ctx context.Context, exec sqlx.ExtContext, id string, role models.UserRole) error {
	const query = `UPDATE volunteers SET role = $1, updated_at = $2 WHERE id = $3`
	result, err := r.exec(exec).ExecContext(ctx, query, role, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update volunteer role: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("volunteer role rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListWithoutCalendar returns volunteers eligible for a calendar that do not own one yet.
func (r *VolunteerRepository) ListWithoutCalendar(ctx context.Context) ([]models.Volunteer, error) {
	const query = `SELECT v.id, v.user_id, v.first_name, v.last_name, v.email, v.phone, v.role, v.status, v.created_at, v.updated_at
FROM volunteers v
LEFT JOIN volunteer_calendars c ON c.volunteer_id = v.id
WHERE c.id IS NULL AND v.role <> $1
ORDER BY v.last_name, v.first_name`
	var volunteers []models.Volunteer
	if err := r.db.SelectContext(ctx, &volunteers, query, models.RoleVolunteerGovernance); err != nil {
		return nil, fmt.Errorf("list volunteers without calendar: %w", err)
	}
	return volunteers, nil
}
