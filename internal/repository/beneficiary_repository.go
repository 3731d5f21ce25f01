package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ona-asso/ona-api/internal/models"
)

const beneficiaryColumns = "id, first_name, last_name, email, phone, created_by, created_at, updated_at"

const snapshotColumns = "id, beneficiary_id, taken_at, total_income, total_expenses, details, created_at"

// BeneficiaryRepository persists beneficiaries and their financial snapshots.
type BeneficiaryRepository struct {
	db *sqlx.DB
}

// NewBeneficiaryRepository constructs a BeneficiaryRepository.
func NewBeneficiaryRepository(db *sqlx.DB) *BeneficiaryRepository {
	return &BeneficiaryRepository{db: db}
}

// FindByID fetches a beneficiary by ID.
func (r *BeneficiaryRepository) FindByID(ctx context.Context, id string) (*models.Beneficiary, error) {
	query := "SELECT " + beneficiaryColumns + " FROM beneficiaries WHERE id = $1"
	var beneficiary models.Beneficiary
	if err := r.db.GetContext(ctx, &beneficiary, query, id); err != nil {
		return nil, lookupErr(err)
	}
	return &beneficiary, nil
}

// LatestSnapshot returns the most recent financial snapshot of a beneficiary.
func (r *BeneficiaryRepository) LatestSnapshot(ctx context.Context, beneficiaryID string) (*models.FinancialSnapshot, error) {
	query := "SELECT " + snapshotColumns + " FROM financial_snapshots WHERE beneficiary_id = $1 ORDER BY taken_at DESC LIMIT 1"
	var snapshot models.FinancialSnapshot
	if err := r.db.GetContext(ctx, &snapshot, query, beneficiaryID); err != nil {
		return nil, lookupErr(err)
	}
	return &snapshot, nil
}

// CreateWithSnapshot inserts a beneficiary and its initial snapshot atomically.
func (r *BeneficiaryRepository) CreateWithSnapshot(ctx context.Context, beneficiary *models.Beneficiary, snapshot *models.FinancialSnapshot) (err error) {
	now := time.Now().UTC()
	if beneficiary.ID == "" {
		beneficiary.ID = uuid.NewString()
	}
	if beneficiary.CreatedAt.IsZero() {
		beneficiary.CreatedAt = now
	}
	beneficiary.UpdatedAt = now

	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	snapshot.BeneficiaryID = beneficiary.ID
	if snapshot.TakenAt.IsZero() {
		snapshot.TakenAt = now
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = now
	}
	if len(snapshot.Details) == 0 {
		snapshot.Details = []byte("{}")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin beneficiary tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const beneficiaryQuery = `INSERT INTO beneficiaries (id, first_name, last_name, email, phone, created_by, created_at, updated_at)
VALUES (:id, :first_name, :last_name, :email, :phone, :created_by, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, beneficiaryQuery, beneficiary); err != nil {
		return fmt.Errorf("create beneficiary: %w", err)
	}

	const snapshotQuery = `INSERT INTO financial_snapshots (id, beneficiary_id, taken_at, total_income, total_expenses, details, created_at)
VALUES (:id, :beneficiary_id, :taken_at, :total_income, :total_expenses, :details, :created_at)`
	if _, err = tx.NamedExecContext(ctx, snapshotQuery, snapshot); err != nil {
		return fmt.Errorf("create financial snapshot: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit beneficiary tx: %w", err)
	}
	return nil
}

// Exists reports whether a beneficiary is registered.
func (r *BeneficiaryRepository) Exists(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error) {
	if exec == nil {
		exec = r.db
	}
	var found int
	if err := sqlx.GetContext(ctx, exec, &found, "SELECT 1 FROM beneficiaries WHERE id = $1", id); err != nil {
		if errors.Is(lookupErr(err), sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check beneficiary: %w", err)
	}
	return true, nil
}
