package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Beneficiary is a person followed by the association.
type Beneficiary struct {
	ID        string    `db:"id" json:"id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	CreatedBy *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name.
func (b Beneficiary) FullName() string {
	return Volunteer{FirstName: b.FirstName, LastName: b.LastName}.FullName()
}

// FinancialSnapshot is a point-in-time record of a beneficiary's budget.
type FinancialSnapshot struct {
	ID            string         `db:"id" json:"id"`
	BeneficiaryID string         `db:"beneficiary_id" json:"beneficiary_id"`
	TakenAt       time.Time      `db:"taken_at" json:"taken_at"`
	TotalIncome   float64        `db:"total_income" json:"total_income"`
	TotalExpenses float64        `db:"total_expenses" json:"total_expenses"`
	Details       types.JSONText `db:"details" json:"details,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// Balance returns income minus expenses.
func (f FinancialSnapshot) Balance() float64 {
	return f.TotalIncome - f.TotalExpenses
}

// BeneficiaryWithSnapshot bundles a beneficiary and its latest snapshot.
type BeneficiaryWithSnapshot struct {
	Beneficiary
	Snapshot *FinancialSnapshot `json:"snapshot,omitempty"`
}

// CreateBeneficiaryRequest registers a beneficiary with its initial financial snapshot.
type CreateBeneficiaryRequest struct {
	FirstName string                   `json:"first_name" validate:"required,max=100"`
	LastName  string                   `json:"last_name" validate:"required,max=100"`
	Email     *string                  `json:"email" validate:"omitempty,email"`
	Phone     *string                  `json:"phone" validate:"omitempty,max=30"`
	Snapshot  FinancialSnapshotRequest `json:"snapshot"`
}

// FinancialSnapshotRequest is the initial budget captured on registration.
type FinancialSnapshotRequest struct {
	TotalIncome   float64        `json:"total_income" validate:"min=0"`
	TotalExpenses float64        `json:"total_expenses" validate:"min=0"`
	Details       types.JSONText `json:"details"`
}
