package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ona-asso/ona-api/internal/authz"
	"github.com/ona-asso/ona-api/internal/models"
	appErrors "github.com/ona-asso/ona-api/pkg/errors"
)

type beneficiaryRepository interface {
	FindByID(ctx context.Context, id string) (*models.Beneficiary, error)
	LatestSnapshot(ctx context.Context, beneficiaryID string) (*models.FinancialSnapshot, error)
	CreateWithSnapshot(ctx context.Context, beneficiary *models.Beneficiary, snapshot *models.FinancialSnapshot) error
}

// BeneficiaryService registers beneficiaries and reads their budget.
type BeneficiaryService struct {
	repo      beneficiaryRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBeneficiaryService constructs a BeneficiaryService.
func NewBeneficiaryService(repo beneficiaryRepository, validate *validator.Validate, logger *zap.Logger) *BeneficiaryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BeneficiaryService{repo: repo, validator: validate, logger: logger}
}

// Create registers a beneficiary together with its initial financial snapshot.
// Neither row is stored unless both are.
func (s *BeneficiaryService) Create(ctx context.Context, principal authz.Principal, req models.CreateBeneficiaryRequest) (*models.BeneficiaryWithSnapshot, error) {
	if err := authz.Authorize(principal, authz.ActionRead, authz.Resource{}); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidator(err, "invalid beneficiary payload")
	}

	beneficiary := &models.Beneficiary{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     req.Email,
		Phone:     req.Phone,
	}
	if principal.VolunteerID != "" {
		createdBy := principal.VolunteerID
		beneficiary.CreatedBy = &createdBy
	}
	snapshot := &models.FinancialSnapshot{
		TotalIncome:   req.Snapshot.TotalIncome,
		TotalExpenses: req.Snapshot.TotalExpenses,
		Details:       req.Snapshot.Details,
	}

	if err := s.repo.CreateWithSnapshot(ctx, beneficiary, snapshot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create beneficiary")
	}
	s.logger.Info("beneficiary registered", zap.String("beneficiary_id", beneficiary.ID))
	return &models.BeneficiaryWithSnapshot{Beneficiary: *beneficiary, Snapshot: snapshot}, nil
}

// Get returns a beneficiary with its latest snapshot.
func (s *BeneficiaryService) Get(ctx context.Context, principal authz.Principal, id string) (*models.BeneficiaryWithSnapshot, error) {
	if err := authz.Authorize(principal, authz.ActionRead, authz.Resource{}); err != nil {
		return nil, err
	}
	beneficiary, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "beneficiary not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load beneficiary")
	}
	result := &models.BeneficiaryWithSnapshot{Beneficiary: *beneficiary}
	snapshot, err := s.repo.LatestSnapshot(ctx, id)
	switch {
	case err == nil:
		result.Snapshot = snapshot
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load financial snapshot")
	}
	return result, nil
}
