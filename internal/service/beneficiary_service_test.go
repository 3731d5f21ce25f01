package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ona-asso/ona-api/internal/models"
	appErrors "github.com/ona-asso/ona-api/pkg/errors"
)

type beneficiaryRepoStub struct {
	beneficiaries map[string]models.Beneficiary
	snapshots     map[string]models.FinancialSnapshot
	createErr     error
}

func newBeneficiaryRepoStub() *beneficiaryRepoStub {
	return &beneficiaryRepoStub{
		beneficiaries: make(map[string]models.Beneficiary),
		snapshots:     make(map[string]models.FinancialSnapshot),
	}
}

func (s *beneficiaryRepoStub) FindByID(ctx context.Context, id string) (*models.Beneficiary, error) {
	b, ok := s.beneficiaries[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &b, nil
}

func (s *beneficiaryRepoStub) LatestSnapshot(ctx context.Context, beneficiaryID string) (*models.FinancialSnapshot, error) {
	snapshot, ok := s.snapshots[beneficiaryID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &snapshot, nil
}

func (s *beneficiaryRepoStub) CreateWithSnapshot(ctx context.Context, beneficiary *models.Beneficiary, snapshot *models.FinancialSnapshot) error {
	if s.createErr != nil {
		return s.createErr
	}
	beneficiary.ID = "ben-new"
	snapshot.ID = "snap-new"
	snapshot.BeneficiaryID = beneficiary.ID
	s.beneficiaries[beneficiary.ID] = *beneficiary
	s.snapshots[beneficiary.ID] = *snapshot
	return nil
}

func TestBeneficiaryServiceCreate(t *testing.T) {
	repo := newBeneficiaryRepoStub()
	svc := NewBeneficiaryService(repo, nil, nil)

	created, err := svc.Create(context.Background(), adaPrincipal, models.CreateBeneficiaryRequest{
		FirstName: "  Lina ",
		LastName:  "Petit",
		Snapshot:  models.FinancialSnapshotRequest{TotalIncome: 1200, TotalExpenses: 950},
	})
	require.NoError(t, err)
	assert.Equal(t, "ben-new", created.ID)
	assert.Equal(t, "Lina", created.FirstName)
	require.NotNil(t, created.CreatedBy)
	assert.Equal(t, "v-ada", *created.CreatedBy)
	require.NotNil(t, created.Snapshot)
	assert.Equal(t, "ben-new", created.Snapshot.BeneficiaryID)
	assert.InDelta(t, 250, created.Snapshot.Balance(), 0.001)
}

func TestBeneficiaryServiceCreateValidation(t *testing.T) {
	svc := NewBeneficiaryService(newBeneficiaryRepoStub(), nil, nil)

	_, err := svc.Create(context.Background(), staffPrincipal, models.CreateBeneficiaryRequest{
		LastName: "Petit",
		Snapshot: models.FinancialSnapshotRequest{TotalIncome: -1},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), governancePrincipal, models.CreateBeneficiaryRequest{FirstName: "Lina", LastName: "Petit"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestBeneficiaryServiceCreateFailureStoresNothing(t *testing.T) {
	repo := newBeneficiaryRepoStub()
	repo.createErr = errors.New("snapshot insert failed")
	svc := NewBeneficiaryService(repo, nil, nil)

	_, err := svc.Create(context.Background(), staffPrincipal, models.CreateBeneficiaryRequest{FirstName: "Lina", LastName: "Petit"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	assert.Empty(t, repo.beneficiaries)
}

func TestBeneficiaryServiceGet(t *testing.T) {
	repo := newBeneficiaryRepoStub()
	repo.beneficiaries["ben-1"] = models.Beneficiary{ID: "ben-1", FirstName: "Lina", LastName: "Petit"}
	repo.beneficiaries["ben-2"] = models.Beneficiary{ID: "ben-2", FirstName: "Noé", LastName: "Blanc"}
	repo.snapshots["ben-1"] = models.FinancialSnapshot{ID: "snap-1", BeneficiaryID: "ben-1", TotalIncome: 900}
	svc := NewBeneficiaryService(repo, nil, nil)

	withSnapshot, err := svc.Get(context.Background(), adaPrincipal, "ben-1")
	require.NoError(t, err)
	require.NotNil(t, withSnapshot.Snapshot)
	assert.Equal(t, "snap-1", withSnapshot.Snapshot.ID)

	withoutSnapshot, err := svc.Get(context.Background(), adaPrincipal, "ben-2")
	require.NoError(t, err)
	assert.Nil(t, withoutSnapshot.Snapshot)

	_, err = svc.Get(context.Background(), adaPrincipal, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
