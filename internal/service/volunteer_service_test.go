package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ona-asso/ona-api/internal/models"
	appErrors "github.com/ona-asso/ona-api/pkg/errors"
)

type volunteerRepoStub struct {
	volunteers map[string]models.Volunteer
	emails     map[string]bool
	missing    []models.Volunteer
	createErr  error
}

func newVolunteerRepoStub(volunteers ...models.Volunteer) *volunteerRepoStub {
	repo := &volunteerRepoStub{volunteers: make(map[string]models.Volunteer), emails: make(map[string]bool)}
	for _, v := range volunteers {
		repo.volunteers[v.ID] = v
		repo.emails[v.Email] = true
	}
	return repo
}

func (s *volunteerRepoStub) List(ctx context.Context, filter models.VolunteerFilter) ([]models.Volunteer, int, error) {
	var out []models.Volunteer
	for _, v := range s.volunteers {
		out = append(out, v)
	}
	return out, len(out), nil
}

func (s *volunteerRepoStub) FindByID(ctx context.Context, id string) (*models.Volunteer, error) {
	v, ok := s.volunteers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &v, nil
}

func (s *volunteerRepoStub) ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error) {
	return s.emails[email], nil
}

func (s *volunteerRepoStub) Create(ctx context.Context, exec sqlx.ExtContext, volunteer *models.Volunteer) error {
	if s.createErr != nil {
		return s.createErr
	}
	if volunteer.ID == "" {
		volunteer.ID = "v-new"
	}
	s.volunteers[volunteer.ID] = *volunteer
	return nil
}

func (s *volunteerRepoStub) UpdateRole(ctx context.Context, exec sqlx.ExtContext, id string, role models.UserRole) error {
	v, ok := s.volunteers[id]
	if !ok {
		return sql.ErrNoRows
	}
	v.Role = role
	s.volunteers[id] = v
	return nil
}

func (s *volunteerRepoStub) ListWithoutCalendar(ctx context.Context) ([]models.Volunteer, error) {
	return s.missing, nil
}

func provisionRequest(email string, role models.UserRole) models.CreateVolunteerRequest {
	return models.CreateVolunteerRequest{FirstName: "Ada", LastName: "Martin", Email: email, Role: role}
}

func TestVolunteerServiceProvisionCreatesCalendar(t *testing.T) {
	calendars := newStubCalendarRepo()
	tx, mock := newTxProviderMock(t)
	svc := NewVolunteerService(newVolunteerRepoStub(), NewCalendarService(calendars, nil, nil, nil), tx, nil, nil)

	mock.ExpectBegin()
	mock.ExpectCommit()

	volunteer, err := svc.Provision(context.Background(), staffPrincipal, provisionRequest(" ada@ona.test ", models.RoleVolunteerInterview))
	require.NoError(t, err)
	assert.Equal(t, "ada@ona.test", volunteer.Email)
	assert.Equal(t, models.VolunteerActive, volunteer.Status)
	require.Len(t, calendars.created, 1)
	assert.Equal(t, volunteer.ID, calendars.created[0].VolunteerID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVolunteerServiceProvisionGovernanceHasNoCalendar(t *testing.T) {
	calendars := newStubCalendarRepo()
	tx, mock := newTxProviderMock(t)
	svc := NewVolunteerService(newVolunteerRepoStub(), NewCalendarService(calendars, nil, nil, nil), tx, nil, nil)

	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.Provision(context.Background(), staffPrincipal, provisionRequest("gil@ona.test", models.RoleVolunteerGovernance))
	require.NoError(t, err)
	assert.Empty(t, calendars.created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVolunteerServiceProvisionRejections(t *testing.T) {
	existing := models.Volunteer{ID: "v-ada", Email: "ada@ona.test", Role: models.RoleVolunteerInterview}
	tx, mock := newTxProviderMock(t)
	svc := NewVolunteerService(newVolunteerRepoStub(existing), NewCalendarService(newStubCalendarRepo(), nil, nil, nil), tx, nil, nil)

	_, err := svc.Provision(context.Background(), staffPrincipal, provisionRequest("ada@ona.test", models.RoleVolunteerInterview))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.Provision(context.Background(), adaPrincipal, provisionRequest("new@ona.test", models.RoleVolunteerInterview))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Provision(context.Background(), staffPrincipal, provisionRequest("not-an-email", models.UserRole("MANAGER")))
	require.Error(t, err)
	fields := appErrors.FromError(err).Fields
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "role")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVolunteerServiceProvisionRollsBack(t *testing.T) {
	repo := newVolunteerRepoStub()
	repo.createErr = errors.New("insert failed")
	tx, mock := newTxProviderMock(t)
	svc := NewVolunteerService(repo, NewCalendarService(newStubCalendarRepo(), nil, nil, nil), tx, nil, nil)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Provision(context.Background(), staffPrincipal, provisionRequest("new@ona.test", models.RoleEmployee))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVolunteerServiceChangeRoleToGovernanceDropsCalendar(t *testing.T) {
	calendars := newStubCalendarRepo(ownerFixture("cal-ada", "v-ada", "Ada", "Martin", models.RoleVolunteerInterview))
	repo := newVolunteerRepoStub(models.Volunteer{ID: "v-ada", Email: "ada@ona.test", Role: models.RoleVolunteerInterview})
	tx, mock := newTxProviderMock(t)
	svc := NewVolunteerService(repo, NewCalendarService(calendars, nil, nil, nil), tx, nil, nil)

	mock.ExpectBegin()
	mock.ExpectCommit()

	updated, err := svc.ChangeRole(context.Background(), staffPrincipal, "v-ada", models.ChangeRoleRequest{Role: models.RoleVolunteerGovernance})
	require.NoError(t, err)
	assert.Equal(t, models.RoleVolunteerGovernance, updated.Role)
	assert.Equal(t, []string{"v-ada"}, calendars.deleted)
	assert.Equal(t, models.RoleVolunteerGovernance, repo.volunteers["v-ada"].Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVolunteerServiceChangeRoleUnchangedSkipsTransaction(t *testing.T) {
	repo := newVolunteerRepoStub(models.Volunteer{ID: "v-ada", Email: "ada@ona.test", Role: models.RoleVolunteerInterview})
	tx, mock := newTxProviderMock(t)
	svc := NewVolunteerService(repo, NewCalendarService(newStubCalendarRepo(), nil, nil, nil), tx, nil, nil)

	_, err := svc.ChangeRole(context.Background(), staffPrincipal, "v-ada", models.ChangeRoleRequest{Role: models.RoleVolunteerInterview})
	require.NoError(t, err)

	_, err = svc.ChangeRole(context.Background(), staffPrincipal, "missing", models.ChangeRoleRequest{Role: models.RoleEmployee})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVolunteerServiceBackfillCalendars(t *testing.T) {
	calendars := newStubCalendarRepo()
	repo := newVolunteerRepoStub()
	repo.missing = []models.Volunteer{
		{ID: "v-ada", Role: models.RoleVolunteerInterview},
		{ID: "v-cle", Role: models.RoleEmployee},
	}
	tx, _ := newTxProviderMock(t)
	svc := NewVolunteerService(repo, NewCalendarService(calendars, nil, nil, nil), tx, nil, nil)

	created, err := svc.BackfillCalendars(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Len(t, calendars.created, 2)
}
