package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ona-asso/ona-api/internal/models"
)

var volunteerRowColumns = []string{"id", "user_id", "first_name", "last_name", "email", "phone", "role", "status", "created_at", "updated_at"}

func TestVolunteerRepositoryListWithFilters(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewVolunteerRepository(db)

	role := models.RoleVolunteerInterview
	rows := sqlmock.NewRows(volunteerRowColumns).
		AddRow("v-1", nil, "Ada", "Martin", "ada@ona.test", nil, "VOLUNTEER_INTERVIEW", "ACTIVE", repoStamp, repoStamp)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND role = $1 AND (LOWER(first_name) LIKE $2 OR LOWER(last_name) LIKE $2 OR LOWER(email) LIKE $2) ORDER BY last_name ASC, first_name ASC LIMIT 20 OFFSET 0")).
		WithArgs(role, "%mar%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM volunteers")).
		WithArgs(role, "%mar%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.VolunteerFilter{Role: &role, Search: "MAR"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Ada Martin", items[0].FullName())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVolunteerRepositoryExistsByEmail(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewVolunteerRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM volunteers WHERE LOWER(email) = LOWER($1) AND id <> $2 LIMIT 1")).
		WithArgs("ada@ona.test", "v-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM volunteers WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("ada@ona.test").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByEmail(context.Background(), "ada@ona.test", "v-1")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repo.ExistsByEmail(context.Background(), "ada@ona.test", "")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVolunteerRepositoryCreateInTransaction(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewVolunteerRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO volunteers")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	volunteer := &models.Volunteer{FirstName: "Ada", LastName: "Martin", Email: "ada@ona.test", Role: models.RoleEmployee}
	require.NoError(t, repo.Create(context.Background(), tx, volunteer))
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, volunteer.ID)
	assert.Equal(t, models.VolunteerActive, volunteer.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVolunteerRepositoryUpdateRoleMissing(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewVolunteerRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE volunteers SET role = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(models.RoleVolunteerGovernance, sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateRole(context.Background(), nil, "missing", models.RoleVolunteerGovernance)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVolunteerRepositoryListWithoutCalendar(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewVolunteerRepository(db)

	rows := sqlmock.NewRows(volunteerRowColumns).
		AddRow("v-2", "u-2", "Bob", "Durand", "bob@ona.test", "0600000000", "EMPLOYEE", "ACTIVE", repoStamp, repoStamp)
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN volunteer_calendars c ON c.volunteer_id = v.id")).
		WithArgs(models.RoleVolunteerGovernance).
		WillReturnRows(rows)

	items, err := repo.ListWithoutCalendar(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].UserID)
	assert.Equal(t, "u-2", *items[0].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}
