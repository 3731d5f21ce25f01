package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ona-asso/ona-api/internal/models"
)

var slotRowColumns = []string{"id", "calendar_id", "slot_type", "recurrence_type", "weekday", "specific_date", "start_time", "end_time",
	"valid_from", "valid_until", "title", "notes", "is_bookable", "max_appointments", "is_active", "created_by", "created_at", "updated_at"}

func TestAvailabilityRepositoryListActiveByCalendars(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewAvailabilityRepository(db)

	rows := sqlmock.NewRows(slotRowColumns).
		AddRow("slot-1", "cal-1", "AVAILABILITY", "WEEKLY", 0, nil, "09:00:00", "12:00:00", "2024-01-01", nil, "", "", true, 2, true, "v-1", repoStamp, repoStamp).
		AddRow("slot-2", "cal-1", "BUSY", "NONE", nil, "2024-01-17", "14:00:00", "15:00:00", "2024-01-01", "2024-06-30", "Réunion", "", false, 1, true, nil, repoStamp, repoStamp)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE calendar_id = ANY($1) AND is_active = TRUE")).
		WithArgs(pq.Array([]string{"cal-1"})).
		WillReturnRows(rows)

	slots, err := repo.ListActiveByCalendars(context.Background(), nil, []string{"cal-1"})
	require.NoError(t, err)
	require.Len(t, slots, 2)
	require.NotNil(t, slots[0].Weekday)
	assert.Equal(t, models.Monday, *slots[0].Weekday)
	assert.Nil(t, slots[0].SpecificDate)
	require.NotNil(t, slots[1].SpecificDate)
	assert.Equal(t, "2024-01-17", slots[1].SpecificDate.String())
	require.NotNil(t, slots[1].ValidUntil)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryList(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewAvailabilityRepository(db)

	slotType := models.SlotAvailability
	mock.ExpectQuery(regexp.QuoteMeta("FROM availability_slots WHERE 1=1 AND calendar_id = $1 AND slot_type = $2 AND is_active = TRUE ORDER BY")).
		WithArgs("cal-1", slotType).
		WillReturnRows(sqlmock.NewRows(slotRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM availability_slots")).
		WithArgs("cal-1", slotType).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	slots, total, err := repo.List(context.Background(), models.SlotFilter{CalendarID: "cal-1", SlotType: &slotType, ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.Zero(t, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryListExceptions(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewAvailabilityRepository(db)

	rows := sqlmock.NewRows([]string{"id", "slot_id", "exception_date", "exception_type", "new_start_time", "new_end_time", "new_date", "reason", "created_by", "created_at"}).
		AddRow("exc-1", "slot-1", "2024-01-15", "MODIFIED", "10:00:00", "11:00:00", nil, "Formation", "v-1", repoStamp)
	mock.ExpectQuery(regexp.QuoteMeta("(exception_date BETWEEN $2 AND $3) OR (new_date BETWEEN $2 AND $3)")).
		WithArgs(pq.Array([]string{"slot-1"}), "2024-01-15", "2024-01-21").
		WillReturnRows(rows)

	exceptions, err := repo.ListExceptions(context.Background(), nil, []string{"slot-1"}, models.MustParseDate("2024-01-15"), models.MustParseDate("2024-01-21"))
	require.NoError(t, err)
	require.Len(t, exceptions, 1)
	assert.Equal(t, models.ExceptionModified, exceptions[0].ExceptionType)
	require.NotNil(t, exceptions[0].NewStartTime)
	assert.Equal(t, models.NewTimeOfDay(10, 0), *exceptions[0].NewStartTime)
	assert.Nil(t, exceptions[0].NewDate)

	none, err := repo.ListExceptions(context.Background(), nil, nil, models.MustParseDate("2024-01-15"), models.MustParseDate("2024-01-21"))
	require.NoError(t, err)
	assert.Nil(t, none)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryCreateException(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewAvailabilityRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO availability_exceptions")).
		WillReturnError(&pq.Error{Code: pqUniqueViolation})

	err := repo.CreateException(context.Background(), &models.AvailabilityException{
		SlotID:        "slot-1",
		ExceptionDate: models.MustParseDate("2024-01-15"),
		ExceptionType: models.ExceptionCancelled,
	})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
