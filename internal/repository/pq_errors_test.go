package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupErr(t *testing.T) {
	assert.ErrorIs(t, lookupErr(&pq.Error{Code: pqInvalidText}), sql.ErrNoRows)
	assert.ErrorIs(t, lookupErr(sql.ErrNoRows), sql.ErrNoRows)

	other := errors.New("connection reset")
	assert.Equal(t, other, lookupErr(other))
	assert.False(t, IsInvalidText(&pq.Error{Code: pqUniqueViolation}))
}

func TestLookupsTreatMalformedIDAsMissing(t *testing.T) {
	malformed := &pq.Error{Code: pqInvalidText, Message: `invalid input syntax for type uuid: "abc"`}

	cases := []struct {
		name   string
		clause string
		lookup func(db *sqlx.DB) error
	}{
		{"appointment", "FROM appointments WHERE id = $1", func(db *sqlx.DB) error {
			_, err := NewAppointmentRepository(db).FindByID(context.Background(), "abc")
			return err
		}},
		{"appointment detail", "WHERE a.id = $1", func(db *sqlx.DB) error {
			_, err := NewAppointmentRepository(db).FindDetail(context.Background(), "abc")
			return err
		}},
		{"calendar owner", "WHERE c.id = $1", func(db *sqlx.DB) error {
			_, err := NewCalendarRepository(db).FindOwner(context.Background(), "abc")
			return err
		}},
		{"slot", "FROM availability_slots WHERE id = $1", func(db *sqlx.DB) error {
			_, err := NewAvailabilityRepository(db).FindByID(context.Background(), "abc")
			return err
		}},
		{"volunteer", "FROM volunteers WHERE id = $1", func(db *sqlx.DB) error {
			_, err := NewVolunteerRepository(db).FindByID(context.Background(), "abc")
			return err
		}},
		{"beneficiary", "FROM beneficiaries WHERE id = $1", func(db *sqlx.DB) error {
			_, err := NewBeneficiaryRepository(db).FindByID(context.Background(), "abc")
			return err
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newSchedulingRepoMock(t)
			mock.ExpectQuery(regexp.QuoteMeta(tc.clause)).
				WithArgs("abc").
				WillReturnError(malformed)

			err := tc.lookup(db)
			assert.ErrorIs(t, err, sql.ErrNoRows)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBeneficiaryRepositoryExistsMalformedID(t *testing.T) {
	db, mock := newSchedulingRepoMock(t)
	repo := NewBeneficiaryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM beneficiaries WHERE id = $1")).
		WithArgs("not-a-uuid").
		WillReturnError(&pq.Error{Code: pqInvalidText})

	exists, err := repo.Exists(context.Background(), nil, "not-a-uuid")
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
