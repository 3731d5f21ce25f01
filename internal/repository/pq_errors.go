package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation      = "23505"
	pqForeignKeyViolation  = "23503"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqInvalidText          = "22P02"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// IsUniqueViolation reports a unique constraint failure.
func IsUniqueViolation(err error) bool {
	return pqCode(err) == pqUniqueViolation
}

// IsForeignKeyViolation reports a missing referenced row.
func IsForeignKeyViolation(err error) bool {
	return pqCode(err) == pqForeignKeyViolation
}

// IsSerializationFailure reports a transaction that lost a serializable race.
func IsSerializationFailure(err error) bool {
	code := pqCode(err)
	return code == pqSerializationFailure || code == pqDeadlockDetected
}

// IsInvalidText reports a value Postgres could not parse for its column, such as a malformed uuid.
func IsInvalidText(err error) bool {
	return pqCode(err) == pqInvalidText
}

// lookupErr reports a malformed identifier as a missing row.
func lookupErr(err error) error {
	if IsInvalidText(err) {
		return sql.ErrNoRows
	}
	return err
}
