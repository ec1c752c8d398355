package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// IsUniqueViolation reports whether the provided error references a Postgres
// unique violation constraint. When constraintName is provided, the helper looks
// for the constraint text in the error message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value")
}

// Postgres error classes that signal a transaction worth retrying.
const (
	pgClassSerializationFailure = "40001"
	pgClassDeadlockDetected     = "40P01"
	pgClassLockNotAvailable     = "55P03"
)

// IsRetryableTxError reports whether the error is a transient transaction
// failure (serialization conflict, deadlock, lock timeout) that the caller may
// safely retry after the transaction rolled back.
func IsRetryableTxError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgClassSerializationFailure, pgClassDeadlockDetected, pgClassLockNotAvailable:
			return true
		}
	}
	return false
}
