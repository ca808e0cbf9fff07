package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Error classes shared by every entity package. Packages declare their own
// sentinels wrapping one of these so callers can match either.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeNotNullViolation    = "23502"
	codeCheckViolation      = "23514"
	codeStringTooLong       = "22001"
	codeInvalidTextRep      = "22P02"
	codeNumericOutOfRange   = "22003"
)

// Invalidf builds an ErrInvalidInput carrying a caller-facing message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Classify maps Postgres constraint failures onto the shared error classes.
// Errors it does not recognise are returned unchanged.
func Classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s", ErrConflict, describe(pgErr))
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: unknown reference (%s)", ErrInvalidInput, describe(pgErr))
	case codeNotNullViolation, codeCheckViolation, codeStringTooLong, codeInvalidTextRep, codeNumericOutOfRange:
		return fmt.Errorf("%w: %s", ErrInvalidInput, describe(pgErr))
	}
	return err
}

// IsUniqueViolation reports whether err is a unique constraint failure,
// optionally on the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func describe(pgErr *pgconn.PgError) string {
	if pgErr.ConstraintName != "" {
		return pgErr.ConstraintName
	}
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	return pgErr.Message
}
