package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the repositories branch on.
const (
	codeUniqueViolation = "23505"
	codeUndefinedColumn = "42703"
)

func pgError(err error) *pgconn.PgError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr
	}
	return nil
}

// IsUniqueViolation reports whether err was raised by a unique index.
func IsUniqueViolation(err error) bool {
	e := pgError(err)
	return e != nil && e.Code == codeUniqueViolation
}

// IsUndefinedColumn reports whether err references a column the schema
// does not have.
func IsUndefinedColumn(err error) bool {
	e := pgError(err)
	return e != nil && e.Code == codeUndefinedColumn
}

// ConstraintName returns the violated constraint, or "".
func ConstraintName(err error) string {
	if e := pgError(err); e != nil {
		return e.ConstraintName
	}
	return ""
}

func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
