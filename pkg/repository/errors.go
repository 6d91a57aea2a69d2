package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the repositories translate.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// MapError turns sql.ErrNoRows into notFound and unique violations into
// duplicate. Anything else is returned as is.
func MapError(err, notFound, duplicate error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return notFound
	case IsUniqueViolation(err):
		return duplicate
	}
	return err
}

// MapForeignKey turns a foreign key violation into missing, for inserts
// that reference a document or run that does not exist.
func MapForeignKey(err, missing error) error {
	if sqlState(err) == codeForeignKeyViolation {
		return missing
	}
	return err
}

// IsUniqueViolation reports a unique or exclusion index conflict, such as
// a second RUNNING run for the same document.
func IsUniqueViolation(err error) bool {
	return sqlState(err) == codeUniqueViolation
}

// IsCheckViolation reports a CHECK constraint failure, such as a negative
// calibration count.
func IsCheckViolation(err error) bool {
	return sqlState(err) == codeCheckViolation
}
