package store

import (
	"database/sql"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

const uniqueViolation = "23505"

// UniqueViolation reports whether err is a unique-constraint failure and
// returns the violated constraint name.
func UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// NoRows reports whether err means the query matched nothing.
func NoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
