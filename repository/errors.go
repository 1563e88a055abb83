package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when no row matches the lookup
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when the users.email unique index rejects an insert
	ErrDuplicateEmail = errors.New("email already registered")
)

const uniqueViolation = "23505"

// mapError translates driver errors into repository sentinels
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}
