package postgres

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"insightboard/internal/domain"
)

const backendName = "postgres"

// IsPgDuplicateError checks if error is a unique constraint violation
func IsPgDuplicateError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23505 = unique_violation
		return pgErr.Code == "23505"
	}
	return false
}

// IsPgNoRowsError checks if error is a "no rows" error
func IsPgNoRowsError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsPgConnectionError reports whether err means the database could not be
// reached, as opposed to the statement being rejected.
func IsPgConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 = connection_exception, 57P0x = operator intervention
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P0")
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// mapError translates driver errors into domain errors. Errors that are
// already domain errors pass through.
func mapError(err error, resource, id string) error {
	switch {
	case err == nil:
		return nil
	case IsPgNoRowsError(err):
		return domain.NewNotFound(resource, id)
	case IsPgDuplicateError(err):
		return &domain.DuplicateIDError{Resource: resource, ID: id}
	case IsPgConnectionError(err):
		return domain.Unavailable(backendName, err)
	}
	return err
}
