package services

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Error kinds surfaced to callers. Wrap them with newError to attach a
// human-readable message; errors.Is still matches the kind.
var (
	ErrNotFound        = errors.New("not_found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidState    = errors.New("invalid_state")
	ErrInvalidInput    = errors.New("invalid_input")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrConflict        = errors.New("conflict")
)

type ServiceError struct {
	Kind    error
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func (e *ServiceError) Unwrap() error { return e.Kind }

func newError(kind error, message string) error {
	return &ServiceError{Kind: kind, Message: message}
}

// Kind returns the sentinel behind err, or nil for unexpected failures.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrForbidden, ErrInvalidState, ErrInvalidInput, ErrUnauthenticated, ErrConflict} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// notFoundOr turns gorm's missing-record error into a NotFound with message.
func notFoundOr(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newError(ErrNotFound, message)
	}
	return err
}

// isUniqueViolation recognizes duplicate keys from Postgres (SQLSTATE 23505)
// and from dialectors that translate errors into gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
