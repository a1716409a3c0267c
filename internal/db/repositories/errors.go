// Package repositories implements the persistence layer over PostgreSQL.
//
// Conventions, shared by every repository here:
//   - Lookups return (nil, nil) for "not found"; errors are reserved for real
//     store failures. Callers translate nil into 404s at the HTTP boundary.
//   - All ids are canonicalized to lowercase before touching the database.
//   - Unique constraint violations surface as ErrUniqueViolation so callers can
//     treat an id collision on commit as a recoverable conflict (regenerate and
//     retry) rather than a fatal error.
package repositories

import (
	"errors"

	"github.com/lib/pq"
)

// ErrUniqueViolation indicates an insert or update hit a uniqueness constraint
// (id collision, duplicate membership row, taken organisation name).
var ErrUniqueViolation = errors.New("unique constraint violation")

// uniqueViolationCode is PostgreSQL error class 23505
const uniqueViolationCode = "23505"

func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
		return ErrUniqueViolation
	}
	return err
}
