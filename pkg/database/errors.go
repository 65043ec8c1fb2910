package database

import (
	"net/http"
	"strings"

	"github.com/herbstock/herbstock-backend/pkg/errors"
	"github.com/lib/pq"
)

// SQLSTATE codes the inventory engine reacts to.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeForeignKeyViolation  = "23503"
	codeNotNullViolation     = "23502"
	codeNumericOverflow      = "22003"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	case codeCheckViolation:
		return mapCheckConstraint(pqErr)

	case codeUniqueViolation:
		return errors.Conflict(formatConstraintMessage(pqErr))

	case codeForeignKeyViolation:
		return errors.BadRequest("referenced record does not exist")

	case codeNotNullViolation:
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	case codeNumericOverflow:
		return errors.InvalidQuantity("value exceeds the supported numeric range")

	default:
		return nil
	}
}

// IsRetryable reports whether the statement failed because of a
// serialization conflict or a deadlock and can be replayed as a whole.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == codeSerializationFailure || pqErr.Code == codeDeadlockDetected
}

// IsUniqueViolation reports whether err violates the named unique constraint.
// An empty constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == codeUniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}

func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_non_negative"):
		return errors.Wrap(errors.ErrInsufficientStock, "INSUFFICIENT_STOCK", "stock would drop below zero", http.StatusConflict)

	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: draft, submitted, confirmed, shipped, received, cancelled",
		})

	case strings.Contains(constraint, "alert_type_valid"):
		return errors.Validation(map[string]string{
			"alert_type": "must be one of: low_stock, reorder_point, out_of_stock, expiring_soon, price_change",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "order_number"):
		return "a purchase order with this number already exists"
	case strings.Contains(constraint, "location_herb"):
		return "this herb is already stocked at the location"
	case strings.Contains(constraint, "receipt_line"):
		return "this order line has already been received"
	default:
		return "a record with these values already exists"
	}
}
