package repository

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/herbstock/herbstock-backend/pkg/database"
	"github.com/herbstock/herbstock-backend/pkg/errors"
	"github.com/herbstock/herbstock-backend/pkg/location"
)

// where accumulates AND-ed conditions with positional arguments.
// Each clause uses ? for its single argument.
type where struct {
	clauses []string
	args    []any
}

func newWhere(clause string, arg any) *where {
	w := &where{}
	return w.and(clause, arg)
}

func (w *where) and(clause string, arg any) *where {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, strings.Replace(clause, "?", "$"+strconv.Itoa(len(w.args)), 1))
	return w
}

// raw adds a clause that takes no argument
func (w *where) raw(clause string) *where {
	w.clauses = append(w.clauses, clause)
	return w
}

func (w *where) String() string {
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// page appends LIMIT/OFFSET when limit is positive
func (w *where) page(limit, offset int) string {
	if limit <= 0 {
		return ""
	}
	w.args = append(w.args, limit, offset)
	n := len(w.args)
	return " LIMIT $" + strconv.Itoa(n-1) + " OFFSET $" + strconv.Itoa(n)
}

// scopedLocation returns the location carried by ctx. Every location-scoped
// query fails fast without one.
func scopedLocation(ctx context.Context) (string, error) {
	id, err := location.LocationID(ctx)
	if err != nil {
		return "", errors.Forbidden("location context required")
	}
	return id, nil
}

// translate maps driver errors onto the application taxonomy.
func translate(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errors.NotFound(resource)
	}
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}
