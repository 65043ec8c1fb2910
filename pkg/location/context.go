// Package location carries the clinic location that scopes every inventory
// operation. The identity layer resolves it; handlers and repositories read it.
package location

import (
	"context"
	"errors"
)

type contextKey string

const locationIDKey contextKey = "location_id"

var (
	// ErrNoLocationInContext is returned when the request carries no location
	ErrNoLocationInContext = errors.New("no location in context")
)

// WithLocationID adds the location ID to the context
func WithLocationID(ctx context.Context, locationID string) context.Context {
	return context.WithValue(ctx, locationIDKey, locationID)
}

// LocationID extracts the location ID from the context
func LocationID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(locationIDKey).(string)
	if !ok || id == "" {
		return "", ErrNoLocationInContext
	}
	return id, nil
}

// MustLocationID panics when the location is missing.
// Use only where a missing location is a programming error.
func MustLocationID(ctx context.Context) string {
	id, err := LocationID(ctx)
	if err != nil {
		panic("location ID not found in context")
	}
	return id
}
