// Package actor identifies who performed a stock-affecting action.
//
// Ledger entries, alert resolutions and purchase orders record the actor ID
// so the audit trail names a person, or the system for scheduled work.
package actor

import (
	"context"
	"fmt"
)

// SystemID is the actor ID recorded for scheduled and automatic work.
const SystemID = "00000000-0000-0000-0000-000000000000"

// Actor represents the entity performing an action in the system.
type Actor struct {
	// ID is the user ID issued by the identity layer
	ID string `json:"id"`

	// Name is a display name, optional
	Name string `json:"name,omitempty"`

	// LocationID is the clinic location the actor is acting for
	LocationID string `json:"location_id"`
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil || a.IsSystem() {
		return "system"
	}
	if a.Name == "" {
		return a.ID
	}
	return fmt.Sprintf("%s (%s)", a.Name, a.ID)
}

type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context.
// Returns nil if no actor is present.
func FromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	a, ok := ctx.Value(actorContextKey).(*Actor)
	if !ok {
		return nil
	}
	return a
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, a)
}

// IDFromContext returns the acting user ID, or the system ID when the
// context carries no actor.
func IDFromContext(ctx context.Context) string {
	if a := FromContext(ctx); a != nil && a.ID != "" {
		return a.ID
	}
	return SystemID
}

// SystemActor returns an Actor representing the system itself.
// Use this for the daily sweep and other scheduled work.
func SystemActor() *Actor {
	return &Actor{
		ID:   SystemID,
		Name: "System",
	}
}

// IsSystem returns true if the actor represents the system.
func (a *Actor) IsSystem() bool {
	if a == nil {
		return true
	}
	return a.ID == SystemID
}
