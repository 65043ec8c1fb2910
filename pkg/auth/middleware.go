package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/herbstock/herbstock-backend/pkg/actor"
	"github.com/herbstock/herbstock-backend/pkg/errors"
	"github.com/herbstock/herbstock-backend/pkg/httputil"
	"github.com/herbstock/herbstock-backend/pkg/location"
	"github.com/herbstock/herbstock-backend/pkg/logger"
)

// Headers set by the API gateway after it has verified the caller
const (
	HeaderLocationID  = "X-Location-ID"
	HeaderUserID      = "X-User-ID"
	HeaderUserName    = "X-User-Name"
	HeaderPermissions = "X-User-Permissions"
)

type permissionsKey struct{}

// Authenticator resolves the caller of every request
type Authenticator struct {
	tokens       *Manager
	trustGateway bool
	logger       *logger.Logger
}

// NewAuthenticator creates the middleware. With trustGateway set, requests
// without a bearer token are accepted on the gateway headers alone.
func NewAuthenticator(tokens *Manager, trustGateway bool, log *logger.Logger) *Authenticator {
	return &Authenticator{
		tokens:       tokens,
		trustGateway: trustGateway,
		logger:       log.WithComponent("auth"),
	}
}

// Middleware attaches actor, location and permissions to the request context
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.identify(r)
		if err != nil {
			httputil.Error(w, err)
			return
		}

		if _, err := uuid.Parse(id.LocationID); err != nil {
			httputil.Error(w, errors.Forbidden("missing or invalid location context"))
			return
		}

		ctx := location.WithLocationID(r.Context(), id.LocationID)
		ctx = actor.WithActor(ctx, &actor.Actor{ID: id.UserID, Name: id.Name, LocationID: id.LocationID})
		ctx = context.WithValue(ctx, permissionsKey{}, id.Permissions)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) identify(r *http.Request) (Identity, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return Identity{}, errors.Unauthorized("invalid authorization header format")
		}

		claims, err := a.tokens.Parse(token)
		if err != nil {
			a.logger.Debug().Err(err).Msg("token validation failed")
			return Identity{}, err
		}
		return Identity{
			UserID:      claims.UserID,
			Name:        claims.Name,
			LocationID:  claims.LocationID,
			Permissions: claims.Permissions,
		}, nil
	}

	if !a.trustGateway {
		return Identity{}, errors.Unauthorized("missing authorization header")
	}

	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		return Identity{}, errors.Unauthorized("missing user context")
	}

	var perms []string
	if raw := r.Header.Get(HeaderPermissions); raw != "" {
		if err := json.Unmarshal([]byte(raw), &perms); err != nil {
			return Identity{}, errors.BadRequest("malformed " + HeaderPermissions + " header")
		}
	}

	return Identity{
		UserID:      userID,
		Name:        r.Header.Get(HeaderUserName),
		LocationID:  r.Header.Get(HeaderLocationID),
		Permissions: perms,
	}, nil
}

// Permissions returns the permissions attached by the middleware
func Permissions(ctx context.Context) []string {
	perms, _ := ctx.Value(permissionsKey{}).([]string)
	return perms
}

// Require rejects requests whose caller holds none of the given permissions
func Require(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasAnyPermission(Permissions(r.Context()), perms...) {
				httputil.Error(w, errors.Forbidden("insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
