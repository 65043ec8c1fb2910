package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/herbstock/herbstock-backend/pkg/actor"
	"github.com/herbstock/herbstock-backend/pkg/auth"
	"github.com/herbstock/herbstock-backend/pkg/config"
	"github.com/herbstock/herbstock-backend/pkg/location"
	"github.com/herbstock/herbstock-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLocation = "3f1c1f2e-9a0b-4c55-8d0e-6b9f7f1a2c01"

func newManager() *auth.Manager {
	return auth.NewManager(&config.JWTConfig{
		Secret:       "test-secret",
		Issuer:       "herbstock",
		AccessExpiry: time.Minute,
	})
}

// echoHandler reports what the middleware put into the context
func echoHandler(t *testing.T, gotUser, gotLocation *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotUser = actor.IDFromContext(r.Context())
		*gotLocation, _ = location.LocationID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

// ============================================================================
// TOKEN TESTS
// ============================================================================

func TestManager_IssueAndParse(t *testing.T) {
	m := newManager()

	token, err := m.Issue(auth.Identity{
		UserID:      "user-1",
		Name:        "Dr. Wang",
		LocationID:  testLocation,
		Permissions: []string{"inventory.*"},
	})
	require.NoError(t, err)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, testLocation, claims.LocationID)
	assert.Equal(t, []string{"inventory.*"}, claims.Permissions)
}

func TestManager_ParseRejectsForeignSecret(t *testing.T) {
	other := auth.NewManager(&config.JWTConfig{Secret: "other", Issuer: "herbstock", AccessExpiry: time.Minute})
	token, err := other.Issue(auth.Identity{UserID: "user-1", LocationID: testLocation})
	require.NoError(t, err)

	_, err = newManager().Parse(token)
	assert.Error(t, err)
}

// ============================================================================
// MIDDLEWARE TESTS
// ============================================================================

func TestAuthenticator_BearerToken(t *testing.T) {
	m := newManager()
	a := auth.NewAuthenticator(m, false, logger.Nop())

	token, err := m.Issue(auth.Identity{UserID: "user-1", LocationID: testLocation})
	require.NoError(t, err)

	var user, loc string
	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory/items", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	a.Middleware(echoHandler(t, &user, &loc)).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "user-1", user)
	assert.Equal(t, testLocation, loc)
}

func TestAuthenticator_GatewayHeaders(t *testing.T) {
	tests := []struct {
		name         string
		trustGateway bool
		headers      map[string]string
		wantStatus   int
	}{
		{
			name:         "trusted gateway headers",
			trustGateway: true,
			headers:      map[string]string{auth.HeaderUserID: "user-2", auth.HeaderLocationID: testLocation},
			wantStatus:   http.StatusOK,
		},
		{
			name:         "headers ignored when gateway is not trusted",
			trustGateway: false,
			headers:      map[string]string{auth.HeaderUserID: "user-2", auth.HeaderLocationID: testLocation},
			wantStatus:   http.StatusUnauthorized,
		},
		{
			name:         "location must be a uuid",
			trustGateway: true,
			headers:      map[string]string{auth.HeaderUserID: "user-2", auth.HeaderLocationID: "main-clinic"},
			wantStatus:   http.StatusForbidden,
		},
		{
			name:         "malformed permissions header",
			trustGateway: true,
			headers: map[string]string{
				auth.HeaderUserID: "user-2", auth.HeaderLocationID: testLocation, auth.HeaderPermissions: "inventory.read",
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := auth.NewAuthenticator(newManager(), tt.trustGateway, logger.Nop())

			var user, loc string
			req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory/items", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()

			a.Middleware(echoHandler(t, &user, &loc)).ServeHTTP(rr, req)
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestRequire(t *testing.T) {
	a := auth.NewAuthenticator(newManager(), true, logger.Nop())
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := a.Middleware(auth.Require(auth.PermOrdersReceive)(ok))

	send := func(perms string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/orders/x/receive", nil)
		req.Header.Set(auth.HeaderUserID, "user-3")
		req.Header.Set(auth.HeaderLocationID, testLocation)
		req.Header.Set(auth.HeaderPermissions, perms)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, send(`["inventory.*"]`))
	assert.Equal(t, http.StatusOK, send(`["inventory.orders.receive"]`))
	assert.Equal(t, http.StatusForbidden, send(`["inventory.read"]`))
	assert.Equal(t, http.StatusForbidden, send(`[]`))
}

// ============================================================================
// PERMISSION MATCHING TESTS
// ============================================================================

func TestHasPermission(t *testing.T) {
	tests := []struct {
		granted  []string
		required string
		want     bool
	}{
		{[]string{"*"}, auth.PermWrite, true},
		{[]string{"inventory.*"}, auth.PermAlertsSweep, true},
		{[]string{"inventory.orders.*"}, auth.PermOrdersReceive, true},
		{[]string{"inventory.orders.*"}, auth.PermAlertsResolve, false},
		{[]string{auth.PermRead}, auth.PermWrite, false},
		{nil, "", true},
		{nil, auth.PermRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.required, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.HasPermission(tt.granted, tt.required))
		})
	}
}
