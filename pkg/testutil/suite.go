package testutil

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/herbstock/herbstock-backend/pkg/actor"
	"github.com/herbstock/herbstock-backend/pkg/database"
	"github.com/herbstock/herbstock-backend/pkg/location"
	"github.com/herbstock/herbstock-backend/pkg/logger"
	"github.com/herbstock/herbstock-backend/pkg/migration"
)

var (
	// Global test container (shared across all integration tests)
	globalContainer *PostgresContainer
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationSuite provides a base for integration tests with real PostgreSQL
type IntegrationSuite struct {
	Container *PostgresContainer
	DB        *database.DB
	Fixtures  *FixtureFactory
	Logger    *logger.Logger
}

// NewIntegrationSuite starts (or reuses) the shared container and applies
// the embedded migrations. Call it from TestMain.
//
// Usage:
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    flag.Parse()
//	    if testing.Short() {
//	        os.Exit(m.Run())
//	    }
//	    var err error
//	    suite, err = testutil.NewIntegrationSuite(context.Background())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    testutil.TerminateContainer(context.Background())
//	    os.Exit(code)
//	}
//
// Each test isolates its rows under its own location via NewLocation.
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	container, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.New("test", "test")

	migrator, err := migration.New(container.URL, log)
	if err != nil {
		return nil, err
	}
	defer migrator.Close()

	if err := migrator.Up(); err != nil {
		return nil, err
	}

	db, err := database.NewWithDSN(container.URL, log)
	if err != nil {
		return nil, err
	}

	return &IntegrationSuite{
		Container: container,
		DB:        db,
		Fixtures:  NewFixtureFactory(),
		Logger:    log,
	}, nil
}

// getOrCreateContainer returns the shared test container
func getOrCreateContainer(ctx context.Context) (*PostgresContainer, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
	})
	return globalContainer, containerErr
}

// NewLocation returns a fresh clinic location and a context carrying it
// together with a test actor.
func (s *IntegrationSuite) NewLocation(t *testing.T) (string, context.Context) {
	t.Helper()
	locationID := uuid.New().String()
	return locationID, LocationContext(locationID, "tester")
}

// Cleanup releases the suite's pool. The shared container stays up.
func (s *IntegrationSuite) Cleanup() error {
	return s.DB.Close()
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}

// LocationContext returns a background context scoped to a location and actor.
func LocationContext(locationID, actorID string) context.Context {
	ctx := location.WithLocationID(context.Background(), locationID)
	return actor.WithActor(ctx, &actor.Actor{ID: actorID, LocationID: locationID})
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
