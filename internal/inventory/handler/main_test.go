package handler_test

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/herbstock/herbstock-backend/internal/inventory/domain"
	"github.com/herbstock/herbstock-backend/internal/inventory/events"
	"github.com/herbstock/herbstock-backend/internal/inventory/handler"
	"github.com/herbstock/herbstock-backend/internal/inventory/repository"
	"github.com/herbstock/herbstock-backend/internal/inventory/service"
	"github.com/herbstock/herbstock-backend/pkg/auth"
	"github.com/herbstock/herbstock-backend/pkg/config"
	"github.com/herbstock/herbstock-backend/pkg/database"
	"github.com/herbstock/herbstock-backend/pkg/logger"
	"github.com/herbstock/herbstock-backend/pkg/metrics"
	"github.com/herbstock/herbstock-backend/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}

	code := m.Run()
	suite.Cleanup()
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

// allPermissions is what a clinic manager holds
var allPermissions = []string{"inventory.*"}

// newRouter wires the inventory API the way the service binary does,
// behind gateway-header authentication. Without the integration suite the
// repositories have no database; only requests rejected before the
// service layer may be sent.
func newRouter(t *testing.T) http.Handler {
	t.Helper()

	var db *database.DB
	if suite != nil {
		db = suite.DB
	}

	log := logger.Nop()
	m := metrics.New()
	publisher := events.NewWithPublisher(testutil.NewMockPublisher(), log)

	items := repository.NewItemRepository(db)
	ledger := repository.NewTransactionRepository(db)
	alertRepo := repository.NewAlertRepository(db)

	alerts := service.NewAlertService(db, items, alertRepo, publisher, m, domain.DefaultExpiryPolicy, log)
	recorder := service.NewRecorder(db, items, ledger, alerts, publisher, m, 3, log)
	inventory := service.NewInventoryService(items, ledger, alertRepo, recorder, alerts, domain.DefaultExpiryPolicy, log)
	orders := service.NewOrderService(db, repository.NewOrderRepository(db), items, repository.NewPostgresOrderSequence(db),
		recorder, publisher, m, time.UTC, 3, log)
	prices := service.NewPriceService(db, repository.NewPriceRepository(db), alerts, 10, log)

	h := &handler.Handlers{
		Items:        handler.NewItemHandler(inventory, log),
		Transactions: handler.NewTransactionHandler(recorder, inventory, log),
		Alerts:       handler.NewAlertHandler(alerts, log),
		Orders:       handler.NewOrderHandler(orders, log),
		Prices:       handler.NewPriceHandler(prices, log),
		Reports:      handler.NewReportHandler(inventory, log),
	}

	authenticator := auth.NewAuthenticator(auth.NewManager(&config.JWTConfig{Secret: "test-secret", AccessExpiry: time.Hour}), true, log)

	r := chi.NewRouter()
	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Use(authenticator.Middleware)
		h.Mount(r)
	})
	return r
}
