package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/herbstock/herbstock-backend/internal/inventory/consumers"
	"github.com/herbstock/herbstock-backend/internal/inventory/domain"
	"github.com/herbstock/herbstock-backend/internal/inventory/events"
	"github.com/herbstock/herbstock-backend/internal/inventory/handler"
	"github.com/herbstock/herbstock-backend/internal/inventory/repository"
	"github.com/herbstock/herbstock-backend/internal/inventory/service"
	"github.com/herbstock/herbstock-backend/pkg/auth"
	"github.com/herbstock/herbstock-backend/pkg/config"
	"github.com/herbstock/herbstock-backend/pkg/database"
	"github.com/herbstock/herbstock-backend/pkg/httputil"
	"github.com/herbstock/herbstock-backend/pkg/logger"
	"github.com/herbstock/herbstock-backend/pkg/messaging"
	"github.com/herbstock/herbstock-backend/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Fails fast in production if required config is missing
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := events.NewInventoryEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	m := metrics.New()
	zone := cfg.Inventory.Location()
	policy := domain.ExpiryPolicy{
		WindowDays:   cfg.Inventory.ExpiryWindowDays,
		CriticalDays: cfg.Inventory.CriticalExpiryDays,
	}

	// Repositories
	itemRepo := repository.NewItemRepository(db)
	ledgerRepo := repository.NewTransactionRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	priceRepo := repository.NewPriceRepository(db)

	var sequence repository.OrderSequence = repository.NewPostgresOrderSequence(db)
	var redisClient *redis.Client
	if cfg.Inventory.OrderSequence == config.SequenceRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect to Redis")
		}
		sequence = repository.NewRedisOrderSequence(redisClient)
	}
	log.Info().Str("backend", cfg.Inventory.OrderSequence).Msg("order number sequence ready")

	// Services
	alertService := service.NewAlertService(db, itemRepo, alertRepo, publisher, m, policy, log)
	recorder := service.NewRecorder(db, itemRepo, ledgerRepo, alertService, publisher, m, cfg.Inventory.MaxRetries, log)
	inventoryService := service.NewInventoryService(itemRepo, ledgerRepo, alertRepo, recorder, alertService, policy, log)
	orderService := service.NewOrderService(db, orderRepo, itemRepo, sequence, recorder, publisher, m, zone, cfg.Inventory.MaxRetries, log)
	priceService := service.NewPriceService(db, priceRepo, alertService, cfg.Inventory.PriceChangeThresholdPct, log)

	handlers := &handler.Handlers{
		Items:        handler.NewItemHandler(inventoryService, log),
		Transactions: handler.NewTransactionHandler(recorder, inventoryService, log),
		Alerts:       handler.NewAlertHandler(alertService, log),
		Orders:       handler.NewOrderHandler(orderService, log),
		Prices:       handler.NewPriceHandler(priceService, log),
		Reports:      handler.NewReportHandler(inventoryService, log),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rmq.WatchConnection(ctx)

	herbConsumer, err := consumers.NewHerbEventConsumer(rmq, consumers.NewHerbEventHandler(itemRepo, log), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create herb event consumer")
	}
	if err := herbConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start herb event consumer")
	}

	scheduler := service.NewSweepScheduler(alertService, cfg.Inventory.SweepHour, zone, log)
	scheduler.Start(ctx)

	authenticator := auth.NewAuthenticator(auth.NewManager(&cfg.JWT), cfg.JWT.TrustGatewayHeaders, log)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(m.Middleware)
	r.Use(middleware.Timeout(60 * time.Second))

	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]any{
			"status":   "healthy",
			"service":  "inventory-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		}
		if redisClient != nil {
			redisStatus := "connected"
			if err := redisClient.Ping(r.Context()).Err(); err != nil {
				redisStatus = "unavailable"
			}
			status["redis"] = redisStatus
		}
		httputil.JSON(w, http.StatusOK, status)
	})

	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, m.Handler())
	}

	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Use(authenticator.Middleware)
		handlers.Mount(r)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stops the consumer, the connection watcher and the scheduler
	cancel()
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
