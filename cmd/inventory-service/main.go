package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/farmdash/farmdash-backend/internal/inventory/advisor"
	"github.com/farmdash/farmdash-backend/internal/inventory/alerts"
	"github.com/farmdash/farmdash-backend/internal/inventory/backend"
	"github.com/farmdash/farmdash-backend/internal/inventory/bus"
	"github.com/farmdash/farmdash-backend/internal/inventory/cache"
	"github.com/farmdash/farmdash-backend/internal/inventory/consumers"
	"github.com/farmdash/farmdash-backend/internal/inventory/events"
	"github.com/farmdash/farmdash-backend/internal/inventory/geo"
	"github.com/farmdash/farmdash-backend/internal/inventory/handler"
	"github.com/farmdash/farmdash-backend/internal/inventory/journal"
	"github.com/farmdash/farmdash-backend/internal/inventory/ledger"
	"github.com/farmdash/farmdash-backend/internal/inventory/offline"
	"github.com/farmdash/farmdash-backend/internal/inventory/service"
	"github.com/farmdash/farmdash-backend/pkg/config"
	"github.com/farmdash/farmdash-backend/pkg/database"
	"github.com/farmdash/farmdash-backend/pkg/httputil"
	"github.com/farmdash/farmdash-backend/pkg/logger"
	"github.com/farmdash/farmdash-backend/pkg/messaging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	// Core state
	stockLedger := ledger.New(log)
	catalog := service.NewCatalog(stockLedger)
	movementJournal := journal.New(stockLedger, catalog, log)
	readCache := cache.New(cfg.Sync.CacheTTL)
	eventBus := bus.New()

	// Backend collaborators
	backendClient := backend.New(cfg.Backend, log)
	locator := geo.NewHTTPLocator(cfg.Geo, log)

	// Optional durable journal for the offline queue
	var store *offline.Store
	if cfg.Sync.QueuePath != "" {
		db, err := database.Open(cfg.Sync.QueuePath, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open offline queue journal")
		}
		defer db.Close()

		store, err = offline.NewStore(db)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize offline queue journal")
		}
	}

	queue := offline.New(eventBus, backendClient.Online, store, cfg.Sync.SyncInterval, log)

	// Optional messaging
	var rmq *messaging.RabbitMQ
	var publisher *events.InventoryEventPublisher
	if cfg.RabbitMQ.URL != "" {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		publisher, err = events.NewInventoryEventPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
		queue.SetNotifier(publisher)
	}

	// Rules and planning
	alertEngine := alerts.New(stockLedger, movementJournal, catalog, alerts.Config{
		ExpiryWarningDays: cfg.Sync.ExpiryWarningDays,
		SlowMovingDays:    cfg.Sync.SlowMovingDays,
	}, publisher, backendClient, eventBus, log)

	reorderAdvisor := advisor.New(stockLedger, movementJournal, catalog, advisor.Config{
		LeadTimeDays:          cfg.Sync.ReorderLeadTimeDays,
		ConsumptionWindowDays: cfg.Sync.ConsumptionWindowDays,
	}, log)

	// Facade
	inventoryService := service.NewInventoryService(
		catalog, stockLedger, movementJournal, readCache, queue,
		backendClient, noNilLocator(locator), alertEngine, reorderAdvisor, publisher, log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := inventoryService.Bootstrap(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap catalog")
	}
	if err := queue.Restore(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to restore offline queue")
	}

	// Background loops
	monitor := backend.NewMonitor(backendClient, eventBus, cfg.Backend.ProbeInterval, log)
	monitor.Start(ctx)
	defer monitor.Stop()

	queue.Start(ctx)
	defer queue.Stop()

	scheduler := alerts.NewScheduler(alertEngine, cfg.Sync.AlertInterval, log)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if rmq != nil {
		catalogConsumer, err := consumers.NewCatalogConsumer(rmq, inventoryService, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create catalog consumer")
		}
		if err := catalogConsumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start catalog consumer")
		}
	}

	// Handlers
	itemHandler := handler.NewItemHandler(inventoryService, log)
	stockHandler := handler.NewStockHandler(inventoryService, log)
	alertHandler := handler.NewAlertHandler(inventoryService, log)
	planningHandler := handler.NewPlanningHandler(inventoryService, log)
	syncHandler := handler.NewSyncHandler(queue, backendClient, log)

	// Router
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.ActingUser)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-ID", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]interface{}{
			"status":      "healthy",
			"service":     "inventory-service",
			"backend":     map[string]bool{"online": backendClient.Online()},
			"queue_depth": queue.Depth(),
		}
		if rmq != nil {
			health["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, health)
	})

	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Route("/items", func(r chi.Router) {
			r.Get("/", itemHandler.List)
			r.Post("/", itemHandler.Create)
			r.Get("/barcode/{barcode}", itemHandler.LookupByBarcode)
			r.Get("/{itemID}/stock", stockHandler.Level)
			r.Put("/{itemID}/stock", stockHandler.UpdateLevel)
		})

		r.Route("/stock", func(r chi.Router) {
			r.Get("/", stockHandler.Levels)
			r.Post("/transfer", stockHandler.Transfer)
			r.Post("/receive", stockHandler.ReceiveStock)
			r.Post("/use/treatment", stockHandler.UseForTreatment)
			r.Post("/use/vaccination", stockHandler.UseForVaccination)
		})

		r.Route("/movements", func(r chi.Router) {
			r.Get("/", stockHandler.Movements)
			r.Post("/", stockHandler.RecordMovement)
			r.Post("/{id}/reverse", stockHandler.ReverseMovement)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", alertHandler.List)
			r.Put("/{id}/resolve", alertHandler.Resolve)
			r.Put("/{id}/acknowledge", alertHandler.Acknowledge)
		})

		r.Get("/expiring", planningHandler.Expiring)
		r.Post("/batches/{id}/expired", planningHandler.HandleExpiredBatch)
		r.Get("/reorder-suggestions", planningHandler.ReorderSuggestions)
		r.Post("/purchase-orders", planningHandler.CreatePurchaseOrder)
		r.Get("/dashboard", planningHandler.Dashboard)

		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", syncHandler.Status)
			r.Post("/drain", syncHandler.Drain)
		})
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

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// noNilLocator keeps a typed-nil *HTTPLocator from sneaking into the
// Locator interface, where it would dodge the service's nil check.
func noNilLocator(l *geo.HTTPLocator) geo.Locator {
	if l == nil {
		return nil
	}
	return l
}
