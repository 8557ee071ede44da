package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-service/config"
	"storefront-service/internal/api"
	"storefront-service/internal/broker"
	"storefront-service/internal/marketplace"
	"storefront-service/internal/payment"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/service"
	"storefront-service/internal/store"
	"storefront-service/internal/util"
	"storefront-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront service")

	tp, err := util.InitTracer("storefront-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	if cfg.Database.Migrate {
		if err := db.Migrate(context.Background()); err != nil {
			logger.Fatal("Failed to apply schema", zap.Error(err))
		}
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	orderProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer orderProducer.Close()
	inventoryProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicInventory)
	defer inventoryProducer.Close()
	eventPublisher := broker.NewEventPublisher(orderProducer, inventoryProducer)

	gateways, err := payment.NewRegistryFromConfig(cfg.Payment)
	if err != nil {
		logger.Fatal("Failed to configure payment gateways", zap.Error(err))
	}

	biz := cfg.Business
	settlementService := service.NewSettlementService(db, eventPublisher)
	cartService := service.NewCartService(db, eventPublisher, biz.CartReservationTTL)
	checkoutService := service.NewCheckoutService(db, gateways, settlementService, eventPublisher, biz.Currency)
	marketplaceService := service.NewMarketplaceService(db, marketplace.DefaultAdapters())

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	sweeper := worker.NewReservationSweeper(cartService, settlementService, redisClient, worker.SweeperConfig{
		Interval:       biz.SweepInterval,
		PaymentTimeout: biz.PaymentTimeout,
		BatchSize:      biz.SweepBatchSize,
	})
	go func() {
		if err := sweeper.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Reservation sweeper stopped", zap.Error(err))
		}
	}()

	inventoryConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicInventory, cfg.Kafka.ConsumerGroup)
	syncWorker := worker.NewMarketplaceSyncWorker(inventoryConsumer, marketplaceService)
	go func() {
		if err := syncWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Marketplace sync worker stopped", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Cart:        cartService,
		Checkout:    checkoutService,
		Settlement:  settlementService,
		Gateways:    gateways,
		Inventory:   service.NewInventoryService(db, eventPublisher),
		Products:    service.NewProductService(db, eventPublisher, biz.Currency),
		Orders:      service.NewOrderService(db),
		Refunds:     service.NewRefundService(db),
		Marketplace: marketplaceService,
		Analytics:   service.NewAnalyticsService(db),
		Support:     service.NewSupportService(db),
	}, map[string]api.Pinger{
		"postgres": db,
		"redis":    redisClient,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := syncWorker.Stop(); err != nil {
		logger.Warn("Failed to close inventory consumer", zap.Error(err))
	}

	logger.Info("Server exited")
}
