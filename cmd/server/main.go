package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petalhouse/petalhouse-backend/config"
	"github.com/petalhouse/petalhouse-backend/internal/app/controller"
	"github.com/petalhouse/petalhouse-backend/internal/app/repository"
	"github.com/petalhouse/petalhouse-backend/internal/app/service"
	"github.com/petalhouse/petalhouse-backend/internal/db"
	"github.com/petalhouse/petalhouse-backend/internal/middleware"
	"github.com/petalhouse/petalhouse-backend/internal/router"
	"github.com/petalhouse/petalhouse-backend/internal/scheduler"
	"github.com/petalhouse/petalhouse-backend/internal/websocket"
	"github.com/petalhouse/petalhouse-backend/pkg/logger"
	"github.com/petalhouse/petalhouse-backend/pkg/mail"
	"github.com/petalhouse/petalhouse-backend/pkg/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	logFormat := "json"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
		logFormat = "console"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      logFormat,
		EnableColor: logFormat == "console",
	})

	logger.Info("Starting Petal House Backend Server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Seed database (optional)
	if err := db.Seed(); err != nil {
		logger.Warn("Failed to seed database", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Redis는 재고 부족 알림 중복 억제에만 사용 (없으면 매번 발송)
	var alertGate service.AlertGate
	if cfg.Redis.Enabled {
		if err := redis.Init(&cfg.Redis); err != nil {
			logger.Warn("Redis unavailable, low stock alerts will not be deduplicated", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			alertGate = redis.NewAlertGate(redis.GetClient(), "petalhouse:low_stock:")
			defer func() {
				if err := redis.Close(); err != nil {
					logger.Error("Failed to close redis connection", err)
				}
			}()
		}
	}

	// Admin live feed
	hub := websocket.NewHub()
	go hub.Run()

	// Initialize repositories
	database := db.GetDB()
	userRepo := repository.NewUserRepository(database)
	productRepo := repository.NewProductRepository(database)
	orderRepo := repository.NewOrderRepository(database)
	cartRepo := repository.NewCartRepository(database)
	compensationRepo := repository.NewCompensationRepository(database)

	// Initialize services
	ledger := service.NewStockLedger(productRepo)
	compensator := service.NewCompensationService(compensationRepo, ledger, cfg.Shop.CompensationMaxRetry)
	notifier := service.NewMailNotifier(mail.NewSMTPSender(cfg.SMTP), cfg.Shop.OwnerEmail, alertGate, cfg.Shop.LowStockAlertTTL)
	cartService := service.NewCartService(cartRepo, productRepo, cfg.Shop.GuestCartTTL)
	authService := service.NewAuthService(
		userRepo,
		cartService,
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	productService := service.NewProductService(productRepo, ledger)
	orderService := service.NewOrderService(
		orderRepo,
		userRepo,
		productRepo,
		ledger,
		cartService,
		compensator,
		notifier,
		hub,
		service.OrderServiceConfig{
			OwnerEmail:        cfg.Shop.OwnerEmail,
			LowStockThreshold: cfg.Shop.LowStockThreshold,
		},
	)
	lifecycle := service.NewOrderLifecycle(orderRepo, ledger, compensator, hub)

	// Initialize controllers
	authController := controller.NewAuthController(authService)
	productController := controller.NewProductController(productService)
	cartController := controller.NewCartController(cartService)
	orderController := controller.NewOrderController(orderService)
	adminOrderController := controller.NewAdminOrderController(orderService, lifecycle)
	feedController := controller.NewFeedController(hub, cfg.CORS.AllowedOrigins)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	// Setup router
	r := router.NewRouter(
		authController,
		productController,
		cartController,
		orderController,
		adminOrderController,
		feedController,
		authMiddleware,
		cfg,
	)
	engine := r.Setup()

	// Start maintenance scheduler
	maintenance := scheduler.NewMaintenanceScheduler(cfg.Shop.MaintenanceSchedule, cartService, compensator)
	if err := maintenance.Start(); err != nil {
		logger.Fatal("Failed to start maintenance scheduler", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: engine,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	maintenance.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}
	logger.Info("Server stopped successfully")
}
