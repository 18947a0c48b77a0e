package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"rentora_backend/database"
	"rentora_backend/internal/config"
	"rentora_backend/internal/gateway"
	"rentora_backend/internal/handlers"
	"rentora_backend/internal/logger"
	"rentora_backend/internal/middleware"
	"rentora_backend/internal/renderer"
	"rentora_backend/internal/repositories"
	"rentora_backend/internal/routes"
	"rentora_backend/internal/services"
	"rentora_backend/internal/storage"
	"rentora_backend/internal/validator"
	"rentora_backend/internal/workers"
	"rentora_backend/pkg/apperrors"
)

const shutdownTimeout = 15 * time.Second

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)
	apperrors.SetDebug(cfg.Server.Env == "development")

	if cfg.JWT.Secret == "" {
		logger.Fatal("JWT secret is not configured")
	}

	logger.Info("Connecting to database...")
	gormDB, err := database.Connect(cfg.Database.DSN, &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to GORM", "error", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("Failed to get *sql.DB from GORM", "error", err)
	}
	if err = sqlDB.Ping(); err != nil {
		logger.Fatal("Database unavailable", "error", err)
	}
	logger.Info("Database connected")

	if cfg.Server.Env == "development" {
		if err := database.AutoMigrate(gormDB); err != nil {
			logger.Fatal("Failed to migrate database", "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ginRouter := SetupRouter(ctx, cfg, gormDB)

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           ginRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server startup error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	}
}

// SetupRouter собирает зависимости, запускает фоновые воркеры на ctx
// и возвращает готовый роутер.
func SetupRouter(ctx context.Context, cfg *config.Config, gormDB *gorm.DB) *gin.Engine {
	storageInstance, err := storage.NewStorage(storage.Config{
		Type:       cfg.Storage.Type,
		BasePath:   cfg.Storage.BasePath,
		BaseURL:    cfg.Storage.BaseURL,
		Bucket:     cfg.Storage.Bucket,
		Region:     cfg.Storage.Region,
		AccessKey:  cfg.Storage.AccessKey,
		SecretKey:  cfg.Storage.SecretKey,
		Endpoint:   cfg.Storage.Endpoint,
		PublicRead: cfg.Storage.PublicRead,
	})
	if err != nil {
		logger.Fatal("Failed to initialize storage", "error", err)
	}
	logger.Info("Storage initialized", "type", cfg.Storage.Type)

	// 1. Сервисы
	serviceContainer, err := initializeServices(cfg, storageInstance)
	if err != nil {
		logger.Fatal("Failed to initialize services", "error", err)
	}

	// 2. Фоновые воркеры
	startWorkers(ctx, cfg, gormDB, serviceContainer)

	// 3. Хэндлеры
	limiter := middleware.NewIPRateLimiter(cfg.RateLimit.CallbackRPS, cfg.RateLimit.CallbackBurst)
	limiter.StartJanitor(ctx, 5*time.Minute, 30*time.Minute)
	appHandlers := initializeHandlers(cfg, serviceContainer, limiter)

	// 4. Gin
	ginRouter := initializeGinRouter(gormDB)
	if cfg.Storage.Type == "local" {
		ginRouter.Static("/files", cfg.Storage.BasePath)
	}

	routes.RegisterRoutes(ginRouter, appHandlers, gormDB)
	return ginRouter
}

func initializeServices(cfg *config.Config, storageInstance storage.Storage) (*services.ServiceContainer, error) {
	paymentRepo := repositories.NewPaymentRepository()
	invoiceRepo := repositories.NewInvoiceRepository()
	loyaltyRepo := repositories.NewLoyaltyRepository()

	registry, err := initializeGateways(cfg)
	if err != nil {
		return nil, err
	}
	sequence, err := gateway.NewSequence(cfg.Payment.NodeID)
	if err != nil {
		return nil, fmt.Errorf("payment sequence: %w", err)
	}

	var documentRenderer renderer.Renderer
	if cfg.Invoice.RenderURL != "" {
		documentRenderer = renderer.NewHTTPRenderer(cfg.Invoice.RenderURL, cfg.Invoice.RenderTimeout)
	} else {
		logger.Warn("Invoice render URL is not set, invoices will be issued without documents")
	}

	loyaltyService := services.NewLoyaltyService(loyaltyRepo, cfg.Loyalty)
	invoiceService := services.NewInvoiceService(invoiceRepo, paymentRepo, documentRenderer, storageInstance, cfg.Invoice)
	settlementService := services.NewSettlementService(paymentRepo, invoiceService, loyaltyService, cfg.Settlement)
	callbackService := services.NewCallbackService(paymentRepo, registry, settlementService)
	paymentService := services.NewPaymentService(paymentRepo, registry, sequence, cfg.Invoice.Currency)

	return &services.ServiceContainer{
		PaymentService:    paymentService,
		CallbackService:   callbackService,
		SettlementService: settlementService,
		InvoiceService:    invoiceService,
		LoyaltyService:    loyaltyService,
	}, nil
}

// initializeGateways регистрирует только настроенные шлюзы.
func initializeGateways(cfg *config.Config) (*gateway.Registry, error) {
	base := strings.TrimRight(cfg.Payment.PublicBaseURL, "/")
	callbackURL := func(name string) string {
		return base + "/api/v1/payments/callback/" + name
	}

	var adapters []gateway.Adapter
	if cfg.VNPay.TmnCode != "" && cfg.VNPay.HashSecret != "" {
		adapters = append(adapters, gateway.NewVNPayAdapter(cfg.VNPay, cfg.Payment.ReturnURL))
	}
	if cfg.MoMo.PartnerCode != "" && cfg.MoMo.SecretKey != "" {
		adapters = append(adapters, gateway.NewMoMoAdapter(cfg.MoMo, cfg.Payment.ReturnURL, callbackURL("momo"), cfg.Payment.Timeout))
	}
	if cfg.ZaloPay.AppID != "" && cfg.ZaloPay.Key1 != "" && cfg.ZaloPay.Key2 != "" {
		adapters = append(adapters, gateway.NewZaloPayAdapter(cfg.ZaloPay, cfg.Payment.ReturnURL, callbackURL("zalopay"), cfg.Payment.Timeout))
	}
	if len(adapters) == 0 {
		return nil, errors.New("no payment gateway is configured")
	}

	for _, a := range adapters {
		logger.Info("Payment gateway enabled", "gateway", a.Name())
	}
	return gateway.NewRegistry(adapters...), nil
}

func startWorkers(ctx context.Context, cfg *config.Config, db *gorm.DB, sc *services.ServiceContainer) {
	if cfg.Invoice.RenderURL != "" {
		invoiceWorker := workers.NewInvoiceWorker(
			db,
			sc.InvoiceService,
			repositories.NewInvoiceRepository(),
			cfg.Workers.RenderInterval,
			cfg.Workers.BatchSize,
			cfg.Invoice.RenderMaxAttempts,
		)
		sc.InvoiceService.SetRenderQueue(invoiceWorker)
		invoiceWorker.Start(ctx)
	}

	settlementWorker := workers.NewSettlementWorker(db, sc.SettlementService, cfg.Workers.ReconcileInterval, cfg.Workers.BatchSize)
	settlementWorker.Start(ctx)
	logger.Info("Background workers started")
}

func initializeHandlers(cfg *config.Config, sc *services.ServiceContainer, limiter *middleware.IPRateLimiter) *handlers.AppHandlers {
	baseHandler := handlers.NewBaseHandler(validator.New(), cfg.JWT.Secret)

	return &handlers.AppHandlers{
		PaymentHandler:  handlers.NewPaymentHandler(baseHandler, sc.PaymentService, sc.InvoiceService),
		CallbackHandler: handlers.NewCallbackHandler(baseHandler, sc.CallbackService, limiter),
		LoyaltyHandler:  handlers.NewLoyaltyHandler(baseHandler, sc.LoyaltyService),
		InvoiceHandler:  handlers.NewInvoiceHandler(baseHandler, sc.InvoiceService),
		AdminHandler:    handlers.NewAdminHandler(baseHandler, sc.SettlementService, sc.LoyaltyService, cfg.Workers.BatchSize),
	}
}

func initializeGinRouter(db *gorm.DB) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.DBMiddleware(db))
	return router
}
