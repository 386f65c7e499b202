package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/onepwr/procurement-api/docs"
	"github.com/onepwr/procurement-api/internal/auth"
	"github.com/onepwr/procurement-api/internal/config"
	"github.com/onepwr/procurement-api/internal/database"
	"github.com/onepwr/procurement-api/internal/erp"
	"github.com/onepwr/procurement-api/internal/http/handler"
	"github.com/onepwr/procurement-api/internal/http/middleware"
	"github.com/onepwr/procurement-api/internal/http/router"
	"github.com/onepwr/procurement-api/internal/jobs"
	"github.com/onepwr/procurement-api/internal/logger"
	"github.com/onepwr/procurement-api/internal/repository"
	"github.com/onepwr/procurement-api/internal/service"
	"github.com/onepwr/procurement-api/internal/storage"
	"go.uber.org/zap"
)

// @title 1PWR Procurement API
// @version 1.0
// @description Purchase request approval workflow API for 1PWR operating organizations
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@1pwrafrica.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description API Key for system operations
// @Security BearerAuth
// @Security ApiKeyAuth

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	// Configure Swagger host based on environment
	switch basicCfg.App.Environment {
	case "staging":
		docs.SwaggerInfo.Host = "procurement-staging.1pwrafrica.com"
	case "production":
		docs.SwaggerInfo.Host = "procurement.1pwrafrica.com"
	default:
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	}

	// Load full configuration with secrets
	// In development: uses environment variables
	// In staging/production: fetches from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	// Connect to database
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Automatic schema migration outside production; production runs the
	// goose migrations in cmd/migrate
	if cfg.App.Environment != "production" {
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	// Initialize attachment storage
	fileStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	// Initialize ERP connection (optional, read-only, receipt sync only)
	// The app continues without it if the connection fails
	var erpClient *erp.Client
	if cfg.Erp.Enabled {
		erpClient, err = erp.NewClient(&cfg.Erp, log)
		if err != nil {
			log.Warn("ERP connection failed, continuing without receipt sync",
				zap.Error(err),
			)
		} else {
			log.Info("ERP connected successfully",
				zap.Int("max_open_conns", cfg.Erp.MaxOpenConns),
				zap.Int("query_timeout_seconds", cfg.Erp.QueryTimeout),
			)
		}
	} else {
		log.Info("ERP connection not configured, receipt sync disabled")
	}

	// Initialize repositories
	prRepo := repository.NewPurchaseRequestRepository(db)
	quoteRepo := repository.NewQuoteRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	vendorRepo := repository.NewVendorRepository(db)
	userRepo := repository.NewUserRepository(db)
	statusHistoryRepo := repository.NewStatusHistoryRepository(db)
	approvalHistoryRepo := repository.NewApprovalHistoryRepository(db)
	numberSequenceRepo := repository.NewNumberSequenceRepository(db)
	exchangeRateRepo := repository.NewExchangeRateRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditLogRepo := repository.NewAuditLogRepository(db)

	// Initialize services
	currencyService := service.NewCurrencyService(exchangeRateRepo, log)
	numberingService := service.NewNumberingService(numberSequenceRepo, prRepo, cfg.Workflow.NumberingMaxAttempts, log)
	notificationService := service.NewNotificationService(notificationRepo, log)
	auditLogService := service.NewAuditLogService(auditLogRepo, log)
	userService := service.NewUserService(userRepo, log)
	organizationService := service.NewOrganizationService(orgRepo, log)
	vendorService := service.NewVendorService(vendorRepo, orgRepo, log)
	ruleService := service.NewRuleService(ruleRepo, orgRepo, log)
	quoteService := service.NewQuoteService(quoteRepo, attachmentRepo, prRepo, vendorRepo, fileStorage, log)
	prService := service.NewPurchaseRequestService(
		db,
		prRepo,
		quoteRepo,
		ruleRepo,
		orgRepo,
		vendorRepo,
		userRepo,
		statusHistoryRepo,
		approvalHistoryRepo,
		numberingService,
		currencyService,
		notificationService,
		cfg.Workflow.VendorExemptionFloor,
		log,
	)
	receiptSyncService := service.NewReceiptSyncService(erpClient, prRepo, prService, log)

	// Initialize middleware
	authMiddleware := auth.NewMiddleware(cfg, userRepo, log)
	orgFilterMiddleware := middleware.NewOrganizationFilterMiddleware(log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)
	auditMiddleware := middleware.NewAuditMiddleware(auditLogService, nil, log)

	// Initialize handlers
	prHandler := handler.NewPurchaseRequestHandler(prService, log)
	quoteHandler := handler.NewQuoteHandler(quoteService, log)
	vendorHandler := handler.NewVendorHandler(vendorService, log)
	ruleHandler := handler.NewRuleHandler(ruleService, currencyService, log)
	organizationHandler := handler.NewOrganizationHandler(organizationService, log)
	userHandler := handler.NewUserHandler(userService, log)
	authHandler := handler.NewAuthHandler(userService, log)
	auditHandler := handler.NewAuditHandler(auditLogService, log)
	notificationHandler := handler.NewNotificationHandler(notificationService, log)

	// Setup router
	rt := router.NewRouter(
		cfg,
		log,
		db,
		erpClient,
		authMiddleware,
		orgFilterMiddleware,
		rateLimiter,
		auditMiddleware,
		prHandler,
		quoteHandler,
		vendorHandler,
		ruleHandler,
		organizationHandler,
		userHandler,
		authHandler,
		auditHandler,
		notificationHandler,
	)

	// Initialize and start scheduler for the receipt sync job
	var scheduler *jobs.Scheduler
	if erpClient.IsEnabled() {
		scheduler = jobs.NewScheduler(log)

		// runAtStartup=true catches up on receipts posted while the API was down
		if err := jobs.RegisterReceiptSyncJob(
			scheduler,
			receiptSyncService,
			log,
			cfg.Erp.SyncSchedule,
			cfg.Erp.QueryTimeoutDuration()*10,
			true,
		); err != nil {
			log.Error("Failed to register receipt sync job", zap.Error(err))
		} else {
			scheduler.Start()
			log.Info("Scheduler started with receipt sync job",
				zap.String("cron_expr", cfg.Erp.SyncSchedule),
			)
		}
	} else {
		log.Info("Receipt sync disabled",
			zap.Bool("erp_enabled", cfg.Erp.Enabled),
			zap.Bool("erp_client_available", erpClient.IsEnabled()),
		)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Stop scheduler if running
		if scheduler != nil {
			ctx := scheduler.Stop()
			<-ctx.Done()
			log.Info("Scheduler stopped")
		}

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		// Close ERP connection if initialized
		if err := erpClient.Close(); err != nil {
			log.Warn("Error closing ERP connection", zap.Error(err))
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
