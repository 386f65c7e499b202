package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/onepwr/procurement-api/internal/auth"
	"github.com/onepwr/procurement-api/internal/config"
	"github.com/onepwr/procurement-api/internal/database"
	"github.com/onepwr/procurement-api/internal/erp"
	"github.com/onepwr/procurement-api/internal/http/handler"
	"github.com/onepwr/procurement-api/internal/http/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/onepwr/procurement-api/docs" // Import generated swagger docs
)

type Router struct {
	cfg                 *config.Config
	logger              *zap.Logger
	db                  *gorm.DB
	erpClient           *erp.Client
	authMiddleware      *auth.Middleware
	orgFilterMiddleware *middleware.OrganizationFilterMiddleware
	rateLimiter         *middleware.RateLimiter
	auditMiddleware     *middleware.AuditMiddleware
	prHandler           *handler.PurchaseRequestHandler
	quoteHandler        *handler.QuoteHandler
	vendorHandler       *handler.VendorHandler
	ruleHandler         *handler.RuleHandler
	organizationHandler *handler.OrganizationHandler
	userHandler         *handler.UserHandler
	authHandler         *handler.AuthHandler
	auditHandler        *handler.AuditHandler
	notificationHandler *handler.NotificationHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	erpClient *erp.Client,
	authMiddleware *auth.Middleware,
	orgFilterMiddleware *middleware.OrganizationFilterMiddleware,
	rateLimiter *middleware.RateLimiter,
	auditMiddleware *middleware.AuditMiddleware,
	prHandler *handler.PurchaseRequestHandler,
	quoteHandler *handler.QuoteHandler,
	vendorHandler *handler.VendorHandler,
	ruleHandler *handler.RuleHandler,
	organizationHandler *handler.OrganizationHandler,
	userHandler *handler.UserHandler,
	authHandler *handler.AuthHandler,
	auditHandler *handler.AuditHandler,
	notificationHandler *handler.NotificationHandler,
) *Router {
	return &Router{
		cfg:                 cfg,
		logger:              logger,
		db:                  db,
		erpClient:           erpClient,
		authMiddleware:      authMiddleware,
		orgFilterMiddleware: orgFilterMiddleware,
		rateLimiter:         rateLimiter,
		auditMiddleware:     auditMiddleware,
		prHandler:           prHandler,
		quoteHandler:        quoteHandler,
		vendorHandler:       vendorHandler,
		ruleHandler:         ruleHandler,
		organizationHandler: organizationHandler,
		userHandler:         userHandler,
		authHandler:         authHandler,
		auditHandler:        auditHandler,
		notificationHandler: notificationHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP) // Apply IP-based rate limiting globally

	// Health check (basic liveness probe)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Database health check (readiness probe with detailed stats)
	r.Get("/health/db", func(w http.ResponseWriter, r *http.Request) {
		stats, err := database.HealthCheckWithStats(rt.db)
		if err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status":  "unhealthy",
				"error":   err.Error(),
				"service": "database",
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"service": "database",
			"stats": map[string]interface{}{
				"max_open_connections": stats.MaxOpenConnections,
				"open_connections":     stats.OpenConnections,
				"in_use":               stats.InUse,
				"idle":                 stats.Idle,
				"wait_count":           stats.WaitCount,
				"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
				"max_idle_closed":      stats.MaxIdleClosed,
				"max_lifetime_closed":  stats.MaxLifetimeClosed,
			},
		})
	})

	// ERP connection health check (the connection is optional; "disabled"
	// is a healthy answer when sync is turned off)
	r.Get("/health/erp", func(w http.ResponseWriter, r *http.Request) {
		status := rt.erpClient.HealthCheck(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if status.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(status)
	})

	// Combined readiness check (checks all dependencies)
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]interface{})
		allHealthy := true

		// Check database
		if err := database.HealthCheck(rt.db); err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			checks["database"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
			allHealthy = false
		} else {
			checks["database"] = map[string]interface{}{
				"status": "healthy",
			}
		}

		// Check ERP when enabled; a broken ERP connection degrades receipt
		// sync but does not make the API unready
		if rt.erpClient.IsEnabled() {
			erpStatus := rt.erpClient.HealthCheck(r.Context())
			checks["erp"] = map[string]interface{}{
				"status": erpStatus.Status,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if allHealthy {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "healthy",
				"checks": checks,
			})
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "unhealthy",
				"checks": checks,
			})
		}
	})

	// Swagger documentation
	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.Authenticate)
			r.Use(rt.orgFilterMiddleware.Filter)
			r.Use(rt.auditMiddleware.Audit) // Audit all modifications

			// Auth
			r.Get("/auth/me", rt.authHandler.Me)

			// Users
			r.Route("/users", func(r chi.Router) {
				r.Get("/", rt.userHandler.List)
				r.Get("/me", rt.userHandler.GetCurrent)
				r.Get("/{id}", rt.userHandler.GetByID)
				r.With(rt.authMiddleware.RequireReferenceDataAdmin).
					Put("/{id}/permission-level", rt.userHandler.SetPermissionLevel)
				r.With(rt.authMiddleware.RequireReferenceDataAdmin).
					Delete("/{id}", rt.userHandler.Deactivate)
			})

			// Organizations
			r.Route("/organizations", func(r chi.Router) {
				r.Get("/", rt.organizationHandler.List)
				r.With(rt.authMiddleware.RequireReferenceDataAdmin).
					Post("/", rt.organizationHandler.Create)
				r.Get("/{orgId}", rt.organizationHandler.GetByID)
				r.With(rt.authMiddleware.RequireReferenceDataAdmin).
					Put("/{orgId}", rt.organizationHandler.Update)
				r.Get("/{orgId}/rules", rt.ruleHandler.ListForOrganization)
				r.Get("/{orgId}/approvers", rt.userHandler.ListApprovers)
			})

			// Purchase requests
			r.Route("/purchase-requests", func(r chi.Router) {
				r.Get("/", rt.prHandler.List)
				r.Post("/", rt.prHandler.Create)
				r.Get("/stats", rt.prHandler.Stats)
				r.Get("/number/{number}", rt.prHandler.GetByNumber)
				r.Get("/{id}", rt.prHandler.GetByID)
				r.Put("/{id}", rt.prHandler.Update)
				r.Delete("/{id}", rt.prHandler.Delete)

				// Workflow
				r.Post("/{id}/transition", rt.prHandler.Transition)
				r.Get("/{id}/transitions", rt.prHandler.AllowedTransitions)
				r.Get("/{id}/validate", rt.prHandler.ValidateApproval)
				r.With(rt.authMiddleware.RequireProcurement).
					Put("/{id}/approver", rt.prHandler.AssignApprover)
				r.Post("/{id}/approver/resolve", rt.prHandler.ResolveApprover)

				// Quotes
				r.Get("/{id}/quotes", rt.quoteHandler.List)
				r.Post("/{id}/quotes", rt.quoteHandler.Add)
				r.Delete("/{id}/quotes/{quoteId}", rt.quoteHandler.Delete)
				r.Post("/{id}/quotes/{quoteId}/attachments", rt.quoteHandler.UploadAttachment)
			})

			// Attachments
			r.Get("/attachments/{attachmentId}", rt.quoteHandler.DownloadAttachment)

			// Vendors
			r.Route("/vendors", func(r chi.Router) {
				r.Get("/", rt.vendorHandler.List)
				r.Get("/{id}", rt.vendorHandler.GetByID)
				r.Group(func(r chi.Router) {
					r.Use(rt.authMiddleware.RequireReferenceDataAdmin)
					r.Post("/", rt.vendorHandler.Create)
					r.Put("/{id}/approval", rt.vendorHandler.SetApproved)
					r.Delete("/{id}", rt.vendorHandler.Deactivate)
				})
			})

			// Approval rules
			r.Route("/rules", func(r chi.Router) {
				r.Use(rt.authMiddleware.RequireReferenceDataAdmin)
				r.Post("/", rt.ruleHandler.Create)
				r.Put("/{id}", rt.ruleHandler.Update)
				r.Delete("/{id}", rt.ruleHandler.Deactivate)
			})

			// Exchange rates
			r.Route("/exchange-rates", func(r chi.Router) {
				r.Get("/", rt.ruleHandler.ListRates)
				r.With(rt.authMiddleware.RequireReferenceDataAdmin).
					Put("/", rt.ruleHandler.UpsertRate)
			})

			// Audit logs
			r.Route("/audit", func(r chi.Router) {
				r.Get("/", rt.auditHandler.List)
				r.Get("/stats", rt.auditHandler.GetStats)
				r.Get("/entity/{entityType}/{entityId}", rt.auditHandler.GetByEntity)
				r.Get("/{id}", rt.auditHandler.GetByID)
			})

			// Notifications
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", rt.notificationHandler.List)
				r.Get("/count", rt.notificationHandler.GetUnreadCount)
				r.Put("/read-all", rt.notificationHandler.MarkAllAsRead)
				r.Get("/{id}", rt.notificationHandler.GetByID)
				r.Put("/{id}/read", rt.notificationHandler.MarkAsRead)
			})
		})
	})

	return r
}
