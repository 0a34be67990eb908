// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ninexgroup/cashcavash-backend/internal/config"
	"github.com/ninexgroup/cashcavash-backend/internal/gateway"
	"github.com/ninexgroup/cashcavash-backend/internal/handlers"
	"github.com/ninexgroup/cashcavash-backend/internal/middleware"
	"github.com/ninexgroup/cashcavash-backend/internal/models"
	"github.com/ninexgroup/cashcavash-backend/internal/services"
	"github.com/ninexgroup/cashcavash-backend/internal/settlement"
	"github.com/ninexgroup/cashcavash-backend/internal/utils"
)

// Initialize wires services, handlers and routes. The settlement
// service is injected so the HTTP surface and the cron sweeper share
// one run lock.
func Initialize(db *gorm.DB, cfg *config.Config, clock *settlement.Clock, settlementService *services.SettlementService) *gin.Engine {
	// Payment gateways
	gateways := map[models.PaymentGateway]gateway.Gateway{
		models.GatewayCashfree: gateway.NewCashfreeClient(cfg.Gateway),
		models.GatewayRazorpay: gateway.NewRazorpayClient(cfg.Gateway),
	}

	// Initialize services
	notificationService := services.NewNotificationService(db, cfg)
	authService := services.NewAuthService(db, cfg)
	balanceService := services.NewBalanceService(db, clock)
	paymentService := services.NewPaymentService(db, cfg, clock, gateways, notificationService)
	webhookService := services.NewWebhookService(db, clock, gateways, notificationService)
	payoutService := services.NewPayoutService(db, cfg, balanceService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	webhookHandler := handlers.NewWebhookHandler(webhookService)
	merchantHandler := handlers.NewMerchantHandler(balanceService, payoutService)
	superAdminHandler := handlers.NewSuperAdminHandler(paymentService, payoutService, settlementService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.RequestLogMiddleware())
	r.Use(middleware.CORS())
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	api := r.Group("/api")
	{
		// Authentication routes (merchant dashboard)
		auth := api.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/profile", middleware.AuthRequired(), authHandler.Profile)
			auth.POST("/api-key", middleware.AuthRequired(), authHandler.CreateAPIKey)
			auth.DELETE("/api-key", middleware.AuthRequired(), authHandler.RevokeAPIKey)
		}

		// Server-to-server payment routes, authenticated by API key
		payments := api.Group("/payments")
		{
			// Gateway callbacks are unauthenticated; the signature check
			// inside the handler is the authentication.
			webhooks := payments.Group("/webhook")
			webhooks.Use(middleware.WebhookRateLimit())
			{
				webhooks.POST("/cashfree", webhookHandler.HandleCashfreeWebhook)
				webhooks.POST("/razorpay", webhookHandler.HandleRazorpayWebhook)
			}

			protected := payments.Group("")
			protected.Use(middleware.APIKeyAuth(db))
			{
				protected.POST("/order", paymentHandler.CreateOrder)
				protected.POST("/link", paymentHandler.CreatePaymentLink)
				protected.GET("/status/:orderId", paymentHandler.GetPaymentStatus)
				protected.POST("/refund", paymentHandler.RefundPayment)
				protected.GET("/transactions", paymentHandler.ListTransactions)
				protected.GET("/transactions/:id", paymentHandler.GetTransaction)
			}
		}

		// Merchant dashboard routes
		admin := api.Group("/admin")
		admin.Use(middleware.AuthRequired())
		{
			admin.GET("/balance", merchantHandler.GetBalance)
			admin.GET("/transactions", paymentHandler.ListTransactions)
			admin.GET("/transactions/:id", paymentHandler.GetTransaction)
			admin.POST("/payouts", merchantHandler.RequestPayout)
			admin.GET("/payouts", merchantHandler.ListPayouts)
			admin.GET("/payouts/:payoutId", merchantHandler.GetPayout)
			admin.POST("/payouts/:payoutId/cancel", merchantHandler.CancelPayout)
		}

		// Platform operator routes
		superadmin := api.Group("/superadmin")
		superadmin.Use(middleware.AuthRequired(), middleware.SuperAdminRequired())
		{
			superadmin.GET("/transactions", superAdminHandler.ListAllTransactions)
			superadmin.GET("/payouts", superAdminHandler.ListAllPayouts)
			superadmin.GET("/payouts/:payoutId", superAdminHandler.GetPayout)
			superadmin.POST("/payouts/:payoutId/approve", superAdminHandler.ApprovePayout)
			superadmin.POST("/payouts/:payoutId/reject", superAdminHandler.RejectPayout)
			superadmin.POST("/payouts/:payoutId/process", superAdminHandler.ProcessPayout)
			superadmin.POST("/payouts/:payoutId/fail", superAdminHandler.FailPayout)
			superadmin.POST("/settlements/run", superAdminHandler.RunSettlement)
			superadmin.POST("/settlements/backfill", superAdminHandler.BackfillSettlements)
		}
	}

	return r
}
