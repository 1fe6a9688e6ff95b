package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"daswos/internal/catalog"
	"daswos/internal/config"
	"daswos/internal/database"
	"daswos/internal/handlers"
	"daswos/internal/logger"
	"daswos/internal/middleware"
	"daswos/internal/payment"
	"daswos/internal/services"
	"daswos/internal/validator"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//go:generate swag init -g main.go -o ../../internal/docs

// @title           DasWos API
// @version         1.0
// @description     DasWos is a marketplace backend with a DasWos Coins ledger and an AutoShop engine that autonomously selects and purchases products within user-defined limits.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Catalog gateway: HTTP client against the product catalog, with an
	// optional fallback instance.
	httpClient := &http.Client{Timeout: appConfig.CatalogTimeout}
	var catalogGateway catalog.Gateway = catalog.NewClient(appConfig.CatalogBaseURL, appConfig.CatalogAPIKey, httpClient)
	if appConfig.CatalogFallbackURL != "" {
		fallback := catalog.NewClient(appConfig.CatalogFallbackURL, appConfig.CatalogAPIKey, httpClient)
		catalogGateway = catalog.NewFailover(catalogGateway, fallback)
	}

	// Payment gateway. The provider integration is not wired up yet;
	// the mock approves every settlement.
	paymentGateway := payment.NewMock()

	// Initialize services
	db := dbManager.DB()
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)
	ledgerService := services.NewLedgerService(db, paymentGateway)
	policyService := services.NewPolicyService(db)
	recommendationService := services.NewRecommendationService(db, catalogGateway)
	purchaseValidator := services.NewPurchaseValidator(ledgerService)
	autoShopService := services.NewAutoShopService(
		db,
		policyService,
		recommendationService,
		purchaseValidator,
		ledgerService,
		catalogGateway,
		paymentGateway,
		appConfig.AutoShopTickInterval,
	)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService)
	ledgerHandler := handlers.NewLedgerHandler(ledgerService, auditService)
	recommendationHandler := handlers.NewRecommendationHandler(recommendationService, auditService)
	autoShopHandler := handlers.NewAutoShopHandler(autoShopService, policyService, recommendationService, auditService)

	// Register custom binding tags before any handler binds a request
	validator.Register()

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	// Internal routes (scheduler-to-scheduler, X-API-Key)
	internal := v1.Group("/internal")
	internal.Use(middleware.ServiceAuthMiddleware(appConfig.ServiceAPIKey))
	internal.POST("/autoshop/sweep", autoShopHandler.SweepExpiredSessions)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	// User profile
	protected.GET("/profile", authHandler.GetProfile)

	// Coin routes
	coins := protected.Group("/coins")
	coins.GET("/balance", ledgerHandler.GetBalance)
	coins.GET("/transactions", ledgerHandler.GetTransactions)
	coins.POST("/purchase", ledgerHandler.PurchaseCoins)

	// Recommendation routes
	recommendations := protected.Group("/recommendations")
	recommendations.GET("/pending", recommendationHandler.ListPending)
	recommendations.PUT("/:id/status", recommendationHandler.UpdateStatus)

	// AutoShop routes
	autoshop := protected.Group("/autoshop")
	autoshop.GET("/settings", autoShopHandler.GetSettings)
	autoshop.PUT("/settings", autoShopHandler.UpdateSettings)
	autoshop.POST("/start", autoShopHandler.StartSession)
	autoshop.POST("/stop", autoShopHandler.StopSession)
	autoshop.GET("/status", autoShopHandler.GetStatus)
	autoshop.GET("/purchases", autoShopHandler.GetPurchases)

	// Periodic sweep so sessions orphaned by a restart still expire.
	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@every 5m", func() {
		expired, sweepErr := autoShopService.SweepExpired()
		if sweepErr != nil {
			log.Errorw("session sweep failed", "error", sweepErr)
			return
		}
		if expired > 0 {
			log.Infow("session sweep expired sessions", "count", expired)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:    ":" + appConfig.Port,
		Handler: router,
	}

	go func() {
		log.Infof("Starting DasWos backend server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal, then stop session runners before closing
	// the server so no purchase is cut off mid-settlement.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")
	autoShopService.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
