package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"daswos/internal/catalog"
	"daswos/internal/handlers"
	"daswos/internal/logger"
	"daswos/internal/middleware"
	"daswos/internal/models"
	"daswos/internal/payment"
	"daswos/internal/services"
	"daswos/internal/validator"
)

// serviceAPIKey authenticates the internal scheduler routes in tests.
const serviceAPIKey = "test-service-key"

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB       *gorm.DB
	Router   *gin.Engine
	Gateway  *catalog.Memory
	Payments *payment.Mock
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// A single connection serializes writes, matching the row-lock
	// behavior the ledger relies on under Postgres.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access underlying database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	allModels := []interface{}{
		&models.User{},
		&models.Wallet{},
		&models.CoinTransaction{},
		&models.Recommendation{},
		&models.AutoShopPolicy{},
		&models.AutoShopSession{},
		&models.AuditLog{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)

	gateway := catalog.NewMemory()
	payments := payment.NewMock()

	// Services
	userService := services.NewUserService(db)
	ledgerService := services.NewLedgerService(db, payments)
	policyService := services.NewPolicyService(db)
	recommendationService := services.NewRecommendationService(db, gateway)
	purchaseValidator := services.NewPurchaseValidator(ledgerService)
	autoShopService := services.NewAutoShopService(db, policyService, recommendationService,
		purchaseValidator, ledgerService, gateway, payments, time.Hour)
	auditService := services.NewAuditService(db)
	t.Cleanup(autoShopService.Shutdown)

	// Handlers
	authHandler := handlers.NewAuthHandler(userService)
	ledgerHandler := handlers.NewLedgerHandler(ledgerService, auditService)
	recommendationHandler := handlers.NewRecommendationHandler(recommendationService, auditService)
	autoShopHandler := handlers.NewAutoShopHandler(autoShopService, policyService, recommendationService, auditService)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")

	// Public auth routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	// Internal service routes
	internal := v1.Group("/internal")
	internal.Use(middleware.ServiceAuthMiddleware(serviceAPIKey))
	internal.POST("/autoshop/sweep", autoShopHandler.SweepExpiredSessions)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)

	coins := protected.Group("/coins")
	coins.GET("/balance", ledgerHandler.GetBalance)
	coins.GET("/transactions", ledgerHandler.GetTransactions)
	coins.POST("/purchase", ledgerHandler.PurchaseCoins)

	recommendations := protected.Group("/recommendations")
	recommendations.GET("/pending", recommendationHandler.ListPending)
	recommendations.PUT("/:id/status", recommendationHandler.UpdateStatus)

	autoshop := protected.Group("/autoshop")
	autoshop.GET("/settings", autoShopHandler.GetSettings)
	autoshop.PUT("/settings", autoShopHandler.UpdateSettings)
	autoshop.POST("/start", autoShopHandler.StartSession)
	autoshop.POST("/stop", autoShopHandler.StopSession)
	autoshop.GET("/status", autoShopHandler.GetStatus)
	autoshop.GET("/purchases", autoShopHandler.GetPurchases)

	return &testApp{
		DB:       db,
		Router:   router,
		Gateway:  gateway,
		Payments: payments,
	}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// serviceRequest makes a request authenticated with the service API key.
func (app *testApp) serviceRequest(method, path, body, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// registerUser registers a new user and returns the access token, refresh token, and user ID.
func (app *testApp) registerUser(t *testing.T, email, password string) (accessToken, refreshToken, userID string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"first_name":"Test","last_name":"User"}`, email, password)
	rec := app.request("POST", "/api/v1/auth/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	return result["token"].(string), result["refresh_token"].(string), user["id"].(string)
}

// loginUser logs in and returns the access and refresh tokens.
func (app *testApp) loginUser(t *testing.T, email, password string) (accessToken, refreshToken string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	rec := app.request("POST", "/api/v1/auth/login", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	return result["token"].(string), result["refresh_token"].(string)
}

// seedProducts loads a small catalog that AutoShop can buy from.
func (app *testApp) seedProducts() {
	app.Gateway.Add(catalog.Product{
		ID: "p-lamp", Name: "Desk Lamp", Price: 120, TrustScore: 90,
		Tags: []string{"home"}, Category: "home", Sphere: "safesphere",
	})
	app.Gateway.Add(catalog.Product{
		ID: "p-mug", Name: "Coffee Mug", Price: 40, TrustScore: 85,
		Tags: []string{"kitchen"}, Category: "home", Sphere: "safesphere",
	})
}

// purchaseCoins buys coins for the user through the API and fails the test
// on any non-201 response.
func (app *testApp) purchaseCoins(t *testing.T, token string, amount int64) {
	t.Helper()
	body := fmt.Sprintf(`{"amount":%d,"payment_method_ref":"card-test"}`, amount)
	rec := app.request("POST", "/api/v1/coins/purchase", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("coin purchase failed: %d %s", rec.Code, rec.Body.String())
	}
}

// enableAutoShop turns on AutoShop with auto-purchase for the user.
func (app *testApp) enableAutoShop(t *testing.T, token string) {
	t.Helper()
	body := `{"enabled":true,"auto_purchase":true,"confidence_threshold":0.1,"sphere":"safesphere","payment_method":"coins"}`
	rec := app.request("PUT", "/api/v1/autoshop/settings", body, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("settings update failed: %d %s", rec.Code, rec.Body.String())
	}
}
