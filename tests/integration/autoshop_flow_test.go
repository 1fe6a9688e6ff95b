package integration

import (
	"net/http"
	"testing"
	"time"

	"daswos/internal/models"
)

func TestAutoShopFlow_DefaultSettings(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "settings@test.com", "password123")

	rec := app.request("GET", "/api/v1/autoshop/settings", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	settings := result["settings"].(map[string]interface{})
	if settings["enabled"] != false {
		t.Error("expected AutoShop disabled by default")
	}
	if settings["confidence_threshold"].(float64) != 0.75 {
		t.Errorf("expected default threshold 0.75, got %v", settings["confidence_threshold"])
	}
	if settings["sphere"] != "safesphere" {
		t.Errorf("expected safesphere default, got %v", settings["sphere"])
	}
	if settings["payment_method"] != "coins" {
		t.Errorf("expected coins default, got %v", settings["payment_method"])
	}
}

func TestAutoShopFlow_UpdateSettings(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "update@test.com", "password123")

	rec := app.request("PUT", "/api/v1/autoshop/settings",
		`{"enabled":true,"max_price_per_item":200,"preferred_categories":"home,music"}`, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	settings := result["settings"].(map[string]interface{})
	if settings["enabled"] != true {
		t.Error("expected AutoShop enabled after update")
	}
	if settings["max_price_per_item"].(float64) != 200 {
		t.Errorf("expected price cap 200, got %v", settings["max_price_per_item"])
	}
	// Untouched fields keep their defaults
	if settings["confidence_threshold"].(float64) != 0.75 {
		t.Errorf("expected untouched threshold 0.75, got %v", settings["confidence_threshold"])
	}

	// Out-of-range threshold is rejected
	rec = app.request("PUT", "/api/v1/autoshop/settings", `{"confidence_threshold":1.5}`, token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range threshold, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAutoShopFlow_StartRequiresEnabledPolicy(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "disabled@test.com", "password123")

	rec := app.request("POST", "/api/v1/autoshop/start", `{"duration_minutes":60}`, token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	errObj := result["error"].(map[string]interface{})
	if errObj["code"] != "AUTOSHOP_DISABLED" {
		t.Errorf("expected AUTOSHOP_DISABLED, got %v", errObj["code"])
	}
}

func TestAutoShopFlow_SessionLifecycle(t *testing.T) {
	app := setupApp(t)
	app.seedProducts()
	token, _, _ := app.registerUser(t, "session@test.com", "password123")

	app.purchaseCoins(t, token, 1000)
	app.enableAutoShop(t, token)

	// Start: the first selection cycle runs before the response
	rec := app.request("POST", "/api/v1/autoshop/start", `{"duration_minutes":60}`, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	session := result["session"].(map[string]interface{})
	if session["status"] != "active" {
		t.Fatalf("expected active session, got %v", session["status"])
	}
	if session["purchase_count"].(float64) != 1 {
		t.Errorf("expected one purchase from the initial cycle, got %v", session["purchase_count"])
	}
	spent := session["spent_total"].(float64)
	if spent == 0 {
		t.Error("expected spent total to reflect the purchase")
	}

	// Starting again conflicts
	rec = app.request("POST", "/api/v1/autoshop/start", `{"duration_minutes":60}`, token)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for second start, got %d: %s", rec.Code, rec.Body.String())
	}

	// Ledger reflects the spend
	rec = app.request("GET", "/api/v1/coins/balance", "", token)
	result = parseJSON(t, rec)
	if result["balance"].(float64) != 1000-spent {
		t.Errorf("balance %v does not match session spend %v", result["balance"], spent)
	}

	// Status returns the running session
	rec = app.request("GET", "/api/v1/autoshop/status", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status failed: %d %s", rec.Code, rec.Body.String())
	}
	result = parseJSON(t, rec)
	if result["session"].(map[string]interface{})["status"] != "active" {
		t.Errorf("expected active status, got %v", result["session"])
	}

	// Purchases list shows what the engine bought
	rec = app.request("GET", "/api/v1/autoshop/purchases", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("purchases failed: %d %s", rec.Code, rec.Body.String())
	}
	result = parseJSON(t, rec)
	if result["total_items"].(float64) != 1 {
		t.Fatalf("expected 1 purchase, got %v", result["total_items"])
	}
	purchase := result["data"].([]interface{})[0].(map[string]interface{})
	if purchase["status"] != "purchased" {
		t.Errorf("expected purchased status, got %v", purchase["status"])
	}

	// Stop the session
	rec = app.request("POST", "/api/v1/autoshop/stop", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop failed: %d %s", rec.Code, rec.Body.String())
	}
	result = parseJSON(t, rec)
	session = result["session"].(map[string]interface{})
	if session["status"] != "stopped" {
		t.Errorf("expected stopped status, got %v", session["status"])
	}
	if session["stopped_at"] == nil {
		t.Error("expected stopped_at to be set")
	}

	// Stopping again is a no-op
	rec = app.request("POST", "/api/v1/autoshop/stop", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected idempotent stop, got %d: %s", rec.Code, rec.Body.String())
	}

	// A new session can start after stopping
	rec = app.request("POST", "/api/v1/autoshop/start", `{"duration_minutes":30}`, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("restart failed: %d %s", rec.Code, rec.Body.String())
	}
}

func TestAutoShopFlow_StopWithoutSession(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "nosession@test.com", "password123")

	rec := app.request("POST", "/api/v1/autoshop/stop", "", token)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	errObj := result["error"].(map[string]interface{})
	if errObj["code"] != "SESSION_NOT_FOUND" {
		t.Errorf("expected SESSION_NOT_FOUND, got %v", errObj["code"])
	}
}

func TestAutoShopFlow_InternalSweep(t *testing.T) {
	app := setupApp(t)
	token, _, userID := app.registerUser(t, "sweep@test.com", "password123")

	// An active session whose window has already elapsed
	now := time.Now()
	session := &models.AutoShopSession{
		UserID:              userID,
		Status:              models.SessionStatusActive,
		StartTime:           now.Add(-2 * time.Hour),
		EndTime:             now.Add(-time.Hour),
		BudgetLimit:         500,
		ConfidenceThreshold: 0.5,
	}
	if err := app.DB.Create(session).Error; err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}

	// Missing and wrong keys are rejected
	rec := app.serviceRequest("POST", "/api/v1/internal/autoshop/sweep", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}
	rec = app.serviceRequest("POST", "/api/v1/internal/autoshop/sweep", "", "wrong-key")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", rec.Code)
	}

	// The sweep expires the overdue session
	rec = app.serviceRequest("POST", "/api/v1/internal/autoshop/sweep", "", serviceAPIKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("sweep failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	if result["expired"].(float64) != 1 {
		t.Errorf("expected 1 expired session, got %v", result["expired"])
	}

	rec = app.request("GET", "/api/v1/autoshop/status", "", token)
	result = parseJSON(t, rec)
	if result["session"].(map[string]interface{})["status"] != "expired" {
		t.Errorf("expected expired status, got %v", result["session"])
	}
}

func TestAutoShopFlow_DurationValidation(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "duration@test.com", "password123")
	app.enableAutoShop(t, token)

	for _, body := range []string{
		`{"duration_minutes":0}`,
		`{"duration_minutes":-5}`,
		`{"duration_minutes":2000}`,
		`{}`,
	} {
		rec := app.request("POST", "/api/v1/autoshop/start", body, token)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d: %s", body, rec.Code, rec.Body.String())
		}
	}
}
