package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/pantrylog/pantrylog/internal/db"
	"github.com/pantrylog/pantrylog/internal/lifecycle"
	"github.com/pantrylog/pantrylog/internal/model"
	"github.com/pantrylog/pantrylog/internal/store"
)

const testJWTSecret = "test-secret"

func setupTestServer(t *testing.T) (*httptest.Server, string, *sql.DB) {
	t.Helper()
	database := db.NewTestDB(t)
	svc := lifecycle.NewService(database, nil, zap.NewNop())
	router := NewRouter(database, testJWTSecret, svc, nil, zap.NewNop())
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	store.CreateUser(ctx, database, "admin", string(hash))

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "password"})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp map[string]string
	json.NewDecoder(resp.Body).Decode(&loginResp)
	token := loginResp["token"]
	if token == "" {
		t.Fatal("empty token from login")
	}

	return server, token, database
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func doJSON(t *testing.T, req *http.Request, wantStatus int, target any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d", req.Method, req.URL.Path, wantStatus, resp.StatusCode)
	}
	if target != nil {
		json.NewDecoder(resp.Body).Decode(target)
	}
}

func TestLoginEndpoint(t *testing.T) {
	server, _, _ := setupTestServer(t)

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUnauthenticatedAccess(t *testing.T) {
	server, _, _ := setupTestServer(t)

	resp, _ := http.Get(server.URL + "/api/items")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestItemsAPIFlow(t *testing.T) {
	server, token, _ := setupTestServer(t)

	// Create: free-text days and quantity get parsed and clamped.
	req, _ := authRequest("POST", server.URL+"/api/items", token, map[string]string{
		"name":      "Strawberries",
		"storage":   "fridge",
		"days_left": "7",
		"qty_type":  "weight",
		"qty_unit":  "g",
		"qty_value": "400",
	})
	var item model.Item
	doJSON(t, req, http.StatusCreated, &item)
	if item.ID == "" {
		t.Fatal("expected item id")
	}
	if item.DaysLeft == nil || *item.DaysLeft != 7 {
		t.Errorf("expected days_left 7, got %v", item.DaysLeft)
	}
	if item.FreshnessStage == nil || *item.FreshnessStage != model.StageFresh {
		t.Errorf("expected Fresh, got %v", item.FreshnessStage)
	}

	// List.
	req, _ = authRequest("GET", server.URL+"/api/items?storage=fridge", token, nil)
	var list store.ListResult
	doJSON(t, req, http.StatusOK, &list)
	if list.Total != 1 {
		t.Errorf("expected 1 item, got %d", list.Total)
	}

	// Edit with a typed-in days-left.
	req, _ = authRequest("PUT", server.URL+"/api/items/"+item.ID, token, map[string]any{
		"name":             "Strawberries",
		"storage":          "fridge",
		"days_left":        "2",
		"days_left_edited": true,
	})
	var updated model.Item
	doJSON(t, req, http.StatusOK, &updated)
	if updated.DaysLeft == nil || *updated.DaysLeft != 2 {
		t.Errorf("expected days_left 2, got %v", updated.DaysLeft)
	}

	// Delete, then the item is gone.
	req, _ = authRequest("DELETE", server.URL+"/api/items/"+item.ID, token, nil)
	doJSON(t, req, http.StatusOK, nil)

	req, _ = authRequest("GET", server.URL+"/api/items/"+item.ID, token, nil)
	doJSON(t, req, http.StatusNotFound, nil)
}

func TestQuantityAdjustFlow(t *testing.T) {
	server, token, _ := setupTestServer(t)

	req, _ := authRequest("POST", server.URL+"/api/items", token, map[string]string{
		"name":      "Flour",
		"qty_type":  "weight",
		"qty_unit":  "g",
		"qty_value": "500",
	})
	var item model.Item
	doJSON(t, req, http.StatusCreated, &item)

	// -200 g leaves 300 g.
	req, _ = authRequest("POST", server.URL+"/api/items/"+item.ID+"/quantity/adjust", token,
		map[string]any{"delta": -200, "unit": "g"})
	var qres quantityResponse
	doJSON(t, req, http.StatusOK, &qres)
	if qres.Deleted || qres.Item == nil || qres.Item.QtyValue != 300 {
		t.Fatalf("expected 300 g left, got %+v", qres)
	}

	// -1 kg overdraws: clamped to zero and gone.
	req, _ = authRequest("POST", server.URL+"/api/items/"+item.ID+"/quantity/adjust", token,
		map[string]any{"delta": -1, "unit": "kg"})
	qres = quantityResponse{}
	doJSON(t, req, http.StatusOK, &qres)
	if !qres.Deleted {
		t.Fatal("expected deleted outcome")
	}

	req, _ = authRequest("GET", server.URL+"/api/items/"+item.ID, token, nil)
	doJSON(t, req, http.StatusNotFound, nil)

	// Adjusting again stays a quiet success.
	req, _ = authRequest("POST", server.URL+"/api/items/"+item.ID+"/quantity/adjust", token,
		map[string]any{"delta": -1})
	qres = quantityResponse{}
	doJSON(t, req, http.StatusOK, &qres)
	if !qres.Deleted {
		t.Error("expected deleted outcome for missing item")
	}
}

func TestSetQuantityRejectsZero(t *testing.T) {
	server, token, _ := setupTestServer(t)

	req, _ := authRequest("POST", server.URL+"/api/items", token, map[string]string{
		"name": "Milk", "qty_type": "volume", "qty_unit": "l", "qty_value": "1",
	})
	var item model.Item
	doJSON(t, req, http.StatusCreated, &item)

	req, _ = authRequest("PUT", server.URL+"/api/items/"+item.ID+"/quantity", token,
		map[string]string{"qty_type": "volume", "qty_unit": "l", "qty_value": "0"})
	doJSON(t, req, http.StatusBadRequest, nil)
}

func TestItemsScopedToUser(t *testing.T) {
	server, token, database := setupTestServer(t)

	req, _ := authRequest("POST", server.URL+"/api/items", token, map[string]string{"name": "Mine"})
	var item model.Item
	doJSON(t, req, http.StatusCreated, &item)

	// A second account cannot see or touch it.
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.DefaultCost)
	store.CreateUser(ctx, database, "other", string(hash))

	body, _ := json.Marshal(map[string]string{"username": "other", "password": "pw"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	var loginResp map[string]string
	json.NewDecoder(resp.Body).Decode(&loginResp)
	resp.Body.Close()
	otherToken := loginResp["token"]

	req, _ = authRequest("GET", server.URL+"/api/items/"+item.ID, otherToken, nil)
	doJSON(t, req, http.StatusNotFound, nil)

	req, _ = authRequest("GET", server.URL+"/api/items", otherToken, nil)
	var list store.ListResult
	doJSON(t, req, http.StatusOK, &list)
	if list.Total != 0 {
		t.Errorf("expected empty list for other user, got %d", list.Total)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	server, token, _ := setupTestServer(t)

	req, _ := authRequest("POST", server.URL+"/api/auth/logout", token, nil)
	doJSON(t, req, http.StatusOK, nil)

	req, _ = authRequest("GET", server.URL+"/api/items", token, nil)
	doJSON(t, req, http.StatusUnauthorized, nil)
}

func TestStatsAndQuickSteps(t *testing.T) {
	server, token, _ := setupTestServer(t)

	req, _ := authRequest("POST", server.URL+"/api/items", token, map[string]string{
		"name": "Chives", "days_left": "0",
	})
	doJSON(t, req, http.StatusCreated, nil)

	req, _ = authRequest("GET", server.URL+"/api/stats", token, nil)
	var counters model.Counters
	doJSON(t, req, http.StatusOK, &counters)
	if counters.ExpiringToday != 1 || counters.Total != 1 {
		t.Errorf("unexpected counters: %+v", counters)
	}

	req, _ = authRequest("GET", server.URL+"/api/quick-steps?type=weight", token, nil)
	var steps struct {
		Steps []float64 `json:"steps"`
	}
	doJSON(t, req, http.StatusOK, &steps)
	if len(steps.Steps) == 0 {
		t.Error("expected quick steps")
	}
}

func TestDevicesAPIFlow(t *testing.T) {
	server, token, _ := setupTestServer(t)

	req, _ := authRequest("POST", server.URL+"/api/devices", token, map[string]string{
		"push_endpoint": "https://push.example/abc",
		"user_agent":    "test",
	})
	doJSON(t, req, http.StatusOK, nil)

	req, _ = authRequest("GET", server.URL+"/api/devices", token, nil)
	var devices []store.Device
	doJSON(t, req, http.StatusOK, &devices)
	if len(devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(devices))
	}

	req, _ = authRequest("DELETE", server.URL+"/api/devices?endpoint=https%3A%2F%2Fpush.example%2Fabc", token, nil)
	doJSON(t, req, http.StatusOK, nil)
}
