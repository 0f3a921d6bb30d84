package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rotiku/backend/internal/cache"
	"rotiku/backend/internal/domain"
	"rotiku/backend/internal/inventory"
	"rotiku/backend/internal/service"
	"rotiku/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	engine := inventory.NewEngine(repo, nil, inventory.DefaultExpirySoonDays)
	svc := service.New(repo, engine, cache.NewNoop(), nil, 7)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*", nil)
}

func login(t *testing.T, api *API, username, password string) string {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("login as %s failed: %d %s", username, res.Code, res.Body.String())
	}

	var payload domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if payload.AccessToken == "" {
		t.Fatalf("expected access token in login response")
	}
	return payload.AccessToken
}

// doJSON issues an authenticated request with a valid CSRF token and decodes
// the JSON response into dest (when dest is non-nil).
func doJSON(t *testing.T, api *API, method, path, token string, payload any, dest any) int {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal request payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-CSRF-Token", fetchCSRFToken(t, api))
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)
	if dest != nil && res.Code < 300 {
		if err := json.NewDecoder(res.Body).Decode(dest); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return res.Code
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestIngredientsRequireAuth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ingredients", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestIngredientCreateRequiresAdmin(t *testing.T) {
	api := newTestAPI(t)
	staffToken := login(t, api, "staff", "staff123")

	code := doJSON(t, api, http.MethodPost, "/api/v1/ingredients", staffToken, domain.IngredientCreateRequest{
		Name:         "Vanili",
		Unit:         "gram",
		MinimumStock: 5,
	}, nil)
	if code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff ingredient create, got %d", code)
	}

	adminToken := login(t, api, "admin", "admin123")
	var created struct {
		Ingredient domain.Ingredient `json:"ingredient"`
	}
	code = doJSON(t, api, http.MethodPost, "/api/v1/ingredients", adminToken, domain.IngredientCreateRequest{
		Name:         "Vanili",
		Unit:         "gram",
		MinimumStock: 5,
	}, &created)
	if code != http.StatusCreated {
		t.Fatalf("expected 201 for admin ingredient create, got %d", code)
	}
	if created.Ingredient.ID == "" || created.Ingredient.Name != "Vanili" {
		t.Fatalf("unexpected ingredient in response: %+v", created.Ingredient)
	}
}

func TestReceiveLotOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	adminToken := login(t, api, "admin", "admin123")

	var created struct {
		Lot domain.IngredientLot `json:"lot"`
	}
	code := doJSON(t, api, http.MethodPost, "/api/v1/ingredients/ing-tepung/lots", adminToken, domain.LotReceiveRequest{
		Quantity: 25,
		Supplier: "Toko Sumber Rejeki",
	}, &created)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if created.Lot.IngredientID != "ing-tepung" {
		t.Fatalf("expected lot bound to path ingredient, got %q", created.Lot.IngredientID)
	}
	if created.Lot.CurrentStock != 25 {
		t.Fatalf("expected fresh lot stock 25, got %v", created.Lot.CurrentStock)
	}
	if created.Lot.ExpirySource != domain.ExpirySourceCatalogDefault {
		t.Fatalf("expected catalog default expiry, got %q", created.Lot.ExpirySource)
	}
}

func TestRecommendedLotsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "staff", "staff123")

	var result domain.RecommendedLotsResult
	code := doJSON(t, api, http.MethodGet, "/api/v1/ingredients/ing-tepung/recommended-lots?required=10", token, nil, &result)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(result.Lots) == 0 {
		t.Fatalf("expected recommended lots for seeded ingredient")
	}
	if !result.IsSufficient {
		t.Fatalf("expected 10 units to be coverable, total available %v", result.TotalAvailable)
	}
	// Lots must come back in first-expired-first-out order.
	for i := 1; i < len(result.Lots); i++ {
		if result.Lots[i].ExpiryDate.Before(result.Lots[i-1].ExpiryDate) {
			t.Fatalf("lots not sorted by expiry: %v after %v", result.Lots[i].ExpiryDate, result.Lots[i-1].ExpiryDate)
		}
	}
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "staff", "staff123")

	var created struct {
		Order domain.Order `json:"order"`
	}
	code := doJSON(t, api, http.MethodPost, "/api/v1/orders", token, domain.OrderCreateRequest{
		CustomerName: "Bu Sari",
		Lines:        []domain.OrderLine{{ProductName: "Roti Tawar", Quantity: 10}},
	}, &created)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if created.Order.Status != domain.OrderStatusNew {
		t.Fatalf("expected status %q, got %q", domain.OrderStatusNew, created.Order.Status)
	}

	orderPath := "/api/v1/orders/" + created.Order.ID

	var processed struct {
		Order domain.Order `json:"order"`
	}
	code = doJSON(t, api, http.MethodPost, orderPath+"/process", token, nil, &processed)
	if code != http.StatusOK {
		t.Fatalf("expected 200 on process, got %d", code)
	}
	if processed.Order.Status != domain.OrderStatusOnProcess {
		t.Fatalf("expected %q, got %q", domain.OrderStatusOnProcess, processed.Order.Status)
	}
	if processed.Order.LotUsage == nil || len(processed.Order.LotUsage.LotsUsed) == 0 {
		t.Fatalf("expected lot usage recorded when processing starts")
	}

	var completed struct {
		Order domain.Order `json:"order"`
	}
	code = doJSON(t, api, http.MethodPost, orderPath+"/complete", token, nil, &completed)
	if code != http.StatusOK {
		t.Fatalf("expected 200 on complete, got %d", code)
	}
	if completed.Order.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected %q, got %q", domain.OrderStatusCompleted, completed.Order.Status)
	}

	// Completed is terminal.
	code = doJSON(t, api, http.MethodPost, orderPath+"/cancel", token, nil, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 cancelling a completed order, got %d", code)
	}
}

func TestInsufficientOrderParksPendingAndReevaluateConflicts(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "staff", "staff123")

	var created struct {
		Order domain.Order `json:"order"`
	}
	code := doJSON(t, api, http.MethodPost, "/api/v1/orders", token, domain.OrderCreateRequest{
		Lines: []domain.OrderLine{{ProductName: "Croissant", Quantity: 500}},
	}, &created)
	if code != http.StatusCreated {
		t.Fatalf("expected 201 even when stock is short, got %d", code)
	}
	if created.Order.Status != domain.OrderStatusPending {
		t.Fatalf("expected %q, got %q", domain.OrderStatusPending, created.Order.Status)
	}

	path := fmt.Sprintf("/api/v1/orders/%s/reevaluate", created.Order.ID)
	code = doJSON(t, api, http.MethodPost, path, token, nil, nil)
	if code != http.StatusConflict {
		t.Fatalf("expected 409 when stock is still short, got %d", code)
	}
}

func TestUnknownOrderReturns404(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "staff", "staff123")

	code := doJSON(t, api, http.MethodGet, "/api/v1/orders/ord-nonexistent", token, nil, nil)
	if code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestAuditLogsRequireAdminRole(t *testing.T) {
	api := newTestAPI(t)
	staffToken := login(t, api, "staff", "staff123")

	code := doJSON(t, api, http.MethodGet, "/api/v1/audit-logs", staffToken, nil, nil)
	if code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", code)
	}

	adminToken := login(t, api, "admin", "admin123")
	var payload struct {
		Logs []domain.AuditLog `json:"logs"`
	}
	code = doJSON(t, api, http.MethodGet, "/api/v1/audit-logs", adminToken, nil, &payload)
	if code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", code)
	}
}
