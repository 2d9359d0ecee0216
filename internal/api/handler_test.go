package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/palletplan/internal/pallet"
	"github.com/eugenenazirov/palletplan/internal/storage"
	"github.com/eugenenazirov/palletplan/internal/units"
)

type controllableClock struct {
	mu  sync.RWMutex
	now time.Time
}

func newControllableClock(initial time.Time) *controllableClock {
	return &controllableClock{now: initial}
}

func (c *controllableClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *controllableClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setupTestRouter(t *testing.T) (http.Handler, *controllableClock) {
	t.Helper()

	store := storage.NewMemoryStorage()
	clock := newControllableClock(time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC))
	logger := zaptest.NewLogger(t)

	handler := NewHandler(pallet.New(), store, WithClock(clock.Now), WithLogger(logger), WithDefaultUnits(units.Imperial))
	router := NewRouter(handler, logger, WithLogging(false), WithRateLimit(0, 0))

	return router, clock
}

func doJSON(t *testing.T, router http.Handler, method, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	switch v := payload.(type) {
	case nil:
		body = bytes.NewReader(nil)
	case string:
		body = bytes.NewReader([]byte(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return out
}

func scenarioPayload() map[string]any {
	return map[string]any{
		"box":       map[string]any{"length": 18, "width": 14, "height": 12, "weight": 25},
		"pallet":    map[string]any{"length": 48, "width": 40},
		"maxHeight": 48,
		"maxWeight": 2200,
		"quantity":  500,
		"mode":      "default",
	}
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := contextWithRequestID(context.Background(), "abc")
	if got := requestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
	}
	resp := httptest.NewRecorder()
	writeInternalError(resp, assertError("boom"))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 status, got %d", resp.Code)
	}
}

type assertError string

func (a assertError) Error() string { return string(a) }

func TestHealthEndpoint(t *testing.T) {
	router, clock := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body := decode[healthResponse](t, rec)
	if body.Status != "ok" {
		t.Fatalf("expected status ok, got %s", body.Status)
	}
	if !body.Timestamp.Equal(clock.Now()) {
		t.Fatalf("expected timestamp %s, got %s", clock.Now(), body.Timestamp)
	}
}

func TestListPalletsReturnsDefaults(t *testing.T) {
	router, clock := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/pallets", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body := decode[profilesResponse](t, rec)
	want := storage.DefaultProfiles()
	if len(body.Profiles) != len(want) {
		t.Fatalf("expected %d profiles, got %d", len(want), len(body.Profiles))
	}
	for i, p := range want {
		if body.Profiles[i].Name != p.Name {
			t.Fatalf("expected profile %s at position %d, got %s", p.Name, i, body.Profiles[i].Name)
		}
	}
	if body.Units != "imperial" {
		t.Fatalf("expected imperial units, got %s", body.Units)
	}
	if !body.UpdatedAt.Equal(clock.Now()) {
		t.Fatalf("expected updatedAt %s, got %s", clock.Now(), body.UpdatedAt)
	}
}

func TestListPalletsConvertsUnits(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/pallets?units=metric", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body := decode[profilesResponse](t, rec)
	for _, p := range body.Profiles {
		if p.Name == "euro" && (p.Length != 120 || p.Width != 80 || p.MaxWeight != 1000) {
			t.Fatalf("expected euro pallet 120x80 cm / 1000 kg, got %+v", p)
		}
		if p.Name == "gma" && p.Length != 121.92 {
			t.Fatalf("expected gma length 121.92 cm, got %v", p.Length)
		}
	}

	rec = doJSON(t, router, http.MethodGet, "/api/pallets?units=parsecs", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for unknown units, got %d", rec.Code)
	}
}

func TestGetPallet(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/pallets/GMA", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := decode[profileResponse](t, rec)
	if body.Name != "gma" || body.Length != 48 || body.Width != 40 {
		t.Fatalf("unexpected profile %+v", body)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/pallets/unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestPutPalletStoresProfile(t *testing.T) {
	router, clock := setupTestRouter(t)

	clock.Advance(time.Hour)

	payload := map[string]any{"length": 100, "width": 120, "maxHeight": 180, "maxWeight": 1200, "units": "metric"}
	rec := doJSON(t, router, http.MethodPut, "/api/pallets/Industrial", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decode[profileUpdateResponse](t, rec)
	if body.Message == "" {
		t.Fatalf("expected success message, got empty string")
	}
	if body.Profile.Name != "industrial" || body.Profile.Length != 100 || body.Profile.MaxWeight != 1200 {
		t.Fatalf("unexpected stored profile %+v", body.Profile)
	}
	if !body.UpdatedAt.Equal(clock.Now()) {
		t.Fatalf("expected updatedAt %s, got %s", clock.Now(), body.UpdatedAt)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/pallets/industrial", nil)
	got := decode[profileResponse](t, rec)
	if got.Width != 47.24 {
		t.Fatalf("expected width stored as 47.24 in, got %v", got.Width)
	}
}

func TestPutPalletValidatesInput(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPut, "/api/pallets/broken", map[string]any{"length": 48, "width": 0, "maxHeight": 48, "maxWeight": 2000})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPut, "/api/pallets/broken", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for malformed JSON, got %d", rec.Code)
	}
}

func TestDeletePallet(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodDelete, "/api/pallets/half", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/pallets/half", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 on second delete, got %d", rec.Code)
	}
}

func TestPlanEndpointSuccess(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/plan", scenarioPayload())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decode[PlanResponse](t, rec)
	if !body.Orientation.Rotated || body.Orientation.BoxesPerLayer != 6 {
		t.Fatalf("expected rotated orientation with 6 boxes per layer, got %+v", body.Orientation)
	}
	if body.Layers != 4 || body.LimitingFactor != "height" {
		t.Fatalf("expected 4 height-limited layers, got %d (%s)", body.Layers, body.LimitingFactor)
	}
	if body.BoxesPerPallet != 24 {
		t.Fatalf("expected 24 boxes per pallet, got %d", body.BoxesPerPallet)
	}
	if body.PalletsNeeded != 21 {
		t.Fatalf("expected 21 pallets, got %d", body.PalletsNeeded)
	}
	if body.CubeUtilization != 78.75 {
		t.Fatalf("expected cube utilization 78.75, got %v", body.CubeUtilization)
	}
	if body.WeightUtilization != 27.27 {
		t.Fatalf("expected weight utilization 27.27, got %v", body.WeightUtilization)
	}
	if body.LengthUnit != "in" || body.WeightUnit != "lb" {
		t.Fatalf("unexpected units %s/%s", body.LengthUnit, body.WeightUnit)
	}
	if len(body.Layout) != 0 {
		t.Fatalf("expected no layout unless requested, got %d placements", len(body.Layout))
	}
}

func TestPlanEndpointUsesProfile(t *testing.T) {
	router, _ := setupTestRouter(t)

	payload := map[string]any{
		"box":           map[string]any{"length": 18, "width": 14, "height": 12, "weight": 25},
		"palletProfile": "gma",
		"quantity":      500,
		"includeLayout": true,
	}
	rec := doJSON(t, router, http.MethodPost, "/api/plan", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decode[PlanResponse](t, rec)
	if body.Pallet.Profile != "gma" || body.Pallet.MaxWeight != 2200 {
		t.Fatalf("expected gma profile limits, got %+v", body.Pallet)
	}
	if body.PalletsNeeded != 21 {
		t.Fatalf("expected 21 pallets, got %d", body.PalletsNeeded)
	}
	if len(body.Layout) != body.BoxesPerPallet {
		t.Fatalf("expected %d placements, got %d", body.BoxesPerPallet, len(body.Layout))
	}
}

func TestPlanEndpointMetricInput(t *testing.T) {
	router, _ := setupTestRouter(t)

	payload := map[string]any{
		"box":           map[string]any{"length": 45.72, "width": 35.56, "height": 30.48, "weight": 11.34},
		"palletProfile": "gma",
		"quantity":      500,
		"units":         "metric",
	}
	rec := doJSON(t, router, http.MethodPost, "/api/plan", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decode[PlanResponse](t, rec)
	if body.Layers != 4 || body.BoxesPerPallet != 24 || body.PalletsNeeded != 21 {
		t.Fatalf("expected metric input to match imperial plan, got layers=%d perPallet=%d pallets=%d",
			body.Layers, body.BoxesPerPallet, body.PalletsNeeded)
	}
	if body.LoadHeight != 121.92 || body.LengthUnit != "cm" {
		t.Fatalf("expected load height 121.92 cm, got %v %s", body.LoadHeight, body.LengthUnit)
	}
}

func TestPlanEndpointInfeasible(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		name   string
		mutate func(map[string]any)
		reason string
	}{
		{
			name: "does not fit",
			mutate: func(p map[string]any) {
				p["box"] = map[string]any{"length": 60, "width": 50, "height": 10, "weight": 25}
			},
			reason: "doesNotFit",
		},
		{
			name:   "exceeds height",
			mutate: func(p map[string]any) { p["maxHeight"] = 10 },
			reason: "exceedsHeight",
		},
		{
			name:   "exceeds weight",
			mutate: func(p map[string]any) { p["maxWeight"] = 20 },
			reason: "exceedsWeight",
		},
		{
			name:   "zero capacity",
			mutate: func(p map[string]any) { p["maxWeight"] = 100 },
			reason: "zeroCapacity",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload := scenarioPayload()
			tc.mutate(payload)

			rec := doJSON(t, router, http.MethodPost, "/api/plan", payload)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected status 422, got %d", rec.Code)
			}
			body := decode[errorResponse](t, rec)
			if body.Reason != tc.reason {
				t.Fatalf("expected reason %s, got %s", tc.reason, body.Reason)
			}
			if body.Suggestion == "" {
				t.Fatalf("expected suggestion to be populated")
			}
		})
	}
}

func TestPlanEndpointInvalidInput(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		name   string
		mutate func(map[string]any)
		field  string
	}{
		{
			name:   "fractional quantity",
			mutate: func(p map[string]any) { p["quantity"] = 10.5 },
			field:  "quantity",
		},
		{
			name:   "zero quantity",
			mutate: func(p map[string]any) { p["quantity"] = 0 },
			field:  "quantity",
		},
		{
			name: "missing box length",
			mutate: func(p map[string]any) {
				p["box"] = map[string]any{"width": 14, "height": 12, "weight": 25}
			},
			field: "box.length",
		},
		{
			name:   "missing pallet",
			mutate: func(p map[string]any) { delete(p, "pallet") },
			field:  "pallet.length",
		},
		{
			name:   "unknown mode",
			mutate: func(p map[string]any) { p["mode"] = "cheapest" },
			field:  "mode",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload := scenarioPayload()
			tc.mutate(payload)

			rec := doJSON(t, router, http.MethodPost, "/api/plan", payload)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
			body := decode[errorResponse](t, rec)
			if body.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, body.Field)
			}
		})
	}
}

func TestPlanEndpointRejectsBadRequests(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/plan", "{")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for malformed JSON, got %d", rec.Code)
	}

	payload := scenarioPayload()
	payload["units"] = "cubits"
	rec = doJSON(t, router, http.MethodPost, "/api/plan", payload)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for unknown units, got %d", rec.Code)
	}

	payload = scenarioPayload()
	delete(payload, "pallet")
	payload["palletProfile"] = "nope"
	rec = doJSON(t, router, http.MethodPost, "/api/plan", payload)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for unknown profile, got %d", rec.Code)
	}
}

func TestPlanEndpointRejectsOversizedLayout(t *testing.T) {
	router, _ := setupTestRouter(t)

	payload := scenarioPayload()
	payload["box"] = map[string]any{"length": 0.05, "width": 0.05, "height": 0.05, "weight": 0.000001}
	payload["includeLayout"] = true

	rec := doJSON(t, router, http.MethodPost, "/api/plan", payload)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for oversized layout, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[errorResponse](t, rec)
	if body.Field != "includeLayout" || body.Suggestion == "" {
		t.Fatalf("expected includeLayout field with a suggestion, got %+v", body)
	}

	delete(payload, "includeLayout")
	rec = doJSON(t, router, http.MethodPost, "/api/plan", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected the same plan without layout to succeed, got %d: %s", rec.Code, rec.Body.String())
	}
	plan := decode[PlanResponse](t, rec)
	if plan.BoxesPerPallet <= pallet.MaxLayoutPlacements || len(plan.Layout) != 0 {
		t.Fatalf("expected a large plan without layout, got %d boxes and %d placements", plan.BoxesPerPallet, len(plan.Layout))
	}
}

func TestRequestBodyLimit(t *testing.T) {
	router, _ := setupTestRouter(t)

	oversized := `{"box":{"length":18},"mode":"` + strings.Repeat("x", maxRequestBodyBytes) + `"}`
	tests := []struct {
		method string
		target string
	}{
		{http.MethodPost, "/api/plan"},
		{http.MethodPut, "/api/pallets/huge"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := doJSON(t, router, tt.method, tt.target, oversized)
			if rec.Code != http.StatusRequestEntityTooLarge {
				t.Fatalf("expected status 413, got %d", rec.Code)
			}
		})
	}
}

func TestPlanEndpointWeightSafety(t *testing.T) {
	router, _ := setupTestRouter(t)

	payload := map[string]any{
		"box":           map[string]any{"length": 12, "width": 10, "height": 6, "weight": 60},
		"palletProfile": "gma",
		"quantity":      100,
		"mode":          "weightSafety",
	}
	rec := doJSON(t, router, http.MethodPost, "/api/plan", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decode[PlanResponse](t, rec)
	if body.Layers != 1 || body.LimitingFactor != "weight" {
		t.Fatalf("expected 1 weight-limited layer, got %d (%s)", body.Layers, body.LimitingFactor)
	}
	if body.EffectiveMaxWeight != 1760 {
		t.Fatalf("expected effective max weight 1760, got %v", body.EffectiveMaxWeight)
	}
	if body.Mode != "weightSafety" {
		t.Fatalf("expected weightSafety mode, got %s", body.Mode)
	}
}

func TestCorsPreflight(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/plan", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("expected Access-Control-Allow-Origin header to be set")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "test-request-id")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "test-request-id" {
		t.Fatalf("expected X-Request-ID header to be echoed, got %s", got)
	}
}
