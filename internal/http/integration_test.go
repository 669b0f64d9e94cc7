//go:build integration
// +build integration

package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/busan-travel-service/internal/degraded"
	"github.com/kjstillabower/busan-travel-service/internal/models"
	"github.com/kjstillabower/busan-travel-service/internal/observability"
	testhelpers "github.com/kjstillabower/busan-travel-service/internal/testhelpers"
	"github.com/kjstillabower/busan-travel-service/internal/views"
)

func setupIntegrationRouter(t *testing.T) (http.Handler, func()) {
	cfg := testhelpers.GetIntegrationConfig(t)
	svc, _, cleanup := testhelpers.SetupIntegrationService(t, cfg)

	renderer, err := views.New()
	if err != nil {
		t.Fatalf("views.New() = %v", err)
	}
	logger, err := observability.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() = %v", err)
	}
	hc := &HealthConfig{
		Degraded:      degraded.Policy{Window: 5 * time.Minute, ErrorRateThreshold: 0.5, MinSamples: 3},
		KMAConfigured: true,
	}
	h := NewHandler(svc, &mockRecommender{}, renderer, hc, PlaceLimits{Min: 1, Max: 40}, logger)
	return NewRouter(h, RouterConfig{RequestTimeout: 15 * time.Second, Static: renderer.Static(), Logger: logger}), cleanup
}

func TestIntegration_IndexRendersLiveWeather(t *testing.T) {
	resetState(t)
	router, cleanup := setupIntegrationRouter(t)
	defer cleanup()

	w := serve(router, http.MethodGet, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if n := strings.Count(w.Body.String(), models.Absent); n > 0 {
		t.Logf("page shows %d absent markers (KMA may be lagging)", n)
	}

	start := time.Now()
	w = serve(router, http.MethodGet, "/index")
	if w.Code != http.StatusOK {
		t.Fatalf("second request status = %d", w.Code)
	}
	if d := time.Since(start); d > time.Second {
		t.Errorf("second request took %v, want a cache hit", d)
	}
}

func TestIntegration_Health(t *testing.T) {
	resetState(t)
	router, cleanup := setupIntegrationRouter(t)
	defer cleanup()

	serve(router, http.MethodGet, "/")
	w := serve(router, http.MethodGet, "/health")
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy after a live fetch", body["status"])
	}
}
