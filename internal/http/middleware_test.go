package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/busan-travel-service/internal/observability"
	"github.com/kjstillabower/busan-travel-service/internal/traffic"
)

type errorEnvelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func TestMiddleware_CorrelationIDGenerated(t *testing.T) {
	resetState(t)
	var seen string
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.NewNop()))
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		seen = observability.CorrelationID(r.Context())
		if observability.LoggerFromContext(r.Context()) == nil {
			t.Error("request logger missing from context")
		}
	})

	w := serve(router, http.MethodGet, "/x")
	got := w.Header().Get("X-Correlation-ID")
	if got == "" || got != seen {
		t.Errorf("X-Correlation-ID = %q, context = %q; want equal and non-empty", got, seen)
	}
}

func TestMiddleware_CorrelationIDPropagated(t *testing.T) {
	resetState(t)
	router := newTestRouter(t, newTestHandler(t, &mockWeather{snap: sunny}, &mockRecommender{}, nil))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "client-provided-id")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "client-provided-id" {
		t.Errorf("X-Correlation-ID = %q, want client-provided-id", got)
	}
}

func TestMiddleware_GetRouteUsesTemplate(t *testing.T) {
	var route string
	router := mux.NewRouter()
	router.HandleFunc("/api/naver-{kind}", func(w http.ResponseWriter, r *http.Request) {
		route = getRoute(r)
	})

	serve(router, http.MethodGet, "/api/naver-walk?q=x")
	if route != "/api/naver-{kind}" {
		t.Errorf("getRoute() = %q, want /api/naver-{kind}", route)
	}
	if got := getRoute(httptest.NewRequest(http.MethodGet, "/nowhere", nil)); got != "unmatched" {
		t.Errorf("getRoute(no route) = %q, want unmatched", got)
	}
}

func TestMiddleware_MetricsTracksInFlight(t *testing.T) {
	var during int64
	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		during = InFlightCount()
		w.WriteHeader(http.StatusTeapot)
	})

	w := serve(router, http.MethodGet, "/x")
	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418 passed through recorder", w.Code)
	}
	if during < 1 {
		t.Errorf("InFlightCount() during request = %d, want >= 1", during)
	}
	if got := InFlightCount(); got != 0 {
		t.Errorf("InFlightCount() after request = %d, want 0", got)
	}
}

func TestStatusCodeString(t *testing.T) {
	for code, want := range map[int]string{200: "2xx", 404: "4xx", 502: "5xx"} {
		if got := statusCodeString(code); got != want {
			t.Errorf("statusCodeString(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestTimeoutMiddleware_SetsDeadline(t *testing.T) {
	var remaining time.Duration
	router := mux.NewRouter()
	router.Use(TimeoutMiddleware(50 * time.Millisecond))
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		deadline, ok := r.Context().Deadline()
		if !ok {
			t.Fatal("no deadline on request context")
		}
		remaining = time.Until(deadline)
	})

	serve(router, http.MethodGet, "/x")
	if remaining <= 0 || remaining > 50*time.Millisecond {
		t.Errorf("remaining = %v, want within (0, 50ms]", remaining)
	}
}

func TestRateLimitMiddleware_Returns429WhenExceeded(t *testing.T) {
	resetState(t)
	h := newTestHandler(t, &mockWeather{snap: sunny}, &mockRecommender{}, nil)
	router := NewRouter(h, RouterConfig{Limiter: rate.NewLimiter(rate.Every(time.Hour), 2)})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/naver-walk", nil)
		req.Header.Set("X-Correlation-ID", "corr-429")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if i < 2 {
			if w.Code != http.StatusOK {
				t.Errorf("request %d: status = %d, want 200", i, w.Code)
			}
			continue
		}
		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("request %d: status = %d, want 429", i, w.Code)
		}
		var env errorEnvelope
		if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
			t.Fatalf("decode 429 response: %v", err)
		}
		if env.Error.Code != "RATE_LIMITED" || env.Error.RequestID != "corr-429" {
			t.Errorf("error = %+v, want RATE_LIMITED with requestId corr-429", env.Error)
		}
	}
	if got := traffic.DenialCount(time.Minute); got != 1 {
		t.Errorf("DenialCount = %d, want 1", got)
	}
}

func TestRateLimitMiddleware_SkipsStaticPages(t *testing.T) {
	resetState(t)
	h := newTestHandler(t, &mockWeather{}, &mockRecommender{}, nil)
	router := NewRouter(h, RouterConfig{Limiter: rate.NewLimiter(rate.Every(time.Hour), 1)})

	for i := 0; i < 3; i++ {
		if w := serve(router, http.MethodGet, "/festivities"); w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i, w.Code)
		}
	}
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	RateLimitMiddleware(nil)(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("nil limiter blocked the request")
	}
}

func TestRouter_UnknownAPIRouteUsesErrorEnvelope(t *testing.T) {
	resetState(t)
	router := newTestRouter(t, newTestHandler(t, &mockWeather{}, &mockRecommender{}, nil))

	w := serve(router, http.MethodGet, "/api/weather")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var env errorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error.Code != "NOT_FOUND" {
		t.Errorf("error.code = %q, want NOT_FOUND", env.Error.Code)
	}
}

func TestRouter_ServesStaticAndMetrics(t *testing.T) {
	resetState(t)
	router := newTestRouter(t, newTestHandler(t, &mockWeather{}, &mockRecommender{}, nil))

	w := serve(router, http.MethodGet, "/static/js/course.js")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "naver-") {
		t.Errorf("GET /static/js/course.js = %d", w.Code)
	}

	serve(router, http.MethodGet, "/festivities")
	w = serve(router, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `route="/festivities"`) {
		t.Error("metrics missing http request series for /festivities")
	}
}
