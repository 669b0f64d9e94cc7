package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/busan-travel-service/internal/client"
	"github.com/kjstillabower/busan-travel-service/internal/degraded"
	"github.com/kjstillabower/busan-travel-service/internal/idle"
	"github.com/kjstillabower/busan-travel-service/internal/lifecycle"
	"github.com/kjstillabower/busan-travel-service/internal/models"
	"github.com/kjstillabower/busan-travel-service/internal/observability"
	"github.com/kjstillabower/busan-travel-service/internal/traffic"
	"github.com/kjstillabower/busan-travel-service/internal/validation"
	"github.com/kjstillabower/busan-travel-service/internal/views"
)

// WeatherSource supplies the weather shown on the index page.
type WeatherSource interface {
	Snapshot(ctx context.Context) models.WeatherSnapshot
}

// Recommender looks up blog posts for the travel-course pages.
type Recommender interface {
	Configured() bool
	Recommend(ctx context.Context, kind, place string) ([]models.BlogPost, error)
}

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	Degraded degraded.Policy
	// OverloadDenials is the rate-limit denial count within Degraded.Window that
	// reports overloaded; 0 disables the check.
	OverloadDenials int
	// KMAConfigured is false when no usable service key was supplied.
	KMAConfigured bool
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// PlaceLimits bounds the place name accepted by the blog proxy.
type PlaceLimits struct {
	Min int
	Max int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weather          WeatherSource
	recommender      Recommender
	views            *views.Renderer
	healthConfig     *HealthConfig
	place            PlaceLimits
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(
	weather WeatherSource,
	recommender Recommender,
	renderer *views.Renderer,
	healthConfig *HealthConfig,
	place PlaceLimits,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		weather:      weather,
		recommender:  recommender,
		views:        renderer,
		healthConfig: healthConfig,
		place:        place,
		logger:       logger,
	}
}

// courseLabels maps a travel-course kind to its page heading.
var courseLabels = map[string]string{
	"walk":     "산책 코스",
	"photo":    "포토 스팟",
	"sea":      "바다 코스",
	"hotplace": "핫플",
}

// GetIndex handles GET / and GET /index. Weather fields fall back to "--".
func (h *Handler) GetIndex(w http.ResponseWriter, r *http.Request) {
	idle.RecordPageView()
	snap := h.weather.Snapshot(r.Context())
	h.render(w, r, "index", &views.Page{Title: "홈", Path: "/", Weather: &snap})
}

// Page returns a handler rendering a static page template.
func (h *Handler) Page(name, title, path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idle.RecordPageView()
		h.render(w, r, name, &views.Page{Title: title, Path: path})
	}
}

// GetCourse handles GET /travel-course/{kind}.
func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	label, ok := courseLabels[kind]
	if !ok {
		http.NotFound(w, r)
		return
	}
	idle.RecordPageView()
	h.render(w, r, "course", &views.Page{
		Title:  label,
		Path:   "/travel-course",
		Course: &views.Course{Kind: kind, Label: label},
	})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, page *views.Page) {
	var buf bytes.Buffer
	if err := h.views.Render(&buf, name, page); err != nil {
		h.loggerFor(r).Error("render page", zap.String("page", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// blogResponse is the JSON contract of the blog proxy. Items is never null.
type blogResponse struct {
	Items []models.BlogPost `json:"items"`
	Error string            `json:"error,omitempty"`
}

const (
	msgSearchNotConfigured = "NAVER API 키가 없습니다."
	msgSearchUnavailable   = "search unavailable"
)

// GetBlogSearch handles GET /api/naver-{kind}?q=.
func (h *Handler) GetBlogSearch(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	if err := validation.ValidateKind(kind); err != nil {
		writeJSON(w, http.StatusNotFound, blogResponse{Items: []models.BlogPost{}, Error: err.Error()})
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusOK, blogResponse{Items: []models.BlogPost{}})
		return
	}
	if !h.recommender.Configured() {
		writeJSON(w, http.StatusBadRequest, blogResponse{Items: []models.BlogPost{}, Error: msgSearchNotConfigured})
		return
	}
	place, err := validation.ValidatePlace(q, h.place.Min, h.place.Max)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, blogResponse{Items: []models.BlogPost{}, Error: err.Error()})
		return
	}

	posts, err := h.recommender.Recommend(r.Context(), kind, place)
	if err != nil {
		if errors.Is(err, client.ErrSearchNotConfigured) {
			writeJSON(w, http.StatusBadRequest, blogResponse{Items: []models.BlogPost{}, Error: msgSearchNotConfigured})
			return
		}
		writeJSON(w, http.StatusBadGateway, blogResponse{Items: []models.BlogPost{}, Error: msgSearchUnavailable})
		return
	}
	if posts == nil {
		posts = []models.BlogPost{}
	}
	writeJSON(w, http.StatusOK, blogResponse{Items: posts})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result, st := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{
		"kma":    "healthy",
		"search": "configured",
	}
	switch {
	case h.healthConfig != nil && !h.healthConfig.KMAConfigured:
		checks["kma"] = "unconfigured"
	case st.Degraded:
		checks["kma"] = "unhealthy"
	}
	if h.recommender != nil && !h.recommender.Configured() {
		checks["search"] = "unconfigured"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":         result.status,
		"service":        "busan-travel-service",
		"version":        "dev",
		"phase":          lifecycle.CurrentPhase().String(),
		"checks":         checks,
		"upstreamErrors": st.Errors,
		"upstreamCalls":  st.Total,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > starting > overloaded > degraded > healthy.
// Degraded stays 200: pages still render, with "--" in place of weather.
func (h *Handler) computeHealthStatus() (healthResult, degraded.Status) {
	var st degraded.Status
	if h.healthConfig != nil {
		st = h.healthConfig.Degraded.Evaluate()
	}
	switch lifecycle.CurrentPhase() {
	case lifecycle.PhaseShuttingDown:
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}, st
	case lifecycle.PhaseStarting:
		return healthResult{"starting", http.StatusServiceUnavailable, "startup"}, st
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}, st
	}
	if n := h.healthConfig.OverloadDenials; n > 0 && h.healthConfig.Degraded.Window > 0 {
		if traffic.DenialCount(h.healthConfig.Degraded.Window) >= n {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "rate_limit_denials"}, st
		}
	}
	if st.Degraded {
		return healthResult{"degraded", http.StatusOK, "error_rate_breach"}, st
	}
	return healthResult{"healthy", http.StatusOK, ""}, st
}

func (h *Handler) loggerFor(r *http.Request) *zap.Logger {
	if l := observability.LoggerFromContext(r.Context()); l != nil {
		return l
	}
	return h.logger
}

// NotFound writes the JSON error envelope for unknown /api routes and plain 404 elsewhere.
func NotFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "unknown endpoint")
		return
	}
	http.NotFound(w, r)
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}
