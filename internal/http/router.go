package http

import (
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/busan-travel-service/internal/observability"
)

// RouterConfig holds the cross-cutting settings applied by NewRouter.
type RouterConfig struct {
	Limiter        *rate.Limiter
	RequestTimeout time.Duration
	Static         fs.FS
	Logger         *zap.Logger
}

// NewRouter wires pages, the blog proxy, health and metrics. The rate limiter and
// request deadline apply to routes that reach an upstream (index and /api).
func NewRouter(h *Handler, cfg RouterConfig) *mux.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.NotFoundHandler = http.HandlerFunc(NotFound)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	if cfg.Static != nil {
		router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(cfg.Static))))
	}

	upstream := router.NewRoute().Subrouter()
	upstream.Use(RateLimitMiddleware(cfg.Limiter))
	if cfg.RequestTimeout > 0 {
		upstream.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	upstream.HandleFunc("/", h.GetIndex).Methods(http.MethodGet)
	upstream.HandleFunc("/index", h.GetIndex).Methods(http.MethodGet)
	upstream.HandleFunc("/api/naver-{kind}", h.GetBlogSearch).Methods(http.MethodGet)

	router.HandleFunc("/festivities", h.Page("festivities", "축제", "/festivities")).Methods(http.MethodGet)
	router.HandleFunc("/tourist-attraction", h.Page("tourist-attraction", "관광지", "/tourist-attraction")).Methods(http.MethodGet)
	router.HandleFunc("/traffic", h.Page("traffic", "교통", "/traffic")).Methods(http.MethodGet)
	router.HandleFunc("/login", h.Page("login", "로그인", "/login")).Methods(http.MethodGet)
	router.HandleFunc("/travel-course", h.Page("travel-course", "여행 코스", "/travel-course")).Methods(http.MethodGet)
	router.HandleFunc("/travel-course/{kind}", h.GetCourse).Methods(http.MethodGet)

	return router
}
