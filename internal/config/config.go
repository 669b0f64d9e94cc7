package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultForecastURL    = "https://apis.data.go.kr/1360000/VilageFcstInfoService_2.0/getVilageFcst"
	defaultObservationURL = "https://apis.data.go.kr/1360000/VilageFcstInfoService_2.0/getUltraSrtNcst"
	defaultSearchURL      = "https://openapi.naver.com/v1/search/blog.json"
)

// Config holds service configuration loaded from YAML, secrets and env.
type Config struct {
	ServerPort string `validate:"required,numeric"`

	// KMAServiceKey may be empty or a placeholder; the weather feeds then render "--".
	KMAServiceKey     string
	KMAForecastURL    string        `validate:"required,url"`
	KMAObservationURL string        `validate:"required,url"`
	KMATimeout        time.Duration `validate:"gt=0"`
	GridNX            int           `validate:"min=1,max=149"`
	GridNY            int           `validate:"min=1,max=253"`
	TimeZone          string        `validate:"required"`

	CacheBackend          string        `validate:"oneof=in_memory memcached"`
	ForecastTTL           time.Duration `validate:"gt=0"`
	ObservationTTL        time.Duration `validate:"gt=0"`
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	CacheWarm             bool
	CacheWarmInterval     time.Duration `validate:"gt=0"`
	CacheWarmIdleWindow   time.Duration `validate:"gte=0"`

	SearchURL         string        `validate:"required,url"`
	SearchTimeout     time.Duration `validate:"gt=0"`
	SearchDisplay     int           `validate:"min=1,max=100"`
	NaverClientID     string
	NaverClientSecret string

	RateLimitRPS   int `validate:"gt=0"`
	RateLimitBurst int `validate:"gt=0"`

	BreakerEnabled          bool
	BreakerFailureThreshold int `validate:"gt=0"`
	BreakerSuccessThreshold int `validate:"gt=0"`
	BreakerTimeout          time.Duration

	RequestTimeout  time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
	InFlightTimeout time.Duration `validate:"gt=0"`

	HealthWindow       time.Duration `validate:"gt=0"`
	HealthErrorRatePct int           `validate:"min=1,max=100"`
	HealthMinSamples   int           `validate:"gte=0"`

	// HealthOverloadDenials is the rate-limit denial count within HealthWindow that
	// reports overloaded. 0 disables the check.
	HealthOverloadDenials int `validate:"gte=0"`

	PlaceMinLength int `validate:"gte=1"`
	PlaceMaxLength int `validate:"gtefield=PlaceMinLength"`

	TrackedPlaces []string
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	KMA struct {
		ForecastURL    string `yaml:"forecast_url"`
		ObservationURL string `yaml:"observation_url"`
		Timeout        string `yaml:"timeout"`
		Timezone       string `yaml:"timezone"`
		Grid           struct {
			NX int `yaml:"nx"`
			NY int `yaml:"ny"`
		} `yaml:"grid"`
	} `yaml:"kma"`

	Cache struct {
		Backend        string `yaml:"backend"`
		ForecastTTL    string `yaml:"forecast_ttl"`
		ObservationTTL string `yaml:"observation_ttl"`
		Warm           bool   `yaml:"warm"`
		WarmInterval   string `yaml:"warm_interval"`
		WarmIdleWindow string `yaml:"warm_idle_window"`
		Memcached      struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Search struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
		Display int    `yaml:"display"`
	} `yaml:"search"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
		CircuitBreaker struct {
			Enabled          *bool  `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Shutdown struct {
		Timeout         string `yaml:"timeout"`
		InFlightTimeout string `yaml:"in_flight_timeout"`
	} `yaml:"shutdown"`

	Health struct {
		Window          string `yaml:"window"`
		ErrorRatePct    int    `yaml:"error_rate_pct"`
		MinSamples      *int   `yaml:"min_samples"`
		OverloadDenials *int   `yaml:"overload_denials"`
	} `yaml:"health"`

	Place struct {
		MinLength int `yaml:"min_length"`
		MaxLength int `yaml:"max_length"`
	} `yaml:"place"`

	Metrics struct {
		TrackedPlaces []string `yaml:"tracked_places"`
	} `yaml:"metrics"`
}

type secretsFile struct {
	KMAServiceKey     string `yaml:"kma_service_key"`
	NaverClientID     string `yaml:"naver_client_id"`
	NaverClientSecret string `yaml:"naver_client_secret"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml, after loading an optional .env into the environment.
// Env wins over secrets.yaml. Call from project root.
func Load() (*Config, error) {
	// A missing .env is normal in deployed environments.
	_ = godotenv.Load()

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	sec, err := loadSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	cfg.ServerPort = firstNonEmpty(os.Getenv("PORT"), fc.Server.Port, "8080")

	cfg.KMAServiceKey = decodeServiceKey(firstNonEmpty(os.Getenv("KMA_SERVICE_KEY"), sec.KMAServiceKey))
	cfg.KMAForecastURL = firstNonEmpty(fc.KMA.ForecastURL, defaultForecastURL)
	cfg.KMAObservationURL = firstNonEmpty(fc.KMA.ObservationURL, defaultObservationURL)
	cfg.KMATimeout = parseDurationOrZero(fc.KMA.Timeout, 10*time.Second)
	cfg.TimeZone = firstNonEmpty(fc.KMA.Timezone, "Asia/Seoul")
	cfg.GridNX = intOr(fc.KMA.Grid.NX, 98)
	cfg.GridNY = intOr(fc.KMA.Grid.NY, 76)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(firstNonEmpty(os.Getenv("CACHE_BACKEND"), fc.Cache.Backend, "in_memory")))
	cfg.ForecastTTL = parseDuration(fc.Cache.ForecastTTL, 10*time.Minute)
	cfg.ObservationTTL = parseDuration(fc.Cache.ObservationTTL, 5*time.Minute)
	cfg.MemcachedAddrs = firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = intOr(fc.Cache.Memcached.MaxIdleConns, 2)
	cfg.CacheWarm = fc.Cache.Warm
	cfg.CacheWarmInterval = parseDuration(fc.Cache.WarmInterval, 4*time.Minute)
	cfg.CacheWarmIdleWindow = parseDurationOrZero(fc.Cache.WarmIdleWindow, 30*time.Minute)

	cfg.SearchURL = firstNonEmpty(fc.Search.URL, defaultSearchURL)
	cfg.SearchTimeout = parseDuration(fc.Search.Timeout, 10*time.Second)
	cfg.SearchDisplay = intOr(fc.Search.Display, 6)
	cfg.NaverClientID = firstNonEmpty(os.Getenv("NAVER_CLIENT_ID"), sec.NaverClientID)
	cfg.NaverClientSecret = firstNonEmpty(os.Getenv("NAVER_CLIENT_SECRET"), sec.NaverClientSecret)

	cfg.RateLimitRPS = intOr(fc.Reliability.RateLimitRPS, 20)
	cfg.RateLimitBurst = intOr(fc.Reliability.RateLimitBurst, 40)
	cb := fc.Reliability.CircuitBreaker
	cfg.BreakerEnabled = cb.Enabled == nil || *cb.Enabled
	cfg.BreakerFailureThreshold = intOr(cb.FailureThreshold, 5)
	cfg.BreakerSuccessThreshold = intOr(cb.SuccessThreshold, 2)
	cfg.BreakerTimeout = parseDuration(cb.Timeout, 30*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)
	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.InFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 20*time.Second)

	cfg.HealthWindow = parseDuration(fc.Health.Window, 5*time.Minute)
	cfg.HealthErrorRatePct = intOr(fc.Health.ErrorRatePct, 50)
	cfg.HealthMinSamples = 3
	if fc.Health.MinSamples != nil {
		cfg.HealthMinSamples = *fc.Health.MinSamples
	}
	cfg.HealthOverloadDenials = 100
	if fc.Health.OverloadDenials != nil {
		cfg.HealthOverloadDenials = *fc.Health.OverloadDenials
	}

	cfg.PlaceMinLength = intOr(fc.Place.MinLength, 1)
	cfg.PlaceMaxLength = intOr(fc.Place.MaxLength, 40)
	cfg.TrackedPlaces = fc.Metrics.TrackedPlaces

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadSecrets reads path; a missing file yields zero secrets.
func loadSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

// decodeServiceKey undoes the percent-encoding of keys copied from the data.go.kr
// portal ("Encoding" key). The client encodes the query itself, so an encoded key
// would otherwise be encoded twice.
func decodeServiceKey(key string) string {
	key = strings.TrimSpace(key)
	if !strings.Contains(key, "%") {
		return key
	}
	decoded, err := url.QueryUnescape(key)
	if err != nil {
		return key
	}
	return decoded
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func intOr(v, defaultVal int) int {
	if v <= 0 {
		return defaultVal
	}
	return v
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero and negative durations are returned as-is for validate to reject.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

var structValidator = validator.New()

// validate checks field rules and cross-field constraints. The request deadline
// is raised above the KMA timeout so a slow upstream surfaces as a client
// timeout ("--") rather than a cancelled page.
func validate(cfg *Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.RequestTimeout <= cfg.KMATimeout {
		cfg.RequestTimeout = cfg.KMATimeout + 5*time.Second
	}
	return nil
}
