package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML, .env, and the process
// environment. Every gate tunable (quota, window, freshness, precision) is a
// field here, never a literal in the packages that use it, so tests can run
// with short windows and small limits.
type Config struct {
	ServerPort string

	OpenWeatherAPIKey string
	GeminiAPIKey      string

	GeoURL      string
	ForecastURL string
	GeminiURL   string

	UpstreamTimeout time.Duration
	RequestTimeout  time.Duration

	DailyQuotaLimit int
	RateWindow      time.Duration
	RateWindowLimit int
	GlobalRPS       int
	GlobalBurst     int

	FreshnessMinutes int
	CoordPrecision   int
	StrictClockSkew  bool

	CityQueryMinLen  int
	CityQueryMaxLen  int
	SuggestionsLimit int
	SuggestionsMax   int

	StoreBackend          string // "bolt", "in_memory", or "memcached"
	StorePath             string
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	BreakerConsecutiveFailures int
	BreakerOpenTimeout         time.Duration

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Upstream struct {
		GeoURL      string `yaml:"geo_url"`
		ForecastURL string `yaml:"forecast_url"`
		GeminiURL   string `yaml:"gemini_url"`
		Timeout     string `yaml:"timeout"`
	} `yaml:"upstream"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Admission struct {
		DailyQuotaLimit int    `yaml:"daily_quota_limit"`
		RateWindow      string `yaml:"rate_window"`
		RateWindowLimit int    `yaml:"rate_window_limit"`
		GlobalRPS       int    `yaml:"global_rps"`
		GlobalBurst     int    `yaml:"global_burst"`
	} `yaml:"admission"`

	Cache struct {
		FreshnessMinutes int  `yaml:"freshness_minutes"`
		CoordPrecision   int  `yaml:"coord_precision"`
		StrictClockSkew  bool `yaml:"strict_clock_skew"`
	} `yaml:"cache"`

	Suggestions struct {
		QueryMinLen  int `yaml:"query_min_len"`
		QueryMaxLen  int `yaml:"query_max_len"`
		DefaultLimit int `yaml:"default_limit"`
		MaxLimit     int `yaml:"max_limit"`
	} `yaml:"suggestions"`

	Store struct {
		Backend   string `yaml:"backend"`
		Path      string `yaml:"path"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"store"`

	Breaker struct {
		ConsecutiveFailures int    `yaml:"consecutive_failures"`
		OpenTimeout         string `yaml:"open_timeout"`
	} `yaml:"breaker"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	OpenWeatherAPIKey string `yaml:"openweather_api_key"`
	GeminiAPIKey      string `yaml:"gemini_api_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) when
// present, layered under env overrides. A `.env` file is loaded first if one
// exists. API keys come from OPENWEATHER_API_KEY / GEMINI_API_KEY env or
// config/secrets.yaml; a missing key is not a load error. The affected
// routes fail closed per request and startup logs a warning.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}

	var fc fileConfig
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = os.Getenv("PORT")
	if cfg.ServerPort == "" {
		cfg.ServerPort = fc.Server.Port
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "5050"
	}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if cfg.OpenWeatherAPIKey == "" || cfg.GeminiAPIKey == "" {
		sec, err := loadSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
		if err != nil {
			return nil, err
		}
		if cfg.OpenWeatherAPIKey == "" {
			cfg.OpenWeatherAPIKey = sec.OpenWeatherAPIKey
		}
		if cfg.GeminiAPIKey == "" {
			cfg.GeminiAPIKey = sec.GeminiAPIKey
		}
	}

	cfg.GeoURL = fc.Upstream.GeoURL
	if cfg.GeoURL == "" {
		cfg.GeoURL = "https://api.openweathermap.org/geo/1.0/direct"
	}
	cfg.ForecastURL = fc.Upstream.ForecastURL
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = "https://api.openweathermap.org/data/2.5/forecast"
	}
	cfg.GeminiURL = fc.Upstream.GeminiURL
	if cfg.GeminiURL == "" {
		cfg.GeminiURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"
	}
	cfg.UpstreamTimeout = parseDuration(fc.Upstream.Timeout, 10*time.Second)
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)

	cfg.DailyQuotaLimit = fc.Admission.DailyQuotaLimit
	if cfg.DailyQuotaLimit <= 0 {
		cfg.DailyQuotaLimit = 3
	}
	cfg.RateWindow = parseDuration(fc.Admission.RateWindow, 10*time.Minute)
	cfg.RateWindowLimit = fc.Admission.RateWindowLimit
	if cfg.RateWindowLimit <= 0 {
		cfg.RateWindowLimit = 10
	}
	cfg.GlobalRPS = fc.Admission.GlobalRPS
	if cfg.GlobalRPS <= 0 {
		cfg.GlobalRPS = 100
	}
	cfg.GlobalBurst = fc.Admission.GlobalBurst
	if cfg.GlobalBurst <= 0 {
		cfg.GlobalBurst = 250
	}

	cfg.FreshnessMinutes = fc.Cache.FreshnessMinutes
	if cfg.FreshnessMinutes <= 0 {
		cfg.FreshnessMinutes = 20
	}
	cfg.CoordPrecision = fc.Cache.CoordPrecision
	if cfg.CoordPrecision <= 0 {
		cfg.CoordPrecision = 3
	}
	cfg.StrictClockSkew = fc.Cache.StrictClockSkew

	cfg.CityQueryMinLen = fc.Suggestions.QueryMinLen
	if cfg.CityQueryMinLen <= 0 {
		cfg.CityQueryMinLen = 2
	}
	cfg.CityQueryMaxLen = fc.Suggestions.QueryMaxLen
	if cfg.CityQueryMaxLen <= 0 {
		cfg.CityQueryMaxLen = 40
	}
	cfg.SuggestionsLimit = fc.Suggestions.DefaultLimit
	if cfg.SuggestionsLimit <= 0 {
		cfg.SuggestionsLimit = 3
	}
	cfg.SuggestionsMax = fc.Suggestions.MaxLimit
	if cfg.SuggestionsMax <= 0 {
		cfg.SuggestionsMax = 10
	}

	cfg.StoreBackend = strings.TrimSpace(strings.ToLower(os.Getenv("STORE_BACKEND")))
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = strings.TrimSpace(strings.ToLower(fc.Store.Backend))
	}
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = "bolt"
	}
	cfg.StorePath = os.Getenv("STORE_PATH")
	if cfg.StorePath == "" {
		cfg.StorePath = fc.Store.Path
	}
	if cfg.StorePath == "" {
		cfg.StorePath = "weatherdash.db"
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Store.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Store.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Store.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.BreakerConsecutiveFailures = fc.Breaker.ConsecutiveFailures
	if cfg.BreakerConsecutiveFailures < 0 {
		cfg.BreakerConsecutiveFailures = 0
	}
	cfg.BreakerOpenTimeout = parseDuration(fc.Breaker.OpenTimeout, time.Minute)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

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

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values. The
// request timeout must exceed the upstream timeout so a slow upstream
// surfaces as an upstream error, not a request-context cancel.
func validate(cfg *Config) error {
	if cfg.RequestTimeout <= cfg.UpstreamTimeout {
		cfg.RequestTimeout = cfg.UpstreamTimeout + time.Second
	}
	switch cfg.StoreBackend {
	case "bolt", "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("store.backend must be bolt, in_memory, or memcached, got %q", cfg.StoreBackend)
	}
	return nil
}

// MissingCredentials lists the credential names that are not configured.
// main logs these once at startup; the routes themselves fail closed.
func (c *Config) MissingCredentials() []string {
	var missing []string
	if c.OpenWeatherAPIKey == "" {
		missing = append(missing, "OPENWEATHER_API_KEY")
	}
	if c.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	return missing
}
