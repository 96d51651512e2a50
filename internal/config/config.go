package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config captures every setting required to boot the learnsense service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Model    ModelConfig    `yaml:"model"`
	Policy   PolicyConfig   `yaml:"policy"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Store    StoreConfig    `yaml:"store"`
	Cache    CacheConfig    `yaml:"cache"`
	Consent  ConsentConfig  `yaml:"consent"`
}

// ServerConfig controls the gRPC, HTTP and metrics listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	HTTPAddress     string        `yaml:"httpAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	JSON       bool   `yaml:"json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// ModelConfig locates the weight/threshold pack.
type ModelConfig struct {
	Path string `yaml:"path"`
}

// PolicyConfig holds the global routing gate and default bands.
type PolicyConfig struct {
	MinConfidence        float64 `yaml:"minConfidence"`
	UncertaintyThreshold float64 `yaml:"uncertaintyThreshold"`
	HighThreshold        float64 `yaml:"highThreshold"`
	MediumThreshold      float64 `yaml:"mediumThreshold"`
}

// RealtimeConfig tunes the signal collector.
type RealtimeConfig struct {
	FlushInterval time.Duration `yaml:"flushInterval"`
	BufferSize    int           `yaml:"bufferSize"`
	WriteTimeout  time.Duration `yaml:"writeTimeout"`
}

// StoreConfig selects the gorm driver and DSN.
type StoreConfig struct {
	Driver      string `yaml:"driver"`
	DSN         string `yaml:"dsn"`
	AutoMigrate bool   `yaml:"autoMigrate"`
}

// CacheConfig controls Redis-backed caching of summaries and consent lookups.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	SummaryTTL   time.Duration `yaml:"summaryTTL"`
}

// ConsentConfig configures the optional consent registry.
type ConsentConfig struct {
	BaseURL  string        `yaml:"baseURL"`
	Path     string        `yaml:"path"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// Load initialises Config from a YAML file and optional environment overrides.
// A .env file in the working directory is read first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("LEARNSENSE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			HTTPAddress:     ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{Level: "info"},
		Model:   ModelConfig{Path: "configs/model.yaml"},
		Policy: PolicyConfig{
			MinConfidence:        0.60,
			UncertaintyThreshold: 0.05,
			HighThreshold:        0.70,
			MediumThreshold:      0.40,
		},
		Realtime: RealtimeConfig{
			FlushInterval: 5 * time.Second,
			BufferSize:    50,
			WriteTimeout:  5 * time.Second,
		},
		Store: StoreConfig{
			Driver:      "sqlite",
			DSN:         "learnsense.db",
			AutoMigrate: true,
		},
		Cache: CacheConfig{
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			SummaryTTL:   30 * time.Second,
		},
		Consent: ConsentConfig{
			Path:     "/api/v1/consent",
			Timeout:  3 * time.Second,
			CacheTTL: 5 * time.Minute,
		},
	}
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	p := c.Policy
	for name, v := range map[string]float64{
		"minConfidence":        p.MinConfidence,
		"uncertaintyThreshold": p.UncertaintyThreshold,
		"highThreshold":        p.HighThreshold,
		"mediumThreshold":      p.MediumThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("policy.%s must be within [0,1], got %v", name, v)
		}
	}
	if p.MediumThreshold > p.HighThreshold {
		return fmt.Errorf("policy.mediumThreshold %.2f exceeds highThreshold %.2f", p.MediumThreshold, p.HighThreshold)
	}
	if c.Realtime.BufferSize <= 0 {
		return fmt.Errorf("realtime.bufferSize must be positive")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LEARNSENSE_GRPC_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("LEARNSENSE_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("LEARNSENSE_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("LEARNSENSE_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("LEARNSENSE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LEARNSENSE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("LEARNSENSE_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("LEARNSENSE_MODEL_PATH"); v != "" {
		cfg.Model.Path = v
	}
	setFloat("LEARNSENSE_POLICY_MIN_CONFIDENCE", &cfg.Policy.MinConfidence)
	setFloat("LEARNSENSE_POLICY_UNCERTAINTY_THRESHOLD", &cfg.Policy.UncertaintyThreshold)
	setFloat("LEARNSENSE_POLICY_HIGH_THRESHOLD", &cfg.Policy.HighThreshold)
	setFloat("LEARNSENSE_POLICY_MEDIUM_THRESHOLD", &cfg.Policy.MediumThreshold)
	setDuration("LEARNSENSE_REALTIME_FLUSH_INTERVAL", &cfg.Realtime.FlushInterval)
	setInt("LEARNSENSE_REALTIME_BUFFER_SIZE", &cfg.Realtime.BufferSize)
	if v := os.Getenv("LEARNSENSE_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("LEARNSENSE_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("LEARNSENSE_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = isTrue(v)
	}
	if v := os.Getenv("LEARNSENSE_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("LEARNSENSE_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("LEARNSENSE_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	setInt("LEARNSENSE_CACHE_DB", &cfg.Cache.DB)
	if isTrue(os.Getenv("LEARNSENSE_CACHE_TLS")) {
		cfg.Cache.TLS = true
	}
	setDuration("LEARNSENSE_CACHE_SUMMARY_TTL", &cfg.Cache.SummaryTTL)
	if v := os.Getenv("LEARNSENSE_CONSENT_BASE_URL"); v != "" {
		cfg.Consent.BaseURL = v
	}
	if v := os.Getenv("LEARNSENSE_CONSENT_PATH"); v != "" {
		cfg.Consent.Path = v
	}
	setDuration("LEARNSENSE_CONSENT_CACHE_TTL", &cfg.Consent.CacheTTL)
}

func isTrue(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

func setFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
