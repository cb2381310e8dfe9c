package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the portal gateway.
// It merges file defaults and environment overrides to support both local
// and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	BackendURL     string
	BackendTimeout time.Duration

	// GeoLookupURL points at an IP geolocation endpoint used when a login
	// request carries no coordinates. Empty disables the lookup.
	GeoLookupURL string

	RedisURL    string
	DatabaseURL string

	// StateBackend selects where the application record lives: "file" for a
	// single-node JSON file, "redis" for restart-safe shared state.
	StateBackend string
	StateFile    string

	JWTPrivateKeyPEM  string
	JWTPublicKeyPEM   string
	JWTKeyID          string
	AllowEphemeralJWT bool

	TokenTTL        time.Duration
	OTPPendingTTL   time.Duration
	CaptchaTTL      time.Duration
	RequireCaptcha  bool
	LocationTimeout time.Duration
	BcryptCost      int

	KafkaBrokers []string

	MaxDBConns         int
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay
// internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Backend struct {
		URL            string `yaml:"url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		GeoLookupURL   string `yaml:"geo_lookup_url"`
	} `yaml:"backend"`
	Dependencies struct {
		RedisURL     string   `yaml:"redis_url"`
		PostgresURL  string   `yaml:"postgres_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	State struct {
		Backend string `yaml:"backend"`
		File    string `yaml:"file"`
	} `yaml:"state"`
	Captcha struct {
		Required bool `yaml:"required"`
	} `yaml:"captcha"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific
// overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:          "portal-gateway",
		HTTPPort:           8080,
		GRPCPort:           9090,
		BackendTimeout:     8 * time.Second,
		StateBackend:       "file",
		StateFile:          "data/appstate.json",
		JWTKeyID:           "portal-key-1",
		AllowEphemeralJWT:  true,
		TokenTTL:           12 * time.Hour,
		OTPPendingTTL:      5 * time.Minute,
		CaptchaTTL:         2 * time.Minute,
		LocationTimeout:    4 * time.Second,
		BcryptCost:         10,
		MaxDBConns:         10,
		OutboxPollInterval: 2 * time.Second,
		OutboxBatchSize:    100,
		OutboxClaimTTL:     30 * time.Second,
		OutboxMaxRetries:   5,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Backend.URL != "" {
			cfg.BackendURL = f.Backend.URL
		}
		if f.Backend.TimeoutSeconds > 0 {
			cfg.BackendTimeout = time.Duration(f.Backend.TimeoutSeconds) * time.Second
		}
		if f.Backend.GeoLookupURL != "" {
			cfg.GeoLookupURL = f.Backend.GeoLookupURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
		}
		if f.State.Backend != "" {
			cfg.StateBackend = f.State.Backend
		}
		if f.State.File != "" {
			cfg.StateFile = f.State.File
		}
		cfg.RequireCaptcha = f.Captcha.Required
	}

	cfg.BackendURL = envOrDefault("BACKEND_URL", cfg.BackendURL)
	cfg.GeoLookupURL = envOrDefault("GEO_LOOKUP_URL", cfg.GeoLookupURL)
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.StateBackend = strings.ToLower(envOrDefault("STATE_BACKEND", cfg.StateBackend))
	cfg.StateFile = envOrDefault("STATE_FILE", cfg.StateFile)
	cfg.JWTPrivateKeyPEM = envOrDefault("JWT_PRIVATE_KEY_PEM", cfg.JWTPrivateKeyPEM)
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTKeyID = envOrDefault("JWT_KEY_ID", cfg.JWTKeyID)
	cfg.AllowEphemeralJWT = envBool("JWT_ALLOW_EPHEMERAL", cfg.AllowEphemeralJWT)
	cfg.RequireCaptcha = envBool("CAPTCHA_REQUIRED", cfg.RequireCaptcha)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)
	cfg.MaxDBConns = envInt("DB_MAX_CONNS", cfg.MaxDBConns)

	cfg.BackendTimeout = time.Duration(envInt("BACKEND_TIMEOUT_SECONDS", int(cfg.BackendTimeout.Seconds()))) * time.Second
	cfg.TokenTTL = time.Duration(envInt("TOKEN_EXPIRY_HOURS", int(cfg.TokenTTL.Hours()))) * time.Hour
	cfg.OTPPendingTTL = time.Duration(envInt("OTP_PENDING_TTL_SECONDS", int(cfg.OTPPendingTTL.Seconds()))) * time.Second
	cfg.CaptchaTTL = time.Duration(envInt("CAPTCHA_TTL_SECONDS", int(cfg.CaptchaTTL.Seconds()))) * time.Second
	cfg.LocationTimeout = time.Duration(envInt("LOCATION_TIMEOUT_SECONDS", int(cfg.LocationTimeout.Seconds()))) * time.Second
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)

	if cfg.BackendURL == "" {
		return Config{}, fmt.Errorf("missing BACKEND_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if cfg.StateBackend != "file" && cfg.StateBackend != "redis" {
		return Config{}, fmt.Errorf("state backend must be file or redis, got %q", cfg.StateBackend)
	}
	if (cfg.JWTPrivateKeyPEM == "" || cfg.JWTPublicKeyPEM == "") && !cfg.AllowEphemeralJWT {
		return Config{}, fmt.Errorf("missing JWT_PRIVATE_KEY_PEM or JWT_PUBLIC_KEY_PEM")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	switch os.Getenv(name) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
