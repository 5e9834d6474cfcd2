package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	DefaultCredsPath = "aws/creds/bedrock-app"
	DefaultRegion    = "us-east-1"
	DefaultModelID   = "amazon.nova-canvas-v1:0"
)

type Config struct {
	Port        int
	GinMode     string
	LogLevel    string
	TLSCertFile string
	TLSKeyFile  string

	VaultAddr     string
	VaultRoleID   string
	VaultSecretID string
	CredsPath     string
	DefaultLease  time.Duration
	SafetyMargin  time.Duration

	AWSRegion string
	ModelID   string

	ReceivedPause     time.Duration
	GenerateRateLimit int
	APITokenSecret    string
	APITokenExpiry    time.Duration

	GalleryStateFile string
	GalleryCapacity  int
	GalleryMaxBytes  int

	HistoryDBPath string
	CostPerImage  float64
}

// HasVaultCredentials reports whether AppRole identifiers are configured.
// The server still starts without them; credential requests then fail with
// an auth configuration error.
func (c Config) HasVaultCredentials() bool {
	return c.VaultRoleID != "" && c.VaultSecretID != ""
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:              3000,
		GinMode:           "release",
		LogLevel:          "info",
		VaultAddr:         "http://127.0.0.1:8200",
		CredsPath:         DefaultCredsPath,
		DefaultLease:      3600 * time.Second,
		SafetyMargin:      5 * time.Second,
		AWSRegion:         DefaultRegion,
		ModelID:           DefaultModelID,
		ReceivedPause:     700 * time.Millisecond,
		GenerateRateLimit: 10,
		APITokenExpiry:    24 * time.Hour,
		GalleryCapacity:   12,
		GalleryMaxBytes:   5 << 20,
		CostPerImage:      0.01,
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}
	if raw := env.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")

	if raw := env.Getenv("VAULT_ADDR"); raw != "" {
		cfg.VaultAddr = raw
	}
	cfg.VaultRoleID = env.Getenv("VAULT_ROLE_ID")
	cfg.VaultSecretID = env.Getenv("VAULT_SECRET_ID")
	if raw := env.Getenv("VAULT_CREDS_PATH"); raw != "" {
		cfg.CredsPath = raw
	}

	var err error
	if cfg.DefaultLease, err = positiveDuration(env, "VAULT_DEFAULT_LEASE_SECONDS", time.Second, cfg.DefaultLease); err != nil {
		return Config{}, err
	}
	if cfg.SafetyMargin, err = nonNegativeDuration(env, "CREDENTIAL_SAFETY_MARGIN_MS", time.Millisecond, cfg.SafetyMargin); err != nil {
		return Config{}, err
	}

	if raw := env.Getenv("AWS_REGION"); raw != "" {
		cfg.AWSRegion = raw
	}
	if raw := env.Getenv("BEDROCK_MODEL_ID"); raw != "" {
		cfg.ModelID = raw
	}

	if cfg.ReceivedPause, err = nonNegativeDuration(env, "PROGRESS_RECEIVED_PAUSE_MS", time.Millisecond, cfg.ReceivedPause); err != nil {
		return Config{}, err
	}

	if raw := env.Getenv("GENERATE_RATE_LIMIT_PER_MINUTE"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return Config{}, fmt.Errorf("invalid GENERATE_RATE_LIMIT_PER_MINUTE")
		}
		cfg.GenerateRateLimit = limit
	}

	cfg.APITokenSecret = env.Getenv("API_TOKEN_SECRET")
	if cfg.APITokenExpiry, err = positiveDuration(env, "API_TOKEN_EXPIRY_SECONDS", time.Second, cfg.APITokenExpiry); err != nil {
		return Config{}, err
	}

	cfg.GalleryStateFile = env.Getenv("GALLERY_STATE_FILE")
	if raw := env.Getenv("GALLERY_CAPACITY"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid GALLERY_CAPACITY")
		}
		cfg.GalleryCapacity = n
	}
	if raw := env.Getenv("GALLERY_MAX_BYTES"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid GALLERY_MAX_BYTES")
		}
		cfg.GalleryMaxBytes = n
	}

	cfg.HistoryDBPath = env.Getenv("HISTORY_DB_PATH")
	if raw := env.Getenv("COST_PER_IMAGE_USD"); raw != "" {
		cost, err := strconv.ParseFloat(raw, 64)
		if err != nil || cost < 0 {
			return Config{}, fmt.Errorf("invalid COST_PER_IMAGE_USD")
		}
		cfg.CostPerImage = cost
	}

	return cfg, nil
}

func positiveDuration(env Env, key string, unit time.Duration, def time.Duration) (time.Duration, error) {
	raw := env.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return time.Duration(n) * unit, nil
}

func nonNegativeDuration(env Env, key string, unit time.Duration, def time.Duration) (time.Duration, error) {
	raw := env.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return time.Duration(n) * unit, nil
}
