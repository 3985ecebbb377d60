package dealerportal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by LoadConfigFromEnv.
const (
	EnvAPIURL        = "DEALER_API_URL"
	EnvAPITimeout    = "DEALER_API_TIMEOUT"
	EnvStorage       = "DEALER_STORAGE"
	EnvRedisAddr     = "DEALER_REDIS_ADDR"
	EnvRedisPassword = "DEALER_REDIS_PASSWORD"
	EnvRedisDB       = "DEALER_REDIS_DB"
	EnvRedisPrefix   = "DEALER_REDIS_PREFIX"
	EnvStorageDir    = "DEALER_STORAGE_DIR"
	EnvJWTSecret     = "DEALER_JWT_SECRET"
	EnvJWTMethod     = "DEALER_JWT_METHOD"
	EnvJWTPublicKey  = "DEALER_JWT_PUBLIC_KEY"
	EnvAudit         = "DEALER_AUDIT"
	EnvAuditSource   = "DEALER_AUDIT_SOURCE"
)

// LoadConfigFromEnv overlays DEALER_* environment variables on
// DefaultConfig and validates the result.
func LoadConfigFromEnv() (Config, error) {
	return loadConfig(os.LookupEnv)
}

func loadConfig(lookup func(string) (string, bool)) (Config, error) {
	cfg := defaultConfig()

	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	if v, ok := get(EnvAPIURL); ok {
		cfg.API.BaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := get(EnvAPITimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvAPITimeout, err)
		}
		cfg.API.Timeout = d
	}

	if v, ok := get(EnvStorage); ok {
		cfg.Storage.Kind = StorageKind(strings.ToLower(v))
	}
	if v, ok := get(EnvRedisAddr); ok {
		cfg.Storage.RedisAddr = v
	}
	if v, ok := lookup(EnvRedisPassword); ok {
		cfg.Storage.RedisPassword = v
	}
	if v, ok := get(EnvRedisDB); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvRedisDB, err)
		}
		cfg.Storage.RedisDB = db
	}
	if v, ok := get(EnvRedisPrefix); ok {
		cfg.Storage.RedisPrefix = v
	}
	if v, ok := get(EnvStorageDir); ok {
		cfg.Storage.Dir = v
	}

	if v, ok := get(EnvJWTMethod); ok {
		cfg.JWT.SigningMethod = strings.ToLower(v)
	}
	if v, ok := lookup(EnvJWTSecret); ok && v != "" {
		cfg.JWT.Secret = []byte(v)
	}
	if v, ok := get(EnvJWTPublicKey); ok {
		cfg.JWT.PublicKey = []byte(v)
	}

	if v, ok := get(EnvAudit); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvAudit, err)
		}
		cfg.Audit.Enabled = enabled
	}
	if v, ok := get(EnvAuditSource); ok {
		cfg.Audit.Source = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
