package dealerportal

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/askgroup/dealerportal/api"
	"github.com/askgroup/dealerportal/guard"
)

// Config is the full portal configuration. Start from DefaultConfig or
// LoadConfigFromEnv and adjust.
type Config struct {
	API     APIConfig
	JWT     JWTConfig
	Storage StorageConfig
	Routes  RoutesConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig describes the dealer REST API.
type APIConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// RequestID stamps every request with an X-Request-ID header.
	RequestID bool
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access-token decoding. Without key material tokens are
// decoded without signature verification.
type JWTConfig struct {
	SigningMethod string // "hs256" (default) or "ed25519"
	Secret        []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageKind selects the durable client storage backend.
type StorageKind string

const (
	StorageMemory StorageKind = "memory"
	StorageRedis  StorageKind = "redis"
	StorageFile   StorageKind = "file"
)

// StorageConfig selects where the token and user survive restarts.
type StorageConfig struct {
	Kind StorageKind

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	// RedisTTL expires stored sessions; zero keeps them until logout.
	RedisTTL time.Duration

	Dir string
}

/*
====================================
ROUTES, AUDIT, METRICS
====================================
*/

// RoutesConfig holds the role home table. The route table itself is
// guard.DefaultRoutes.
type RoutesConfig struct {
	Homes       map[string]string
	DefaultHome string
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// Source is stamped on every event, typically the shop or CLI profile
	// the portal serves.
	Source string
	// CriticalWait bounds how long forced logouts, invalid sessions and
	// failed logins wait for queue space when DropIfFull is set.
	CriticalWait time.Duration
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a config for a local development API with
// in-memory storage.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:   api.DefaultBaseURL,
			Timeout:   30 * time.Second,
			UserAgent: "dealerportal",
			RequestID: true,
		},
		JWT: JWTConfig{
			SigningMethod: "hs256",
		},
		Storage: StorageConfig{
			Kind:        StorageMemory,
			RedisPrefix: "dealerportal",
		},
		Routes: RoutesConfig{
			Homes:       guard.DefaultHomes(),
			DefaultHome: "/dashboard",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize:   256,
			DropIfFull:   true,
			CriticalWait: 250 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.Routes.Homes != nil {
		out.Routes.Homes = make(map[string]string, len(cfg.Routes.Homes))
		for role, home := range cfg.Routes.Homes {
			out.Routes.Homes[role] = home
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// API
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("API BaseURL is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("API BaseURL must be an absolute http(s) URL")
	}
	if c.API.Timeout < 0 {
		return errors.New("API Timeout must be >= 0")
	}
	if c.API.Timeout > 5*time.Minute {
		return errors.New("API Timeout must be <= 5m")
	}

	// JWT
	switch c.JWT.SigningMethod {
	case "", "hs256", "ed25519":
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.Secret) > 0 {
		return errors.New("ed25519 uses PublicKey, not Secret")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Storage
	switch c.Storage.Kind {
	case StorageMemory:
	case StorageRedis:
		if strings.TrimSpace(c.Storage.RedisPrefix) == "" {
			return errors.New("Storage RedisPrefix must not be empty")
		}
		if c.Storage.RedisTTL < 0 {
			return errors.New("Storage RedisTTL must be >= 0")
		}
		if c.Storage.RedisDB < 0 {
			return errors.New("Storage RedisDB must be >= 0")
		}
	case StorageFile:
		if strings.TrimSpace(c.Storage.Dir) == "" {
			return errors.New("Storage Dir is required for file storage")
		}
	default:
		return errors.New("Storage Kind must be memory, redis or file")
	}

	// Routes
	if c.Routes.DefaultHome == "" {
		return errors.New("Routes DefaultHome is required")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	if c.Audit.CriticalWait < 0 {
		return errors.New("Audit CriticalWait must be >= 0")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}

/*
====================================
LINT
====================================
*/

// LintWarning is a valid but questionable setting.
type LintWarning struct {
	Code    string
	Message string
}

// LintResult is the list of warnings from Lint.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, len(r))
	for i, w := range r {
		out[i] = w.Code
	}
	return out
}

// Lint flags settings that work but are unlikely to be intended outside
// local development.
func (c *Config) Lint() LintResult {
	var ws LintResult

	if len(c.JWT.Secret) == 0 && len(c.JWT.PublicKey) == 0 {
		ws = append(ws, LintWarning{
			Code:    "jwt_decode_only",
			Message: "no JWT key configured; token signatures are not verified client-side",
		})
	}

	if u, err := url.Parse(c.API.BaseURL); err == nil && u.Scheme == "http" && !isLoopback(u.Hostname()) {
		ws = append(ws, LintWarning{
			Code:    "api_plaintext",
			Message: "API BaseURL uses http for a non-loopback host; bearer tokens travel in clear text",
		})
	}

	if c.Storage.Kind == StorageMemory {
		ws = append(ws, LintWarning{
			Code:    "storage_memory",
			Message: "memory storage does not survive restarts",
		})
	}

	if c.API.Timeout == 0 {
		ws = append(ws, LintWarning{
			Code:    "api_no_timeout",
			Message: "API Timeout is zero; requests can hang until the context is cancelled",
		})
	}

	if c.Audit.Enabled && c.Audit.DropIfFull && c.Audit.BufferSize < 16 {
		ws = append(ws, LintWarning{
			Code:    "audit_buffer_small",
			Message: "audit buffer is small and DropIfFull is set; events will be lost under bursts",
		})
	}

	return ws
}

func isLoopback(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
