package dealerportal

import (
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/askgroup/dealerportal/api"
	"github.com/askgroup/dealerportal/cart"
	"github.com/askgroup/dealerportal/guard"
	"github.com/askgroup/dealerportal/jwt"
	"github.com/askgroup/dealerportal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

// Builder assembles a Portal. A Builder is single use.
type Builder struct {
	config Config

	redis      redis.UniversalClient
	fs         afero.Fs
	storage    storage.Storage
	httpClient *http.Client
	auditSink  AuditSink
	logger     *log.Logger
	routes     []guard.Route
	onRedirect []func(string)

	built bool
}

// New starts a Builder from DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client for StorageRedis. The caller keeps
// ownership and closes it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithFs overrides the filesystem used by StorageFile.
func (b *Builder) WithFs(fs afero.Fs) *Builder {
	b.fs = fs
	return b
}

// WithStorage bypasses Storage config entirely.
func (b *Builder) WithStorage(s storage.Storage) *Builder {
	b.storage = s
	return b
}

func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

func (b *Builder) WithLogger(l *log.Logger) *Builder {
	b.logger = l
	return b
}

// WithRoutes replaces guard.DefaultRoutes.
func (b *Builder) WithRoutes(routes []guard.Route) *Builder {
	b.routes = routes
	return b
}

// OnRedirect registers a hook for forced logouts.
func (b *Builder) OnRedirect(fn func(path string)) *Builder {
	b.onRedirect = append(b.onRedirect, fn)
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the portal. The session is
// left in StateLoading; call Session().Restore before the first check.
func (b *Builder) Build() (*Portal, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	p := &Portal{
		config: cfg,
		cart:   cart.New(),
		logger: logger,
	}

	// -------- STORAGE --------
	st, closers, err := b.buildStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}
	p.storage = st
	p.closers = closers

	// -------- ROUTE POLICY --------
	routes := b.routes
	if len(routes) == 0 {
		routes = guard.DefaultRoutes()
	}
	policy, err := guard.NewPolicy(routes, cfg.Routes.Homes, cfg.Routes.DefaultHome)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	p.policy = policy

	// -------- API CLIENT --------
	client, err := api.New(api.Options{
		BaseURL:    cfg.API.BaseURL,
		HTTPClient: b.httpClient,
		Timeout:    cfg.API.Timeout,
		UserAgent:  cfg.API.UserAgent,
	})
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	if cfg.API.RequestID {
		client.Use(api.RequestID())
	}
	p.api = client

	// -------- TOKEN DECODER --------
	decoder, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		Secret:        cloneBytes(cfg.JWT.Secret),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	p.metrics = NewMetrics(cfg.Metrics)
	p.audit = newAuditDispatcher(cfg.Audit, b.auditSink)

	// -------- SESSION --------
	session, err := NewSessionStore(SessionOptions{
		Storage:   st,
		Decoder:   decoder,
		API:       client,
		Logger:    logger,
		Metrics:   p.metrics,
		Audit:     p.audit,
		LoginPath: guard.LoginPath,
	})
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	for _, fn := range b.onRedirect {
		session.OnRedirect(fn)
	}
	p.session = session

	b.built = true
	return p, nil
}

func (b *Builder) buildStorage(cfg StorageConfig) (storage.Storage, []func() error, error) {
	if b.storage != nil {
		return b.storage, nil, nil
	}

	switch cfg.Kind {
	case StorageRedis:
		if b.redis != nil {
			return storage.NewRedisStorage(b.redis, cfg.RedisPrefix, cfg.RedisTTL), nil, nil
		}
		if cfg.RedisAddr == "" {
			return nil, nil, errors.New("redis storage requires a client or RedisAddr")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return storage.NewRedisStorage(client, cfg.RedisPrefix, cfg.RedisTTL), []func() error{client.Close}, nil
	case StorageFile:
		fs := b.fs
		if fs == nil {
			fs = afero.NewOsFs()
		}
		st, err := storage.NewFileStorage(fs, cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil
	default:
		return storage.NewMemoryStorage(), nil, nil
	}
}
