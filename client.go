package esmap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/esmap/internal/config"
	"github.com/kailas-cloud/esmap/internal/convert"
	"github.com/kailas-cloud/esmap/internal/db"
	"github.com/kailas-cloud/esmap/internal/db/elastic"
	"github.com/kailas-cloud/esmap/internal/db/memory"
	"github.com/kailas-cloud/esmap/internal/db/redisearch"
	"github.com/kailas-cloud/esmap/internal/derive"
	"github.com/kailas-cloud/esmap/internal/logger"
	"github.com/kailas-cloud/esmap/internal/mapping"
	"github.com/kailas-cloud/esmap/internal/version"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the esmap entry point. It owns the store connection, the entity
// metadata registry, and the document converter shared by all repositories.
type Client struct {
	store   db.Store
	reg     *mapping.Registry
	conv    *convert.Converter
	deriver *derive.Deriver
	obs     *observer

	indexPrefix   string
	refreshWrites bool
}

// New creates an esmap Client and connects to the backend.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		driver:           "memory",
		naming:           mapping.SnakeCaseNaming,
		readinessTimeout: defaultReadinessTimeout,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, cfg.readinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("esmap: backend not ready: %w", err)
	}

	c, err := wireClient(store, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.logger != nil {
		cfg.logger.Info("esmap client ready",
			zap.String("driver", cfg.driver),
			zap.String("version", version.Version))
	}
	return c, nil
}

// NewFromConfig creates a Client from the YAML configuration file for the
// given environment (config/<env>.yaml). An empty env falls back to the ENV
// variable, then "local". Options apply on top of the file settings.
func NewFromConfig(env string, opts ...Option) (*Client, error) {
	if env == "" {
		env = config.GetEnv()
	}
	fileCfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("esmap: load config: %w", err)
	}
	base := make([]Option, 0, len(opts)+4)
	switch fileCfg.Store.Driver {
	case "elasticsearch":
		base = append(base, WithElasticsearch(fileCfg.Store.Addrs, fileCfg.Store.Username, fileCfg.Store.Password))
		if fileCfg.Store.APIKey != "" {
			base = append(base, WithElasticsearchAPIKey(fileCfg.Store.APIKey))
		}
	case "redisearch":
		base = append(base, WithRedisearch(fileCfg.Store.Addrs, fileCfg.Store.Username, fileCfg.Store.Password))
		base = append(base, WithRedisearchDB(fileCfg.Store.DB))
	default:
		base = append(base, WithMemory())
	}
	if fileCfg.Mapping.IndexPrefix != "" {
		base = append(base, WithIndexPrefix(fileCfg.Mapping.IndexPrefix))
	}
	if fileCfg.Mapping.RefreshWrites {
		base = append(base, WithRefreshWrites())
	}
	if fileCfg.Store.ReadinessTimeout > 0 {
		base = append(base, WithReadinessTimeout(time.Duration(fileCfg.Store.ReadinessTimeout)*time.Second))
	}
	if fileCfg.Logging.Level != "" {
		log, err := logger.New(env, fileCfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("esmap: build logger: %w", err)
		}
		base = append(base, WithLogger(log))
	}
	return New(append(base, opts...)...)
}

func createStore(cfg *clientConfig) (db.Store, error) {
	log := cfg.logger
	if log == nil {
		log = zap.NewNop()
	}

	switch cfg.driver {
	case "elasticsearch":
		s, err := elastic.New(elastic.Config{
			Addresses: cfg.addrs,
			Username:  cfg.username,
			Password:  cfg.password,
			APIKey:    cfg.apiKey,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("esmap: create elasticsearch store: %w", err)
		}
		return s, nil
	case "redisearch":
		s, err := redisearch.New(redisearch.Config{
			Addrs:    cfg.addrs,
			Username: cfg.username,
			Password: cfg.password,
			DB:       cfg.dbNum,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("esmap: create redisearch store: %w", err)
		}
		return s, nil
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("esmap: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig) (*Client, error) {
	reg := mapping.NewRegistry(cfg.naming)
	for _, a := range cfg.aliases {
		if err := reg.RegisterSubtype(a.alias, a.prototype); err != nil {
			store.Close()
			return nil, fmt.Errorf("esmap: register subtype %q: %w", a.alias, err)
		}
	}

	conv := convert.New(reg)
	for _, nc := range cfg.namedConverters {
		conv.RegisterNamed(nc.name, nc.fc)
	}
	for _, tc := range cfg.typedConverters {
		conv.RegisterForType(tc.typ, tc.fc)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &Client{
		store:         store,
		reg:           reg,
		conv:          conv,
		deriver:       derive.NewDeriver(reg),
		obs:           obs,
		indexPrefix:   cfg.indexPrefix,
		refreshWrites: cfg.refreshWrites,
	}, nil
}

// Close releases the store connection.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks backend connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Operations returns the document-level surface for a given index.
func (c *Client) Operations(index string) *Operations {
	return &Operations{client: c, index: c.indexPrefix + index}
}

// Indexes returns the index lifecycle surface.
func (c *Client) Indexes() *Indexes {
	return &Indexes{client: c}
}

// indexName resolves the store index for an entity, prefix applied.
func (c *Client) indexName(e *mapping.Entity) string {
	return c.indexPrefix + e.IndexName()
}
