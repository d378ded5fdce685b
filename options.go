package esmap

import (
	"reflect"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/esmap/internal/convert"
	"github.com/kailas-cloud/esmap/internal/mapping"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type namedConverter struct {
	name string
	fc   FieldConverter
}

type typedConverter struct {
	typ reflect.Type
	fc  FieldConverter
}

type subtypeAlias struct {
	alias     string
	prototype any
}

type clientConfig struct {
	driver   string // "elasticsearch", "redisearch", or "memory"
	addrs    []string
	username string
	password string
	apiKey   string
	dbNum    int

	naming        mapping.NamingStrategy
	indexPrefix   string
	refreshWrites bool

	namedConverters []namedConverter
	typedConverters []typedConverter
	aliases         []subtypeAlias

	readinessTimeout time.Duration

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// FieldConverter converts a single field between its Go value and its store
// representation.
type FieldConverter = convert.FieldConverter

// WithElasticsearch configures the client to connect to an Elasticsearch
// cluster.
func WithElasticsearch(addrs []string, username, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "elasticsearch"
		c.addrs = addrs
		c.username = username
		c.password = password
	})
}

// WithElasticsearchAPIKey sets API-key authentication for the Elasticsearch
// driver instead of basic auth.
func WithElasticsearchAPIKey(key string) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiKey = key
	})
}

// WithRedisearch configures the client to connect to a Redis instance with
// the search and JSON modules.
func WithRedisearch(addrs []string, username, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redisearch"
		c.addrs = addrs
		c.username = username
		c.password = password
	})
}

// WithRedisearchDB selects the logical Redis database.
func WithRedisearchDB(db int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dbNum = db
	})
}

// WithMemory configures the embedded in-memory backend. Useful for tests and
// prototypes; data does not survive the process.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
	})
}

// WithNaming sets the strategy deriving index names from entity type names.
// Defaults to snake_case of the type name.
func WithNaming(s NamingStrategy) Option {
	return optionFunc(func(c *clientConfig) {
		c.naming = s
	})
}

// WithIndexPrefix prepends a fixed prefix to every resolved index name.
func WithIndexPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexPrefix = prefix
	})
}

// WithRefreshWrites makes every write immediately visible to search.
// Convenient for tests, expensive in production.
func WithRefreshWrites() Option {
	return optionFunc(func(c *clientConfig) {
		c.refreshWrites = true
	})
}

// WithConverter registers a named field converter, referenced from struct
// tags as `esmap:"field,,converter=name"`.
func WithConverter(name string, fc FieldConverter) Option {
	return optionFunc(func(c *clientConfig) {
		c.namedConverters = append(c.namedConverters, namedConverter{name: name, fc: fc})
	})
}

// WithTypeConverter registers a converter for every field of the prototype's
// type.
func WithTypeConverter(prototype any, fc FieldConverter) Option {
	return optionFunc(func(c *clientConfig) {
		c.typedConverters = append(c.typedConverters, typedConverter{
			typ: reflect.TypeOf(prototype),
			fc:  fc,
		})
	})
}

// WithSubtype registers a polymorphic subtype under a persisted alias. Reads
// resolve the alias back to the prototype's concrete type.
func WithSubtype(alias string, prototype any) Option {
	return optionFunc(func(c *clientConfig) {
		c.aliases = append(c.aliases, subtypeAlias{alias: alias, prototype: prototype})
	})
}

// WithReadinessTimeout bounds the startup wait for the backend.
// Default: 10s.
func WithReadinessTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.readinessTimeout = d
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
