// Package config assembles the service's root configuration struct and
// loads it with pkg/config.Load, the same cleanenv + validator pipeline the
// teacher's templates use. Each field below documents the dotted option
// name spec.md §6 uses; the env tag is the concrete environment variable.
package config

import (
	"time"

	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/config"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/logger"
)

// BusConfig holds the options spec.md calls bus.*.
type BusConfig struct {
	// bus.brokers
	Brokers []string `env:"BUS_BROKERS" env-separator:"," validate:"required"`
	// bus.groupId — base consumer-group id; each consumer appends its own
	// suffix (-edge-response, -cache-request, -cache-fetch).
	GroupID string `env:"BUS_GROUP_ID" env-default:"currency-svc"`
	// bus.transactionalIdPrefix
	TransactionalIDPrefix string `env:"BUS_TRANSACTIONAL_ID_PREFIX" env-default:"currency-svc"`
	// bus.enableIdempotence
	EnableIdempotence bool `env:"BUS_ENABLE_IDEMPOTENCE" env-default:"true"`
}

// RetryConfig holds the options spec.md calls retry.* (the fetch-side
// upstream call's backoff policy).
type RetryConfig struct {
	// retry.maxAttempts
	MaxAttempts int `env:"RETRY_MAX_ATTEMPTS" env-default:"5"`
	// retry.backoffMs
	BackoffMs int `env:"RETRY_BACKOFF_MS" env-default:"2000"`
	// retry.multiplier
	Multiplier float64 `env:"RETRY_MULTIPLIER" env-default:"2.0"`
	// retry.capMs
	CapMs int `env:"RETRY_CAP_MS" env-default:"5000"`
}

// PoolConfig holds the options spec.md calls pool.* (the bounded worker
// pool dispatching bus sends).
type PoolConfig struct {
	// pool.min
	Min int `env:"POOL_MIN" env-default:"5"`
	// pool.max
	Max int `env:"POOL_MAX" env-default:"20"`
	// pool.queue
	Queue int `env:"POOL_QUEUE" env-default:"500"`
	// pool.idleSec
	IdleSec int `env:"POOL_IDLE_SEC" env-default:"60"`
	// pool.rejection — only "abort" is implemented, per spec §4.2.
	Rejection string `env:"POOL_REJECTION" env-default:"abort"`
}

// CacheConfig holds the options spec.md calls cache.*.
type CacheConfig struct {
	// cache.freshnessSec
	FreshnessSec int `env:"CACHE_FRESHNESS_SEC" env-default:"3600"`

	// Redis front for the fast payload-presence/staleness check ahead of
	// the relational store (see SPEC_FULL.md Domain Stack).
	RedisHost string `env:"CACHE_REDIS_HOST" env-default:"localhost"`
	RedisPort string `env:"CACHE_REDIS_PORT" env-default:"6379"`
	RedisDB   int    `env:"CACHE_REDIS_DB" env-default:"0"`
}

// DedupConfig holds the options spec.md calls dedup.*.
type DedupConfig struct {
	// dedup.ttlDays
	TTLDays int `env:"DEDUP_TTL_DAYS" env-default:"10"`
	// dedup.hardPurgeDays
	HardPurgeDays int `env:"DEDUP_HARD_PURGE_DAYS" env-default:"15"`

	MongoHost     string `env:"DOCDB_HOST" env-default:"localhost"`
	MongoPort     int    `env:"DOCDB_PORT" env-default:"27017"`
	MongoUser     string `env:"DOCDB_USER"`
	MongoPassword string `env:"DOCDB_PASSWORD"`
	MongoDatabase string `env:"DOCDB_DATABASE" env-default:"currency_svc"`
}

// EdgeConfig holds the options spec.md calls edge.*.
type EdgeConfig struct {
	// edge.requestTimeoutSec
	RequestTimeoutSec int `env:"EDGE_REQUEST_TIMEOUT_SEC" env-default:"10"`

	HTTPAddr string `env:"EDGE_HTTP_ADDR" env-default:":8080"`
}

// UpstreamConfig holds the options spec.md calls upstream.*.
type UpstreamConfig struct {
	// upstream.baseUrl
	BaseURL string `env:"UPSTREAM_BASE_URL" env-default:"https://api.exchangeratesapi.io/v1/latest"`
	// upstream.apiKey
	APIKey string `env:"UPSTREAM_API_KEY" validate:"required"`
}

// DatabaseConfig selects and configures the relational store backing the
// payload ledger and cached replies. Field names and tags mirror
// pkg/database/sql.Config so Load's result can be converted directly.
type DatabaseConfig struct {
	// Driver: "postgres" (default), "mysql" or "sqlite".
	Driver   string `env:"DB_DRIVER" env-default:"postgres"`
	Host     string `env:"DB_HOST" env-default:"localhost"`
	Port     string `env:"DB_PORT" env-default:"5432"`
	User     string `env:"DB_USER" env-default:"postgres"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME" env-default:"currency_svc"`
	SSLMode  string `env:"DB_SSLMODE" env-default:"disable"`

	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" env-default:"20"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"1h"`
}

// AppConfig is the root configuration for the service, loaded once in
// cmd/server/main.go.
type AppConfig struct {
	Logger   logger.Config
	Bus      BusConfig
	Retry    RetryConfig
	Pool     PoolConfig
	Cache    CacheConfig
	Dedup    DedupConfig
	Edge     EdgeConfig
	Upstream UpstreamConfig
	Database DatabaseConfig
}

// Backoff returns the initial retry backoff as a time.Duration.
func (r RetryConfig) Backoff() time.Duration { return time.Duration(r.BackoffMs) * time.Millisecond }

// Cap returns the retry cap as a time.Duration.
func (r RetryConfig) Cap() time.Duration { return time.Duration(r.CapMs) * time.Millisecond }

// Load reads AppConfig from the environment (and .env, if present) and
// validates it.
func Load() (*AppConfig, error) {
	var cfg AppConfig
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
