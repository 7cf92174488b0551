// Package sql defines the configuration and interface shared by the
// relational driver adapters (postgres, mysql, sqlite).
package sql

import (
	"time"

	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/database"
)

// SQL is the connection surface a relational adapter exposes. It embeds
// database.DB so callers can depend on either name.
type SQL interface {
	database.DB
}

// Config configures a relational connection. Fields not relevant to a
// given driver (e.g. SSLRootCert for sqlite) are ignored by that adapter.
type Config struct {
	Driver   string `env:"DB_DRIVER" env-default:"postgres"`
	Host     string `env:"DB_HOST" env-default:"localhost"`
	Port     string `env:"DB_PORT" env-default:"5432"`
	User     string `env:"DB_USER" env-default:"postgres"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME" env-default:"currency_svc"`
	SSLMode  string `env:"DB_SSLMODE" env-default:"disable"`

	SSLRootCert string `env:"DB_SSL_ROOT_CERT"`
	SSLCert     string `env:"DB_SSL_CERT"`
	SSLKey      string `env:"DB_SSL_KEY"`

	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" env-default:"20"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"1h"`
}
