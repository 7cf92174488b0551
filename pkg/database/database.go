// Package database declares the relational-store abstraction shared by the
// driver adapters in pkg/database/sql/adapters: a thin DB interface over
// *gorm.DB, a slog-backed gorm logger, and the set of recognised drivers.
package database

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/errors"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Driver names recognised by the sql adapters.
const (
	DriverPostgres  = "postgres"
	DriverMySQL     = "mysql"
	DriverSQLite    = "sqlite"
	DriverSQLServer = "sqlserver"
	DriverMongoDB   = "mongodb"
)

// DB is the connection surface every sql adapter implements.
type DB interface {
	// Get returns the primary database connection bound to ctx.
	Get(ctx context.Context) *gorm.DB

	// GetShard returns the connection responsible for key. Single-node
	// adapters return the primary connection for any key.
	GetShard(ctx context.Context, key string) (*gorm.DB, error)

	// Close releases the underlying connection pool.
	Close() error
}

// gormSlogWriter adapts pkg/logger's slog logger to gorm's io.Writer-style
// logger interface.
type gormSlogWriter struct{}

func (gormSlogWriter) Printf(format string, args ...interface{}) {
	logger.L().Debug(fmt.Sprintf(format, args...))
}

// NewGORMLogger builds a gorm logger.Interface backed by the service's slog
// logger, at Warn level (gorm is chatty at Info).
func NewGORMLogger() gormlogger.Interface {
	return gormlogger.New(gormSlogWriter{}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// LoadTLSConfig builds a *tls.Config for drivers that need one registered
// out of band (mysql). mode "disable"/"" returns (nil, nil); "require" or
// "true" without a root cert returns a config that skips verification,
// matching the permissive behavior the sslmode name implies.
func LoadTLSConfig(mode, rootCert, cert, key string) (*tls.Config, error) {
	switch mode {
	case "", "disable", "false":
		return nil, nil
	}

	cfg := &tls.Config{}
	if rootCert != "" {
		pem, err := os.ReadFile(rootCert)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read ssl root cert")
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.InvalidArgument("failed to parse ssl root cert", nil)
		}
		cfg.RootCAs = pool
	} else {
		cfg.InsecureSkipVerify = true
	}

	if cert != "" && key != "" {
		pair, err := tls.LoadX509KeyPair(cert, key)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load ssl client cert/key")
		}
		cfg.Certificates = []tls.Certificate{pair}
	}

	return cfg, nil
}
