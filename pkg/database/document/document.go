// Package document declares the configuration and interface a document
// store adapter (pkg/database/document/adapters/mongodb) implements.
package document

import "context"

// Document is a schemaless record, stored and returned as-is.
type Document map[string]interface{}

// Interface is the operation set a document store exposes.
type Interface interface {
	Insert(ctx context.Context, collection string, doc Document) error
	Find(ctx context.Context, collection string, query map[string]interface{}) ([]Document, error)
	Update(ctx context.Context, collection string, filter map[string]interface{}, update map[string]interface{}) error
	Delete(ctx context.Context, collection string, filter map[string]interface{}) error
	// EnsureIndex creates an index on field, enforcing uniqueness when
	// unique is true. Callers that need Insert to reject (or no-op) a
	// duplicate key must call this once before relying on that behavior.
	EnsureIndex(ctx context.Context, collection, field string, unique bool) error
	Close() error
}

// Config configures a document store connection.
type Config struct {
	Driver   string `env:"DOCDB_DRIVER" env-default:"mongodb"`
	Host     string `env:"DOCDB_HOST" env-default:"localhost"`
	Port     int    `env:"DOCDB_PORT" env-default:"27017"`
	User     string `env:"DOCDB_USER"`
	Password string `env:"DOCDB_PASSWORD"`
	Database string `env:"DOCDB_DATABASE" env-default:"currency_svc"`

	UseTLS             bool   `env:"DOCDB_TLS" env-default:"false"`
	CAPath             string `env:"DOCDB_TLS_CA_PATH"`
	CertPath           string `env:"DOCDB_TLS_CERT_PATH"`
	KeyPath            string `env:"DOCDB_TLS_KEY_PATH"`
	InsecureSkipVerify bool   `env:"DOCDB_TLS_INSECURE_SKIP_VERIFY" env-default:"false"`

	MaxOpenConns int `env:"DOCDB_MAX_OPEN_CONNS" env-default:"20"`
	MaxIdleConns int `env:"DOCDB_MAX_IDLE_CONNS" env-default:"5"`
}
