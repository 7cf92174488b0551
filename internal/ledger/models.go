// Package ledger is the freshness-aware cache and payload ledger (spec §4,
// C4): a relational record of every request envelope that has been fetched
// and the reply currently cached for it, fronted by a Redis accelerator so
// that Store.Lookup answers a fresh hit without querying SQL (the
// request-side handler's payload-presence check still queries SQL).
//
// Grounded on gorm usage across the copied adapters in
// pkg/database/sql/adapters and the Cache interface in pkg/cache.
package ledger

import "time"

// Payload is one row of the payload_table: a distinct "<kind>:<argument>"
// envelope and the reply currently on file for it. The envelope is the
// primary key — spec's Open Question (ii) resolves to exact-text payload
// keys, not set-based containment, at the storage layer; containment
// (domain.Reply.ContainsAll) is checked only against the reply cached
// under the same envelope, and never decides row identity.
type Payload struct {
	Envelope  string `gorm:"column:envelope;primaryKey"`
	Kind      string `gorm:"column:kind;index"`
	Argument  string `gorm:"column:argument"`
	RepliedAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the gorm table name to the one spec.md's schema note
// names explicitly.
func (Payload) TableName() string { return "payload_table" }

// CachedReply is one row of response_to_kafka: the JSON reply body last
// stored for a Payload, plus the code set it covers. Store.Lookup does not
// read Codes: its ContainsAll check unmarshals Body on every lookup.
type CachedReply struct {
	Envelope     string `gorm:"column:envelope;primaryKey"`
	BaseCurrency string
	Codes        string // comma-joined, sorted rate codes of the reply.
	Body         []byte // the domain.Reply JSON, as last published.
	FetchedAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (CachedReply) TableName() string { return "response_to_kafka" }

// Rate is one row of exchange_rates: the flattened base/quote/value/date
// tuples backing CachedReply, appended on every Store.Record. No lookup
// reads these rows: requests are answered only from CachedReply, so a
// FILTER request is not composed from rows of other envelopes.
type Rate struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	BaseCurrency string `gorm:"index:idx_rate_lookup"`
	Code         string `gorm:"index:idx_rate_lookup"`
	Value        float64
	Date         string
	FetchedAt    time.Time `gorm:"index"`
}

func (Rate) TableName() string { return "exchange_rates" }
