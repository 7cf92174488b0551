// Package dedup is the correlation-id ledger (spec §4.5, C5): a durable
// set of seen `rid`s with a TTL, used by the request-side handler to drop
// redelivered records silently instead of reprocessing them. Grounded on
// the document-store adapter in pkg/database/document/adapters/mongodb.
package dedup

import (
	"context"
	"time"

	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/database/document"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/errors"
)

// Collection is the name spec.md's schema note gives this ledger.
const Collection = "requestId-collection"

// Document keys backing each ledger row.
const (
	fieldRID        = "rid"
	fieldExpiresAt  = "expiresAt"
	fieldInsertedAt = "insertedAt"
)

// Ledger persists seen correlation ids with an expiry, and purges them on
// the two sweep schedules spec §4.5 calls for.
type Ledger struct {
	store document.Interface
	ttl   time.Duration
}

// New builds a Ledger over store with the given TTL (spec's dedup.ttlDays,
// 10 days by default).
func New(store document.Interface, ttl time.Duration) *Ledger {
	return &Ledger{store: store, ttl: ttl}
}

// EnsureIndexes creates the unique index on rid spec §4.5 names as the
// authority against which Insert's idempotence is checked: the
// Exists-then-Insert path in RequestSideHandler.Handle is a check-then-act
// race under concurrent redelivery, so the index (not the Exists check)
// is what actually prevents two concurrent inserts of the same rid from
// both succeeding. Call once at startup, before the ledger serves traffic.
func (l *Ledger) EnsureIndexes(ctx context.Context) error {
	if err := l.store.EnsureIndex(ctx, Collection, fieldRID, true); err != nil {
		return errors.Wrap(err, "dedup: failed to ensure unique rid index")
	}
	return nil
}

// Exists reports whether rid has already been recorded and has not yet
// expired.
func (l *Ledger) Exists(ctx context.Context, rid string) (bool, error) {
	docs, err := l.store.Find(ctx, Collection, map[string]interface{}{fieldRID: rid})
	if err != nil {
		return false, errors.Wrap(err, "dedup: failed to query ledger")
	}
	for _, d := range docs {
		if expiresAt, ok := d[fieldExpiresAt].(time.Time); ok && time.Now().Before(expiresAt) {
			return true, nil
		}
	}
	return false, nil
}

// Insert records rid with expiresAt = now + ttl.
func (l *Ledger) Insert(ctx context.Context, rid string) error {
	now := time.Now()
	doc := document.Document{
		fieldRID:        rid,
		fieldExpiresAt:  now.Add(l.ttl),
		fieldInsertedAt: now,
	}
	if err := l.store.Insert(ctx, Collection, doc); err != nil {
		return errors.Wrap(err, "dedup: failed to insert ledger entry")
	}
	return nil
}

// PurgeExpired removes every row whose expiresAt has passed — the daily
// sweep spec §4.5 describes.
func (l *Ledger) PurgeExpired(ctx context.Context) error {
	err := l.store.Delete(ctx, Collection, map[string]interface{}{
		fieldExpiresAt: map[string]interface{}{"$lte": time.Now()},
	})
	if err != nil {
		return errors.Wrap(err, "dedup: failed to purge expired entries")
	}
	return nil
}

// PurgeOlderThan removes any row inserted more than the given number of
// days ago, regardless of expiresAt — the second, hard-ceiling sweep.
func (l *Ledger) PurgeOlderThan(ctx context.Context, days int) error {
	cutoff := time.Now().AddDate(0, 0, -days)
	err := l.store.Delete(ctx, Collection, map[string]interface{}{
		fieldInsertedAt: map[string]interface{}{"$lte": cutoff},
	})
	if err != nil {
		return errors.Wrap(err, "dedup: failed to hard-purge old entries")
	}
	return nil
}
