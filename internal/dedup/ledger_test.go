package dedup_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/EvgeniOk14/CurrencyServiceProject/internal/dedup"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/database/document"
)

// fakeDocStore is a minimal in-memory document.Interface covering exactly
// the query shapes internal/dedup issues: equality lookups (Exists) and
// "$lte" range deletes (the two sweeps).
type fakeDocStore struct {
	mu   sync.Mutex
	docs map[string][]document.Document
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{docs: make(map[string][]document.Document)}
}

// Insert mimics a unique index on "rid": a second insert with the same rid
// is a silent no-op, the same contract EnsureIndex+InsertOne give the real
// mongodb adapter.
func (f *fakeDocStore) Insert(ctx context.Context, collection string, doc document.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rid, ok := doc["rid"]; ok {
		for _, existing := range f.docs[collection] {
			if existing["rid"] == rid {
				return nil
			}
		}
	}
	f.docs[collection] = append(f.docs[collection], doc)
	return nil
}

func (f *fakeDocStore) Find(ctx context.Context, collection string, query map[string]interface{}) ([]document.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []document.Document
	for _, d := range f.docs[collection] {
		if matches(d, query) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDocStore) Update(ctx context.Context, collection string, filter map[string]interface{}, update map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, d := range f.docs[collection] {
		if matches(d, filter) {
			for k, v := range update {
				f.docs[collection][i][k] = v
			}
		}
	}
	return nil
}

func (f *fakeDocStore) Delete(ctx context.Context, collection string, filter map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []document.Document
	for _, d := range f.docs[collection] {
		if !matches(d, filter) {
			kept = append(kept, d)
		}
	}
	f.docs[collection] = kept
	return nil
}

// EnsureIndex is a no-op: the fake enforces uniqueness directly in Insert.
func (f *fakeDocStore) EnsureIndex(ctx context.Context, collection, field string, unique bool) error {
	return nil
}

func (f *fakeDocStore) Close() error { return nil }

func (f *fakeDocStore) count(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs[collection])
}

func matches(d document.Document, query map[string]interface{}) bool {
	for k, v := range query {
		if op, ok := v.(map[string]interface{}); ok {
			threshold, ok := op["$lte"].(time.Time)
			if !ok {
				return false
			}
			ts, ok := d[k].(time.Time)
			if !ok || ts.After(threshold) {
				return false
			}
			continue
		}
		if d[k] != v {
			return false
		}
	}
	return true
}

func TestLedger_InsertThenExists(t *testing.T) {
	ctx := context.Background()
	store := newFakeDocStore()
	l := dedup.New(store, 10*24*time.Hour)

	exists, err := l.Exists(ctx, "rid-1")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, l.Insert(ctx, "rid-1"))

	exists, err = l.Exists(ctx, "rid-1")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestLedger_ExpiredEntryNotReportedAsExisting(t *testing.T) {
	ctx := context.Background()
	store := newFakeDocStore()
	// A negative TTL means every insert is already expired.
	l := dedup.New(store, -time.Hour)

	require.NoError(t, l.Insert(ctx, "rid-2"))

	exists, err := l.Exists(ctx, "rid-2")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestSweeper_PurgeExpiredRemovesOnlyExpiredRows(t *testing.T) {
	ctx := context.Background()
	store := newFakeDocStore()

	fresh := dedup.New(store, 10*24*time.Hour)
	require.NoError(t, fresh.Insert(ctx, "fresh-rid"))

	expired := dedup.New(store, -time.Hour)
	require.NoError(t, expired.Insert(ctx, "expired-rid"))

	require.Equal(t, 2, store.count(dedup.Collection))
	require.NoError(t, fresh.PurgeExpired(ctx))
	require.Equal(t, 1, store.count(dedup.Collection))

	remaining, err := store.Find(ctx, dedup.Collection, map[string]interface{}{"rid": "fresh-rid"})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestSweeper_PurgeOlderThanIgnoresExpiresAt(t *testing.T) {
	ctx := context.Background()
	store := newFakeDocStore()
	l := dedup.New(store, 10*24*time.Hour)

	// Insert directly with a backdated insertedAt so it predates the hard
	// cutoff even though its TTL-based expiresAt is still in the future.
	require.NoError(t, store.Insert(ctx, dedup.Collection, document.Document{
		"rid":        "old-rid",
		"expiresAt":  time.Now().Add(9 * 24 * time.Hour),
		"insertedAt": time.Now().Add(-20 * 24 * time.Hour),
	}))
	require.NoError(t, l.Insert(ctx, "recent-rid"))

	require.NoError(t, l.PurgeOlderThan(ctx, 15))

	remaining, err := store.Find(ctx, dedup.Collection, map[string]interface{}{"rid": "recent-rid"})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, 1, store.count(dedup.Collection))
}
