package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/EvgeniOk14/CurrencyServiceProject/internal/domain"
	"github.com/EvgeniOk14/CurrencyServiceProject/internal/ledger"
	cachemem "github.com/EvgeniOk14/CurrencyServiceProject/pkg/cache/adapters/memory"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/database"
	sqlpkg "github.com/EvgeniOk14/CurrencyServiceProject/pkg/database/sql"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/database/sql/adapters/sqlite"
)

func newTestStore(t *testing.T, freshness time.Duration) *ledger.Store {
	t.Helper()
	db, err := sqlite.New(sqlpkg.Config{Driver: database.DriverSQLite, Name: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := ledger.New(db, cachemem.New(), freshness)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestStore_RecordThenLookup_FreshHit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, time.Hour)

	reply := domain.Reply{Rates: map[string]float64{"USD": 1.1, "GBP": 0.9}, BaseCurrency: "EUR", Date: "2026-07-31"}
	require.NoError(t, store.Record(ctx, domain.KindAll, "", reply, time.Now()))

	got, fresh, err := store.Lookup(ctx, domain.KindAll, "")
	require.NoError(t, err)
	require.True(t, fresh)
	require.Equal(t, 1.1, got.Rates["USD"])
}

func TestStore_Lookup_StaleMissesEvenIfPresent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, time.Hour)

	reply := domain.Reply{Rates: map[string]float64{"USD": 1.1}, BaseCurrency: "EUR"}
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, store.Record(ctx, domain.KindSingle, "USD", reply, old))

	_, fresh, err := store.Lookup(ctx, domain.KindSingle, "USD")
	require.NoError(t, err)
	require.False(t, fresh)
}

func TestStore_Lookup_ContainmentFailsForNarrowerCachedReply(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, time.Hour)

	// A cached SINGLE:USD reply does not satisfy a FILTER request naming a
	// code it never stored.
	reply := domain.Reply{Rates: map[string]float64{"USD": 1.1}, BaseCurrency: "EUR"}
	require.NoError(t, store.Record(ctx, domain.KindSingle, "USD", reply, time.Now()))

	_, fresh, err := store.Lookup(ctx, domain.KindFilter, "USD,GBP")
	require.NoError(t, err)
	require.False(t, fresh)
}

func TestStore_PayloadExistsAndTouch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, time.Hour)

	envelope := domain.NewEnvelope(domain.KindSingle, "JPY")
	exists, err := store.PayloadExists(ctx, envelope)
	require.NoError(t, err)
	require.False(t, exists)

	reply := domain.Reply{Rates: map[string]float64{"JPY": 150.0}, BaseCurrency: "EUR"}
	require.NoError(t, store.Record(ctx, domain.KindSingle, "JPY", reply, time.Now()))

	exists, err = store.PayloadExists(ctx, envelope)
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, store.TouchPayload(ctx, domain.KindSingle, "JPY"))
}
