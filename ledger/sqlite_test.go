package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "positions.db")

	store, err := NewSQLite(path)
	require.NoError(t, err)

	rec := NewRecord("005930", "Samsung", 5)
	rec.Ready = true
	require.NoError(t, store.Upsert(rec))

	rec.Tier(1).Filled = true
	rec.Tier(1).EntryPrice = 100
	rec.Tier(1).EntryAmount = 10
	rec.Tier(1).CurrentAmount = 10
	rec.Tier(1).EntryDate = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	rec.Tier(1).SellHistory = []SellRecord{{ID: "x", Amount: 4, Price: 110, Profit: 40}}
	rec.addRealized(40, rec.Tier(1).EntryDate)
	require.NoError(t, store.Upsert(rec), "second upsert replaces the row")
	require.NoError(t, store.Close())

	// Reopen and read back through a fresh handle.
	reopened, err := NewSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	recs, err := reopened.LoadAll()
	require.NoError(t, err)
	require.Len(t, recs, 1)

	got := recs["005930"]
	require.NotNil(t, got)
	assert.Equal(t, "Samsung", got.Name)
	assert.True(t, got.Ready)
	assert.True(t, got.Tier(1).Filled)
	assert.Equal(t, int64(10), got.Tier(1).CurrentAmount)
	require.Len(t, got.Tier(1).SellHistory, 1)
	assert.InDelta(t, 40, got.Tier(1).SellHistory[0].Profit, 1e-9)
	assert.InDelta(t, 40, got.RealizedPnLByMonth["2026-03"], 1e-9)
	assert.True(t, got.Tier(1).EntryDate.Equal(rec.Tier(1).EntryDate))
}

func TestSQLiteEmptyLoad(t *testing.T) {
	t.Parallel()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer store.Close()

	recs, err := store.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, recs)
}
