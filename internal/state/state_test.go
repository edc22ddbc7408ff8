package state

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hft/internal/obs"
	"hft/internal/recorder"
	"hft/internal/schema"
)

func fill(symbol string, side schema.Side, qty, price float64) schema.Fill {
	return schema.Fill{Symbol: symbol, Side: side, Quantity: qty, Price: price}
}

func TestBookApplyFill(t *testing.T) {
	testCases := []struct {
		desc     string
		fills    []schema.Fill
		size     float64
		entry    float64
		realized float64
	}{
		{"open long", []schema.Fill{fill("BTC", schema.SideBuy, 1, 100)}, 1, 100, 0},
		{"average up", []schema.Fill{fill("BTC", schema.SideBuy, 1, 100), fill("BTC", schema.SideBuy, 1, 110)}, 2, 105, 0},
		{"partial close", []schema.Fill{fill("BTC", schema.SideBuy, 2, 100), fill("BTC", schema.SideSell, 1, 120)}, 1, 100, 20},
		{"flat", []schema.Fill{fill("BTC", schema.SideBuy, 1, 100), fill("BTC", schema.SideSell, 1, 90)}, 0, 0, -10},
		{"flip short", []schema.Fill{fill("BTC", schema.SideBuy, 1, 100), fill("BTC", schema.SideSell, 3, 110)}, -2, 110, 10},
		{"short gains", []schema.Fill{fill("BTC", schema.SideSell, 2, 100), fill("BTC", schema.SideBuy, 1, 80)}, -1, 100, 20},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			b := NewBook()
			var p schema.Position
			for _, f := range tc.fills {
				p = b.ApplyFill(f)
			}
			assert.InDelta(t, tc.size, p.Size, 1e-9)
			assert.InDelta(t, tc.entry, p.EntryPrice, 1e-9)
			assert.InDelta(t, tc.realized, p.RealizedPnL, 1e-9)
		})
	}
}

func TestBookTotals(t *testing.T) {
	b := NewBook()
	b.ApplyFill(fill("BTC", schema.SideBuy, 1, 100))
	b.ApplyFill(fill("ETH", schema.SideSell, 2, 50))
	b.Mark("BTC", 110)
	b.Mark("ETH", 40)

	totals := b.Totals()
	assert.InDelta(t, 110+80, totals.GrossNotional, 1e-9)
	assert.InDelta(t, 110-80, totals.NetNotional, 1e-9)
	assert.InDelta(t, 10+20, totals.UnrealizedPnL, 1e-9)
	assert.Equal(t, 2, totals.Open)

	fee := schema.Fill{Symbol: "SOL", Side: schema.SideBuy, Quantity: 10, Price: 10, FeeBps: 5}
	p := b.ApplyFill(fee)
	assert.InDelta(t, -0.05, p.RealizedPnL, 1e-12)
}

func TestSnapshotRoundTripAndCompare(t *testing.T) {
	b := NewBook()
	b.ApplyFill(fill("BTC", schema.SideBuy, 1, 100))
	b.ApplyFill(fill("ETH", schema.SideBuy, 1, 10))
	b.ApplyFill(fill("ETH", schema.SideSell, 1, 10))

	path := filepath.Join(t.TempDir(), "snap", "positions.json")
	snap := b.Snapshot(7, 99)
	require.NoError(t, WriteSnapshot(path, snap))

	loaded, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), loaded.LastSeq)
	require.NoError(t, CompareSnapshots(snap, loaded))

	other := NewBook()
	other.ApplyFill(fill("BTC", schema.SideBuy, 2, 100))
	assert.Error(t, CompareSnapshots(snap, other.Snapshot(0, 0)))
	assert.Error(t, CompareSnapshots(snap, NewBook().Snapshot(0, 0)))
}

func TestRecoverFromSnapshotAndTail(t *testing.T) {
	dir := t.TempDir()
	w, err := recorder.NewWriter(recorder.DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	log := recorder.NewLog(w, obs.NewTraceGenerator(1))

	require.NoError(t, log.Fill(schema.Fill{Symbol: "BTC", Side: schema.SideBuy, Quantity: 1, Price: 100, TimestampNs: 1}))
	require.NoError(t, log.Fill(schema.Fill{Symbol: "BTC", Side: schema.SideBuy, Quantity: 1, Price: 100, TimestampNs: 2}))
	require.NoError(t, log.Decision(schema.VenueHyperliquid, schema.Prediction{Symbol: "BTC", TimestampNs: 3}, schema.RouteDecision{}))
	require.NoError(t, log.Fill(schema.Fill{Symbol: "ETH", Side: schema.SideSell, Quantity: 3, Price: 10, TimestampNs: 4}))
	require.NoError(t, w.Close())

	full, err := Recover(context.Background(), RecoverConfig{WALDir: dir})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), full.LastSeq)
	assert.Equal(t, 3, full.Replayed)
	btc, ok := full.Book.Position("BTC")
	require.True(t, ok)
	assert.Equal(t, 2.0, btc.Size)

	snapBook := NewBook()
	snapBook.ApplyFill(schema.Fill{Symbol: "BTC", Side: schema.SideBuy, Quantity: 1, Price: 100})
	snapPath := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, WriteSnapshot(snapPath, snapBook.Snapshot(1, 1)))

	partial, err := Recover(context.Background(), RecoverConfig{WALDir: dir, SnapshotPath: snapPath})
	require.NoError(t, err)
	assert.Equal(t, 2, partial.Replayed)
	require.NoError(t, CompareSnapshots(full.Book.Snapshot(0, 0), partial.Book.Snapshot(0, 0)))
}
