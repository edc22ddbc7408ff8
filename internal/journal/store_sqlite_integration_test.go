//go:build integration
// +build integration

package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"hft/internal/schema"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every pooled connection would get its own in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := NewStore(db)
	require.NoError(t, s.AutoMigrate(context.Background()))
	return s
}

func TestStoreFills(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	for i, sym := range []string{"BTC", "ETH", "BTC", "BTC"} {
		require.NoError(t, s.SaveFill(ctx, schema.Fill{
			ClientID:    sym + string(rune('a'+i)),
			Symbol:      sym,
			Venue:       schema.VenueHyperliquid,
			Side:        schema.SideBuy,
			Price:       100 + float64(i),
			Quantity:    1,
			FeeBps:      2,
			TimestampNs: int64(i + 1),
		}))
	}

	fills, err := s.ListFills(ctx, "BTC", 2)
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, int64(4), fills[0].TimestampNs)
	assert.Equal(t, int64(3), fills[1].TimestampNs)
	assert.Equal(t, schema.VenueHyperliquid, fills[0].Venue)

	all, err := s.ListFills(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestStoreDecisions(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	require.NoError(t, s.SaveDecision(ctx,
		schema.Prediction{TimestampNs: 1, Symbol: "SOL", EdgeBps: 9, Confidence: 0.6},
		schema.RouteDecision{Style: schema.OrderStyleTakerNow, SizeFraction: 0.5, ShouldTrade: true},
	))
	require.NoError(t, s.SaveDecision(ctx,
		schema.Prediction{TimestampNs: 2, Symbol: "SOL", EdgeBps: 1, Confidence: 0.2},
		schema.RouteDecision{Reason: "edge below threshold"},
	))

	decisions, err := s.ListDecisions(ctx, "SOL", 10)
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.False(t, decisions[0].ShouldTrade)
	assert.Equal(t, "edge below threshold", decisions[0].Reason)
	assert.Equal(t, schema.OrderStyleTakerNow, decisions[1].Style)

	var count int64
	require.NoError(t, s.db.Model(&DecisionModel{}).Where("should_trade = ?", true).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
