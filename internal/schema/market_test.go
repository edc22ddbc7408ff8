package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderBookTouch(t *testing.T) {
	book := OrderBook{
		Symbol: "BTC",
		Bids:   []Level{{Price: 99, Quantity: 1}, {Price: 98, Quantity: 2}},
		Asks:   []Level{{Price: 101, Quantity: 3}, {Price: 102, Quantity: 4}},
	}

	mid, ok := book.Mid()
	require.True(t, ok)
	assert.Equal(t, 100.0, mid)

	spread, ok := book.SpreadBps()
	require.True(t, ok)
	assert.InDelta(t, 200.0, spread, 1e-9)

	bid, ask := book.Depth(1)
	assert.Equal(t, 1.0, bid)
	assert.Equal(t, 3.0, ask)
	bid, ask = book.Depth(5)
	assert.Equal(t, 3.0, bid)
	assert.Equal(t, 7.0, ask)
}

func TestOrderBookOneSided(t *testing.T) {
	book := OrderBook{Bids: []Level{{Price: 99, Quantity: 1}}}

	_, ok := book.Mid()
	assert.False(t, ok)
	_, ok = book.SpreadBps()
	assert.False(t, ok)
	_, ok = book.BestAsk()
	assert.False(t, ok)
}

func TestEnumText(t *testing.T) {
	testCases := []struct {
		desc string
		in   string
		want TradingMode
		err  bool
	}{
		{"lower", "paper", TradingModePaper, false},
		{"upper", "LIVE", TradingModeLive, false},
		{"mixed", "Backtest", TradingModeBacktest, false},
		{"paused", "paused", TradingModePaused, false},
		{"bad", "demo", TradingModeUnknown, true},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := ParseTradingMode(tc.in)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	status, err := ParseOrderStatus("partially_filled")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPartiallyFilled, status)
	assert.Equal(t, "Side(9)", Side(9).String())
}

func TestEnumJSON(t *testing.T) {
	alert := Alert{Level: AlertLevelCritical, Source: "risk", Message: "kill switch"}
	b, err := json.Marshal(alert)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"level":"Critical"`)

	var decoded Alert
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, AlertLevelCritical, decoded.Level)
}

func TestVenueCategory(t *testing.T) {
	assert.Equal(t, AssetCategoryEquity, VenueIBKR.Category())
	assert.Equal(t, AssetCategoryCryptoFutures, VenueHyperliquid.Category())
	assert.Equal(t, AssetCategoryCryptoFutures, VenueBinanceFutures.Category())
	assert.Equal(t, AssetCategoryUnknown, VenueUnknown.Category())
	assert.Equal(t, -1.0, SideSell.Sign())
}
