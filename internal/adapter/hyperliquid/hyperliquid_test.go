package hyperliquid

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hft/internal/adapter"
	"hft/internal/schema"
	"hft/pkg/exception"
)

const testBook = `{"channel":"l2Book","data":{"coin":"BTC","time":1700000000000,"levels":[
	[{"px":"100.0","sz":"1.5","n":2},{"px":"99.5","sz":"3","n":1}],
	[{"px":"100.5","sz":"2","n":1},{"px":"101","sz":"4","n":3}]
]}}`

func TestHandleBook(t *testing.T) {
	a := New(Config{})

	_, ok, err := a.handle([]byte(`{"channel":"trades","data":[{"coin":"BTC","side":"B","px":"100.2","sz":"0.1","time":1699999999000,"tid":7}]}`))
	require.NoError(t, err)
	assert.False(t, ok)

	snap, ok, err := a.handle([]byte(testBook))
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "BTC", snap.Symbol)
	assert.Equal(t, schema.VenueHyperliquid, snap.Venue)
	assert.Equal(t, int64(1700000000000)*int64(time.Millisecond), snap.TimestampNs)
	assert.Equal(t, []schema.Level{{Price: 100, Quantity: 1.5}, {Price: 99.5, Quantity: 3}}, snap.OrderBook.Bids)
	assert.Equal(t, []schema.Level{{Price: 100.5, Quantity: 2}, {Price: 101, Quantity: 4}}, snap.OrderBook.Asks)
	require.Len(t, snap.RecentTrades, 1)
	assert.Equal(t, schema.SideBuy, snap.RecentTrades[0].Side)
	assert.Equal(t, "7", snap.RecentTrades[0].TradeID)

	mid, ok := a.mid("BTC")
	require.True(t, ok)
	assert.Equal(t, 100.25, mid)

	// A second message replaces the book rather than merging into it.
	snap, ok, err = a.handle([]byte(`{"channel":"l2Book","data":{"coin":"BTC","time":1700000001000,"levels":[[{"px":"100.1","sz":"1","n":1}],[]]}}`))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []schema.Level{{Price: 100.1, Quantity: 1}}, snap.OrderBook.Bids)
	assert.Empty(t, snap.OrderBook.Asks)

	_, _, err = a.handle([]byte(`not json`))
	assert.True(t, errors.Is(err, exception.ErrSerialization))
}

type fakeVenue struct {
	t        *testing.T
	secret   string
	exchange func(body map[string]any) any
}

func (f *fakeVenue) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	require.NoError(f.t, err)
	var body map[string]any
	require.NoError(f.t, json.Unmarshal(raw, &body))

	var resp any
	switch r.URL.Path {
	case "/info":
		switch body["type"] {
		case "meta":
			resp = map[string]any{"universe": []map[string]any{{"name": "BTC"}, {"name": "ETH"}, {"name": "ETHFI"}}}
		case "clearinghouseState":
			resp = map[string]any{
				"marginSummary": map[string]any{"accountValue": "1000", "totalMarginUsed": "200"},
				"withdrawable":  "800",
				"assetPositions": []map[string]any{{"position": map[string]any{
					"coin": "ETH", "szi": "-2", "entryPx": "2000", "positionValue": "4100",
					"unrealizedPnl": "-100", "marginUsed": "410", "liquidationPx": "2500",
					"leverage": map[string]any{"value": 10},
				}}},
			}
		case "metaAndAssetCtxs":
			resp = []any{
				map[string]any{"universe": []map[string]any{{"name": "BTC"}, {"name": "ETH"}}},
				[]map[string]any{
					{"funding": "0.0000125", "openInterest": "100", "dayNtlVlm": "5000000", "markPx": "50000"},
					{"funding": "0.0001", "openInterest": "2000", "dayNtlVlm": "900000", "markPx": "2000"},
				},
			}
		}
	case "/exchange":
		var signed struct {
			Action    json.RawMessage `json:"action"`
			Nonce     int64           `json:"nonce"`
			Signature string          `json:"signature"`
		}
		require.NoError(f.t, json.Unmarshal(raw, &signed))
		nonce := strconv.FormatInt(signed.Nonce, 10)
		assert.Equal(f.t, adapter.Sign(f.secret, string(signed.Action)+nonce), signed.Signature)
		assert.Equal(f.t, "key", r.Header.Get("X-API-KEY"))
		resp = f.exchange(body)
	}

	w.Header().Set("Content-Type", "application/json")
	require.NoError(f.t, json.NewEncoder(w).Encode(resp))
}

func newTestAdapter(t *testing.T, exchange func(map[string]any) any) *Adapter {
	venue := &fakeVenue{t: t, secret: "secret", exchange: exchange}
	srv := httptest.NewServer(venue)
	t.Cleanup(srv.Close)

	a := New(Config{
		RESTURL:     srv.URL,
		Credentials: adapter.Credentials{Key: "key", Secret: "secret"},
		HTTPClient:  srv.Client(),
	})
	a.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return a
}

func TestMarketInfo(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t, nil)

	symbols, err := a.ListSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "ETH", "ETHFI"}, symbols)

	found, err := a.SearchSymbols(ctx, "eth")
	require.NoError(t, err)
	assert.Equal(t, []string{"ETH", "ETHFI"}, found)

	funding, err := a.FundingRate(ctx, "BTC")
	require.NoError(t, err)
	assert.InDelta(t, 0.125, funding, 1e-9)

	oi, err := a.OpenInterest(ctx, "ETH")
	require.NoError(t, err)
	assert.Equal(t, 2000.0, oi)

	vol, err := a.Volume24h(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, 5_000_000.0, vol)

	_, err = a.Volume24h(ctx, "DOGE")
	assert.True(t, errors.Is(err, exception.ErrNotFound))

	metrics, err := a.UniverseMetrics(ctx)
	require.NoError(t, err)
	require.Len(t, metrics, 2)
	btc := metrics["BTC"]
	assert.Equal(t, 5_000_000.0, btc.Volume24hUSD)
	assert.Equal(t, 5_000_000.0, btc.LiquidityUSD)
	require.NotNil(t, btc.FundingRateBps)
	assert.InDelta(t, 0.125, *btc.FundingRateBps, 1e-9)
	require.NotNil(t, metrics["ETH"].OpenInterestUSD)
	assert.Equal(t, 4_000_000.0, *metrics["ETH"].OpenInterestUSD)
}

func TestAccount(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t, nil)

	balances, err := a.Balances(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.Balance{Asset: "USDC", Free: 800, Locked: 200, Total: 1000}, balances["USDC"])

	positions, err := a.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	p := positions[0]
	assert.Equal(t, "ETH", p.Symbol)
	assert.Equal(t, -2.0, p.Size)
	assert.Equal(t, 2050.0, p.MarkPrice)
	assert.Equal(t, 10.0, p.Leverage)
	require.NotNil(t, p.LiquidationPrice)
	assert.Equal(t, 2500.0, *p.LiquidationPrice)

	lev, err := a.Leverage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10.0, lev)

	tier, err := a.FeeTier(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.FeeTier{MakerFeeBps: 2, TakerFeeBps: 5}, tier)
}

func TestSendOrder(t *testing.T) {
	ctx := context.Background()
	price := 2000.0

	testCases := []struct {
		desc    string
		resp    map[string]any
		status  schema.OrderStatus
		orderID string
		fill    bool
		err     error
	}{
		{
			desc:    "resting",
			resp:    map[string]any{"resting": map[string]any{"oid": 11}},
			status:  schema.OrderStatusAccepted,
			orderID: "11",
		},
		{
			desc:    "filled",
			resp:    map[string]any{"filled": map[string]any{"oid": 12, "totalSz": "0.5", "avgPx": "1999.5"}},
			status:  schema.OrderStatusFilled,
			orderID: "12",
			fill:    true,
		},
		{
			desc:   "rejected",
			resp:   map[string]any{"error": "Post only order would have immediately matched"},
			status: schema.OrderStatusRejected,
			err:    exception.ErrOrderRejected,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			var action map[string]any
			a := newTestAdapter(t, func(body map[string]any) any {
				action = body["action"].(map[string]any)
				return map[string]any{
					"status": "ok",
					"response": map[string]any{
						"type": "order",
						"data": map[string]any{"statuses": []any{tc.resp}},
					},
				}
			})

			ack, err := a.SendOrder(ctx, schema.OrderRequest{
				ClientID:    "c-1",
				Symbol:      "ETH",
				Side:        schema.SideBuy,
				OrderType:   schema.OrderTypePostOnly,
				Quantity:    0.5,
				Price:       &price,
				TimeInForce: schema.TimeInForceGTX,
			})
			if tc.err != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.err))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.status, ack.Status)
			assert.Equal(t, tc.orderID, ack.VenueOrderID)
			assert.Equal(t, "c-1", ack.ClientID)

			orders := action["orders"].([]any)
			order := orders[0].(map[string]any)
			assert.Equal(t, float64(1), order["a"])
			assert.Equal(t, "2000", order["p"])
			assert.Equal(t, "0.5", order["s"])
			assert.Equal(t, "Alo", order["t"].(map[string]any)["limit"].(map[string]any)["tif"])

			if tc.fill {
				select {
				case fill := <-a.Fills():
					assert.Equal(t, 1999.5, fill.Price)
					assert.Equal(t, 0.5, fill.Quantity)
					assert.Equal(t, "12", fill.VenueOrderID)
				default:
					t.Fatal("expected a fill")
				}
			}
		})
	}
}

func TestSendOrderNeedsCredentials(t *testing.T) {
	a := newTestAdapter(t, nil)
	a.cfg.Credentials = adapter.Credentials{}
	price := 1.0

	_, err := a.SendOrder(context.Background(), schema.OrderRequest{Symbol: "BTC", Side: schema.SideBuy, Quantity: 1, Price: &price})
	assert.True(t, errors.Is(err, exception.ErrInvalidCredentials))
}

func TestMarketOrderPrice(t *testing.T) {
	a := New(Config{})
	_, err := a.limitPrice(schema.OrderRequest{Symbol: "BTC", Side: schema.SideBuy})
	assert.True(t, errors.Is(err, exception.ErrInvalidData))

	_, _, err = a.handle([]byte(testBook))
	require.NoError(t, err)

	buy, err := a.limitPrice(schema.OrderRequest{Symbol: "BTC", Side: schema.SideBuy})
	require.NoError(t, err)
	assert.InDelta(t, 100.25*1.05, buy, 1e-9)

	sell, err := a.limitPrice(schema.OrderRequest{Symbol: "BTC", Side: schema.SideSell})
	require.NoError(t, err)
	assert.InDelta(t, 100.25*0.95, sell, 1e-9)

	assert.Equal(t, "Ioc", tif(schema.OrderRequest{OrderType: schema.OrderTypeMarket}))
	assert.Equal(t, "Gtc", tif(schema.OrderRequest{OrderType: schema.OrderTypeLimit, TimeInForce: schema.TimeInForceGTC}))
}

func TestEmitCountsDrops(t *testing.T) {
	dropped := 0
	a := New(Config{OnDrop: func() { dropped++ }})
	for i := 0; i < snapshotBuffer+3; i++ {
		a.emit(schema.MarketSnapshot{Symbol: "BTC"})
	}
	assert.Equal(t, 3, dropped)
	assert.Len(t, a.Snapshots(), snapshotBuffer)
}
