package paper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hft/internal/schema"
	"hft/pkg/exception"
)

func snapshot(symbol string, bid, ask float64) schema.MarketSnapshot {
	return schema.MarketSnapshot{
		TimestampNs: 1,
		Symbol:      symbol,
		OrderBook: schema.OrderBook{
			Symbol: symbol,
			Bids:   []schema.Level{{Price: bid, Quantity: 10}},
			Asks:   []schema.Level{{Price: ask, Quantity: 10}},
		},
	}
}

func price(p float64) *float64 {
	return &p
}

func drain(v *Venue) []schema.Fill {
	var out []schema.Fill
	for len(v.fills) > 0 {
		out = append(out, <-v.fills)
	}
	return out
}

func TestSendOrder(t *testing.T) {
	testCases := []struct {
		desc   string
		req    schema.OrderRequest
		status schema.OrderStatus
		fill   float64
		err    error
	}{
		{
			desc:   "market fills at mid",
			req:    schema.OrderRequest{ClientID: "m", Symbol: "BTC", Side: schema.SideBuy, OrderType: schema.OrderTypeMarket, Quantity: 1},
			status: schema.OrderStatusFilled,
			fill:   100,
		},
		{
			desc:   "limit at mid fills",
			req:    schema.OrderRequest{ClientID: "s", Symbol: "BTC", Side: schema.SideSell, OrderType: schema.OrderTypeLimit, Quantity: 1, Price: price(100)},
			status: schema.OrderStatusFilled,
			fill:   100,
		},
		{
			desc:   "passive limit rests",
			req:    schema.OrderRequest{ClientID: "l", Symbol: "BTC", Side: schema.SideBuy, OrderType: schema.OrderTypeLimit, Quantity: 1, Price: price(99)},
			status: schema.OrderStatusAccepted,
		},
		{
			desc:   "post only rests",
			req:    schema.OrderRequest{ClientID: "p", Symbol: "BTC", Side: schema.SideBuy, OrderType: schema.OrderTypePostOnly, Quantity: 1, Price: price(100)},
			status: schema.OrderStatusAccepted,
		},
		{
			desc:   "crossing post only is rejected",
			req:    schema.OrderRequest{ClientID: "x", Symbol: "BTC", Side: schema.SideBuy, OrderType: schema.OrderTypePostOnly, Quantity: 1, Price: price(101)},
			status: schema.OrderStatusRejected,
			err:    exception.ErrOrderRejected,
		},
		{
			desc:   "passive ioc is cancelled",
			req:    schema.OrderRequest{ClientID: "i", Symbol: "BTC", Side: schema.SideBuy, OrderType: schema.OrderTypeIOC, Quantity: 1, Price: price(99)},
			status: schema.OrderStatusCancelled,
		},
		{
			desc:   "unknown symbol is rejected",
			req:    schema.OrderRequest{ClientID: "u", Symbol: "ETH", Side: schema.SideBuy, OrderType: schema.OrderTypeMarket, Quantity: 1},
			status: schema.OrderStatusRejected,
			err:    exception.ErrOrderRejected,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			v := New(Config{})
			v.Update(snapshot("BTC", 99.5, 100.5))

			ack, err := v.SendOrder(context.Background(), tc.req)
			if tc.err != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.err))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.status, ack.Status)
			assert.Equal(t, tc.req.ClientID, ack.ClientID)

			fills := drain(v)
			if tc.fill == 0 {
				assert.Empty(t, fills)
				return
			}
			require.Len(t, fills, 1)
			assert.Equal(t, tc.fill, fills[0].Price)
			assert.Equal(t, 5.0, fills[0].FeeBps)
			assert.False(t, fills[0].Maker)
		})
	}
}

func TestInvalidOrder(t *testing.T) {
	v := New(Config{})
	_, err := v.SendOrder(context.Background(), schema.OrderRequest{Symbol: "BTC", Side: schema.SideBuy, OrderType: schema.OrderTypeMarket})
	assert.True(t, errors.Is(err, exception.ErrInvalidData))

	_, err = v.SendOrder(context.Background(), schema.OrderRequest{Symbol: "BTC", Side: schema.SideBuy, OrderType: schema.OrderTypePostOnly, Quantity: 1})
	assert.True(t, errors.Is(err, exception.ErrInvalidData))
}

func TestRestingOrderFillsOnTouch(t *testing.T) {
	ctx := context.Background()
	v := New(Config{Venue: schema.VenueBinanceFutures})
	v.Update(snapshot("BTC", 99.5, 100.5))

	ack, err := v.SendOrder(ctx, schema.OrderRequest{ClientID: "c-1", Symbol: "BTC", Side: schema.SideBuy, OrderType: schema.OrderTypePostOnly, Quantity: 2, Price: price(99)})
	require.NoError(t, err)
	require.Equal(t, schema.OrderStatusAccepted, ack.Status)

	v.Update(snapshot("BTC", 99.2, 99.8))
	assert.Empty(t, drain(v))

	v.Update(snapshot("BTC", 98.5, 99))
	fills := drain(v)
	require.Len(t, fills, 1)
	assert.Equal(t, 99.0, fills[0].Price)
	assert.Equal(t, 2.0, fills[0].Quantity)
	assert.True(t, fills[0].Maker)
	assert.Equal(t, 2.0, fills[0].FeeBps)
	assert.Equal(t, schema.VenueBinanceFutures, fills[0].Venue)

	got, err := v.GetOrder(ctx, "BTC", ack.VenueOrderID)
	require.NoError(t, err)
	assert.Equal(t, schema.OrderStatusFilled, got.Status)

	positions, err := v.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 2.0, positions[0].Size)
	assert.Equal(t, 98.75, positions[0].MarkPrice)

	balances, err := v.Balances(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 100_000-99*2*2/10_000.0, balances["USD"].Total, 1e-9)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	v := New(Config{})
	v.Update(snapshot("BTC", 99.5, 100.5))
	v.Update(snapshot("ETH", 9.5, 10.5))

	a, err := v.SendOrder(ctx, schema.OrderRequest{ClientID: "a", Symbol: "BTC", Side: schema.SideBuy, OrderType: schema.OrderTypeLimit, Quantity: 1, Price: price(90)})
	require.NoError(t, err)
	_, err = v.SendOrder(ctx, schema.OrderRequest{ClientID: "b", Symbol: "BTC", Side: schema.SideSell, OrderType: schema.OrderTypeLimit, Quantity: 1, Price: price(110)})
	require.NoError(t, err)
	_, err = v.SendOrder(ctx, schema.OrderRequest{ClientID: "c", Symbol: "ETH", Side: schema.SideSell, OrderType: schema.OrderTypeLimit, Quantity: 1, Price: price(11)})
	require.NoError(t, err)

	require.NoError(t, v.CancelOrder(ctx, "BTC", a.VenueOrderID))
	err = v.CancelOrder(ctx, "BTC", a.VenueOrderID)
	assert.True(t, errors.Is(err, exception.ErrOrderRejected))
	assert.True(t, errors.Is(v.CancelOrder(ctx, "BTC", "missing"), exception.ErrNotFound))

	require.NoError(t, v.CancelAll(ctx, "BTC"))
	got, err := v.GetOrder(ctx, "BTC", "b")
	require.NoError(t, err)
	assert.Equal(t, schema.OrderStatusCancelled, got.Status)

	got, err = v.GetOrder(ctx, "ETH", "c")
	require.NoError(t, err)
	assert.Equal(t, schema.OrderStatusAccepted, got.Status)

	v.Update(snapshot("BTC", 120, 121))
	assert.Empty(t, drain(v))
}
