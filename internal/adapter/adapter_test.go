package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/decimal"

	"hft/internal/schema"
)

func TestBookMaintainer(t *testing.T) {
	b := NewBookMaintainer("BTC")
	b.Apply(BookDelta{Kind: DeltaInsert, Side: schema.SideBuy, Price: 100, Quantity: 1})
	b.Apply(BookDelta{Kind: DeltaInsert, Side: schema.SideBuy, Price: 101, Quantity: 2})
	b.Apply(BookDelta{Kind: DeltaInsert, Side: schema.SideBuy, Price: 99, Quantity: 3})
	b.Apply(BookDelta{Kind: DeltaInsert, Side: schema.SideSell, Price: 103, Quantity: 4})
	b.Apply(BookDelta{Kind: DeltaInsert, Side: schema.SideSell, Price: 102, Quantity: 5})

	book := b.OrderBook(42, 2)
	assert.Equal(t, "BTC", book.Symbol)
	assert.Equal(t, int64(42), book.TimestampNs)
	assert.Equal(t, uint64(5), book.Sequence)
	assert.Equal(t, []schema.Level{{Price: 101, Quantity: 2}, {Price: 100, Quantity: 1}}, book.Bids)
	assert.Equal(t, []schema.Level{{Price: 102, Quantity: 5}, {Price: 103, Quantity: 4}}, book.Asks)

	b.Apply(BookDelta{Kind: DeltaUpdate, Side: schema.SideBuy, Price: 101, Quantity: 0})
	b.Apply(BookDelta{Kind: DeltaDelete, Side: schema.SideSell, Price: 102})
	book = b.OrderBook(43, 20)
	assert.Equal(t, []schema.Level{{Price: 100, Quantity: 1}, {Price: 99, Quantity: 3}}, book.Bids)
	assert.Equal(t, []schema.Level{{Price: 103, Quantity: 4}}, book.Asks)
	assert.Equal(t, uint64(7), book.Sequence)

	b.Apply(BookDelta{Kind: DeltaClear})
	book = b.OrderBook(44, 20)
	assert.Empty(t, book.Bids)
	assert.Empty(t, book.Asks)
	assert.Equal(t, uint64(8), b.Sequence())
}

func TestImpactCurve(t *testing.T) {
	c := ImpactCurve{A: 0.001, Beta: 0.5}
	testCases := []struct {
		desc     string
		notional float64
		bps      float64
	}{
		{desc: "one percent", notional: 0.01, bps: 1},
		{desc: "full limit", notional: 1, bps: 10},
		{desc: "large notional", notional: 10_000, bps: 1000},
		{desc: "zero", notional: 0, bps: 0},
		{desc: "negative", notional: -1, bps: 0},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.InDelta(t, tc.bps, c.ImpactBps(tc.notional), 1e-9)
		})
	}
}

func TestSign(t *testing.T) {
	// RFC 4231 test case 2.
	assert.Equal(t,
		"5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843",
		Sign("Jefe", "what do ya want for nothing?"),
	)
}

func TestCredentials(t *testing.T) {
	assert.False(t, Credentials{}.Valid())
	assert.False(t, Credentials{Key: "k"}.Valid())
	assert.True(t, Credentials{Key: "k", Secret: "s"}.Valid())
	assert.NotContains(t, Credentials{Key: "abcdefgh", Secret: "topsecret"}.String(), "topsecret")
}

func TestLimiter(t *testing.T) {
	l := NewLimiter(1, 2)
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, l.Wait(ctx))

	unlimited := NewLimiter(0, 0)
	for range 100 {
		require.True(t, unlimited.Allow())
	}
}

func TestBackoff(t *testing.T) {
	b := Backoff{Min: 100 * time.Millisecond, Max: time.Second, Factor: 2}
	assert.Equal(t, 100*time.Millisecond, b.Next(0))
	assert.Equal(t, 200*time.Millisecond, b.Next(2))
	assert.Equal(t, 800*time.Millisecond, b.Next(4))
	assert.Equal(t, time.Second, b.Next(10))

	jittered := DefaultBackoff()
	for attempt := 1; attempt < 8; attempt++ {
		d := jittered.Next(attempt)
		assert.GreaterOrEqual(t, d, 250*time.Millisecond)
		assert.LessOrEqual(t, d, 5*time.Second)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, b.Sleep(ctx, 5))
}

func TestParseFloat(t *testing.T) {
	assert.Equal(t, 1.25, ParseFloat("1.25"))
	assert.Equal(t, 0.0, ParseFloat("x"))
	assert.Equal(t, 2.5, Float(decimal.Decimal("2.50")))
	assert.Equal(t, 0.0, Float(""))
	assert.Equal(t, "0.0001", Decimal(0.0001).String())
}
