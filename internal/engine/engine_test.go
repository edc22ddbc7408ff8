package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hft/internal/obs"
	"hft/internal/recorder"
	"hft/internal/risk"
	"hft/internal/router"
	"hft/internal/schema"
)

// buySignal returns the i-th snapshot of a book whose bid keeps lifting while
// trades print below the mid. Every snapshot after the first clears the gate.
func buySignal(i int) schema.MarketSnapshot {
	ts := time.Now().UnixNano()
	return schema.MarketSnapshot{
		TimestampNs: ts,
		Symbol:      "BTC",
		Venue:       schema.VenueHyperliquid,
		OrderBook: schema.OrderBook{
			Symbol: "BTC",
			Bids:   []schema.Level{{Price: 100 + 0.001*float64(i), Quantity: 10}},
			Asks:   []schema.Level{{Price: 100.01, Quantity: 0.1}},
		},
		RecentTrades: []schema.Trade{{Symbol: "BTC", Price: 99.9, Quantity: 1, Side: schema.SideSell}},
	}
}

func feed(n int) <-chan schema.MarketSnapshot {
	ch := make(chan schema.MarketSnapshot, n)
	for i := 0; i < n; i++ {
		ch <- buySignal(i)
	}
	close(ch)
	return ch
}

type alerts struct {
	mu   sync.Mutex
	list []schema.Alert
}

func (a *alerts) Publish(alert schema.Alert) {
	a.mu.Lock()
	a.list = append(a.list, alert)
	a.mu.Unlock()
}

func (a *alerts) levels() map[schema.AlertLevel][]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[schema.AlertLevel][]string)
	for _, alert := range a.list {
		out[alert.Level] = append(out[alert.Level], alert.Message)
	}
	return out
}

type journal struct {
	mu        sync.Mutex
	decisions []schema.RouteDecision
	fills     []schema.Fill
}

func (j *journal) SaveDecision(_ context.Context, _ schema.Prediction, decision schema.RouteDecision) error {
	j.mu.Lock()
	j.decisions = append(j.decisions, decision)
	j.mu.Unlock()
	return nil
}

func (j *journal) SaveFill(_ context.Context, fill schema.Fill) error {
	j.mu.Lock()
	j.fills = append(j.fills, fill)
	j.mu.Unlock()
	return nil
}

type publisher struct {
	metrics []schema.PerformanceMetrics
	risk    []schema.RiskSnapshot
}

func (p *publisher) PublishMetrics(m schema.PerformanceMetrics) { p.metrics = append(p.metrics, m) }
func (p *publisher) PublishRisk(r schema.RiskSnapshot)          { p.risk = append(p.risk, r) }

func TestPaperTrading(t *testing.T) {
	metrics := obs.NewMetrics()
	j := &journal{}
	e := New(Config{Mode: schema.TradingModePaper, BatchSize: 1}, Deps{Metrics: metrics, Journal: j})
	e.AddSymbol("BTC", schema.VenueHyperliquid)

	require.NoError(t, e.Run(context.Background(), feed(4)))

	positions := e.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, "BTC", positions[0].Symbol)
	assert.Greater(t, positions[0].Size, 0.0)

	pos, ok := e.Risk().Position("BTC")
	require.True(t, ok)
	assert.Equal(t, positions[0].Size, pos.Size)

	perf := metrics.Tick(time.Now())
	assert.Zero(t, perf.OrderRejects)
	assert.Equal(t, uint64(3), impactSamples(t, metrics))

	j.mu.Lock()
	defer j.mu.Unlock()
	assert.Len(t, j.decisions, 3)
	assert.Len(t, j.fills, 3)
	for _, d := range j.decisions {
		assert.True(t, d.ShouldTrade)
	}
}

func TestPausedSkipsProcessing(t *testing.T) {
	e := New(Config{Mode: schema.TradingModePaused, BatchSize: 2}, Deps{})
	require.NoError(t, e.Run(context.Background(), feed(5)))
	assert.Empty(t, e.Positions())
	assert.Equal(t, schema.TradingModePaused, e.Mode())
}

func TestRiskRejectBurstActivatesKillSwitch(t *testing.T) {
	metrics := obs.NewMetrics()
	limits := schema.DefaultRiskLimits()
	limits.MaxTotalNotional = 1
	manager := risk.NewManager(limits)
	a := &alerts{}

	e := New(Config{BatchSize: 1, RejectBurst: 2}, Deps{
		Metrics: metrics,
		Risk:    manager,
		Router:  router.New(router.DefaultGateParams(), manager),
		Alerter: a,
	})
	require.NoError(t, e.Run(context.Background(), feed(6)))

	assert.True(t, manager.State().KillSwitchActive)
	assert.Empty(t, e.Positions())
	assert.Equal(t, uint64(2), metrics.Tick(time.Now()).OrderRejects)

	levels := a.levels()
	assert.Equal(t, []string{"Risk check failed", "Risk check failed"}, levels[schema.AlertLevelWarning])
	assert.Equal(t, []string{"Kill switch activated"}, levels[schema.AlertLevelCritical])
}

func TestLiveWithoutAdapter(t *testing.T) {
	metrics := obs.NewMetrics()
	a := &alerts{}
	e := New(Config{Mode: schema.TradingModeLive, BatchSize: 8}, Deps{Metrics: metrics, Alerter: a})

	require.NoError(t, e.Run(context.Background(), feed(3)))
	assert.Empty(t, e.Positions())
	assert.Equal(t, uint64(2), metrics.Tick(time.Now()).OrderRejects)
	assert.Len(t, a.levels()[schema.AlertLevelCritical], 2)
}

func TestBatchTimeoutFlushes(t *testing.T) {
	e := New(Config{BatchSize: 100, BatchTimeout: time.Millisecond}, Deps{})
	snapshots := make(chan schema.MarketSnapshot)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, snapshots) }()

	for i := 0; i < 3; i++ {
		snapshots <- buySignal(i)
	}
	require.Eventually(t, func() bool {
		return len(e.Positions()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := recorder.NewWriter(recorder.DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	log := recorder.NewLog(w, obs.NewTraceGenerator(1))
	for i := 0; i < 4; i++ {
		require.NoError(t, log.Snapshot(buySignal(i)))
	}
	require.NoError(t, log.Fill(schema.Fill{ClientID: "ignored", Symbol: "ETH", Side: schema.SideBuy, Price: 1, Quantity: 1}))
	require.NoError(t, w.Close())

	// the WAL keeps books only, so the replayed signal carries no trade flow
	gate := router.DefaultGateParams()
	gate.MinEdgeBps = 1
	manager := risk.NewManager(schema.DefaultRiskLimits())
	e := New(Config{Mode: schema.TradingModePaper, BatchSize: 2}, Deps{
		Risk:   manager,
		Router: router.New(gate, manager),
	})
	count, err := e.Replay(context.Background(), recorder.PlaybackConfig{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Equal(t, schema.TradingModePaper, e.Mode())

	positions := e.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, "BTC", positions[0].Symbol)
}

func TestPublish(t *testing.T) {
	p := &publisher{}
	e := New(Config{}, Deps{Metrics: obs.NewMetrics(), Publisher: p})
	e.Publish(time.Now())

	require.Len(t, p.metrics, 1)
	require.Len(t, p.risk, 1)
	assert.False(t, p.risk[0].KillSwitchActive)
}

func TestModeAndSymbols(t *testing.T) {
	e := New(Config{}, Deps{})
	assert.Equal(t, schema.TradingModePaper, e.Mode())
	e.SetMode(schema.TradingModeLive)
	assert.Equal(t, schema.TradingModeLive, e.Mode())

	e.AddSymbol("SOL", schema.VenueBinanceFutures)
	e.AddSymbol("AAPL", schema.VenueIBKR)
	e.AddSymbol("BTC", schema.VenueHyperliquid)
	assert.Equal(t, []string{"AAPL", "BTC", "SOL"}, e.Symbols())
	assert.Equal(t, schema.AssetCategoryEquity, e.category("AAPL", schema.VenueUnknown))
	assert.Equal(t, schema.AssetCategoryCryptoFutures, e.category("DOGE", schema.VenueUnknown))

	require.NoError(t, e.LoadModels(schema.AssetCategoryCryptoFutures, t.TempDir()))
}

func TestOrderFor(t *testing.T) {
	book := schema.OrderBook{
		Bids: []schema.Level{{Price: 99, Quantity: 1}},
		Asks: []schema.Level{{Price: 101, Quantity: 1}},
	}
	testCases := []struct {
		desc  string
		style schema.OrderStyle
		side  schema.Side
		typ   schema.OrderType
		tif   schema.TimeInForce
		price *float64
	}{
		{"taker", schema.OrderStyleTakerNow, schema.SideBuy, schema.OrderTypeMarket, schema.TimeInForceIOC, nil},
		{"sniper at mid", schema.OrderStyleSniper, schema.SideSell, schema.OrderTypeLimit, schema.TimeInForceGTC, ptr(100)},
		{"passive buy joins bid", schema.OrderStyleMakerPassive, schema.SideBuy, schema.OrderTypePostOnly, schema.TimeInForceGTX, ptr(99)},
		{"passive sell joins ask", schema.OrderStyleMakerPassive, schema.SideSell, schema.OrderTypePostOnly, schema.TimeInForceGTX, ptr(101)},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			req, ok := orderFor(tc.style, tc.side, "BTC", 2, 100, book)
			require.True(t, ok)
			assert.Equal(t, tc.typ, req.OrderType)
			assert.Equal(t, tc.tif, req.TimeInForce)
			assert.Equal(t, tc.side, req.Side)
			assert.Equal(t, 2.0, req.Quantity)
			assert.Equal(t, tc.price, req.Price)
		})
	}

	_, ok := orderFor(schema.OrderStyleMakerPassive, schema.SideBuy, "BTC", 1, 100, schema.OrderBook{})
	assert.False(t, ok)
}

func ptr(v float64) *float64 { return &v }

func TestSniperPricesAtBookMid(t *testing.T) {
	e := New(Config{Mode: schema.TradingModePaper}, Deps{})
	snap := schema.MarketSnapshot{
		TimestampNs: time.Now().UnixNano(),
		Symbol:      "BTC",
		Venue:       schema.VenueHyperliquid,
		OrderBook: schema.OrderBook{
			Symbol: "BTC",
			Bids:   []schema.Level{{Price: 65432.12, Quantity: 5}},
			Asks:   []schema.Level{{Price: 65432.14, Quantity: 5}},
		},
	}
	e.Paper().Update(snap)

	mid, ok := snap.OrderBook.Mid()
	require.True(t, ok)
	fv := schema.FeatureVec{MidPrice: float64(float32(mid)), OFI1s: 1}
	require.NotEqual(t, mid, fv.MidPrice)

	decision := schema.RouteDecision{Style: schema.OrderStyleSniper, SizeFraction: 0.1, ShouldTrade: true}
	e.execute(context.Background(), schema.TradingModePaper, snap, fv, decision)

	select {
	case fill := <-e.Paper().Fills():
		assert.Equal(t, schema.SideBuy, fill.Side)
		assert.Equal(t, mid, fill.Price)
	default:
		t.Fatal("sniper order at the book mid should fill immediately")
	}
}

func impactSamples(t *testing.T, metrics *obs.Metrics) uint64 {
	t.Helper()
	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == "hft_order_impact_bps" {
			require.Len(t, family.GetMetric(), 1)
			return family.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	t.Fatal("hft_order_impact_bps not registered")
	return 0
}
