package universe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hft/internal/schema"
	"hft/pkg/exception"
)

type source struct {
	venue   schema.Venue
	mu      sync.Mutex
	metrics map[string]schema.AssetMetrics
	err     error
}

func (s *source) Venue() schema.Venue { return s.venue }

func (s *source) UniverseMetrics(context.Context) (map[string]schema.AssetMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics, s.err
}

func (s *source) set(symbol string, m schema.AssetMetrics) {
	s.mu.Lock()
	s.metrics[symbol] = m
	s.mu.Unlock()
}

func f(v float64) *float64 { return &v }
func u(v uint64) *uint64   { return &v }

func crypto(volume, liquidity float64) schema.AssetMetrics {
	return schema.AssetMetrics{Volume24hUSD: volume, LiquidityUSD: liquidity, FundingRateBps: f(1)}
}

func TestCryptoScorer(t *testing.T) {
	s := NewCryptoScorer()
	score := s.Score(schema.AssetMetrics{
		Volume24hUSD:      10_000_000,
		LiquidityUSD:      5_000_000,
		FundingRateBps:    f(5),
		TxCount1h:         u(1000),
		SocialMentions24h: u(500),
	})
	assert.Greater(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)

	assert.Zero(t, s.Score(schema.AssetMetrics{FundingRateBps: f(80)}))
	assert.InDelta(t, 0.1, s.Score(schema.AssetMetrics{}), 1e-12)

	maxed := s.Score(schema.AssetMetrics{
		Volume24hUSD:      1e12,
		LiquidityUSD:      1e12,
		TxCount1h:         u(1e9),
		SocialMentions24h: u(1e9),
	})
	assert.InDelta(t, 1.0, maxed, 1e-12)
}

func TestEquityScorer(t *testing.T) {
	s := NewEquityScorer()
	score := s.Score(schema.AssetMetrics{
		Volume24hUSD:     100_000_000,
		LiquidityUSD:     500_000_000,
		MarketCapUSD:     f(10_000_000_000),
		ShortInterestPct: f(15),
		OptionsVolume:    u(10000),
		AnalystRating:    f(4),
		Volatility30d:    f(0.35),
	})
	assert.Greater(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestNormalizers(t *testing.T) {
	testCases := []struct {
		desc string
		got  float64
		want float64
	}{
		{"funding moderate", fundingScore(f(-9)), 1},
		{"funding elevated", fundingScore(f(20)), 0.5},
		{"funding extreme", fundingScore(f(50)), 0},
		{"funding missing", fundingScore(nil), 1},
		{"short interest low", shortInterestScore(2), 0.3},
		{"short interest mid", shortInterestScore(10), 0.7},
		{"short interest high", shortInterestScore(20), 1},
		{"short interest crowded", shortInterestScore(40), 0.5},
		{"volatility low", volatilityScore(0.1), 0.25},
		{"volatility moderate", volatilityScore(0.4), 1},
		{"volatility high", volatilityScore(0.8), 0.5},
		{"volatility extreme", volatilityScore(2), 0},
		{"log scale below one", logScale(0.5, 13, 8), 0},
		{"log count zero", logCount(u(0), 10), 0},
		{"log count nil", logCount(nil, 10), 0},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.InDelta(t, tc.want, tc.got, 1e-12)
		})
	}
}

func TestRebuild(t *testing.T) {
	hl := &source{venue: schema.VenueHyperliquid, metrics: map[string]schema.AssetMetrics{
		"BTC":  crypto(5e9, 1e9),
		"ETH":  crypto(1e9, 5e8),
		"SOL":  crypto(1e8, 5e7),
		"THIN": crypto(5e6, 1e5),
		"DEAD": crypto(1e5, 1e6),
	}}
	ib := &source{venue: schema.VenueIBKR, metrics: map[string]schema.AssetMetrics{
		"AAPL":  {Volume24hUSD: 1e10, LiquidityUSD: 1e10, MarketCapUSD: f(3e12)},
		"PENNY": {Volume24hUSD: 2e7, LiquidityUSD: 2e7, MarketCapUSD: f(1e8)},
		"QUIET": {Volume24hUSD: 1e6, LiquidityUSD: 1e9},
	}}

	cfg := DefaultConfig()
	cfg.CryptoCount = 2
	m := NewManager(cfg, nil, hl, ib)
	require.NoError(t, m.Rebuild(context.Background()))

	universe := m.Universe()
	assert.Equal(t, []string{"BTC", "ETH", "AAPL"}, Symbols(universe))
	for i, a := range universe {
		assert.Equal(t, i+1, a.Rank)
	}
	assert.Equal(t, schema.AssetCategoryEquity, universe[2].Category)
	assert.Equal(t, schema.VenueIBKR, universe[2].Venue)
	assert.Greater(t, universe[0].Score, universe[1].Score)

	assert.Equal(t, []string{"BTC"}, Symbols(m.Top(1)))
}

func TestRebuildSourceFailures(t *testing.T) {
	ok := &source{venue: schema.VenueHyperliquid, metrics: map[string]schema.AssetMetrics{"BTC": crypto(5e9, 1e9)}}
	broken := &source{venue: schema.VenueBinanceFutures, err: errors.New("down")}

	m := NewManager(DefaultConfig(), nil, ok, broken)
	require.NoError(t, m.Rebuild(context.Background()))
	assert.Equal(t, []string{"BTC"}, Symbols(m.Universe()))

	m = NewManager(DefaultConfig(), nil, broken)
	err := m.Rebuild(context.Background())
	assert.ErrorIs(t, err, exception.ErrVenue)
}

func TestRefreshSelectsActive(t *testing.T) {
	hl := &source{venue: schema.VenueHyperliquid, metrics: map[string]schema.AssetMetrics{
		"BTC": crypto(5e9, 1e9),
		"ETH": crypto(1e9, 5e8),
		"SOL": crypto(1e8, 5e7),
	}}
	var published [][]string
	cfg := DefaultConfig()
	cfg.TopSelectionCrypto = 2
	m := NewManager(cfg, func(active []schema.UniverseAsset) {
		published = append(published, Symbols(active))
	}, hl)

	ctx := context.Background()
	require.NoError(t, m.Rebuild(ctx))
	require.NoError(t, m.Refresh(ctx))
	assert.Equal(t, []string{"BTC", "ETH"}, Symbols(m.Active()))

	// SOL overtakes ETH; a new listing waits for the next rebuild.
	hl.set("SOL", crypto(1e10, 5e9))
	hl.set("NEW", crypto(1e11, 1e11))
	require.NoError(t, m.Refresh(ctx))
	assert.Equal(t, []string{"SOL", "BTC"}, Symbols(m.Active()))
	assert.Equal(t, [][]string{{"BTC", "ETH"}, {"SOL", "BTC"}}, published)
}

func TestRun(t *testing.T) {
	hl := &source{venue: schema.VenueHyperliquid, metrics: map[string]schema.AssetMetrics{"BTC": crypto(5e9, 1e9)}}
	cfg := DefaultConfig()
	cfg.RebuildInterval = time.Hour
	cfg.RefreshInterval = time.Hour

	activeCh := make(chan []string, 1)
	m := NewManager(cfg, func(active []schema.UniverseAsset) {
		select {
		case activeCh <- Symbols(active):
		default:
		}
	}, hl)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	select {
	case active := <-activeCh:
		assert.Equal(t, []string{"BTC"}, active)
	case <-time.After(2 * time.Second):
		t.Fatal("no active selection published")
	}
	cancel()
	require.NoError(t, <-done)

	broken := NewManager(cfg, nil, &source{venue: schema.VenueHyperliquid, err: errors.New("down")})
	assert.Error(t, broken.Run(context.Background()))
}
