// Package universe maintains the tradable symbol set. A rebuild scores every
// listed asset and keeps the best of each category; a refresh rescores the
// members and selects the few the engine actually trades.
package universe

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hft/internal/schema"
	"hft/pkg/exception"
)

const (
	minEquityVolumeUSD    = 10_000_000
	minEquityMarketCapUSD = 500_000_000
)

// Source lists the assets of one venue with their scoring inputs.
type Source interface {
	Venue() schema.Venue
	UniverseMetrics(ctx context.Context) (map[string]schema.AssetMetrics, error)
}

type Config struct {
	CryptoCount        int
	EquityCount        int
	TopSelectionCrypto int
	TopSelectionEquity int
	RebuildInterval    time.Duration
	RefreshInterval    time.Duration
	MinVolumeUSD       float64
	MinLiquidityUSD    float64
}

func DefaultConfig() Config {
	return Config{
		CryptoCount:        20,
		EquityCount:        10,
		TopSelectionCrypto: 7,
		TopSelectionEquity: 3,
		RebuildInterval:    60 * time.Minute,
		RefreshInterval:    5 * time.Minute,
		MinVolumeUSD:       1_000_000,
		MinLiquidityUSD:    500_000,
	}
}

type Manager struct {
	cfg      Config
	crypto   CryptoScorer
	equity   EquityScorer
	sources  []Source
	onActive func([]schema.UniverseAsset)

	mu       sync.RWMutex
	universe []schema.UniverseAsset
	active   []schema.UniverseAsset
}

// NewManager builds a manager. onActive, when set, receives every new active
// selection.
func NewManager(cfg Config, onActive func([]schema.UniverseAsset), sources ...Source) *Manager {
	return &Manager{
		cfg:      cfg,
		crypto:   NewCryptoScorer(),
		equity:   NewEquityScorer(),
		sources:  sources,
		onActive: onActive,
	}
}

type candidate struct {
	symbol  string
	venue   schema.Venue
	metrics schema.AssetMetrics
}

// collect queries every source. It fails only when every source fails.
func (m *Manager) collect(ctx context.Context) ([]candidate, error) {
	var (
		out  []candidate
		errs []error
	)
	for _, src := range m.sources {
		metrics, err := src.UniverseMetrics(ctx)
		if err != nil {
			logs.Warnf("universe source %s, err: %+v", src.Venue(), err)
			errs = append(errs, err)
			continue
		}
		for symbol, mt := range metrics {
			out = append(out, candidate{symbol: symbol, venue: src.Venue(), metrics: mt})
		}
	}
	if len(m.sources) > 0 && len(errs) == len(m.sources) {
		return nil, errors.Wrap(exception.ErrVenue, "no universe source available").With("error", errors.Join(errs...))
	}
	return out, nil
}

// score filters and scores candidates, best first per category.
func (m *Manager) score(candidates []candidate) (crypto, equity []schema.UniverseAsset) {
	for _, c := range candidates {
		asset := schema.UniverseAsset{
			Symbol:   c.symbol,
			Venue:    c.venue,
			Category: c.venue.Category(),
			Metrics:  c.metrics,
		}
		switch asset.Category {
		case schema.AssetCategoryCryptoFutures:
			if c.metrics.Volume24hUSD < m.cfg.MinVolumeUSD || c.metrics.LiquidityUSD < m.cfg.MinLiquidityUSD {
				continue
			}
			asset.Score = m.crypto.Score(c.metrics)
			crypto = append(crypto, asset)
		case schema.AssetCategoryEquity:
			if c.metrics.Volume24hUSD < minEquityVolumeUSD {
				continue
			}
			if mcap := c.metrics.MarketCapUSD; mcap != nil && *mcap < minEquityMarketCapUSD {
				continue
			}
			asset.Score = m.equity.Score(c.metrics)
			equity = append(equity, asset)
		}
	}
	sortByScore(crypto)
	sortByScore(equity)
	return crypto, equity
}

// Rebuild replaces the universe with the top crypto_count crypto and
// equity_count equity assets. Ranks are 1-based across both categories.
func (m *Manager) Rebuild(ctx context.Context) error {
	start := time.Now()
	candidates, err := m.collect(ctx)
	if err != nil {
		return err
	}

	crypto, equity := m.score(candidates)
	universe := append(truncate(crypto, m.cfg.CryptoCount), truncate(equity, m.cfg.EquityCount)...)
	for i := range universe {
		universe[i].Rank = i + 1
	}

	m.mu.Lock()
	m.universe = universe
	m.mu.Unlock()

	logs.Infof("universe rebuilt, assets: %d, candidates: %d, elapsed: %s", len(universe), len(candidates), time.Since(start))
	return nil
}

// Refresh rescores the current members with fresh metrics and selects the top
// members of each category as the active set. Members a source no longer
// reports keep their last metrics.
func (m *Manager) Refresh(ctx context.Context) error {
	candidates, err := m.collect(ctx)
	if err != nil {
		return err
	}
	fresh := make(map[schema.Venue]map[string]schema.AssetMetrics)
	for _, c := range candidates {
		if fresh[c.venue] == nil {
			fresh[c.venue] = make(map[string]schema.AssetMetrics)
		}
		fresh[c.venue][c.symbol] = c.metrics
	}

	members := m.Universe()
	current := make([]candidate, 0, len(members))
	for _, a := range members {
		mt, ok := fresh[a.Venue][a.Symbol]
		if !ok {
			mt = a.Metrics
		}
		current = append(current, candidate{symbol: a.Symbol, venue: a.Venue, metrics: mt})
	}

	crypto, equity := m.score(current)
	active := append(truncate(crypto, m.cfg.TopSelectionCrypto), truncate(equity, m.cfg.TopSelectionEquity)...)
	for i := range active {
		active[i].Rank = i + 1
	}

	m.mu.Lock()
	m.active = active
	m.mu.Unlock()

	logs.Debugf("universe refreshed, active: %v", Symbols(active))
	if m.onActive != nil {
		m.onActive(active)
	}
	return nil
}

// Run rebuilds and refreshes once, then on their intervals until ctx is done.
// Only the first rebuild is fatal.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Rebuild(ctx); err != nil {
		return err
	}
	if err := m.Refresh(ctx); err != nil {
		logs.Errorf("universe refresh, err: %+v", err)
	}

	rebuild := time.NewTicker(m.cfg.RebuildInterval)
	defer rebuild.Stop()
	refresh := time.NewTicker(m.cfg.RefreshInterval)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			logs.Info("universe manager stopped")
			return nil
		case <-rebuild.C:
			if err := m.Rebuild(ctx); err != nil {
				logs.Errorf("universe rebuild, err: %+v", err)
			}
		case <-refresh.C:
			if err := m.Refresh(ctx); err != nil {
				logs.Errorf("universe refresh, err: %+v", err)
			}
		}
	}
}

func (m *Manager) Universe() []schema.UniverseAsset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]schema.UniverseAsset(nil), m.universe...)
}

func (m *Manager) Active() []schema.UniverseAsset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]schema.UniverseAsset(nil), m.active...)
}

// Top returns the first n assets of the universe by rank.
func (m *Manager) Top(n int) []schema.UniverseAsset {
	return truncate(m.Universe(), n)
}

func Symbols(assets []schema.UniverseAsset) []string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = a.Symbol
	}
	return out
}

func sortByScore(assets []schema.UniverseAsset) {
	sort.SliceStable(assets, func(i, j int) bool {
		if assets[i].Score != assets[j].Score {
			return assets[i].Score > assets[j].Score
		}
		return assets[i].Symbol < assets[j].Symbol
	})
}

func truncate(assets []schema.UniverseAsset, n int) []schema.UniverseAsset {
	if n < 0 {
		n = 0
	}
	if len(assets) > n {
		return assets[:n]
	}
	return assets
}
