package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hft/internal/adapter"
	"hft/internal/adapter/binance"
	"hft/internal/adapter/hyperliquid"
	"hft/internal/adapter/ibkr"
	"hft/internal/engine"
	"hft/internal/ops"
	"hft/internal/schema"
	"hft/internal/universe"
	"hft/pkg/exception"
)

const (
	hyperliquidTestnetWS   = "wss://api.hyperliquid-testnet.xyz/ws"
	hyperliquidTestnetREST = "https://api.hyperliquid-testnet.xyz"
	disconnectTimeout      = 5 * time.Second
)

// venueSet holds the connected adapters feeding the engine.
type venueSet struct {
	adapters map[schema.Venue]adapter.ExchangeAdapter
	order    []schema.Venue
}

// startVenues connects every enabled venue. Live trading needs credentials;
// paper trading only reads public market data. onDrop counts snapshots an
// adapter discards because the engine is behind.
func startVenues(ctx context.Context, wg *sync.WaitGroup, e *engine.Engine, cfg ops.Config, onDrop func()) (*venueSet, error) {
	live := cfg.Engine.TradingMode() == schema.TradingModeLive
	set := &venueSet{adapters: make(map[schema.Venue]adapter.ExchangeAdapter)}

	for _, a := range buildAdapters(cfg.Venues, live, onDrop) {
		if err := a.Connect(ctx); err != nil {
			logs.Errorf("connect %s failed, err: %+v", a.Venue(), err)
			continue
		}
		e.AddAdapter(ctx, a)
		set.adapters[a.Venue()] = a
		set.order = append(set.order, a.Venue())

		wg.Add(1)
		go func(a adapter.ExchangeAdapter) {
			defer wg.Done()
			e.Feed(ctx, a.Snapshots())
		}(a)
	}

	if len(set.order) == 0 {
		if live {
			return nil, errors.Wrap(exception.ErrConfig, "no venue connected for live trading")
		}
		logs.Warn("no venue connected, engine idles until one is added")
	}
	return set, nil
}

func buildAdapters(cfg ops.VenuesConfig, live bool, onDrop func()) []adapter.ExchangeAdapter {
	var out []adapter.ExchangeAdapter
	credentials := func(venue schema.Venue) (adapter.Credentials, bool) {
		creds, ok := ops.Credentials(venue)
		if !ok && live {
			logs.Warnf("%s skipped, no credentials for live trading", venue)
			return adapter.Credentials{}, false
		}
		return creds, true
	}

	if cfg.Hyperliquid.Enabled {
		if creds, ok := credentials(schema.VenueHyperliquid); ok {
			hc := hyperliquid.Config{Credentials: creds, RateLimitPerSec: cfg.Hyperliquid.RateLimitPerSec, OnDrop: onDrop}
			if cfg.Hyperliquid.Testnet {
				hc.WSURL, hc.RESTURL = hyperliquidTestnetWS, hyperliquidTestnetREST
			}
			out = append(out, hyperliquid.New(hc))
		}
	}
	if cfg.Binance.Enabled {
		if creds, ok := credentials(schema.VenueBinanceFutures); ok {
			out = append(out, binance.New(binance.Config{
				Credentials:     creds,
				Testnet:         cfg.Binance.Testnet,
				RateLimitPerSec: cfg.Binance.RateLimitPerSec,
				OnDrop:          onDrop,
			}))
		}
	}
	if cfg.IBKR.Enabled {
		if creds, ok := credentials(schema.VenueIBKR); ok {
			out = append(out, ibkr.New(ibkr.Config{
				BaseURL:     fmt.Sprintf("https://%s:%d/v1/api", cfg.IBKR.GatewayHost, cfg.IBKR.GatewayPort),
				Credentials: creds,
				Insecure:    true,
				OnDrop:      onDrop,
			}))
		}
	}
	return out
}

// Primary is the venue static config symbols trade on.
func (s *venueSet) Primary() schema.Venue {
	for _, v := range s.order {
		if v.Category() == schema.AssetCategoryCryptoFutures {
			return v
		}
	}
	return schema.VenueHyperliquid
}

func (s *venueSet) Subscribe(ctx context.Context, symbols []string) error {
	a, ok := s.adapters[s.Primary()]
	if !ok || len(symbols) == 0 {
		return nil
	}
	return a.SubscribeOrderBook(ctx, symbols)
}

// RunUniverse starts the universe manager over the venues that list their
// assets. Every active selection is registered with the engine and subscribed.
func (s *venueSet) RunUniverse(ctx context.Context, wg *sync.WaitGroup, e *engine.Engine, cfg ops.UniverseConfig, fail func(error)) {
	var sources []universe.Source
	for _, v := range s.order {
		if src, ok := s.adapters[v].(universe.Source); ok {
			sources = append(sources, src)
		}
	}
	if len(sources) == 0 {
		logs.Warn("universe disabled, no venue lists its assets")
		return
	}

	onActive := func(assets []schema.UniverseAsset) {
		byVenue := make(map[schema.Venue][]string)
		for _, asset := range assets {
			e.AddSymbol(asset.Symbol, asset.Venue)
			byVenue[asset.Venue] = append(byVenue[asset.Venue], asset.Symbol)
		}
		for venue, symbols := range byVenue {
			a, ok := s.adapters[venue]
			if !ok {
				continue
			}
			if err := a.SubscribeOrderBook(ctx, symbols); err != nil {
				logs.Errorf("subscribe %s on %s failed, err: %+v", symbols, venue, err)
			}
		}
		logs.Infof("universe active: %v", universe.Symbols(assets))
	}

	m := universe.NewManager(universe.Config{
		CryptoCount:        cfg.CryptoCount,
		EquityCount:        cfg.EquityCount,
		TopSelectionCrypto: cfg.TopSelectionCrypto,
		TopSelectionEquity: cfg.TopSelectionEquity,
		RebuildInterval:    time.Duration(cfg.RebuildIntervalMins) * time.Minute,
		RefreshInterval:    time.Duration(cfg.RefreshIntervalMins) * time.Minute,
		MinVolumeUSD:       cfg.MinVolumeUSD,
		MinLiquidityUSD:    cfg.MinLiquidityUSD,
	}, onActive, sources...)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.Run(ctx); err != nil {
			fail(err)
		}
	}()
}

// Disconnect closes every adapter with a fresh deadline; the run context is
// already done at shutdown.
func (s *venueSet) Disconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	for _, v := range s.order {
		if err := s.adapters[v].Disconnect(ctx); err != nil {
			logs.Warnf("disconnect %s failed, err: %+v", v, err)
		}
	}
}
