// Package mdg generates synthetic market snapshots for backtests and paper
// runs without a venue connection.
package mdg

import (
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/yanun0323/errors"

	"hft/internal/schema"
	"hft/pkg/exception"
)

type Config struct {
	Symbols []string
	Venue   schema.Venue
	Seed    int64
	// BasePrice is the starting mid of every symbol.
	BasePrice float64
	SpreadBps float64
	// VolatilityBps is the standard deviation of one mid step.
	VolatilityBps float64
	Depth         int
	LevelSize     float64
	// TradeProb is the chance a snapshot carries a trade at the touch.
	TradeProb float64
	Volume24h float64
}

func DefaultConfig(symbols ...string) Config {
	return Config{
		Symbols:       symbols,
		Venue:         schema.VenueHyperliquid,
		BasePrice:     100,
		SpreadBps:     2,
		VolatilityBps: 1,
		Depth:         10,
		LevelSize:     5,
		TradeProb:     0.3,
		Volume24h:     50_000_000,
	}
}

// Generator walks the mid of each symbol and builds a book around it.
// Symbols are emitted round robin.
type Generator struct {
	cfg   Config
	rng   *rand.Rand
	mids  []float64
	index int
	seq   uint64
}

func NewGenerator(cfg Config) (*Generator, error) {
	switch {
	case len(cfg.Symbols) == 0:
		return nil, errors.Wrap(exception.ErrConfig, "generator has no symbols")
	case cfg.BasePrice <= 0:
		return nil, errors.Wrap(exception.ErrConfig, "base price must be > 0").With("base_price", cfg.BasePrice)
	case cfg.SpreadBps < 0 || cfg.VolatilityBps < 0:
		return nil, errors.Wrap(exception.ErrConfig, "spread and volatility must be >= 0")
	case cfg.TradeProb < 0 || cfg.TradeProb > 1:
		return nil, errors.Wrap(exception.ErrConfig, "trade probability must be in [0, 1]").With("trade_prob", cfg.TradeProb)
	}
	if cfg.Depth <= 0 {
		cfg.Depth = 1
	}
	if cfg.LevelSize <= 0 {
		cfg.LevelSize = 1
	}
	if cfg.Venue == schema.VenueUnknown {
		cfg.Venue = schema.VenueHyperliquid
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}

	mids := make([]float64, len(cfg.Symbols))
	for i := range mids {
		mids[i] = cfg.BasePrice
	}
	return &Generator{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		mids: mids,
	}, nil
}

// Next returns the snapshot of the next symbol stamped at now.
func (g *Generator) Next(now time.Time) schema.MarketSnapshot {
	i := g.index
	g.index = (g.index + 1) % len(g.cfg.Symbols)
	g.seq++

	symbol := g.cfg.Symbols[i]
	mid := g.mids[i] * math.Exp(g.rng.NormFloat64()*g.cfg.VolatilityBps/10_000)
	g.mids[i] = mid
	ts := now.UnixNano()

	half := mid * g.cfg.SpreadBps / 20_000
	tick := math.Max(mid*1e-5, 1e-8)
	book := schema.OrderBook{
		Symbol:      symbol,
		TimestampNs: ts,
		Bids:        make([]schema.Level, g.cfg.Depth),
		Asks:        make([]schema.Level, g.cfg.Depth),
		Sequence:    g.seq,
	}
	for lvl := 0; lvl < g.cfg.Depth; lvl++ {
		offset := half + float64(lvl)*tick
		book.Bids[lvl] = schema.Level{Price: mid - offset, Quantity: g.size()}
		book.Asks[lvl] = schema.Level{Price: mid + offset, Quantity: g.size()}
	}

	snap := schema.MarketSnapshot{
		TimestampNs: ts,
		Symbol:      symbol,
		Venue:       g.cfg.Venue,
		OrderBook:   book,
		Volume24h:   g.cfg.Volume24h,
	}
	if g.cfg.TradeProb > 0 && g.rng.Float64() < g.cfg.TradeProb {
		snap.RecentTrades = []schema.Trade{g.trade(book, ts)}
	}
	return snap
}

func (g *Generator) size() float64 {
	return g.cfg.LevelSize * (0.5 + g.rng.Float64())
}

func (g *Generator) trade(book schema.OrderBook, ts int64) schema.Trade {
	t := schema.Trade{
		Symbol:      book.Symbol,
		TimestampNs: ts,
		Quantity:    g.size() / 2,
		TradeID:     strconv.FormatUint(g.seq, 10),
	}
	if g.rng.Intn(2) == 0 {
		t.Side, t.Price = schema.SideBuy, book.Asks[0].Price
	} else {
		t.Side, t.Price = schema.SideSell, book.Bids[0].Price
	}
	return t
}
