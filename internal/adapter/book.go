package adapter

import (
	"sort"

	"hft/internal/schema"
)

type DeltaKind uint8

const (
	DeltaInsert DeltaKind = iota + 1
	DeltaUpdate
	DeltaDelete
	DeltaClear
)

// BookDelta is a single change to a price level. Side and Price are ignored
// for DeltaClear, Quantity for DeltaDelete.
type BookDelta struct {
	Kind     DeltaKind
	Side     schema.Side
	Price    float64
	Quantity float64
}

// BookMaintainer rebuilds an order book from deltas. It is not safe for
// concurrent use.
type BookMaintainer struct {
	symbol   string
	bids     map[float64]float64
	asks     map[float64]float64
	sequence uint64
}

func NewBookMaintainer(symbol string) *BookMaintainer {
	return &BookMaintainer{
		symbol: symbol,
		bids:   make(map[float64]float64),
		asks:   make(map[float64]float64),
	}
}

func (b *BookMaintainer) Symbol() string {
	return b.symbol
}

func (b *BookMaintainer) Sequence() uint64 {
	return b.sequence
}

// Apply mutates the book and advances the sequence by one.
func (b *BookMaintainer) Apply(delta BookDelta) {
	switch delta.Kind {
	case DeltaInsert, DeltaUpdate:
		side := b.side(delta.Side)
		if side != nil {
			if delta.Quantity > 0 {
				side[delta.Price] = delta.Quantity
			} else {
				delete(side, delta.Price)
			}
		}
	case DeltaDelete:
		if side := b.side(delta.Side); side != nil {
			delete(side, delta.Price)
		}
	case DeltaClear:
		clear(b.bids)
		clear(b.asks)
	}
	b.sequence++
}

func (b *BookMaintainer) side(s schema.Side) map[float64]float64 {
	switch s {
	case schema.SideBuy:
		return b.bids
	case schema.SideSell:
		return b.asks
	default:
		return nil
	}
}

// OrderBook returns the top depth levels per side, bids descending and asks
// ascending.
func (b *BookMaintainer) OrderBook(timestampNs int64, depth int) schema.OrderBook {
	return schema.OrderBook{
		Symbol:      b.symbol,
		TimestampNs: timestampNs,
		Bids:        topLevels(b.bids, depth, true),
		Asks:        topLevels(b.asks, depth, false),
		Sequence:    b.sequence,
	}
}

func topLevels(side map[float64]float64, depth int, desc bool) []schema.Level {
	levels := make([]schema.Level, 0, len(side))
	for price, qty := range side {
		levels = append(levels, schema.Level{Price: price, Quantity: qty})
	}
	sort.Slice(levels, func(i, j int) bool {
		if desc {
			return levels[i].Price > levels[j].Price
		}
		return levels[i].Price < levels[j].Price
	})
	if depth >= 0 && len(levels) > depth {
		levels = levels[:depth]
	}
	return levels
}
