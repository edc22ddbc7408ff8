package state

import (
	"math"
	"sort"
	"sync"

	"hft/internal/schema"
)

const sizeEpsilon = 1e-12

// Book tracks positions built from fills and marks them to market.
type Book struct {
	mu        sync.RWMutex
	positions map[string]*schema.Position
}

func NewBook() *Book {
	return &Book{positions: make(map[string]*schema.Position)}
}

// ApplyFill updates the position of the fill's symbol and returns it. Reducing
// or flipping a position realizes PnL against the average entry price; fees
// are charged to realized PnL.
func (b *Book) ApplyFill(fill schema.Fill) schema.Position {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.positions[fill.Symbol]
	if !ok {
		p = &schema.Position{Symbol: fill.Symbol}
		b.positions[fill.Symbol] = p
	}

	qty := fill.Quantity
	signed := fill.Side.Sign() * qty
	switch {
	case signed == 0:
	case p.Size == 0 || math.Signbit(p.Size) == math.Signbit(signed):
		held := math.Abs(p.Size)
		p.EntryPrice = (held*p.EntryPrice + qty*fill.Price) / (held + qty)
		p.Size += signed
	default:
		closing := math.Min(math.Abs(p.Size), qty)
		direction := 1.0
		if p.Size < 0 {
			direction = -1
		}
		p.RealizedPnL += closing * (fill.Price - p.EntryPrice) * direction
		p.Size += signed
		switch {
		case math.Abs(p.Size) < sizeEpsilon:
			p.Size = 0
			p.EntryPrice = 0
		case qty > closing:
			p.EntryPrice = fill.Price
		}
	}
	p.RealizedPnL -= fill.Fee()
	p.MarkPrice = fill.Price
	p.UnrealizedPnL = p.Size * (p.MarkPrice - p.EntryPrice)
	return *p
}

// Mark sets the mark price of an open position.
func (b *Book) Mark(symbol string, price float64) {
	if price <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.positions[symbol]; ok {
		p.MarkPrice = price
		p.UnrealizedPnL = p.Size * (price - p.EntryPrice)
	}
}

func (b *Book) Position(symbol string) (schema.Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.positions[symbol]
	if !ok {
		return schema.Position{}, false
	}
	return *p, true
}

// Positions returns all tracked positions sorted by symbol, including flat ones.
func (b *Book) Positions() []schema.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]schema.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Totals aggregates exposure and PnL over all positions.
type Totals struct {
	GrossNotional float64
	NetNotional   float64
	UnrealizedPnL float64
	RealizedPnL   float64
	Open          int
}

func (b *Book) Totals() Totals {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var t Totals
	for _, p := range b.positions {
		t.GrossNotional += p.Notional()
		t.NetNotional += p.Size * p.MarkPrice
		t.UnrealizedPnL += p.UnrealizedPnL
		t.RealizedPnL += p.RealizedPnL
		if p.Size != 0 {
			t.Open++
		}
	}
	return t
}

// Restore replaces all positions with the snapshot content.
func (b *Book) Restore(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.positions)
	for _, p := range snap.Positions {
		p := p
		b.positions[p.Symbol] = &p
	}
}
