package paper

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hft/internal/adapter"
	"hft/internal/schema"
	"hft/internal/state"
	"hft/pkg/exception"
)

const (
	defaultCash = 100_000
	fillBuffer  = 1024
	quoteAsset  = "USD"
)

type Config struct {
	// Venue labels fills and acks; it does not change matching.
	Venue        schema.Venue
	StartingCash float64
	Fees         schema.FeeTier
}

func (c Config) withDefaults() Config {
	if c.Venue == schema.VenueUnknown {
		c.Venue = schema.VenueHyperliquid
	}
	if c.StartingCash <= 0 {
		c.StartingCash = defaultCash
	}
	if c.Fees == (schema.FeeTier{}) {
		c.Fees = schema.FeeTier{MakerFeeBps: 2, TakerFeeBps: 5}
	}
	return c
}

type order struct {
	req schema.OrderRequest
	ack schema.OrderAck
}

// Venue simulates an exchange from books fed by the engine. Marketable orders
// fill at the mid; resting orders fill at their limit once the opposite touch
// reaches it.
type Venue struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	seq     uint64
	books   map[string]schema.OrderBook
	orders  map[string]*order
	resting map[string][]string
	ledger  *state.Book

	fills chan schema.Fill
}

func New(cfg Config) *Venue {
	return &Venue{
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		books:   make(map[string]schema.OrderBook),
		orders:  make(map[string]*order),
		resting: make(map[string][]string),
		ledger:  state.NewBook(),
		fills:   make(chan schema.Fill, fillBuffer),
	}
}

func (v *Venue) Venue() schema.Venue {
	return v.cfg.Venue
}

func (v *Venue) Fills() <-chan schema.Fill {
	return v.fills
}

// Update stores the latest book of the snapshot's symbol, matches resting
// orders against it and marks the open position to the new mid.
func (v *Venue) Update(snap schema.MarketSnapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	book := snap.OrderBook
	v.books[snap.Symbol] = book

	var kept []string
	for _, id := range v.resting[snap.Symbol] {
		o := v.orders[id]
		if !touched(o.req, book) {
			kept = append(kept, id)
			continue
		}
		v.fill(o, *o.req.Price, true, snap.TimestampNs)
	}
	if len(kept) == 0 {
		delete(v.resting, snap.Symbol)
	} else {
		v.resting[snap.Symbol] = kept
	}

	if mid, ok := book.Mid(); ok {
		v.ledger.Mark(snap.Symbol, mid)
	}
}

func touched(req schema.OrderRequest, book schema.OrderBook) bool {
	switch req.Side {
	case schema.SideBuy:
		ask, ok := book.BestAsk()
		return ok && ask.Price <= *req.Price
	case schema.SideSell:
		bid, ok := book.BestBid()
		return ok && bid.Price >= *req.Price
	default:
		return false
	}
}

// marketable reports whether a limit order reaches the mid.
func marketable(req schema.OrderRequest, mid float64) bool {
	if req.Price == nil {
		return true
	}
	if req.Side == schema.SideBuy {
		return *req.Price >= mid
	}
	return *req.Price <= mid
}

// crosses reports whether a post-only order would take liquidity.
func crosses(req schema.OrderRequest, book schema.OrderBook) bool {
	if req.Side == schema.SideBuy {
		ask, ok := book.BestAsk()
		return ok && *req.Price >= ask.Price
	}
	bid, ok := book.BestBid()
	return ok && *req.Price <= bid.Price
}

func (v *Venue) SendOrder(_ context.Context, req schema.OrderRequest) (schema.OrderAck, error) {
	if req.Quantity <= 0 || req.Side == schema.SideUnknown {
		return schema.OrderAck{}, errors.Wrap(exception.ErrInvalidData, "paper order").With("client_id", req.ClientID, "quantity", req.Quantity)
	}
	rests := req.OrderType == schema.OrderTypeLimit || req.OrderType == schema.OrderTypePostOnly
	if rests && req.Price == nil {
		return schema.OrderAck{}, errors.Wrap(exception.ErrInvalidData, "limit order without price").With("client_id", req.ClientID)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.seq++
	ts := v.now().UnixNano()
	o := &order{
		req: req,
		ack: schema.OrderAck{
			VenueOrderID: "paper-" + strconv.FormatUint(v.seq, 10),
			ClientID:     req.ClientID,
			Status:       schema.OrderStatusAccepted,
			TimestampNs:  ts,
		},
	}
	v.orders[o.ack.VenueOrderID] = o

	book, ok := v.books[req.Symbol]
	mid, hasMid := book.Mid()
	if !ok || !hasMid {
		o.ack.Status = schema.OrderStatusRejected
		return o.ack, errors.Wrap(exception.ErrOrderRejected, "no market data").With("symbol", req.Symbol)
	}

	switch {
	case req.OrderType == schema.OrderTypePostOnly && crosses(req, book):
		o.ack.Status = schema.OrderStatusRejected
		return o.ack, errors.Wrap(exception.ErrOrderRejected, "post only order would cross").With("client_id", req.ClientID)
	case req.OrderType != schema.OrderTypePostOnly && marketable(req, mid):
		v.fill(o, mid, false, ts)
	case rests:
		v.resting[req.Symbol] = append(v.resting[req.Symbol], o.ack.VenueOrderID)
	default:
		o.ack.Status = schema.OrderStatusCancelled
	}
	return o.ack, nil
}

// fill executes the whole order; v.mu must be held.
func (v *Venue) fill(o *order, price float64, maker bool, ts int64) {
	fee := v.cfg.Fees.TakerFeeBps
	if maker {
		fee = v.cfg.Fees.MakerFeeBps
	}
	f := schema.Fill{
		ClientID:     o.req.ClientID,
		VenueOrderID: o.ack.VenueOrderID,
		Symbol:       o.req.Symbol,
		Venue:        v.cfg.Venue,
		Side:         o.req.Side,
		Price:        price,
		Quantity:     o.req.Quantity,
		FeeBps:       fee,
		Maker:        maker,
		TimestampNs:  ts,
	}
	o.ack.Status = schema.OrderStatusFilled
	o.ack.TimestampNs = ts
	v.ledger.ApplyFill(f)

	select {
	case v.fills <- f:
	default:
		logs.Warnf("paper fill channel full, drop fill: %s", f.ClientID)
	}
}

func (v *Venue) CancelOrder(_ context.Context, symbol, orderID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	o, ok := v.lookup(orderID)
	if !ok {
		return errors.Wrap(exception.ErrNotFound, "paper order").With("order_id", orderID)
	}
	if o.ack.Status.Terminal() {
		return errors.Wrap(exception.ErrOrderRejected, "order already closed").With("order_id", orderID, "status", o.ack.Status)
	}
	if symbol == "" {
		symbol = o.req.Symbol
	}
	v.cancel(symbol, o)
	return nil
}

// cancel removes o from the resting list of symbol; v.mu must be held.
func (v *Venue) cancel(symbol string, o *order) {
	ids := v.resting[symbol]
	for i, id := range ids {
		if id == o.ack.VenueOrderID {
			v.resting[symbol] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(v.resting[symbol]) == 0 {
		delete(v.resting, symbol)
	}
	o.ack.Status = schema.OrderStatusCancelled
	o.ack.TimestampNs = v.now().UnixNano()
}

func (v *Venue) CancelAll(_ context.Context, symbol string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for sym, ids := range v.resting {
		if symbol != "" && sym != symbol {
			continue
		}
		for _, id := range append([]string(nil), ids...) {
			v.cancel(sym, v.orders[id])
		}
	}
	return nil
}

func (v *Venue) GetOrder(_ context.Context, _ string, orderID string) (schema.OrderAck, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	o, ok := v.lookup(orderID)
	if !ok {
		return schema.OrderAck{}, errors.Wrap(exception.ErrNotFound, "paper order").With("order_id", orderID)
	}
	return o.ack, nil
}

// lookup accepts a venue order ID or a client ID; v.mu must be held.
func (v *Venue) lookup(id string) (*order, bool) {
	if o, ok := v.orders[id]; ok {
		return o, true
	}
	for _, o := range v.orders {
		if o.req.ClientID == id {
			return o, true
		}
	}
	return nil, false
}

// Balances reports starting cash plus realized PnL, fees included.
func (v *Venue) Balances(context.Context) (map[string]schema.Balance, error) {
	totals := v.ledger.Totals()
	cash := v.cfg.StartingCash + totals.RealizedPnL
	return map[string]schema.Balance{
		quoteAsset: {Asset: quoteAsset, Free: cash, Total: cash},
	}, nil
}

func (v *Venue) Positions(context.Context) ([]schema.Position, error) {
	var out []schema.Position
	for _, p := range v.ledger.Positions() {
		if p.Size == 0 {
			continue
		}
		p.Leverage = 1
		p.MarginUsed = p.Notional()
		out = append(out, p)
	}
	return out, nil
}

func (v *Venue) FeeTier(context.Context) (schema.FeeTier, error) {
	return v.cfg.Fees, nil
}

func (v *Venue) Leverage(context.Context) (float64, error) {
	return 1, nil
}

var (
	_ adapter.OrderRouter = (*Venue)(nil)
	_ adapter.AccountData = (*Venue)(nil)
	_ adapter.FillStream  = (*Venue)(nil)
)
