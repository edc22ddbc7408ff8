package schema

// Level is one price level of an order book.
type Level struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// OrderBook holds bids sorted descending and asks sorted ascending.
type OrderBook struct {
	Symbol      string  `json:"symbol"`
	TimestampNs int64   `json:"timestamp_ns"`
	Bids        []Level `json:"bids"`
	Asks        []Level `json:"asks"`
	Sequence    uint64  `json:"sequence"`
}

func (b OrderBook) BestBid() (Level, bool) {
	if len(b.Bids) == 0 {
		return Level{}, false
	}
	return b.Bids[0], true
}

func (b OrderBook) BestAsk() (Level, bool) {
	if len(b.Asks) == 0 {
		return Level{}, false
	}
	return b.Asks[0], true
}

// Mid returns the midpoint of the touch.
func (b OrderBook) Mid() (float64, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return (bid.Price + ask.Price) / 2, true
}

// SpreadBps returns (ask-bid)/mid in basis points.
func (b OrderBook) SpreadBps() (float64, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	mid := (bid.Price + ask.Price) / 2
	if mid == 0 {
		return 0, false
	}
	return (ask.Price - bid.Price) / mid * 10_000, true
}

// Depth sums the quantity of the first n levels of each side.
func (b OrderBook) Depth(n int) (bidQty, askQty float64) {
	for i := 0; i < n && i < len(b.Bids); i++ {
		bidQty += b.Bids[i].Quantity
	}
	for i := 0; i < n && i < len(b.Asks); i++ {
		askQty += b.Asks[i].Quantity
	}
	return bidQty, askQty
}

type Trade struct {
	Symbol      string  `json:"symbol"`
	TimestampNs int64   `json:"timestamp_ns"`
	Price       float64 `json:"price"`
	Quantity    float64 `json:"quantity"`
	Side        Side    `json:"side"`
	TradeID     string  `json:"trade_id"`
}

// MarketSnapshot is the unit of work flowing from venues into the engine.
type MarketSnapshot struct {
	TimestampNs    int64     `json:"timestamp_ns"`
	Symbol         string    `json:"symbol"`
	Venue          Venue     `json:"venue"`
	OrderBook      OrderBook `json:"orderbook"`
	RecentTrades   []Trade   `json:"recent_trades"`
	FundingRateBps *float64  `json:"funding_rate_bps,omitempty"`
	OpenInterest   *float64  `json:"open_interest,omitempty"`
	Volume24h      float64   `json:"volume_24h"`
}
