package schema

// OrderRequest is a venue-agnostic order. Price is nil for market orders.
type OrderRequest struct {
	ClientID    string      `json:"client_id"`
	Symbol      string      `json:"symbol"`
	Side        Side        `json:"side"`
	OrderType   OrderType   `json:"order_type"`
	Quantity    float64     `json:"quantity"`
	Price       *float64    `json:"price,omitempty"`
	ReduceOnly  bool        `json:"reduce_only"`
	TimeInForce TimeInForce `json:"time_in_force"`
}

// Notional returns quantity times the limit price, or times ref when no price is set.
func (r OrderRequest) Notional(ref float64) float64 {
	if r.Price != nil {
		return r.Quantity * *r.Price
	}
	return r.Quantity * ref
}

type OrderAck struct {
	VenueOrderID string      `json:"venue_order_id"`
	ClientID     string      `json:"client_id"`
	Status       OrderStatus `json:"status"`
	TimestampNs  int64       `json:"timestamp_ns"`
}

// Fill is one execution against an order.
type Fill struct {
	ClientID     string  `json:"client_id"`
	VenueOrderID string  `json:"venue_order_id"`
	Symbol       string  `json:"symbol"`
	Venue        Venue   `json:"venue"`
	Side         Side    `json:"side"`
	Price        float64 `json:"price"`
	Quantity     float64 `json:"quantity"`
	FeeBps       float64 `json:"fee_bps"`
	Maker        bool    `json:"maker"`
	TimestampNs  int64   `json:"timestamp_ns"`
}

// Fee returns the fee paid in quote currency.
func (f Fill) Fee() float64 {
	return f.Price * f.Quantity * f.FeeBps / 10_000
}

// Position size is signed: positive long, negative short.
type Position struct {
	Symbol           string   `json:"symbol"`
	Size             float64  `json:"size"`
	EntryPrice       float64  `json:"entry_price"`
	MarkPrice        float64  `json:"mark_price"`
	UnrealizedPnL    float64  `json:"unrealized_pnl"`
	RealizedPnL      float64  `json:"realized_pnl"`
	Leverage         float64  `json:"leverage"`
	MarginUsed       float64  `json:"margin_used"`
	LiquidationPrice *float64 `json:"liquidation_price,omitempty"`
}

// Notional returns |size|·mark.
func (p Position) Notional() float64 {
	size := p.Size
	if size < 0 {
		size = -size
	}
	return size * p.MarkPrice
}

type Balance struct {
	Asset  string  `json:"asset"`
	Free   float64 `json:"free"`
	Locked float64 `json:"locked"`
	Total  float64 `json:"total"`
}

type FeeTier struct {
	MakerFeeBps float64 `json:"maker_fee_bps"`
	TakerFeeBps float64 `json:"taker_fee_bps"`
	Volume30d   float64 `json:"volume_30d"`
}
