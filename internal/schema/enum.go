package schema

// use `go generate ./internal/schema` to refresh enum_enum.go
//
//go:generate go run hft/cmd/tools/enumgen -file enum.go

// Venue identifies an execution venue.
type Venue uint8

const (
	VenueUnknown Venue = iota
	VenueHyperliquid
	VenueBinanceFutures
	VenueIBKR
)

// Category returns the asset class traded on the venue.
func (v Venue) Category() AssetCategory {
	switch v {
	case VenueIBKR:
		return AssetCategoryEquity
	case VenueHyperliquid, VenueBinanceFutures:
		return AssetCategoryCryptoFutures
	default:
		return AssetCategoryUnknown
	}
}

// AssetCategory selects the model set and universe scorer.
type AssetCategory uint8

const (
	AssetCategoryUnknown AssetCategory = iota
	AssetCategoryCryptoFutures
	AssetCategoryEquity
)

// TradingMode controls what the engine does with a routing decision.
type TradingMode uint8

const (
	TradingModeUnknown TradingMode = iota
	TradingModeBacktest
	TradingModePaper
	TradingModeLive
	TradingModePaused
)

// Side is the order direction.
type Side uint8

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

// Sign returns +1 for buys and -1 for sells.
func (s Side) Sign() float64 {
	switch s {
	case SideBuy:
		return 1
	case SideSell:
		return -1
	default:
		return 0
	}
}

// OrderType is the venue order type.
type OrderType uint8

const (
	OrderTypeUnknown OrderType = iota
	OrderTypeMarket
	OrderTypeLimit
	OrderTypePostOnly
	OrderTypeIOC
	OrderTypeFOK
)

// TimeInForce is the order lifetime policy.
type TimeInForce uint8

const (
	TimeInForceUnknown TimeInForce = iota
	TimeInForceGTC
	TimeInForceIOC
	TimeInForceFOK
	TimeInForceGTX
)

// OrderStatus is the venue-reported order status.
type OrderStatus uint8

const (
	OrderStatusUnknown OrderStatus = iota
	OrderStatusPending
	OrderStatusAccepted
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCancelled
	OrderStatusRejected
)

// Terminal reports whether no further updates are expected for the order.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// OrderStyle is the execution style picked by the router.
type OrderStyle uint8

const (
	OrderStyleUnknown OrderStyle = iota
	OrderStyleMakerPassive
	OrderStyleTakerNow
	OrderStyleSniper
)

// AlertLevel is the severity of an operator alert.
type AlertLevel uint8

const (
	AlertLevelUnknown AlertLevel = iota
	AlertLevelInfo
	AlertLevelWarning
	AlertLevelCritical
)

// EventType is the category of a record stored in the WAL.
type EventType uint16

const (
	EventTypeUnknown EventType = iota
	EventTypeSnapshot
	EventTypeDecision
	EventTypeOrder
	EventTypeFill
)
