package adapter

import (
	"context"

	"hft/internal/schema"
)

// MarketDataStream delivers order book snapshots for subscribed symbols.
type MarketDataStream interface {
	SubscribeOrderBook(ctx context.Context, symbols []string) error
	SubscribeTrades(ctx context.Context, symbols []string) error
	// Snapshots is shared by every subscription of the adapter.
	Snapshots() <-chan schema.MarketSnapshot
}

type AccountData interface {
	Balances(ctx context.Context) (map[string]schema.Balance, error)
	Positions(ctx context.Context) ([]schema.Position, error)
	FeeTier(ctx context.Context) (schema.FeeTier, error)
	Leverage(ctx context.Context) (float64, error)
}

type OrderRouter interface {
	SendOrder(ctx context.Context, req schema.OrderRequest) (schema.OrderAck, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	CancelAll(ctx context.Context, symbol string) error
	GetOrder(ctx context.Context, symbol, orderID string) (schema.OrderAck, error)
}

type MarketInfo interface {
	ListSymbols(ctx context.Context) ([]string, error)
	// SearchSymbols matches the prefix case-insensitively.
	SearchSymbols(ctx context.Context, prefix string) ([]string, error)
	// FundingRate is in basis points per funding interval.
	FundingRate(ctx context.Context, symbol string) (float64, error)
	OpenInterest(ctx context.Context, symbol string) (float64, error)
	Volume24h(ctx context.Context, symbol string) (float64, error)
}

// ExchangeAdapter is a complete venue integration.
type ExchangeAdapter interface {
	MarketDataStream
	AccountData
	OrderRouter
	MarketInfo

	Venue() schema.Venue
	IsConnected() bool
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// FillStream is implemented by adapters that report executions.
type FillStream interface {
	Fills() <-chan schema.Fill
}
