package hyperliquid

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"hft/internal/adapter"
	"hft/internal/schema"
	"hft/pkg/exception"
)

const (
	DefaultWSURL   = "wss://api.hyperliquid.xyz/ws"
	DefaultRESTURL = "https://api.hyperliquid.xyz"

	bookDepth       = 20
	snapshotBuffer  = 1024
	makerFeeBps     = 2
	takerFeeBps     = 5
	marketSlippage  = 0.05
	defaultRateSec  = 10
	requestTimeout  = 10 * time.Second
	recentTradesCap = 50
)

type Config struct {
	WSURL           string
	RESTURL         string
	Credentials     adapter.Credentials
	RateLimitPerSec float64
	HTTPClient      *http.Client
	// OnDrop is called when a snapshot is discarded because the consumer is behind.
	OnDrop func()
}

// Adapter trades Hyperliquid perpetuals.
type Adapter struct {
	cfg     Config
	limiter *adapter.Limiter
	client  *http.Client
	now     func() time.Time

	wss       *ws.WebSocket
	connected atomic.Bool
	stop      context.CancelFunc

	snapshots chan schema.MarketSnapshot
	fills     chan schema.Fill

	mu     sync.Mutex
	books  map[string]*adapter.BookMaintainer
	trades map[string][]schema.Trade
	mids   map[string]float64

	assetsMu sync.RWMutex
	assets   map[string]int
}

func New(cfg Config) *Adapter {
	if cfg.WSURL == "" {
		cfg.WSURL = DefaultWSURL
	}
	if cfg.RESTURL == "" {
		cfg.RESTURL = DefaultRESTURL
	}
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = defaultRateSec
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}

	return &Adapter{
		cfg:       cfg,
		limiter:   adapter.NewLimiter(cfg.RateLimitPerSec, int(cfg.RateLimitPerSec)),
		client:    client,
		now:       time.Now,
		snapshots: make(chan schema.MarketSnapshot, snapshotBuffer),
		fills:     make(chan schema.Fill, snapshotBuffer),
		books:     make(map[string]*adapter.BookMaintainer),
		trades:    make(map[string][]schema.Trade),
		mids:      make(map[string]float64),
	}
}

func (a *Adapter) Venue() schema.Venue {
	return schema.VenueHyperliquid
}

func (a *Adapter) IsConnected() bool {
	return a.connected.Load()
}

func (a *Adapter) Snapshots() <-chan schema.MarketSnapshot {
	return a.snapshots
}

func (a *Adapter) Fills() <-chan schema.Fill {
	return a.fills
}

// Connect opens the market data websocket. Subscriptions made afterwards
// are replayed on every reconnect.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.connected.Load() {
		return nil
	}

	streamCtx, cancel := context.WithCancel(ctx)
	wss := ws.New(streamCtx, a.cfg.WSURL, ws.Option{Ping: true})
	if err := wss.Start(streamCtx); err != nil {
		cancel()
		return errors.Wrap(exception.ErrWebSocket, "start hyperliquid wss").With("error", err)
	}

	a.wss = wss
	a.stop = cancel
	a.connected.Store(true)
	a.observe(streamCtx)

	logs.Infof("hyperliquid connected, url: %s", a.cfg.WSURL)
	return nil
}

func (a *Adapter) Disconnect(context.Context) error {
	if !a.connected.Swap(false) {
		return nil
	}
	if a.stop != nil {
		a.stop()
	}
	if a.wss != nil {
		a.wss.Close()
	}
	logs.Info("hyperliquid disconnected")
	return nil
}

func (a *Adapter) SubscribeOrderBook(ctx context.Context, symbols []string) error {
	return a.subscribe(ctx, "l2Book", symbols)
}

func (a *Adapter) SubscribeTrades(ctx context.Context, symbols []string) error {
	return a.subscribe(ctx, "trades", symbols)
}

func (a *Adapter) subscribe(ctx context.Context, channel string, symbols []string) error {
	if !a.connected.Load() {
		return errors.Wrap(exception.ErrWebSocket, "hyperliquid not connected")
	}

	appendIntoRegister := true
	for _, coin := range symbols {
		sub := subscription{Type: channel, Coin: coin}
		if err := a.wss.SendAndWait(ctx, ws.Sidecar{
			Sender: func(ctx context.Context, conn *ws.WebSocket) error {
				payload := subscribeRequest{Method: "subscribe", Subscription: sub}
				if err := conn.WriteJSON(payload); err != nil {
					return errors.Wrap(err, "write subscribe payload").With("payload", payload)
				}
				return nil
			},
			Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
				var env wsEnvelope
				if err := sonic.Unmarshal(m.Data, &env); err != nil || env.Channel != "subscriptionResponse" {
					return false, nil
				}
				var resp subscriptionResponse
				if err := sonic.Unmarshal(env.Data, &resp); err != nil {
					return false, nil
				}
				return resp.Subscription == sub, nil
			},
		}, appendIntoRegister); err != nil {
			return errors.Wrap(exception.ErrWebSocket, "subscribe").With("channel", channel, "coin", coin, "error", err)
		}
	}

	logs.Infof("hyperliquid subscribed %s, symbols: %v", channel, symbols)
	return nil
}

func (a *Adapter) observe(ctx context.Context) {
	ch, cancel := a.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				snap, ok, err := a.handle(m.Data)
				if err != nil {
					logs.Warnf("handle hyperliquid message, err: %+v", err)
					continue
				}
				if ok {
					a.emit(snap)
				}
			}
		}
	}()
}

func (a *Adapter) emit(snap schema.MarketSnapshot) {
	select {
	case a.snapshots <- snap:
	default:
		if a.cfg.OnDrop != nil {
			a.cfg.OnDrop()
		}
	}
}

// handle applies one websocket message. It returns a snapshot for l2Book
// updates.
func (a *Adapter) handle(data []byte) (schema.MarketSnapshot, bool, error) {
	var env wsEnvelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return schema.MarketSnapshot{}, false, errors.Wrap(exception.ErrSerialization, err.Error())
	}

	switch env.Channel {
	case "l2Book":
		var book l2Book
		if err := sonic.Unmarshal(env.Data, &book); err != nil {
			return schema.MarketSnapshot{}, false, errors.Wrap(exception.ErrSerialization, "l2Book").With("error", err)
		}
		return a.applyBook(book), true, nil
	case "trades":
		var trades []wsTrade
		if err := sonic.Unmarshal(env.Data, &trades); err != nil {
			return schema.MarketSnapshot{}, false, errors.Wrap(exception.ErrSerialization, "trades").With("error", err)
		}
		a.applyTrades(trades)
	}
	return schema.MarketSnapshot{}, false, nil
}

// applyBook replaces the book with the levels in the message, since every
// l2Book message carries the full top of book.
func (a *Adapter) applyBook(book l2Book) schema.MarketSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	maintainer, ok := a.books[book.Coin]
	if !ok {
		maintainer = adapter.NewBookMaintainer(book.Coin)
		a.books[book.Coin] = maintainer
	}

	maintainer.Apply(adapter.BookDelta{Kind: adapter.DeltaClear})
	for i, side := range []schema.Side{schema.SideBuy, schema.SideSell} {
		for _, lvl := range book.Levels[i] {
			maintainer.Apply(adapter.BookDelta{
				Kind:     adapter.DeltaInsert,
				Side:     side,
				Price:    adapter.Float(lvl.Px),
				Quantity: adapter.Float(lvl.Sz),
			})
		}
	}

	ts := book.Time * int64(time.Millisecond)
	ob := maintainer.OrderBook(ts, bookDepth)
	if mid, ok := ob.Mid(); ok {
		a.mids[book.Coin] = mid
	}

	return schema.MarketSnapshot{
		TimestampNs:  ts,
		Symbol:       book.Coin,
		Venue:        schema.VenueHyperliquid,
		OrderBook:    ob,
		RecentTrades: append([]schema.Trade(nil), a.trades[book.Coin]...),
	}
}

func (a *Adapter) applyTrades(trades []wsTrade) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, t := range trades {
		side := schema.SideSell
		if t.Side == "B" {
			side = schema.SideBuy
		}
		list := append(a.trades[t.Coin], schema.Trade{
			Symbol:      t.Coin,
			TimestampNs: t.Time * int64(time.Millisecond),
			Price:       adapter.Float(t.Px),
			Quantity:    adapter.Float(t.Sz),
			Side:        side,
			TradeID:     strconv.FormatInt(t.Tid, 10),
		})
		if len(list) > recentTradesCap {
			list = list[len(list)-recentTradesCap:]
		}
		a.trades[t.Coin] = list
	}
}

func (a *Adapter) mid(coin string) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	mid, ok := a.mids[coin]
	return mid, ok
}

var _ adapter.ExchangeAdapter = (*Adapter)(nil)
var _ adapter.FillStream = (*Adapter)(nil)
