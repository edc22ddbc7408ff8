package ibkr

import (
	"context"
	"crypto/tls"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hft/internal/adapter"
	"hft/internal/schema"
	"hft/pkg/exception"
)

const (
	DefaultBaseURL = "https://localhost:5000/v1/api"

	makerFeeBps    = 0.5
	takerFeeBps    = 1
	snapshotBuffer = 1024
	defaultRateSec = 10
	defaultPoll    = time.Second
	requestTimeout = 10 * time.Second
	maxReplies     = 3
)

type Config struct {
	// BaseURL is the Client Portal gateway root, e.g. https://localhost:5000/v1/api.
	BaseURL string
	// AccountID is resolved from /portfolio/accounts when empty.
	AccountID   string
	Credentials adapter.Credentials
	// Insecure skips TLS verification for the gateway's self-signed certificate.
	Insecure        bool
	RateLimitPerSec float64
	PollInterval    time.Duration
	// Streaming reads quotes from the gateway websocket instead of polling snapshots.
	Streaming  bool
	HTTPClient *http.Client
	OnDrop     func()
}

// Adapter trades equities through the IBKR Client Portal gateway.
type Adapter struct {
	cfg     Config
	limiter *adapter.Limiter
	backoff adapter.Backoff
	client  *http.Client
	now     func() time.Time

	connected atomic.Bool
	stop      context.CancelFunc
	wg        sync.WaitGroup

	snapshots chan schema.MarketSnapshot
	fills     chan schema.Fill

	mu      sync.RWMutex
	account string
	conids  map[string]conID
	symbols map[conID]string
	volumes map[string]float64
	watch   []string
	filled  map[string]float64
}

func New(cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = defaultRateSec
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPoll
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.Insecure}, // nolint:gosec
			},
		}
	}

	return &Adapter{
		cfg:       cfg,
		limiter:   adapter.NewLimiter(cfg.RateLimitPerSec, 1),
		backoff:   adapter.DefaultBackoff(),
		client:    client,
		now:       time.Now,
		snapshots: make(chan schema.MarketSnapshot, snapshotBuffer),
		fills:     make(chan schema.Fill, snapshotBuffer),
		account:   cfg.AccountID,
		conids:    make(map[string]conID),
		symbols:   make(map[conID]string),
		volumes:   make(map[string]float64),
		filled:    make(map[string]float64),
	}
}

func (a *Adapter) Venue() schema.Venue {
	return schema.VenueIBKR
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

// Connect checks the gateway session, resolves the trading account and starts
// the market data loop.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.connected.Load() {
		return nil
	}

	var status authStatus
	if err := a.get(ctx, "/iserver/auth/status", nil, &status); err != nil {
		return err
	}
	if !status.Authenticated {
		return errors.Wrap(exception.ErrAuthentication, "ibkr gateway session is not authenticated").With("message", status.Message)
	}

	if _, err := a.accountID(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.stop = cancel
	a.connected.Store(true)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if a.cfg.Streaming {
			a.stream(ctx)
			return
		}
		a.poll(ctx)
	}()

	logs.Infof("ibkr connected, account: %s, streaming: %t", a.account, a.cfg.Streaming)
	return nil
}

func (a *Adapter) Disconnect(context.Context) error {
	if !a.connected.Swap(false) {
		return nil
	}
	a.stop()
	a.wg.Wait()
	logs.Info("ibkr disconnected")
	return nil
}

// SubscribeOrderBook adds symbols to the watch list. IBKR quotes carry the
// touch only, so books hold one level per side.
func (a *Adapter) SubscribeOrderBook(ctx context.Context, symbols []string) error {
	for _, symbol := range symbols {
		if _, err := a.resolve(ctx, symbol); err != nil {
			return err
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, symbol := range symbols {
		symbol = strings.ToUpper(symbol)
		if !contains(a.watch, symbol) {
			a.watch = append(a.watch, symbol)
		}
	}
	logs.Infof("ibkr subscribed quotes, symbols: %v", symbols)
	return nil
}

// SubscribeTrades is a no-op; the snapshot endpoint carries no trade tape.
func (a *Adapter) SubscribeTrades(context.Context, []string) error {
	return nil
}

func (a *Adapter) watchList() []conID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]conID, 0, len(a.watch))
	for _, symbol := range a.watch {
		if id, ok := a.conids[symbol]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (a *Adapter) poll(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids := a.watchList()
			if len(ids) == 0 {
				continue
			}
			snaps, err := a.snapshot(ctx, ids)
			if err != nil {
				logs.Warnf("ibkr poll snapshot, err: %+v", err)
				continue
			}
			for _, snap := range snaps {
				a.emit(snap)
			}
		}
	}
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

// quote converts one snapshot row into a market snapshot. ok is false until
// both sides of the touch are known.
func (a *Adapter) quote(row map[string]any) (schema.MarketSnapshot, bool) {
	var id conID
	switch v := row["conid"].(type) {
	case float64:
		id = conID(v)
	case string:
		_ = id.UnmarshalJSON([]byte(v))
	}

	a.mu.Lock()
	symbol, ok := a.symbols[id]
	if ok {
		if vol := parseField(row[fieldVolume]); vol > 0 {
			a.volumes[symbol] = vol
		}
	}
	volume := a.volumes[symbol]
	a.mu.Unlock()
	if !ok {
		return schema.MarketSnapshot{}, false
	}

	bid, ask := parseField(row[fieldBid]), parseField(row[fieldAsk])
	if bid <= 0 || ask <= 0 {
		return schema.MarketSnapshot{}, false
	}

	ts := a.now().UnixNano()
	return schema.MarketSnapshot{
		TimestampNs: ts,
		Symbol:      symbol,
		Venue:       schema.VenueIBKR,
		OrderBook: schema.OrderBook{
			Symbol:      symbol,
			TimestampNs: ts,
			Bids:        []schema.Level{{Price: bid, Quantity: parseField(row[fieldBidSize])}},
			Asks:        []schema.Level{{Price: ask, Quantity: parseField(row[fieldAskSize])}},
		},
		Volume24h: volume * (bid + ask) / 2,
	}, true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var _ adapter.ExchangeAdapter = (*Adapter)(nil)
var _ adapter.FillStream = (*Adapter)(nil)
