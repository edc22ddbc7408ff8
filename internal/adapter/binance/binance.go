package binance

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hft/internal/adapter"
	"hft/internal/schema"
	"hft/pkg/exception"
)

const (
	bookDepth      = 20
	depthRate      = 100 * time.Millisecond
	snapshotBuffer = 1024
	defaultRateSec = 20
	feeSymbol      = "BTCUSDT"
)

type Config struct {
	Credentials     adapter.Credentials
	Testnet         bool
	RateLimitPerSec float64
	// BaseURL overrides the REST endpoint.
	BaseURL    string
	HTTPClient *http.Client
	OnDrop     func()
}

// Adapter trades Binance USDⓈ-M futures.
type Adapter struct {
	cfg     Config
	client  *futures.Client
	limiter *adapter.Limiter
	backoff adapter.Backoff
	now     func() time.Time

	connected atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc

	snapshots chan schema.MarketSnapshot
	fills     chan schema.Fill

	mu      sync.Mutex
	streams map[string]chan struct{}
}

func New(cfg Config) *Adapter {
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = defaultRateSec
	}
	if cfg.Testnet {
		futures.UseTestnet = true
	}

	client := futures.NewClient(cfg.Credentials.Key, cfg.Credentials.Secret)
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		client.HTTPClient = cfg.HTTPClient
	}

	return &Adapter{
		cfg:       cfg,
		client:    client,
		limiter:   adapter.NewLimiter(cfg.RateLimitPerSec, int(cfg.RateLimitPerSec)),
		backoff:   adapter.DefaultBackoff(),
		now:       time.Now,
		snapshots: make(chan schema.MarketSnapshot, snapshotBuffer),
		fills:     make(chan schema.Fill, snapshotBuffer),
		streams:   make(map[string]chan struct{}),
	}
}

func (a *Adapter) Venue() schema.Venue {
	return schema.VenueBinanceFutures
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

func (a *Adapter) Connect(ctx context.Context) error {
	if a.connected.Swap(true) {
		return nil
	}
	a.ctx, a.cancel = context.WithCancel(ctx)
	logs.Infof("binance futures connected, testnet: %t", a.cfg.Testnet)
	return nil
}

func (a *Adapter) Disconnect(context.Context) error {
	if !a.connected.Swap(false) {
		return nil
	}
	a.cancel()

	a.mu.Lock()
	defer a.mu.Unlock()
	for symbol, stop := range a.streams {
		close(stop)
		delete(a.streams, symbol)
	}
	logs.Info("binance futures disconnected")
	return nil
}

// SubscribeOrderBook starts one partial depth stream per symbol. Streams
// reconnect with backoff until Disconnect.
func (a *Adapter) SubscribeOrderBook(_ context.Context, symbols []string) error {
	if !a.connected.Load() {
		return errors.Wrap(exception.ErrWebSocket, "binance not connected")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, symbol := range symbols {
		symbol = strings.ToUpper(symbol)
		if _, ok := a.streams[symbol]; ok {
			continue
		}
		stop := make(chan struct{})
		a.streams[symbol] = stop
		go a.serveDepth(a.ctx, symbol, stop)
	}
	logs.Infof("binance subscribed depth%d, symbols: %v", bookDepth, symbols)
	return nil
}

// SubscribeTrades is a no-op; partial depth carries what the features need.
func (a *Adapter) SubscribeTrades(context.Context, []string) error {
	return nil
}

func (a *Adapter) serveDepth(ctx context.Context, symbol string, stop <-chan struct{}) {
	for attempt := 1; ; attempt++ {
		doneC, stopC, err := futures.WsPartialDepthServeWithRate(symbol, bookDepth, depthRate,
			func(event *futures.WsDepthEvent) {
				a.emit(depthSnapshot(symbol, event))
			},
			func(err error) {
				logs.Warnf("binance depth stream %s, err: %+v", symbol, err)
			},
		)
		if err != nil {
			logs.Errorf("binance depth stream %s dial, err: %+v", symbol, err)
		} else {
			attempt = 0
			select {
			case <-doneC:
			case <-stop:
				close(stopC)
				return
			case <-ctx.Done():
				close(stopC)
				return
			}
		}

		select {
		case <-stop:
			return
		default:
		}
		if !a.backoff.Sleep(ctx, max(attempt, 1)) {
			return
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

func depthSnapshot(symbol string, event *futures.WsDepthEvent) schema.MarketSnapshot {
	ts := event.Time * int64(time.Millisecond)
	return schema.MarketSnapshot{
		TimestampNs: ts,
		Symbol:      symbol,
		Venue:       schema.VenueBinanceFutures,
		OrderBook: schema.OrderBook{
			Symbol:      symbol,
			TimestampNs: ts,
			Bids:        levels(event.Bids),
			Asks:        levels(event.Asks),
			Sequence:    uint64(event.LastUpdateID),
		},
	}
}

func levels(src []common.PriceLevel) []schema.Level {
	out := make([]schema.Level, 0, len(src))
	for _, l := range src {
		qty := adapter.ParseFloat(l.Quantity)
		if qty <= 0 {
			continue
		}
		out = append(out, schema.Level{Price: adapter.ParseFloat(l.Price), Quantity: qty})
	}
	return out
}

// venueError classifies a go-binance error into an exception kind.
func venueError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		kind := exception.ErrVenue
		switch apiErr.Code {
		case -1003, -1015:
			kind = exception.ErrRateLimit
		case -2014, -2015, -1022:
			kind = exception.ErrAuthentication
		case -2010, -2021, -2022, -5022:
			kind = exception.ErrOrderRejected
		case -2011, -2013:
			kind = exception.ErrNotFound
		}
		return errors.Wrap(kind, op).With("code", apiErr.Code, "msg", apiErr.Message)
	}
	return errors.Wrap(exception.ErrHTTP, op).With("error", err)
}

func (a *Adapter) wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

func (a *Adapter) Balances(ctx context.Context) (map[string]schema.Balance, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	res, err := a.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return nil, venueError(err, "get balance")
	}

	out := make(map[string]schema.Balance, len(res))
	for _, b := range res {
		total := adapter.ParseFloat(b.Balance)
		free := adapter.ParseFloat(b.AvailableBalance)
		out[b.Asset] = schema.Balance{Asset: b.Asset, Free: free, Locked: max(total-free, 0), Total: total}
	}
	return out, nil
}

func (a *Adapter) Positions(ctx context.Context) ([]schema.Position, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	res, err := a.client.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, venueError(err, "get position risk")
	}

	var out []schema.Position
	for _, p := range res {
		size := adapter.ParseFloat(p.PositionAmt)
		if size == 0 {
			continue
		}
		lev := max(adapter.ParseFloat(p.Leverage), 1)
		mark := adapter.ParseFloat(p.MarkPrice)
		pos := schema.Position{
			Symbol:        p.Symbol,
			Size:          size,
			EntryPrice:    adapter.ParseFloat(p.EntryPrice),
			MarkPrice:     mark,
			UnrealizedPnL: adapter.ParseFloat(p.UnRealizedProfit),
			Leverage:      lev,
			MarginUsed:    abs(size) * mark / lev,
		}
		if liq := adapter.ParseFloat(p.LiquidationPrice); liq > 0 {
			pos.LiquidationPrice = &liq
		}
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// FeeTier reports the commission rate of the reference symbol.
func (a *Adapter) FeeTier(ctx context.Context) (schema.FeeTier, error) {
	if err := a.wait(ctx); err != nil {
		return schema.FeeTier{}, err
	}
	res, err := a.client.NewCommissionRateService().Symbol(feeSymbol).Do(ctx)
	if err != nil {
		return schema.FeeTier{}, venueError(err, "get commission rate")
	}
	return schema.FeeTier{
		MakerFeeBps: adapter.ParseFloat(res.MakerCommissionRate) * 10_000,
		TakerFeeBps: adapter.ParseFloat(res.TakerCommissionRate) * 10_000,
	}, nil
}

func (a *Adapter) Leverage(ctx context.Context) (float64, error) {
	positions, err := a.Positions(ctx)
	if err != nil {
		return 0, err
	}
	lev := 1.0
	for _, p := range positions {
		lev = max(lev, p.Leverage)
	}
	return lev, nil
}

func (a *Adapter) ListSymbols(ctx context.Context) ([]string, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	info, err := a.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, venueError(err, "get exchange info")
	}

	out := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status == string(futures.SymbolStatusTypeTrading) && s.ContractType == futures.ContractTypePerpetual {
			out = append(out, s.Symbol)
		}
	}
	return out, nil
}

func (a *Adapter) SearchSymbols(ctx context.Context, prefix string) ([]string, error) {
	all, err := a.ListSymbols(ctx)
	if err != nil {
		return nil, err
	}
	prefix = strings.ToUpper(prefix)
	var out []string
	for _, s := range all {
		if strings.HasPrefix(strings.ToUpper(s), prefix) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (a *Adapter) FundingRate(ctx context.Context, symbol string) (float64, error) {
	if err := a.wait(ctx); err != nil {
		return 0, err
	}
	res, err := a.client.NewPremiumIndexService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, venueError(err, "get premium index")
	}
	if len(res) == 0 {
		return 0, errors.Wrap(exception.ErrNotFound, "premium index").With("symbol", symbol)
	}
	return adapter.ParseFloat(res[0].LastFundingRate) * 10_000, nil
}

func (a *Adapter) OpenInterest(ctx context.Context, symbol string) (float64, error) {
	if err := a.wait(ctx); err != nil {
		return 0, err
	}
	res, err := a.client.NewGetOpenInterestService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, venueError(err, "get open interest")
	}
	return adapter.ParseFloat(res.OpenInterest), nil
}

// Volume24h is the quote volume of the last 24 hours.
func (a *Adapter) Volume24h(ctx context.Context, symbol string) (float64, error) {
	if err := a.wait(ctx); err != nil {
		return 0, err
	}
	res, err := a.client.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, venueError(err, "get 24h stats")
	}
	if len(res) == 0 {
		return 0, errors.Wrap(exception.ErrNotFound, "24h stats").With("symbol", symbol)
	}
	return adapter.ParseFloat(res[0].QuoteVolume), nil
}

// UniverseMetrics returns scoring inputs for every USDT perpetual. Binance has
// no bulk depth endpoint, so liquidity is the average hourly quote turnover.
func (a *Adapter) UniverseMetrics(ctx context.Context) (map[string]schema.AssetMetrics, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	stats, err := a.client.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, venueError(err, "list 24h stats")
	}

	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	premiums, err := a.client.NewPremiumIndexService().Do(ctx)
	if err != nil {
		return nil, venueError(err, "list premium index")
	}
	funding := make(map[string]float64, len(premiums))
	for _, p := range premiums {
		funding[p.Symbol] = adapter.ParseFloat(p.LastFundingRate) * 10_000
	}

	out := make(map[string]schema.AssetMetrics, len(stats))
	for _, st := range stats {
		if !strings.HasSuffix(st.Symbol, "USDT") {
			continue
		}
		volume := adapter.ParseFloat(st.QuoteVolume)
		m := schema.AssetMetrics{
			Volume24hUSD: volume,
			LiquidityUSD: volume / 24,
		}
		if f, ok := funding[st.Symbol]; ok {
			m.FundingRateBps = &f
		}
		out[st.Symbol] = m
	}
	return out, nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseOrderID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	return n, err == nil
}

var _ adapter.ExchangeAdapter = (*Adapter)(nil)
var _ adapter.FillStream = (*Adapter)(nil)
