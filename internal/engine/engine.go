/*
Engine runs the trading loop.

# Flow
  - venue streams push snapshots into a bounded queue (full queue = dropped frame)
  - Run batches snapshots, builds features, predicts and routes each one
  - execute sizes the decision, checks risk and sends the order through the
    paper venue or the venue's order gateway depending on the mode
  - fills update the position book, the risk manager, the WAL and the journal

# Publish
  - PerformanceMetrics and RiskSnapshot once per second
  - alerts on risk rejections and critical venue errors
*/
package engine

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hft/internal/adapter"
	"hft/internal/adapter/paper"
	"hft/internal/bus"
	"hft/internal/features"
	"hft/internal/inference"
	"hft/internal/obs"
	"hft/internal/og"
	"hft/internal/recorder"
	"hft/internal/risk"
	"hft/internal/router"
	"hft/internal/schema"
	"hft/internal/state"
	"hft/pkg/exception"
)

const (
	defaultBatchSize       = 32
	defaultBatchTimeout    = 500 * time.Microsecond
	defaultPublishInterval = time.Second
	defaultQueueSize       = 4096
	defaultRejectBurst     = 10
	journalQueueSize       = 1024
)

type Config struct {
	Mode            schema.TradingMode
	BatchSize       int
	BatchTimeout    time.Duration
	QueueSize       int
	PublishInterval time.Duration
	// RejectBurst consecutive risk rejections activate the kill switch.
	RejectBurst int
	// Fees are used for venues without a fetched fee tier.
	Fees schema.FeeTier
}

func (c Config) withDefaults() Config {
	if c.Mode == schema.TradingModeUnknown {
		c.Mode = schema.TradingModePaper
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = defaultBatchTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.PublishInterval <= 0 {
		c.PublishInterval = defaultPublishInterval
	}
	if c.RejectBurst <= 0 {
		c.RejectBurst = defaultRejectBurst
	}
	if c.Fees == (schema.FeeTier{}) {
		c.Fees = schema.FeeTier{MakerFeeBps: 2, TakerFeeBps: 5}
	}
	return c
}

// Publisher receives the periodic engine state.
type Publisher interface {
	PublishMetrics(schema.PerformanceMetrics)
	PublishRisk(schema.RiskSnapshot)
}

type Alerter interface {
	Publish(schema.Alert)
}

// Journal persists trading decisions and fills.
type Journal interface {
	SaveDecision(ctx context.Context, pred schema.Prediction, decision schema.RouteDecision) error
	SaveFill(ctx context.Context, fill schema.Fill) error
}

// Deps are the collaborators of the engine. Nil members get defaults, except
// Recorder, Journal, Publisher and Alerter which stay disabled.
type Deps struct {
	Metrics   *obs.Metrics
	Features  *features.Builder
	Pool      *inference.Pool
	Risk      *risk.Manager
	Router    *router.Router
	Paper     *paper.Venue
	Recorder  *recorder.Log
	Journal   Journal
	Publisher Publisher
	Alerter   Alerter
}

type journalEntry struct {
	pred     schema.Prediction
	decision schema.RouteDecision
	fill     *schema.Fill
}

type Engine struct {
	cfg  Config
	mode atomic.Uint32

	metrics   *obs.Metrics
	features  *features.Builder
	pool      *inference.Pool
	risk      *risk.Manager
	router    *router.Router
	paper     *paper.Venue
	paperGW   *og.Gateway
	recorder  *recorder.Log
	journal   Journal
	publisher Publisher
	alerter   Alerter

	book     *state.Book
	queue    *bus.Queue[schema.MarketSnapshot]
	journalQ *bus.Queue[journalEntry]

	rejectStreak atomic.Int64

	mu         sync.RWMutex
	categories map[string]schema.AssetCategory
	venues     map[string]schema.Venue
	adapters   map[schema.Venue]adapter.ExchangeAdapter
	gateways   map[schema.Venue]*og.Gateway
	fees       map[schema.Venue]schema.FeeTier
	fillWG     sync.WaitGroup
	fillCtx    context.Context
}

func New(cfg Config, deps Deps) *Engine {
	cfg = cfg.withDefaults()
	if deps.Features == nil {
		deps.Features = features.NewBuilder(features.DefaultWindowSize, deps.Metrics)
	}
	if deps.Pool == nil {
		deps.Pool = inference.NewPool(inference.PoolConfig{}, deps.Metrics)
	}
	if deps.Risk == nil {
		deps.Risk = risk.NewManager(schema.DefaultRiskLimits())
	}
	if deps.Router == nil {
		deps.Router = router.New(router.DefaultGateParams(), deps.Risk)
	}
	if deps.Paper == nil {
		deps.Paper = paper.New(paper.Config{Fees: cfg.Fees})
	}

	e := &Engine{
		cfg:        cfg,
		metrics:    deps.Metrics,
		features:   deps.Features,
		pool:       deps.Pool,
		risk:       deps.Risk,
		router:     deps.Router,
		paper:      deps.Paper,
		paperGW:    og.NewGateway(og.GatewayConfig{Session: "paper"}, deps.Paper),
		recorder:   deps.Recorder,
		journal:    deps.Journal,
		publisher:  deps.Publisher,
		alerter:    deps.Alerter,
		book:       state.NewBook(),
		journalQ:   bus.NewQueue[journalEntry](journalQueueSize, nil),
		categories: make(map[string]schema.AssetCategory),
		venues:     make(map[string]schema.Venue),
		adapters:   make(map[schema.Venue]adapter.ExchangeAdapter),
		gateways:   make(map[schema.Venue]*og.Gateway),
		fees:       make(map[schema.Venue]schema.FeeTier),
	}
	e.queue = bus.NewQueue[schema.MarketSnapshot](cfg.QueueSize, e.metrics.IncDroppedFrame)
	e.mode.Store(uint32(cfg.Mode))
	return e
}

func (e *Engine) SetMode(mode schema.TradingMode) {
	prev := schema.TradingMode(e.mode.Swap(uint32(mode)))
	if prev != mode {
		logs.Infof("trading mode changed: %s -> %s", prev, mode)
	}
}

func (e *Engine) Mode() schema.TradingMode {
	return schema.TradingMode(e.mode.Load())
}

// AddSymbol registers symbol as traded on venue.
func (e *Engine) AddSymbol(symbol string, venue schema.Venue) {
	category := venue.Category()
	if category == schema.AssetCategoryUnknown {
		category = schema.AssetCategoryCryptoFutures
	}

	e.mu.Lock()
	_, known := e.categories[symbol]
	e.categories[symbol] = category
	e.venues[symbol] = venue
	e.mu.Unlock()

	e.features.AddSymbol(symbol)
	if !known {
		logs.Infof("symbol added: %s on %s (%s)", symbol, venue, category)
	}
}

// Symbols returns the registered symbols sorted by name.
func (e *Engine) Symbols() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.categories))
	for symbol := range e.categories {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// AddAdapter registers a connected venue for live trading and fetches its fee tier.
func (e *Engine) AddAdapter(ctx context.Context, a adapter.ExchangeAdapter) {
	venue := a.Venue()
	gw := og.NewGateway(og.GatewayConfig{Session: venue.String(), ResendOnReconnect: true}, a)

	e.mu.Lock()
	e.adapters[venue] = a
	e.gateways[venue] = gw
	fillCtx := e.fillCtx
	e.mu.Unlock()

	if tier, err := a.FeeTier(ctx); err == nil {
		e.mu.Lock()
		e.fees[venue] = tier
		e.mu.Unlock()
	} else {
		logs.Warnf("fee tier of %s unavailable, using defaults, err: %+v", venue, err)
	}

	if fillCtx != nil {
		e.watchFills(fillCtx, a, gw)
	}
	logs.Infof("adapter added: %s", venue)
}

// Adapter returns the adapter registered for venue.
func (e *Engine) Adapter(venue schema.Venue) (adapter.ExchangeAdapter, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.adapters[venue]
	return a, ok
}

// LoadModels discovers the model files of category in dir. Missing files
// leave the category on rule-based predictions.
func (e *Engine) LoadModels(category schema.AssetCategory, dir string) error {
	set, err := inference.Discover(category, dir)
	if err != nil {
		return err
	}
	return e.pool.Load(set)
}

// ApplyLimits swaps gate thresholds and risk limits after a config reload.
func (e *Engine) ApplyLimits(gate router.GateParams, limits schema.RiskLimits) {
	e.router.UpdateParams(gate)
	e.risk.UpdateLimits(limits)
}

// Submit enqueues a snapshot without blocking. A full queue drops it.
func (e *Engine) Submit(snap schema.MarketSnapshot) error {
	return e.queue.TryPublish(snap)
}

// Feed forwards a venue stream into the engine queue until ctx is done or src closes.
func (e *Engine) Feed(ctx context.Context, src <-chan schema.MarketSnapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-src:
			if !ok {
				return
			}
			if err := e.Submit(snap); err != nil && !errors.Is(err, bus.ErrQueueFull) {
				return
			}
		}
	}
}

// Start runs the engine over its own queue.
func (e *Engine) Start(ctx context.Context) error {
	return e.Run(ctx, e.queue.C())
}

// Stop closes the engine queue; Start returns once the queue is drained.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Positions returns the book built from the engine's fills.
func (e *Engine) Positions() []schema.Position {
	return e.book.Positions()
}

func (e *Engine) Risk() *risk.Manager {
	return e.risk
}

func (e *Engine) Paper() *paper.Venue {
	return e.paper
}

func (e *Engine) category(symbol string, venue schema.Venue) schema.AssetCategory {
	e.mu.RLock()
	category, ok := e.categories[symbol]
	e.mu.RUnlock()
	if ok {
		return category
	}
	if c := venue.Category(); c != schema.AssetCategoryUnknown {
		return c
	}
	return schema.AssetCategoryCryptoFutures
}

func (e *Engine) costs(venue schema.Venue, fv schema.FeatureVec) router.CostModel {
	e.mu.RLock()
	tier, ok := e.fees[venue]
	e.mu.RUnlock()
	if !ok {
		tier = e.cfg.Fees
	}
	return router.CostModel{
		TakerFeeBps:       tier.TakerFeeBps,
		MakerFeeBps:       tier.MakerFeeBps,
		MakerRebateBps:    1,
		ImpactBps:         fv.ImpactBps1Pct,
		SlippageBufferBps: 1,
	}
}

// gateway picks the order path for the current mode.
func (e *Engine) gateway(mode schema.TradingMode, venue schema.Venue) (*og.Gateway, error) {
	if mode != schema.TradingModeLive {
		return e.paperGW, nil
	}
	e.mu.RLock()
	gw, ok := e.gateways[venue]
	e.mu.RUnlock()
	if !ok {
		return nil, errors.Wrap(exception.ErrVenue, "no adapter for live trading").With("venue", venue)
	}
	return gw, nil
}

func (e *Engine) alert(level schema.AlertLevel, source, message string, metadata map[string]string) {
	switch level {
	case schema.AlertLevelCritical:
		logs.Errorf("[%s] %s %v", source, message, metadata)
	case schema.AlertLevelWarning:
		logs.Warnf("[%s] %s %v", source, message, metadata)
	}
	if e.alerter == nil {
		return
	}
	e.alerter.Publish(schema.Alert{
		TimestampNs: time.Now().UnixNano(),
		Level:       level,
		Source:      source,
		Message:     message,
		Metadata:    metadata,
	})
}
