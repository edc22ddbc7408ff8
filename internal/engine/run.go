package engine

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"hft/internal/adapter"
	"hft/internal/features"
	"hft/internal/obs"
	"hft/internal/schema"
	"hft/pkg/exception"
)

// Run processes snapshots until ctx is done or the channel is closed. A batch
// is flushed when it reaches BatchSize or BatchTimeout after its first snapshot.
func (e *Engine) Run(ctx context.Context, snapshots <-chan schema.MarketSnapshot) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	e.startWorkers(ctx, &wg)
	defer func() {
		cancel()
		e.fillWG.Wait()
		wg.Wait()
		e.drainJournal()
	}()

	batch := make([]schema.MarketSnapshot, 0, e.cfg.BatchSize)
	timer := time.NewTimer(e.cfg.BatchTimeout)
	timer.Stop()
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		e.ProcessBatch(ctx, batch)
		batch = batch[:0]
		timer.Stop()
	}

	logs.Infof("engine running, mode: %s, batch: %d, timeout: %s", e.Mode(), e.cfg.BatchSize, e.cfg.BatchTimeout)
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snapshots:
			if !ok {
				flush()
				return nil
			}
			batch = append(batch, snap)
			if len(batch) == 1 {
				timer.Reset(e.cfg.BatchTimeout)
			}
			if len(batch) >= e.cfg.BatchSize {
				flush()
			}
		case <-timer.C:
			flush()
		}
	}
}

func (e *Engine) startWorkers(ctx context.Context, wg *sync.WaitGroup) {
	e.mu.Lock()
	e.fillCtx = ctx
	venues := make([]venueRoute, 0, len(e.adapters))
	for venue, a := range e.adapters {
		venues = append(venues, venueRoute{adapter: a, gateway: e.gateways[venue]})
	}
	e.mu.Unlock()

	e.fillWG.Add(1)
	go func() {
		defer e.fillWG.Done()
		e.consumeFills(ctx, e.paper.Fills(), e.paperGW)
	}()
	for _, v := range venues {
		e.watchFills(ctx, v.adapter, v.gateway)
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		e.publishLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		e.journalQ.Run(ctx, e.persist)
	}()
}

// ProcessBatch runs one batch through features, inference, routing and execution.
func (e *Engine) ProcessBatch(ctx context.Context, batch []schema.MarketSnapshot) {
	now := time.Now()
	e.metrics.IncSnapshots(len(batch))
	for _, snap := range batch {
		if snap.TimestampNs > 0 {
			if lag := now.Sub(time.Unix(0, snap.TimestampNs)); lag > 0 {
				e.metrics.Observe(obs.StageIngest, lag)
			}
		}
	}

	mode := e.Mode()
	if mode == schema.TradingModePaused {
		return
	}

	for _, snap := range batch {
		if mode != schema.TradingModeBacktest && e.recorder != nil {
			if err := e.recorder.Snapshot(snap); err != nil {
				logs.Warnf("record snapshot %s, err: %+v", snap.Symbol, err)
			}
		}
		if mode != schema.TradingModeLive {
			e.paper.Update(snap)
		}
		if mid, ok := snap.OrderBook.Mid(); ok {
			e.book.Mark(snap.Symbol, mid)
			if pos, ok := e.book.Position(snap.Symbol); ok && pos.Size != 0 {
				e.risk.UpdatePosition(pos)
			}
		}
	}

	for _, c := range e.features.BuildBatch(batch) {
		e.process(ctx, mode, c)
	}
}

func (e *Engine) process(ctx context.Context, mode schema.TradingMode, c features.Computed) {
	snap := c.Snapshot
	pred := e.pool.Predict(ctx, e.category(snap.Symbol, snap.Venue), snap.Symbol, snap.TimestampNs, c.Vector)

	start := time.Now()
	decision := e.router.Decide(pred, c.Features, e.costs(snap.Venue, c.Features))
	e.metrics.Since(obs.StageRoute, start)

	if e.recorder != nil {
		if err := e.recorder.Decision(snap.Venue, pred, decision); err != nil {
			logs.Warnf("record decision %s, err: %+v", snap.Symbol, err)
		}
	}
	if !decision.ShouldTrade {
		return
	}
	e.queueJournal(journalEntry{pred: pred, decision: decision})
	e.execute(ctx, mode, snap, c.Features, decision)
}

// execute sizes and sends the order of a tradeable decision.
func (e *Engine) execute(ctx context.Context, mode schema.TradingMode, snap schema.MarketSnapshot, fv schema.FeatureVec, decision schema.RouteDecision) {
	// fv.MidPrice went through the float32 model vector; prices need the book's own mid.
	mid, ok := snap.OrderBook.Mid()
	if !ok || mid <= 0 {
		return
	}
	limits := e.risk.Limits()
	qty := decision.SizeFraction * limits.MaxNotionalPerSymbol / mid
	if qty <= 0 {
		return
	}

	if err := e.risk.CheckLimits(snap.Symbol, qty*mid); err != nil {
		e.metrics.IncOrderReject()
		e.alert(schema.AlertLevelWarning, "risk", "Risk check failed", map[string]string{
			"symbol": snap.Symbol,
			"reason": err.Error(),
		})
		e.onRiskReject()
		return
	}
	e.rejectStreak.Store(0)

	side := schema.SideSell
	if fv.OFI1s > 0 {
		side = schema.SideBuy
	}
	req, ok := orderFor(decision.Style, side, snap.Symbol, qty, mid, snap.OrderBook)
	if !ok {
		logs.Warnf("no price for %s %s order on %s", decision.Style, side, snap.Symbol)
		return
	}

	gw, err := e.gateway(mode, snap.Venue)
	if err != nil {
		e.metrics.IncOrderReject()
		e.alert(schema.AlertLevelCritical, "engine", "Live order without venue adapter", map[string]string{
			"symbol": snap.Symbol,
			"venue":  snap.Venue.String(),
		})
		return
	}

	impact := adapter.ImpactCurve{A: fv.DepthA, Beta: fv.DepthBeta}.ImpactBps(decision.SizeFraction)
	e.metrics.ObserveImpact(impact)

	ack, err := gw.Send(ctx, req)
	e.metrics.IncOrders()
	if e.recorder != nil {
		req.ClientID = ack.ClientID
		if recErr := e.recorder.Order(snap.Venue, req, snap.TimestampNs); recErr != nil {
			logs.Warnf("record order %s, err: %+v", ack.ClientID, recErr)
		}
	}
	if err == nil {
		return
	}

	e.metrics.IncOrderReject()
	if exception.IsCritical(err) {
		e.alert(schema.AlertLevelCritical, snap.Venue.String(), "Order failed", map[string]string{
			"symbol":    snap.Symbol,
			"client_id": ack.ClientID,
			"error":     err.Error(),
		})
		return
	}
	logs.Warnf("order %s on %s failed, status: %s, err: %+v", ack.ClientID, snap.Symbol, ack.Status, err)
}

// onRiskReject activates the kill switch after RejectBurst consecutive rejections.
func (e *Engine) onRiskReject() {
	streak := e.rejectStreak.Add(1)
	if streak < int64(e.cfg.RejectBurst) || e.risk.State().KillSwitchActive {
		return
	}
	e.risk.ActivateKillSwitch()
	e.alert(schema.AlertLevelCritical, "risk", "Kill switch activated", map[string]string{
		"consecutive_rejects": strconv.FormatInt(streak, 10),
	})
}

// orderFor maps an execution style to an order. Passive orders join the touch
// on their own side; sniper orders rest at the mid.
func orderFor(style schema.OrderStyle, side schema.Side, symbol string, qty, mid float64, book schema.OrderBook) (schema.OrderRequest, bool) {
	req := schema.OrderRequest{
		Symbol:   symbol,
		Side:     side,
		Quantity: qty,
	}
	switch style {
	case schema.OrderStyleTakerNow:
		req.OrderType = schema.OrderTypeMarket
		req.TimeInForce = schema.TimeInForceIOC
	case schema.OrderStyleSniper:
		price := mid
		req.OrderType = schema.OrderTypeLimit
		req.TimeInForce = schema.TimeInForceGTC
		req.Price = &price
	default:
		level, ok := book.BestBid()
		if side == schema.SideSell {
			level, ok = book.BestAsk()
		}
		if !ok {
			return schema.OrderRequest{}, false
		}
		price := level.Price
		req.OrderType = schema.OrderTypePostOnly
		req.TimeInForce = schema.TimeInForceGTX
		req.Price = &price
	}
	return req, true
}
