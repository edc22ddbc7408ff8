package engine

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"hft/internal/adapter"
	"hft/internal/og"
	"hft/internal/schema"
)

const persistTimeout = 5 * time.Second

type venueRoute struct {
	adapter adapter.ExchangeAdapter
	gateway *og.Gateway
}

// watchFills consumes the fill stream of a, when it has one.
func (e *Engine) watchFills(ctx context.Context, a adapter.ExchangeAdapter, gw *og.Gateway) {
	stream, ok := a.(adapter.FillStream)
	if !ok {
		return
	}
	e.fillWG.Add(1)
	go func() {
		defer e.fillWG.Done()
		e.consumeFills(ctx, stream.Fills(), gw)
	}()
}

// consumeFills applies fills until ctx is done, then drains what is buffered.
func (e *Engine) consumeFills(ctx context.Context, fills <-chan schema.Fill, gw *og.Gateway) {
	for {
		select {
		case fill, ok := <-fills:
			if !ok {
				return
			}
			e.OnFill(gw, fill)
		case <-ctx.Done():
			for {
				select {
				case fill, ok := <-fills:
					if !ok {
						return
					}
					e.OnFill(gw, fill)
				default:
					return
				}
			}
		}
	}
}

// OnFill books a fill: order state, positions, risk PnL, WAL and journal.
func (e *Engine) OnFill(gw *og.Gateway, fill schema.Fill) {
	if gw != nil {
		if _, err := gw.OnFill(fill); err != nil {
			logs.Warnf("order gateway %s apply fill %s, err: %+v", gw.Session(), fill.ClientID, err)
		}
	}

	before, _ := e.book.Position(fill.Symbol)
	pos := e.book.ApplyFill(fill)
	e.risk.UpdatePosition(pos)
	e.risk.UpdatePnL(pos.RealizedPnL - before.RealizedPnL)

	if e.recorder != nil && e.Mode() != schema.TradingModeBacktest {
		if err := e.recorder.Fill(fill); err != nil {
			logs.Warnf("record fill %s, err: %+v", fill.ClientID, err)
		}
	}
	e.queueJournal(journalEntry{fill: &fill})
}

func (e *Engine) queueJournal(entry journalEntry) {
	if e.journal == nil {
		return
	}
	if err := e.journalQ.TryPublish(entry); err != nil {
		logs.Warnf("journal queue, err: %+v", err)
	}
}

// drainJournal persists entries left in the queue after the worker stopped.
func (e *Engine) drainJournal() {
	for {
		select {
		case entry, ok := <-e.journalQ.C():
			if !ok {
				return
			}
			e.persist(entry)
		default:
			return
		}
	}
}

func (e *Engine) persist(entry journalEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if entry.fill != nil {
		if err := e.journal.SaveFill(ctx, *entry.fill); err != nil {
			logs.Errorf("journal save fill %s, err: %+v", entry.fill.ClientID, err)
		}
		return
	}
	if err := e.journal.SaveDecision(ctx, entry.pred, entry.decision); err != nil {
		logs.Errorf("journal save decision %s, err: %+v", entry.pred.Symbol, err)
	}
}

func (e *Engine) publishLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.PublishInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			e.Publish(now)
		}
	}
}

// Publish recomputes the performance metrics and sends them with the risk snapshot.
func (e *Engine) Publish(now time.Time) {
	perf := e.metrics.Tick(now)
	snap := e.risk.Snapshot()
	if e.publisher == nil {
		return
	}
	e.publisher.PublishMetrics(perf)
	e.publisher.PublishRisk(snap)
}
