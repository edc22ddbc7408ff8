package features

import (
	"math"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hft/internal/obs"
	"hft/internal/schema"
	"hft/pkg/exception"
)

// Dim is the length of every feature vector.
const Dim = 100

// Vector slots. Slots not listed here are zero.
const (
	SlotMid = iota
	SlotSpreadBps
	SlotFundingBps
	SlotDepthImbalance
	SlotOFI
	SlotVWAPRatio
	SlotOBI
	SlotMicropriceOffsetBps
	SlotRealizedVol
	SlotATR
	SlotReturnBps
	SlotWindowReturnBps
	SlotMeanSpreadBps
	SlotMeanImbalance
	SlotOFISum
	SlotTradeFlow
	SlotMicroprice
	SlotLogVolume
	SlotLogOpenInterest
	SlotWindowFill

	// SlotLevels starts the depth ladder: bid (offset bps, qty) pairs then ask pairs.
	SlotLevels = 20
)

const (
	DefaultWindowSize = 100

	depthLevels   = 10
	defaultDepthA = 0.001
	defaultBeta   = 0.5
	defaultVol    = 0.02
	defaultATR    = 10
	defaultImpact = 0.5
)

type top struct {
	bidPx, bidQty float64
	askPx, askQty float64
}

type window struct {
	mids       *series
	spreads    *series
	imbalances *series
	ofis       *series
	flow       *series
	volume     *series
	notional   *series
	quantity   *series

	prev    top
	hasPrev bool
}

func newWindow(size int) *window {
	return &window{
		mids:       newSeries(size),
		spreads:    newSeries(size),
		imbalances: newSeries(size),
		ofis:       newSeries(size),
		flow:       newSeries(size),
		volume:     newSeries(size),
		notional:   newSeries(size),
		quantity:   newSeries(size),
	}
}

// Builder keeps rolling per-symbol windows and turns snapshots into vectors.
type Builder struct {
	size    int
	metrics *obs.Metrics

	mu      sync.Mutex
	windows map[string]*window
}

func NewBuilder(windowSize int, metrics *obs.Metrics) *Builder {
	if windowSize <= 1 {
		windowSize = DefaultWindowSize
	}
	return &Builder{
		size:    windowSize,
		metrics: metrics,
		windows: make(map[string]*window),
	}
}

// AddSymbol allocates the window of symbol ahead of its first snapshot.
func (b *Builder) AddSymbol(symbol string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.windows[symbol]; !ok {
		b.windows[symbol] = newWindow(b.size)
	}
}

// Reset drops the history of symbol.
func (b *Builder) Reset(symbol string) {
	b.mu.Lock()
	delete(b.windows, symbol)
	b.mu.Unlock()
}

// Build updates the window of the snapshot's symbol and returns its vector.
func (b *Builder) Build(snap schema.MarketSnapshot) ([]float32, error) {
	book := snap.OrderBook
	bid, okBid := book.BestBid()
	ask, okAsk := book.BestAsk()
	if !okBid || !okAsk {
		return nil, errors.Wrap(exception.ErrFeature, "book has no touch").With("symbol", snap.Symbol)
	}
	mid := (bid.Price + ask.Price) / 2
	if mid <= 0 || ask.Price < bid.Price {
		return nil, errors.Wrap(exception.ErrFeature, "crossed or empty book").With("symbol", snap.Symbol, "bid", bid.Price, "ask", ask.Price)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	w, ok := b.windows[snap.Symbol]
	if !ok {
		w = newWindow(b.size)
		b.windows[snap.Symbol] = w
	}

	prevMid, hasPrevMid := w.mids.last()
	spread := (ask.Price - bid.Price) / mid * 10_000

	bidDepth, askDepth := book.Depth(depthLevels)
	imbalance := ratio(bidDepth-askDepth, bidDepth+askDepth)
	obi := ratio(bid.Quantity-ask.Quantity, bid.Quantity+ask.Quantity)

	cur := top{bidPx: bid.Price, bidQty: bid.Quantity, askPx: ask.Price, askQty: ask.Quantity}
	ofi := 0.0
	if w.hasPrev {
		ofi = orderFlowImbalance(w.prev, cur)
	}
	w.prev, w.hasPrev = cur, true

	signed, total, notional := 0.0, 0.0, 0.0
	for _, t := range snap.RecentTrades {
		if t.Quantity <= 0 || t.Price <= 0 {
			continue
		}
		signed += t.Side.Sign() * t.Quantity
		total += t.Quantity
		notional += t.Price * t.Quantity
	}

	w.mids.push(mid)
	w.spreads.push(spread)
	w.imbalances.push(imbalance)
	w.ofis.push(ofi)
	w.flow.push(signed)
	w.volume.push(total)
	w.notional.push(notional)
	w.quantity.push(total)

	micro := mid
	if q := bid.Quantity + ask.Quantity; q > 0 {
		micro = (bid.Price*ask.Quantity + ask.Price*bid.Quantity) / q
	}

	vwapRatio := 1.0
	if qty := w.quantity.sum(); qty > 0 {
		vwapRatio = w.notional.sum() / qty / mid
	}

	vec := make([]float32, Dim)
	vec[SlotMid] = float32(mid)
	vec[SlotSpreadBps] = float32(spread)
	if snap.FundingRateBps != nil {
		vec[SlotFundingBps] = float32(*snap.FundingRateBps)
	}
	vec[SlotDepthImbalance] = float32(imbalance)
	vec[SlotOFI] = float32(ofi)
	vec[SlotVWAPRatio] = float32(vwapRatio)
	vec[SlotOBI] = float32(obi)
	vec[SlotMicropriceOffsetBps] = float32((micro - mid) / mid * 10_000)
	vec[SlotRealizedVol] = float32(w.mids.logReturnStd())
	vec[SlotATR] = float32(w.mids.meanAbsChange())
	if hasPrevMid && prevMid > 0 {
		vec[SlotReturnBps] = float32((mid - prevMid) / prevMid * 10_000)
	}
	if oldest, ok := w.mids.first(); ok && oldest > 0 {
		vec[SlotWindowReturnBps] = float32((mid - oldest) / oldest * 10_000)
	}
	vec[SlotMeanSpreadBps] = float32(w.spreads.mean())
	vec[SlotMeanImbalance] = float32(w.imbalances.mean())
	vec[SlotOFISum] = float32(w.ofis.sum())
	vec[SlotTradeFlow] = float32(ratio(w.flow.sum(), w.volume.sum()))
	vec[SlotMicroprice] = float32(micro)
	vec[SlotLogVolume] = float32(math.Log1p(math.Max(snap.Volume24h, 0)))
	if snap.OpenInterest != nil {
		vec[SlotLogOpenInterest] = float32(math.Log1p(math.Max(*snap.OpenInterest, 0)))
	}
	vec[SlotWindowFill] = float32(w.mids.len()) / float32(b.size)

	for i := 0; i < depthLevels; i++ {
		if i < len(book.Bids) {
			vec[SlotLevels+2*i] = float32((mid - book.Bids[i].Price) / mid * 10_000)
			vec[SlotLevels+2*i+1] = float32(book.Bids[i].Quantity)
		}
		if i < len(book.Asks) {
			vec[SlotLevels+2*depthLevels+2*i] = float32((book.Asks[i].Price - mid) / mid * 10_000)
			vec[SlotLevels+2*depthLevels+2*i+1] = float32(book.Asks[i].Quantity)
		}
	}

	return vec, nil
}

// Computed is one snapshot with its vector and named view.
type Computed struct {
	Snapshot schema.MarketSnapshot
	Vector   []float32
	Features schema.FeatureVec
}

// BuildBatch builds every snapshot of the batch. Snapshots that cannot be
// featurized are logged and left out.
func (b *Builder) BuildBatch(snaps []schema.MarketSnapshot) []Computed {
	out := make([]Computed, 0, len(snaps))
	for _, snap := range snaps {
		start := time.Now()
		vec, err := b.Build(snap)
		b.metrics.Since(obs.StageFeature, start)
		if err != nil {
			logs.Warnf("skip snapshot %s, err: %+v", snap.Symbol, err)
			continue
		}
		out = append(out, Computed{
			Snapshot: snap,
			Vector:   vec,
			Features: ToFeatureVec(snap.Symbol, snap.TimestampNs, vec),
		})
	}
	return out
}

// ToFeatureVec names the slots of vec the router reads.
func ToFeatureVec(symbol string, ts int64, vec []float32) schema.FeatureVec {
	at := func(slot int) float64 {
		if slot < len(vec) {
			return float64(vec[slot])
		}
		return 0
	}
	or := func(v, fallback float64) float64 {
		if v == 0 || math.IsNaN(v) {
			return fallback
		}
		return v
	}

	mid := at(SlotMid)
	return schema.FeatureVec{
		TimestampNs:    ts,
		Symbol:         symbol,
		MidPrice:       mid,
		SpreadBps:      at(SlotSpreadBps),
		OFI1s:          at(SlotOFI),
		OBI1s:          at(SlotOBI),
		DepthImbalance: at(SlotDepthImbalance),
		DepthA:         defaultDepthA,
		DepthBeta:      defaultBeta,
		RealizedVol5s:  or(at(SlotRealizedVol), defaultVol),
		ATR30s:         or(at(SlotATR), defaultATR),
		FundingBps8h:   at(SlotFundingBps),
		ImpactBps1Pct:  defaultImpact,
		Microprice:     or(at(SlotMicroprice), mid),
		VWAPRatio:      or(at(SlotVWAPRatio), 1),
	}
}

// orderFlowImbalance is the top-of-book order flow event between two books,
// scaled by the touch depth of both into [-1, 1].
func orderFlowImbalance(prev, cur top) float64 {
	e := 0.0
	if cur.bidPx >= prev.bidPx {
		e += cur.bidQty
	}
	if cur.bidPx <= prev.bidPx {
		e -= prev.bidQty
	}
	if cur.askPx <= prev.askPx {
		e -= cur.askQty
	}
	if cur.askPx >= prev.askPx {
		e += prev.askQty
	}
	return ratio(e, prev.bidQty+cur.bidQty+prev.askQty+cur.askQty)
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
