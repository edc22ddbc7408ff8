package router

import (
	"fmt"
	"math"
	"sync/atomic"

	"hft/internal/risk"
	"hft/internal/schema"
)

// GateParams are the thresholds a prediction must clear before trading.
type GateParams struct {
	MinEdgeBps    float64 `json:"min_edge_bps" mapstructure:"min_edge_bps" validate:"gte=0"`
	MinConfidence float64 `json:"min_confidence" mapstructure:"min_confidence" validate:"gte=0,lte=1"`
	MaxHoldS      float64 `json:"max_hold_s" mapstructure:"max_hold_s" validate:"gte=0"`
	MaxSpreadBps  float64 `json:"max_spread_bps" mapstructure:"max_spread_bps" validate:"gt=0"`
	Enabled       bool    `json:"enabled" mapstructure:"enabled"`
}

func DefaultGateParams() GateParams {
	return GateParams{
		MinEdgeBps:    5,
		MinConfidence: 0.5,
		MaxHoldS:      30,
		MaxSpreadBps:  10,
		Enabled:       true,
	}
}

// CostModel is the round-trip cost estimate in basis points.
type CostModel struct {
	TakerFeeBps       float64
	MakerFeeBps       float64
	MakerRebateBps    float64
	ImpactBps         float64
	SlippageBufferBps float64
}

func (c CostModel) TotalCostTaker() float64 {
	return c.TakerFeeBps + c.ImpactBps + c.SlippageBufferBps
}

func (c CostModel) TotalCostMaker() float64 {
	return c.MakerFeeBps + c.ImpactBps + c.SlippageBufferBps - c.MakerRebateBps
}

func (c CostModel) NetEdgeTaker(predEdgeBps float64) float64 {
	return predEdgeBps - c.TotalCostTaker()
}

func (c CostModel) NetEdgeMaker(predEdgeBps float64) float64 {
	return predEdgeBps - c.TotalCostMaker()
}

// Verdict is the gate outcome. Reason is set on rejection.
type Verdict struct {
	Pass       bool
	NetEdgeBps float64
	Urgency    float64
	Reason     string
}

// Gate decides whether a signal is strong enough to trade.
type Gate struct {
	params atomic.Pointer[GateParams]
}

func NewGate(params GateParams) *Gate {
	g := &Gate{}
	g.params.Store(&params)
	return g
}

// UpdateParams swaps the thresholds for subsequent checks.
func (g *Gate) UpdateParams(params GateParams) {
	g.params.Store(&params)
}

func (g *Gate) Params() GateParams {
	return *g.params.Load()
}

// Check runs, in order: enabled, confidence, spread, net taker edge, kill
// switch and daily loss.
func (g *Gate) Check(pred schema.Prediction, features schema.FeatureVec, costs CostModel, state risk.State) Verdict {
	p := g.params.Load()

	if !p.Enabled {
		return reject("Gate disabled")
	}
	if pred.Confidence < p.MinConfidence {
		return reject(fmt.Sprintf("Low confidence: %.3f < %.3f", pred.Confidence, p.MinConfidence))
	}
	if features.SpreadBps > p.MaxSpreadBps {
		return reject(fmt.Sprintf("Wide spread: %.2f > %.2f bps", features.SpreadBps, p.MaxSpreadBps))
	}
	netEdge := costs.NetEdgeTaker(pred.EdgeBps)
	if netEdge < p.MinEdgeBps {
		return reject(fmt.Sprintf("Insufficient edge: %.2f < %.2f bps", netEdge, p.MinEdgeBps))
	}
	if state.KillSwitchActive {
		return reject("Kill switch active")
	}
	if state.DailyLossExceeded {
		return reject("Daily loss limit exceeded")
	}

	return Verdict{
		Pass:       true,
		NetEdgeBps: netEdge,
		Urgency:    urgency(pred, features),
	}
}

func reject(reason string) Verdict {
	return Verdict{Reason: reason}
}

// urgency rises with confidence, tight spreads and signal strength.
func urgency(pred schema.Prediction, features schema.FeatureVec) float64 {
	confidence := pred.Confidence
	spread := math.Max(10-features.SpreadBps, 0) / 10
	signal := math.Min(math.Abs(pred.EdgeBps)/20, 1)
	return clamp(confidence*0.4+spread*0.3+signal*0.3, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
