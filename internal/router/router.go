package router

import (
	"fmt"
	"math"

	"hft/internal/risk"
	"hft/internal/schema"
)

const (
	baseSize    = 0.02
	maxSize     = 0.10
	minHoldS    = 2.0
	maxHoldS    = 60.0
	wideSpread  = 5.0
	sniperLimit = 3.0
)

// Router turns predictions into routing decisions using the gate and the
// current risk state.
type Router struct {
	gate *Gate
	risk *risk.Manager
}

func New(params GateParams, manager *risk.Manager) *Router {
	return &Router{gate: NewGate(params), risk: manager}
}

func (r *Router) Gate() *Gate {
	return r.gate
}

// UpdateParams swaps the gate thresholds.
func (r *Router) UpdateParams(params GateParams) {
	r.gate.UpdateParams(params)
}

// Decide returns the routing decision for a prediction. A rejected signal
// yields a MakerPassive decision with zero size carrying the gate's reason.
func (r *Router) Decide(pred schema.Prediction, features schema.FeatureVec, costs CostModel) schema.RouteDecision {
	verdict := r.gate.Check(pred, features, costs, r.risk.State())
	if !verdict.Pass {
		return schema.RouteDecision{
			Style:       schema.OrderStyleMakerPassive,
			ShouldTrade: false,
			Reason:      verdict.Reason,
		}
	}

	hold := holdTime(pred.HorizonMs, features.SpreadBps, verdict.Urgency)
	if limit := r.gate.Params().MaxHoldS; limit >= minHoldS && hold > limit {
		hold = limit
	}

	return schema.RouteDecision{
		Style:         selectStyle(verdict.Urgency, features.SpreadBps),
		SizeFraction:  sizeFraction(pred.Confidence, verdict.Urgency),
		HoldDurationS: hold,
		Urgency:       verdict.Urgency,
		ShouldTrade:   true,
		Reason:        fmt.Sprintf("Edge: %.2f bps", verdict.NetEdgeBps),
	}
}

func selectStyle(urgency, spreadBps float64) schema.OrderStyle {
	switch {
	case urgency > 0.8:
		return schema.OrderStyleTakerNow
	case urgency > 0.5 && spreadBps < sniperLimit:
		return schema.OrderStyleSniper
	default:
		return schema.OrderStyleMakerPassive
	}
}

// sizeFraction scales a 2% base by confidence squared and urgency, capped at 10%.
func sizeFraction(confidence, urgency float64) float64 {
	return math.Min(baseSize*confidence*confidence*(1+urgency*0.5), maxSize)
}

func holdTime(horizonMs uint64, spreadBps, urgency float64) float64 {
	base := float64(horizonMs) / 1000 * 0.5
	spreadFactor := 1.0
	if spreadBps > wideSpread {
		spreadFactor = 0.7
	}
	return clamp(base*spreadFactor*(1-urgency*0.3), minHoldS, maxHoldS)
}
