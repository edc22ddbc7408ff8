package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hft/internal/risk"
	"hft/internal/schema"
)

func testCosts() CostModel {
	return CostModel{TakerFeeBps: 5, MakerFeeBps: 2, MakerRebateBps: 1, ImpactBps: 2, SlippageBufferBps: 1}
}

func testPrediction() schema.Prediction {
	return schema.Prediction{Symbol: "BTC", EdgeBps: 15, Confidence: 0.8, HorizonMs: 5000}
}

func TestCostModel(t *testing.T) {
	c := testCosts()
	assert.Equal(t, 8.0, c.TotalCostTaker())
	assert.Equal(t, 4.0, c.TotalCostMaker())
	assert.Equal(t, 7.0, c.NetEdgeTaker(15))
	assert.Equal(t, 11.0, c.NetEdgeMaker(15))
}

func TestGateCheck(t *testing.T) {
	features := schema.FeatureVec{SpreadBps: 3}

	testCases := []struct {
		desc   string
		params func(*GateParams)
		pred   func(*schema.Prediction)
		spread float64
		state  risk.State
		reason string
	}{
		{desc: "pass", spread: 3},
		{desc: "disabled", params: func(p *GateParams) { p.Enabled = false }, spread: 3, reason: "Gate disabled"},
		{desc: "low confidence", pred: func(p *schema.Prediction) { p.Confidence = 0.4 }, spread: 3, reason: "Low confidence: 0.400 < 0.500"},
		{desc: "wide spread", spread: 12, reason: "Wide spread: 12.00 > 10.00 bps"},
		{desc: "thin edge", pred: func(p *schema.Prediction) { p.EdgeBps = 10 }, spread: 3, reason: "Insufficient edge: 2.00 < 5.00 bps"},
		{desc: "kill switch", spread: 3, state: risk.State{KillSwitchActive: true}, reason: "Kill switch active"},
		{desc: "daily loss", spread: 3, state: risk.State{DailyLossExceeded: true}, reason: "Daily loss limit exceeded"},
		{
			desc:   "confidence before kill switch",
			pred:   func(p *schema.Prediction) { p.Confidence = 0.1 },
			spread: 3,
			state:  risk.State{KillSwitchActive: true},
			reason: "Low confidence: 0.100 < 0.500",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			params := DefaultGateParams()
			if tc.params != nil {
				tc.params(&params)
			}
			pred := testPrediction()
			if tc.pred != nil {
				tc.pred(&pred)
			}
			f := features
			f.SpreadBps = tc.spread

			v := NewGate(params).Check(pred, f, testCosts(), tc.state)
			if tc.reason == "" {
				require.True(t, v.Pass)
				assert.Equal(t, 7.0, v.NetEdgeBps)
				assert.InDelta(t, 0.755, v.Urgency, 1e-9)
				return
			}
			assert.False(t, v.Pass)
			assert.Equal(t, tc.reason, v.Reason)
		})
	}
}

func TestDecide(t *testing.T) {
	r := New(DefaultGateParams(), risk.NewManager(schema.DefaultRiskLimits()))

	d := r.Decide(testPrediction(), schema.FeatureVec{SpreadBps: 3}, testCosts())
	require.True(t, d.ShouldTrade)
	assert.Equal(t, schema.OrderStyleMakerPassive, d.Style)
	assert.InDelta(t, 0.02*0.64*(1+0.755*0.5), d.SizeFraction, 1e-12)
	assert.Equal(t, 2.0, d.HoldDurationS)
	assert.Equal(t, "Edge: 7.00 bps", d.Reason)
	assert.InDelta(t, 0.755, d.Urgency, 1e-9)
}

func TestDecideReject(t *testing.T) {
	manager := risk.NewManager(schema.DefaultRiskLimits())
	manager.ActivateKillSwitch()
	r := New(DefaultGateParams(), manager)

	d := r.Decide(testPrediction(), schema.FeatureVec{SpreadBps: 3}, testCosts())
	assert.Equal(t, schema.RouteDecision{
		Style:       schema.OrderStyleMakerPassive,
		ShouldTrade: false,
		Reason:      "Kill switch active",
	}, d)
}

func TestSelectStyle(t *testing.T) {
	assert.Equal(t, schema.OrderStyleTakerNow, selectStyle(0.81, 9))
	assert.Equal(t, schema.OrderStyleSniper, selectStyle(0.6, 2.9))
	assert.Equal(t, schema.OrderStyleMakerPassive, selectStyle(0.6, 3))
	assert.Equal(t, schema.OrderStyleMakerPassive, selectStyle(0.5, 1))
}

func TestSizingAndHold(t *testing.T) {
	assert.Equal(t, 0.10, sizeFraction(3, 1))
	assert.InDelta(t, 0.02*1.5, sizeFraction(1, 1), 1e-12)

	assert.Equal(t, 2.0, holdTime(1000, 1, 0))
	assert.Equal(t, 60.0, holdTime(600_000, 1, 0))
	assert.InDelta(t, 20*0.7*0.85, holdTime(40_000, 6, 0.5), 1e-9)
	assert.InDelta(t, 20.0, holdTime(40_000, 5, 0), 1e-9)
}

func TestMaxHoldCapAndUpdate(t *testing.T) {
	r := New(DefaultGateParams(), risk.NewManager(schema.DefaultRiskLimits()))
	pred := testPrediction()
	pred.HorizonMs = 120_000

	d := r.Decide(pred, schema.FeatureVec{SpreadBps: 3}, testCosts())
	assert.Equal(t, 30.0, d.HoldDurationS)

	params := DefaultGateParams()
	params.MinEdgeBps = 50
	r.UpdateParams(params)
	d = r.Decide(pred, schema.FeatureVec{SpreadBps: 3}, testCosts())
	assert.False(t, d.ShouldTrade)
	assert.Equal(t, "Insufficient edge: 7.00 < 50.00 bps", d.Reason)
}
