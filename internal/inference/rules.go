package inference

import (
	"math"

	"hft/internal/features"
	"hft/internal/schema"
)

const (
	// HorizonMs is the prediction horizon of every model and of the rules.
	HorizonMs uint64 = 5000

	RuleBasedVersion = "rule-based"

	ofiWeightBps       = 10
	imbalanceWeightBps = 6
	vwapWeightBps      = 4
	vwapScaleBps       = 10

	minRuleConfidence = 0.25
	maxRuleConfidence = 0.95
)

// RuleBased predicts from order flow, book imbalance and the distance of the
// mid from the window VWAP.
func RuleBased(vec []float32) (edgeBps, confidence float64) {
	at := func(slot int) float64 {
		if slot < len(vec) {
			return float64(vec[slot])
		}
		return 0
	}

	ofi := clamp(at(features.SlotOFI), -1, 1)
	imbalance := clamp(at(features.SlotDepthImbalance), -1, 1)
	vwap := 0.0
	if r := at(features.SlotVWAPRatio); r > 0 {
		vwap = clamp((1/r-1)*10_000/vwapScaleBps, -1, 1)
	}

	edgeBps = ofiWeightBps*ofi + imbalanceWeightBps*imbalance + vwapWeightBps*vwap

	signals := []float64{ofi, imbalance, vwap}
	votes, active, strength := 0.0, 0.0, 0.0
	for _, s := range signals {
		if s == 0 {
			continue
		}
		active++
		strength += math.Abs(s)
		if s > 0 {
			votes++
		} else {
			votes--
		}
	}
	if active == 0 {
		return 0, 0
	}
	agreement := math.Abs(votes) / active
	strength = math.Min(1, 2*strength/float64(len(signals)))
	confidence = clamp(minRuleConfidence+0.5*agreement*strength+0.2*agreement, 0, maxRuleConfidence)
	return edgeBps, confidence
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func rulePrediction(symbol string, ts int64, vec []float32) schema.Prediction {
	edge, confidence := RuleBased(vec)
	return schema.Prediction{
		TimestampNs:  ts,
		Symbol:       symbol,
		EdgeBps:      edge,
		Confidence:   confidence,
		HorizonMs:    HorizonMs,
		ModelVersion: RuleBasedVersion,
	}
}
