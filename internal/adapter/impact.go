package adapter

import "math"

// ImpactCurve models market impact as A·notional^Beta. The engine feeds it the
// order notional as a fraction of the per-symbol limit, so 0.01 is the 1% point.
type ImpactCurve struct {
	A    float64
	Beta float64
}

// ImpactBps returns the expected impact of trading notional, in basis points.
func (c ImpactCurve) ImpactBps(notional float64) float64 {
	if notional <= 0 {
		return 0
	}
	return c.A * math.Pow(notional, c.Beta) * 10_000
}
