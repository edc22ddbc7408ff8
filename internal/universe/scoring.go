package universe

import (
	"math"

	"hft/internal/schema"
)

// CryptoScorer ranks perpetual futures by liquidity, volume, on-chain
// activity, social attention and funding. Scores fall in [0, 1].
type CryptoScorer struct {
	Liquidity float64
	Volume    float64
	Onchain   float64
	Social    float64
	Funding   float64
}

func NewCryptoScorer() CryptoScorer {
	return CryptoScorer{
		Liquidity: 0.25,
		Volume:    0.30,
		Onchain:   0.20,
		Social:    0.15,
		Funding:   0.10,
	}
}

func (s CryptoScorer) Score(m schema.AssetMetrics) float64 {
	return s.Liquidity*logScale(m.LiquidityUSD, 13, 8) +
		s.Volume*logScale(m.Volume24hUSD, 13.8, 9) +
		s.Onchain*logCount(m.TxCount1h, 10) +
		s.Social*logCount(m.SocialMentions24h, 8) +
		s.Funding*fundingScore(m.FundingRateBps)
}

// EquityScorer ranks equities by liquidity, volume, short interest, options
// activity, analyst rating and volatility. Scores fall in [0, 1].
type EquityScorer struct {
	Liquidity     float64
	Volume        float64
	ShortInterest float64
	Options       float64
	News          float64
	Volatility    float64
}

func NewEquityScorer() EquityScorer {
	return EquityScorer{
		Liquidity:     0.30,
		Volume:        0.25,
		ShortInterest: 0.15,
		Options:       0.15,
		News:          0.10,
		Volatility:    0.05,
	}
}

func (s EquityScorer) Score(m schema.AssetMetrics) float64 {
	return s.Liquidity*logScale(m.LiquidityUSD, 18, 8) +
		s.Volume*logScale(m.Volume24hUSD, 18, 8) +
		s.ShortInterest*shortInterestScore(value(m.ShortInterestPct)) +
		s.Options*logCount(m.OptionsVolume, 15) +
		s.News*clamp01(value(m.AnalystRating)/5) +
		s.Volatility*volatilityScore(value(m.Volatility30d))
}

// logScale maps ln(v) from [floor, floor+span] onto [0, 1].
func logScale(v, floor, span float64) float64 {
	if v < 1 {
		return 0
	}
	return clamp01((math.Log(v) - floor) / span)
}

func logCount(v *uint64, span float64) float64 {
	if v == nil || *v == 0 {
		return 0
	}
	return clamp01(math.Log(float64(*v)) / span)
}

// fundingScore prefers moderate funding; extreme rates carry squeeze risk.
func fundingScore(bps *float64) float64 {
	f := math.Abs(value(bps))
	switch {
	case f < 10:
		return 1
	case f < 50:
		return 0.5
	default:
		return 0
	}
}

func shortInterestScore(pct float64) float64 {
	switch {
	case pct < 5:
		return 0.3
	case pct < 15:
		return 0.7
	case pct < 30:
		return 1
	default:
		return 0.5
	}
}

func volatilityScore(vol float64) float64 {
	switch {
	case vol < 0.2:
		return vol / 0.2 * 0.5
	case vol < 0.6:
		return 1
	default:
		return math.Max(0, 1-(vol-0.6)/0.4)
	}
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
