package schema

// AssetMetrics carries the raw inputs to universe scoring. Crypto and equity
// venues populate different optional fields.
type AssetMetrics struct {
	Volume24hUSD float64 `json:"volume_24h_usd"`
	LiquidityUSD float64 `json:"liquidity_usd"`

	FundingRateBps    *float64 `json:"funding_rate_bps,omitempty"`
	OpenInterestUSD   *float64 `json:"open_interest_usd,omitempty"`
	TxCount1h         *uint64  `json:"tx_count_1h,omitempty"`
	SocialMentions24h *uint64  `json:"social_mentions_24h,omitempty"`

	MarketCapUSD     *float64 `json:"market_cap_usd,omitempty"`
	ShortInterestPct *float64 `json:"short_interest_pct,omitempty"`
	OptionsVolume    *uint64  `json:"options_volume,omitempty"`
	AnalystRating    *float64 `json:"analyst_rating,omitempty"`
	Volatility30d    *float64 `json:"volatility_30d,omitempty"`
}

type UniverseAsset struct {
	Symbol   string        `json:"symbol"`
	Venue    Venue         `json:"venue"`
	Category AssetCategory `json:"category"`
	Score    float64       `json:"score"`
	Rank     int           `json:"rank"`
	Metrics  AssetMetrics  `json:"metrics"`
}
