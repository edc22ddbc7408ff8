package schema

// FeatureVec is the named view of a feature vector consumed by the router.
type FeatureVec struct {
	TimestampNs    int64   `json:"timestamp_ns"`
	Symbol         string  `json:"symbol"`
	MidPrice       float64 `json:"mid_price"`
	SpreadBps      float64 `json:"spread_bps"`
	OFI1s          float64 `json:"ofi_1s"`
	OBI1s          float64 `json:"obi_1s"`
	DepthImbalance float64 `json:"depth_imbalance"`
	DepthA         float64 `json:"depth_a"`
	DepthBeta      float64 `json:"depth_beta"`
	RealizedVol5s  float64 `json:"realized_vol_5s"`
	ATR30s         float64 `json:"atr_30s"`
	FundingBps8h   float64 `json:"funding_bps_8h"`
	ImpactBps1Pct  float64 `json:"impact_bps_1pct"`
	Microprice     float64 `json:"microprice"`
	VWAPRatio      float64 `json:"vwap_ratio"`
}

// Prediction is the model output for one snapshot.
type Prediction struct {
	TimestampNs  int64   `json:"timestamp_ns"`
	Symbol       string  `json:"symbol"`
	EdgeBps      float64 `json:"edge_bps"`
	Confidence   float64 `json:"confidence"`
	HorizonMs    uint64  `json:"horizon_ms"`
	ModelVersion string  `json:"model_version"`
}

// RouteDecision is the router's answer for one prediction.
type RouteDecision struct {
	Style         OrderStyle `json:"style"`
	SizeFraction  float64    `json:"size_fraction"`
	HoldDurationS float64    `json:"hold_duration_s"`
	Urgency       float64    `json:"urgency"`
	ShouldTrade   bool       `json:"should_trade"`
	Reason        string     `json:"reason"`
}
