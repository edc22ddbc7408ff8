package schema

// RiskLimits bounds exposure and daily loss.
type RiskLimits struct {
	MaxNotionalPerSymbol     float64 `json:"max_notional_per_symbol" mapstructure:"max_notional_per_symbol" validate:"gt=0"`
	MaxTotalNotional         float64 `json:"max_total_notional" mapstructure:"max_total_notional" validate:"gt=0"`
	MaxLeverage              float64 `json:"max_leverage" mapstructure:"max_leverage" validate:"gt=0"`
	MaxLossPerDay            float64 `json:"max_loss_per_day" mapstructure:"max_loss_per_day" validate:"gt=0"`
	MaxPositionConcentration float64 `json:"max_position_concentration" mapstructure:"max_position_concentration" validate:"gt=0,lte=1"`
}

func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxNotionalPerSymbol:     100_000,
		MaxTotalNotional:         500_000,
		MaxLeverage:              3,
		MaxLossPerDay:            10_000,
		MaxPositionConcentration: 0.25,
	}
}

// PerformanceMetrics is streamed to terminals once per second. Latencies are in microseconds.
type PerformanceMetrics struct {
	IngestP50Us  float64 `json:"ingest_p50_us"`
	IngestP95Us  float64 `json:"ingest_p95_us"`
	IngestP99Us  float64 `json:"ingest_p99_us"`
	FeatureP50Us float64 `json:"feature_p50_us"`
	FeatureP95Us float64 `json:"feature_p95_us"`
	FeatureP99Us float64 `json:"feature_p99_us"`
	ModelP50Us   float64 `json:"model_p50_us"`
	ModelP95Us   float64 `json:"model_p95_us"`
	ModelP99Us   float64 `json:"model_p99_us"`
	RouteP50Us   float64 `json:"route_p50_us"`
	RouteP95Us   float64 `json:"route_p95_us"`
	RouteP99Us   float64 `json:"route_p99_us"`

	SnapshotsPerSec float64 `json:"snapshots_per_sec"`
	OrdersPerSec    float64 `json:"orders_per_sec"`

	DroppedFrames uint64 `json:"dropped_frames"`
	ModelTimeouts uint64 `json:"model_timeouts"`
	OrderRejects  uint64 `json:"order_rejects"`
}

type RiskSnapshot struct {
	TimestampNs      int64   `json:"timestamp_ns"`
	GrossNotional    float64 `json:"gross_notional"`
	NetNotional      float64 `json:"net_notional"`
	NumPositions     int     `json:"num_positions"`
	TotalMarginUsed  float64 `json:"total_margin_used"`
	AvailableMargin  float64 `json:"available_margin"`
	UnrealizedPnL    float64 `json:"unrealized_pnl"`
	RealizedPnL      float64 `json:"realized_pnl"`
	TotalPnL         float64 `json:"total_pnl"`
	DailyPnL         float64 `json:"daily_pnl"`
	VaR95            float64 `json:"var_95"`
	MaxLeverage      float64 `json:"max_leverage"`
	KillSwitchActive bool    `json:"kill_switch_active"`
}

// Alert is an operator notification.
type Alert struct {
	TimestampNs int64             `json:"timestamp_ns"`
	Level       AlertLevel        `json:"level"`
	Source      string            `json:"source"`
	Message     string            `json:"message"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}
