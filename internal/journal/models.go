package journal

import (
	"time"

	"hft/internal/schema"
)

// DecisionModel is one routed prediction.
type DecisionModel struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	TimestampNs   int64  `gorm:"not null;index"`
	Symbol        string `gorm:"not null;index;type:varchar(32)"`
	EdgeBps       float64
	Confidence    float64
	HorizonMs     uint64
	ModelVersion  string `gorm:"type:varchar(64)"`
	Style         string `gorm:"type:varchar(16)"`
	SizeFraction  float64
	HoldDurationS float64
	Urgency       float64
	ShouldTrade   bool   `gorm:"not null;index"`
	Reason        string `gorm:"type:varchar(255)"`
	CreatedAt     time.Time
}

func (DecisionModel) TableName() string {
	return "decisions"
}

func (m *DecisionModel) FromDomain(pred schema.Prediction, d schema.RouteDecision) {
	m.TimestampNs = pred.TimestampNs
	m.Symbol = pred.Symbol
	m.EdgeBps = pred.EdgeBps
	m.Confidence = pred.Confidence
	m.HorizonMs = pred.HorizonMs
	m.ModelVersion = pred.ModelVersion
	m.Style = d.Style.String()
	m.SizeFraction = d.SizeFraction
	m.HoldDurationS = d.HoldDurationS
	m.Urgency = d.Urgency
	m.ShouldTrade = d.ShouldTrade
	m.Reason = d.Reason
}

func (m *DecisionModel) ToDomain() (schema.Prediction, schema.RouteDecision) {
	style, _ := schema.ParseOrderStyle(m.Style)
	return schema.Prediction{
			TimestampNs:  m.TimestampNs,
			Symbol:       m.Symbol,
			EdgeBps:      m.EdgeBps,
			Confidence:   m.Confidence,
			HorizonMs:    m.HorizonMs,
			ModelVersion: m.ModelVersion,
		}, schema.RouteDecision{
			Style:         style,
			SizeFraction:  m.SizeFraction,
			HoldDurationS: m.HoldDurationS,
			Urgency:       m.Urgency,
			ShouldTrade:   m.ShouldTrade,
			Reason:        m.Reason,
		}
}

// FillModel is one execution.
type FillModel struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	ClientID     string `gorm:"not null;index;type:varchar(64)"`
	VenueOrderID string `gorm:"type:varchar(64)"`
	Symbol       string `gorm:"not null;index;type:varchar(32)"`
	Venue        string `gorm:"not null;type:varchar(32)"`
	Side         string `gorm:"not null;type:varchar(8)"`
	Price        float64
	Quantity     float64
	FeeBps       float64
	Fee          float64
	Maker        bool
	TimestampNs  int64 `gorm:"not null;index"`
	CreatedAt    time.Time
}

func (FillModel) TableName() string {
	return "fills"
}

func (m *FillModel) FromDomain(f schema.Fill) {
	m.ClientID = f.ClientID
	m.VenueOrderID = f.VenueOrderID
	m.Symbol = f.Symbol
	m.Venue = f.Venue.String()
	m.Side = f.Side.String()
	m.Price = f.Price
	m.Quantity = f.Quantity
	m.FeeBps = f.FeeBps
	m.Fee = f.Fee()
	m.Maker = f.Maker
	m.TimestampNs = f.TimestampNs
}

func (m *FillModel) ToDomain() schema.Fill {
	venue, _ := schema.ParseVenue(m.Venue)
	side, _ := schema.ParseSide(m.Side)
	return schema.Fill{
		ClientID:     m.ClientID,
		VenueOrderID: m.VenueOrderID,
		Symbol:       m.Symbol,
		Venue:        venue,
		Side:         side,
		Price:        m.Price,
		Quantity:     m.Quantity,
		FeeBps:       m.FeeBps,
		Maker:        m.Maker,
		TimestampNs:  m.TimestampNs,
	}
}
