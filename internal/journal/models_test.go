package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hft/internal/schema"
)

func TestFillModel(t *testing.T) {
	fill := schema.Fill{
		ClientID:     "c-1",
		VenueOrderID: "42",
		Symbol:       "BTC",
		Venue:        schema.VenueHyperliquid,
		Side:         schema.SideSell,
		Price:        100,
		Quantity:     2,
		FeeBps:       5,
		TimestampNs:  1700000000000000000,
	}

	var m FillModel
	m.FromDomain(fill)
	assert.Equal(t, "Hyperliquid", m.Venue)
	assert.Equal(t, "Sell", m.Side)
	assert.Equal(t, 0.1, m.Fee)
	assert.Equal(t, "fills", m.TableName())
	assert.Equal(t, fill, m.ToDomain())
}

func TestDecisionModel(t *testing.T) {
	pred := schema.Prediction{TimestampNs: 7, Symbol: "ETH", EdgeBps: 12, Confidence: 0.7, HorizonMs: 5000, ModelVersion: "rule-based"}
	decision := schema.RouteDecision{Style: schema.OrderStyleMakerPassive, SizeFraction: 0.4, HoldDurationS: 5, Urgency: 0.3, ShouldTrade: true}

	var m DecisionModel
	m.FromDomain(pred, decision)
	assert.Equal(t, "decisions", m.TableName())

	gotPred, gotDecision := m.ToDomain()
	assert.Equal(t, pred, gotPred)
	assert.Equal(t, decision, gotDecision)
}
