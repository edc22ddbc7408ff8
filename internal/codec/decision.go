package codec

import (
	"encoding/binary"

	"hft/internal/schema"
)

const (
	DecisionPayloadSize = 168

	modelVersionSize = 24
	reasonSize       = 64
)

// EncodeDecision serializes a prediction and the route decision taken on it.
// Model version and reason are truncated to their slots.
func EncodeDecision(dst []byte, pred schema.Prediction, decision schema.RouteDecision) []byte {
	dst = grow(dst, DecisionPayloadSize)

	putText(dst[0:16], pred.Symbol)
	binary.LittleEndian.PutUint64(dst[16:24], uint64(pred.TimestampNs))
	putFloat(dst[24:32], pred.EdgeBps)
	putFloat(dst[32:40], pred.Confidence)
	binary.LittleEndian.PutUint64(dst[40:48], pred.HorizonMs)
	putText(dst[48:72], pred.ModelVersion)
	dst[72] = byte(decision.Style)
	putBool(dst[73:74], decision.ShouldTrade)
	clear(dst[74:80])
	putFloat(dst[80:88], decision.SizeFraction)
	putFloat(dst[88:96], decision.HoldDurationS)
	putFloat(dst[96:104], decision.Urgency)
	putText(dst[104:168], decision.Reason)

	return dst
}

// DecodeDecision parses a fixed-size decision payload.
func DecodeDecision(src []byte) (schema.Prediction, schema.RouteDecision, bool) {
	if len(src) < DecisionPayloadSize {
		return schema.Prediction{}, schema.RouteDecision{}, false
	}
	pred := schema.Prediction{
		Symbol:       readText(src[0:16]),
		TimestampNs:  int64(binary.LittleEndian.Uint64(src[16:24])),
		EdgeBps:      readFloat(src[24:32]),
		Confidence:   readFloat(src[32:40]),
		HorizonMs:    binary.LittleEndian.Uint64(src[40:48]),
		ModelVersion: readText(src[48:72]),
	}
	decision := schema.RouteDecision{
		Style:         schema.OrderStyle(src[72]),
		ShouldTrade:   src[73] == 1,
		SizeFraction:  readFloat(src[80:88]),
		HoldDurationS: readFloat(src[88:96]),
		Urgency:       readFloat(src[96:104]),
		Reason:        readText(src[104:168]),
	}
	return pred, decision, true
}
