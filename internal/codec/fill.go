package codec

import (
	"encoding/binary"

	"hft/internal/schema"
)

const FillPayloadSize = 132

// EncodeFill serializes a fill into a fixed-size payload.
func EncodeFill(dst []byte, fill schema.Fill) []byte {
	dst = grow(dst, FillPayloadSize)

	putText(dst[0:40], fill.ClientID)
	putText(dst[40:80], fill.VenueOrderID)
	putText(dst[80:96], fill.Symbol)
	dst[96] = byte(fill.Venue)
	dst[97] = byte(fill.Side)
	putBool(dst[98:99], fill.Maker)
	dst[99] = 0
	putFloat(dst[100:108], fill.Price)
	putFloat(dst[108:116], fill.Quantity)
	putFloat(dst[116:124], fill.FeeBps)
	binary.LittleEndian.PutUint64(dst[124:132], uint64(fill.TimestampNs))

	return dst
}

// DecodeFill parses a fixed-size fill payload.
func DecodeFill(src []byte) (schema.Fill, bool) {
	if len(src) < FillPayloadSize {
		return schema.Fill{}, false
	}
	return schema.Fill{
		ClientID:     readText(src[0:40]),
		VenueOrderID: readText(src[40:80]),
		Symbol:       readText(src[80:96]),
		Venue:        schema.Venue(src[96]),
		Side:         schema.Side(src[97]),
		Maker:        src[98] == 1,
		Price:        readFloat(src[100:108]),
		Quantity:     readFloat(src[108:116]),
		FeeBps:       readFloat(src[116:124]),
		TimestampNs:  int64(binary.LittleEndian.Uint64(src[124:132])),
	}, true
}
