package codec

import (
	"hft/internal/schema"
)

const OrderPayloadSize = 80

const flagHasPrice = 1

// EncodeOrder serializes an order request into a fixed-size payload.
func EncodeOrder(dst []byte, req schema.OrderRequest) []byte {
	dst = grow(dst, OrderPayloadSize)

	putText(dst[0:40], req.ClientID)
	putText(dst[40:56], req.Symbol)
	dst[56] = byte(req.Side)
	dst[57] = byte(req.OrderType)
	dst[58] = byte(req.TimeInForce)
	putBool(dst[59:60], req.ReduceOnly)
	clear(dst[60:64])
	putFloat(dst[64:72], req.Quantity)
	if req.Price != nil {
		dst[60] = flagHasPrice
		putFloat(dst[72:80], *req.Price)
	} else {
		clear(dst[72:80])
	}

	return dst
}

// DecodeOrder parses a fixed-size order payload.
func DecodeOrder(src []byte) (schema.OrderRequest, bool) {
	if len(src) < OrderPayloadSize {
		return schema.OrderRequest{}, false
	}
	req := schema.OrderRequest{
		ClientID:    readText(src[0:40]),
		Symbol:      readText(src[40:56]),
		Side:        schema.Side(src[56]),
		OrderType:   schema.OrderType(src[57]),
		TimeInForce: schema.TimeInForce(src[58]),
		ReduceOnly:  src[59] == 1,
		Quantity:    readFloat(src[64:72]),
	}
	if src[60]&flagHasPrice != 0 {
		price := readFloat(src[72:80])
		req.Price = &price
	}
	return req, true
}
