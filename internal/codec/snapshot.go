package codec

import (
	"encoding/binary"

	"hft/internal/schema"
)

// BookDepth is the number of levels per side kept in a snapshot payload.
const BookDepth = 20

const (
	snapshotHeaderSize  = 64
	levelSize           = 16
	SnapshotPayloadSize = snapshotHeaderSize + 2*BookDepth*levelSize

	flagFunding      = 1
	flagOpenInterest = 2
)

// EncodeSnapshot serializes a market snapshot. Only the top BookDepth levels
// per side are kept and recent trades are dropped.
func EncodeSnapshot(dst []byte, snap schema.MarketSnapshot) []byte {
	dst = grow(dst, SnapshotPayloadSize)
	clear(dst)

	bids := snap.OrderBook.Bids
	if len(bids) > BookDepth {
		bids = bids[:BookDepth]
	}
	asks := snap.OrderBook.Asks
	if len(asks) > BookDepth {
		asks = asks[:BookDepth]
	}

	putText(dst[0:16], snap.Symbol)
	binary.LittleEndian.PutUint64(dst[16:24], uint64(snap.TimestampNs))
	dst[24] = byte(snap.Venue)
	dst[25] = byte(len(bids))
	dst[26] = byte(len(asks))
	binary.LittleEndian.PutUint64(dst[32:40], snap.OrderBook.Sequence)
	if snap.FundingRateBps != nil {
		dst[27] |= flagFunding
		putFloat(dst[40:48], *snap.FundingRateBps)
	}
	if snap.OpenInterest != nil {
		dst[27] |= flagOpenInterest
		putFloat(dst[48:56], *snap.OpenInterest)
	}
	putFloat(dst[56:64], snap.Volume24h)

	off := snapshotHeaderSize
	for _, lv := range bids {
		putFloat(dst[off:off+8], lv.Price)
		putFloat(dst[off+8:off+16], lv.Quantity)
		off += levelSize
	}
	off = snapshotHeaderSize + BookDepth*levelSize
	for _, lv := range asks {
		putFloat(dst[off:off+8], lv.Price)
		putFloat(dst[off+8:off+16], lv.Quantity)
		off += levelSize
	}

	return dst
}

// DecodeSnapshot parses a fixed-size snapshot payload.
func DecodeSnapshot(src []byte) (schema.MarketSnapshot, bool) {
	if len(src) < SnapshotPayloadSize {
		return schema.MarketSnapshot{}, false
	}
	nBids, nAsks := int(src[25]), int(src[26])
	if nBids > BookDepth || nAsks > BookDepth {
		return schema.MarketSnapshot{}, false
	}

	snap := schema.MarketSnapshot{
		Symbol:      readText(src[0:16]),
		TimestampNs: int64(binary.LittleEndian.Uint64(src[16:24])),
		Venue:       schema.Venue(src[24]),
		Volume24h:   readFloat(src[56:64]),
	}
	if src[27]&flagFunding != 0 {
		v := readFloat(src[40:48])
		snap.FundingRateBps = &v
	}
	if src[27]&flagOpenInterest != 0 {
		v := readFloat(src[48:56])
		snap.OpenInterest = &v
	}

	book := schema.OrderBook{
		Symbol:      snap.Symbol,
		TimestampNs: snap.TimestampNs,
		Sequence:    binary.LittleEndian.Uint64(src[32:40]),
		Bids:        make([]schema.Level, nBids),
		Asks:        make([]schema.Level, nAsks),
	}
	off := snapshotHeaderSize
	for i := range book.Bids {
		book.Bids[i] = schema.Level{Price: readFloat(src[off : off+8]), Quantity: readFloat(src[off+8 : off+16])}
		off += levelSize
	}
	off = snapshotHeaderSize + BookDepth*levelSize
	for i := range book.Asks {
		book.Asks[i] = schema.Level{Price: readFloat(src[off : off+8]), Quantity: readFloat(src[off+8 : off+16])}
		off += levelSize
	}
	snap.OrderBook = book

	return snap, true
}
