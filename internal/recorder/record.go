package recorder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"

	"hft/internal/schema"
)

// Record layout: 48-byte header, payload, CRC32C over header and payload.
const (
	recordVersion      uint8 = 1
	recordHeaderSize         = 48
	recordChecksumSize       = 4
)

var (
	recordMagic = [4]byte{'H', 'F', 'T', 'W'}
	crcTable    = crc32.MakeTable(crc32.Castagnoli)
)

var (
	ErrInvalidMagic       = errors.New("wal: invalid magic")
	ErrUnsupportedVersion = errors.New("wal: unsupported record version")
	ErrChecksumMismatch   = errors.New("wal: checksum mismatch")
	ErrPayloadTooLarge    = errors.New("wal: payload too large")
	errShortRecordHeader  = errors.New("wal: short record header")
)

func encodeHeader(dst []byte, h schema.EventHeader, payloadLen int) {
	_ = dst[recordHeaderSize-1]
	copy(dst[0:4], recordMagic[:])
	dst[4] = recordVersion
	dst[5] = byte(h.Venue)
	binary.LittleEndian.PutUint16(dst[6:8], uint16(h.Type))
	binary.LittleEndian.PutUint16(dst[8:10], h.Version)
	binary.LittleEndian.PutUint16(dst[10:12], h.Flags)
	binary.LittleEndian.PutUint32(dst[12:16], uint32(payloadLen))
	binary.LittleEndian.PutUint64(dst[16:24], h.Seq)
	binary.LittleEndian.PutUint64(dst[24:32], uint64(h.TsEvent))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(h.TsRecv))
	binary.LittleEndian.PutUint64(dst[40:48], h.TraceID)
}

func decodeHeader(src []byte) (schema.EventHeader, uint32, error) {
	if len(src) < recordHeaderSize {
		return schema.EventHeader{}, 0, errShortRecordHeader
	}
	if !bytes.Equal(src[0:4], recordMagic[:]) {
		return schema.EventHeader{}, 0, ErrInvalidMagic
	}
	if src[4] != recordVersion {
		return schema.EventHeader{}, 0, ErrUnsupportedVersion
	}
	h := schema.EventHeader{
		Venue:   schema.Venue(src[5]),
		Type:    schema.EventType(binary.LittleEndian.Uint16(src[6:8])),
		Version: binary.LittleEndian.Uint16(src[8:10]),
		Flags:   binary.LittleEndian.Uint16(src[10:12]),
		Seq:     binary.LittleEndian.Uint64(src[16:24]),
		TsEvent: int64(binary.LittleEndian.Uint64(src[24:32])),
		TsRecv:  int64(binary.LittleEndian.Uint64(src[32:40])),
		TraceID: binary.LittleEndian.Uint64(src[40:48]),
	}
	return h, binary.LittleEndian.Uint32(src[12:16]), nil
}

func checksum(header, payload []byte) uint32 {
	crc := crc32.Update(0, crcTable, header)
	return crc32.Update(crc, crcTable, payload)
}
