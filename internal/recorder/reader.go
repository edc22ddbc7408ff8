package recorder

import (
	"bufio"
	"encoding/binary"
	"io"

	"hft/internal/schema"
)

// Reader decodes WAL records sequentially.
type Reader struct {
	r        *bufio.Reader
	verify   bool
	header   []byte
	payload  []byte
	checksum [recordChecksumSize]byte
}

// NewReader wraps r. When verify is false the CRC is not checked.
func NewReader(r io.Reader, verify bool) *Reader {
	return &Reader{
		r:      bufio.NewReader(r),
		verify: verify,
		header: make([]byte, recordHeaderSize),
	}
}

// Next returns the next record. The payload is only valid until the next call.
// A clean end of file returns io.EOF; a torn tail returns io.ErrUnexpectedEOF.
func (r *Reader) Next() (schema.EventHeader, []byte, error) {
	if _, err := io.ReadFull(r.r, r.header); err != nil {
		return schema.EventHeader{}, nil, err
	}
	header, n, err := decodeHeader(r.header)
	if err != nil {
		return header, nil, err
	}
	if n > maxPayloadLen {
		return header, nil, ErrPayloadTooLarge
	}

	if cap(r.payload) < int(n) {
		r.payload = make([]byte, n)
	}
	r.payload = r.payload[:n]
	if _, err := io.ReadFull(r.r, r.payload); err != nil {
		return header, nil, unexpected(err)
	}
	if _, err := io.ReadFull(r.r, r.checksum[:]); err != nil {
		return header, nil, unexpected(err)
	}
	if r.verify && binary.LittleEndian.Uint32(r.checksum[:]) != checksum(r.header, r.payload) {
		return header, nil, ErrChecksumMismatch
	}
	return header, r.payload, nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
