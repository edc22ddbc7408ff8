package codec

import (
	"bytes"
	"encoding/binary"
	"math"
)

const (
	symbolSize = 16
	idSize     = 40
)

// putText copies s into a fixed-width slot, truncating and zero padding.
func putText(dst []byte, s string) {
	n := copy(dst, s)
	clear(dst[n:])
}

func readText(src []byte) string {
	if i := bytes.IndexByte(src, 0); i >= 0 {
		src = src[:i]
	}
	return string(src)
}

func putFloat(dst []byte, v float64) {
	binary.LittleEndian.PutUint64(dst, math.Float64bits(v))
}

func readFloat(src []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(src))
}

func putBool(dst []byte, v bool) {
	if v {
		dst[0] = 1
		return
	}
	dst[0] = 0
}

func grow(dst []byte, size int) []byte {
	if cap(dst) < size {
		return make([]byte, size)
	}
	return dst[:size]
}
