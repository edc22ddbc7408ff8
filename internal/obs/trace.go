package obs

import (
	"sync/atomic"
	"time"
)

// TraceGenerator hands out increasing trace IDs for WAL records.
type TraceGenerator struct {
	next uint64
}

// NewTraceGenerator seeds the generator; zero seeds from the wall clock.
func NewTraceGenerator(seed uint64) *TraceGenerator {
	if seed == 0 {
		seed = uint64(time.Now().UTC().UnixNano())
	}
	return &TraceGenerator{next: seed}
}

func (g *TraceGenerator) Next() uint64 {
	if g == nil {
		return 0
	}
	return atomic.AddUint64(&g.next, 1)
}
