package recorder

import (
	"sync/atomic"
	"time"

	"hft/internal/codec"
	"hft/internal/obs"
	"hft/internal/schema"
)

// Log stamps sequence numbers and trace IDs on engine events and hands the
// encoded records to a Writer.
type Log struct {
	w     *Writer
	seq   atomic.Uint64
	trace *obs.TraceGenerator
}

func NewLog(w *Writer, trace *obs.TraceGenerator) *Log {
	return &Log{w: w, trace: trace}
}

func (l *Log) header(t schema.EventType, venue schema.Venue, tsEvent int64) schema.EventHeader {
	h := schema.NewHeader(t, venue, l.seq.Add(1), tsEvent, time.Now().UnixNano())
	h.TraceID = l.trace.Next()
	return h
}

// LastSeq returns the sequence number of the last appended record.
func (l *Log) LastSeq() uint64 {
	return l.seq.Load()
}

func (l *Log) Snapshot(snap schema.MarketSnapshot) error {
	return l.w.TryAppend(l.header(schema.EventTypeSnapshot, snap.Venue, snap.TimestampNs), codec.EncodeSnapshot(nil, snap))
}

func (l *Log) Decision(venue schema.Venue, pred schema.Prediction, decision schema.RouteDecision) error {
	return l.w.TryAppend(l.header(schema.EventTypeDecision, venue, pred.TimestampNs), codec.EncodeDecision(nil, pred, decision))
}

func (l *Log) Order(venue schema.Venue, req schema.OrderRequest, tsNs int64) error {
	return l.w.TryAppend(l.header(schema.EventTypeOrder, venue, tsNs), codec.EncodeOrder(nil, req))
}

func (l *Log) Fill(fill schema.Fill) error {
	return l.w.TryAppend(l.header(schema.EventTypeFill, fill.Venue, fill.TimestampNs), codec.EncodeFill(nil, fill))
}

// Resume continues numbering after seq, typically the LastSeq of a recovered snapshot.
func (l *Log) Resume(seq uint64) {
	l.seq.Store(seq)
}
