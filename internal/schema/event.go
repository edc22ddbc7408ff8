package schema

// EventVersion is the current WAL payload version.
const EventVersion uint16 = 1

// EventHeader is the metadata attached to every WAL record.
type EventHeader struct {
	Type    EventType
	Version uint16
	Venue   Venue
	Flags   uint16
	Seq     uint64
	TsEvent int64
	TsRecv  int64
	TraceID uint64
}

func NewHeader(eventType EventType, venue Venue, seq uint64, tsEvent, tsRecv int64) EventHeader {
	return EventHeader{
		Type:    eventType,
		Version: EventVersion,
		Venue:   venue,
		Seq:     seq,
		TsEvent: tsEvent,
		TsRecv:  tsRecv,
	}
}
