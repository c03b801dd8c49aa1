package schema

// SchemaVersion is the current event schema version.
const SchemaVersion uint16 = 1

// EventType defines the category of an event stored in the journal.
type EventType uint16

const (
	EventUnknown EventType = iota
	EventStateUpdate
	EventParameterUpdate
	EventTradePrint
	EventBar
	EventBookUpdate
	EventInstrumentStatus
	EventPositionSnapshot
	EventPreAcknowledge
	EventAcknowledge
	EventFill
	EventCancel
	EventReject
	EventOrderDetails
	EventOrderIntent
)

// MaxEventType is the highest defined event type.
const MaxEventType = EventOrderIntent

var eventTypeNames = [...]string{
	EventUnknown:          "unknown",
	EventStateUpdate:      "state_update",
	EventParameterUpdate:  "parameter_update",
	EventTradePrint:       "trade_print",
	EventBar:              "bar",
	EventBookUpdate:       "book_update",
	EventInstrumentStatus: "instrument_status",
	EventPositionSnapshot: "position_snapshot",
	EventPreAcknowledge:   "pre_acknowledge",
	EventAcknowledge:      "acknowledge",
	EventFill:             "fill",
	EventCancel:           "cancel",
	EventReject:           "reject",
	EventOrderDetails:     "order_details",
	EventOrderIntent:      "order_intent",
}

func (t EventType) String() string {
	if int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return eventTypeNames[EventUnknown]
}

// ParseEventType maps a wire name back to its type.
func ParseEventType(name string) EventType {
	for i, n := range eventTypeNames {
		if n == name {
			return EventType(i)
		}
	}
	return EventUnknown
}

// EventHeader is the common metadata attached to every journaled record.
type EventHeader struct {
	Type    EventType
	Version uint16
	Source  uint16
	Flags   uint16
	Seq     uint64
	TsEvent int64
	TsRecv  int64
	TraceID uint64
}

// NewHeader builds a header with the current schema version.
func NewHeader(eventType EventType, source uint16, seq uint64, tsEvent, tsRecv int64) EventHeader {
	return EventHeader{
		Type:    eventType,
		Version: SchemaVersion,
		Source:  source,
		Seq:     seq,
		TsEvent: tsEvent,
		TsRecv:  tsRecv,
	}
}

const (
	SourceFeed uint16 = iota + 1
	SourceVenue
	SourceStrategy
	SourceReplay
)
