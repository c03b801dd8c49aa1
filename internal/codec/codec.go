package codec

import (
	"encoding/json"

	"bookstrat/internal/schema"
	"bookstrat/pkg/exception"
	"bookstrat/pkg/scanner"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

// Encode serializes an event or an order intent and reports its journal type.
func Encode(v any) (schema.EventType, []byte, error) {
	var t schema.EventType
	switch x := v.(type) {
	case schema.Event:
		t = x.Kind()
	case schema.OrderIntent:
		t = schema.EventOrderIntent
	default:
		return schema.EventUnknown, nil, exception.ErrUnknownEventType
	}

	payload, err := sonic.Marshal(v)
	if err != nil {
		return t, nil, errors.Wrapf(err, "marshal %s", t)
	}
	return t, payload, nil
}

// DecodeEvent parses an inbound event payload of type t.
func DecodeEvent(t schema.EventType, payload []byte) (schema.Event, error) {
	if len(payload) == 0 {
		return nil, exception.ErrEmptyPayload
	}
	switch t {
	case schema.EventStateUpdate:
		return decodeAs[schema.StateUpdate](t, payload)
	case schema.EventParameterUpdate:
		return decodeAs[schema.ParameterUpdate](t, payload)
	case schema.EventTradePrint:
		return decodeAs[schema.TradePrint](t, payload)
	case schema.EventBar:
		return decodeAs[schema.Bar](t, payload)
	case schema.EventBookUpdate:
		return decodeAs[schema.BookUpdate](t, payload)
	case schema.EventInstrumentStatus:
		return decodeAs[schema.InstrumentStatus](t, payload)
	case schema.EventPositionSnapshot:
		return decodeAs[schema.PositionSnapshot](t, payload)
	case schema.EventPreAcknowledge:
		return decodeAs[schema.PreAcknowledge](t, payload)
	case schema.EventAcknowledge:
		return decodeAs[schema.Acknowledge](t, payload)
	case schema.EventFill:
		return decodeAs[schema.Fill](t, payload)
	case schema.EventCancel:
		return decodeAs[schema.Cancel](t, payload)
	case schema.EventReject:
		return decodeAs[schema.Reject](t, payload)
	case schema.EventOrderDetails:
		return decodeAs[schema.OrderDetails](t, payload)
	default:
		return nil, exception.ErrUnknownEventType
	}
}

// DecodeIntent parses an order intent payload.
func DecodeIntent(payload []byte) (schema.OrderIntent, error) {
	var intent schema.OrderIntent
	if len(payload) == 0 {
		return intent, exception.ErrEmptyPayload
	}
	if err := sonic.Unmarshal(payload, &intent); err != nil {
		return intent, errors.Wrap(err, "unmarshal order intent")
	}
	return intent, nil
}

func decodeAs[T schema.Event](t schema.EventType, payload []byte) (schema.Event, error) {
	var v T
	if err := sonic.Unmarshal(payload, &v); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s", t)
	}
	return v, nil
}

// Envelope is the framing of one feed message: {"type": "fill", "data": {...}}.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodeEnvelope frames an event for the feed.
func EncodeEnvelope(evt schema.Event) ([]byte, error) {
	t, payload, err := Encode(evt)
	if err != nil {
		return nil, err
	}
	return sonic.Marshal(Envelope{Type: t.String(), Data: payload})
}

// DecodeEnvelope parses the event carried by an envelope.
func DecodeEnvelope(env Envelope) (schema.Event, error) {
	t := schema.ParseEventType(env.Type)
	if t == schema.EventUnknown || t == schema.EventOrderIntent {
		return nil, exception.ErrUnknownEventType
	}
	return DecodeEvent(t, env.Data)
}

var typeKey = []byte(`"type"`)

// PeekType reads the envelope type of a raw feed message without decoding its data.
// The first "type" key wins, so the envelope type must precede data.
func PeekType(raw []byte) schema.EventType {
	t, ok := scanner.StringField(raw, typeKey)
	if !ok {
		return schema.EventUnknown
	}
	return schema.ParseEventType(string(t))
}

// DecodeEnvelopeBytes parses a raw feed message.
func DecodeEnvelopeBytes(raw []byte) (schema.Event, error) {
	if t := PeekType(raw); t == schema.EventUnknown || t == schema.EventOrderIntent {
		return nil, exception.ErrUnknownEventType
	}
	var env Envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(err, "unmarshal envelope")
	}
	return DecodeEnvelope(env)
}
