package graphql

import (
	"encoding/json"
)

// WebSocket subprotocols. The modern protocol is preferred during the dial;
// the legacy one is kept for older API versions.
const (
	ProtocolGraphQLWS = "graphql-transport-ws"
	ProtocolLegacy    = "graphql-ws"
)

// Frame types for graphql-transport-ws, with the legacy graphql-ws aliases.
const (
	MsgConnectionInit  = "connection_init"
	MsgConnectionAck   = "connection_ack"
	MsgConnectionError = "connection_error" // legacy
	MsgPing            = "ping"
	MsgPong            = "pong"
	MsgKeepAlive       = "ka" // legacy
	MsgSubscribe       = "subscribe"
	MsgStart           = "start" // legacy
	MsgNext            = "next"
	MsgData            = "data" // legacy
	MsgError           = "error"
	MsgComplete        = "complete"
	MsgStop            = "stop" // legacy
)

// Frame is one message on the streaming transport.
type Frame struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeFrame parses a pushed frame. A frame without a type violates both
// protocol revisions.
func DecodeFrame(b []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, &MalformedError{Reason: "frame is not a JSON object", Raw: b}
	}
	if f.Type == "" {
		return nil, &MalformedError{Reason: "frame missing type", Raw: b}
	}
	return &f, nil
}

// InitFrame builds the connection_init message. The API key is carried in
// every header variant the server is known to accept.
func InitFrame(apiKey string) Frame {
	if apiKey == "" {
		return Frame{Type: MsgConnectionInit}
	}
	payload, _ := json.Marshal(map[string]any{
		"x-api-key":     apiKey,
		"Authorization": "Bearer " + apiKey,
	})
	return Frame{Type: MsgConnectionInit, Payload: payload}
}

// SubscribeFrame builds the subscription start message for the negotiated
// protocol.
func SubscribeFrame(id, proto string, req Request) Frame {
	t := MsgSubscribe
	if proto == ProtocolLegacy {
		t = MsgStart
	}
	payload, _ := json.Marshal(req)
	return Frame{ID: id, Type: t, Payload: payload}
}

// CompleteFrame builds the client-side stop message for the negotiated
// protocol.
func CompleteFrame(id, proto string) Frame {
	t := MsgComplete
	if proto == ProtocolLegacy {
		t = MsgStop
	}
	return Frame{ID: id, Type: t}
}

// NextType returns the data-bearing frame type for the negotiated protocol.
func NextType(proto string) string {
	if proto == ProtocolLegacy {
		return MsgData
	}
	return MsgNext
}

// DecodeErrorPayload parses the payload of an error frame, which is an error
// list in the modern protocol and a single error object in the legacy one.
func DecodeErrorPayload(payload json.RawMessage) []Error {
	var list []Error
	if err := json.Unmarshal(payload, &list); err == nil && len(list) > 0 {
		return list
	}
	var one Error
	if err := json.Unmarshal(payload, &one); err == nil && one.Message != "" {
		return []Error{one}
	}
	return []Error{{Message: string(payload)}}
}
