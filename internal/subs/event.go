package subs

import (
	"encoding/json"

	"github.com/gaspardpetit/unraidlink/internal/graphql"
)

// Topic names what to subscribe to: an operation document plus variables.
// It identifies a stream, not a live connection.
type Topic struct {
	Name      string
	Query     string
	Variables map[string]any
}

// Fingerprint derives the deduplication key for a topic: channels are shared
// per distinct topic+variables combination. Variables are canonicalized via
// JSON encoding, which sorts map keys.
func (t Topic) Fingerprint() string {
	if len(t.Variables) == 0 {
		return t.Name
	}
	b, _ := json.Marshal(t.Variables)
	return t.Name + "|" + string(b)
}

// Event is one item on a consumer's sequence.
//
// Ordinary events carry Data (and possibly remote Errors) with a cursor that
// is monotonically increasing within one connection instance and restarts at
// 1 after a reconnect. A Gap event marks the reconnect discontinuity. A
// Terminal event is the last item before the sequence closes: either the
// channel failed (Err set) or the server completed the stream.
type Event struct {
	Seq      uint64
	Data     json.RawMessage
	Errors   []graphql.Error
	Gap      bool
	Attempt  int
	Terminal bool
	Err      error
}
