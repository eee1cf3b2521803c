package subs

import "time"

// State is the lifecycle position of a subscription channel.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateReconnecting
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// StateEvent is one observable transition, emitted for logging and
// diagnostics, never for payload delivery.
type StateEvent struct {
	Topic       string
	Fingerprint string
	From        State
	To          State
	Attempt     int
	Err         error
	Time        time.Time
}

// Observer receives channel state transitions. It must not block.
type Observer func(StateEvent)
