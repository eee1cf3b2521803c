package subs

import (
	"context"
	"time"
)

// ProbeVerdict is the structured outcome of one end-to-end subscription
// probe.
type ProbeVerdict struct {
	OK           bool          `json:"ok"`
	EventsSeen   int           `json:"events_seen"`
	StateReached string        `json:"state_reached"`
	Elapsed      time.Duration `json:"elapsed"`
	Error        string        `json:"error,omitempty"`
}

// Probe drives a throwaway subscription end to end: open, wait up to maxWait
// for the first event or a terminal failure, then release. Teardown bypasses
// the grace period, so no channel survives the probe on either the success
// or the failure path.
func Probe(ctx context.Context, m *Manager, t Topic, maxWait time.Duration) ProbeVerdict {
	start := time.Now()
	v := ProbeVerdict{StateReached: StateIdle.String()}
	h, err := m.Subscribe(t)
	if err != nil {
		v.Error = err.Error()
		v.Elapsed = time.Since(start)
		return v
	}
	defer h.ch.detachNow(h)

	timer := time.NewTimer(maxWait)
	defer timer.Stop()
	for {
		select {
		case ev, ok := <-h.Events():
			if !ok {
				v.StateReached = h.State().String()
				v.Elapsed = time.Since(start)
				return v
			}
			if ev.Gap {
				continue
			}
			if ev.Terminal {
				if ev.Err != nil {
					v.Error = ev.Err.Error()
				}
				v.StateReached = h.State().String()
				v.Elapsed = time.Since(start)
				return v
			}
			v.OK = true
			v.EventsSeen++
			v.StateReached = h.State().String()
			v.Elapsed = time.Since(start)
			return v
		case <-timer.C:
			v.StateReached = h.State().String()
			v.Elapsed = time.Since(start)
			return v
		case <-ctx.Done():
			v.Error = ctx.Err().Error()
			v.StateReached = h.State().String()
			v.Elapsed = time.Since(start)
			return v
		}
	}
}
