// Package subs implements the subscription side of the connector: channels
// that own one live GraphQL subscription each, and the manager that creates,
// deduplicates, supervises, and tears them down.
package subs

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gaspardpetit/unraidlink/core/logx"
	"github.com/gaspardpetit/unraidlink/internal/config"
)

// ErrShutdown is returned by Subscribe after Shutdown has been called.
var ErrShutdown = errors.New("subscription manager is shut down")

// Manager is the process-wide registry of live subscription channels,
// constructed once at startup and passed to every component that needs it.
// The registry is the only shared mutable state; it is mutated exclusively
// here, under a single lock, so create-if-absent is atomic per fingerprint.
type Manager struct {
	cfg      *config.Config
	dial     DialFunc
	observer Observer
	log      zerolog.Logger

	mu       sync.Mutex
	channels map[string]*channel
	closed   bool
	wg       sync.WaitGroup
}

// NewManager builds a manager. The observer may be nil; the dialer is
// typically NewDialer(cfg) but is injectable.
func NewManager(cfg *config.Config, dial DialFunc, obs Observer) *Manager {
	return &Manager{
		cfg:      cfg,
		dial:     dial,
		observer: obs,
		log:      logx.Log.With().Str("component", "subs").Logger(),
		channels: map[string]*channel{},
	}
}

// Subscribe attaches a consumer to the live channel for the topic's
// fingerprint, creating the channel when none exists. Multiple concurrent
// subscribers to the same fingerprint share one underlying connection; each
// receives every event delivered after its subscription time.
func (m *Manager) Subscribe(t Topic) (*Handle, error) {
	fp := t.Fingerprint()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrShutdown
	}
	for {
		ch, ok := m.channels[fp]
		if !ok {
			ch = m.newChannel(t, fp)
			m.channels[fp] = ch
			activeChannelsGauge.Inc()
			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				ch.run()
			}()
		}
		h := newHandle(ch)
		if ch.attach(h) {
			return h, nil
		}
		// The channel is terminating; drop it and start fresh.
		delete(m.channels, fp)
	}
}

// Unsubscribe detaches one consumer. A channel left with no consumers is
// closed after the configured grace period.
func (m *Manager) Unsubscribe(h *Handle) {
	if h == nil {
		return
	}
	h.ch.detach(h)
}

// Shutdown cancels every live channel and waits for all of them to report
// closure, so no background network activity survives teardown.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	for _, ch := range m.channels {
		ch.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.log.Info().Msg("all subscription channels closed")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ChannelStatus is a diagnostic snapshot of one live channel.
type ChannelStatus struct {
	Topic        string    `json:"topic"`
	Fingerprint  string    `json:"fingerprint"`
	State        string    `json:"state"`
	Consumers    int       `json:"consumers"`
	Attempts     int       `json:"reconnect_attempts"`
	LastError    string    `json:"last_error,omitempty"`
	LastActivity time.Time `json:"last_activity,omitzero"`
}

// Status reports every registered channel, sorted by fingerprint.
func (m *Manager) Status() []ChannelStatus {
	m.mu.Lock()
	chans := make([]*channel, 0, len(m.channels))
	for _, ch := range m.channels {
		chans = append(chans, ch)
	}
	m.mu.Unlock()

	out := make([]ChannelStatus, 0, len(chans))
	for _, ch := range chans {
		ch.mu.Lock()
		st := ChannelStatus{
			Topic:        ch.topic.Name,
			Fingerprint:  ch.fp,
			State:        ch.state.String(),
			Consumers:    len(ch.handles),
			Attempts:     ch.attempts,
			LastActivity: ch.lastActivity,
		}
		if ch.lastErr != nil {
			st.LastError = ch.lastErr.Error()
		}
		ch.mu.Unlock()
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fingerprint < out[j].Fingerprint })
	return out
}

func (m *Manager) newChannel(t Topic, fp string) *channel {
	ctx, cancel := context.WithCancel(context.Background())
	return &channel{
		mgr:     m,
		topic:   t,
		fp:      fp,
		ctx:     ctx,
		cancel:  cancel,
		log:     m.log.With().Str("topic", t.Name).Logger(),
		handles: map[string]*Handle{},
		stopped: make(chan struct{}),
	}
}

func (m *Manager) remove(c *channel) {
	m.mu.Lock()
	if cur, ok := m.channels[c.fp]; ok && cur == c {
		delete(m.channels, c.fp)
	}
	m.mu.Unlock()
	activeChannelsGauge.Dec()
}

// emit publishes one state transition to the log and the observer.
func (m *Manager) emit(ev StateEvent) {
	lvl := m.log.Debug()
	if ev.To == StateFailed {
		lvl = m.log.Error()
	} else if ev.To == StateReconnecting {
		lvl = m.log.Warn()
	}
	lvl.Str("topic", ev.Topic).
		Stringer("from", ev.From).
		Stringer("to", ev.To).
		Int("attempt", ev.Attempt).
		Err(ev.Err).
		Msg("subscription state change")
	if m.observer != nil {
		m.observer(ev)
	}
}
