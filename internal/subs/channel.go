package subs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gaspardpetit/unraidlink/core/backoff"
	"github.com/gaspardpetit/unraidlink/internal/graphql"
)

var (
	errHandshakeRejected = errors.New("handshake rejected by server")
	errStreamComplete    = errors.New("stream completed by server")
)

// channel owns one live subscription: the duplex connection, the streaming
// handshake, and delivery of decoded events to every attached handle.
// Consumers never hold the channel itself, only handles.
type channel struct {
	mgr    *Manager
	topic  Topic
	fp     string
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger

	stopped chan struct{}

	mu           sync.Mutex
	state        State
	handles      map[string]*Handle
	seq          uint64
	attempts     int
	lastErr      error
	lastActivity time.Time
	grace        *time.Timer
	dead         bool
}

// Handle is a consumer's read-only view of a channel: a cancellable event
// sequence. The sequence closes after a terminal event; after Unsubscribe it
// simply stops receiving.
type Handle struct {
	ch     *channel
	id     string
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// Events returns the consumer's event sequence.
func (h *Handle) Events() <-chan Event { return h.events }

// Topic returns the topic this handle is subscribed to.
func (h *Handle) Topic() Topic { return h.ch.topic }

// State reports the current channel state.
func (h *Handle) State() State { return h.ch.State() }

func (h *Handle) close() {
	h.once.Do(func() { close(h.done) })
}

func newHandle(ch *channel) *Handle {
	return &Handle{
		ch:     ch,
		id:     uuid.NewString(),
		events: make(chan Event),
		done:   make(chan struct{}),
	}
}

// run drives the channel through its lifecycle until it closes or fails.
// It is the only goroutine that touches the connection or closes handle
// event channels.
func (c *channel) run() {
	defer c.finish()
	attempts := 0 // consecutive failed connection attempts
	for {
		c.setState(StateConnecting, attempts+1, nil)
		connected, err := c.connectAndStream()
		if c.ctx.Err() != nil {
			c.setState(StateClosed, 0, nil)
			return
		}
		if errors.Is(err, errStreamComplete) {
			c.deliver(Event{Terminal: true})
			c.setState(StateClosed, 0, nil)
			return
		}
		if errors.Is(err, errHandshakeRejected) {
			c.fail(attempts+1, err)
			return
		}
		if connected {
			// An established stream restores the full retry budget.
			// Consumers see the discontinuity instead of silently missing
			// events; the cursor restarts with the next connection, and the
			// marker precedes reconnect attempt 1.
			attempts = 0
			c.deliver(Event{Gap: true, Attempt: 1})
		} else {
			attempts++
		}
		c.noteError(attempts, err)
		if attempts >= c.mgr.cfg.MaxReconnectAttempts {
			c.fail(attempts, fmt.Errorf("retry budget exhausted after %d attempts: %w", attempts, err))
			return
		}
		c.setState(StateReconnecting, attempts, err)
		reconnectsTotal.Inc()
		select {
		case <-c.ctx.Done():
			c.setState(StateClosed, 0, nil)
			return
		case <-time.After(backoff.Delay(attempts-1, time.Second, c.mgr.cfg.MaxBackoff)):
		}
	}
}

// connectAndStream performs one connection attempt: dial, handshake,
// subscribe, then decode and deliver frames until the connection ends.
// The bool reports whether streaming was reached, which resets the retry
// budget.
func (c *channel) connectAndStream() (bool, error) {
	dialCtx, cancelDial := context.WithTimeout(c.ctx, c.mgr.cfg.ConnectTimeout)
	conn, proto, err := c.mgr.dial(dialCtx)
	cancelDial()
	if err != nil {
		return false, err
	}
	subscribedID := ""
	defer func() {
		if subscribedID != "" && c.ctx.Err() != nil {
			// Cancelled while streaming; tell the server to stop before
			// dropping the connection.
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = writeFrame(sctx, conn, graphql.CompleteFrame(subscribedID, proto))
			cancel()
		}
		_ = conn.Close(websocket.StatusNormalClosure, "closing")
	}()

	if err := writeFrame(c.ctx, conn, graphql.InitFrame(c.mgr.cfg.APIKey)); err != nil {
		return false, err
	}
	ackCtx, cancelAck := context.WithTimeout(c.ctx, c.mgr.cfg.ConnectTimeout)
	err = awaitAck(ackCtx, conn)
	cancelAck()
	if err != nil {
		return false, err
	}

	id := uuid.NewString()
	start := graphql.SubscribeFrame(id, proto, graphql.Request{
		Query:     c.topic.Query,
		Variables: c.topic.Variables,
	})
	if err := writeFrame(c.ctx, conn, start); err != nil {
		return false, err
	}
	subscribedID = id
	c.log.Info().Str("proto", proto).Msg("subscription streaming")
	c.resetCursor()
	c.setState(StateStreaming, 0, nil)

	nextType := graphql.NextType(proto)
	for {
		// Backpressure lives here: deliver blocks until every consumer is
		// ready, so unread frames stay in the transport.
		_, data, err := conn.Read(c.ctx)
		if err != nil {
			return true, err
		}
		f, err := graphql.DecodeFrame(data)
		if err != nil {
			c.logMalformed(err)
			return true, err
		}
		c.touch()
		switch f.Type {
		case nextType:
			if f.ID != id {
				continue
			}
			env, err := graphql.DecodeResponse(f.Payload)
			if err != nil {
				c.logMalformed(err)
				return true, err
			}
			c.deliver(Event{Seq: c.nextSeq(), Data: env.Data, Errors: env.Errors})
			eventsTotal.Inc()
		case graphql.MsgPing:
			_ = writeFrame(c.ctx, conn, graphql.Frame{Type: graphql.MsgPong})
		case graphql.MsgKeepAlive, graphql.MsgPong, graphql.MsgConnectionAck:
			// keepalive noise
		case graphql.MsgError:
			if f.ID != id {
				continue
			}
			errs := graphql.DecodeErrorPayload(f.Payload)
			return true, fmt.Errorf("subscription error: %s", errs[0].Message)
		case graphql.MsgComplete, graphql.MsgStop:
			if f.ID != id {
				continue
			}
			return true, errStreamComplete
		default:
			c.log.Debug().Str("type", f.Type).Msg("unhandled frame type")
		}
	}
}

// awaitAck reads handshake frames until the server acknowledges the
// connection. A connection_error is an authentication rejection and is not
// retried.
func awaitAck(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		f, err := graphql.DecodeFrame(data)
		if err != nil {
			return err
		}
		switch f.Type {
		case graphql.MsgConnectionAck:
			return nil
		case graphql.MsgConnectionError:
			return fmt.Errorf("%w: %s", errHandshakeRejected, string(f.Payload))
		default:
			// Some servers interleave keepalives before the ack.
		}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, f graphql.Frame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// deliver fans one event out to every attached handle, blocking until each
// consumer takes it or goes away.
func (c *channel) deliver(ev Event) {
	c.mu.Lock()
	hs := make([]*Handle, 0, len(c.handles))
	for _, h := range c.handles {
		hs = append(hs, h)
	}
	c.mu.Unlock()
	for _, h := range hs {
		select {
		case h.events <- ev:
		case <-h.done:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *channel) attach(h *Handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead || c.state == StateClosed || c.state == StateFailed {
		return false
	}
	c.handles[h.id] = h
	if c.grace != nil {
		c.grace.Stop()
		c.grace = nil
	}
	return true
}

// detach removes one consumer. The last consumer leaving arms the grace
// timer so a quick re-subscribe does not force a reconnect.
func (c *channel) detach(h *Handle) {
	h.close()
	c.mu.Lock()
	delete(c.handles, h.id)
	idle := len(c.handles) == 0 && !c.dead
	grace := c.mgr.cfg.GraceClose
	if idle && grace > 0 {
		c.grace = time.AfterFunc(grace, func() {
			c.mu.Lock()
			stillIdle := len(c.handles) == 0 && !c.dead
			c.mu.Unlock()
			if stillIdle {
				c.cancel()
			}
		})
	}
	c.mu.Unlock()
	if idle && grace <= 0 {
		c.cancel()
	}
}

// detachNow removes one consumer and, when it was the last, closes the
// channel immediately instead of arming the grace timer, returning only once
// the channel has left the registry. The probe releases its throwaway
// channel this way so nothing outlives the verdict.
func (c *channel) detachNow(h *Handle) {
	h.close()
	c.mu.Lock()
	delete(c.handles, h.id)
	idle := len(c.handles) == 0 && !c.dead
	c.mu.Unlock()
	if !idle {
		return
	}
	c.cancel()
	<-c.stopped
}

func (c *channel) fail(attempts int, err error) {
	channelFailuresTotal.Inc()
	c.noteError(attempts, err)
	c.setState(StateFailed, attempts, err)
	c.deliver(Event{Terminal: true, Err: err})
}

// finish runs exactly once when the run loop exits: the channel leaves the
// registry and every still-attached sequence is closed.
func (c *channel) finish() {
	c.mgr.remove(c)
	c.mu.Lock()
	c.dead = true
	if c.grace != nil {
		c.grace.Stop()
		c.grace = nil
	}
	hs := c.handles
	c.handles = map[string]*Handle{}
	c.mu.Unlock()
	for _, h := range hs {
		close(h.events)
	}
	close(c.stopped)
}

func (c *channel) setState(s State, attempt int, err error) {
	c.mu.Lock()
	from := c.state
	c.state = s
	c.mu.Unlock()
	if from == s {
		return
	}
	c.mgr.emit(StateEvent{
		Topic:       c.topic.Name,
		Fingerprint: c.fp,
		From:        from,
		To:          s,
		Attempt:     attempt,
		Err:         err,
		Time:        time.Now(),
	})
}

// State returns the channel's current lifecycle state.
func (c *channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *channel) resetCursor() {
	c.mu.Lock()
	c.seq = 0
	c.mu.Unlock()
}

func (c *channel) nextSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

func (c *channel) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

func (c *channel) noteError(attempts int, err error) {
	c.mu.Lock()
	c.attempts = attempts
	c.lastErr = err
	c.mu.Unlock()
}

func (c *channel) logMalformed(err error) {
	var me *graphql.MalformedError
	if errors.As(err, &me) {
		c.log.Error().Str("payload", me.Preview()).Msg("malformed subscription frame")
	}
}
