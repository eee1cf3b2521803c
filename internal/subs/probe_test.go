package subs

import (
	"context"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func TestProbeReceivesFirstEvent(t *testing.T) {
	srv := newGQLWSServer(t, func(ctx context.Context, conn *websocket.Conn, subID string, dial int) {
		_ = srvNext(ctx, conn, subID, `{"logFile":{"content":"hello"}}`)
		<-ctx.Done()
	})
	m := NewManager(testConfig(), testDialer(srv.url()), nil)
	defer func() { _ = m.Shutdown(context.Background()) }()

	v := Probe(context.Background(), m, Topic{Name: "logFile", Query: "subscription { logFile { content } }"}, 2*time.Second)
	if !v.OK || v.EventsSeen != 1 {
		t.Fatalf("unexpected verdict: %+v", v)
	}
	if v.StateReached != "streaming" {
		t.Fatalf("expected streaming, got %s", v.StateReached)
	}
	waitEmpty(t, m, time.Second)
}

func TestProbeTimeoutOnSilentTopic(t *testing.T) {
	srv := newGQLWSServer(t, func(ctx context.Context, conn *websocket.Conn, subID string, dial int) {
		<-ctx.Done() // never emits
	})
	m := NewManager(testConfig(), testDialer(srv.url()), nil)
	defer func() { _ = m.Shutdown(context.Background()) }()

	const maxWait = 200 * time.Millisecond
	start := time.Now()
	v := Probe(context.Background(), m, Topic{Name: "silent", Query: "subscription { silent }"}, maxWait)
	elapsed := time.Since(start)
	if v.OK || v.EventsSeen != 0 {
		t.Fatalf("unexpected verdict: %+v", v)
	}
	if elapsed > maxWait+300*time.Millisecond {
		t.Fatalf("probe overran max_wait: %v", elapsed)
	}
	// The deferred unsubscribe must leave no channel behind.
	waitEmpty(t, m, time.Second)
}

func TestProbeReportsChannelFailure(t *testing.T) {
	dial := func(ctx context.Context) (*websocket.Conn, string, error) {
		return nil, "", context.DeadlineExceeded
	}
	cfg := testConfig()
	cfg.MaxReconnectAttempts = 2
	m := NewManager(cfg, dial, nil)

	v := Probe(context.Background(), m, Topic{Name: "down", Query: "subscription { x }"}, 5*time.Second)
	if v.OK || v.Error == "" {
		t.Fatalf("expected failure verdict, got %+v", v)
	}
	if v.StateReached != "failed" {
		t.Fatalf("expected failed, got %s", v.StateReached)
	}
	waitEmpty(t, m, time.Second)
}

func TestProbeClosesChannelDespiteGracePeriod(t *testing.T) {
	srv := newGQLWSServer(t, func(ctx context.Context, conn *websocket.Conn, subID string, dial int) {
		<-ctx.Done() // never emits
	})
	cfg := testConfig()
	cfg.GraceClose = 5 * time.Second
	m := NewManager(cfg, testDialer(srv.url()), nil)
	defer func() { _ = m.Shutdown(context.Background()) }()

	start := time.Now()
	v := Probe(context.Background(), m, Topic{Name: "silent", Query: "subscription { silent }"}, 200*time.Millisecond)
	if v.OK {
		t.Fatalf("unexpected verdict: %+v", v)
	}
	// Teardown is immediate: the grace period applies to ordinary consumers,
	// never to the probe's throwaway channel.
	if got := m.Status(); len(got) != 0 {
		t.Fatalf("probe left channels registered: %+v", got)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("probe teardown waited on the grace period: %v", elapsed)
	}
}
