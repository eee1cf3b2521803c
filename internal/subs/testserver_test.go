package subs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/gaspardpetit/unraidlink/internal/config"
	"github.com/gaspardpetit/unraidlink/internal/graphql"
)

// gqlwsServer is a minimal in-test graphql-transport-ws endpoint. Each
// accepted connection is handed to the behavior func along with the
// subscription id once the handshake completed.
type gqlwsServer struct {
	srv   *httptest.Server
	dials atomic.Int32
}

func newGQLWSServer(t *testing.T, behave func(ctx context.Context, conn *websocket.Conn, subID string, dial int)) *gqlwsServer {
	t.Helper()
	s := &gqlwsServer{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: []string{graphql.ProtocolGraphQLWS, graphql.ProtocolLegacy},
		})
		if err != nil {
			return
		}
		dial := int(s.dials.Add(1))
		ctx := r.Context()
		subID, err := serveHandshake(ctx, conn)
		if err != nil {
			_ = conn.Close(websocket.StatusInternalError, "handshake")
			return
		}
		behave(ctx, conn, subID, dial)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *gqlwsServer) url() string {
	return "ws://" + s.srv.Listener.Addr().String()
}

// serveHandshake consumes connection_init, acknowledges it, and returns the
// id of the first subscribe frame.
func serveHandshake(ctx context.Context, conn *websocket.Conn) (string, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return "", err
	}
	var init graphql.Frame
	if err := json.Unmarshal(data, &init); err != nil {
		return "", err
	}
	if err := srvWrite(ctx, conn, graphql.Frame{Type: graphql.MsgConnectionAck}); err != nil {
		return "", err
	}
	_, data, err = conn.Read(ctx)
	if err != nil {
		return "", err
	}
	var sub graphql.Frame
	if err := json.Unmarshal(data, &sub); err != nil {
		return "", err
	}
	return sub.ID, nil
}

func srvWrite(ctx context.Context, conn *websocket.Conn, f graphql.Frame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

func srvNext(ctx context.Context, conn *websocket.Conn, id, data string) error {
	return srvWrite(ctx, conn, graphql.Frame{
		ID:      id,
		Type:    graphql.MsgNext,
		Payload: json.RawMessage(`{"data":` + data + `}`),
	})
}

func testConfig() *config.Config {
	return &config.Config{
		APIKey:               "test-key",
		ConnectTimeout:       2 * time.Second,
		MaxReconnectAttempts: 3,
		MaxBackoff:           20 * time.Millisecond,
		GraceClose:           0,
	}
}

func testDialer(url string) DialFunc {
	return func(ctx context.Context) (*websocket.Conn, string, error) {
		conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
			Subprotocols: []string{graphql.ProtocolGraphQLWS, graphql.ProtocolLegacy},
		})
		if err != nil {
			return nil, "", err
		}
		return conn, conn.Subprotocol(), nil
	}
}

// waitEmpty polls the registry until no channels remain.
func waitEmpty(t *testing.T, m *Manager, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(m.Status()) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("channels still registered: %+v", m.Status())
}
