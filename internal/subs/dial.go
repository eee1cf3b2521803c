package subs

import (
	"context"
	"net/http"

	"github.com/coder/websocket"

	"github.com/gaspardpetit/unraidlink/internal/config"
	"github.com/gaspardpetit/unraidlink/internal/graphql"
)

// DialFunc opens one duplex connection to the streaming endpoint and returns
// the connection plus the negotiated subprotocol. Injectable for tests.
type DialFunc func(ctx context.Context) (*websocket.Conn, string, error)

// NewDialer builds the production dialer from configuration: wss/ws URL
// derived from the API URL, TLS verify mode applied, API key sent as a
// header, and both graphql-ws protocol revisions offered.
func NewDialer(cfg *config.Config) (DialFunc, error) {
	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsCfg
	hc := &http.Client{Transport: transport}

	hdr := make(http.Header)
	if cfg.APIKey != "" {
		hdr.Set("x-api-key", cfg.APIKey)
		hdr.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	url := cfg.WSURL()
	return func(ctx context.Context) (*websocket.Conn, string, error) {
		conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
			HTTPClient:   hc,
			HTTPHeader:   hdr,
			Subprotocols: []string{graphql.ProtocolGraphQLWS, graphql.ProtocolLegacy},
		})
		if err != nil {
			return nil, "", err
		}
		return conn, conn.Subprotocol(), nil
	}, nil
}
