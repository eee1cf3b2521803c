// Package client implements the synchronous request path: one operation per
// HTTP exchange, with tiered timeouts and idempotency-aware error handling.
// The client keeps no state between calls; retry policy belongs to callers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/gaspardpetit/unraidlink/core/logx"
	"github.com/gaspardpetit/unraidlink/internal/config"
	"github.com/gaspardpetit/unraidlink/internal/graphql"
)

// Kind distinguishes queries from mutations. It only affects logging and
// rule scoping; the wire shape is identical.
type Kind string

const (
	KindQuery    Kind = "query"
	KindMutation Kind = "mutation"
)

// Tier selects the timeout budget for an operation. Callers choose the tier;
// the client never infers it.
type Tier int

const (
	// TierDefault covers most operations.
	TierDefault Tier = iota
	// TierExtended covers operations known to be slow, such as bulk disk or
	// array queries.
	TierExtended
)

// Request describes one operation to execute. Immutable once constructed.
type Request struct {
	Name      string
	Kind      Kind
	Query     string
	Variables map[string]any
	Tier      Tier
}

// Result is the outcome of a successful envelope exchange. A non-empty
// Errors list does not imply Data is absent. Idempotent is set when a no-op
// error list was collapsed into success.
type Result struct {
	Data       json.RawMessage
	Errors     []graphql.Error
	Idempotent bool
}

// TransportError reports a network, TLS, or timeout failure on a
// synchronous call. It is never retried by the client.
type TransportError struct {
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure on %s: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client issues operations against the synchronous endpoint.
type Client struct {
	endpoint        string
	apiKey          string
	defaultTimeout  time.Duration
	extendedTimeout time.Duration
	hc              *http.Client
	noop            *NoopTable
	log             zerolog.Logger
}

// New builds a client from configuration. The no-op table may be nil, in
// which case the defaults apply.
func New(cfg *config.Config, noop *NoopTable) (*Client, error) {
	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsCfg
	if noop == nil {
		noop = DefaultNoopTable()
	}
	return &Client{
		endpoint:        cfg.GraphQLURL(),
		apiKey:          cfg.APIKey,
		defaultTimeout:  cfg.DefaultTimeout,
		extendedTimeout: cfg.ExtendedTimeout,
		hc:              &http.Client{Transport: transport},
		noop:            noop,
		log:             logx.Log.With().Str("component", "client").Logger(),
	}, nil
}

func (c *Client) timeoutFor(t Tier) time.Duration {
	if t == TierExtended {
		return c.extendedTimeout
	}
	return c.defaultTimeout
}

// Execute runs one operation. Transport and malformed-envelope failures come
// back as an error; remote errors come back inside the Result, except for
// recognized no-op errors, which are collapsed into success.
func (c *Client) Execute(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeoutFor(req.Tier))
	defer cancel()

	body, _ := json.Marshal(graphql.Request{
		Query:         req.Query,
		OperationName: req.Name,
		Variables:     req.Variables,
	})
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Operation: req.Name, Err: err}
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("x-api-key", c.apiKey)
	hreq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.hc.Do(hreq)
	if err != nil {
		observeRequest(req.Name, "transport_error", time.Since(start))
		return nil, &TransportError{Operation: req.Name, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		observeRequest(req.Name, "transport_error", time.Since(start))
		return nil, &TransportError{Operation: req.Name, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		observeRequest(req.Name, "transport_error", time.Since(start))
		return nil, &TransportError{Operation: req.Name, Err: fmt.Errorf("status %d: %s", resp.StatusCode, bounded(raw))}
	}

	env, err := graphql.DecodeResponse(raw)
	if err != nil {
		observeRequest(req.Name, "malformed", time.Since(start))
		if me, ok := err.(*graphql.MalformedError); ok {
			c.log.Error().Str("op", req.Name).Str("payload", me.Preview()).Msg("malformed response envelope")
		}
		return nil, err
	}

	res := &Result{Data: env.Data, Errors: env.Errors}
	if c.noop.Collapse(req.Name, env.Errors) {
		c.log.Info().Str("op", req.Name).Str("msg", env.Errors[0].Message).Msg("operation already in requested state")
		res.Errors = nil
		res.Idempotent = true
		observeRequest(req.Name, "idempotent", time.Since(start))
		return res, nil
	}
	if len(res.Errors) > 0 {
		c.log.Debug().Str("op", req.Name).Int("errors", len(res.Errors)).Msg("remote errors in response")
		observeRequest(req.Name, "remote_error", time.Since(start))
	} else {
		observeRequest(req.Name, "ok", time.Since(start))
	}
	return res, nil
}

func bounded(b []byte) string {
	const n = 200
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
