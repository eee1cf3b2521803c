// Package graphql implements the wire envelope shared by the synchronous and
// streaming transports: the request document, the result-or-errors response,
// and the subscription frame vocabulary.
package graphql

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Request is the operation document sent to the endpoint.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Error is one remote error from the errors list. Path tokens are either
// field names or list indices.
type Error struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e Error) Error() string {
	if len(e.Path) == 0 {
		return e.Message
	}
	parts := make([]string, len(e.Path))
	for i, p := range e.Path {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, ".") + ": " + e.Message
}

// Response is the decoded envelope. A non-empty Errors list does not imply
// Data is absent; partial results are valid.
type Response struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []Error         `json:"errors,omitempty"`
}

// MalformedError reports an envelope that violates the expected shape. It is
// fatal for the call or frame it occurred on and carries the raw payload for
// diagnosis.
type MalformedError struct {
	Reason string
	Raw    []byte
}

func (e *MalformedError) Error() string {
	return "malformed response: " + e.Reason
}

// Preview returns a bounded excerpt of the offending payload for logging.
func (e *MalformedError) Preview() string {
	const n = 200
	if len(e.Raw) <= n {
		return string(e.Raw)
	}
	return string(e.Raw[:n]) + "..."
}

// DecodeResponse parses a response envelope. The top level must be a JSON
// object carrying at least one of "data" or "errors" with the right kinds.
func DecodeResponse(b []byte) (*Response, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(b, &top); err != nil {
		return nil, &MalformedError{Reason: "not a JSON object", Raw: b}
	}
	data, hasData := top["data"]
	rawErrs, hasErrs := top["errors"]
	if !hasData && !hasErrs {
		return nil, &MalformedError{Reason: "missing data and errors", Raw: b}
	}
	resp := &Response{}
	if hasData && !isNull(data) {
		if len(data) == 0 || data[0] != '{' {
			return nil, &MalformedError{Reason: "data is not an object", Raw: b}
		}
		resp.Data = data
	}
	if hasErrs && !isNull(rawErrs) {
		if err := json.Unmarshal(rawErrs, &resp.Errors); err != nil {
			return nil, &MalformedError{Reason: "errors is not an error list", Raw: b}
		}
	}
	return resp, nil
}

func isNull(b json.RawMessage) bool {
	return len(b) == 0 || string(b) == "null"
}
