// Package mcpsrv exposes the connector over MCP stdio: the operation
// catalog, the subscription registry, and the end-to-end probe.
package mcpsrv

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gaspardpetit/unraidlink/internal/client"
	"github.com/gaspardpetit/unraidlink/internal/ops"
	"github.com/gaspardpetit/unraidlink/internal/subs"
)

// New assembles the MCP server over an already-constructed client and
// subscription manager.
func New(cl *client.Client, mgr *subs.Manager, version string) *server.MCPServer {
	s := server.NewMCPServer("unraidlink", version, server.WithToolCapabilities(false))

	s.AddTool(
		mcp.NewTool("list_operations",
			mcp.WithDescription("List the named GraphQL operations this connector can run."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			type entry struct {
				Name string `json:"name"`
				Kind string `json:"kind"`
				Tier string `json:"tier"`
			}
			out := make([]entry, 0)
			for _, name := range ops.Names() {
				op, err := ops.Lookup(name)
				if err != nil {
					continue
				}
				tier := "default"
				if op.Tier == client.TierExtended {
					tier = "extended"
				}
				out = append(out, entry{Name: op.Name, Kind: string(op.Kind), Tier: tier})
			}
			return jsonResult(out)
		},
	)

	s.AddTool(
		mcp.NewTool("run_operation",
			mcp.WithDescription("Run one catalog operation against the Unraid API."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Catalog operation name, e.g. listContainers.")),
			mcp.WithString("variables", mcp.Description("Operation variables as a JSON object.")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			name, err := req.RequireString("name")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			op, err := ops.Lookup(name)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			var vars map[string]any
			if raw := req.GetString("variables", ""); raw != "" {
				if err := json.Unmarshal([]byte(raw), &vars); err != nil {
					return mcp.NewToolResultError(fmt.Sprintf("variables must be a JSON object: %v", err)), nil
				}
			}
			res, err := cl.Execute(ctx, op.Request(vars))
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			type outcome struct {
				Data       json.RawMessage `json:"data,omitempty"`
				Errors     []string        `json:"errors,omitempty"`
				Idempotent bool            `json:"idempotent,omitempty"`
			}
			o := outcome{Data: res.Data, Idempotent: res.Idempotent}
			for _, e := range res.Errors {
				o.Errors = append(o.Errors, e.Error())
			}
			return jsonResult(o)
		},
	)

	s.AddTool(
		mcp.NewTool("subscription_status",
			mcp.WithDescription("Snapshot of every live subscription channel."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return jsonResult(mgr.Status())
		},
	)

	s.AddTool(
		mcp.NewTool("probe_subscription",
			mcp.WithDescription("Open a throwaway log subscription, wait for the first event, and report the verdict. Leaves no channel behind."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Server log file path, e.g. /var/log/syslog.")),
			mcp.WithNumber("max_wait_seconds", mcp.Description("How long to wait for the first event. Default 10.")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			path, err := req.RequireString("path")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			wait := req.GetFloat("max_wait_seconds", 10)
			if wait <= 0 {
				wait = 10
			}
			v := subs.Probe(ctx, mgr, ops.LogFileTopic(path), time.Duration(wait*float64(time.Second)))
			return jsonResult(v)
		},
	)

	return s
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
