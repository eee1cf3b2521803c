package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gaspardpetit/unraidlink/core/logx"
	"github.com/gaspardpetit/unraidlink/internal/client"
	"github.com/gaspardpetit/unraidlink/internal/config"
	"github.com/gaspardpetit/unraidlink/internal/mcpsrv"
	"github.com/gaspardpetit/unraidlink/internal/metrics"
	"github.com/gaspardpetit/unraidlink/internal/ops"
	"github.com/gaspardpetit/unraidlink/internal/status"
	"github.com/gaspardpetit/unraidlink/internal/subs"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	var cfg config.Config
	cfg.BindFlags()
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		_, _ = fmt.Fprintf(out, "unraidlink version=%s sha=%s date=%s\n\n", version, buildSHA, buildDate)
		_, _ = fmt.Fprintf(out, "usage: unraidlink [flags] <command>\n\n")
		_, _ = fmt.Fprintf(out, "commands:\n")
		_, _ = fmt.Fprintf(out, "  serve                      run the agent (MCP stdio, status, metrics) [default]\n")
		_, _ = fmt.Fprintf(out, "  run <operation> [vars]     execute one catalog operation, vars as a JSON object\n")
		_, _ = fmt.Fprintf(out, "  probe <log-path> [wait]    open a throwaway log subscription and report the verdict\n")
		_, _ = fmt.Fprintf(out, "  tail <log-path>            stream a server log file to stdout\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Printf("unraidlink version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}

	if cfg.ConfigFile != "" {
		if err := cfg.LoadFile(cfg.ConfigFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			logx.Log.Fatal().Err(err).Str("path", cfg.ConfigFile).Msg("load config")
		}
	}
	if err := logx.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		logx.Log.Fatal().Err(err).Msg("configure logging")
	}
	if err := cfg.Validate(); err != nil {
		logx.Log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "", "serve":
		err = runServe(ctx, &cfg)
	case "run":
		err = runOperation(ctx, &cfg, flag.Arg(1), flag.Arg(2))
	case "probe":
		err = runProbe(ctx, &cfg, flag.Arg(1), flag.Arg(2))
	case "tail":
		err = runTail(ctx, &cfg, flag.Arg(1))
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logx.Log.Fatal().Err(err).Msg("unraidlink failed")
	}
}

func newClient(cfg *config.Config) (*client.Client, error) {
	noop := client.DefaultNoopTable()
	if cfg.NoopRulesFile != "" {
		t, err := client.LoadNoopTable(cfg.NoopRulesFile)
		if err != nil {
			return nil, fmt.Errorf("load no-op rules: %w", err)
		}
		noop = t
	}
	return client.New(cfg, noop)
}

func newManager(cfg *config.Config) (*subs.Manager, error) {
	dial, err := subs.NewDialer(cfg)
	if err != nil {
		return nil, err
	}
	return subs.NewManager(cfg, dial, nil), nil
}

// runServe is the agent mode: MCP over stdio in the foreground, with the
// optional status and metrics listeners and the autostart log tail beside it.
func runServe(ctx context.Context, cfg *config.Config) error {
	logx.Log.Info().Fields(cfg.Summary()).Str("version", version).Msg("starting unraidlink")

	cl, err := newClient(cfg)
	if err != nil {
		return err
	}
	mgr, err := newManager(cfg)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		addr, err := metrics.StartMetricsServer(ctx, cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		logx.Log.Info().Str("addr", addr).Msg("metrics server listening")
	}
	if cfg.StatusAddr != "" {
		ver := status.VersionInfo{Version: version, BuildSHA: buildSHA, BuildDate: buildDate}
		addr, err := status.Start(ctx, cfg.StatusAddr, status.Handler(cfg, mgr, ver))
		if err != nil {
			return fmt.Errorf("start status server: %w", err)
		}
		logx.Log.Info().Str("addr", addr).Msg("status server listening")
	}
	if cfg.AutostartLogPath != "" {
		go followLog(ctx, mgr, cfg.AutostartLogPath, nil)
	}

	stdio := server.NewStdioServer(mcpsrv.New(cl, mgr, version))
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		logx.Log.Error().Err(err).Msg("mcp stdio server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		logx.Log.Warn().Err(err).Msg("subscription shutdown incomplete")
	}
	logx.Log.Info().Msg("unraidlink stopped")
	return nil
}

// runOperation executes one catalog operation and prints the result envelope.
func runOperation(ctx context.Context, cfg *config.Config, name, varsJSON string) error {
	if name == "" {
		return fmt.Errorf("usage: unraidlink run <operation> [variables-json]; known operations: %v", ops.Names())
	}
	op, err := ops.Lookup(name)
	if err != nil {
		return err
	}
	var vars map[string]any
	if varsJSON != "" {
		if err := json.Unmarshal([]byte(varsJSON), &vars); err != nil {
			return fmt.Errorf("variables must be a JSON object: %w", err)
		}
	}
	cl, err := newClient(cfg)
	if err != nil {
		return err
	}
	res, err := cl.Execute(ctx, op.Request(vars))
	if err != nil {
		return err
	}
	out := map[string]any{"data": res.Data}
	if res.Idempotent {
		out["idempotent"] = true
	}
	if len(res.Errors) > 0 {
		msgs := make([]string, len(res.Errors))
		for i, e := range res.Errors {
			msgs[i] = e.Error()
		}
		out["errors"] = msgs
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// runProbe drives one end-to-end subscription probe and prints the verdict.
// The exit status reflects the verdict.
func runProbe(ctx context.Context, cfg *config.Config, path, wait string) error {
	if path == "" {
		return errors.New("usage: unraidlink probe <log-path> [max-wait]")
	}
	maxWait := 10 * time.Second
	if wait != "" {
		d, err := time.ParseDuration(wait)
		if err != nil {
			return fmt.Errorf("invalid max-wait: %w", err)
		}
		maxWait = d
	}
	mgr, err := newManager(cfg)
	if err != nil {
		return err
	}
	v := subs.Probe(ctx, mgr, ops.LogFileTopic(path), maxWait)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = mgr.Shutdown(shutdownCtx)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	if !v.OK {
		return fmt.Errorf("probe did not receive an event (state %s)", v.StateReached)
	}
	return nil
}

// runTail streams one server log file to stdout until interrupted.
func runTail(ctx context.Context, cfg *config.Config, path string) error {
	if path == "" {
		return errors.New("usage: unraidlink tail <log-path>")
	}
	mgr, err := newManager(cfg)
	if err != nil {
		return err
	}
	followLog(ctx, mgr, path, os.Stdout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return mgr.Shutdown(shutdownCtx)
}

// followLog keeps a log subscription open until ctx ends. Events are written
// to out when set, and mirrored into the connector log otherwise.
func followLog(ctx context.Context, mgr *subs.Manager, path string, out *os.File) {
	h, err := mgr.Subscribe(ops.LogFileTopic(path))
	if err != nil {
		logx.Log.Error().Err(err).Str("path", path).Msg("log subscription")
		return
	}
	defer mgr.Unsubscribe(h)
	for {
		select {
		case ev, ok := <-h.Events():
			if !ok {
				return
			}
			switch {
			case ev.Terminal:
				if ev.Err != nil {
					logx.Log.Error().Err(ev.Err).Str("path", path).Msg("log subscription ended")
				}
				return
			case ev.Gap:
				logx.Log.Warn().Str("path", path).Int("attempt", ev.Attempt).Msg("log stream gap; events may have been missed")
			default:
				if out != nil && len(ev.Data) > 0 {
					_, _ = out.Write(append(ev.Data, '\n'))
					continue
				}
				line := logx.Log.Debug().Str("path", path).Uint64("seq", ev.Seq)
				if len(ev.Data) > 0 {
					line = line.RawJSON("event", ev.Data)
				}
				line.Msg("log event")
			}
		case <-ctx.Done():
			return
		}
	}
}
