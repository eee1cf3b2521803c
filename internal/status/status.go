// Package status serves the read-only diagnostic HTTP endpoints: health,
// version, redacted configuration, and the live subscription registry.
package status

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gaspardpetit/unraidlink/core/logx"
	"github.com/gaspardpetit/unraidlink/internal/config"
	"github.com/gaspardpetit/unraidlink/internal/subs"
)

// VersionInfo identifies the running build.
type VersionInfo struct {
	Version   string `json:"version"`
	BuildSHA  string `json:"build_sha"`
	BuildDate string `json:"build_date"`
}

// Snapshot is the /status payload.
type Snapshot struct {
	Version       VersionInfo          `json:"version"`
	Config        map[string]any       `json:"config"`
	Subscriptions []subs.ChannelStatus `json:"subscriptions"`
	Time          time.Time            `json:"time"`
}

// Handler builds the status router. Secrets never appear in responses; the
// config section is the masked summary.
func Handler(cfg *config.Config, mgr *subs.Manager, ver VersionInfo) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, ver)
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, Snapshot{
			Version:       ver,
			Config:        cfg.Summary(),
			Subscriptions: mgr.Status(),
			Time:          time.Now().UTC(),
		})
	})
	r.Get("/subscriptions", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, mgr.Status())
	})
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// Start listens on addr and serves the handler until ctx is cancelled. It
// returns the bound address, so addr may use port 0.
func Start(ctx context.Context, addr string, h http.Handler) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	actual := ln.Addr().String()
	srv := &http.Server{Handler: h}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logx.Log.Error().Err(err).Str("addr", actual).Msg("status server error")
		}
	}()
	return actual, nil
}
