package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gaspardpetit/unraidlink/internal/config"
	"github.com/gaspardpetit/unraidlink/internal/subs"
)

func TestHealthz(t *testing.T) {
	h := Handler(&config.Config{}, subs.NewManager(&config.Config{}, nil, nil), VersionInfo{Version: "test"})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("unexpected healthz response: %d %q", rr.Code, rr.Body.String())
	}
}

func TestStatusMasksAPIKey(t *testing.T) {
	cfg := &config.Config{
		APIURL: "https://tower.local",
		APIKey: "super-secret-api-key-value",
	}
	h := Handler(cfg, subs.NewManager(cfg, nil, nil), VersionInfo{Version: "1.2.3"})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if strings.Contains(body, "super-secret-api-key-value") {
		t.Fatal("api key leaked into /status")
	}
	var snap Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Version.Version != "1.2.3" {
		t.Fatalf("unexpected version: %+v", snap.Version)
	}
	if snap.Subscriptions == nil {
		t.Fatal("subscriptions should be an empty list, not null")
	}
}

func TestVersionEndpoint(t *testing.T) {
	h := Handler(&config.Config{}, subs.NewManager(&config.Config{}, nil, nil), VersionInfo{Version: "9.9", BuildSHA: "abc"})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/version", nil))
	var v VersionInfo
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatal(err)
	}
	if v.Version != "9.9" || v.BuildSHA != "abc" {
		t.Fatalf("unexpected version payload: %+v", v)
	}
}
