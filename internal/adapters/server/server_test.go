package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hylla/draip/internal/adapters/fixture"
	"github.com/hylla/draip/internal/adapters/server/common"
	"github.com/hylla/draip/internal/app"
)

func newTrip(t *testing.T) common.TripService {
	t.Helper()
	src := fixture.Default()
	loc, err := src.Location()
	if err != nil {
		t.Fatalf("Location() error = %v", err)
	}
	return common.NewSessionAdapter(app.NewSession(src, src, app.SessionConfig{Location: loc}))
}

func TestNewHandlerRoutesHealthAPIAndMCP(t *testing.T) {
	handler, cfg, err := NewHandler(Config{APIEndpoint: "api/v1/"}, Dependencies{Trip: newTrip(t)})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	if cfg.APIEndpoint != "/api/v1" || cfg.MCPEndpoint != "/mcp" || cfg.ServerName != "draip" || cfg.HTTPBind != defaultBindAddress {
		t.Fatalf("unexpected normalized config %+v", cfg)
	}
	server := httptest.NewServer(handler)
	defer server.Close()

	resp, err := server.Client().Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("Get(/healthz) error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}

	resp, err = server.Client().Get(server.URL + "/readyz")
	if err != nil {
		t.Fatalf("Get(/readyz) error = %v", err)
	}
	var ready map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&ready); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	_ = resp.Body.Close()
	if ready["status"] != "ok" || ready["phase"] != string(app.PhasePlanning) {
		t.Fatalf("unexpected readiness payload %#v", ready)
	}

	resp, err = server.Client().Post(server.URL+"/api/v1/itinerary", "application/json", nil)
	if err != nil {
		t.Fatalf("Post(/api/v1/itinerary) error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("build status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	resp, err = server.Client().Get(server.URL + "/api/v1/snapshot")
	if err != nil {
		t.Fatalf("Get(/api/v1/snapshot) error = %v", err)
	}
	var snap app.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	_ = resp.Body.Close()
	if snap.Phase != app.PhaseActive || snap.Itinerary.Version != 1 {
		t.Fatalf("unexpected snapshot phase=%s version=%d", snap.Phase, snap.Itinerary.Version)
	}

	resp, err = server.Client().Get(server.URL + "/mcp")
	if err != nil {
		t.Fatalf("Get(/mcp) error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		t.Fatal("expected mcp endpoint to be mounted")
	}
}

func TestNewHandlerValidatesConfig(t *testing.T) {
	if _, _, err := NewHandler(Config{APIEndpoint: "/x", MCPEndpoint: "x/"}, Dependencies{Trip: newTrip(t)}); err == nil {
		t.Fatal("expected colliding endpoints to fail")
	}
	if _, _, err := NewHandler(Config{}, Dependencies{}); err == nil {
		t.Fatal("expected missing trip dependency to fail")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{HTTPBind: "127.0.0.1:0"}, Dependencies{Trip: newTrip(t)})
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
