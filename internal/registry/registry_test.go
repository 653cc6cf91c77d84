package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentmux/agentmux/internal/config"
	"github.com/agentmux/agentmux/internal/protocol"
)

func writeDescriptor(t *testing.T, dir, name string, body map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal descriptor: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}
}

func testRegistryConfig() config.RegistryConfig {
	return config.RegistryConfig{
		StartPort:      0,
		ReadyTimeout:   time.Second,
		RequestTimeout: time.Second,
	}
}

func TestLoadLocalAgentsFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "sparse.json", map[string]any{"name": "sparse"})

	reg := New(testRegistryConfig(), dir)
	cards := reg.ListAvailableAgents()
	if len(cards) != 1 {
		t.Fatalf("got %d cards, want 1", len(cards))
	}

	card := cards[0]
	if !card.Capabilities.Streaming {
		t.Fatal("streaming should default to true")
	}
	if card.Capabilities.PushNotifications {
		t.Fatal("push notifications should default to false")
	}
	if card.Description == "" {
		t.Fatal("description should be generated")
	}
	if card.Version != "" {
		t.Fatalf("version should default to empty, got %q", card.Version)
	}
	if card.Skills == nil || card.DefaultInputModes == nil || card.DefaultOutputModes == nil {
		t.Fatal("list fields should default to empty, not nil")
	}
}

func TestLoadLocalAgentsNameFromFilename(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "implicit.json", map[string]any{"description": "no name field"})

	reg := New(testRegistryConfig(), dir)
	card, err := reg.GetAgentCard(context.Background(), "implicit")
	if err != nil {
		t.Fatalf("get card: %v", err)
	}
	if card.Name != "implicit" {
		t.Fatalf("name = %q", card.Name)
	}
}

func TestLoadLocalAgentsSkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "good.json", map[string]any{"name": "good"})
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := New(testRegistryConfig(), dir)
	if got := len(reg.ListAvailableAgents()); got != 1 {
		t.Fatalf("got %d cards, want 1", got)
	}
}

func TestLoadLocalAgentsMissingDir(t *testing.T) {
	reg := New(testRegistryConfig(), filepath.Join(t.TempDir(), "does-not-exist"))
	if got := len(reg.ListAvailableAgents()); got != 0 {
		t.Fatalf("got %d cards, want 0", got)
	}
}

func TestStartAgentFixedEndpoint(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "ext.json", map[string]any{"name": "ext", "endpoint": "http://10.0.0.5:9999"})

	reg := New(testRegistryConfig(), dir)
	endpoint, err := reg.StartAgent(context.Background(), "ext")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if endpoint != "http://10.0.0.5:9999" {
		t.Fatalf("endpoint = %q", endpoint)
	}
}

func TestStartAgentRemoteFallback(t *testing.T) {
	cfg := testRegistryConfig()
	cfg.RemoteBaseURL = "http://remote-host:10000/"

	reg := New(cfg, t.TempDir())
	endpoint, err := reg.StartAgent(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if endpoint != "http://remote-host:10000" {
		t.Fatalf("endpoint = %q", endpoint)
	}
}

func TestStartAgentNoLaunchConfig(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "inert.json", map[string]any{"name": "inert"})

	reg := New(testRegistryConfig(), dir)
	if _, err := reg.StartAgent(context.Background(), "inert"); err == nil {
		t.Fatal("expected error for descriptor with neither command nor endpoint")
	}
}

func TestGetAgentCardRemoteDiscovery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != protocol.WellKnownPath {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(protocol.AgentCard{Name: "remote-worker", Description: "remote"})
	}))
	defer srv.Close()

	cfg := testRegistryConfig()
	cfg.RemoteBaseURL = srv.URL

	reg := New(cfg, t.TempDir())
	card, err := reg.GetAgentCard(context.Background(), "remote-worker")
	if err != nil {
		t.Fatalf("get card: %v", err)
	}
	if card.Name != "remote-worker" {
		t.Fatalf("card = %+v", card)
	}

	// Discovered cards show up in the available listing.
	if got := len(reg.ListAvailableAgents()); got != 1 {
		t.Fatalf("got %d cards, want 1", got)
	}
}

func TestGetClientCaching(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "ext.json", map[string]any{"name": "ext", "endpoint": "http://10.0.0.5:9999"})

	reg := New(testRegistryConfig(), dir)
	c1, err := reg.GetClient(context.Background(), "ext")
	if err != nil {
		t.Fatalf("get client: %v", err)
	}
	c2, err := reg.GetClient(context.Background(), "ext")
	if err != nil {
		t.Fatalf("get client again: %v", err)
	}
	if c1 != c2 {
		t.Fatal("clients should be cached per agent")
	}
}

func TestStopAllIsIdempotent(t *testing.T) {
	reg := New(testRegistryConfig(), t.TempDir())
	reg.StopAll()
	reg.StopAll()
}

func TestAllocatePort(t *testing.T) {
	port, err := allocatePort(20000)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if port < 20000 {
		t.Fatalf("port %d below start", port)
	}
}
