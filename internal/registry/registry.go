// Package registry manages remote agent connections: capability card
// discovery, local agent process lifecycle, and protocol client caching.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/agentmux/agentmux/internal/config"
	"github.com/agentmux/agentmux/internal/protocol"
)

// Registry is the connection registry for all callable agents. Local
// agents come from descriptor files in the agents directory; anything not
// found locally is treated as remote and discovered at the configured
// base URL's well-known path.
type Registry struct {
	cfg config.RegistryConfig

	mu       sync.Mutex
	local    map[string]*localAgent
	remote   map[string]*protocol.AgentCard // fetched remote cards
	clients  map[string]*protocol.Client
	procs    map[string]*process
	nextPort int
}

// New creates a registry, loading local agent descriptors from agentsDir.
func New(cfg config.RegistryConfig, agentsDir string) *Registry {
	local, errs := loadLocalAgents(agentsDir)
	for _, err := range errs {
		slog.Warn("Agent descriptor skipped", "error", err)
	}
	if len(local) > 0 {
		slog.Info("Local agents loaded", "count", len(local), "dir", agentsDir)
	}

	return &Registry{
		cfg:      cfg,
		local:    local,
		remote:   make(map[string]*protocol.AgentCard),
		clients:  make(map[string]*protocol.Client),
		procs:    make(map[string]*process),
		nextPort: cfg.StartPort,
	}
}

// ListAvailableAgents returns every known agent card: all local agents
// plus any remote cards already discovered, sorted by name.
func (r *Registry) ListAvailableAgents() []protocol.AgentCard {
	r.mu.Lock()
	defer r.mu.Unlock()

	cards := make([]protocol.AgentCard, 0, len(r.local)+len(r.remote))
	for _, agent := range r.local {
		cards = append(cards, *agent.card)
	}
	for name, card := range r.remote {
		if _, ok := r.local[name]; !ok {
			cards = append(cards, *card)
		}
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Name < cards[j].Name })
	return cards
}

// ListRemoteAgents probes the configured remote base URL and returns the
// cards discovered there. Errors are returned so callers can degrade to
// local-only operation.
func (r *Registry) ListRemoteAgents(ctx context.Context) ([]protocol.AgentCard, error) {
	if r.cfg.RemoteBaseURL == "" {
		return nil, nil
	}

	client := protocol.NewClient(r.cfg.RemoteBaseURL, r.cfg.RequestTimeout)
	card, err := client.FetchCard(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover remote agents: %w", err)
	}

	r.mu.Lock()
	r.remote[card.Name] = card
	r.mu.Unlock()

	return []protocol.AgentCard{*card}, nil
}

// GetAgentCard resolves an agent's capability card by name: local
// descriptors first, then the remote discovery endpoint.
func (r *Registry) GetAgentCard(ctx context.Context, name string) (*protocol.AgentCard, error) {
	r.mu.Lock()
	if agent, ok := r.local[name]; ok {
		card := *agent.card
		r.mu.Unlock()
		return &card, nil
	}
	if card, ok := r.remote[name]; ok {
		c := *card
		r.mu.Unlock()
		return &c, nil
	}
	r.mu.Unlock()

	cards, err := r.ListRemoteAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent %q not found locally: %w", name, err)
	}
	for i := range cards {
		if cards[i].Name == name {
			return &cards[i], nil
		}
	}
	return nil, fmt.Errorf("agent %q not found", name)
}

// StartAgent ensures the named agent is reachable and returns its
// endpoint. Local agents with a command are spawned on a dynamically
// allocated port (an already-running process is reused); local agents
// with a fixed endpoint and remote agents are returned as configured.
func (r *Registry) StartAgent(ctx context.Context, name string) (string, error) {
	r.mu.Lock()
	if proc, ok := r.procs[name]; ok {
		endpoint := proc.endpoint
		r.mu.Unlock()
		return endpoint, nil
	}
	agent, isLocal := r.local[name]
	r.mu.Unlock()

	if !isLocal {
		if r.cfg.RemoteBaseURL == "" {
			return "", fmt.Errorf("agent %q: not local and no remote base URL configured", name)
		}
		return strings.TrimSuffix(r.cfg.RemoteBaseURL, "/"), nil
	}

	if agent.endpoint != "" {
		return agent.endpoint, nil
	}
	if agent.command == "" {
		return "", fmt.Errorf("agent %q: descriptor has neither command nor endpoint", name)
	}

	r.mu.Lock()
	port, err := allocatePort(r.nextPort)
	if err != nil {
		r.mu.Unlock()
		return "", fmt.Errorf("start agent %q: %w", name, err)
	}
	r.nextPort = port + 1
	r.mu.Unlock()

	proc, err := spawn(agent, port)
	if err != nil {
		return "", fmt.Errorf("start agent %q: %w", name, err)
	}
	slog.Info("Agent process started", "agent", name, "port", port)

	if err := waitReady(ctx, proc.endpoint, r.cfg.ReadyTimeout); err != nil {
		proc.stop()
		return "", fmt.Errorf("start agent %q: %w", name, err)
	}

	r.mu.Lock()
	// Another caller may have raced us here; keep the first process.
	if existing, ok := r.procs[name]; ok {
		r.mu.Unlock()
		proc.stop()
		return existing.endpoint, nil
	}
	r.procs[name] = proc
	r.mu.Unlock()

	return proc.endpoint, nil
}

// GetClient returns a protocol client for the agent, starting it if
// needed. Clients are constructed lazily and cached per agent.
func (r *Registry) GetClient(ctx context.Context, name string) (*protocol.Client, error) {
	r.mu.Lock()
	if client, ok := r.clients[name]; ok {
		r.mu.Unlock()
		return client, nil
	}
	r.mu.Unlock()

	endpoint, err := r.StartAgent(ctx, name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if client, ok := r.clients[name]; ok {
		return client, nil
	}
	client := protocol.NewClient(endpoint, r.cfg.RequestTimeout)
	r.clients[name] = client
	return client, nil
}

// StopAll terminates every process this registry started and clears the
// client cache. Safe to call repeatedly and on partially-stopped state.
func (r *Registry) StopAll() {
	r.mu.Lock()
	procs := r.procs
	r.procs = make(map[string]*process)
	r.clients = make(map[string]*protocol.Client)
	r.mu.Unlock()

	for name, proc := range procs {
		slog.Info("Stopping agent process", "agent", name, "port", proc.port)
		proc.stop()
	}
}
