package registry

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/agentmux/agentmux/internal/protocol"
)

// process tracks one spawned local agent.
type process struct {
	cmd      *exec.Cmd
	endpoint string
	port     int
}

// allocatePort scans upward from the given port for a free TCP port.
func allocatePort(startPort int) (int, error) {
	for port := startPort; port < startPort+256; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			continue
		}
		ln.Close()
		return port, nil
	}
	return 0, fmt.Errorf("no free port in range %d-%d", startPort, startPort+255)
}

// spawn starts a local agent process bound to the allocated port.
// {port} in args is substituted; the port is also exported in the
// environment for agents that prefer reading it there.
func spawn(agent *localAgent, port int) (*process, error) {
	args := make([]string, len(agent.args))
	for i, arg := range agent.args {
		args[i] = strings.ReplaceAll(arg, "{port}", strconv.Itoa(port))
	}

	cmd := exec.Command(agent.command, args...)
	cmd.Env = append(os.Environ(), fmt.Sprintf("AGENTMUX_AGENT_PORT=%d", port))
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start agent process: %w", err)
	}

	return &process{
		cmd:      cmd,
		endpoint: fmt.Sprintf("http://127.0.0.1:%d", port),
		port:     port,
	}, nil
}

// waitReady polls the agent's discovery endpoint until it answers or the
// deadline passes.
func waitReady(ctx context.Context, endpoint string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 2 * time.Second}

	for time.Now().Before(deadline) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+protocol.WellKnownPath, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return fmt.Errorf("agent at %s not ready after %s", endpoint, timeout)
}

// stop terminates the process, escalating from interrupt to kill.
func (p *process) stop() {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}

	_ = p.cmd.Process.Signal(os.Interrupt)

	done := make(chan struct{})
	go func() {
		_, _ = p.cmd.Process.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		slog.Warn("Agent process did not exit, killing", "port", p.port)
		_ = p.cmd.Process.Kill()
		<-done
	}
}
