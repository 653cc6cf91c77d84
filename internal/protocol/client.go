package protocol

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client talks to one remote agent endpoint. Responses to SendStream are
// NDJSON: one StatusEvent per line until the stream's terminal event.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a protocol client bound to the given endpoint.
// A zero timeout disables the per-call deadline; cancellation then rests
// entirely on the caller's context.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Endpoint returns the endpoint this client is bound to.
func (c *Client) Endpoint() string { return c.endpoint }

// FetchCard retrieves the agent's discovery descriptor.
func (c *Client) FetchCard(ctx context.Context) (*AgentCard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+WellKnownPath, nil)
	if err != nil {
		return nil, fmt.Errorf("create card request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch agent card: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch agent card: status %d: %s", resp.StatusCode, string(body))
	}

	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("decode agent card: %w", err)
	}
	return &card, nil
}

// SendStream sends a task request and returns a channel of status events.
// The channel is closed after the terminal event, on a decode error, or when
// ctx is cancelled. Transport and decode failures are delivered as a
// synthetic failed event so callers have a single error path.
func (c *Client) SendStream(ctx context.Context, req *SendRequest) (<-chan StatusEvent, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal send request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/tasks/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create send request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send task: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("send task: status %d: %s", resp.StatusCode, string(body))
	}

	events := make(chan StatusEvent, 16)
	go c.readStream(ctx, resp.Body, events)
	return events, nil
}

func (c *Client) readStream(ctx context.Context, body io.ReadCloser, events chan<- StatusEvent) {
	defer close(events)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 4096), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var ev StatusEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			slog.Warn("Protocol stream: malformed event line", "endpoint", c.endpoint, "error", err)
			events <- StatusEvent{State: StateFailed, Message: fmt.Sprintf("malformed stream event: %v", err)}
			return
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}

		if ev.Terminal() {
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		events <- StatusEvent{State: StateFailed, Message: fmt.Sprintf("stream read error: %v", err)}
	}
}
