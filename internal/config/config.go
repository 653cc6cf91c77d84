// Package config provides configuration types and loading for agentmux.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Paths, Model, Registry, Events, Executor.
type Config struct {
	Paths    PathsConfig    `json:"paths"`
	Model    ModelConfig    `json:"model"`
	Registry RegistryConfig `json:"registry"`
	Events   EventsConfig   `json:"events"`
	Executor ExecutorConfig `json:"executor"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	Database    string `json:"database" envconfig:"DATABASE"`
	AgentsDir   string `json:"agentsDir" envconfig:"AGENTS_DIR"`
	SessionsDir string `json:"sessionsDir" envconfig:"SESSIONS_DIR"`
}

// ---------------------------------------------------------------------------
// Model – LLM behaviour for triage and planning
// ---------------------------------------------------------------------------

// ModelConfig groups LLM model settings for the triage and planner passes.
type ModelConfig struct {
	Name        string  `json:"name" envconfig:"MODEL"`
	APIKey      string  `json:"apiKey" envconfig:"API_KEY"`
	APIBase     string  `json:"apiBase,omitempty" envconfig:"API_BASE"`
	MaxTokens   int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature float64 `json:"temperature" envconfig:"TEMPERATURE"`
	MaxRounds   int     `json:"maxRounds" envconfig:"MAX_ROUNDS"`
}

// ---------------------------------------------------------------------------
// Registry – remote agent discovery and process lifecycle
// ---------------------------------------------------------------------------

// RegistryConfig contains settings for the remote connection registry.
type RegistryConfig struct {
	RemoteBaseURL  string        `json:"remoteBaseUrl" envconfig:"REMOTE_BASE_URL"`
	StartPort      int           `json:"startPort" envconfig:"START_PORT"`
	ReadyTimeout   time.Duration `json:"readyTimeout" envconfig:"READY_TIMEOUT"`
	RequestTimeout time.Duration `json:"requestTimeout" envconfig:"REQUEST_TIMEOUT"`
}

// ---------------------------------------------------------------------------
// Events – response buffering and mirroring
// ---------------------------------------------------------------------------

// EventsConfig contains settings for the response buffer and event mirror.
type EventsConfig struct {
	BufferMaxChunks int           `json:"bufferMaxChunks" envconfig:"BUFFER_MAX_CHUNKS"`
	BufferMaxAge    time.Duration `json:"bufferMaxAge" envconfig:"BUFFER_MAX_AGE"`
	Kafka           KafkaConfig   `json:"kafka"`
}

// KafkaConfig configures the optional Kafka event mirror.
type KafkaConfig struct {
	Enabled bool   `json:"enabled" envconfig:"ENABLED"`
	Brokers string `json:"brokers" envconfig:"BROKERS"`
	Topic   string `json:"topic" envconfig:"TOPIC"`
}

// ---------------------------------------------------------------------------
// Executor – task execution limits
// ---------------------------------------------------------------------------

// ExecutorConfig contains task execution settings.
type ExecutorConfig struct {
	MaxConcurrentTasks int `json:"maxConcurrentTasks" envconfig:"MAX_CONCURRENT_TASKS"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			Database:    "~/.agentmux/agentmux.db",
			AgentsDir:   "~/.agentmux/agents",
			SessionsDir: "~/.agentmux/sessions",
		},
		Model: ModelConfig{
			Name:        "anthropic/claude-sonnet-4-5",
			MaxTokens:   4096,
			Temperature: 0.2,
			MaxRounds:   5,
		},
		Registry: RegistryConfig{
			RemoteBaseURL:  "http://localhost:10000",
			StartPort:      10100,
			ReadyTimeout:   30 * time.Second,
			RequestTimeout: 120 * time.Second,
		},
		Events: EventsConfig{
			BufferMaxChunks: 32,
			BufferMaxAge:    2 * time.Second,
			Kafka: KafkaConfig{
				Enabled: false,
				Topic:   "agentmux.responses",
			},
		},
		Executor: ExecutorConfig{
			MaxConcurrentTasks: 4,
		},
	}
}
