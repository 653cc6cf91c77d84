package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".agentmux"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("AGENTMUX_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Load process env vars from ~/.agentmux/env (and fallbacks) first.
	LoadEnvFile()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil // Use defaults if we can't find config path
	}

	data, err := os.ReadFile(path)
	if err == nil {
		resolved := substituteEnv(data)
		if err := json.Unmarshal(resolved, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	// If file doesn't exist, continue with defaults

	// Override with environment variables for each group
	envconfig.Process("AGENTMUX_PATHS", &cfg.Paths)
	envconfig.Process("AGENTMUX_MODEL", &cfg.Model)
	envconfig.Process("AGENTMUX_REGISTRY", &cfg.Registry)
	envconfig.Process("AGENTMUX_EVENTS", &cfg.Events)
	envconfig.Process("AGENTMUX_EVENTS_KAFKA", &cfg.Events.Kafka)
	envconfig.Process("AGENTMUX_EXECUTOR", &cfg.Executor)

	// Fallback for API key
	if cfg.Model.APIKey == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.Model.APIKey = key
		} else if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
			cfg.Model.APIKey = key
		}
	}

	expandHome(&cfg.Paths.Database)
	expandHome(&cfg.Paths.AgentsDir)
	expandHome(&cfg.Paths.SessionsDir)

	if cfg.Registry.StartPort <= 0 {
		cfg.Registry.StartPort = DefaultConfig().Registry.StartPort
	}
	if cfg.Events.BufferMaxChunks <= 0 {
		cfg.Events.BufferMaxChunks = DefaultConfig().Events.BufferMaxChunks
	}
	if cfg.Executor.MaxConcurrentTasks <= 0 {
		cfg.Executor.MaxConcurrentTasks = DefaultConfig().Executor.MaxConcurrentTasks
	}

	return cfg, nil
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// EnsureDir ensures a directory exists with proper permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

func expandHome(p *string) {
	if strings.HasPrefix(*p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			*p = filepath.Join(home, (*p)[1:])
		}
	}
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnv replaces ${VAR} placeholders in the raw config with the
// corresponding environment value. Unset variables are left as-is.
func substituteEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		if value, ok := os.LookupEnv(string(name)); ok {
			return []byte(value)
		}
		return match
	})
}
