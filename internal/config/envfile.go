package config

import (
	"os"
	"path/filepath"
	"strings"
)

// LoadEnvFile loads KEY=VALUE pairs from the env file into the process
// environment. The file lives at ~/.agentmux/env unless AGENTMUX_ENV_FILE
// points elsewhere. Variables already set in the environment win.
func LoadEnvFile() {
	path := strings.TrimSpace(os.Getenv("AGENTMUX_ENV_FILE"))
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		path = filepath.Join(home, ConfigDir, "env")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	applyEnvLines(strings.Split(string(data), "\n"))
}

func applyEnvLines(lines []string) {
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, trimOptionalQuotes(strings.TrimSpace(val)))
	}
}

func trimOptionalQuotes(v string) string {
	if len(v) < 2 {
		return v
	}
	if strings.HasPrefix(v, "\"") && strings.HasSuffix(v, "\"") {
		return v[1 : len(v)-1]
	}
	if strings.HasPrefix(v, "'") && strings.HasSuffix(v, "'") {
		return v[1 : len(v)-1]
	}
	return v
}
