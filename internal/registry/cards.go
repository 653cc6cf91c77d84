package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentmux/agentmux/internal/protocol"
)

// localAgentFile is the on-disk shape of one local agent descriptor:
// an agent card plus optional launch configuration.
type localAgentFile struct {
	Name               string                 `json:"name"`
	Description        string                 `json:"description"`
	Version            string                 `json:"version"`
	Capabilities       *protocol.Capabilities `json:"capabilities"`
	Skills             []protocol.Skill       `json:"skills"`
	DefaultInputModes  []string               `json:"default_input_modes"`
	DefaultOutputModes []string               `json:"default_output_modes"`

	// Launch configuration. Command spawns the agent process; {port} in
	// args is substituted with the allocated port. A fixed Endpoint marks
	// an externally managed agent that is not spawned.
	Command  string   `json:"command,omitempty"`
	Args     []string `json:"args,omitempty"`
	Endpoint string   `json:"endpoint,omitempty"`
}

type localAgent struct {
	card     *protocol.AgentCard
	command  string
	args     []string
	endpoint string
}

// loadLocalAgents reads every *.json descriptor under dir. A missing
// directory yields an empty set; a malformed file is skipped with a log
// entry rather than failing the whole load.
func loadLocalAgents(dir string) (map[string]*localAgent, []error) {
	agents := make(map[string]*localAgent)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return agents, nil
		}
		return agents, []error{fmt.Errorf("read agents dir: %w", err)}
	}

	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", entry.Name(), err))
			continue
		}

		var file localAgentFile
		if err := json.Unmarshal(data, &file); err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", entry.Name(), err))
			continue
		}
		if file.Name == "" {
			file.Name = strings.TrimSuffix(entry.Name(), ".json")
		}

		agents[file.Name] = &localAgent{
			card:     cardFromFile(&file),
			command:  file.Command,
			args:     file.Args,
			endpoint: file.Endpoint,
		}
	}
	return agents, errs
}

// cardFromFile builds a complete card from a possibly sparse descriptor.
// Missing optional fields get defaults: streaming on, push notifications
// off, empty mode lists, empty version, a generated description.
func cardFromFile(file *localAgentFile) *protocol.AgentCard {
	card := &protocol.AgentCard{
		Name:               file.Name,
		Description:        file.Description,
		Version:            file.Version,
		Skills:             file.Skills,
		DefaultInputModes:  file.DefaultInputModes,
		DefaultOutputModes: file.DefaultOutputModes,
	}

	if file.Capabilities != nil {
		card.Capabilities = *file.Capabilities
	} else {
		card.Capabilities = protocol.Capabilities{Streaming: true}
	}
	if card.Description == "" {
		card.Description = fmt.Sprintf("Agent %s", card.Name)
	}
	if card.Skills == nil {
		card.Skills = []protocol.Skill{}
	}
	if card.DefaultInputModes == nil {
		card.DefaultInputModes = []string{}
	}
	if card.DefaultOutputModes == nil {
		card.DefaultOutputModes = []string{}
	}
	return card
}
