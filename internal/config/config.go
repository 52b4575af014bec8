package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sessioncast/sessioncast-cli/internal/storage"
)

const (
	// defaultRelayURL is the official relay websocket endpoint.
	defaultRelayURL = "wss://relay.sessioncast.dev/v1/agent"
	// defaultAPIURL is the official relay HTTP API.
	defaultAPIURL = "https://api.sessioncast.dev"
)

// ExecConfig controls the control channel's command-execution service.
type ExecConfig struct {
	// AllowedCommands restricts runnable commands: each entry is tried as
	// a literal prefix, then as a regular expression.
	AllowedCommands []string `yaml:"allowedCommands"`
	// DefaultTimeoutMs applies when a request carries no timeout.
	DefaultTimeoutMs int `yaml:"defaultTimeoutMs"`
	// MaxTimeoutMs caps any requested timeout.
	MaxTimeoutMs int `yaml:"maxTimeoutMs"`
	// Pty runs commands under a pseudo-terminal.
	Pty bool `yaml:"pty"`
}

// LLMConfig points the control channel's LLM proxy at a provider.
type LLMConfig struct {
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
}

// ControlConfig enables the control channel.
type ControlConfig struct {
	// AgentID identifies this agent's control channel at the relay.
	AgentID string `yaml:"agentId"`
	// Exec enables remote command execution when present.
	Exec *ExecConfig `yaml:"exec"`
	// LLM enables LLM proxying when present.
	LLM *LLMConfig `yaml:"llm"`
}

// fileConfig is the shape of ~/.sessioncast/config.yaml.
type fileConfig struct {
	MachineID string         `yaml:"machineId"`
	RelayURL  string         `yaml:"relayUrl"`
	APIURL    string         `yaml:"apiUrl"`
	TmuxBin   string         `yaml:"tmuxBin"`
	LogLevel  string         `yaml:"logLevel"`
	Control   *ControlConfig `yaml:"control"`
}

// Config is the agent's startup configuration. It is loaded once and
// treated as immutable for the process lifetime; changing it requires a
// restart.
type Config struct {
	// MachineID is this machine's stable identity.
	MachineID string
	// RelayURL is the relay websocket endpoint.
	RelayURL string
	// APIURL is the relay HTTP API base for interactive commands and auth.
	APIURL string
	// AuthToken is the stored access token ("" until paired).
	AuthToken string
	// TmuxBin overrides the tmux executable path.
	TmuxBin string
	// Home is the local state directory.
	Home string
	// AccessKeyPath is where the access token is stored.
	AccessKeyPath string
	// LogLevel is the configured log verbosity name.
	LogLevel string
	// Control enables the control channel when non-nil.
	Control *ControlConfig
}

// Load builds the configuration from the optional config file and the
// environment, environment winning. Configuration errors here are fatal:
// they are reported before any socket is opened.
func Load() (*Config, error) {
	home := os.Getenv("SESSIONCAST_HOME_DIR")
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		home = filepath.Join(userHome, ".sessioncast")
	}
	if err := os.MkdirAll(home, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", home, err)
	}

	var fc fileConfig
	cfgPath := filepath.Join(home, "config.yaml")
	if data, err := os.ReadFile(cfgPath); err == nil {
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", cfgPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", cfgPath, err)
	}

	cfg := &Config{
		MachineID:     firstNonEmpty(os.Getenv("SESSIONCAST_MACHINE_ID"), fc.MachineID),
		RelayURL:      firstNonEmpty(os.Getenv("SESSIONCAST_RELAY_URL"), fc.RelayURL, defaultRelayURL),
		APIURL:        firstNonEmpty(os.Getenv("SESSIONCAST_API_URL"), fc.APIURL, defaultAPIURL),
		TmuxBin:       firstNonEmpty(os.Getenv("SESSIONCAST_TMUX_BIN"), fc.TmuxBin),
		Home:          home,
		AccessKeyPath: filepath.Join(home, "access.key"),
		LogLevel:      firstNonEmpty(os.Getenv("SESSIONCAST_LOG_LEVEL"), fc.LogLevel),
		Control:       fc.Control,
	}

	if !strings.HasPrefix(cfg.RelayURL, "ws://") && !strings.HasPrefix(cfg.RelayURL, "wss://") {
		return nil, fmt.Errorf("relay URL must be a ws:// or wss:// endpoint, got %q", cfg.RelayURL)
	}

	if cfg.MachineID == "" {
		id, err := storage.LoadOrCreateMachineID(filepath.Join(home, "machine.id"))
		if err != nil {
			return nil, err
		}
		cfg.MachineID = id
	}

	token, err := storage.LoadToken(cfg.AccessKeyPath)
	if err != nil {
		return nil, err
	}
	cfg.AuthToken = firstNonEmpty(os.Getenv("SESSIONCAST_AUTH_TOKEN"), token)

	if cfg.Control != nil && cfg.Control.AgentID == "" {
		return nil, fmt.Errorf("control.agentId is required when the control channel is enabled")
	}

	return cfg, nil
}

// ExecTimeouts converts the millisecond settings into durations.
func (e *ExecConfig) ExecTimeouts() (def, max time.Duration) {
	return time.Duration(e.DefaultTimeoutMs) * time.Millisecond,
		time.Duration(e.MaxTimeoutMs) * time.Millisecond
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
