package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SESSIONCAST_HOME_DIR", home)
	t.Setenv("SESSIONCAST_MACHINE_ID", "")
	t.Setenv("SESSIONCAST_RELAY_URL", "")
	t.Setenv("SESSIONCAST_AUTH_TOKEN", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, home, cfg.Home)
	require.Equal(t, defaultRelayURL, cfg.RelayURL)
	require.Equal(t, defaultAPIURL, cfg.APIURL)
	require.NotEmpty(t, cfg.MachineID, "machine id generated on first run")
	require.Nil(t, cfg.Control)

	// The generated machine id is stable across loads.
	again, err := Load()
	require.NoError(t, err)
	require.Equal(t, cfg.MachineID, again.MachineID)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SESSIONCAST_HOME_DIR", home)
	t.Setenv("SESSIONCAST_MACHINE_ID", "env-machine")
	t.Setenv("SESSIONCAST_RELAY_URL", "ws://localhost:8080/v1/agent")
	t.Setenv("SESSIONCAST_AUTH_TOKEN", "")

	fileBody := `
machineId: file-machine
relayUrl: wss://file.example.com/agent
logLevel: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(fileBody), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "env-machine", cfg.MachineID)
	require.Equal(t, "ws://localhost:8080/v1/agent", cfg.RelayURL)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadControlSection(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SESSIONCAST_HOME_DIR", home)
	t.Setenv("SESSIONCAST_MACHINE_ID", "m1")
	t.Setenv("SESSIONCAST_RELAY_URL", "")
	t.Setenv("SESSIONCAST_AUTH_TOKEN", "")

	fileBody := `
control:
  agentId: agent-7
  exec:
    allowedCommands:
      - "git "
      - "^(echo|printf) "
    defaultTimeoutMs: 5000
    pty: true
  llm:
    baseUrl: https://api.openai.com/v1
    model: gpt-4o-mini
`
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(fileBody), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.Control)
	require.Equal(t, "agent-7", cfg.Control.AgentID)
	require.NotNil(t, cfg.Control.Exec)
	require.Len(t, cfg.Control.Exec.AllowedCommands, 2)
	require.True(t, cfg.Control.Exec.Pty)
	require.NotNil(t, cfg.Control.LLM)
	require.Equal(t, "gpt-4o-mini", cfg.Control.LLM.Model)
}

func TestLoadRejectsControlWithoutAgentID(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SESSIONCAST_HOME_DIR", home)
	t.Setenv("SESSIONCAST_MACHINE_ID", "m1")
	t.Setenv("SESSIONCAST_RELAY_URL", "")
	t.Setenv("SESSIONCAST_AUTH_TOKEN", "")

	fileBody := "control:\n  exec: {}\n"
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(fileBody), 0o600))

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "agentId")
}

func TestLoadRejectsNonWebsocketRelayURL(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SESSIONCAST_HOME_DIR", home)
	t.Setenv("SESSIONCAST_RELAY_URL", "https://relay.example.com")
	t.Setenv("SESSIONCAST_AUTH_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadReadsStoredToken(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SESSIONCAST_HOME_DIR", home)
	t.Setenv("SESSIONCAST_MACHINE_ID", "m1")
	t.Setenv("SESSIONCAST_RELAY_URL", "")
	t.Setenv("SESSIONCAST_AUTH_TOKEN", "")

	require.NoError(t, os.WriteFile(filepath.Join(home, "access.key"), []byte("tok-abc\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "tok-abc", cfg.AuthToken)
}
