// ABOUTME: Tests for configuration loading, env expansion, and validation.
// ABOUTME: Writes temp YAML files and loads them through the real path.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
registry:
  path: /var/lib/switchboard/registry.db
  agent_command: fake-agent
  agent_args: ["-model", "local"]
  model: local
protocol:
  handshake_timeout: 5s
  ask_timeout: 60s
bridge:
  force_direct: true
audit:
  path: /var/log/switchboard/audit.jsonl
  database: /var/lib/switchboard/audit.db
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/switchboard/registry.db", cfg.Registry.Path)
	assert.Equal(t, "fake-agent", cfg.Registry.AgentCommand)
	assert.Equal(t, []string{"-model", "local"}, cfg.Registry.AgentArgs)
	assert.Equal(t, 5*time.Second, cfg.Protocol.HandshakeTimeout)
	assert.Equal(t, 60*time.Second, cfg.Protocol.AskTimeout)
	assert.True(t, cfg.Bridge.ForceDirect)
	assert.Equal(t, "/var/log/switchboard/audit.jsonl", cfg.Audit.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("SWITCHBOARD_DATA", "/data/switchboard")
	path := writeConfig(t, `
registry:
  path: ${SWITCHBOARD_DATA}/registry.db
audit:
  path: ${SWITCHBOARD_DATA}/audit.jsonl
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/switchboard/registry.db", cfg.Registry.Path)
	assert.Equal(t, "/data/switchboard/audit.jsonl", cfg.Audit.Path)
}

func TestLoadUnsetEnvVarExpandsEmpty(t *testing.T) {
	path := writeConfig(t, `
registry:
  path: registry.db
logging:
  level: ${SWITCHBOARD_NO_SUCH_VAR}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Logging.Level)
}

func TestLoadMissingRegistryPath(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: info
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry.path is required")
}

func TestLoadBadDuration(t *testing.T) {
	path := writeConfig(t, `
registry:
  path: registry.db
protocol:
  ask_timeout: sixty seconds
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ask_timeout")
}

func TestLoadNegativeDurationRejected(t *testing.T) {
	path := writeConfig(t, `
registry:
  path: registry.db
protocol:
  handshake_timeout: -5s
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handshake_timeout must not be negative")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "registry: [not: a mapping")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "switchboard.db", cfg.Registry.Path)
	require.NoError(t, cfg.Validate())
}

func TestTimeoutsDefaultToZeroMeaningClientDefaults(t *testing.T) {
	path := writeConfig(t, `
registry:
  path: registry.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.Protocol.HandshakeTimeout)
	assert.Zero(t, cfg.Protocol.AskTimeout)
}
