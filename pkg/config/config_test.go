package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenshield/skillcore/pkg/types"
)

func TestLoad_DefaultsWithNoFile(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 30000, c.PollIntervalMs)
	assert.Equal(t, 500, c.DebounceMs)
	assert.True(t, c.AutoStartWatcher)
	assert.Equal(t, types.Policy{OnModified: types.ActionReinstall, OnDeleted: types.ActionReinstall}, c.Policy())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
deploy_root: /tmp/skills
database_path: /tmp/skillcore.db
poll_interval_ms: 5000
default_policy:
  on_modified: quarantine
  on_deleted: reinstall
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/skills", c.DeployRoot)
	assert.Equal(t, 5000, c.PollIntervalMs)
	assert.Equal(t, types.ActionQuarantine, c.Policy().OnModified)
	assert.Equal(t, types.ActionReinstall, c.Policy().OnDeleted)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poll_interval_ms: 5000\n"), 0o600))

	t.Setenv("AGENSHIELD_POLL_INTERVAL_MS", "9999")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, c.PollIntervalMs)
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestValidate_RejectsInvalidPolicyAction(t *testing.T) {
	c := &Config{DeployRoot: "/x", DatabasePath: "/y", PollIntervalMs: 1000}
	c.DefaultPolicy.OnModified = "delete-everything"
	c.DefaultPolicy.OnDeleted = "reinstall"
	err := c.Validate()
	require.Error(t, err)
}

func TestValidate_RejectsNonPositivePollInterval(t *testing.T) {
	c := &Config{DeployRoot: "/x", DatabasePath: "/y", PollIntervalMs: 0}
	c.DefaultPolicy.OnModified = "reinstall"
	c.DefaultPolicy.OnDeleted = "reinstall"
	err := c.Validate()
	require.Error(t, err)
}

func TestDurations_ConvertFromMilliseconds(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(30000), c.PollInterval().Milliseconds())
	assert.Equal(t, int64(500), c.Debounce().Milliseconds())
}
