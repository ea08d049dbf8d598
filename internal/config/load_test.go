package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dioko-ai/bob/internal/constants"
)

func TestDefault_Values(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.Backend)
	assert.Equal(t, constants.DefaultRollingContextCap, cfg.Context.Cap)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_UsesDefaultsWithoutConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultRollingContextCap, cfg.Context.Cap)
}

func TestLoad_ReadsGlobalConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, constants.BobHome)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	content := "backend: claude\ncontext:\n  cap: 16\nagent_timeout: 30m\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, constants.GlobalConfigName), []byte(content), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "claude", cfg.Backend)
	assert.Equal(t, 16, cfg.Context.Cap)
	assert.Equal(t, "30m0s", cfg.AgentTimeout.String())
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("BOB_BACKEND", "codex")

	dir := filepath.Join(home, constants.BobHome)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, constants.GlobalConfigName), []byte("backend: claude\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "codex", cfg.Backend)
}

func TestSaveBackend_RoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	require.NoError(t, SaveBackend("claude"))
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "claude", cfg.Backend)
}

func TestLoadProject_MissingFileIsZeroValue(t *testing.T) {
	cfg, err := LoadProject(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfg.TestCommand)
}

func TestLoadProject_ParsesYAML(t *testing.T) {
	dir := t.TempDir()
	content := "title: payments service\ntest_command: go test ./...\nbackend: claude\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, constants.ProjectConfigName), []byte(content), 0o600))

	cfg, err := LoadProject(dir)
	require.NoError(t, err)
	assert.Equal(t, "payments service", cfg.Title)
	assert.Equal(t, "go test ./...", cfg.TestCommand)
	assert.Equal(t, "claude", cfg.Backend)
}

func TestLoadProject_MalformedYAMLFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, constants.ProjectConfigName), []byte(":\n  - ["), 0o600))

	_, err := LoadProject(dir)
	require.Error(t, err)
}
