// Package config loads the global bob configuration and the optional
// per-project .bob.yaml file. The global config holds process-wide state
// (backend selection, rolling-context cap, log level); the project file
// contributes session defaults such as the test command.
package config

import (
	"time"

	"github.com/dioko-ai/bob/internal/constants"
)

// Config is the merged global configuration.
type Config struct {
	// Backend is the agent backend applied to adapters created after load.
	// Mutated by /backend; in-flight agent runs are not swapped.
	Backend string `mapstructure:"backend"`

	// Storage configures where session state lives.
	Storage StorageConfig `mapstructure:"storage"`

	// Context configures the rolling context buffer.
	Context ContextConfig `mapstructure:"context"`

	// Log configures CLI logging.
	Log LogConfig `mapstructure:"log"`

	// AgentTimeout bounds a single backend run. Zero means no timeout;
	// runner-level timeouts surface as ordinary failing verdicts.
	AgentTimeout time.Duration `mapstructure:"agent_timeout"`
}

// StorageConfig locates the sessions root.
type StorageConfig struct {
	// RootDir overrides the canonical sessions root. Empty uses
	// $HOME/.bob/sessions with the legacy .metaagent fallback.
	RootDir string `mapstructure:"root_dir"`
}

// ContextConfig bounds the rolling context.
type ContextConfig struct {
	// Cap is the maximum retained entries; oldest are evicted first.
	Cap int `mapstructure:"cap"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	// Level is the zerolog level name (debug, info, warn, error).
	Level string `mapstructure:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend: "",
		Context: ContextConfig{Cap: constants.DefaultRollingContextCap},
		Log:     LogConfig{Level: "info"},
	}
}

// ProjectConfig is the optional per-project .bob.yaml, parsed with yaml.v3.
type ProjectConfig struct {
	// Title seeds the session title for sessions created in this project.
	Title string `yaml:"title"`

	// TestCommand is the deterministic test command for test_run tasks.
	TestCommand string `yaml:"test_command"`

	// Backend overrides the global backend for this project.
	Backend string `yaml:"backend"`
}
