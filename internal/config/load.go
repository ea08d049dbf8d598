package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/errors"
)

// newViperInstance creates a Viper instance with standard bob settings:
// environment prefix (BOB_), key replacer, and built-in defaults.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("BOB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("backend", def.Backend)
	v.SetDefault("storage.root_dir", def.Storage.RootDir)
	v.SetDefault("context.cap", def.Context.Cap)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("agent_timeout", def.AgentTimeout)
}

// viperDecoderOption wires the duration decode hook so values like "30m"
// unmarshal into time.Duration fields.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

// Load reads the global configuration with the following precedence
// (highest first): environment variables (BOB_*), the global config file
// (~/.bob/config.yaml), built-in defaults. A missing config file is not an
// error.
func Load() (*Config, error) {
	v := newViperInstance()

	if path, ok := globalConfigPathIfExists(); ok {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) {
			return nil, errors.Wrap(err, "failed to read global config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if cfg.Context.Cap <= 0 {
		cfg.Context.Cap = constants.DefaultRollingContextCap
	}
	return &cfg, nil
}

// SaveBackend persists the backend selection to the global config file,
// creating it when absent. Only the backend key is rewritten.
func SaveBackend(name string) error {
	dir, err := GlobalConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}
	v := viper.New()
	path := filepath.Join(dir, constants.GlobalConfigName)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to read global config")
	}
	v.Set("backend", name)
	return errors.Wrap(v.WriteConfigAs(path), "failed to write global config")
}

// LoadProject reads the optional .bob.yaml in the given directory. A
// missing file returns a zero-value config with no error.
func LoadProject(dir string) (*ProjectConfig, error) {
	path := filepath.Join(dir, constants.ProjectConfigName)
	data, err := os.ReadFile(path) //#nosec G304 -- path is the caller's project dir
	if err != nil {
		if os.IsNotExist(err) {
			return &ProjectConfig{}, nil
		}
		return nil, errors.Wrap(err, "failed to read project config")
	}
	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse project config")
	}
	return &cfg, nil
}

// GlobalConfigDir returns the path to the global bob configuration
// directory, typically ~/.bob.
func GlobalConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, constants.BobHome), nil
}

// globalConfigPathIfExists returns the global config path when the file is
// present on disk.
func globalConfigPathIfExists() (string, bool) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", false
	}
	path := filepath.Join(dir, constants.GlobalConfigName)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// isConfigNotFoundError returns true if the error is viper's config file
// not found error.
func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var notFound viper.ConfigFileNotFoundError
	return stderrors.As(err, &notFound)
}
