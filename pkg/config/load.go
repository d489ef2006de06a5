package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/encoding/ini"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes the environment variables overriding settings,
// e.g. DIRMIRROR_SYNC_SOURCE
const EnvPrefix = "DIRMIRROR"

// NewViper returns a viper instance seeded with every known key and its
// default, reading overrides from the environment. INI files are decoded
// on top of the formats viper knows natively.
func NewViper() *viper.Viper {
	codecs := viper.NewCodecRegistry()
	if err := codecs.RegisterCodec("ini", ini.Codec{}); err != nil {
		panic(fmt.Sprintf("config: register ini codec: %v", err))
	}
	v := viper.NewWithOptions(viper.WithCodecRegistry(codecs))

	def := Default()
	v.SetDefault("sync.source", def.Sync.Source)
	v.SetDefault("sync.replica", def.Sync.Replica)
	v.SetDefault("sync.interval", def.Sync.Interval)
	v.SetDefault("sync.prune_empty_dirs", def.Sync.PruneEmptyDirs)
	v.SetDefault("performance.max_workers", def.Performance.MaxWorkers)
	v.SetDefault("performance.buffer_size", def.Performance.BufferSize)
	v.SetDefault("performance.bandwidth", def.Performance.Bandwidth)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.max_size", def.Log.MaxSize)
	v.SetDefault("log.max_backups", def.Log.MaxBackups)
	v.SetDefault("exclude", def.Exclude)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// ReadConfigFile loads a config file into v. With an empty path the file
// named "config" (yaml, json, toml or ini) is searched in the working directory
// and then in the default config directory; not finding one is not an error.
func ReadConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if dir, err := DefaultConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Decode builds a Config from everything v knows (defaults, file, env,
// bound flags). It does not validate.
func Decode(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Configs in the flat layout keep the log path in the sync section
	if cfg.Log.File == "" {
		cfg.Log.File = v.GetString("sync.log")
	}
	return cfg, nil
}

// LoadFromFile loads and validates a configuration file
func LoadFromFile(path string) (*Config, error) {
	v := NewViper()
	if err := ReadConfigFile(v, path); err != nil {
		return nil, err
	}

	cfg, err := Decode(v)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a YAML file
func SaveToFile(cfg *Config, path string) error {
	if err := cfg.validateOptional(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfigDir returns the directory searched for config files
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".config", "dirmirror"), nil
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}
