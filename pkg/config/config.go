// Package config loads the skill lifecycle core's daemon configuration:
// a YAML file overlaid with AGENSHIELD_* environment variables, merged the
// way Keymaster's config package layers file and env sources through
// Viper. Validated at load time; the daemon refuses to start on an
// invalid config.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/agenshield/skillcore/pkg/log"
	"github.com/agenshield/skillcore/pkg/types"
)

// Config is the fully-resolved daemon configuration.
type Config struct {
	DeployRoot     string `mapstructure:"deploy_root"`
	BackupDir      string `mapstructure:"backup_dir"`
	QuarantineDir  string `mapstructure:"quarantine_dir"`
	DatabasePath   string `mapstructure:"database_path"`

	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	DebounceMs     int `mapstructure:"debounce_ms"`

	DefaultPolicy struct {
		OnModified string `mapstructure:"on_modified"`
		OnDeleted  string `mapstructure:"on_deleted"`
	} `mapstructure:"default_policy"`

	Remote struct {
		BaseURL   string `mapstructure:"base_url"`
		TimeoutMs int    `mapstructure:"timeout_ms"`
	} `mapstructure:"remote"`

	Analyze struct {
		Endpoint  string `mapstructure:"endpoint"`
		TimeoutMs int    `mapstructure:"timeout_ms"`
	} `mapstructure:"analyze"`

	AutoStartWatcher bool `mapstructure:"auto_start_watcher"`

	LogLevel  string `mapstructure:"log_level"`
	LogJSON   bool   `mapstructure:"log_json"`
	MachineID string `mapstructure:"machine_id"`
}

const envPrefix = "agenshield"

func setDefaults(v *viper.Viper) {
	v.SetDefault("deploy_root", "/var/lib/agenshield/skills")
	v.SetDefault("backup_dir", "/var/lib/agenshield/backups")
	v.SetDefault("quarantine_dir", "/var/lib/agenshield/quarantine")
	v.SetDefault("database_path", "/var/lib/agenshield/skillcore.db")

	v.SetDefault("poll_interval_ms", 30000)
	v.SetDefault("debounce_ms", 500)

	v.SetDefault("default_policy.on_modified", string(types.ActionReinstall))
	v.SetDefault("default_policy.on_deleted", string(types.ActionReinstall))

	v.SetDefault("remote.base_url", "")
	v.SetDefault("remote.timeout_ms", 30000)

	v.SetDefault("analyze.endpoint", "")
	v.SetDefault("analyze.timeout_ms", 30000)

	v.SetDefault("auto_start_watcher", true)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("machine_id", "")
}

// Load reads configPath (if non-empty and present) as YAML, overlays
// AGENSHIELD_* environment variables, and returns the validated Config.
// An empty or missing configPath is not an error: defaults plus env
// still produce a usable configuration.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the loaded configuration for internal consistency.
func (c *Config) Validate() error {
	if c.DeployRoot == "" {
		return fmt.Errorf("deploy_root must not be empty")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty")
	}
	if c.PollIntervalMs <= 0 {
		return fmt.Errorf("poll_interval_ms must be positive, got %d", c.PollIntervalMs)
	}
	if c.DebounceMs < 0 {
		return fmt.Errorf("debounce_ms must not be negative, got %d", c.DebounceMs)
	}
	if _, err := parseAction(c.DefaultPolicy.OnModified); err != nil {
		return fmt.Errorf("default_policy.on_modified: %w", err)
	}
	if _, err := parseAction(c.DefaultPolicy.OnDeleted); err != nil {
		return fmt.Errorf("default_policy.on_deleted: %w", err)
	}
	return nil
}

func parseAction(s string) (types.PolicyAction, error) {
	switch types.PolicyAction(s) {
	case types.ActionReinstall, types.ActionQuarantine:
		return types.PolicyAction(s), nil
	default:
		return "", fmt.Errorf("unrecognized policy action %q", s)
	}
}

// Policy returns the configured default Policy.
func (c *Config) Policy() types.Policy {
	onModified, _ := parseAction(c.DefaultPolicy.OnModified)
	onDeleted, _ := parseAction(c.DefaultPolicy.OnDeleted)
	return types.Policy{OnModified: onModified, OnDeleted: onDeleted}
}

// PollInterval is PollIntervalMs as a time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// Debounce is DebounceMs as a time.Duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// RemoteTimeout is Remote.TimeoutMs as a time.Duration.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.TimeoutMs) * time.Millisecond
}

// AnalyzeTimeout is Analyze.TimeoutMs as a time.Duration.
func (c *Config) AnalyzeTimeout() time.Duration {
	return time.Duration(c.Analyze.TimeoutMs) * time.Millisecond
}

// LogConfig translates the loaded log settings into pkg/log's Config.
func (c *Config) LogConfig() log.Config {
	return log.Config{Level: log.Level(c.LogLevel), JSONOutput: c.LogJSON}
}
