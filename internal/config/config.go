// Package config loads agent-mail configuration from defaults, an optional
// YAML file, and AGENT_MAIL_* environment variables, in that order.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	DBPath   string      `koanf:"db_path"`
	LogLevel string      `koanf:"log_level"`
	Roles    []string    `koanf:"roles"`
	Watch    WatchConfig `koanf:"watch"`
}

type WatchConfig struct {
	Interval  string `koanf:"interval"`
	StatePath string `koanf:"state_path"`
	LockPath  string `koanf:"lock_path"`
	// RetentionSchedule is a standard cron spec; empty disables the
	// periodic delete-completed sweep.
	RetentionSchedule string `koanf:"retention_schedule"`
	RetentionArchived bool   `koanf:"retention_archived"`
}

const (
	DefaultLogLevel      = "info"
	DefaultWatchInterval = "1s"
)

// DefaultRoles mirrors the engine default; configured roles replace it
// wholesale rather than merging.
var DefaultRoles = []string{"User", "PM", "Dev", "DS"}

func dataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".agent-mail")
}

// Load reads configuration. An empty path means "use
// ~/.agent-mail/config.yaml if present".
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"db_path":                  filepath.Join(dataDir(), "mail.db"),
		"log_level":                DefaultLogLevel,
		"roles":                    DefaultRoles,
		"watch.interval":           DefaultWatchInterval,
		"watch.state_path":         filepath.Join(dataDir(), "watch.state"),
		"watch.lock_path":          filepath.Join(dataDir(), "watch.lock"),
		"watch.retention_schedule": "",
		"watch.retention_archived": false,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	} else {
		globalPath := filepath.Join(dataDir(), "config.yaml")
		if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
			slog.Debug("global config not found or invalid", "path", globalPath, "error", err)
		}
	}

	// Double underscore separates nesting so AGENT_MAIL_DB_PATH stays a
	// flat key and AGENT_MAIL_WATCH__INTERVAL reaches watch.interval.
	k.Load(env.Provider("AGENT_MAIL_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "AGENT_MAIL_")), "__", ".", -1)
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.Roles) == 0 {
		cfg.Roles = DefaultRoles
	}
	return &cfg, nil
}

// WatchInterval parses the configured poll interval, falling back to the
// default on bad input.
func (c *Config) WatchInterval() time.Duration {
	d, err := time.ParseDuration(c.Watch.Interval)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultWatchInterval)
	}
	return d
}
