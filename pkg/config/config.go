// Package config provides configuration management for the lifecycle engine
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sheetops/lifecycled/pkg/types"
)

// RegistryConfig selects and parameterizes the registry backend
type RegistryConfig struct {
	Backend string `yaml:"backend" json:"backend" mapstructure:"backend" validate:"required,oneof=memory sqlite"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty" mapstructure:"path"`
}

// NATSConfig holds NATS connection settings for the edit-event subject and
// the sweep run-lock bucket
type NATSConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	URLs        []string      `yaml:"urls" json:"urls" mapstructure:"urls"`
	EditSubject string        `yaml:"edit_subject" json:"edit_subject" mapstructure:"edit_subject"`
	LockBucket  string        `yaml:"lock_bucket" json:"lock_bucket" mapstructure:"lock_bucket"`
	LockTTL     time.Duration `yaml:"lock_ttl" json:"lock_ttl" mapstructure:"lock_ttl"`
}

// GatewayConfig parameterizes one HTTP gateway client
type GatewayConfig struct {
	Endpoint string        `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
}

// Config is the engine configuration loaded at startup. Runtime tunables
// (notifyEnabled, notifyEmail, schedulingEnabled, calendarId) live in the
// registry's config sheet instead and are read fresh per operation.
type Config struct {
	LogLevel      string         `yaml:"log_level" json:"log_level" mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	HTTPPort      int            `yaml:"http_port" json:"http_port" mapstructure:"http_port" validate:"gte=0,lte=65535"`
	AuthToken     string         `yaml:"auth_token,omitempty" json:"auth_token,omitempty" mapstructure:"auth_token"`
	StaleDays     int            `yaml:"stale_days" json:"stale_days" mapstructure:"stale_days" validate:"gte=1"`
	SweepInterval time.Duration  `yaml:"sweep_interval" json:"sweep_interval" mapstructure:"sweep_interval" validate:"required"`
	Registry      RegistryConfig `yaml:"registry" json:"registry" mapstructure:"registry" validate:"required"`
	NATS          NATSConfig     `yaml:"nats" json:"nats" mapstructure:"nats"`
	Notification  GatewayConfig  `yaml:"notification" json:"notification" mapstructure:"notification"`
	Scheduling    GatewayConfig  `yaml:"scheduling" json:"scheduling" mapstructure:"scheduling"`

	mu        sync.RWMutex `yaml:"-" json:"-" mapstructure:"-"`
	validator *validator.Validate
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LogLevel:      "info",
		HTTPPort:      8080,
		StaleDays:     types.DefaultStaleDays,
		SweepInterval: 24 * time.Hour,
		Registry: RegistryConfig{
			Backend: "memory",
		},
		NATS: NATSConfig{
			Enabled:     false,
			URLs:        []string{"nats://127.0.0.1:4222"},
			EditSubject: "registry.edits",
			LockBucket:  "lifecycled-locks",
			LockTTL:     10 * time.Minute,
		},
		Notification: GatewayConfig{Timeout: 10 * time.Second},
		Scheduling:   GatewayConfig{Timeout: 10 * time.Second},
		validator:    validator.New(),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.validator == nil {
		c.validator = validator.New()
	}
	if err := c.validator.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Registry.Backend == "sqlite" && c.Registry.Path == "" {
		return fmt.Errorf("invalid configuration: registry.path is required for the sqlite backend")
	}
	return nil
}

// FromFile loads configuration from a YAML or JSON file, layered over the
// defaults
func (c *Config) FromFile(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := v.Unmarshal(c); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// ToYAMLFile saves configuration to a YAML file
func (c *Config) ToYAMLFile(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Watch reloads the configuration whenever the file changes and invokes
// onChange with the reloaded config. It returns a stop function.
func (c *Config) Watch(path string, onChange func(*Config)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != path || !event.Has(fsnotify.Write) {
					continue
				}
				if err := c.FromFile(path); err != nil {
					continue
				}
				if err := c.Validate(); err != nil {
					continue
				}
				if onChange != nil {
					onChange(c)
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
