package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mmuteeullah/TimeScope/internal/timeline"
)

// Config represents the complete configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Channel  string         `yaml:"channel"`
	Timeline TimelineConfig `yaml:"timeline"`
	UI       UIConfig       `yaml:"ui"`
	System   SystemConfig   `yaml:"system"`
	API      APIConfig      `yaml:"api"`
}

// ServerConfig defines the remote recorder connection
type ServerConfig struct {
	URL          string `yaml:"url"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	SyncInterval int    `yaml:"sync_interval"` // seconds between server time syncs (default: 10)
}

// StorageConfig defines local recording storage settings
type StorageConfig struct {
	BasePath        string `yaml:"base_path"`
	SegmentDuration int    `yaml:"segment_duration"` // seconds (default: 1800)
}

// TimelineConfig defines timeline behavior
type TimelineConfig struct {
	BufferScreens     int     `yaml:"buffer_screens"`       // screens prefetched per side (default: 3)
	DragThresholdPx   float64 `yaml:"drag_threshold_px"`    // pixels (default: 5)
	DefaultZoom       int     `yaml:"default_zoom"`         // zoom ladder index, zero picks the default (8, one hour)
	Live              bool    `yaml:"live"`                 // start pinned to the live edge
	ResetOnModeSwitch string  `yaml:"reset_on_mode_switch"` // auto, always or never (default: auto)
}

// UIConfig defines the window settings
type UIConfig struct {
	Width     int  `yaml:"width"`  // logical pixels (default: 1280)
	Height    int  `yaml:"height"` // logical pixels (default: 240)
	ShowStats bool `yaml:"show_stats"`
}

// SystemConfig defines system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// APIConfig defines the embedded availability API settings
type APIConfig struct {
	Enabled        bool       `yaml:"enabled"`
	Port           int        `yaml:"port"` // default: 8089
	Authentication AuthConfig `yaml:"authentication"`
}

// AuthConfig defines authentication settings
type AuthConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Username       string `yaml:"username"`
	PasswordHash   string `yaml:"password_hash"`   // bcrypt hash
	SessionTimeout int    `yaml:"session_timeout"` // minutes (default: 60)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Remote reports whether availability comes from a remote recorder
// rather than the local filesystem.
func (c *Config) Remote() bool {
	return c.Server.URL != ""
}

// applyDefaults fills unset fields with their defaults
func (c *Config) applyDefaults() {
	if c.Storage.SegmentDuration == 0 {
		c.Storage.SegmentDuration = 1800
	}
	if c.Server.SyncInterval <= 0 {
		c.Server.SyncInterval = 10
	}
	if c.Timeline.BufferScreens == 0 {
		c.Timeline.BufferScreens = 3
	}
	if c.Timeline.DragThresholdPx == 0 {
		c.Timeline.DragThresholdPx = 5
	}
	if c.Timeline.DefaultZoom == 0 {
		c.Timeline.DefaultZoom = timeline.DefaultZoom
	}
	if c.Timeline.ResetOnModeSwitch == "" {
		c.Timeline.ResetOnModeSwitch = "auto"
	}
	if c.UI.Width == 0 {
		c.UI.Width = 1280
	}
	if c.UI.Height == 0 {
		c.UI.Height = 240
	}
	if c.API.Port == 0 {
		c.API.Port = 8089
	}
	if c.API.Authentication.SessionTimeout == 0 {
		c.API.Authentication.SessionTimeout = 60
	}
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Server.URL == "" && c.Storage.BasePath == "" {
		return fmt.Errorf("either server.url or storage.base_path is required")
	}

	if c.Server.URL != "" && c.Storage.BasePath != "" {
		return fmt.Errorf("server.url and storage.base_path are mutually exclusive")
	}

	if c.Channel == "" {
		return fmt.Errorf("channel is required")
	}

	if c.Storage.BasePath != "" && c.Storage.SegmentDuration < 60 {
		return fmt.Errorf("segment_duration must be at least 60 seconds")
	}

	if c.Timeline.BufferScreens < 1 {
		return fmt.Errorf("timeline.buffer_screens must be at least 1")
	}

	if c.Timeline.DefaultZoom < 0 || c.Timeline.DefaultZoom >= len(timeline.ZoomLevels()) {
		return fmt.Errorf("timeline.default_zoom must be between 0 and %d", len(timeline.ZoomLevels())-1)
	}

	switch c.Timeline.ResetOnModeSwitch {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("timeline.reset_on_mode_switch must be auto, always or never")
	}

	if c.API.Enabled && c.Storage.BasePath == "" {
		return fmt.Errorf("api.enabled requires storage.base_path")
	}

	if c.API.Authentication.Enabled {
		if c.API.Authentication.Username == "" {
			return fmt.Errorf("api.authentication.username is required when authentication is enabled")
		}
		if c.API.Authentication.PasswordHash == "" {
			return fmt.Errorf("api.authentication.password_hash is required when authentication is enabled")
		}
	}

	return nil
}
