// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Playback PlaybackConfig `yaml:"playback"`
	Playlist PlaylistConfig `yaml:"playlist"`
	Uploads  UploadsConfig  `yaml:"uploads"`
	Storage  StorageConfig  `yaml:"storage"`
	History  HistoryConfig  `yaml:"history"`
	Messages MessagesConfig `yaml:"messages"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr               string      `yaml:"addr" default:":8080"`
	MaxSessions        int         `yaml:"max_sessions" default:"1000" validate:"gte=1"`
	SessionIdleSec     int         `yaml:"session_idle_sec" default:"1800" validate:"gte=10"`
	ShutdownTimeoutSec int         `yaml:"shutdown_timeout_sec" default:"10" validate:"gte=1,lte=300"`
	Hooks              HooksConfig `yaml:"hooks"`
}

// HooksConfig represents shell commands run around the server lifecycle.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// CatalogConfig represents the marketplace REST API configuration.
type CatalogConfig struct {
	BaseURL    string `yaml:"base_url" validate:"required,url"`
	TimeoutSec int    `yaml:"timeout_sec" default:"10" validate:"gte=1,lte=120"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	PreviewLimitSec int          `yaml:"preview_limit_sec" default:"20" validate:"gte=1,lte=600"`
	InitialVolume   float64      `yaml:"initial_volume" default:"1" validate:"gte=0,lte=1"`
	Output          OutputConfig `yaml:"output"`
}

// OutputConfig selects the media output implementation.
type OutputConfig struct {
	Type     string         `yaml:"type" default:"clock" validate:"oneof=clock"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// PlaylistConfig represents playlist building configuration.
type PlaylistConfig struct {
	// Dedupe drops repeated track IDs (a purchased track that is also a favorite).
	Dedupe bool `yaml:"dedupe"`
}

// UploadsConfig represents upload preview configuration.
type UploadsConfig struct {
	MaxSizeMB         int      `yaml:"max_size_mb" default:"50" validate:"gte=1,lte=500"`
	AllowedExtensions []string `yaml:"allowed_extensions" default:"[\"mp3\",\"wav\",\"ogg\",\"m4a\",\"flac\"]" validate:"min=1"`
}

// StorageConfig represents object storage configuration.
// Signing is disabled when Endpoint is empty.
type StorageConfig struct {
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access_key" validate:"required_with=Endpoint"`
	SecretKey     string `yaml:"secret_key" validate:"required_with=Endpoint"`
	Region        string `yaml:"region" default:"us-east-1"`
	UseSSL        bool   `yaml:"use_ssl"`
	URLExpirySec  int    `yaml:"url_expiry_sec" default:"3600" validate:"gte=60,lte=604800"`
	DefaultBucket string `yaml:"default_bucket"`
}

// HistoryConfig represents playback history configuration.
// History is disabled when Addr is empty.
type HistoryConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db" validate:"gte=0"`
	MaxEntries int    `yaml:"max_entries" default:"50" validate:"gte=1,lte=10000"`
	KeyPrefix  string `yaml:"key_prefix" default:"kamerplay:history:"`
}

// MessagesConfig represents user-facing messages.
type MessagesConfig struct {
	Success          string `yaml:"success" default:"OK"`
	DefaultError     string `yaml:"default_error" default:"Something went wrong"`
	NoPlayableSource string `yaml:"no_playable_source" default:"This track has no playable audio"`
	PlaybackRejected string `yaml:"playback_rejected" default:"Playback was blocked, press play to retry"`
	SessionNotFound  string `yaml:"session_not_found" default:"Player session not found"`
	TrackNotFound    string `yaml:"track_not_found" default:"Track not found"`
	InvalidUpload    string `yaml:"invalid_upload" default:"Unsupported audio file"`
	UploadTooLarge   string `yaml:"upload_too_large" default:"Audio file is too large"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes, then applies environment
// overrides, defaults and validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("CATALOG_BASE_URL"); v != "" {
		c.Catalog.BaseURL = v
	}
	if v := os.Getenv("STORAGE_ACCESS_KEY"); v != "" {
		c.Storage.AccessKey = v
	}
	if v := os.Getenv("STORAGE_SECRET_KEY"); v != "" {
		c.Storage.SecretKey = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.History.Password = v
	}
}

// GetMessage returns the message for the given code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "success":
		return c.Messages.Success
	case "no_playable_source":
		return c.Messages.NoPlayableSource
	case "playback_rejected":
		return c.Messages.PlaybackRejected
	case "session_not_found":
		return c.Messages.SessionNotFound
	case "track_not_found":
		return c.Messages.TrackNotFound
	case "invalid_upload":
		return c.Messages.InvalidUpload
	case "upload_too_large":
		return c.Messages.UploadTooLarge
	default:
		return c.Messages.DefaultError
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	for _, ext := range c.Uploads.AllowedExtensions {
		if strings.TrimSpace(ext) == "" || strings.Contains(ext, "/") {
			return errors.Newf("invalid upload extension %q", ext)
		}
	}

	return nil
}

// PreviewLimit returns the preview cap as a duration.
func (c *Config) PreviewLimit() time.Duration {
	return time.Duration(c.Playback.PreviewLimitSec) * time.Second
}

// SessionIdleTimeout returns how long a session may go without commands
// before it is closed.
func (c *Config) SessionIdleTimeout() time.Duration {
	return time.Duration(c.Server.SessionIdleSec) * time.Second
}

// ShutdownTimeout returns the graceful shutdown deadline.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSec) * time.Second
}

// CatalogTimeout returns the catalog request timeout.
func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Catalog.TimeoutSec) * time.Second
}

// URLExpiry returns the lifetime of presigned storage URLs.
func (c *Config) URLExpiry() time.Duration {
	return time.Duration(c.Storage.URLExpirySec) * time.Second
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Uploads.MaxSizeMB) << 20
}

// StorageEnabled reports whether object references can be signed.
func (c *Config) StorageEnabled() bool {
	return c.Storage.Endpoint != ""
}

// HistoryEnabled reports whether playback history is recorded.
func (c *Config) HistoryEnabled() bool {
	return c.History.Addr != ""
}
