// Package config loads the bot configuration from a YAML file and CLEARSKY_*
// environment variables, applies defaults and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrConfiguration wraps every loading or validation failure.
var ErrConfiguration = errors.New("configuration error")

// Config is the complete application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"log"`
	Platform  PlatformConfig  `mapstructure:"platform"`
	Files     FilesConfig     `mapstructure:"files"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Poster    PosterConfig    `mapstructure:"poster"`
	Reactor   ReactorConfig   `mapstructure:"reactor"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Chart     ChartConfig     `mapstructure:"chart"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// PlatformConfig selects where posts go. The "log" kind only logs them.
type PlatformConfig struct {
	Kind     string         `mapstructure:"kind" validate:"oneof=log telegram"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Token     string `mapstructure:"token"`
	ChannelID int64  `mapstructure:"channel_id"`
	ServerURL string `mapstructure:"server_url" validate:"omitempty,url"`
}

type FilesConfig struct {
	Registry string `mapstructure:"registry" validate:"required"`
	Cursor   string `mapstructure:"cursor"   validate:"required"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// PosterConfig controls the daily post.
type PosterConfig struct {
	Hour      int      `mapstructure:"hour"      validate:"min=0,max=23"`
	Timezone  string   `mapstructure:"timezone"  validate:"required"`
	Greetings []string `mapstructure:"greetings" validate:"min=1,dive,required"`
	Template  string   `mapstructure:"template"  validate:"required"`

	// Location is Timezone resolved by LoadConfig.
	Location *time.Location `mapstructure:"-"`
}

type ReactorConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"min=1s"`
}

// ResolverConfig controls retries of external lookups. MaxAttempts 0 retries forever.
type ResolverConfig struct {
	RetryDelay  time.Duration `mapstructure:"retry_delay"  validate:"min=0"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=0"`
}

type ChartConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

type GeocoderConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"min=1s,max=10m"`
}

// SchedulerConfig holds cron schedules of maintenance tasks, keyed by task name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// MessagesConfig holds reply templates. See package message for the available fields.
type MessagesConfig struct {
	Added            string `mapstructure:"added"             validate:"required"`
	AlreadyPublished string `mapstructure:"already_published" validate:"required"`
	Show             string `mapstructure:"show"              validate:"required"`
	ShowFailed       string `mapstructure:"show_failed"       validate:"required"`
}

// LoadConfig reads path (optional; a missing file means defaults only), applies
// environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CLEARSKY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("%w: failed to read config file %s: %w", ErrConfiguration, path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: failed to stat config file %s: %w", ErrConfiguration, path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %w", ErrConfiguration, err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if cfg.Platform.Kind == "telegram" && cfg.Platform.Telegram.Token == "" {
		return nil, fmt.Errorf("%w: platform.telegram.token is required for the telegram platform", ErrConfiguration)
	}

	loc, err := time.LoadLocation(cfg.Poster.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid poster.timezone %q: %w", ErrConfiguration, cfg.Poster.Timezone, err)
	}
	cfg.Poster.Location = loc

	return cfg, nil
}
