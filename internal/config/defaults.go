package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration
const (
	DefaultLogLevel     = "info"
	DefaultPlatformKind = "log"

	DefaultRegistryPath = "tables/locations.csv"
	DefaultCursorPath   = "tables/last_seen_id.txt"
	DefaultDBPath       = "storage.db"

	DefaultPosterHour     = 17
	DefaultPosterTimezone = "Local"
	DefaultPostTemplate   = "{{.Greeting}}\n\nTonight's Clear Sky Chart for {{.Title}}\n\nHow to read this chart: {{.InfoURL}}"

	DefaultPollInterval = 10 * time.Second
	DefaultRetryDelay   = 5 * time.Second
	DefaultHTTPTimeout  = 30 * time.Second

	DefaultChartBaseURL    = "https://www.cleardarksky.com"
	DefaultGeocoderBaseURL = "https://nominatim.openstreetmap.org"

	DefaultMaintenanceSchedule = "0 0 4 * * 0" // Sundays at 04:00
)

// DefaultGreetings open the daily post.
var DefaultGreetings = []string{
	"Good evening, stargazers!",
	"Clear skies, everyone!",
	"Here's tonight's forecast for the observers out there.",
	"Planning a night under the stars?",
}

// DefaultMessages are the reply templates.
var DefaultMessages = MessagesConfig{
	Added:            "{{.Title}} has been added to the list!",
	AlreadyPublished: "{{.Title}} was the closest found location with Clear Sky Charts available, and it is already being published.",
	Show:             "Here is the Clear Sky Chart for {{.Title}}.\n\nHow to read this chart: {{.InfoURL}}",
	ShowFailed:       "Sorry, I couldn't fetch the Clear Sky Chart for {{.Title}} right now.",
}

// setDefaults registers every key so environment overrides apply to all of them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.json", false)

	v.SetDefault("platform.kind", DefaultPlatformKind)
	v.SetDefault("platform.telegram.token", "")
	v.SetDefault("platform.telegram.channel_id", 0)
	v.SetDefault("platform.telegram.server_url", "https://api.telegram.org")

	v.SetDefault("files.registry", DefaultRegistryPath)
	v.SetDefault("files.cursor", DefaultCursorPath)
	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("poster.hour", DefaultPosterHour)
	v.SetDefault("poster.timezone", DefaultPosterTimezone)
	v.SetDefault("poster.greetings", DefaultGreetings)
	v.SetDefault("poster.template", DefaultPostTemplate)

	v.SetDefault("reactor.poll_interval", DefaultPollInterval)
	v.SetDefault("resolver.retry_delay", DefaultRetryDelay)
	v.SetDefault("resolver.max_attempts", 0)

	v.SetDefault("chart.base_url", DefaultChartBaseURL)
	v.SetDefault("geocoder.base_url", DefaultGeocoderBaseURL)
	v.SetDefault("http.timeout", DefaultHTTPTimeout)

	v.SetDefault("scheduler.tasks.sql_maintenance.enabled", true)
	v.SetDefault("scheduler.tasks.sql_maintenance.schedule", DefaultMaintenanceSchedule)

	v.SetDefault("metrics.addr", "")

	v.SetDefault("messages.added", DefaultMessages.Added)
	v.SetDefault("messages.already_published", DefaultMessages.AlreadyPublished)
	v.SetDefault("messages.show", DefaultMessages.Show)
	v.SetDefault("messages.show_failed", DefaultMessages.ShowFailed)
}
