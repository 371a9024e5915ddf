// Package config holds runtime configuration for the server.
package config

// Config is the full runtime configuration.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database path. ":memory:" for in-memory.
	DBPath string `koanf:"db_path"`

	// CORSOrigins is a comma-separated list of allowed origins.
	CORSOrigins string `koanf:"cors_origins"`

	// DefaultRepeatPolicy applies when the settings table has no
	// repeat_policy row yet: unlimited, per_day, or per_week.
	DefaultRepeatPolicy string `koanf:"default_repeat_policy"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
}

// New returns the default configuration.
func New() *Config {
	return &Config{
		Addr:                ":8080",
		DBPath:              "kpitrack.db",
		CORSOrigins:         "http://localhost:5173,http://localhost:8080",
		DefaultRepeatPolicy: "per_week",
		LogLevel:            "info",
	}
}
