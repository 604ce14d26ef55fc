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
	Server  ServerConfig            `yaml:"server"`
	Spotify SpotifyConfig           `yaml:"spotify"`
	Workout WorkoutConfig           `yaml:"workout"`
	Genres  GenresConfig            `yaml:"genres"`
	Session SessionConfig           `yaml:"session"`
	API     APIConfig               `yaml:"api"`
	Filters map[string]FilterConfig `yaml:"filters"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr               string      `yaml:"addr" default:":8080"`
	CORSOrigins        []string    `yaml:"cors_origins"`
	ShutdownTimeoutSec int         `yaml:"shutdown_timeout_sec" default:"10" validate:"gte=1"`
	Hooks              HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID         string  `yaml:"client_id" validate:"required"`
	ClientSecret     string  `yaml:"client_secret" validate:"required"`
	RedirectURL      string  `yaml:"redirect_url" default:"http://127.0.0.1:8080/callback" validate:"url"`
	Market           string  `yaml:"market" validate:"omitempty,len=2"`
	MaxRetries       int     `yaml:"max_retries" default:"3" validate:"gte=1,lte=10"`
	RetryDelayMs     int     `yaml:"retry_delay_ms" default:"500" validate:"gte=0,lte=30000"`
	RequestTimeoutMs int     `yaml:"request_timeout_ms" default:"10000" validate:"gte=0"`
	RateLimit        float64 `yaml:"rate_limit" default:"5" validate:"gte=0"`
}

// WorkoutConfig tunes playlist builds.
type WorkoutConfig struct {
	TempoTolerance      float64 `yaml:"tempo_tolerance" default:"0.1" validate:"gt=0,lt=1"`
	MaxArtists          int     `yaml:"max_artists" default:"10" validate:"gte=1"`
	AverageTrackMinutes int     `yaml:"average_track_minutes" default:"4" validate:"gte=1"`
	MaxGenres           int     `yaml:"max_genres" default:"5" validate:"gte=1"`
	PlaylistPrefix      string  `yaml:"playlist_prefix" default:"xflow" validate:"required"`
	PlaylistPublic      *bool   `yaml:"playlist_public" default:"true"`
}

// GenresConfig configures the genre catalog.
type GenresConfig struct {
	Fallback    []string `yaml:"fallback"`
	CacheTTLSec int      `yaml:"cache_ttl_sec" default:"3600" validate:"gte=0"`
}

// SessionConfig configures the preference hand-off store.
type SessionConfig struct {
	DSN          string `yaml:"dsn" default:"memory" validate:"required"`
	CookieName   string `yaml:"cookie_name" default:"xflow_session" validate:"required"`
	CookieSecure bool   `yaml:"cookie_secure"`
	TTLMin       int    `yaml:"ttl_min" default:"15" validate:"gte=1"`
}

// APIConfig configures the RPC surface.
type APIConfig struct {
	Token string `yaml:"token"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
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

// Parse builds a configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REDIRECT_URI"); v != "" {
		c.Spotify.RedirectURL = v
	}
	if v := os.Getenv("XFLOW_SESSION_DSN"); v != "" {
		c.Session.DSN = v
	}
	if v := os.Getenv("XFLOW_API_TOKEN"); v != "" {
		c.API.Token = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	for _, g := range c.Genres.Fallback {
		if strings.TrimSpace(g) == "" {
			return errors.New("genres.fallback must not contain empty entries")
		}
	}
	for _, origin := range c.Server.CORSOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return errors.Newf("invalid cors origin: %s", origin)
		}
	}
	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// IsPlaylistPublic reports whether created playlists are public.
func (c *Config) IsPlaylistPublic() bool {
	return c.Workout.PlaylistPublic == nil || *c.Workout.PlaylistPublic
}

// RetryDelay returns the base delay between Spotify retries.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Spotify.RetryDelayMs) * time.Millisecond
}

// RequestTimeout returns the per-call Spotify timeout. Zero disables it.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Spotify.RequestTimeoutMs) * time.Millisecond
}

// GenreCacheTTL returns how long a successful genre listing is reused.
func (c *Config) GenreCacheTTL() time.Duration {
	return time.Duration(c.Genres.CacheTTLSec) * time.Second
}

// SessionTTL returns how long stored preferences stay valid.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMin) * time.Minute
}

// ShutdownTimeout returns the graceful shutdown deadline.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSec) * time.Second
}
