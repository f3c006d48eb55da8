package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort     = 8000
	DefaultFeedPath = "/gtfs-realtime"
	DefaultLiveURL  = "https://mapa.idsbk.sk/navigation/vehicles/nearby?lat=48.14862961464581&lng=17.122590613001403&radius=1000.4029061281587465&cityID=-1"
	DefaultSubject  = "gtfsrt.feed"
)

type ServerConfig struct {
	Port              int    `yaml:"port" validate:"gt=0,lte=65535"`
	Path              string `yaml:"path" validate:"startswith=/"`
	ShutdownTimeoutMS int    `yaml:"shutdownTimeoutMS" validate:"gte=0"`
}

// Where live vehicle positions come from.
type LiveConfig struct {
	URL       string            `yaml:"url" validate:"required,url"`
	TimeoutMS int               `yaml:"timeoutMS" validate:"gte=0"`
	MaxSize   int               `yaml:"maxSize" validate:"gte=0"`
	Headers   map[string]string `yaml:"headers"`
}

// Where the static GTFS archive comes from. URL may also be a local
// path or file:// URL.
type StaticConfig struct {
	URL               string            `yaml:"url"`
	TimeoutMS         int               `yaml:"timeoutMS" validate:"gte=0"`
	MaxSize           int               `yaml:"maxSize" validate:"gte=0"`
	Headers           map[string]string `yaml:"headers"`
	RetryMaxElapsedMS int               `yaml:"retryMaxElapsedMS" validate:"gte=0"`
}

type StorageConfig struct {
	Backend     string `yaml:"backend" validate:"oneof=memory sqlite postgres"`
	Directory   string `yaml:"directory"`
	PostgresURL string `yaml:"postgresURL" validate:"required_if=Backend postgres"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Publishing is disabled when URL is empty.
type NATSConfig struct {
	URL     string `yaml:"url" validate:"omitempty,url"`
	Subject string `yaml:"subject" validate:"required_with=URL"`
}

type Config struct {
	Server   ServerConfig  `yaml:"server"`
	Live     LiveConfig    `yaml:"live"`
	Static   StaticConfig  `yaml:"static"`
	Storage  StorageConfig `yaml:"storage"`
	Timezone string        `yaml:"timezone"`
	Metrics  MetricsConfig `yaml:"metrics"`
	NATS     NATSConfig    `yaml:"nats"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              DefaultPort,
			Path:              DefaultFeedPath,
			ShutdownTimeoutMS: 5000,
		},
		Live: LiveConfig{
			URL:       DefaultLiveURL,
			TimeoutMS: 10000,
			MaxSize:   1 << 20,
		},
		Static: StaticConfig{
			TimeoutMS:         60000,
			MaxSize:           800 << 20,
			RetryMaxElapsedMS: 120000,
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		NATS: NATSConfig{
			Subject: DefaultSubject,
		},
	}
}

// Load reads configuration from the YAML file at path (if non-empty),
// then applies environment overrides. A .env file in the working
// directory is loaded first, if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("GTFSRT_LIVE_URL"); v != "" {
		cfg.Live.URL = v
	}
	if v := os.Getenv("GTFSRT_STATIC_URL"); v != "" {
		cfg.Static.URL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 {
			return fmt.Errorf("invalid PORT: %q", v)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.Backend = "postgres"
		cfg.Storage.PostgresURL = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("TZ"); v != "" {
		cfg.Timezone = v
	}
	return nil
}

func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone. Empty means the local zone.
func (c *Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}
	return loc, nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// ErrNoStaticURL is returned by RequireStatic when no schedule source
// is configured.
var ErrNoStaticURL = errors.New("static.url (or GTFSRT_STATIC_URL) must be set")

func (c *Config) RequireStatic() error {
	if strings.TrimSpace(c.Static.URL) == "" {
		return ErrNoStaticURL
	}
	return nil
}

func (c *LiveConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

func (c *StaticConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

func (c *StaticConfig) RetryMaxElapsed() time.Duration {
	return time.Duration(c.RetryMaxElapsedMS) * time.Millisecond
}

func (c *ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}
