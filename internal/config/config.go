// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Answer transports.
const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	DBPath      string
	AllowOrigin []string

	Identity IdentityConfig
	Answer   AnswerConfig
	LogSink  LogSinkConfig
	Auth     AuthConfig
}

// IdentityConfig points the client at the identity service.
type IdentityConfig struct {
	URL     string
	Timeout time.Duration
}

// AnswerConfig selects and configures the answer service transport.
type AnswerConfig struct {
	Transport string
	URL       string
	GRPCAddr  string
	Timeout   time.Duration
}

// LogSinkConfig controls the fire-and-forget interaction log.
type LogSinkConfig struct {
	Enabled   bool
	URL       string
	QueueSize int
	Timeout   time.Duration
}

// AuthConfig configures the reference identity service daemon.
type AuthConfig struct {
	Port       string
	DBPath     string
	LogPath    string
	RatePerSec float64
	RateBurst  int
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:        "8080",
		DBPath:      "./data/hrchat.db",
		AllowOrigin: []string{"http://localhost:3000"},
		Identity: IdentityConfig{
			URL:     "http://localhost:3001",
			Timeout: 10 * time.Second,
		},
		Answer: AnswerConfig{
			Transport: TransportHTTP,
			URL:       "http://localhost:8000",
			Timeout:   60 * time.Second,
		},
		LogSink: LogSinkConfig{
			Enabled:   true,
			URL:       "http://localhost:3001",
			QueueSize: 1000,
			Timeout:   5 * time.Second,
		},
		Auth: AuthConfig{
			Port:       "3001",
			DBPath:     "./data/hrauth.db",
			LogPath:    "./data/logs/interactions.ndjson",
			RatePerSec: 5,
			RateBurst:  10,
		},
	}
}

// Load reads configuration from the optional TOML file named by HRCHAT_CONFIG,
// then applies environment variables on top.
func Load() (*Config, error) {
	cfg := Default()

	if path := getEnv("HRCHAT_CONFIG", ""); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile overlays values from a TOML file. Durations are strings like "30s".
func (c *Config) LoadFile(path string) error {
	var f fileConfig
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	return f.apply(c)
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	if v := getEnv("ALLOW_ORIGIN", ""); v != "" {
		c.AllowOrigin = splitList(v)
	}

	c.Identity.URL = getEnv("IDENTITY_URL", c.Identity.URL)
	c.Identity.Timeout = getEnvDuration("IDENTITY_TIMEOUT", c.Identity.Timeout)

	c.Answer.Transport = strings.ToLower(getEnv("ANSWER_TRANSPORT", c.Answer.Transport))
	c.Answer.URL = getEnv("ANSWER_URL", c.Answer.URL)
	c.Answer.GRPCAddr = getEnv("ANSWER_GRPC_ADDR", c.Answer.GRPCAddr)
	c.Answer.Timeout = getEnvDuration("ANSWER_TIMEOUT", c.Answer.Timeout)

	c.LogSink.Enabled = getEnvBool("LOG_SINK_ENABLED", c.LogSink.Enabled)
	c.LogSink.URL = getEnv("LOG_SINK_URL", c.LogSink.URL)
	c.LogSink.QueueSize = getEnvInt("LOG_SINK_QUEUE_SIZE", c.LogSink.QueueSize)
	c.LogSink.Timeout = getEnvDuration("LOG_SINK_TIMEOUT", c.LogSink.Timeout)

	c.Auth.Port = getEnv("AUTH_PORT", c.Auth.Port)
	c.Auth.DBPath = getEnv("AUTH_DB_PATH", c.Auth.DBPath)
	c.Auth.LogPath = getEnv("AUTH_LOG_PATH", c.Auth.LogPath)
	c.Auth.RatePerSec = getEnvFloat("AUTH_RATE_PER_SEC", c.Auth.RatePerSec)
	c.Auth.RateBurst = getEnvInt("AUTH_RATE_BURST", c.Auth.RateBurst)
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Identity.URL == "" {
		return fmt.Errorf("IDENTITY_URL cannot be empty")
	}
	switch c.Answer.Transport {
	case TransportHTTP:
		if c.Answer.URL == "" {
			return fmt.Errorf("ANSWER_URL cannot be empty for http transport")
		}
	case TransportGRPC:
		if c.Answer.GRPCAddr == "" {
			return fmt.Errorf("ANSWER_GRPC_ADDR cannot be empty for grpc transport")
		}
	default:
		return fmt.Errorf("ANSWER_TRANSPORT must be %q or %q, got %q", TransportHTTP, TransportGRPC, c.Answer.Transport)
	}
	if c.Answer.Timeout < 0 {
		return fmt.Errorf("ANSWER_TIMEOUT must be >= 0")
	}
	if c.LogSink.Enabled {
		if c.LogSink.URL == "" {
			return fmt.Errorf("LOG_SINK_URL cannot be empty when the log sink is enabled")
		}
		if c.LogSink.QueueSize <= 0 {
			return fmt.Errorf("LOG_SINK_QUEUE_SIZE must be > 0")
		}
	}
	if c.Auth.RatePerSec <= 0 || c.Auth.RateBurst <= 0 {
		return fmt.Errorf("AUTH_RATE_PER_SEC and AUTH_RATE_BURST must be > 0")
	}
	return nil
}

// fileConfig mirrors Config with durations as strings so TOML files can say
// timeout = "30s".
type fileConfig struct {
	Port        *string  `toml:"port"`
	DBPath      *string  `toml:"db_path"`
	AllowOrigin []string `toml:"allow_origin"`

	Identity struct {
		URL     *string `toml:"url"`
		Timeout *string `toml:"timeout"`
	} `toml:"identity"`

	Answer struct {
		Transport *string `toml:"transport"`
		URL       *string `toml:"url"`
		GRPCAddr  *string `toml:"grpc_addr"`
		Timeout   *string `toml:"timeout"`
	} `toml:"answer"`

	LogSink struct {
		Enabled   *bool   `toml:"enabled"`
		URL       *string `toml:"url"`
		QueueSize *int    `toml:"queue_size"`
		Timeout   *string `toml:"timeout"`
	} `toml:"log_sink"`

	Auth struct {
		Port       *string  `toml:"port"`
		DBPath     *string  `toml:"db_path"`
		LogPath    *string  `toml:"log_path"`
		RatePerSec *float64 `toml:"rate_per_sec"`
		RateBurst  *int     `toml:"rate_burst"`
	} `toml:"auth"`
}

func (f *fileConfig) apply(c *Config) error {
	setString(&c.Port, f.Port)
	setString(&c.DBPath, f.DBPath)
	if len(f.AllowOrigin) > 0 {
		c.AllowOrigin = f.AllowOrigin
	}

	setString(&c.Identity.URL, f.Identity.URL)
	setString(&c.Answer.Transport, f.Answer.Transport)
	setString(&c.Answer.URL, f.Answer.URL)
	setString(&c.Answer.GRPCAddr, f.Answer.GRPCAddr)
	setString(&c.LogSink.URL, f.LogSink.URL)
	if f.LogSink.Enabled != nil {
		c.LogSink.Enabled = *f.LogSink.Enabled
	}
	if f.LogSink.QueueSize != nil {
		c.LogSink.QueueSize = *f.LogSink.QueueSize
	}
	setString(&c.Auth.Port, f.Auth.Port)
	setString(&c.Auth.DBPath, f.Auth.DBPath)
	setString(&c.Auth.LogPath, f.Auth.LogPath)
	if f.Auth.RatePerSec != nil {
		c.Auth.RatePerSec = *f.Auth.RatePerSec
	}
	if f.Auth.RateBurst != nil {
		c.Auth.RateBurst = *f.Auth.RateBurst
	}

	durations := []struct {
		name string
		src  *string
		dst  *time.Duration
	}{
		{"identity.timeout", f.Identity.Timeout, &c.Identity.Timeout},
		{"answer.timeout", f.Answer.Timeout, &c.Answer.Timeout},
		{"log_sink.timeout", f.LogSink.Timeout, &c.LogSink.Timeout},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("config %s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
