package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ght123247/UIproj/internal/adapters/opcua"
	"github.com/ght123247/UIproj/internal/app/cards"
	"github.com/ght123247/UIproj/internal/app/control"
	"github.com/ght123247/UIproj/internal/ports"
	"github.com/ght123247/UIproj/internal/window"
)

// DefaultBasePath is the backend API prefix. Override at build time with
//
//	-ldflags "-X github.com/ght123247/UIproj/internal/app/config.DefaultBasePath=/motor/api"
var DefaultBasePath = "/api"

const envPrefix = "MOTORDASH_"

const (
	SourceHTTP  = "http"
	SourceOPCUA = "opcua"
)

type Config struct {
	API      APIConfig      `yaml:"api"`
	Source   SourceConfig   `yaml:"source"`
	OPCUA    opcua.Config   `yaml:"opcua"`
	Policy   ports.Policy   `yaml:"policy"`
	Activity ActivityConfig `yaml:"activity"`
	Cards    CardsConfig    `yaml:"cards"`
	Control  control.Limits `yaml:"control"`
	Server   ServerConfig   `yaml:"server"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

type APIConfig struct {
	Host     string `yaml:"host"`
	BasePath string `yaml:"base_path"`
}

type SourceConfig struct {
	Kind string `yaml:"kind"`
}

type ActivityConfig struct {
	Channels window.Channels `yaml:"channels"`
}

type CardsConfig struct {
	Motor          cards.MotorLimits     `yaml:"motor"`
	Vibration      cards.VibrationLimits `yaml:"vibration"`
	HealthInterval time.Duration         `yaml:"health_interval"`
	DiskPath       string                `yaml:"disk_path"`
	SystemHealth   bool                  `yaml:"system_health"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`

	// ControlRate limits control requests per client IP, per second.
	ControlRate  float64 `yaml:"control_rate"`
	ControlBurst int     `yaml:"control_burst"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a config that works against a backend on localhost.
func Default() Config {
	cfg := Config{
		API:    APIConfig{Host: "http://localhost:8000", BasePath: DefaultBasePath},
		Source: SourceConfig{Kind: SourceHTTP},
		Policy: ports.Policy{Dedup: true},
		Cards: CardsConfig{
			Motor:        cards.DefaultMotorLimits(),
			Vibration:    cards.DefaultVibrationLimits(),
			SystemHealth: true,
		},
		Control: control.DefaultLimits(),
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads path, then applies MOTORDASH_* environment overrides.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup. An empty path
// skips the file and starts from Default.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if lookup != nil {
		if err := cfg.applyEnv(lookup); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.API.BasePath == "" {
		c.API.BasePath = DefaultBasePath
	}
	if c.Source.Kind == "" {
		c.Source.Kind = SourceHTTP
	}
	c.Source.Kind = strings.ToLower(c.Source.Kind)
	if c.Policy.PollInterval <= 0 {
		c.Policy.PollInterval = cards.DefaultInterval
	}
	if c.Policy.WindowSpan <= 0 {
		c.Policy.WindowSpan = window.DefaultSpan
	}
	if c.Policy.WindowMaxPoints <= 0 {
		c.Policy.WindowMaxPoints = window.DefaultMaxPoints
	}
	if c.Policy.RefreshInterval <= 0 {
		c.Policy.RefreshInterval = 500 * time.Millisecond
	}
	if len(c.Activity.Channels) == 0 {
		c.Activity.Channels = cards.DefaultActivityChannels()
	}
	if c.Cards.HealthInterval <= 0 {
		c.Cards.HealthInterval = cards.DefaultHealthInterval
	}
	if c.Cards.DiskPath == "" {
		c.Cards.DiskPath = "/"
	}
	if c.Control.MaxRPM <= 0 {
		c.Control.MaxRPM = control.DefaultLimits().MaxRPM
	}
	if c.Control.MaxTorque <= 0 {
		c.Control.MaxTorque = control.DefaultLimits().MaxTorque
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ControlRate <= 0 {
		c.Server.ControlRate = 5
	}
	if c.Server.ControlBurst <= 0 {
		c.Server.ControlBurst = 10
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Source.Kind == SourceOPCUA {
		c.OPCUA.ApplyDefaults()
	}
}

func (c *Config) validate() error {
	switch c.Source.Kind {
	case SourceHTTP:
	case SourceOPCUA:
		if err := c.OPCUA.Validate(); err != nil {
			return fmt.Errorf("opcua config: %w", err)
		}
	default:
		return fmt.Errorf("source.kind must be %q or %q, got %q", SourceHTTP, SourceOPCUA, c.Source.Kind)
	}
	// Control commands go to the HTTP backend whatever the telemetry source.
	if !isAbsoluteURL(c.API.BasePath) && strings.TrimSpace(c.API.Host) == "" {
		return errors.New("api.host is required unless api.base_path is an absolute URL")
	}
	for _, ch := range c.Activity.Channels {
		if ch.Name == "" {
			return errors.New("activity.channels: channel name is required")
		}
		if ch.Clamp != nil && ch.Clamp.Min > ch.Clamp.Max {
			return fmt.Errorf("activity.channels: %s clamp min > max", ch.Name)
		}
	}
	if c.Server.Addr == c.Metrics.Addr {
		return fmt.Errorf("server.addr and metrics.addr must differ, both %s", c.Server.Addr)
	}
	return nil
}

// WindowOptions maps the policy onto rolling window options.
func (c *Config) WindowOptions() window.Options {
	return window.Options{
		Span:      c.Policy.WindowSpan,
		MaxPoints: c.Policy.WindowMaxPoints,
		Dedup:     c.Policy.Dedup,
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(envPrefix + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	strs := map[string]*string{
		"API_HOST":       &c.API.Host,
		"API_BASE_PATH":  &c.API.BasePath,
		"SOURCE":         &c.Source.Kind,
		"OPCUA_ENDPOINT": &c.OPCUA.Endpoint,
		"SERVER_ADDR":    &c.Server.Addr,
		"METRICS_ADDR":   &c.Metrics.Addr,
		"LOG_LEVEL":      &c.Log.Level,
		"LOG_FORMAT":     &c.Log.Format,
	}
	for key, dst := range strs {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"POLL_INTERVAL":    &c.Policy.PollInterval,
		"REFRESH_INTERVAL": &c.Policy.RefreshInterval,
		"WINDOW_SPAN":      &c.Policy.WindowSpan,
	}
	for key, dst := range durations {
		if v, ok := get(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}
			*dst = d
		}
	}

	if v, ok := get("WINDOW_MAX_POINTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sWINDOW_MAX_POINTS: %w", envPrefix, err)
		}
		c.Policy.WindowMaxPoints = n
	}
	if v, ok := get("DEDUP"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sDEDUP: %w", envPrefix, err)
		}
		c.Policy.Dedup = b
	}
	return nil
}

func isAbsoluteURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
