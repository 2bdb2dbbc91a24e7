package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"anxiousscroll/scroll"
)

// Config is the top-level YAML configuration for the anxious-scroll daemon.
//
// Defaults and validation live here so the rest of the code can assume a
// well-formed config. Precedence: DefaultConfig, then the config file, then
// flags that were explicitly set on the command line.
type Config struct {
	// Physical/virtual device configuration
	Device DeviceConfig `yaml:"device"`

	// Sensitivity curve
	Scroll ScrollConfig `yaml:"scroll"`

	// Status HTTP/WebSocket endpoint
	Status StatusConfig `yaml:"status"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type DeviceConfig struct {
	Path         string `yaml:"path,omitempty"` // empty: pick the first device that looks like a wheel mouse
	Grab         bool   `yaml:"grab"`
	VirtualName  string `yaml:"virtual_name"`
	RetryDelayMS int    `yaml:"retry_delay_ms"`
}

type ScrollConfig struct {
	BaseSens   float64 `yaml:"base_sens"`
	MaxSens    float64 `yaml:"max_sens"`
	RampUpRate float64 `yaml:"ramp_up_rate"`
	ExpLookup  bool    `yaml:"exp_lookup"` // evaluate the curve through a precomputed table
}

type StatusConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Statsview bool   `yaml:"statsview"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	params := scroll.DefaultParams()
	return Config{
		Device: DeviceConfig{
			Grab:         true,
			VirtualName:  defaultVirtualName,
			RetryDelayMS: defaultRetryDelayMS,
		},
		Scroll: ScrollConfig{
			BaseSens:   params.BaseSens,
			MaxSens:    params.MaxSens,
			RampUpRate: params.RampUpRate,
		},
		Status: StatusConfig{
			Listen: defaultStatusListen,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds values from flags that were explicitly set.
// A nil pointer means "not set"; a non-nil pointer is applied even if it is a zero value.
type FlagOverrides struct {
	DevicePath *string
	NoGrab     *bool

	BaseSens   *float64
	MaxSens    *float64
	RampUpRate *float64
	ExpLookup  *bool

	StatusListen *string
	Statsview    *bool

	LogLevel *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}

	if o.DevicePath != nil {
		cfg.Device.Path = *o.DevicePath
	}
	if o.NoGrab != nil {
		cfg.Device.Grab = !*o.NoGrab
	}

	if o.BaseSens != nil {
		cfg.Scroll.BaseSens = *o.BaseSens
	}
	if o.MaxSens != nil {
		cfg.Scroll.MaxSens = *o.MaxSens
	}
	if o.RampUpRate != nil {
		cfg.Scroll.RampUpRate = *o.RampUpRate
	}
	if o.ExpLookup != nil {
		cfg.Scroll.ExpLookup = *o.ExpLookup
	}

	// Setting a listen address on the command line implies enabling the endpoint.
	if o.StatusListen != nil {
		cfg.Status.Listen = *o.StatusListen
		cfg.Status.Enabled = *o.StatusListen != ""
	}
	if o.Statsview != nil {
		cfg.Status.Statsview = *o.Statsview
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Device
	if c.Device.VirtualName == "" {
		return errors.New("device.virtual_name must not be empty")
	}
	if len(c.Device.VirtualName) >= uinputMaxNameSize {
		return fmt.Errorf("device.virtual_name must be shorter than %d bytes", uinputMaxNameSize)
	}
	if c.Device.RetryDelayMS < 0 {
		return errors.New("device.retry_delay_ms must be >= 0")
	}

	// Scroll
	if err := c.ScrollParams().Validate(); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}

	// Status
	if c.Status.Enabled {
		if c.Status.Listen == "" {
			return errors.New("status.enabled is true but status.listen is empty")
		}
		if _, _, err := net.SplitHostPort(c.Status.Listen); err != nil {
			return fmt.Errorf("status.listen: %w", err)
		}
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// ScrollParams converts the file config into the curve parameters.
func (c *Config) ScrollParams() scroll.Params {
	return scroll.DefaultParams().
		WithBaseSens(c.Scroll.BaseSens).
		WithMaxSens(c.Scroll.MaxSens).
		WithRampUpRate(c.Scroll.RampUpRate)
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
