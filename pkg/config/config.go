// Package config holds ui-harness settings loaded from a YAML file, the
// environment and defaults, in that order of precedence below command-line
// flags.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/integrail/ui-harness/pkg/harness"
)

const (
	EnvURL    = "UI_HARNESS_URL"
	EnvDriver = "UI_HARNESS_DRIVER"

	DriverPlaywright = "playwright"
	DriverRod        = "rod"
	DriverChromedp   = "chromedp"
)

type Config struct {
	URL               string            `yaml:"url"`
	Driver            string            `yaml:"driver"` // playwright | rod | chromedp
	Browser           BrowserConfig     `yaml:"browser"`
	Timeout           time.Duration     `yaml:"timeout"`            // element waits
	NavigationTimeout time.Duration     `yaml:"navigation_timeout"` // page load and readiness
	OutDir            string            `yaml:"out"`
	StyleID           string            `yaml:"style_id"`
	LogLevel          string            `yaml:"log_level"` // debug | info | warn | error
	Vars              map[string]string `yaml:"vars"`      // scenario variables, overridden by --set
}

type BrowserConfig struct {
	Headful bool `yaml:"headful"`
	Stealth bool `yaml:"stealth"`
	Width   int  `yaml:"width"`
	Height  int  `yaml:"height"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads a YAML configuration file. Unknown keys are rejected.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open config %s", path)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// ApplyEnv overrides the URL and driver from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvURL); ok && v != "" {
		c.URL = v
	}
	if v, ok := lookup(EnvDriver); ok && v != "" {
		c.Driver = strings.ToLower(v)
	}
}

func (c *Config) Validate() error {
	switch c.Driver {
	case DriverPlaywright, DriverRod, DriverChromedp:
	default:
		return errors.Errorf("unknown driver %q (use %s, %s or %s)", c.Driver, DriverPlaywright, DriverRod, DriverChromedp)
	}
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return errors.Errorf("url %q must be http or https", c.URL)
	}
	if c.Timeout <= 0 || c.NavigationTimeout <= 0 {
		return errors.Errorf("timeouts must be positive")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.URL == "" {
		c.URL = harness.DefaultOrigin
	}
	if c.Driver == "" {
		c.Driver = DriverPlaywright
	}
	if c.Timeout <= 0 {
		c.Timeout = harness.DefaultTimeout
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = harness.DefaultNavigationTimeout
	}
	if c.OutDir == "" {
		c.OutDir = "."
	}
	if c.StyleID == "" {
		c.StyleID = harness.DefaultStyleID
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Browser.Width <= 0 {
		c.Browser.Width = 1280
	}
	if c.Browser.Height <= 0 {
		c.Browser.Height = 720
	}
	if c.Vars == nil {
		c.Vars = map[string]string{}
	}
}
