package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/integrail/ui-harness/internal/build"
	"github.com/integrail/ui-harness/pkg/config"
	"github.com/integrail/ui-harness/pkg/driver"
	"github.com/integrail/ui-harness/pkg/driver/cdp"
	"github.com/integrail/ui-harness/pkg/driver/pw"
	"github.com/integrail/ui-harness/pkg/driver/rod"
	"github.com/integrail/ui-harness/pkg/harness"
	"github.com/integrail/ui-harness/pkg/logging"
)

var launchers = map[string]driver.Launcher{
	config.DriverPlaywright: pw.Launch,
	config.DriverRod:        rod.Launch,
	config.DriverChromedp:   cdp.Launch,
}

type app struct {
	configPath string
	flags      config.Config
	cfg        *config.Config
	log        *zap.Logger
}

func main() {
	a := &app{}
	rootCmd := newRootCmd(a)
	err := rootCmd.Execute()
	if a.log != nil {
		_ = a.log.Sync()
	}
	if err != nil {
		rootCmd.PrintErrln("Error:", err.Error())
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ui-harness",
		Version:       build.Version,
		Short:         "ui-harness verifies a locally served web UI in a real browser",
		Long:          "Drive Chromium against a local dev server: click, assert visibility and attributes, dump computed styles and shadow DOM, capture screenshots and console output.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	defaults := config.Default()
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&a.flags.URL, "url", "u", defaults.URL, "Origin of the app under test (env "+config.EnvURL+")")
	rootCmd.PersistentFlags().StringVarP(&a.flags.Driver, "driver", "d", defaults.Driver, "Browser driver: playwright, rod or chromedp (env "+config.EnvDriver+")")
	rootCmd.PersistentFlags().BoolVar(&a.flags.Browser.Headful, "headful", false, "Show the browser window")
	rootCmd.PersistentFlags().BoolVar(&a.flags.Browser.Stealth, "stealth", false, "Hide automation fingerprints (rod and chromedp drivers)")
	rootCmd.PersistentFlags().DurationVarP(&a.flags.Timeout, "timeout", "t", defaults.Timeout, "Default wait for elements")
	rootCmd.PersistentFlags().DurationVar(&a.flags.NavigationTimeout, "navigation-timeout", defaults.NavigationTimeout, "Wait for page load and readiness")
	rootCmd.PersistentFlags().StringVarP(&a.flags.OutDir, "out", "o", defaults.OutDir, "Directory for screenshots and reports")
	rootCmd.PersistentFlags().StringVar(&a.flags.LogLevel, "log-level", defaults.LogLevel, "Log level: debug, info, warn or error")

	rootCmd.AddCommand(runCmd(a), listCmd(), shellCmd(a), fixtureCmd(a))
	return rootCmd
}

// load merges file, environment and explicitly set flags, in increasing
// order of precedence.
func (a *app) load(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.LoadFile(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.ApplyEnv(os.LookupEnv)

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.URL = a.flags.URL
	}
	if flags.Changed("driver") {
		cfg.Driver = a.flags.Driver
	}
	if flags.Changed("headful") {
		cfg.Browser.Headful = a.flags.Browser.Headful
	}
	if flags.Changed("stealth") {
		cfg.Browser.Stealth = a.flags.Browser.Stealth
	}
	if flags.Changed("timeout") {
		cfg.Timeout = a.flags.Timeout
	}
	if flags.Changed("navigation-timeout") {
		cfg.NavigationTimeout = a.flags.NavigationTimeout
	}
	if flags.Changed("out") {
		cfg.OutDir = a.flags.OutDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.flags.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log.With(zap.String("driver", cfg.Driver))
	return nil
}

func (a *app) launcher() (driver.Launcher, error) {
	launch, ok := launchers[a.cfg.Driver]
	if !ok {
		return nil, errors.Errorf("unknown driver %q", a.cfg.Driver)
	}
	return launch, nil
}

func (a *app) sessionOptions(reporter harness.Reporter) []harness.Option {
	return []harness.Option{
		harness.WithLogger(a.log),
		harness.WithReporter(reporter),
		harness.WithTimeout(a.cfg.Timeout),
		harness.WithNavigationTimeout(a.cfg.NavigationTimeout),
		harness.WithOutputDir(a.cfg.OutDir),
		harness.WithStyleID(a.cfg.StyleID),
		harness.WithDriverOptions(driver.Options{
			Headful: a.cfg.Browser.Headful,
			Stealth: a.cfg.Browser.Stealth,
			Width:   a.cfg.Browser.Width,
			Height:  a.cfg.Browser.Height,
		}),
	}
}
