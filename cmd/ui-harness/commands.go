package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/integrail/ui-harness/pkg/fixture"
	"github.com/integrail/ui-harness/pkg/harness"
	"github.com/integrail/ui-harness/pkg/scenario"
	"github.com/integrail/ui-harness/pkg/shell"
	"github.com/integrail/ui-harness/pkg/util"
)

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#33CC66")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF3333")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

type stdoutReporter struct{}

func (stdoutReporter) Report(msg string) {
	fmt.Println(msg)
}

func runCmd(a *app) *cobra.Command {
	var vars []string
	cmd := &cobra.Command{
		Use:   "run <scenario|file.yaml>...",
		Short: "Run built-in or file scenarios, each in a fresh browser session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := lo.Assign(a.cfg.Vars, util.SliceToMap(vars))
			scenarios := make([]*scenario.Scenario, 0, len(args))
			for _, ref := range args {
				sc, err := scenario.Resolve(ref, values)
				if err != nil {
					return err
				}
				scenarios = append(scenarios, sc)
			}
			launch, err := a.launcher()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var failed []string
			for _, sc := range scenarios {
				started := time.Now()
				err := harness.Run(ctx, launch, a.cfg.URL, func(s *harness.Session) error {
					_, err := scenario.Run(s, sc, scenario.WithReportWriter(os.Stdout), scenario.WithOutputDir(a.cfg.OutDir))
					return err
				}, a.sessionOptions(stdoutReporter{})...)
				elapsed := dimStyle.Render(fmt.Sprintf("(%s)", time.Since(started).Round(time.Millisecond)))
				if err != nil {
					failed = append(failed, sc.Name)
					fmt.Printf("%s %s %s: %s\n", failStyle.Render("FAIL"), sc.Name, elapsed, err.Error())
					if ctx.Err() != nil {
						break
					}
					continue
				}
				fmt.Printf("%s %s %s\n", passStyle.Render("PASS"), sc.Name, elapsed)
			}
			if len(failed) > 0 {
				return errors.Errorf("%d of %d scenario(s) failed: %v", len(failed), len(scenarios), failed)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&vars, "set", "s", []string{}, "Scenario variable as key=value (repeatable)")
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range scenario.BuiltinNames() {
				sc, err := scenario.Builtin(name, nil)
				if err != nil {
					return err
				}
				fmt.Printf("%-20s %s\n", name, dimStyle.Render(sc.Description))
			}
			return nil
		},
	}
}

func shellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Open a browser session and an interactive console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			launch, err := a.launcher()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			reporter := &shell.Reporter{}
			fmt.Printf("Connecting to %s...\n", a.cfg.URL)
			var failures int
			err = harness.Run(ctx, launch, a.cfg.URL, func(s *harness.Session) error {
				if err := s.Navigate(a.cfg.URL, harness.Readiness{}); err != nil {
					return err
				}
				model := shell.New(ctx, s)
				p := tea.NewProgram(model, tea.WithContext(ctx))
				reporter.Program = p
				if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
					return errors.Wrapf(err, "shell failed")
				}
				failures = model.Failures()
				return nil
			}, a.sessionOptions(reporter)...)
			if err != nil {
				return err
			}
			a.log.Info("Shell closed", zap.Int("failed_commands", failures))
			return nil
		},
	}
}

func fixtureCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "Serve the demo page the built-in scenarios run against",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return fixture.Serve(ctx, addr, a.log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", fixture.DefaultAddr, "Listen address")
	return cmd
}
