package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bootkit/bootkit/pkg/config"
	"github.com/bootkit/bootkit/pkg/report"
	"github.com/bootkit/bootkit/pkg/telemetry"
)

var (
	// Global flags
	configPath     string
	manifestPath   string
	packageManager string
	verbose        bool
	jsonOutput     bool

	// Loaded by the root command before any subcommand runs
	settings config.Settings
	tel      *telemetry.Telemetry
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit code %d", e.code)
}

func (e *exitError) Unwrap() error { return e.err }

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context, version, commit, buildDate string) int {
	rootCmd := newRootCommand(version, commit, buildDate)
	err := rootCmd.ExecuteContext(ctx)
	// PersistentPostRunE is skipped when a command fails
	defer shutdown()

	if err == nil {
		return report.ExitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			log.Error().Err(ee.err).Msg("Command failed")
		}
		return ee.code
	}
	log.Error().Err(err).Msg("Command execution failed")
	return report.ExitCode(report.Summary{}, err)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bootkit",
		Short: "bootkit - declarative developer machine provisioner",
		Long: `bootkit provisions one machine from a declarative JSON manifest.

It probes the host, plans the missing package sources, packages, runtimes,
environment variables and dotfiles, and installs them through the platform's
package manager, mise and chezmoi. Re-running against an already provisioned
machine does nothing.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd, version)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return shutdown()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "settings file (default $XDG_CONFIG_HOME/bootkit/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&manifestPath, "manifest", "m", "", "manifest file path")
	rootCmd.PersistentFlags().StringVar(&packageManager, "package-manager", "", "override the manifest's primary package manager")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newProbeCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, buildDate))

	return rootCmd
}

// setup loads settings and starts telemetry for the invocation.
func setup(cmd *cobra.Command, version string) error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}

	var err error
	settings, err = config.Load(path, configPath != "")
	if err != nil {
		return &exitError{code: report.ExitFatal, err: err}
	}

	if verbose {
		settings.Logging.Level = "debug"
	}
	if packageManager != "" {
		settings.PackageManager = packageManager
	}
	if manifestPath == "" {
		manifestPath = settings.Manifest
	}

	tel, err = telemetry.NewTelemetry(settings.Telemetry(version))
	if err != nil {
		return &exitError{code: report.ExitFatal, err: fmt.Errorf("failed to initialize telemetry: %w", err)}
	}
	zerolog.SetGlobalLevel(telemetry.ParseLogLevel(settings.Logging.Level))

	log.Debug().
		Str("settings", path).
		Str("manifest", manifestPath).
		Str("command", cmd.Name()).
		Msg("Settings loaded")
	return nil
}

func shutdown() error {
	if tel == nil {
		return nil
	}
	defer func() { tel = nil }()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Telemetry shutdown failed")
	}
	return nil
}
