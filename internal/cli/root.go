// Package cli provides the apcontrol command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mrcode/apcontrol/internal/logger"
	"github.com/mrcode/apcontrol/internal/models"
)

const defaultEnvFile = ".env"

// rootOptions carries the persistent flags and the state resolved from them
type rootOptions struct {
	configPath string
	envFile    string
	verbose    bool
	quiet      bool

	settings *models.Settings
	log      *slog.Logger
}

// NewRootCommand builds the apcontrol command tree
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "apcontrol",
		Short: "Insulin-on-board and PID control experiments for artificial pancreas research.",
		Long: `apcontrol models insulin-on-board with a piecewise linear activity curve, ` +
			`runs a PID insulin controller with anti-reset windup over glucose series, ` +
			`and classifies sensor accuracy on the Clarke error grid. ` +
			`Results are written as CSV to stdout and optionally rendered as PNG charts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "settings file (.yaml or .json); defaults to the user config dir")
	flags.StringVar(&opts.envFile, "env-file", "", "dotenv file with APCONTROL_* overrides (default .env if present)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "only log warnings and errors")

	cmd.AddCommand(
		newIOBCommand(opts),
		newPredictCommand(opts),
		newMPCCommand(opts),
		newPIDCommand(opts),
		newPOnlyCommand(opts),
		newErrorGridCommand(opts),
		newConfigCommand(opts),
	)
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
// SIGINT and SIGTERM cancel in-flight Nightscout requests.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		logger.Error("apcontrol failed", err)
		stop()
		os.Exit(1)
	}
}

func (o *rootOptions) setup(cmd *cobra.Command) error {
	o.log = logger.Setup(cmd.ErrOrStderr(), logger.Options{Verbose: o.verbose, Quiet: o.quiet})

	if err := o.loadEnv(); err != nil {
		return err
	}

	path, err := o.resolveConfigPath()
	if err != nil {
		return err
	}
	o.configPath = path

	settings, err := models.LoadSettings(path)
	if err != nil {
		return err
	}
	o.settings = settings.WithEnv(os.LookupEnv)

	o.log.Debug("settings loaded", "path", path, "unit", o.settings.Unit)
	return nil
}

// loadEnv reads the dotenv file. A missing default file is not an error.
func (o *rootOptions) loadEnv() error {
	path := o.envFile
	if path == "" {
		if _, err := os.Stat(defaultEnvFile); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

func (o *rootOptions) resolveConfigPath() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	path, err := models.GetConfigPath()
	if err != nil {
		return "", fmt.Errorf("locating settings: %w", err)
	}
	return path, nil
}

// validSettings validates the loaded settings before a simulation
func (o *rootOptions) validSettings() (*models.Settings, error) {
	if err := o.settings.Validate(); err != nil {
		return nil, fmt.Errorf("settings %s: %w", o.configPath, err)
	}
	return o.settings, nil
}
