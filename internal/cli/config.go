package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrcode/apcontrol/internal/models"
	"github.com/mrcode/apcontrol/internal/nightscout"
)

const redacted = "********"

func newConfigCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the settings file",
	}
	cmd.AddCommand(newConfigInitCommand(root), newConfigShowCommand(root), newConfigCheckCommand(root))
	return cmd
}

func newConfigInitCommand(root *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default settings to the settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := root.configPath
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			if err := models.DefaultSettings().Save(path); err != nil {
				return fmt.Errorf("saving settings: %w", err)
			}
			root.log.Info("settings written", "path", path)
			_, err := fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing settings file")
	return cmd
}

func newConfigShowCommand(root *rootOptions) *cobra.Command {
	var showSecrets bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := root.settings.Clone()
			if !showSecrets {
				if s.Nightscout.APISecret != "" {
					s.Nightscout.APISecret = redacted
				}
				if s.Nightscout.APIToken != "" {
					s.Nightscout.APIToken = redacted
				}
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(s); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print the Nightscout secret and token")
	return cmd
}

func newConfigCheckCommand(root *rootOptions) *cobra.Command {
	var notifyTest bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the settings and test the Nightscout connection if one is configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := root.validSettings()
			if err != nil {
				return err
			}
			if notifyTest {
				if err := newNotifier(s).SendTestNotification(); err != nil {
					return fmt.Errorf("test notification: %w", err)
				}
				root.log.Info("test notification sent")
			}
			if !s.IsNightscoutConfigured() {
				root.log.Info("settings valid", "path", root.configPath, "nightscout", "not configured")
				return nil
			}

			client := nightscout.NewClientFromSettings(s.Nightscout).WithLogger(root.log)
			status, err := client.GetStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("nightscout connection: %w", err)
			}
			if status.Unit() != s.Unit {
				root.log.Warn("server unit differs from settings", "server", status.Unit(), "settings", s.Unit)
			}
			root.log.Info("settings valid",
				"path", root.configPath,
				"nightscout", status.Name,
				"version", status.Version)
			return nil
		},
	}
	cmd.Flags().BoolVar(&notifyTest, "notify-test", false, "send a test desktop notification")
	return cmd
}
