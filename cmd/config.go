package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zjrosen/maptel/internal/config"
)

func newConfigCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the maptel config file",
		// Only locate the file: a broken config must stay fixable.
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return rt.read()
		},
	}
	cmd.AddCommand(newConfigInitCmd(rt), newConfigSetCmd(rt))
	return cmd
}

func newConfigInitCmd(rt *runtime) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a commented default config file",
		Long:  "Write the default configuration to path (default: .maptel/config.yaml).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer rt.finish(cmd.Context(), &err)

			path := localConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			if _, statErr := os.Stat(path); statErr == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.WriteDefaultConfig(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func newConfigSetCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:     "set <key> <value>",
		Short:   "Set one value in the active config file",
		Long:    "Set a dotted key such as cache.enabled in the config file in use (default: .maptel/config.yaml).",
		Example: "  maptel config set tracing.exporter stdout",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer rt.finish(cmd.Context(), &err)

			path := rt.v.ConfigFileUsed()
			if path == "" {
				path = localConfigPath
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
				return fmt.Errorf("creating config directory: %w", err)
			}
			if err := config.SetValue(path, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s (%s)\n", args[0], args[1], path)
			return nil
		},
	}
}
