package cmd

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/zjrosen/maptel/internal/log"
	"github.com/zjrosen/maptel/internal/pubsub"
	"github.com/zjrosen/maptel/internal/registry/application"
	"github.com/zjrosen/maptel/internal/shell"
)

func newShellCmd(rt *runtime) *cobra.Command {
	var (
		script string
		events bool
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Run registry commands interactively or from a script",
		Long: `Read one command per line from stdin (or --script) and run it against a
fresh registry. Type "help" for the command list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			defer rt.finish(cmd.Context(), &err)

			var broker *pubsub.Broker[application.TableEvent]
			if events {
				broker = pubsub.NewBroker[application.TableEvent]()
			}
			reg, err := rt.registry(broker)
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			opts := []shell.Option{
				shell.WithColor(rt.cfg.Shell.Color),
				shell.WithStrict(strict),
			}
			if script != "" {
				f, err := os.Open(script) //nolint:gosec // G304: script path comes from the user
				if err != nil {
					return fmt.Errorf("opening script: %w", err)
				}
				defer func() { _ = f.Close() }()
				in = f
			} else {
				opts = append(opts, shell.WithPrompt(rt.cfg.Shell.Prompt))
			}

			rt.watchConfig()

			done := make(chan struct{})
			if broker != nil {
				sub := reg.Subscribe(cmd.Context())
				go func() {
					defer close(done)
					shell.PrintEvents(cmd.Context(), sub, cmd.ErrOrStderr())
				}()
			} else {
				close(done)
			}

			runErr := shell.New(reg, cmd.OutOrStdout(), opts...).Run(cmd.Context(), in)
			if broker != nil {
				broker.Close()
			}
			<-done
			return runErr
		},
	}

	cmd.Flags().StringVarP(&script, "script", "s", "", "read commands from file instead of stdin")
	cmd.Flags().BoolVar(&events, "events", false, "print a line to stderr for every table change")
	cmd.Flags().BoolVar(&strict, "strict", false, "stop at the first failing command")
	return cmd
}

// watchConfig re-applies the log level whenever the loaded config file
// changes on disk.
func (rt *runtime) watchConfig() {
	if rt.v.ConfigFileUsed() == "" {
		return
	}
	rt.v.OnConfigChange(rt.reloadLogLevel)
	rt.v.WatchConfig()
}

// reloadLogLevel runs on viper's watcher goroutine, so it reads the new
// level from viper and leaves rt.cfg alone.
func (rt *runtime) reloadLogLevel(e fsnotify.Event) {
	level := rt.v.GetString("log.level")
	log.Info(log.CatConfig, "config changed", "file", e.Name, "op", e.Op.String(), "level", level)
	rt.applyLogLevel(level)
}

