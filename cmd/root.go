package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/maptel/internal/cachemanager"
	"github.com/zjrosen/maptel/internal/config"
	"github.com/zjrosen/maptel/internal/log"
	"github.com/zjrosen/maptel/internal/pubsub"
	"github.com/zjrosen/maptel/internal/registry/application"
	"github.com/zjrosen/maptel/internal/tracing"
)

const localConfigPath = ".maptel/config.yaml"

var version = "dev"

// runtime holds what every subcommand shares once configuration is loaded.
type runtime struct {
	v       *viper.Viper
	cfgFile string
	debug   bool

	cfg      config.Config
	provider *tracing.Provider
	cleanups []func()
}

func newRootCmd() *cobra.Command {
	rt := &runtime{v: viper.New()}

	root := &cobra.Command{
		Use:   "maptel",
		Short: "Phone number redirection tables",
		Long: `maptel manages tables that redirect phone numbers to other numbers.
A number is resolved by following its redirection chain; when the chain
loops back on itself the number is left unchanged.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.load(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&rt.cfgFile, "config", "c", "",
		"config file (default: .maptel/config.yaml, then ~/.config/maptel/config.yaml)")
	root.PersistentFlags().BoolVar(&rt.debug, "debug", false,
		"log every registry call at debug level")

	root.AddCommand(newShellCmd(rt), newResolveCmd(rt), newConfigCmd(rt))
	return root
}

func (rt *runtime) load(cmd *cobra.Command) error {
	if err := rt.read(); err != nil {
		return err
	}
	if err := config.Validate(rt.cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := rt.setupLog(cmd); err != nil {
		return err
	}
	log.Debug(log.CatConfig, "config loaded", "file", rt.v.ConfigFileUsed())
	return nil
}

// read locates and decodes the config file without validating it.
func (rt *runtime) read() error {
	defaults := config.Defaults()
	rt.v.SetDefault("log.enabled", defaults.Log.Enabled)
	rt.v.SetDefault("log.path", defaults.Log.Path)
	rt.v.SetDefault("log.level", defaults.Log.Level)
	rt.v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	rt.v.SetDefault("cache.expiration", defaults.Cache.Expiration)
	rt.v.SetDefault("cache.cleanup_interval", defaults.Cache.CleanupInterval)
	rt.v.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	rt.v.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	rt.v.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	rt.v.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	rt.v.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	rt.v.SetDefault("shell.prompt", defaults.Shell.Prompt)
	rt.v.SetDefault("shell.color", defaults.Shell.Color)

	if rt.cfgFile != "" {
		rt.v.SetConfigFile(rt.cfgFile)
	} else {
		// Config lookup order:
		// 1. .maptel/config.yaml (current directory)
		// 2. ~/.config/maptel/config.yaml (user config)
		if _, err := os.Stat(localConfigPath); err == nil {
			rt.v.SetConfigFile(localConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			rt.v.AddConfigPath(filepath.Join(home, ".config", "maptel"))
			rt.v.SetConfigName("config")
			rt.v.SetConfigType("yaml")
		}
	}

	if err := rt.v.ReadInConfig(); err != nil {
		// A missing file means defaults; `config set` will create it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	if err := rt.v.Unmarshal(&rt.cfg); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	return nil
}

func (rt *runtime) setupLog(cmd *cobra.Command) error {
	if !rt.cfg.Log.Enabled && !rt.debug {
		return nil
	}

	if rt.cfg.Log.Path != "" {
		cleanup, err := log.Init(config.ExpandHome(rt.cfg.Log.Path))
		if err != nil {
			return err
		}
		rt.cleanups = append(rt.cleanups, cleanup)
	} else {
		log.InitWriter(cmd.ErrOrStderr())
	}
	rt.cleanups = append(rt.cleanups, log.Reset)

	rt.applyLogLevel(rt.cfg.Log.Level)
	return nil
}

// applyLogLevel sets the minimum log level. --debug wins.
func (rt *runtime) applyLogLevel(name string) {
	if rt.debug {
		log.SetMinLevel(log.LevelDebug)
		return
	}
	level, err := log.ParseLevel(name)
	if err != nil {
		log.Warn(log.CatConfig, "keeping previous log level", "level", name, "error", err)
		return
	}
	log.SetMinLevel(level)
}

// registry builds a Registry with the configured cache and tracer.
func (rt *runtime) registry(broker *pubsub.Broker[application.TableEvent]) (*application.Registry, error) {
	opts := []application.Option{}

	if rt.cfg.Tracing.Enabled {
		tc := rt.cfg.Tracing.ProviderConfig()
		tc.FilePath = config.ExpandHome(tc.FilePath)
		provider, err := tracing.NewProvider(tc)
		if err != nil {
			return nil, fmt.Errorf("starting tracing: %w", err)
		}
		rt.provider = provider
		opts = append(opts, application.WithTracer(provider.Tracer()))
	}

	if rt.cfg.Cache.Enabled {
		cache := cachemanager.NewResolutionCache(rt.cfg.Cache.Expiration, rt.cfg.Cache.CleanupInterval)
		opts = append(opts, application.WithResolutionCache(cache))
	}

	if broker != nil {
		opts = append(opts, application.WithBroker(broker))
	}

	reg := application.New(opts...)
	log.Info(log.CatRegistry, "registry ready", "registry", reg.ID(),
		"tracing", rt.cfg.Tracing.Enabled, "cache", rt.cfg.Cache.Enabled)
	return reg, nil
}

// finish flushes traces and closes the log. Subcommands defer it so it
// runs on the error path too; a flush failure only surfaces when the
// command itself succeeded.
func (rt *runtime) finish(ctx context.Context, errp *error) {
	if err := rt.close(ctx); err != nil && *errp == nil {
		*errp = err
	}
}

func (rt *runtime) close(ctx context.Context) error {
	var err error
	if rt.provider != nil {
		if shutdownErr := rt.provider.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("flushing traces: %w", shutdownErr)
		}
		rt.provider = nil
	}
	for i := len(rt.cleanups) - 1; i >= 0; i-- {
		rt.cleanups[i]()
	}
	rt.cleanups = nil
	return err
}

// Execute runs the root command
func Execute() error {
	root := newRootCmd()
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	}
	return err
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
}
