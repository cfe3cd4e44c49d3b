package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/ueah/internal/app"
	"github.com/roach88/ueah/internal/config"
	"github.com/roach88/ueah/internal/logging"
	"github.com/roach88/ueah/internal/navpath"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	DataDir    string
	LogLevel   string
	LogFile    string
	Locale     string
	Tier       string

	// closers are released when the running command returns.
	closers []io.Closer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the UEAH CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ueah",
		Short: "UEAH - English learning resources",
		Long: `Browse, render and manage the UEAH catalogue and the preferences
stored on this device: profile, favourites and sync files.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	pf.StringVar(&opts.DataDir, "data-dir", "", "directory for local state (overrides config)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	pf.StringVar(&opts.LogFile, "log-file", "", "append logs to this file instead of stderr")
	pf.StringVar(&opts.Locale, "locale", "", "language for user-facing messages (overrides config)")
	pf.StringVar(&opts.Tier, "tier", "", "storage tier: auto, enhanced, fallback (overrides config)")

	cmd.AddCommand(NewRouteCommand(opts))
	cmd.AddCommand(NewRenderCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewFavouritesCommand(opts))
	cmd.AddCommand(NewProfileCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// loadConfig reads the config file and applies flag overrides.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.DataDir != "" {
		cfg.Storage.DataDir = o.DataDir
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.Locale != "" {
		cfg.Locale = o.Locale
	}
	if o.Tier != "" {
		cfg.Storage.Tier = o.Tier
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid flags", err)
	}
	return cfg, nil
}

// logger builds the command logger. Logs go to stderr (or --log-file) so
// they never mix with command output.
func (o *RootOptions) logger(cmd *cobra.Command, cfg config.Config) (*slog.Logger, error) {
	w := cmd.ErrOrStderr()
	if o.LogFile != "" {
		f, err := logging.OpenFile(o.LogFile)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open log file", err)
		}
		o.closers = append(o.closers, f)
		w = f
	} else if !o.Verbose && o.LogLevel == "" {
		// Unless asked otherwise, only warnings reach the terminal.
		if lv, _ := logging.ParseLevel(cfg.LogLevel); lv < slog.LevelWarn {
			cfg.LogLevel = "warn"
		}
	}
	return logging.New(w, cfg.LogLevel).Logger, nil
}

// openApp assembles the application at location. An empty location uses
// the configured origin.
func (o *RootOptions) openApp(ctx context.Context, cmd *cobra.Command, location string) (*app.App, config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, cfg, err
	}
	logger, err := o.logger(cmd, cfg)
	if err != nil {
		return nil, cfg, err
	}

	if location == "" {
		location = cfg.Hosting.Origin
	}
	loc, err := navpath.ParseLocation(location)
	if err != nil {
		return nil, cfg, WrapExitError(ExitCommandError, "invalid location", err)
	}

	a, err := app.New(ctx, app.Options{
		Config:   cfg,
		Location: loc,
		Logger:   logger,
	})
	if err != nil {
		return nil, cfg, WrapExitError(ExitCommandError, "failed to start", err)
	}
	o.closers = append(o.closers, a)
	return a, cfg, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// run wraps a command body so that everything it opened is released,
// whether or not it fails.
func (o *RootOptions) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if cerr := o.close(); err == nil && cerr != nil {
				err = WrapExitError(ExitCommandError, "failed to close", cerr)
			}
		}()
		return fn(cmd, args)
	}
}

func (o *RootOptions) close() error {
	var first error
	for i := len(o.closers) - 1; i >= 0; i-- {
		if err := o.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	o.closers = nil
	return first
}
