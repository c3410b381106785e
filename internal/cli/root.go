package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/shiftrule/internal/config"
	"github.com/roach88/shiftrule/internal/ir"
	"github.com/roach88/shiftrule/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Database   string // overrides the configured database path
	ConfigPath string // defaults to config.GetPath()

	cfg    *config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the shiftrule CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "shiftrule",
		Version: ir.EngineVersion,
		Short:   "shiftrule - per-app and per-site feature rules",
		Long: `Decide whether a feature is disabled for the foreground application
and browser tab, from persisted app, domain and subdomain rules.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.setup(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config file")

	// Add subcommands
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewAppCommand(opts))
	cmd.AddCommand(NewDomainCommand(opts))
	cmd.AddCommand(NewSubdomainCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewRulesCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewInitCommand(opts))

	return cmd
}

// setup loads the config file and builds the logger.
// Verbose raises the configured level to debug.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	path := o.ConfigPath
	if path == "" {
		path = config.GetPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	o.cfg = cfg

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format, o.Verbose)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create logger", err)
	}
	o.logger = logger

	return nil
}

// config returns the loaded config, or the defaults when setup did not run.
func (o *RootOptions) config() *config.Config {
	if o.cfg == nil {
		o.cfg = config.New()
	}
	return o.cfg
}

// log returns the command logger. Commands built outside the root command
// log nothing.
func (o *RootOptions) log() *slog.Logger {
	if o.logger == nil {
		o.logger = logging.Discard()
	}
	return o.logger
}

// databasePath returns the --db flag or the configured path.
func (o *RootOptions) databasePath() string {
	if o.Database != "" {
		return o.Database
	}
	return o.config().Database
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
