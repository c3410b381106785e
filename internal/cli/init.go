package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/shiftrule/internal/config"
)

// InitResult reports the written configuration.
type InitResult struct {
	Path     string   `json:"path"`
	Database string   `json:"database"`
	Browsers []string `json:"browsers"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write a configuration file with default values.

An existing file is left untouched. The path is --config, or
$XDG_CONFIG_HOME/shiftrule/config.yaml.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}

	return cmd
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	path := opts.ConfigPath
	if path == "" {
		path = config.GetPath()
	}

	cfg := config.New()
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if err := cfg.Write(path); err != nil {
		return WrapExitError(ExitCommandError, "failed to write config", err)
	}

	// Report what is on disk, which may predate this run.
	written, err := config.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read config", err)
	}

	result := InitResult{Path: path, Database: written.Database, Browsers: written.Browsers}
	if opts.Format == "json" {
		return opts.formatter(cmd).Success(result)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Config at %s\n", path)
	return nil
}
