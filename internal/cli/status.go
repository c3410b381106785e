package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Context ContextFlags
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the decision for an app and tab",
		Long: `Evaluate the persisted rules for a foreground app and, for a supported
browser, the active tab URL.

Examples:
  shiftrule status --bundle com.example.Game
  shiftrule status --path /usr/local/bin/tool
  shiftrule status --url https://docs.example.com/guide
  shiftrule status --bundle com.apple.Safari --url https://example.com --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	opts.Context.register(cmd)

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openSession(ctx, opts.RootOptions, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.pin(opts.RootOptions, opts.Context); err != nil {
		return err
	}

	status := s.status()
	formatter := opts.formatter(cmd)
	if opts.Format == "json" {
		return formatter.Success(status)
	}

	fmt.Fprintln(cmd.OutOrStdout(), status.text())
	return nil
}
