package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/shiftrule/internal/ir"
)

// ChangeOptions holds flags for the rule-changing commands.
type ChangeOptions struct {
	*RootOptions
	Context ContextFlags
}

// ChangeResult is the outcome of a rule change.
type ChangeResult struct {
	Session string     `json:"session"`
	Changed bool       `json:"changed"`
	Events  []ir.Event `json:"events"`
	Status  Status     `json:"status"`
}

// need declares what a change requires from the pinned context.
type need int

const (
	needApp need = iota
	needTab
	needNothing
)

// NewAppCommand creates the app command.
func NewAppCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChangeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "app <disable|enable>",
		Short: "Disable or enable the feature for an app",
		Long: `Add or remove the app rule for the given application.

Enabling removes every rule for the application's identifier.

Examples:
  shiftrule app disable --bundle com.example.Game
  shiftrule app enable --path /usr/local/bin/tool`,
		Args:          cobra.ExactArgs(1),
		ValidArgs:     []string{"disable", "enable"},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			disabled, err := parseToggle(args[0])
			if err != nil {
				return err
			}
			return runChange(opts, cmd, needApp, func(ctx context.Context, s *session) {
				s.engine.SetDisabledForApp(ctx, disabled)
			})
		},
	}

	opts.Context.register(cmd)

	return cmd
}

// NewDomainCommand creates the domain command.
func NewDomainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChangeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "domain <disable|enable>",
		Short: "Disable or enable the feature for a tab's registrable domain",
		Long: `Add or remove the domain rule for the registrable domain of --url.

Enabling a domain whose subdomain carries an enabled override clears the
override first.

Examples:
  shiftrule domain disable --url https://www.example.com
  shiftrule domain enable --url https://docs.example.com --bundle com.google.Chrome`,
		Args:          cobra.ExactArgs(1),
		ValidArgs:     []string{"disable", "enable"},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			disabled, err := parseToggle(args[0])
			if err != nil {
				return err
			}
			return runChange(opts, cmd, needTab, func(ctx context.Context, s *session) {
				s.engine.SetDisabledForDomain(ctx, disabled)
			})
		},
	}

	opts.Context.register(cmd)

	return cmd
}

// NewSubdomainCommand creates the subdomain command.
func NewSubdomainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChangeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "subdomain <disabled|enabled|none>",
		Short: "Set the override for a tab's full host",
		Long: `Set the subdomain override for the host of --url.

disabled and enabled replace each other; none removes whichever override
currently applies.

Examples:
  shiftrule subdomain enabled --url https://docs.example.com
  shiftrule subdomain none --url https://docs.example.com`,
		Args:          cobra.ExactArgs(1),
		ValidArgs:     []string{"disabled", "enabled", "none"},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := ir.ParseSubdomainRuleType(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid override", err)
			}
			return runChange(opts, cmd, needTab, func(ctx context.Context, s *session) {
				s.engine.SetRuleForSubdomain(ctx, v)
			})
		},
	}

	opts.Context.register(cmd)

	return cmd
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChangeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove every rule affecting an app and tab",
		Long: `Clear the app rule, the domain rule and the subdomain override for the
given context, in that order.

Example:
  shiftrule reset --bundle com.apple.Safari --url https://docs.example.com`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChange(opts, cmd, needNothing, func(ctx context.Context, s *session) {
				s.engine.RemoveRulesForCurrentState(ctx)
			})
		},
	}

	opts.Context.register(cmd)

	return cmd
}

func parseToggle(arg string) (bool, error) {
	switch arg {
	case "disable":
		return true, nil
	case "enable":
		return false, nil
	default:
		return false, NewExitError(ExitCommandError, fmt.Sprintf("invalid argument %q: must be disable or enable", arg))
	}
}

func runChange(opts *ChangeOptions, cmd *cobra.Command, n need, apply func(context.Context, *session)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	s, err := openSession(ctx, opts.RootOptions, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.pin(opts.RootOptions, opts.Context); err != nil {
		return err
	}
	if err := checkContext(s, n); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNoContext, err.Error(), nil)
	}

	apply(ctx, s)

	result := ChangeResult{
		Session: s.engine.Session(),
		Changed: len(s.events) > 0,
		Events:  s.events,
		Status:  s.status(),
	}
	if result.Events == nil {
		result.Events = []ir.Event{}
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	if !result.Changed {
		fmt.Fprintln(w, "No change.")
	}
	for _, ev := range result.Events {
		fmt.Fprintln(w, eventLine(ev))
	}
	fmt.Fprintln(w, result.Status.text())
	return nil
}

// checkContext reports a context the setter would silently ignore.
func checkContext(s *session, n need) error {
	switch n {
	case needApp:
		if _, ok := s.apps.ForegroundApp(); !ok {
			return fmt.Errorf("--bundle or --path is required")
		}
		if s.status().App == "" {
			return fmt.Errorf("application identity unresolvable")
		}
	case needTab:
		if _, ok := s.watcher.CurrentSubdomain(); !ok {
			return fmt.Errorf("--url with a host is required and the app must be a supported browser")
		}
	}
	return nil
}
