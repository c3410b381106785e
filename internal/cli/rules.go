package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/shiftrule/internal/ir"
	"github.com/roach88/shiftrule/internal/store"
)

// RulesResult lists the persisted rules.
type RulesResult struct {
	Apps            []ir.AppRule     `json:"apps"`
	Browser         []ir.BrowserRule `json:"browser"`
	AppsRevision    int64            `json:"apps_revision"`
	BrowserRevision int64            `json:"browser_revision"`
}

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List persisted rules",
		Long: `List every app rule and browser rule in the database, in a stable order.

The revision of each set counts how many times it has been written.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(rootOpts, cmd)
		},
	}

	return cmd
}

func runRules(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	rules := store.NewRuleStore(st, opts.log())
	rules.Load(ctx)

	result := RulesResult{
		Apps:    rules.AppRules().Sorted(),
		Browser: rules.BrowserRules().Sorted(),
	}
	if result.AppsRevision, err = st.BlobSeq(ctx, store.KeyDisabledApps); err != nil {
		return WrapExitError(ExitCommandError, "failed to read rules", err)
	}
	if result.BrowserRevision, err = st.BlobSeq(ctx, store.KeyBrowserRules); err != nil {
		return WrapExitError(ExitCommandError, "failed to read rules", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Apps (revision %d):\n", result.AppsRevision)
	if len(result.Apps) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, r := range result.Apps {
		fmt.Fprintf(w, "  %s %s\n", r.Identifier.Kind(), r.Identifier)
	}
	fmt.Fprintf(w, "Browser (revision %d):\n", result.BrowserRevision)
	if len(result.Browser) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, r := range result.Browser {
		fmt.Fprintf(w, "  %s %s\n", r.Type, r.Host)
	}
	return nil
}
