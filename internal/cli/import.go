package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/shiftrule/internal/compiler"
	"github.com/roach88/shiftrule/internal/engine"
	"github.com/roach88/shiftrule/internal/ir"
	"github.com/roach88/shiftrule/internal/store"
)

// ImportOutput is the import command's payload.
type ImportOutput struct {
	Bundle string `json:"bundle"`
	*engine.ImportResult
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <bundle>",
		Short: "Import a CUE rule bundle",
		Long: `Compile and validate a CUE rule bundle, then apply it to the database.

A bundle is a .cue file or a directory holding one CUE package:

  apps: ["com.example.Game", {executable_path: "/usr/local/bin/tool"}]
  domains: ["example.com"]
  subdomains: {"docs.example.com": "enabled"}

Rules are applied through the same setters as interactive changes, so
each new rule is recorded as an event. Rules already present are left
unchanged. A bundle only adds rules. Domains must be registrable domains
(example.com, not www.example.com). An enabled subdomain override needs
its domain disabled, either in the bundle or already in the database.

Examples:
  shiftrule import ./rules.cue
  shiftrule import ./bundles/work --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runImport(opts *RootOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	loaded, err := LoadBundle(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	rules := store.NewRuleStore(st, opts.log())
	rules.Load(ctx)

	// Overrides may rely on domains the database already disables.
	existing := compiler.WithDisabledDomains(func(domain string) bool {
		return rules.HasBrowserRule(ir.NewBrowserRule(ir.RuleDomain, domain))
	})
	if errs := compiler.Validate(loaded.Bundle, existing); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}
	formatter.VerboseLog("Compiled %d rule(s) from %d file(s)", loaded.Bundle.Len(), loaded.FileCount)

	result, err := engine.Import(ctx, rules, loaded.Bundle,
		engine.WithLogger(opts.log()),
		engine.WithRecorder(st),
	)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, err.Error(), result)
	}

	if opts.Format == "json" {
		return formatter.Success(ImportOutput{Bundle: path, ImportResult: result})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %s: %d applied, %d unchanged\n", path, result.Applied, result.Unchanged)
	return nil
}
