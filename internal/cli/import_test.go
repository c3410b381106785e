package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shiftrule/internal/ir"
)

const workBundle = `apps: [
	"com.example.Game",
	{executable_path: "/usr/local/bin/tool"},
]
domains: ["example.com"]
subdomains: {
	"docs.example.com": "enabled"
}
`

type importOutput struct {
	Bundle    string     `json:"bundle"`
	Applied   int        `json:"applied"`
	Unchanged int        `json:"unchanged"`
	Events    []ir.Event `json:"events"`
}

func TestImportCommand_AppliesBundle(t *testing.T) {
	opts := newTestOptions(t)
	path := filepath.Join(t.TempDir(), "work.cue")
	writeFile(t, path, workBundle)

	out, err := execute(t, NewImportCommand(opts), path)
	require.NoError(t, err)

	var result importOutput
	resp := decodeData(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, path, result.Bundle)
	assert.Equal(t, 4, result.Applied)
	assert.Equal(t, 0, result.Unchanged)
	require.Len(t, result.Events, 4)
	assert.Equal(t, ir.EventEnableActivated, result.Events[3].Kind)

	// Importing again changes nothing.
	out, err = execute(t, NewImportCommand(opts), path)
	require.NoError(t, err)
	result = importOutput{}
	decodeData(t, out, &result)
	assert.Equal(t, 0, result.Applied)
	assert.Equal(t, 4, result.Unchanged)
	assert.Empty(t, result.Events)
}

func TestImportCommand_Directory(t *testing.T) {
	opts := newTestOptions(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "apps.cue"), "package rules\n\napps: [\"com.example.Game\"]\n")
	writeFile(t, filepath.Join(dir, "sites.cue"), "package rules\n\ndomains: [\"example.com\"]\n")

	out, err := execute(t, NewImportCommand(opts), dir)
	require.NoError(t, err)

	var result importOutput
	decodeData(t, out, &result)
	assert.Equal(t, 2, result.Applied)
}

func TestImportCommand_InvalidBundle(t *testing.T) {
	opts := newTestOptions(t)
	path := filepath.Join(t.TempDir(), "bad.cue")
	writeFile(t, path, `apps: [{executable_path: "bin/tool"}]`)

	out, err := execute(t, NewImportCommand(opts), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ValidationResult
	resp := decodeData(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "E103", result.Errors[0].Code)

	// Nothing was written.
	out, err = execute(t, NewRulesCommand(opts))
	require.NoError(t, err)
	var rules RulesResult
	decodeData(t, out, &rules)
	assert.Empty(t, rules.Apps)
	assert.Equal(t, int64(0), rules.AppsRevision)
}

func TestImportCommand_OverrideUnderStoredDomain(t *testing.T) {
	opts := newTestOptions(t)
	path := filepath.Join(t.TempDir(), "docs.cue")
	writeFile(t, path, `subdomains: {"docs.example.com": "enabled"}`)

	_, err := execute(t, NewImportCommand(opts), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	change(t, opts, NewDomainCommand, "disable", "--url", "https://www.example.com/")

	out, err := execute(t, NewImportCommand(opts), path)
	require.NoError(t, err)
	var result importOutput
	decodeData(t, out, &result)
	assert.Equal(t, 1, result.Applied)
	require.Len(t, result.Events, 1)
	assert.Equal(t, ir.EventEnableActivated, result.Events[0].Kind)
}

func TestImportCommand_RejectsSubdomainAsDomain(t *testing.T) {
	opts := newTestOptions(t)
	path := filepath.Join(t.TempDir(), "www.cue")
	writeFile(t, path, `domains: ["www.example.com"]`)

	out, err := execute(t, NewImportCommand(opts), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ValidationResult
	decodeData(t, out, &result)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "E113", result.Errors[0].Code)
	assert.Contains(t, result.Errors[0].Message, `use "example.com"`)
}

func TestImportCommand_MissingBundle(t *testing.T) {
	_, err := execute(t, NewImportCommand(newTestOptions(t)), "/nonexistent/rules.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}

func TestImportCommand_TextOutput(t *testing.T) {
	opts := newTestOptions(t)
	opts.Format = "text"
	path := filepath.Join(t.TempDir(), "work.cue")
	writeFile(t, path, workBundle)

	out, err := execute(t, NewImportCommand(opts), path)
	require.NoError(t, err)
	assert.Contains(t, out, "4 applied, 0 unchanged")
}

func TestRulesCommand_ListsSortedRules(t *testing.T) {
	opts := newTestOptions(t)
	path := filepath.Join(t.TempDir(), "work.cue")
	writeFile(t, path, workBundle)
	_, err := execute(t, NewImportCommand(opts), path)
	require.NoError(t, err)

	out, err := execute(t, NewRulesCommand(opts))
	require.NoError(t, err)

	var rules RulesResult
	decodeData(t, out, &rules)
	assert.Equal(t, []ir.AppRule{
		{Identifier: ir.Bundle("com.example.Game")},
		{Identifier: ir.ExecutablePath("/usr/local/bin/tool")},
	}, rules.Apps)
	assert.Equal(t, []ir.BrowserRule{
		ir.NewBrowserRule(ir.RuleSubdomainEnabled, "docs.example.com"),
		ir.NewBrowserRule(ir.RuleDomain, "example.com"),
	}, rules.Browser)
	assert.Equal(t, int64(2), rules.AppsRevision)
	assert.Equal(t, int64(2), rules.BrowserRevision)
}

func TestRulesCommand_Text(t *testing.T) {
	opts := newTestOptions(t)
	change(t, opts, NewAppCommand, "disable", "--path", "/usr/local/bin/tool")

	opts.Format = "text"
	out, err := execute(t, NewRulesCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "Apps (revision 1):\n  executable_path /usr/local/bin/tool\n")
	assert.Contains(t, out, "Browser (revision 0):\n  (none)\n")
}
