package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shiftrule/internal/harness"
)

func TestTestCommandMissingArgs(t *testing.T) {
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{}) // Missing scenarios directory

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/scenarios"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandNonExistentBundlesDir(t *testing.T) {
	tmpDir := t.TempDir()

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tmpDir, "--bundles", "/nonexistent/bundles"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bundles directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	scenariosDir := t.TempDir()

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{scenariosDir})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	scenariosDir := t.TempDir()

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{scenariosDir})

	err := cmd.Execute()
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestHelpText(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "scenario")
	assert.Contains(t, output, "--update")
	assert.Contains(t, output, "--filter")
	assert.Contains(t, output, "--bundles")
	assert.Contains(t, output, "scenarios-dir")
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	scenariosDir := filepath.Join("..", "harness", "testdata", "scenarios")

	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		t.Skip("harness scenarios not found")
	}

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{scenariosDir})

	err := cmd.Execute()
	require.NoError(t, err, buf.String())
	assert.Contains(t, buf.String(), "✓ app_rules")
	assert.Contains(t, buf.String(), "✓ browser_override")
	assert.Contains(t, buf.String(), "✓ All scenarios passed")
}

const toggleScenario = `name: toggle
description: Disabling the foreground app emits one app event
session: toggle-session
steps:
  - switch_app: com.example.Game
    expect: {events: [disable_deactivated], active: false}
  - set: {app: true}
    expect: {events: [disable_activated], active: true}
assertions:
  - type: decision
    active: true
`

func TestTestCommandGoldenLifecycle(t *testing.T) {
	scenariosDir := t.TempDir()
	scenarioPath := filepath.Join(scenariosDir, "toggle.yaml")
	writeFile(t, scenarioPath, toggleScenario)
	goldenPath := filepath.Join(scenariosDir, "golden", "toggle.golden")

	// --update writes the snapshot.
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), scenariosDir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ toggle (golden updated)")

	scenario, err := harness.LoadScenario(scenarioPath)
	require.NoError(t, err)
	result, err := harness.Run(scenario)
	require.NoError(t, err)
	want, err := harness.MarshalSnapshot(scenario, result)
	require.NoError(t, err)

	got, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
	assert.Contains(t, string(got), `"session":"toggle-session"`)

	// A matching snapshot passes; the golden directory is not scanned.
	out, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ toggle\n")

	// A stale snapshot fails.
	writeFile(t, goldenPath, "{}")
	out, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), scenariosDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Golden file mismatch")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	scenariosDir := t.TempDir()
	writeFile(t, filepath.Join(scenariosDir, "wrong.yaml"), `name: wrong
description: Expects an event the engine does not emit
steps:
  - switch_app: com.example.Game
    expect: {events: [disable_activated]}
assertions:
  - type: decision
    active: false
`)

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), scenariosDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result TestResult
	resp := decodeData(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Scenarios, 1)
	assert.False(t, result.Scenarios[0].Pass)
	assert.NotEmpty(t, result.Scenarios[0].Errors)
}

func TestTestCommandBundlesBase(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "bundles", "games.cue"), `apps: ["com.example.Game"]`)
	writeFile(t, filepath.Join(root, "scenarios", "games.yaml"), `name: games
description: Bundles resolve against the --bundles directory
bundles: [games.cue]
steps:
  - switch_app: com.example.Game
    expect: {events: [disable_activated], active: true}
assertions:
  - type: decision
    state: app_disabled
`)

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}),
		filepath.Join(root, "scenarios"), "--bundles", filepath.Join(root, "bundles"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ games")
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()

	// Create scenario files
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "golden"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "golden", "test1.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test1.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test2.yml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "ignore.txt"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	tmpDir := t.TempDir()

	// Create scenario files
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "browser-tabs.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "browser-override.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "app-switch.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "browser-*")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	// All found files should start with browser-
	for _, f := range files {
		base := filepath.Base(f)
		assert.True(t, len(base) >= 8 && base[:8] == "browser-", "Expected file to start with 'browser-': %s", f)
	}
}

func TestFindScenarioFilesSubdirectories(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	require.NoError(t, os.MkdirAll(subDir, 0755))

	// Create scenario files in root and subdir
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "root.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "sub.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestGoldenFilePath(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"/path/to/scenario.yaml", "/path/to/golden/scenario.golden"},
		{"/path/to/scenario.yml", "/path/to/golden/scenario.golden"},
		{"scenarios/test.yaml", "scenarios/golden/test.golden"},
	}

	for _, tc := range testCases {
		result := goldenFilePath(tc.input)
		assert.Equal(t, tc.expected, result)
	}
}
