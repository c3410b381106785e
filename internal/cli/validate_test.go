package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidBundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "work.cue")
	writeFile(t, path, workBundle)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ Bundle valid: 2 app(s), 1 domain(s), 1 subdomain(s)")
}

func TestValidateValidBundleJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "work.cue")
	writeFile(t, path, workBundle)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)

	var result ValidationResult
	resp := decodeData(t, buf.String(), &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Equal(t, 2, result.Apps)
}

func TestValidateHarnessBundle(t *testing.T) {
	path := filepath.Join("..", "harness", "testdata", "bundles", "work.cue")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("harness bundle not found")
	}

	_, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)
}

func TestValidateNonExistentPath(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/directory/path"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E005") // ErrCodeNotFound
	assert.Contains(t, buf.String(), "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{tmpDir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, buf.String(), "no CUE files found")
}

func TestValidateNotACUEFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	writeFile(t, path, "apps: [com.example.Game]\n")

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, out, "not a CUE file")
}

func TestValidateDirectoryPackage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "apps.cue"), "package rules\n\napps: [\"com.example.Game\"]\n")
	writeFile(t, filepath.Join(dir, "sites.cue"), "package rules\n\ndomains: [\"example.com\"]\nsubdomains: {\"docs.example.com\": \"enabled\"}\n")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Verbose: true}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	errBuf := &bytes.Buffer{}
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "1 app(s), 1 domain(s), 1 subdomain(s)")
	assert.Contains(t, errBuf.String(), "Found 2 CUE file(s)")
}

func TestValidateInvalidBundle(t *testing.T) {
	tmpDir := t.TempDir()

	// An enabled override whose domain the bundle never disables
	invalidBundle := `
subdomains: {
	"docs.example.com": "enabled"
}
`
	err := os.WriteFile(filepath.Join(tmpDir, "bad.cue"), []byte(invalidBundle), 0644)
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join(tmpDir, "bad.cue")})

	err = cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, buf.String(), "Validation failed")
	assert.Contains(t, buf.String(), "E112")
	assert.Contains(t, buf.String(), `domain "example.com" is disabled`)
}

func TestValidateMultipleErrorsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.cue")
	writeFile(t, path, `apps: [
	"com.example.Game",
	"com.example.Game",
	{executable_path: "bin/tool"},
]
domains: ["https://example.com/"]
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 error(s)")

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 3)
	assert.Equal(t, "E101", resp.Data.Errors[0].Code)
	assert.Equal(t, "E103", resp.Data.Errors[1].Code)
	assert.Equal(t, "E110", resp.Data.Errors[2].Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E101", resp.Error.Code)
}

func TestValidateCompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    string
	}{
		{"app_without_identifier", `apps: [{name: "Game"}]`, ErrCodeInvalidApp},
		{"app_both_fields", `apps: [{bundle: "a", executable_path: "/b"}]`, ErrCodeInvalidApp},
		{"bad_override", `subdomains: {"a.example.com": "maybe"}`, ErrCodeInvalidOverride},
		{"none_override", `subdomains: {"a.example.com": "none"}`, ErrCodeInvalidOverride},
		{"empty", "", ErrCodeEmptyBundle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bundle.cue")
			writeFile(t, path, tt.content)

			out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), path)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			resp := decodeData(t, out, nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestValidateSyntaxError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.cue")
	writeFile(t, path, "apps: [\n")

	_, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeBuildFailed)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field    string
		expected string
	}{
		{"apps[0]", "E020"},
		{"apps", "E020"},
		{"subdomains.docs.example.com", "E021"},
		{"rules", "E022"},
		{"cue", "E023"},
		{"domains", "E001"},
		{"unknown", "E001"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			code := MapFieldToErrorCode(tt.field)
			assert.Equal(t, tt.expected, code)
		})
	}
}
