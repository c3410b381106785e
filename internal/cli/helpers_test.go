package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// newTestOptions returns JSON options over a fresh database.
func newTestOptions(t *testing.T) *RootOptions {
	t.Helper()
	return &RootOptions{
		Format:   "json",
		Database: filepath.Join(t.TempDir(), "rules.db"),
	}
}

// execute runs cmd with args and returns stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// decodeData unmarshals the data payload of a JSON response into v.
func decodeData(t *testing.T, out string, v any) CLIResponse {
	t.Helper()
	var resp struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	if v != nil {
		require.NoError(t, json.Unmarshal(resp.Data, v), "data: %s", resp.Data)
	}
	return resp.CLIResponse
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// change runs one rule-changing command and returns its result.
func change(t *testing.T, opts *RootOptions, newCmd func(*RootOptions) *cobra.Command, args ...string) ChangeResult {
	t.Helper()
	out, err := execute(t, newCmd(opts), args...)
	require.NoError(t, err)

	var result ChangeResult
	resp := decodeData(t, out, &result)
	require.Equal(t, "ok", resp.Status)
	return result
}
