package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shiftrule/internal/browser"
	"github.com/roach88/shiftrule/internal/config"
)

func TestInitCommand_WritesDefaults(t *testing.T) {
	dir := t.TempDir()
	opts := &RootOptions{
		Format:     "json",
		ConfigPath: filepath.Join(dir, "shiftrule", "config.yaml"),
		Database:   filepath.Join(dir, "rules.db"),
	}

	out, err := execute(t, NewInitCommand(opts))
	require.NoError(t, err)

	var result InitResult
	decodeData(t, out, &result)
	assert.Equal(t, opts.ConfigPath, result.Path)
	assert.Equal(t, opts.Database, result.Database)
	assert.Equal(t, browser.DefaultSupported, result.Browsers)

	cfg, err := config.Load(opts.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, opts.Database, cfg.Database)
}

func TestInitCommand_KeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "browsers: [org.example.Browser]\n")

	opts := &RootOptions{Format: "json", ConfigPath: path}
	out, err := execute(t, NewInitCommand(opts))
	require.NoError(t, err)

	var result InitResult
	decodeData(t, out, &result)
	assert.Equal(t, []string{"org.example.Browser"}, result.Browsers)
}

func TestInitCommand_PathIsDirectory(t *testing.T) {
	opts := &RootOptions{Format: "text", ConfigPath: t.TempDir()}

	_, err := execute(t, NewInitCommand(opts))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "is a directory")
}
