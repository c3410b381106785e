package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/shiftrule/internal/browser"
	"github.com/roach88/shiftrule/internal/logging"
)

const appName = "shiftrule"

// Config is the on-disk configuration.
type Config struct {
	// Database is the SQLite file holding rules and the event log.
	Database string `yaml:"database"`
	// Log configures the CLI logger.
	Log LogConfig `yaml:"log"`
	// Browsers lists the bundle identifiers treated as supported browsers.
	Browsers []string `yaml:"browsers"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// New creates a [Config] with default values.
func New() *Config {
	c := &Config{}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults fills empty fields with their default values.
func (c *Config) EnsureDefaults() {
	if c.Database == "" {
		c.Database = DefaultDatabasePath()
	}
	if c.Log.Level == "" {
		c.Log.Level = string(logging.LevelInfo)
	}
	if c.Log.Format == "" {
		c.Log.Format = string(logging.FormatText)
	}
	if len(c.Browsers) == 0 {
		c.Browsers = append([]string(nil), browser.DefaultSupported...)
	}
}

// Validate checks field values that the YAML decoder cannot.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logging.GetLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if _, err := logging.GetFormat(c.Log.Format); err != nil {
		errs = append(errs, fmt.Errorf("log.format: %w", err))
	}
	for i, b := range c.Browsers {
		if strings.TrimSpace(b) == "" {
			errs = append(errs, fmt.Errorf("browsers[%d]: empty bundle identifier", i))
		}
	}

	return errors.Join(errs...)
}

// Parse decodes YAML data into a validated [Config] with defaults applied.
func Parse(data []byte) (*Config, error) {
	c := &Config{}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields

	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.Database = expandHome(c.Database)
	c.EnsureDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return c, nil
}

// Load reads the configuration at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := readConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("config file not found, using defaults", slog.String("path", path))
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return Parse(data)
}

// MarshalYAML serializes the config to YAML.
func (c *Config) MarshalYAML() ([]byte, error) {
	b := &bytes.Buffer{}
	enc := yaml.NewEncoder(b)
	enc.SetIndent(2)

	if err := enc.Encode(struct {
		Database string    `yaml:"database"`
		Log      LogConfig `yaml:"log"`
		Browsers []string  `yaml:"browsers"`
	}(*c)); err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}

	return b.Bytes(), nil
}

// Write saves the config to path unless a file already exists there.
func (c *Config) Write(path string) error {
	pathInfo, err := os.Stat(path)
	if pathInfo != nil {
		if err == nil && pathInfo.Mode().IsRegular() {
			return nil // Config already exists.
		}
		if pathInfo.IsDir() {
			return fmt.Errorf("%s: path is a directory", path)
		}

		return fmt.Errorf("%s: unknown file state", path)
	}

	err = os.MkdirAll(filepath.Dir(path), 0o700)
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	b, err := c.MarshalYAML()
	if err != nil {
		return err
	}

	err = os.WriteFile(path, b, 0o600)
	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}

// GetPath returns the default configuration file path.
func GetPath() string {
	return xdgPath("XDG_CONFIG_HOME", ".config", "config.yaml")
}

// DefaultDatabasePath returns the default SQLite database path.
func DefaultDatabasePath() string {
	return xdgPath("XDG_DATA_HOME", filepath.Join(".local", "share"), "rules.db")
}

func xdgPath(env, homeRel, file string) string {
	if xdgHome, ok := os.LookupEnv(env); ok && xdgHome != "" {
		return filepath.Join(xdgHome, appName, file)
	}

	usrHome, err := os.UserHomeDir()
	if err == nil && usrHome != "" {
		return filepath.Join(usrHome, homeRel, appName, file)
	}

	tmpPath := filepath.Join(os.TempDir(), appName, file)

	slog.Warn("could not determine user directory, using temp path",
		slog.String("path", tmpPath),
		slog.Any("error", fmt.Errorf("$%s is unset, fall back to home directory: %w", env, err)),
	)

	return tmpPath
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func readConfig(path string) ([]byte, error) {
	pathInfo, err := os.Stat(path)
	if pathInfo != nil {
		if err == nil && pathInfo.IsDir() {
			return nil, fmt.Errorf("%s: path is a directory", path)
		}
		if err == nil && !pathInfo.Mode().IsRegular() {
			return nil, fmt.Errorf("%s: unknown file state", path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: Potential file inclusion via variable.
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}
