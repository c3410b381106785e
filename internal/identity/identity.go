// Package identity derives stable application identifiers from process
// descriptions handed in by the host.
package identity

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/roach88/shiftrule/internal/ir"
)

// ErrUnresolvable is returned when a process carries neither a bundle
// identifier nor a usable executable path.
var ErrUnresolvable = errors.New("application identity unresolvable")

// Process describes a foreground application as reported by the host.
// Only BundleID and ExecutablePath take part in identity; PID and Name are
// carried for logging.
type Process struct {
	BundleID       string `json:"bundle_id,omitempty"`
	ExecutablePath string `json:"executable_path,omitempty"` // plain path or file:// URL
	PID            int    `json:"pid,omitempty"`
	Name           string `json:"name,omitempty"`
}

// String describes p for log messages.
func (p Process) String() string {
	switch {
	case p.Name != "" && p.PID != 0:
		return fmt.Sprintf("%s (pid %d)", p.Name, p.PID)
	case p.Name != "":
		return p.Name
	case p.PID != 0:
		return fmt.Sprintf("pid %d", p.PID)
	default:
		return "unknown process"
	}
}

// Resolve returns the identifier for p: the bundle identifier when present,
// otherwise the executable path.
func Resolve(p Process) (ir.AppIdentifier, error) {
	if id := strings.TrimSpace(p.BundleID); id != "" {
		return ir.Bundle(id), nil
	}

	path, err := executablePath(p.ExecutablePath)
	if err != nil {
		return ir.AppIdentifier{}, fmt.Errorf("resolve %s: %w", p, err)
	}
	if path == "" {
		return ir.AppIdentifier{}, fmt.Errorf("resolve %s: %w", p, ErrUnresolvable)
	}
	return ir.ExecutablePath(path), nil
}

// executablePath accepts a plain absolute path or a file:// URL.
func executablePath(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("parse executable url: %w", ErrUnresolvable)
		}
		if u.Scheme != "file" {
			return "", fmt.Errorf("executable url scheme %q: %w", u.Scheme, ErrUnresolvable)
		}
		raw = u.Path
	}

	if !filepath.IsAbs(raw) {
		return "", fmt.Errorf("executable path %q is not absolute: %w", raw, ErrUnresolvable)
	}
	return raw, nil
}
