// Package browser tracks the active tab of a supported browser and derives
// the registrable domain and full host the rule engine evaluates.
package browser

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"

	"github.com/roach88/shiftrule/internal/identity"
	"github.com/roach88/shiftrule/internal/ir"
)

// DefaultSupported lists the bundle identifiers treated as browsers when no
// configuration overrides them.
var DefaultSupported = []string{
	"com.apple.Safari",
	"com.apple.SafariTechnologyPreview",
	"com.google.Chrome",
	"com.google.Chrome.canary",
	"org.chromium.Chromium",
	"com.brave.Browser",
	"com.microsoft.edgemac",
	"com.vivaldi.Vivaldi",
	"com.operasoftware.Opera",
}

// AppSource reports the current foreground application.
type AppSource interface {
	ForegroundApp() (identity.Process, bool)
}

// Watcher holds the active tab URL reported by the host and answers
// domain queries for it.
//
// Domain and subdomain are only reported while the watcher is started, the
// foreground application is a supported browser and a tab URL is known. SetActiveURL may be called from
// any goroutine.
type Watcher struct {
	apps      AppSource
	supported map[string]struct{}
	logger    *slog.Logger

	mu       sync.Mutex
	host     string
	watching bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher returns a watcher recognizing the given browser bundle
// identifiers. A nil or empty list uses DefaultSupported.
func NewWatcher(apps AppSource, supported []string, opts ...Option) *Watcher {
	if len(supported) == 0 {
		supported = DefaultSupported
	}
	w := &Watcher{
		apps:      apps,
		supported: make(map[string]struct{}, len(supported)),
		logger:    slog.Default(),
	}
	for _, id := range supported {
		w.supported[id] = struct{}{}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetActiveURL records the URL of the active tab. An empty string clears it.
// URLs without a host (about:blank, file://) clear it as well.
func (w *Watcher) SetActiveURL(raw string) error {
	host := ""
	if raw = strings.TrimSpace(raw); raw != "" {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("set active url: %w", err)
		}
		host = ir.NormalizeHost(u.Hostname())
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.host = host
	return nil
}

// CurrentAppIsSupportedBrowser reports whether the foreground application is
// one of the supported browsers.
func (w *Watcher) CurrentAppIsSupportedBrowser() bool {
	p, ok := w.apps.ForegroundApp()
	if !ok {
		return false
	}
	_, ok = w.supported[p.BundleID]
	return ok
}

// UpdateForSupportedBrowser starts observing the foreground browser.
func (w *Watcher) UpdateForSupportedBrowser() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.watching {
		w.logger.Debug("browser watcher started", "host", w.host)
	}
	w.watching = true
}

// StopBrowserWatcher stops observing. It is safe to call when not watching.
func (w *Watcher) StopBrowserWatcher() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watching {
		w.logger.Debug("browser watcher stopped")
	}
	w.watching = false
}

// Watching reports whether the watcher is observing a browser.
func (w *Watcher) Watching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}

// CurrentSubdomain returns the full host of the active tab.
func (w *Watcher) CurrentSubdomain() (string, bool) {
	host, ok := w.activeHost()
	if !ok {
		return "", false
	}
	return host, true
}

// CurrentDomain returns the registrable domain (eTLD+1) of the active tab.
// Hosts with no registrable part, such as IP addresses or "localhost", are
// returned unchanged.
func (w *Watcher) CurrentDomain() (string, bool) {
	host, ok := w.activeHost()
	if !ok {
		return "", false
	}
	return RegistrableDomain(host), true
}

func (w *Watcher) activeHost() (string, bool) {
	if !w.CurrentAppIsSupportedBrowser() {
		return "", false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.watching || w.host == "" {
		return "", false
	}
	return w.host, true
}

// RegistrableDomain returns the eTLD+1 of host, or host itself when it has
// none.
func RegistrableDomain(host string) string {
	host = ir.NormalizeHost(host)
	if net.ParseIP(host) != nil {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
