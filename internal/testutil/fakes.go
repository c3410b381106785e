package testutil

import (
	"sync"

	"github.com/roach88/shiftrule/internal/identity"
	"github.com/roach88/shiftrule/internal/ir"
)

// FakeApps is a settable foreground-application source.
type FakeApps struct {
	mu   sync.Mutex
	proc identity.Process
	ok   bool
}

// NewFakeApps returns a source reporting no foreground application.
func NewFakeApps() *FakeApps {
	return &FakeApps{}
}

// SetForeground makes p the foreground application.
func (f *FakeApps) SetForeground(p identity.Process) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.proc, f.ok = p, true
}

// SetBundle is shorthand for SetForeground with only a bundle identifier.
func (f *FakeApps) SetBundle(bundleID string) {
	f.SetForeground(identity.Process{BundleID: bundleID})
}

// Clear reports no foreground application.
func (f *FakeApps) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.proc, f.ok = identity.Process{}, false
}

// ForegroundApp implements the engine's ForegroundAppProvider.
func (f *FakeApps) ForegroundApp() (identity.Process, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.proc, f.ok
}

// FakeBrowser is a browser provider whose domain, subdomain and browser
// status are set directly by the test.
type FakeBrowser struct {
	mu        sync.Mutex
	domain    string
	subdomain string
	supported bool

	Watching    bool
	UpdateCalls int
	StopCalls   int
}

// SetHosts sets the current domain and subdomain. Empty strings mean none.
func (f *FakeBrowser) SetHosts(domain, subdomain string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.domain, f.subdomain = domain, subdomain
}

// SetSupported sets whether the foreground app counts as a browser.
func (f *FakeBrowser) SetSupported(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.supported = v
}

func (f *FakeBrowser) CurrentDomain() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.domain, f.domain != ""
}

func (f *FakeBrowser) CurrentSubdomain() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subdomain, f.subdomain != ""
}

func (f *FakeBrowser) CurrentAppIsSupportedBrowser() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.supported
}

func (f *FakeBrowser) UpdateForSupportedBrowser() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Watching = true
	f.UpdateCalls++
}

func (f *FakeBrowser) StopBrowserWatcher() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Watching = false
	f.StopCalls++
}

// RecordingResponder captures every event it receives.
type RecordingResponder struct {
	mu     sync.Mutex
	events []ir.Event
}

// Respond records ev.
func (r *RecordingResponder) Respond(ev ir.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *RecordingResponder) Events() []ir.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ir.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the kinds of the recorded events in order.
func (r *RecordingResponder) Kinds() []ir.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]ir.EventKind, len(r.events))
	for i, ev := range r.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

// Reset discards recorded events.
func (r *RecordingResponder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
