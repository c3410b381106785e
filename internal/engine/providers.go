package engine

import (
	"context"

	"github.com/roach88/shiftrule/internal/identity"
	"github.com/roach88/shiftrule/internal/ir"
)

// ForegroundAppProvider reports the process currently holding focus.
type ForegroundAppProvider interface {
	ForegroundApp() (identity.Process, bool)
}

// BrowserDomainProvider exposes the active tab of a supported browser.
// browser.Watcher implements it.
type BrowserDomainProvider interface {
	CurrentDomain() (string, bool)
	CurrentSubdomain() (string, bool)
	CurrentAppIsSupportedBrowser() bool
	UpdateForSupportedBrowser()
	StopBrowserWatcher()
}

// FeatureResponder receives every event the engine emits. It is called
// synchronously after storage has been updated, so it may query the engine.
type FeatureResponder interface {
	Respond(ev ir.Event)
}

// ResponderFunc adapts a function to FeatureResponder.
type ResponderFunc func(ir.Event)

// Respond calls f(ev).
func (f ResponderFunc) Respond(ev ir.Event) { f(ev) }

// Recorder appends emitted events to an audit log. *store.Store implements it.
type Recorder interface {
	WriteEvent(ctx context.Context, ev ir.Event) error
}

// NotificationHandler receives host notifications. Reactor implements it.
type NotificationHandler interface {
	HandleAppSwitched(ctx context.Context)
	HandleTabChanged(ctx context.Context)
}

// Host delivers notifications to a subscribed handler on the engine's
// control goroutine. Loop implements it.
type Host interface {
	Subscribe(h NotificationHandler) (unsubscribe func())
}
