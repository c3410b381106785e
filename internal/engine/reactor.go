package engine

import (
	"context"

	"github.com/roach88/shiftrule/internal/ir"
)

// State is the reactor's view of the foreground context.
type State int

const (
	// StateDefault: foreground app has no rule and is not a supported browser.
	StateDefault State = iota
	// StateAppDisabled: an app rule matches the foreground app.
	StateAppDisabled
	// StateBrowserWatching: foreground app is a supported browser under observation.
	StateBrowserWatching
)

func (s State) String() string {
	switch s {
	case StateDefault:
		return "default"
	case StateAppDisabled:
		return "app_disabled"
	case StateBrowserWatching:
		return "browser_watching"
	default:
		return "unknown"
	}
}

// Reactor re-evaluates the foreground context from scratch on every app
// switch. It is level-triggered: entering a disabled app re-asserts
// DisableActivated even when nothing changed.
type Reactor struct {
	engine *Engine
	state  State
}

// State returns the current state.
func (r *Reactor) State() State { return r.state }

// HandleAppSwitched handles a foreground-application change.
func (r *Reactor) HandleAppSwitched(ctx context.Context) {
	e := r.engine
	e.browser.StopBrowserWatcher()

	id, ok := e.currentApp()
	subject := ""
	if ok {
		subject = id.String()
	}

	switch {
	case ok && e.rules.AppDisabled(id):
		e.emit(ctx, ir.EventDisableActivated, ir.ScopeSwitch, subject)
		r.transition(StateAppDisabled, subject)

	case e.browser.CurrentAppIsSupportedBrowser():
		e.browser.UpdateForSupportedBrowser()
		r.transition(StateBrowserWatching, subject)
		r.evaluateBrowser(ctx)

	default:
		e.emit(ctx, ir.EventDisableDeactivated, ir.ScopeSwitch, subject)
		r.transition(StateDefault, subject)
	}
}

// HandleTabChanged re-evaluates the browser tiers after the active tab's
// host changed. Ignored unless a browser is being watched.
func (r *Reactor) HandleTabChanged(ctx context.Context) {
	if r.state != StateBrowserWatching {
		return
	}
	r.evaluateBrowser(ctx)
}

func (r *Reactor) evaluateBrowser(ctx context.Context) {
	e := r.engine
	host, _ := e.browser.CurrentSubdomain()
	if e.DisableRuleIsActive() {
		e.emit(ctx, ir.EventDisableActivated, ir.ScopeBrowser, host)
		return
	}
	e.emit(ctx, ir.EventDisableDeactivated, ir.ScopeBrowser, host)
}

func (r *Reactor) transition(next State, app string) {
	if r.state != next {
		r.engine.logger.Debug("reactor transition", "from", r.state.String(), "to", next.String(), "app", app)
	}
	r.state = next
}
