package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/shiftrule/internal/identity"
	"github.com/roach88/shiftrule/internal/ir"
	"github.com/roach88/shiftrule/internal/store"
)

// Engine evaluates the three rule tiers (app, domain, subdomain) for the
// current foreground context and emits edge events to a FeatureResponder.
//
// Thread-safety model:
//   - Engine holds no locks. Every method must be called from the control
//     goroutine; hosts that receive notifications elsewhere deliver them
//     through Loop.
//   - Setters persist through the RuleStore before emitting, so a responder
//     that queries the engine while handling an event sees updated state.
//
// INVARIANTS:
//   - A no-op set (value already at target) writes nothing and emits nothing.
//   - A failed write leaves both memory and storage unchanged and emits nothing.
//   - Removing a Domain row whose subdomain override is Enabled clears the
//     override first.
type Engine struct {
	rules     *store.RuleStore
	apps      ForegroundAppProvider
	browser   BrowserDomainProvider
	responder FeatureResponder
	recorder  Recorder
	logger    *slog.Logger
	clock     Sequencer
	session   string
	reactor   *Reactor

	unsubscribe func()
	initialized bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRecorder appends every emitted event to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// Sequencer hands out event seq values. *Clock implements it.
type Sequencer interface {
	Next() int64
}

// WithClock sets the logical clock stamping events.
// Used to resume a session or to pin seq values in tests.
func WithClock(c Sequencer) Option {
	return func(e *Engine) { e.clock = c }
}

// WithSessionGenerator sets the generator for the session token.
// Defaults to UUIDv7Generator.
func WithSessionGenerator(g SessionGenerator) Option {
	return func(e *Engine) { e.session = g.Generate() }
}

// New creates an Engine over rules. A nil responder discards events.
func New(
	rules *store.RuleStore,
	apps ForegroundAppProvider,
	browser BrowserDomainProvider,
	responder FeatureResponder,
	opts ...Option,
) *Engine {
	if responder == nil {
		responder = ResponderFunc(func(ir.Event) {})
	}

	e := &Engine{
		rules:     rules,
		apps:      apps,
		browser:   browser,
		responder: responder,
		logger:    slog.Default(),
		clock:     NewClock(),
	}
	e.reactor = &Reactor{engine: e, state: StateDefault}

	for _, opt := range opts {
		opt(e)
	}
	if e.session == "" {
		e.session = UUIDv7Generator{}.Generate()
	}

	return e
}

// Initialize loads persisted rules and subscribes the reactor to host
// notifications. It fails only on lifecycle misuse.
func (e *Engine) Initialize(ctx context.Context, host Host) error {
	if e.initialized {
		return ErrAlreadyInitialized
	}
	if host == nil {
		return ErrNilHost
	}

	e.rules.Load(ctx)
	e.unsubscribe = host.Subscribe(e.reactor)
	e.initialized = true

	e.logger.Info("engine initialized",
		"session", e.session,
		"app_rules", len(e.rules.AppRules()),
		"browser_rules", len(e.rules.BrowserRules()),
	)
	return nil
}

// Close unsubscribes from the host and stops browser observation.
// The engine may be initialized again afterwards.
func (e *Engine) Close() {
	if !e.initialized {
		return
	}
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	e.browser.StopBrowserWatcher()
	e.initialized = false
	e.logger.Info("engine closed", "session", e.session)
}

// Session returns the token tagging this engine's events.
func (e *Engine) Session() string { return e.session }

// Reactor returns the app-switch state machine subscribed at Initialize.
func (e *Engine) Reactor() *Reactor { return e.reactor }

// Rules returns the underlying rule store.
func (e *Engine) Rules() *store.RuleStore { return e.rules }

// currentApp resolves the foreground application. Failures are logged.
func (e *Engine) currentApp() (ir.AppIdentifier, bool) {
	p, ok := e.apps.ForegroundApp()
	if !ok {
		e.logger.Warn("no foreground application")
		return ir.AppIdentifier{}, false
	}
	id, err := identity.Resolve(p)
	if err != nil {
		e.logger.Warn("cannot identify foreground application", "process", p.String(), "error", err)
		return ir.AppIdentifier{}, false
	}
	return id, true
}

// DisabledForApp reports whether an app rule matches the foreground
// application. FullScreenOnly is ignored.
func (e *Engine) DisabledForApp() bool {
	id, ok := e.currentApp()
	return ok && e.rules.AppDisabled(id)
}

// SetDisabledForApp adds or removes the app rule for the foreground
// application. Removing drops every rule with a matching identifier.
func (e *Engine) SetDisabledForApp(ctx context.Context, disabled bool) {
	id, ok := e.currentApp()
	if !ok || e.rules.AppDisabled(id) == disabled {
		return
	}

	if disabled {
		if _, err := e.rules.InsertAppRule(ctx, ir.AppRule{Identifier: id}); err != nil {
			e.logger.Error("disable app failed", "app", id.String(), "error", err)
			return
		}
		e.emit(ctx, ir.EventDisableActivated, ir.ScopeApp, id.String())
		return
	}

	if _, err := e.rules.RemoveAppRules(ctx, id); err != nil {
		e.logger.Error("enable app failed", "app", id.String(), "error", err)
		return
	}
	e.emit(ctx, ir.EventDisableDeactivated, ir.ScopeApp, id.String())
}

// DisabledForDomain reports whether a Domain rule exists for the current
// registrable domain. False when there is none.
func (e *Engine) DisabledForDomain() bool {
	domain, ok := e.browser.CurrentDomain()
	return ok && e.rules.HasBrowserRule(ir.NewBrowserRule(ir.RuleDomain, domain))
}

// SetDisabledForDomain adds or removes the Domain rule for the current
// registrable domain. Removing first clears an Enabled subdomain override,
// which emits its own EnableDeactivated.
func (e *Engine) SetDisabledForDomain(ctx context.Context, disabled bool) {
	domain, ok := e.browser.CurrentDomain()
	if !ok {
		return
	}
	rule := ir.NewBrowserRule(ir.RuleDomain, domain)
	if e.rules.HasBrowserRule(rule) == disabled {
		return
	}

	if disabled {
		if _, err := e.rules.InsertBrowserRule(ctx, rule); err != nil {
			e.logger.Error("disable domain failed", "domain", rule.Host, "error", err)
			return
		}
		e.emit(ctx, ir.EventDisableActivated, ir.ScopeDomain, rule.Host)
		return
	}

	if e.RuleForSubdomain() == ir.SubdomainEnabled {
		if err := e.setRuleForSubdomain(ctx, ir.SubdomainNone); err != nil {
			e.logger.Error("enable domain failed", "domain", rule.Host, "error", err)
			return
		}
	}

	if _, err := e.rules.RemoveBrowserRule(ctx, rule); err != nil {
		e.logger.Error("enable domain failed", "domain", rule.Host, "error", err)
		return
	}
	e.emit(ctx, ir.EventDisableDeactivated, ir.ScopeDomain, rule.Host)
}

// RuleForSubdomain derives the override for the current host from live
// domain state: under a disabled domain only an Enabled row counts, otherwise
// only a Disabled row counts.
func (e *Engine) RuleForSubdomain() ir.SubdomainRuleType {
	host, ok := e.browser.CurrentSubdomain()
	if !ok {
		return ir.SubdomainNone
	}

	if e.DisabledForDomain() {
		if e.rules.HasBrowserRule(ir.NewBrowserRule(ir.RuleSubdomainEnabled, host)) {
			return ir.SubdomainEnabled
		}
		return ir.SubdomainNone
	}

	if e.rules.HasBrowserRule(ir.NewBrowserRule(ir.RuleSubdomainDisabled, host)) {
		return ir.SubdomainDisabled
	}
	return ir.SubdomainNone
}

// SetRuleForSubdomain sets the override for the current host.
// Disabled and Enabled replace any row of the opposite kind for the host in
// the same write. None removes the row backing the current derived value,
// then emits.
func (e *Engine) SetRuleForSubdomain(ctx context.Context, v ir.SubdomainRuleType) {
	if err := e.setRuleForSubdomain(ctx, v); err != nil {
		e.logger.Error("set subdomain rule failed", "rule", string(v), "error", err)
	}
}

func (e *Engine) setRuleForSubdomain(ctx context.Context, v ir.SubdomainRuleType) error {
	host, ok := e.browser.CurrentSubdomain()
	if !ok {
		return nil
	}
	disabledRow := ir.NewBrowserRule(ir.RuleSubdomainDisabled, host)
	enabledRow := ir.NewBrowserRule(ir.RuleSubdomainEnabled, host)

	switch v {
	case ir.SubdomainDisabled:
		changed, err := e.rules.InsertBrowserRule(ctx, disabledRow, enabledRow)
		if err != nil || !changed {
			return err
		}
		e.emit(ctx, ir.EventDisableActivated, ir.ScopeSubdomain, disabledRow.Host)

	case ir.SubdomainEnabled:
		changed, err := e.rules.InsertBrowserRule(ctx, enabledRow, disabledRow)
		if err != nil || !changed {
			return err
		}
		e.emit(ctx, ir.EventEnableActivated, ir.ScopeSubdomain, enabledRow.Host)

	case ir.SubdomainNone:
		switch e.RuleForSubdomain() {
		case ir.SubdomainDisabled:
			if _, err := e.rules.RemoveBrowserRule(ctx, disabledRow); err != nil {
				return err
			}
			e.emit(ctx, ir.EventDisableDeactivated, ir.ScopeSubdomain, disabledRow.Host)
		case ir.SubdomainEnabled:
			if _, err := e.rules.RemoveBrowserRule(ctx, enabledRow); err != nil {
				return err
			}
			e.emit(ctx, ir.EventEnableDeactivated, ir.ScopeSubdomain, enabledRow.Host)
		}

	default:
		e.logger.Warn("ignoring unknown subdomain rule", "rule", string(v))
	}
	return nil
}

// DisableRuleIsActive is the combined decision:
// app disabled, or domain disabled without an Enabled override, or an
// explicit Disabled override.
func (e *Engine) DisableRuleIsActive() bool {
	if e.DisabledForApp() {
		return true
	}
	sub := e.RuleForSubdomain()
	return (e.DisabledForDomain() && sub != ir.SubdomainEnabled) || sub == ir.SubdomainDisabled
}

// RemoveRulesForCurrentState clears every tier for the current context, in
// order: app, domain, subdomain. Tiers already inactive emit nothing.
func (e *Engine) RemoveRulesForCurrentState(ctx context.Context) {
	e.SetDisabledForApp(ctx, false)
	e.SetDisabledForDomain(ctx, false)
	e.SetRuleForSubdomain(ctx, ir.SubdomainNone)
}

// emit stamps, records and delivers one event.
func (e *Engine) emit(ctx context.Context, kind ir.EventKind, scope ir.Scope, subject string) {
	ev := ir.Event{
		Seq:     e.clock.Next(),
		Kind:    kind,
		Scope:   scope,
		Subject: subject,
		Session: e.session,
	}

	if e.recorder != nil {
		if err := e.recorder.WriteEvent(ctx, ev); err != nil {
			e.logger.Error("event not recorded", "seq", ev.Seq, "kind", string(kind), "error", err)
		}
	}

	e.logger.Debug("event",
		"seq", ev.Seq,
		"kind", string(kind),
		"scope", string(scope),
		"subject", subject,
	)
	e.responder.Respond(ev)
}
