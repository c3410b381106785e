package engine

import (
	"context"
	"fmt"

	"github.com/roach88/shiftrule/internal/browser"
	"github.com/roach88/shiftrule/internal/compiler"
	"github.com/roach88/shiftrule/internal/identity"
	"github.com/roach88/shiftrule/internal/ir"
	"github.com/roach88/shiftrule/internal/store"
)

// ImportResult summarizes an Import.
type ImportResult struct {
	Applied   int        `json:"applied"`
	Unchanged int        `json:"unchanged"`
	Events    []ir.Event `json:"events"`
}

// Import applies every rule in b to rules by driving the regular setters
// against a pinned foreground context: apps first, then domains, then
// subdomain overrides. Rules already present are counted as unchanged.
//
// rules must already be loaded. opts configure the importing engine; pass
// WithRecorder to append the resulting events to the audit log.
// Returns an error on the first rule that did not persist.
func Import(ctx context.Context, rules *store.RuleStore, b *compiler.Bundle, opts ...Option) (*ImportResult, error) {
	pin := &pinnedContext{}
	result := &ImportResult{Events: []ir.Event{}}
	responder := ResponderFunc(func(ev ir.Event) {
		result.Events = append(result.Events, ev)
	})
	e := New(rules, pin, pin, responder, opts...)

	apply := func(subject string, set func(), persisted func() bool) error {
		before := len(result.Events)
		set()
		if !persisted() {
			return fmt.Errorf("import %s: rule not persisted", subject)
		}
		if len(result.Events) > before {
			result.Applied++
		} else {
			result.Unchanged++
		}
		return nil
	}

	for _, id := range b.Apps {
		pin.app(id)
		err := apply(id.String(),
			func() { e.SetDisabledForApp(ctx, true) },
			func() bool { return rules.AppDisabled(id) })
		if err != nil {
			return result, err
		}
	}

	// Domain rules are keyed by registrable domain, the way browsers report them.
	for _, host := range b.Domains {
		domain := browser.RegistrableDomain(host)
		pin.tab(domain, domain)
		err := apply(domain,
			func() { e.SetDisabledForDomain(ctx, true) },
			func() bool { return rules.HasBrowserRule(ir.NewBrowserRule(ir.RuleDomain, domain)) })
		if err != nil {
			return result, err
		}
	}

	for _, sub := range b.Subdomains {
		pin.tab(browser.RegistrableDomain(sub.Host), sub.Host)
		row := ir.NewBrowserRule(ir.RuleSubdomainDisabled, sub.Host)
		if sub.Rule == ir.SubdomainEnabled {
			row = ir.NewBrowserRule(ir.RuleSubdomainEnabled, sub.Host)
		}
		err := apply(sub.Host,
			func() { e.SetRuleForSubdomain(ctx, sub.Rule) },
			func() bool { return rules.HasBrowserRule(row) })
		if err != nil {
			return result, err
		}
	}

	e.logger.Info("bundle imported",
		"session", e.session,
		"applied", result.Applied,
		"unchanged", result.Unchanged,
	)
	return result, nil
}

// pinnedContext is a foreground context fixed by Import. It never reports a
// supported browser, so the reactor is never involved.
type pinnedContext struct {
	proc      identity.Process
	hasApp    bool
	domain    string
	subdomain string
}

func (p *pinnedContext) app(id ir.AppIdentifier) {
	p.hasApp = true
	p.proc = identity.Process{}
	if id.Kind() == ir.KindExecutablePath {
		p.proc.ExecutablePath = id.Value()
	} else {
		p.proc.BundleID = id.Value()
	}
}

func (p *pinnedContext) tab(domain, subdomain string) {
	p.domain, p.subdomain = domain, subdomain
}

func (p *pinnedContext) ForegroundApp() (identity.Process, bool) { return p.proc, p.hasApp }
func (p *pinnedContext) CurrentDomain() (string, bool)           { return p.domain, p.domain != "" }
func (p *pinnedContext) CurrentSubdomain() (string, bool)        { return p.subdomain, p.subdomain != "" }
func (p *pinnedContext) CurrentAppIsSupportedBrowser() bool      { return false }
func (p *pinnedContext) UpdateForSupportedBrowser()              {}
func (p *pinnedContext) StopBrowserWatcher()                     {}
