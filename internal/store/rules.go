package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/shiftrule/internal/ir"
)

// Blobs is the persistence surface RuleStore writes through.
// *Store implements it.
type Blobs interface {
	GetBlob(ctx context.Context, key, domain string) ([]byte, error)
	PutBlob(ctx context.Context, key, domain string, data []byte) error
}

// RuleStore owns the two persisted rule sets.
//
// Every mutation encodes the whole set and overwrites its blob before the
// in-memory set is replaced, so a failed write leaves memory untouched.
// RuleStore is not safe for concurrent use; the engine drives it from a
// single goroutine.
type RuleStore struct {
	blobs   Blobs
	logger  *slog.Logger
	apps    ir.AppRuleSet
	browser ir.BrowserRuleSet
}

// NewRuleStore returns an empty store backed by blobs. Call Load to read
// persisted state.
func NewRuleStore(blobs Blobs, logger *slog.Logger) *RuleStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleStore{
		blobs:   blobs,
		logger:  logger,
		apps:    ir.NewAppRuleSet(),
		browser: ir.NewBrowserRuleSet(),
	}
}

// Load replaces both sets with their persisted contents.
// A missing blob yields an empty set. Any other failure is logged and
// also yields an empty set; Load never fails.
func (r *RuleStore) Load(ctx context.Context) {
	r.apps = ir.NewAppRuleSet()
	if data, ok := r.read(ctx, KeyDisabledApps, ir.DomainAppRules); ok {
		apps, err := ir.DecodeAppRules(data)
		if err != nil {
			r.logger.Warn("discarding app rules", "key", KeyDisabledApps, "error", err)
		} else {
			r.apps = apps
		}
	}

	r.browser = ir.NewBrowserRuleSet()
	if data, ok := r.read(ctx, KeyBrowserRules, ir.DomainBrowserRules); ok {
		browser, err := ir.DecodeBrowserRules(data)
		if err != nil {
			r.logger.Warn("discarding browser rules", "key", KeyBrowserRules, "error", err)
		} else {
			r.browser = browser
		}
	}

	r.logger.Debug("rules loaded", "app_rules", len(r.apps), "browser_rules", len(r.browser))
}

func (r *RuleStore) read(ctx context.Context, key, domain string) ([]byte, bool) {
	data, err := r.blobs.GetBlob(ctx, key, domain)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		r.logger.Warn("discarding rules", "key", key, "error", err)
		return nil, false
	}
	return data, true
}

// AppRules returns a copy of the app rule set.
func (r *RuleStore) AppRules() ir.AppRuleSet { return r.apps.Clone() }

// BrowserRules returns a copy of the browser rule set.
func (r *RuleStore) BrowserRules() ir.BrowserRuleSet { return r.browser.Clone() }

// AppDisabled reports whether any app rule matches id, ignoring FullScreenOnly.
func (r *RuleStore) AppDisabled(id ir.AppIdentifier) bool {
	return r.apps.ContainsIdentifier(id)
}

// HasBrowserRule reports whether the exact browser rule is present.
func (r *RuleStore) HasBrowserRule(rule ir.BrowserRule) bool {
	return r.browser.Contains(rule)
}

// InsertAppRule adds rule and persists. Reports whether the set changed.
func (r *RuleStore) InsertAppRule(ctx context.Context, rule ir.AppRule) (bool, error) {
	if r.apps.Contains(rule) {
		return false, nil
	}
	next := r.apps.Clone()
	next.Insert(rule)
	if err := r.saveApps(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveAppRules removes every rule matching id and persists.
// Reports whether the set changed.
func (r *RuleStore) RemoveAppRules(ctx context.Context, id ir.AppIdentifier) (bool, error) {
	next := r.apps.WithoutIdentifier(id)
	if len(next) == len(r.apps) {
		return false, nil
	}
	if err := r.saveApps(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// InsertBrowserRule adds rule, drops every rule in evict, and persists both
// changes in one write. Reports whether the set changed.
func (r *RuleStore) InsertBrowserRule(ctx context.Context, rule ir.BrowserRule, evict ...ir.BrowserRule) (bool, error) {
	next := r.browser.Clone()
	changed := next.Insert(rule)
	for _, e := range evict {
		if next.Remove(e) {
			changed = true
		}
	}
	if !changed {
		return false, nil
	}
	if err := r.saveBrowser(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveBrowserRule removes rule and persists. Reports whether the set changed.
func (r *RuleStore) RemoveBrowserRule(ctx context.Context, rule ir.BrowserRule) (bool, error) {
	if !r.browser.Contains(rule) {
		return false, nil
	}
	next := r.browser.Clone()
	next.Remove(rule)
	if err := r.saveBrowser(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

func (r *RuleStore) saveApps(ctx context.Context, next ir.AppRuleSet) error {
	data, err := ir.EncodeAppRules(next)
	if err != nil {
		return fmt.Errorf("save app rules: %w", err)
	}
	if err := r.blobs.PutBlob(ctx, KeyDisabledApps, ir.DomainAppRules, data); err != nil {
		return fmt.Errorf("save app rules: %w", err)
	}
	r.apps = next
	return nil
}

func (r *RuleStore) saveBrowser(ctx context.Context, next ir.BrowserRuleSet) error {
	data, err := ir.EncodeBrowserRules(next)
	if err != nil {
		return fmt.Errorf("save browser rules: %w", err)
	}
	if err := r.blobs.PutBlob(ctx, KeyBrowserRules, ir.DomainBrowserRules, data); err != nil {
		return fmt.Errorf("save browser rules: %w", err)
	}
	r.browser = next
	return nil
}
