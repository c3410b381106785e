package ir

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeHost lowercases, NFC-normalizes and strips the trailing root dot
// from a host so equal hosts produce equal rules.
func NormalizeHost(host string) string {
	h := strings.TrimSpace(host)
	h = strings.TrimSuffix(h, ".")
	return norm.NFC.String(strings.ToLower(h))
}

// AppRuleSet is a set of app rules keyed by both fields.
type AppRuleSet map[AppRule]struct{}

// NewAppRuleSet returns a set holding rules.
func NewAppRuleSet(rules ...AppRule) AppRuleSet {
	s := make(AppRuleSet, len(rules))
	for _, r := range rules {
		s[r] = struct{}{}
	}
	return s
}

// Insert adds r and reports whether the set changed.
func (s AppRuleSet) Insert(r AppRule) bool {
	if _, ok := s[r]; ok {
		return false
	}
	s[r] = struct{}{}
	return true
}

// Contains reports exact membership.
func (s AppRuleSet) Contains(r AppRule) bool {
	_, ok := s[r]
	return ok
}

// ContainsIdentifier reports whether any rule matches id, ignoring FullScreenOnly.
func (s AppRuleSet) ContainsIdentifier(id AppIdentifier) bool {
	for r := range s {
		if r.Identifier == id {
			return true
		}
	}
	return false
}

// WithoutIdentifier returns a copy of s minus every rule matching id.
func (s AppRuleSet) WithoutIdentifier(id AppIdentifier) AppRuleSet {
	out := make(AppRuleSet, len(s))
	for r := range s {
		if r.Identifier != id {
			out[r] = struct{}{}
		}
	}
	return out
}

// Clone returns a shallow copy.
func (s AppRuleSet) Clone() AppRuleSet {
	out := make(AppRuleSet, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}

// Sorted returns the rules in a deterministic order.
func (s AppRuleSet) Sorted() []AppRule {
	rules := make([]AppRule, 0, len(s))
	for r := range s {
		rules = append(rules, r)
	}
	slices.SortFunc(rules, func(a, b AppRule) int {
		if c := cmp.Compare(a.Identifier.kind, b.Identifier.kind); c != 0 {
			return c
		}
		if c := strings.Compare(a.Identifier.value, b.Identifier.value); c != 0 {
			return c
		}
		return cmpBool(a.FullScreenOnly, b.FullScreenOnly)
	})
	return rules
}

// BrowserRuleSet is a set of browser rules keyed by (Type, Host).
type BrowserRuleSet map[BrowserRule]struct{}

// NewBrowserRuleSet returns a set holding rules.
func NewBrowserRuleSet(rules ...BrowserRule) BrowserRuleSet {
	s := make(BrowserRuleSet, len(rules))
	for _, r := range rules {
		s[r] = struct{}{}
	}
	return s
}

// Insert adds r and reports whether the set changed.
func (s BrowserRuleSet) Insert(r BrowserRule) bool {
	if _, ok := s[r]; ok {
		return false
	}
	s[r] = struct{}{}
	return true
}

// Remove deletes r and reports whether the set changed.
func (s BrowserRuleSet) Remove(r BrowserRule) bool {
	if _, ok := s[r]; !ok {
		return false
	}
	delete(s, r)
	return true
}

// Contains reports membership.
func (s BrowserRuleSet) Contains(r BrowserRule) bool {
	_, ok := s[r]
	return ok
}

// Clone returns a shallow copy.
func (s BrowserRuleSet) Clone() BrowserRuleSet {
	out := make(BrowserRuleSet, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}

// ForHost returns the rules for host in deterministic order.
func (s BrowserRuleSet) ForHost(host string) []BrowserRule {
	host = NormalizeHost(host)
	var rules []BrowserRule
	for _, r := range s.Sorted() {
		if r.Host == host {
			rules = append(rules, r)
		}
	}
	return rules
}

// Sorted returns the rules ordered by host, then type.
func (s BrowserRuleSet) Sorted() []BrowserRule {
	rules := make([]BrowserRule, 0, len(s))
	for r := range s {
		rules = append(rules, r)
	}
	slices.SortFunc(rules, func(a, b BrowserRule) int {
		if c := strings.Compare(a.Host, b.Host); c != 0 {
			return c
		}
		return strings.Compare(string(a.Type), string(b.Type))
	})
	return rules
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}
