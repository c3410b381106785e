package ir

import (
	"fmt"
	"path/filepath"

	"golang.org/x/text/unicode/norm"
)

// IdentifierKind tags the variant held by an AppIdentifier.
type IdentifierKind int

const (
	// KindBundle is a bundle-style identifier such as "com.apple.Safari".
	KindBundle IdentifierKind = iota + 1
	// KindExecutablePath is the absolute path of the process executable.
	KindExecutablePath
)

// field returns the JSON field that tags the variant in persisted blobs.
func (k IdentifierKind) field() string {
	switch k {
	case KindBundle:
		return "bundle"
	case KindExecutablePath:
		return "executable_path"
	default:
		return ""
	}
}

func (k IdentifierKind) String() string {
	switch k {
	case KindBundle:
		return "bundle"
	case KindExecutablePath:
		return "executable_path"
	default:
		return fmt.Sprintf("IdentifierKind(%d)", int(k))
	}
}

// identifierDecodeOrder is the fixed trial order used when decoding a
// persisted identifier. The first variant that parses wins.
var identifierDecodeOrder = []IdentifierKind{KindBundle, KindExecutablePath}

// AppIdentifier is the stable identity of an application.
//
// It is either Bundle(string) or ExecutablePath(string). The zero value is
// invalid. Values are comparable: two identifiers are equal only when both the
// variant and the payload match, so a bundle and a path that denote the same
// process are never equal.
type AppIdentifier struct {
	kind  IdentifierKind
	value string
}

// Bundle returns a bundle-style identifier.
func Bundle(id string) AppIdentifier {
	return AppIdentifier{kind: KindBundle, value: norm.NFC.String(id)}
}

// ExecutablePath returns an executable-path identifier. The path is cleaned.
func ExecutablePath(path string) AppIdentifier {
	return AppIdentifier{kind: KindExecutablePath, value: norm.NFC.String(filepath.Clean(path))}
}

// Kind returns the variant tag.
func (id AppIdentifier) Kind() IdentifierKind { return id.kind }

// Value returns the variant payload.
func (id AppIdentifier) Value() string { return id.value }

// IsZero reports whether id holds no variant.
func (id AppIdentifier) IsZero() bool { return id.kind == 0 }

func (id AppIdentifier) String() string {
	return id.value
}

// AppRule disables the feature while the identified application is in front.
//
// Set membership compares both fields; disable-state lookups compare the
// identifier only (see AppRuleSet.ContainsIdentifier).
type AppRule struct {
	Identifier     AppIdentifier `json:"identifier"`
	FullScreenOnly bool          `json:"full_screen_only"`
}

func (r AppRule) String() string {
	return fmt.Sprintf("Rule for %s; full screen only: %t", r.Identifier, r.FullScreenOnly)
}

// RuleType is the kind of a BrowserRule.
type RuleType string

const (
	// RuleDomain disables the feature for every page of a registrable domain.
	RuleDomain RuleType = "domain"
	// RuleSubdomainDisabled forces the feature off for one host.
	RuleSubdomainDisabled RuleType = "subdomain_disabled"
	// RuleSubdomainEnabled forces the feature on for one host under a disabled domain.
	RuleSubdomainEnabled RuleType = "subdomain_enabled"
)

// Valid reports whether t is a known rule type.
func (t RuleType) Valid() bool {
	switch t {
	case RuleDomain, RuleSubdomainDisabled, RuleSubdomainEnabled:
		return true
	}
	return false
}

// BrowserRule is a rule scoped to a browser host.
type BrowserRule struct {
	Type RuleType `json:"type"`
	Host string   `json:"host"`
}

// NewBrowserRule builds a rule with a normalized host.
func NewBrowserRule(t RuleType, host string) BrowserRule {
	return BrowserRule{Type: t, Host: NormalizeHost(host)}
}

func (r BrowserRule) String() string {
	return fmt.Sprintf("Rule type: %s for host: %s", r.Type, r.Host)
}

// SubdomainRuleType is the tri-state override for the active subdomain.
// It is never stored; it is derived from rule rows and live domain state.
type SubdomainRuleType string

const (
	// SubdomainNone inherits the domain state.
	SubdomainNone SubdomainRuleType = "none"
	// SubdomainDisabled forces the feature off.
	SubdomainDisabled SubdomainRuleType = "disabled"
	// SubdomainEnabled forces the feature on; meaningful only under a disabled domain.
	SubdomainEnabled SubdomainRuleType = "enabled"
)

// ParseSubdomainRuleType parses "none", "disabled" or "enabled".
func ParseSubdomainRuleType(s string) (SubdomainRuleType, error) {
	switch v := SubdomainRuleType(s); v {
	case SubdomainNone, SubdomainDisabled, SubdomainEnabled:
		return v, nil
	}
	return "", fmt.Errorf("unknown subdomain rule %q: must be one of none, disabled, enabled", s)
}

// EventKind is the signal delivered to the feature responder.
type EventKind string

const (
	EventDisableActivated   EventKind = "disable_activated"
	EventDisableDeactivated EventKind = "disable_deactivated"
	EventEnableActivated    EventKind = "enable_activated"
	EventEnableDeactivated  EventKind = "enable_deactivated"
)

// Scope names the tier that raised an event.
type Scope string

const (
	ScopeApp       Scope = "app"
	ScopeDomain    Scope = "domain"
	ScopeSubdomain Scope = "subdomain"
	// ScopeSwitch marks events re-asserted by the app-switch reactor.
	ScopeSwitch Scope = "switch"
	// ScopeBrowser marks events raised by browser-context re-evaluation.
	ScopeBrowser Scope = "browser"
)

// Event is one responder signal, stamped with a logical clock.
type Event struct {
	Seq     int64     `json:"seq"`
	Kind    EventKind `json:"kind"`
	Scope   Scope     `json:"scope"`
	Subject string    `json:"subject,omitempty"` // identifier or host the event concerns
	Session string    `json:"session,omitempty"`
}
