package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/shiftrule/internal/ir"
)

// Bundle is a declarative set of rules compiled from CUE.
//
// A bundle only ever adds rules. Importing one drives the same setters a
// user would, so every invariant the engine keeps for interactive changes
// also holds for imported ones.
type Bundle struct {
	Apps       []ir.AppIdentifier
	Domains    []string
	Subdomains []SubdomainRule
}

// SubdomainRule is one per-host override in a bundle.
type SubdomainRule struct {
	Host string
	Rule ir.SubdomainRuleType
}

// Len returns the number of rules in the bundle.
func (b *Bundle) Len() int {
	return len(b.Apps) + len(b.Domains) + len(b.Subdomains)
}

// CompileBundle parses a CUE value into a Bundle.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value holds up to three optional fields:
//
//	apps: [
//		"com.example.Game",                   // bundle shorthand
//		{bundle: "com.example.Editor"},
//		{executable_path: "/usr/local/bin/x"},
//	]
//	domains: ["example.com"]
//	subdomains: {
//		"docs.example.com": "enabled"
//		"ads.other.org":    "disabled"
//	}
func CompileBundle(v cue.Value) (*Bundle, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	b := &Bundle{}
	var err error

	b.Apps, err = parseApps(v)
	if err != nil {
		return nil, err
	}

	b.Domains, err = parseDomains(v)
	if err != nil {
		return nil, err
	}

	b.Subdomains, err = parseSubdomains(v)
	if err != nil {
		return nil, err
	}

	if b.Len() == 0 {
		return nil, &CompileError{
			Field:   "rules",
			Message: "bundle declares no apps, domains or subdomains",
			Pos:     v.Pos(),
		}
	}

	return b, nil
}

// parseApps extracts app identifiers.
func parseApps(v cue.Value) ([]ir.AppIdentifier, error) {
	appsVal := v.LookupPath(cue.ParsePath("apps"))
	if !appsVal.Exists() {
		return nil, nil
	}

	iter, err := appsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var apps []ir.AppIdentifier
	for i := 0; iter.Next(); i++ {
		id, err := parseApp(iter.Value(), i)
		if err != nil {
			return nil, err
		}
		apps = append(apps, id)
	}
	return apps, nil
}

// parseApp parses a single app entry.
// Supports a bare string (bundle identifier) or an object with exactly one
// of bundle or executable_path.
func parseApp(v cue.Value, i int) (ir.AppIdentifier, error) {
	field := fmt.Sprintf("apps[%d]", i)

	// Try as string first
	if s, err := v.String(); err == nil {
		return ir.Bundle(s), nil
	}

	bundleVal := v.LookupPath(cue.ParsePath("bundle"))
	pathVal := v.LookupPath(cue.ParsePath("executable_path"))

	switch {
	case bundleVal.Exists() && pathVal.Exists():
		return ir.AppIdentifier{}, &CompileError{
			Field:   field,
			Message: "set bundle or executable_path, not both",
			Pos:     v.Pos(),
		}
	case bundleVal.Exists():
		s, err := bundleVal.String()
		if err != nil {
			return ir.AppIdentifier{}, formatCUEError(err)
		}
		return ir.Bundle(s), nil
	case pathVal.Exists():
		s, err := pathVal.String()
		if err != nil {
			return ir.AppIdentifier{}, formatCUEError(err)
		}
		return ir.ExecutablePath(s), nil
	}

	return ir.AppIdentifier{}, &CompileError{
		Field:   field,
		Message: "must be a string or object with bundle or executable_path field",
		Pos:     v.Pos(),
	}
}

// parseDomains extracts disabled domains.
func parseDomains(v cue.Value) ([]string, error) {
	domainsVal := v.LookupPath(cue.ParsePath("domains"))
	if !domainsVal.Exists() {
		return nil, nil
	}

	iter, err := domainsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var domains []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		domains = append(domains, ir.NormalizeHost(s))
	}
	return domains, nil
}

// parseSubdomains extracts per-host overrides in declaration order.
func parseSubdomains(v cue.Value) ([]SubdomainRule, error) {
	subVal := v.LookupPath(cue.ParsePath("subdomains"))
	if !subVal.Exists() {
		return nil, nil
	}

	iter, err := subVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rules []SubdomainRule
	for iter.Next() {
		host := iter.Selector().Unquoted()
		raw, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		rule, err := ir.ParseSubdomainRuleType(raw)
		if err != nil || rule == ir.SubdomainNone {
			return nil, &CompileError{
				Field:   "subdomains." + host,
				Message: fmt.Sprintf("invalid override %q, must be \"disabled\" or \"enabled\"", raw),
				Pos:     iter.Value().Pos(),
			}
		}

		rules = append(rules, SubdomainRule{Host: ir.NormalizeHost(host), Rule: rule})
	}
	return rules, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
