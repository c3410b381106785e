package compiler

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roach88/shiftrule/internal/browser"
	"github.com/roach88/shiftrule/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedType = "E100" // unsupported type for validation

	// App errors (E101-E109)
	ErrDuplicateApp     = "E101" // identifier listed twice
	ErrEmptyIdentifier  = "E102" // empty bundle or path
	ErrRelativeExecPath = "E103" // executable path is not absolute

	// Browser errors (E110-E119)
	ErrInvalidHost          = "E110" // empty host, or host with scheme/path/port
	ErrDuplicateHost        = "E111" // host listed twice in one section
	ErrOverrideWithoutScope = "E112" // enabled override whose domain is not disabled
	ErrNotRegistrable       = "E113" // domain rule for a host below the registrable domain
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidateOption configures Validate.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	domainDisabled func(domain string) bool
}

// WithDisabledDomains reports domains that are disabled outside the bundle,
// such as Domain rules already in the target database. Enabled overrides
// under them are valid.
func WithDisabledDomains(disabled func(domain string) bool) ValidateOption {
	return func(c *validateConfig) { c.domainDisabled = disabled }
}

// Validate validates a compiled bundle.
// Returns all errors found (does not fail-fast).
func Validate(v any, opts ...ValidateOption) []ValidationError {
	cfg := &validateConfig{domainDisabled: func(string) bool { return false }}
	for _, opt := range opts {
		opt(cfg)
	}

	switch b := v.(type) {
	case *Bundle:
		return validateBundle(b, cfg)
	case Bundle:
		return validateBundle(&b, cfg)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type: %T", v),
			Code:    ErrUnsupportedType,
		}}
	}
}

func validateBundle(b *Bundle, cfg *validateConfig) []ValidationError {
	var errs []ValidationError

	seenApps := make(map[ir.AppIdentifier]bool)
	for i, id := range b.Apps {
		field := fmt.Sprintf("apps[%d]", i)

		if strings.TrimSpace(id.Value()) == "" || id.Value() == "." {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s must be non-empty", id.Kind()),
				Code:    ErrEmptyIdentifier,
			})
			continue
		}

		if id.Kind() == ir.KindExecutablePath && !filepath.IsAbs(id.Value()) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("executable path %q must be absolute", id.Value()),
				Code:    ErrRelativeExecPath,
			})
		}

		if seenApps[id] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate app %q", id.Value()),
				Code:    ErrDuplicateApp,
			})
		}
		seenApps[id] = true
	}

	disabledDomains := make(map[string]bool)
	for i, host := range b.Domains {
		field := fmt.Sprintf("domains[%d]", i)
		if e, ok := validateHost(field, host); !ok {
			errs = append(errs, e)
			continue
		}
		if domain := browser.RegistrableDomain(host); domain != host {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%q is not a registrable domain, use %q or a subdomain rule", host, domain),
				Code:    ErrNotRegistrable,
			})
			continue
		}
		if disabledDomains[host] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate domain %q", host),
				Code:    ErrDuplicateHost,
			})
		}
		disabledDomains[host] = true
	}

	seenSubs := make(map[string]bool)
	for _, sub := range b.Subdomains {
		field := "subdomains." + sub.Host
		if e, ok := validateHost(field, sub.Host); !ok {
			errs = append(errs, e)
			continue
		}

		// Two labels that normalize to the same host.
		if seenSubs[sub.Host] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate subdomain %q", sub.Host),
				Code:    ErrDuplicateHost,
			})
		}
		seenSubs[sub.Host] = true

		if sub.Rule == ir.SubdomainEnabled {
			domain := browser.RegistrableDomain(sub.Host)
			if !disabledDomains[domain] && !cfg.domainDisabled(domain) {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("enabled override has no effect unless domain %q is disabled", domain),
					Code:    ErrOverrideWithoutScope,
				})
			}
		}
	}

	return errs
}

// validateHost rejects hosts that are empty or carry URL parts.
func validateHost(field, host string) (ValidationError, bool) {
	if host == "" {
		return ValidationError{Field: field, Message: "host must be non-empty", Code: ErrInvalidHost}, false
	}
	if strings.ContainsAny(host, "/:?#@ ") {
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("host %q must be a bare hostname without scheme, port or path", host),
			Code:    ErrInvalidHost,
		}, false
	}
	return ValidationError{}, true
}
