package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shiftrule/internal/ir"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateBundleValid(t *testing.T) {
	b := &Bundle{
		Apps:    []ir.AppIdentifier{ir.Bundle("com.example.Game"), ir.ExecutablePath("/usr/bin/tool")},
		Domains: []string{"example.com"},
		Subdomains: []SubdomainRule{
			{Host: "docs.example.com", Rule: ir.SubdomainEnabled},
			{Host: "ads.other.org", Rule: ir.SubdomainDisabled},
		},
	}

	assert.Empty(t, Validate(b), "valid bundle should have no errors")
	assert.Empty(t, Validate(*b), "value form should validate the same")
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate("nope")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedType, errs[0].Code)
}

func TestValidateApps(t *testing.T) {
	b := &Bundle{Apps: []ir.AppIdentifier{
		ir.Bundle("com.example.Game"),
		ir.Bundle("com.example.Game"),
		ir.Bundle("  "),
		ir.ExecutablePath("bin/tool"),
	}}

	errs := Validate(b)
	assert.Equal(t, []string{ErrDuplicateApp, ErrEmptyIdentifier, ErrRelativeExecPath}, codes(errs))
	assert.Equal(t, "apps[1]", errs[0].Field)
}

func TestValidateHosts(t *testing.T) {
	b := &Bundle{
		Domains: []string{"example.com", "example.com", "https://x.com", ""},
		Subdomains: []SubdomainRule{
			{Host: "a.b.com:8080", Rule: ir.SubdomainDisabled},
		},
	}

	assert.Equal(t,
		[]string{ErrDuplicateHost, ErrInvalidHost, ErrInvalidHost, ErrInvalidHost},
		codes(Validate(b)))
}

func TestValidateEnabledOverrideNeedsDisabledDomain(t *testing.T) {
	b := &Bundle{
		Subdomains: []SubdomainRule{{Host: "docs.example.com", Rule: ir.SubdomainEnabled}},
	}

	errs := Validate(b)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrOverrideWithoutScope, errs[0].Code)
	assert.Contains(t, errs[0].Message, `"example.com"`)
}

func TestValidateEnabledOverrideUnderExistingDomain(t *testing.T) {
	b := &Bundle{
		Subdomains: []SubdomainRule{{Host: "docs.example.com", Rule: ir.SubdomainEnabled}},
	}
	disabled := func(domain string) bool { return domain == "example.com" }

	assert.Empty(t, Validate(b, WithDisabledDomains(disabled)))

	b.Subdomains[0].Host = "docs.other.org"
	assert.Equal(t, []string{ErrOverrideWithoutScope}, codes(Validate(b, WithDisabledDomains(disabled))))
}

func TestValidateDomainsMustBeRegistrable(t *testing.T) {
	b := &Bundle{
		Domains: []string{"www.example.com", "example.co.uk", "a.b.example.co.uk", "localhost", "127.0.0.1"},
	}

	errs := Validate(b)
	assert.Equal(t, []string{ErrNotRegistrable, ErrNotRegistrable}, codes(errs))
	assert.Equal(t, "domains[0]", errs[0].Field)
	assert.Contains(t, errs[0].Message, `use "example.com"`)
	assert.Equal(t, "domains[2]", errs[1].Field)
	assert.Contains(t, errs[1].Message, `use "example.co.uk"`)
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "domains[0]", Message: "bad", Code: ErrInvalidHost}
	assert.Equal(t, "[E110] domains[0]: bad", e.Error())

	e.Line = 3
	assert.Equal(t, "[E110] line 3: domains[0]: bad", e.Error())
}
