package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/shiftrule/internal/ir"
)

// Scenario defines a conformance test scenario.
// Scenarios drive the engine through app switches, tab changes and setter
// calls, then assert on the events it emitted and the rules it kept.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Session is an optional fixed session token for deterministic traces.
	// If empty, defaults to "test-session".
	Session string `yaml:"session,omitempty"`

	// Browsers overrides the supported browser bundle identifiers.
	Browsers []string `yaml:"browsers,omitempty"`

	// Bundles lists CUE rule bundles imported before the steps run.
	// Paths are relative to the scenario file location.
	Bundles []string `yaml:"bundles,omitempty"`

	// Setup seeds rules before the steps run. Seeding emits no trace events.
	Setup *Setup `yaml:"setup,omitempty"`

	// Steps drive the engine in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Setup seeds rules inline.
type Setup struct {
	Apps       []AppRef          `yaml:"apps,omitempty"`
	Domains    []string          `yaml:"domains,omitempty"`
	Subdomains map[string]string `yaml:"subdomains,omitempty"`
}

// AppRef names an application. In YAML it is either a bare bundle
// identifier or a mapping with bundle and/or executable_path. An empty
// reference means no foreground application.
type AppRef struct {
	Bundle         string `yaml:"bundle,omitempty"`
	ExecutablePath string `yaml:"executable_path,omitempty"`
}

// UnmarshalYAML accepts the scalar shorthand.
func (a *AppRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		a.Bundle = value.Value
		return nil
	}

	type plain AppRef
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*a = AppRef(p)
	return nil
}

// IsZero reports whether a names no application.
func (a AppRef) IsZero() bool {
	return a.Bundle == "" && a.ExecutablePath == ""
}

// Step is one action. Exactly one field is set.
type Step struct {
	// SwitchApp brings an application to the front (app-switch notification).
	SwitchApp *AppRef `yaml:"switch_app,omitempty"`

	// Visit changes the active tab URL (tab-change notification).
	Visit *string `yaml:"visit,omitempty"`

	// Set calls one setter.
	Set *SetStep `yaml:"set,omitempty"`

	// Reset calls RemoveRulesForCurrentState.
	Reset bool `yaml:"reset,omitempty"`

	// Expect validates what this step did.
	Expect *StepExpect `yaml:"expect,omitempty"`
}

// SetStep calls exactly one setter.
type SetStep struct {
	App       *bool  `yaml:"app,omitempty"`
	Domain    *bool  `yaml:"domain,omitempty"`
	Subdomain string `yaml:"subdomain,omitempty"`
}

// StepExpect specifies the observable effect of a step.
type StepExpect struct {
	// Events is the exact ordered list of event kinds the step emitted.
	// An empty list asserts that nothing fired.
	Events []string `yaml:"events"`

	// Active, if set, is the expected decision after the step.
	Active *bool `yaml:"active,omitempty"`
}

// EventMatch matches a trace event. Empty fields match anything.
type EventMatch struct {
	Kind    string `yaml:"kind"`
	Scope   string `yaml:"scope,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "events_contains": an event matching Event appears in the trace
	// - "events_order": Events appear in order (not necessarily adjacent)
	// - "events_exact": the trace is exactly Events
	// - "event_count": events matching Event appear exactly Count times
	// - "decision": final decision and reactor state
	// - "rules": final rule sets, compared as sets
	// - "final_state": Query table and verify expected values
	Type string `yaml:"type"`

	// Event is the matcher (used by events_contains, event_count).
	Event *EventMatch `yaml:"event,omitempty"`

	// Events are the matchers (used by events_order, events_exact).
	Events []EventMatch `yaml:"events,omitempty"`

	// Count is the expected number of occurrences (used by event_count).
	Count int `yaml:"count,omitempty"`

	// Active and State are the expected final decision (used by decision).
	Active *bool  `yaml:"active,omitempty"`
	State  string `yaml:"state,omitempty"`

	// Apps and Browser are the expected rule sets (used by rules), written
	// as "kind:value" and "type:host".
	Apps    []string `yaml:"apps,omitempty"`
	Browser []string `yaml:"browser,omitempty"`

	// Table is the state table name (used by final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (used by final_state).
	// All fields must match exactly.
	Where map[string]interface{} `yaml:"where,omitempty"`

	// Expect contains expected field values (used by final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]interface{} `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertEventsContains = "events_contains"
	AssertEventsOrder    = "events_order"
	AssertEventsExact    = "events_exact"
	AssertEventCount     = "event_count"
	AssertDecision       = "decision"
	AssertRules          = "rules"
	AssertFinalState     = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Bundle paths are resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving bundle paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve bundle paths relative to base path BEFORE validation
	for i, bundlePath := range scenario.Bundles {
		if !filepath.IsAbs(bundlePath) && basePath != "" {
			scenario.Bundles[i] = filepath.Join(basePath, bundlePath)
		}
	}

	// Validate required fields (now with resolved paths)
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	// Validate bundle paths exist
	for _, bundlePath := range s.Bundles {
		if _, err := os.Stat(bundlePath); os.IsNotExist(err) {
			return fmt.Errorf("bundle file not found: %s", bundlePath)
		}
	}

	if s.Setup != nil {
		for host, raw := range s.Setup.Subdomains {
			if _, err := parseOverride(raw); err != nil {
				return fmt.Errorf("setup.subdomains.%s: %w", host, err)
			}
		}
	}

	// Validate steps
	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	// Validate assertions
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks that exactly one action is set.
func validateStep(index int, s *Step) error {
	actions := 0
	if s.SwitchApp != nil {
		actions++
	}
	if s.Visit != nil {
		actions++
	}
	if s.Set != nil {
		actions++
		if err := validateSet(s.Set); err != nil {
			return fmt.Errorf("steps[%d].set: %w", index, err)
		}
	}
	if s.Reset {
		actions++
	}

	if actions != 1 {
		return fmt.Errorf("steps[%d]: exactly one of switch_app, visit, set, reset is required (got %d)", index, actions)
	}

	if s.Expect != nil {
		for j, kind := range s.Expect.Events {
			if !validKind(kind) {
				return fmt.Errorf("steps[%d].expect.events[%d]: unknown event kind %q", index, j, kind)
			}
		}
	}

	return nil
}

func validateSet(s *SetStep) error {
	set := 0
	if s.App != nil {
		set++
	}
	if s.Domain != nil {
		set++
	}
	if s.Subdomain != "" {
		set++
		if _, err := ir.ParseSubdomainRuleType(s.Subdomain); err != nil {
			return err
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one of app, domain, subdomain is required (got %d)", set)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEventsContains, AssertEventCount:
		if a.Event == nil {
			return fmt.Errorf("assertions[%d]: event is required for %s", index, a.Type)
		}
		if err := validateMatch(*a.Event); err != nil {
			return fmt.Errorf("assertions[%d].event: %w", index, err)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertEventsOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for events_order", index)
		}
		fallthrough
	case AssertEventsExact:
		for j, m := range a.Events {
			if err := validateMatch(m); err != nil {
				return fmt.Errorf("assertions[%d].events[%d]: %w", index, j, err)
			}
		}
	case AssertDecision:
		if a.Active == nil && a.State == "" {
			return fmt.Errorf("assertions[%d]: active or state is required for decision", index)
		}
	case AssertRules:
		// Empty lists assert that no rules remain.
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func validateMatch(m EventMatch) error {
	if !validKind(m.Kind) {
		return fmt.Errorf("unknown event kind %q", m.Kind)
	}
	return nil
}

func validKind(kind string) bool {
	switch ir.EventKind(kind) {
	case ir.EventDisableActivated, ir.EventDisableDeactivated,
		ir.EventEnableActivated, ir.EventEnableDeactivated:
		return true
	}
	return false
}

// parseOverride parses a seeded subdomain override. None is not seedable.
func parseOverride(raw string) (ir.SubdomainRuleType, error) {
	v, err := ir.ParseSubdomainRuleType(raw)
	if err != nil {
		return "", err
	}
	if v == ir.SubdomainNone {
		return "", fmt.Errorf("override must be disabled or enabled")
	}
	return v, nil
}
