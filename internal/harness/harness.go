package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/shiftrule/internal/browser"
	"github.com/roach88/shiftrule/internal/compiler"
	"github.com/roach88/shiftrule/internal/engine"
	"github.com/roach88/shiftrule/internal/identity"
	"github.com/roach88/shiftrule/internal/ir"
	"github.com/roach88/shiftrule/internal/store"
	"github.com/roach88/shiftrule/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and session token against
// the real engine, browser watcher and store.
type Harness struct {
	store   *store.Store
	engine  *engine.Engine
	loop    *engine.Loop
	apps    *testutil.FakeApps
	watcher *browser.Watcher
	logger  *slog.Logger

	result *Result
	step   int
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Import CUE bundles and inline setup rules (no trace events)
// 3. Initialize the engine on a notification loop
// 4. Execute steps, checking per-step expectations
// 5. Evaluate assertions and return the result
func Run(scenario *Scenario) (*Result, error) {
	// Create fresh in-memory SQLite database
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	rules := store.NewRuleStore(st, logger)
	rules.Load(ctx)
	if err := seed(ctx, rules, scenario, logger); err != nil {
		return nil, fmt.Errorf("failed to seed rules: %w", err)
	}

	apps := testutil.NewFakeApps()
	watcher := browser.NewWatcher(apps, scenario.Browsers, browser.WithLogger(logger))

	h := &Harness{
		store:   st,
		loop:    engine.NewLoop(logger),
		apps:    apps,
		watcher: watcher,
		logger:  logger,
		result:  NewResult(),
	}

	h.engine = engine.New(rules, apps, watcher,
		engine.ResponderFunc(func(ev ir.Event) { h.result.AddEvent(h.step, ev) }),
		engine.WithLogger(logger),
		engine.WithRecorder(st),
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithSessionGenerator(engine.NewFixedGenerator(scenarioSession(scenario))),
	)
	if err := h.engine.Initialize(ctx, h.loop); err != nil {
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer h.engine.Close()

	// Execute steps
	if err := h.executeSteps(ctx, scenario.Steps); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	h.result.Final = h.finalState()

	// Evaluate assertions against the result
	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(errMsg)
	}

	return h.result, nil
}

// defaultSession tags events of scenarios that do not pin a session.
const defaultSession = "test-session"

func scenarioSession(s *Scenario) string {
	if s.Session == "" {
		return defaultSession
	}
	return s.Session
}

// seed imports bundles and inline setup through the engine's setters.
func seed(ctx context.Context, rules *store.RuleStore, s *Scenario, logger *slog.Logger) error {
	for _, path := range s.Bundles {
		b, err := loadBundle(path)
		if err != nil {
			return err
		}
		if _, err := engine.Import(ctx, rules, b, engine.WithLogger(logger)); err != nil {
			return err
		}
	}

	if s.Setup == nil {
		return nil
	}

	b := &compiler.Bundle{Domains: s.Setup.Domains}
	for _, ref := range s.Setup.Apps {
		id, err := identity.Resolve(process(ref))
		if err != nil {
			return fmt.Errorf("setup app %+v: %w", ref, err)
		}
		b.Apps = append(b.Apps, id)
	}

	// Map order is random; sort hosts so imports are reproducible.
	hosts := make([]string, 0, len(s.Setup.Subdomains))
	for host := range s.Setup.Subdomains {
		hosts = append(hosts, host)
	}
	slices.Sort(hosts)
	for _, host := range hosts {
		v, err := parseOverride(s.Setup.Subdomains[host])
		if err != nil {
			return fmt.Errorf("setup subdomain %s: %w", host, err)
		}
		b.Subdomains = append(b.Subdomains, compiler.SubdomainRule{Host: ir.NormalizeHost(host), Rule: v})
	}

	if b.Len() == 0 {
		return nil
	}
	_, err := engine.Import(ctx, rules, b, engine.WithLogger(logger))
	return err
}

// loadBundle compiles a single CUE bundle file.
func loadBundle(path string) (*compiler.Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}

	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	b, err := compiler.CompileBundle(v)
	if err != nil {
		return nil, fmt.Errorf("compile bundle %s: %w", path, err)
	}
	if errs := compiler.Validate(b); len(errs) > 0 {
		return nil, fmt.Errorf("validate bundle %s: %w", path, errs[0])
	}
	return b, nil
}

// executeSteps runs all steps and checks per-step expectations.
//
// Notifications go through the loop and are drained immediately, so each
// step's events are attributed to it.
func (h *Harness) executeSteps(ctx context.Context, steps []Step) error {
	for i, step := range steps {
		h.step = i + 1
		before := len(h.result.Trace)

		if err := h.executeStep(ctx, step); err != nil {
			return fmt.Errorf("step %d: %w", h.step, err)
		}

		emitted := h.result.Trace[before:]
		if step.Expect != nil {
			h.checkExpect(step.Expect, emitted)
		}

		h.logger.Info("step completed",
			"step", h.step,
			"events", len(emitted),
			"state", h.engine.Reactor().State().String(),
		)
	}
	return nil
}

func (h *Harness) executeStep(ctx context.Context, step Step) error {
	switch {
	case step.SwitchApp != nil:
		ref := *step.SwitchApp
		h.loop.AppSwitched(func() {
			if ref.IsZero() {
				h.apps.Clear()
				return
			}
			h.apps.SetForeground(process(ref))
		})
		h.loop.Drain(ctx)

	case step.Visit != nil:
		var urlErr error
		url := *step.Visit
		h.loop.TabChanged(func() {
			urlErr = h.watcher.SetActiveURL(url)
		})
		h.loop.Drain(ctx)
		if urlErr != nil {
			return urlErr
		}

	case step.Set != nil:
		h.executeSet(ctx, step.Set)

	case step.Reset:
		h.engine.RemoveRulesForCurrentState(ctx)
	}
	return nil
}

func (h *Harness) executeSet(ctx context.Context, s *SetStep) {
	switch {
	case s.App != nil:
		h.engine.SetDisabledForApp(ctx, *s.App)
	case s.Domain != nil:
		h.engine.SetDisabledForDomain(ctx, *s.Domain)
	default:
		// Validated by LoadScenario; the zero value is a no-op.
		v, _ := ir.ParseSubdomainRuleType(s.Subdomain)
		h.engine.SetRuleForSubdomain(ctx, v)
	}
}

func (h *Harness) checkExpect(expect *StepExpect, emitted []TraceEvent) {
	got := make([]string, len(emitted))
	for i, ev := range emitted {
		got[i] = ev.Kind
	}
	want := expect.Events
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(got, want) {
		h.result.AddError(fmt.Sprintf("step %d: expected events %v, got %v", h.step, want, got))
	}

	if expect.Active != nil {
		if active := h.engine.DisableRuleIsActive(); active != *expect.Active {
			h.result.AddError(fmt.Sprintf("step %d: expected active=%t, got %t", h.step, *expect.Active, active))
		}
	}
}

func (h *Harness) finalState() FinalState {
	rules := h.engine.Rules()

	final := FinalState{
		Active:  h.engine.DisableRuleIsActive(),
		State:   h.engine.Reactor().State().String(),
		Apps:    []string{},
		Browser: []string{},
	}
	for _, r := range rules.AppRules().Sorted() {
		final.Apps = append(final.Apps, appRuleString(r))
	}
	for _, r := range rules.BrowserRules().Sorted() {
		final.Browser = append(final.Browser, browserRuleString(r))
	}
	return final
}

func process(ref AppRef) identity.Process {
	return identity.Process{BundleID: ref.Bundle, ExecutablePath: ref.ExecutablePath}
}
