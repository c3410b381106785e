// Package harness runs rule scenarios against the real engine.
//
// A scenario seeds rules, then drives the engine through foreground
// changes, tab changes and rule edits. Every emitted event is captured into
// a trace, which is checked against per-step expectations, assertions and
// optionally a golden snapshot.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	session: fixed-session-id
//	browsers: [com.example.Browser]
//	bundles:
//	  - ../bundles/work.cue
//	setup:
//	  apps: [com.example.Game, {executable_path: /usr/bin/tool}]
//	  domains: [example.com]
//	  subdomains: {docs.example.com: enabled}
//	steps:
//	  - switch_app: com.example.Game
//	    expect: {events: [disable_activated], active: true}
//	  - switch_app: com.example.Browser
//	  - visit: https://docs.example.com/page
//	  - set: {domain: false}
//	  - reset: true
//	assertions:
//	  - type: events_contains
//	    event: {kind: enable_activated, scope: browser}
//	  - type: decision
//	    active: false
//	    state: browser_watching
//	  - type: final_state
//	    table: events
//	    where: {session: fixed-session-id, seq: 1}
//	    expect: {kind: disable_activated, scope: switch}
//
// # Assertion Types
//
//   - events_contains: some event matches
//   - events_order: the matchers are satisfied in order, gaps allowed
//   - events_exact: the trace is exactly the matchers
//   - event_count: exactly count events match
//   - decision: the final decision and reactor state
//   - rules: the final rule sets, order ignored
//   - final_state: queries a store table and checks a subset of columns
//
// # Deterministic Testing
//
// Every scenario runs with a fresh in-memory SQLite database, a
// deterministic logical clock and a fixed session id, so traces are
// identical across runs and suitable for golden snapshot comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/browser_override.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
