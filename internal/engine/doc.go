// Package engine implements the shiftrule rule precedence engine.
//
// The engine decides whether the display feature must be suppressed for the
// current context. It combines three tiers:
//   - app: a rule for the foreground application always wins
//   - domain: a rule for the active tab's registrable domain
//   - subdomain: a per-host override, Enabled (punch a hole in a disabled
//     domain) or Disabled (force off under an enabled domain)
//
// ARCHITECTURE:
//
// Single Control Goroutine:
// Engine and Reactor hold no locks. Hosts deliver notifications through
// Loop, which queues them from any goroutine and dispatches them one at a
// time on the goroutine running Loop.Run.
//
// Event Flow:
//  1. Host posts an app-switch or tab-change notification to Loop
//  2. Loop runs the notification's Update hook, then calls the Reactor
//  3. Reactor (or a setter) reads the RuleStore and providers
//  4. Setters persist through the RuleStore before emitting
//  5. emit stamps the event with the Clock, records it, and calls the
//     FeatureResponder
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Events are stamped with a monotonic seq from Clock.Next().
// NEVER use wall-clock timestamps for ordering.
//
// Write Before Emit:
// A responder that re-queries the engine while handling an event observes
// storage that already reflects the change.
package engine
