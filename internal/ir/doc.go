// Package ir provides the rule data model for shiftrule.
//
// This package contains type definitions and their persisted encoding only.
// All other internal packages import ir; ir imports nothing internal. This
// keeps the rule model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - AppIdentifier is a closed tagged sum (Bundle | ExecutablePath), compared
//     structurally with ==
//   - Rule sets are Go maps keyed by the full rule struct
//   - Persisted blobs are RFC 8785 canonical JSON, one array per rule set
//   - All JSON tags use snake_case
//   - Logical clocks (seq) only, never wall-clock timestamps, for events
package ir
