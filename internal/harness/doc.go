// Package harness runs blueprint scenarios as executable contract tests.
//
// A scenario names a blueprint, the triggers to fire and assertions over
// what happened. Each run gets a fresh kernel, a fresh logical clock,
// sequence trigger ids and an in-memory trace store, so the same scenario
// always produces the same trace.
//
// # Scenario Format
//
//	name: feedback_converges
//	description: "A filtered feedback loop settles within the bound"
//	blueprint: ../blueprints/feedback.yaml
//	settings:
//	  max_reentry: 3
//	triggers:
//	  - {node: a, value: 0}
//	watch: [a, d]
//	assertions:
//	  - type: observed
//	    node: a
//	    values: [0, 1, 2]
//	  - type: execution_order
//	    pass: 0
//	    nodes: [a, b, c, a, d, b, c, a, b, c]
//	  - type: error_count
//	    count: 0
//
// The blueprint path is relative to the scenario file. Triggers default to
// the blueprint's own; watch defaults to every node.
//
// # Assertion Types
//
//   - observed: the values a node's watcher saw, in order
//   - not_observed: a node's watcher saw nothing
//   - execution_order: the nodes one pass executed, in order
//   - execution_count: how often a node executed across the run
//   - error_count: reported errors, optionally of one code
//   - aborted: whether a pass was aborted
//   - final_value: a node's local value at the end of the run
//   - stored_passes: passes written to the trace store
//
// Passes are numbered in the order they ran, effect outcome passes
// included. Values compare by canonical JSON, so 2 and 2.0 are equal.
//
// # Golden Traces
//
// RunWithGolden compares the run's trace with testdata/golden/<name>.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
