// Package blueprint loads declarative graph definitions and compiles them
// onto an engine.Kernel.
//
// A blueprint names its nodes, their kinds and step pipelines, the edges
// between them, and optional triggers to fire after compilation. Steps are
// drawn from a fixed operator vocabulary over int64 values (see ops.go), so a
// blueprint is pure data and can be written in CUE or YAML:
//
//	name: "doubler"
//	nodes: {
//		in: {}
//		twice: {kind: "store", steps: [{op: "transform", fn: "mul", arg: 2}, {op: "emit"}]}
//	}
//	links: [{from: "in", to: "twice"}]
//	triggers: [{node: "in", value: 21}]
//
// Effect nodes (kind "effect") name a built-in handler instead of steps; their
// outcome events are addressable as "<name>.done" and "<name>.fail".
package blueprint
