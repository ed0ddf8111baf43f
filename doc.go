// Package depresolve resolves a directed graph of module dependencies into a conflict-free
// selection of one component per module, and emits the selected graph's edges in consumer-first
// topological order.
//
// # Model
//
// A [ModuleID] identifies a module by group and name, independent of version.  A module has many
// known versions, each represented once the module is reached during traversal by a
// [ComponentState].  A [NodeState] is one configuration (variant) of a selected component
// participating in the graph; an [EdgeState] is a dependency arrow from a node to a target module,
// mediated by a [SelectorState] that carries a [VersionConstraint].
//
// # Algorithm
//
// [GraphBuilder.Resolve] seeds a work queue with the root module's node, then alternates between
// draining that queue (expanding newly-selected nodes into their outgoing edges, resolving each
// edge's selector to a candidate component, and choosing between the module's current selection and
// the candidate) and draining one batched module or capability conflict at a time once the queue is
// empty. When both are exhausted, the selected subgraph is walked once more and its edges are handed
// to a [DependencyGraphVisitor] in an order where every consumer of a component is visited before
// the component itself.
//
// This package does not fetch component metadata, does not cache anything to disk, and does not
// decide variant selection within a single component; those concerns live behind the
// [IdResolver], [MetadataResolver], and [AttributeMatcher] interfaces in external.go.
package depresolve
