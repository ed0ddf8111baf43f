package depresolve

import "context"

// ComponentMetadata is opaque component metadata as resolved by a [MetadataResolver]. The core
// never inspects it beyond passing it to an [AttributeMatcher] and caching it on a [ComponentState].
type ComponentMetadata any

// ComponentResolveContext is whatever a caller needs to identify "the root module" to a
// [ContextResolver]; the core treats it as opaque.
type ComponentResolveContext any

// Capability is a (group, name) co-provision declared by a component. Two selected components from
// different modules that declare the same capability conflict and must be resolved down to one.
type Capability struct {
	Group string
	Name  string
}

// IdResolveResult is the outcome of asking an [IdResolver] to resolve one [SelectorState]'s
// declared selector to a concrete component.
type IdResolveResult struct {
	ID       ComponentID
	MVI      ModuleVersionID
	Metadata ComponentMetadata
	Failure  error
}

// IdResolver resolves a declared selector (version constraint + component selector) to a concrete
// component id. Modeling the actual network or filesystem call to a remote repository is out of
// scope here; callers supply their own implementation.
type IdResolver interface {
	Resolve(ctx context.Context, s *SelectorState) IdResolveResult
}

// MetadataResolver fetches and caches a resolved component's full metadata, and reports whether
// doing so is cheap enough to be done serially rather than handed to the parallel prefetch phase.
type MetadataResolver interface {
	IsFetchingMetadataCheap(id ComponentID) bool
	Resolve(ctx context.Context, id ComponentID) (ComponentMetadata, error)
}

// ComponentResolveResult is the outcome of resolving the root module via a [ContextResolver].
type ComponentResolveResult struct {
	ID       ComponentID
	MVI      ModuleVersionID
	Metadata ComponentMetadata
}

// ContextResolver resolves a resolve-context value (conventionally identifying the root module) to
// its component.
type ContextResolver interface {
	Resolve(ctx context.Context, rc ComponentResolveContext) (ComponentResolveResult, error)
}

// AttributeMatcher picks the configurations (variants) on a target component that a given edge
// should attach to. Attribute/variant matching within a single component is explicitly out of
// scope for the core algorithm; this interface is the seam a caller plugs that logic into.
type AttributeMatcher interface {
	MatchConfigurations(edge *EdgeState, target *ComponentState) ([]ConfigurationDescriptor, error)
}

// ConfigurationDescriptor identifies one configuration (variant) of a component. The core treats
// it as opaque beyond using it as a [NodeState] map key.
type ConfigurationDescriptor any

// DependencyDeclaring is the seam through which a component's resolved [ComponentMetadata] tells
// the traversal what it depends on. A [MetadataResolver] that wants its components to have
// dependencies at all must return metadata implementing this interface; metadata that doesn't is
// treated as a leaf with no outgoing edges.
type DependencyDeclaring interface {
	Dependencies(config ConfigurationDescriptor) []DependencyDeclaration

	// Capabilities returns the capabilities this configuration declares providing, feeding the
	// capability conflict handler.
	Capabilities(config ConfigurationDescriptor) []Capability
}

// PendingDependenciesHandler gates optional/pending dependencies before they become edges at all.
// The default used when none is supplied never defers anything.
type PendingDependenciesHandler interface {
	// ShouldDefer reports whether dep should be held back rather than turned into an edge
	// immediately, given the dependencies of node already visited so far.
	ShouldDefer(node *NodeState, dep DependencyDeclaration) bool
}

// ModuleReplacementsData maps a module id to the id of a module that should be used in its place,
// modeling Gradle-style module replacements.
type ModuleReplacementsData interface {
	ReplacementFor(id ModuleID) (ModuleID, bool)
}

// DependencySubstitutionApplicator rewrites a dependency declaration before it is resolved, e.g. to
// redirect one module's requirement onto a fork.
type DependencySubstitutionApplicator interface {
	Apply(dep DependencyDeclaration) DependencyDeclaration
}

// DependencyDeclaration is the as-declared (group, name, [VersionConstraint]) triple of one
// dependency. An edge is constructed from it after any substitution has been applied.
type DependencyDeclaration struct {
	Target     ModuleID
	Constraint VersionConstraint
}

// EdgeFilter drops edges up front, before they are ever resolved.
type EdgeFilter interface {
	Accept(dep DependencyDeclaration) bool
}

// BuildOperationQueue is a bounded parallel executor used for the metadata-prefetch phase of
// resolveEdges. Tasks implement Run; the producer function is invoked once to enqueue all of them,
// and RunAll blocks until every enqueued task has completed or one has failed.
type BuildOperationQueue interface {
	RunAll(ctx context.Context, produce func(enqueue func(task func(context.Context) error))) error
}

// DependencyGraphVisitor is the output sink for [GraphBuilder.Resolve]'s result assembly.
type DependencyGraphVisitor interface {
	Start(root *NodeState)
	VisitSelector(s *SelectorState)
	VisitNode(n *NodeState)
	VisitEdges(n *NodeState)
	Finish(root *NodeState)
}
