package depresolve

import (
	"context"
	"fmt"
)

// GraphBuilder wires together every external collaborator a resolution needs into a single
// Resolve entry point, mirroring the constructor-and-resolve shape of DependencyGraphBuilder. One
// GraphBuilder may be reused across many independent calls to Resolve; each call constructs and
// discards its own [ResolveState], so no state leaks between unrelated resolutions.
type GraphBuilder struct {
	IDResolver       IdResolver
	MetadataResolver MetadataResolver
	ContextResolver  ContextResolver
	AttributeMatcher AttributeMatcher

	ModuleConflictResolver       ModuleConflictResolver
	CapabilitiesConflictResolver CapabilitiesConflictResolver

	ModuleReplacements  ModuleReplacementsData
	Substitutions       DependencySubstitutionApplicator
	EdgeFilter          EdgeFilter
	PendingDependencies PendingDependenciesHandler
	Queue               BuildOperationQueue

	Logger *resolveLogger
}

// Resolve runs one full traversal starting from rootCtx, emitting the assembled result to visitor.
// It returns the first fatal error encountered: an error resolving the root or its metadata, a
// [ConflictResolverFailure] from either conflict resolver, a [StrictVersionConflictFailure], a
// [MetadataResolveFailure] for a newly selected component whose metadata could not be fetched
// before attachment, a [RejectedSelectionFailure] from validateGraph, or a context cancellation.
func (gb *GraphBuilder) Resolve(ctx context.Context, rootCtx ComponentResolveContext, visitor DependencyGraphVisitor) error {
	if gb.AttributeMatcher == nil {
		return fmt.Errorf("depresolve: GraphBuilder.AttributeMatcher must not be nil")
	}
	rootResult, err := gb.ContextResolver.Resolve(ctx, rootCtx)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}

	rs := NewResolveState(gb.ModuleConflictResolver, gb.CapabilitiesConflictResolver, gb.ModuleReplacements)
	rootModule := rs.GetModule(rootResult.MVI.ModuleID)
	rootComponent := rootModule.GetOrCreateComponent(rootResult.MVI.Version, rootResult.ID, rootResult.Metadata)
	rootComponent.SetRoot()
	rootModule.ApplySelection(rootComponent)

	if !rootComponent.AlreadyResolved() {
		md, err := gb.MetadataResolver.Resolve(ctx, rootComponent.ID())
		if err != nil {
			return fmt.Errorf("resolving root metadata: %w", err)
		}
		rootComponent.SetMetadata(md)
	}

	rootNode := findOrCreateNode(rootComponent, nil)
	rs.SetRoot(rootNode)

	t := &traversal{gb: gb, rs: rs, log: gb.logger()}
	if err := t.run(ctx); err != nil {
		return err
	}
	if err := t.validateGraph(); err != nil {
		return err
	}
	return assembleResult(rs, visitor)
}

func (gb *GraphBuilder) logger() *resolveLogger {
	if gb.Logger != nil {
		return gb.Logger
	}
	return defaultLogger()
}
