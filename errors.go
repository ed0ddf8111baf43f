package depresolve

import "fmt"

// An IdResolveFailure is recorded on an [EdgeState] when an [IdResolver] could not resolve that
// edge's selector to a component id (the resolver's own error is kept in
// [IdResolveResult.Failure]). It is not returned from performSelection; the edge simply carries it
// forward as a local, per-edge failure so that resolution of the rest of the graph continues.
type IdResolveFailure struct {
	Selector *SelectorState
	Err      error
}

func (f *IdResolveFailure) Error() string {
	return fmt.Sprintf("failed to resolve %v: %v", f.Selector, f.Err)
}

func (f *IdResolveFailure) Unwrap() error { return f.Err }

// A RejectedSelectionFailure is returned by [GraphBuilder.Resolve] when validateGraph finds a
// module whose selected component is marked rejected. It is fatal for the resolution as a whole.
type RejectedSelectionFailure struct {
	Module  ModuleID
	Version string
}

func (f *RejectedSelectionFailure) Error() string {
	return fmt.Sprintf("module %v: version %v was selected but is rejected by a selector's reject rule", f.Module, f.Version)
}

// A ConflictResolverFailure wraps an error returned from a pluggable [ModuleConflictResolver] or
// [CapabilitiesConflictResolver]. It is fatal and propagated verbatim.
type ConflictResolverFailure struct {
	Err error
}

func (f *ConflictResolverFailure) Error() string {
	return fmt.Sprintf("conflict resolver failed: %v", f.Err)
}

func (f *ConflictResolverFailure) Unwrap() error { return f.Err }

// A StrictVersionConflictFailure is returned by [GraphBuilder.Resolve] when a module's resolved
// selection falls outside the range accepted by one of its selectors marked Strictly. Unlike an
// ordinary rejected selection, a strict range can never be overridden by conflict resolution, so
// this aborts the traversal rather than merely marking the component rejected.
type StrictVersionConflictFailure struct {
	Module  ModuleID
	Version string
}

func (f *StrictVersionConflictFailure) Error() string {
	return fmt.Sprintf("module %v: version %v was selected but falls outside a strictly-scoped selector's range", f.Module, f.Version)
}

// A MetadataResolveFailure is recorded on an [EdgeState]/[ComponentState] pair when the parallel
// metadata-prefetch phase of resolveEdges fails for that component. It surfaces back into the
// single-threaded attachment phase rather than aborting the whole traversal.
type MetadataResolveFailure struct {
	Component ComponentID
	Err       error
}

func (f *MetadataResolveFailure) Error() string {
	return fmt.Sprintf("failed to resolve metadata for %v: %v", f.Component, f.Err)
}

func (f *MetadataResolveFailure) Unwrap() error { return f.Err }
