package depresolve

import (
	"context"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// A ModuleConflictResolver picks one winner from two or more candidate versions of the same
// module. [ModuleConflictHandler.ResolveNextConflict] passes every known version sorted ascending
// by [CompareVersions]; the traversal's inline chooseBest passes exactly two, the current selection
// followed by the new candidate, in that order whatever their versions.
type ModuleConflictResolver interface {
	Resolve(ctx context.Context, module ModuleID, candidates []*ComponentState) (*ComponentState, error)
}

// A CapabilitiesConflictResolver picks one winner among components from different modules that
// declare the same capability.
type CapabilitiesConflictResolver interface {
	Resolve(ctx context.Context, capability string, candidates []*ComponentState) (*ComponentState, error)
}

// ModuleConflictHandler tracks every module with more than one version currently requested and
// drains them one at a time, matching DependencyGraphBuilder's moduleConflictHandler collaborator.
type ModuleConflictHandler struct {
	resolver     ModuleConflictResolver
	replacements ModuleReplacementsData
	queue        []*ModuleResolveState
	queued       mapset.Set[*ModuleResolveState]
}

// NewModuleConflictHandler constructs a handler around resolver, consulting replacements (which
// may be nil) to additionally treat a module replaced by another already-selected module as a
// conflict. A nil resolver defaults to [HighestVersionResolver].
func NewModuleConflictHandler(resolver ModuleConflictResolver, replacements ModuleReplacementsData) *ModuleConflictHandler {
	if resolver == nil {
		resolver = HighestVersionResolver{}
	}
	return &ModuleConflictHandler{resolver: resolver, replacements: replacements, queued: mapset.NewThreadUnsafeSet[*ModuleResolveState]()}
}

// RegisterCandidate re-evaluates whether m now has a conflict and, if so and it is not already
// queued, enqueues it. A conflict is either the ordinary case (more than one distinct version
// known) or a module replacement: m has a configured replacement target that is itself already
// selected, so m's own selection must give way to it. Mirrors moduleHasConflicts plus
// registerCandidate from DependencyGraphBuilder.
func (h *ModuleConflictHandler) RegisterCandidate(m *ModuleResolveState) {
	if !h.hasConflict(m) {
		return
	}
	if h.queued.Add(m) {
		h.queue = append(h.queue, m)
	}
}

func (h *ModuleConflictHandler) hasConflict(m *ModuleResolveState) bool {
	if len(m.versionOrder) >= 2 {
		return true
	}
	if h.replacements == nil {
		return false
	}
	target, ok := h.replacements.ReplacementFor(m.id)
	if !ok {
		return false
	}
	rep, exists := m.resolveState.LookupModule(target)
	return exists && rep.Selected() != nil
}

// HasConflicts reports whether any module conflict remains to be resolved.
func (h *ModuleConflictHandler) HasConflicts() bool { return len(h.queue) > 0 }

// IsQueued reports whether m currently has an unresolved conflict pending, the moduleHasConflicts
// check performSelection consults before deciding to attach a new selection immediately.
func (h *ModuleConflictHandler) IsQueued(m *ModuleResolveState) bool { return h.queued.Contains(m) }

// ResolveNextConflict pops the oldest-queued module conflict and resolves it. For an ordinary
// version conflict it returns the module and the component the resolver chose, with replaced
// false; the caller applies the decision via [ModuleResolveState.ApplySelection] and enqueues any
// newly-selected nodes. For a module-replacement conflict it returns the replacement target's
// already-selected component with replaced true; the caller must redirect m's edges onto it
// instead of giving m a selection of its own, since a replaced module never has a selected
// component in the final graph.
func (h *ModuleConflictHandler) ResolveNextConflict(ctx context.Context) (m *ModuleResolveState, chosen *ComponentState, replaced bool, err error) {
	m = h.queue[0]
	h.queue = h.queue[1:]
	h.queued.Remove(m)

	if h.replacements != nil {
		if target, ok := h.replacements.ReplacementFor(m.id); ok {
			if rep, exists := m.resolveState.LookupModule(target); exists && rep.Selected() != nil {
				return m, rep.Selected(), true, nil
			}
		}
	}

	candidates := m.Versions()
	sort.Slice(candidates, func(i, j int) bool {
		return CompareVersions(candidates[i].Version(), candidates[j].Version()) < 0
	})

	chosen, err = h.resolver.Resolve(ctx, m.id, candidates)
	if err != nil {
		return m, nil, false, &ConflictResolverFailure{Err: err}
	}
	return m, chosen, false, nil
}

// CapabilitiesConflictHandler tracks capabilities currently declared by more than one selected
// component and drains them, mirroring DependencyGraphBuilder's capabilitiesConflictHandler.
type CapabilitiesConflictHandler struct {
	resolver CapabilitiesConflictResolver
	registry *capabilityRegistry
}

// NewCapabilitiesConflictHandler constructs a handler around resolver. A nil resolver defaults to
// a highest-version-wins resolver applied across providers regardless of which module they belong
// to, with ties broken by module id.
func NewCapabilitiesConflictHandler(resolver CapabilitiesConflictResolver) *CapabilitiesConflictHandler {
	if resolver == nil {
		resolver = capabilityHighestVersionResolver{}
	}
	return &CapabilitiesConflictHandler{resolver: resolver, registry: newCapabilityRegistry()}
}

// Register records that c is now selected and declaring its capabilities; the traversal calls it
// each time it pops a node of c, before visiting that node's dependencies. rs is consulted to pre-seed a capability's provider list with the
// selected component of whichever module's own identity matches that capability, if any.
func (h *CapabilitiesConflictHandler) Register(c *ComponentState, rs *ResolveState) {
	h.registry.Register(c, rs)
}

// Unregister records that c is no longer selected, called from a module restart or deselect.
func (h *CapabilitiesConflictHandler) Unregister(c *ComponentState) { h.registry.Unregister(c) }

// HasConflicts reports whether any capability currently has more than one selected provider.
func (h *CapabilitiesConflictHandler) HasConflicts() bool {
	return len(h.registry.Conflicted()) > 0
}

// ResolveNextConflict resolves the first (by capability key, for determinism) outstanding
// capability conflict, returning the capability key, the winner, and every losing module so the
// caller can deselect them entirely.
func (h *CapabilitiesConflictHandler) ResolveNextConflict(ctx context.Context) (string, *ComponentState, []*ModuleResolveState, error) {
	conflicts := h.registry.Conflicted()
	conflict := conflicts[0]

	winner, err := h.resolver.Resolve(ctx, conflict.Key, conflict.Providers)
	if err != nil {
		return conflict.Key, nil, nil, &ConflictResolverFailure{Err: err}
	}

	var losingModules []*ModuleResolveState
	for _, p := range conflict.Providers {
		if p != winner {
			losingModules = append(losingModules, p.Module())
			h.registry.Unregister(p)
		}
	}
	return conflict.Key, winner, losingModules, nil
}

// capabilityHighestVersionResolver is the default CapabilitiesConflictResolver: whichever provider
// has the highest version wins, ties broken by module name for determinism.
type capabilityHighestVersionResolver struct{}

func (capabilityHighestVersionResolver) Resolve(_ context.Context, _ string, candidates []*ComponentState) (*ComponentState, error) {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if CompareVersions(c.Version(), best.Version()) > 0 {
			best = c
		} else if CompareVersions(c.Version(), best.Version()) == 0 && c.Module().ID().String() < best.Module().ID().String() {
			best = c
		}
	}
	return best, nil
}
