package depresolve

import (
	"context"

	"github.com/buildgraph/depresolve/internal/logging"
)

// traversal is the outer loop, bundling a [GraphBuilder]'s collaborators with the [ResolveState]
// being built. One traversal is created per [GraphBuilder.Resolve] call and discarded afterward.
type traversal struct {
	gb  *GraphBuilder
	rs  *ResolveState
	log *resolveLogger
}

// run drains the pending-node queue and the two conflict queues until all three are empty:
// node-first, conflicts batched, module conflicts ahead of capability conflicts.
func (t *traversal) run(ctx context.Context) error {
	for t.rs.HasQueuedNodes() || t.rs.ModuleConflicts().HasConflicts() || t.rs.CapabilityConflicts().HasConflicts() {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch {
		case t.rs.HasQueuedNodes():
			node := t.rs.Pop()
			t.log.Log(ctx, logging.LevelVerbose, "visiting node", "component", node.Component().String())
			t.registerCapabilities(node)
			decls := t.visitOutgoingDependencies(node)
			if err := t.resolveEdges(ctx, node, decls); err != nil {
				return err
			}
		case t.rs.ModuleConflicts().HasConflicts():
			if err := t.resolveNextModuleConflict(ctx); err != nil {
				return err
			}
		default:
			if err := t.resolveNextCapabilityConflict(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// registerCapabilities records the capabilities node's component declares, one entry per
// capability declared by the component. It is idempotent across repeated visits to nodes of the
// same component.
func (t *traversal) registerCapabilities(node *NodeState) {
	c := node.Component()
	if c.capabilities == nil {
		if caps := node.declaredCapabilities(); len(caps) > 0 {
			c.SetCapabilities(caps)
		}
	}
	t.rs.CapabilityConflicts().Register(c, t.rs)
}

// visitOutgoingDependencies reads node's raw declared dependencies and runs them through
// substitution, the edge filter, and the pending-dependency gate, in that order, mirroring
// NodeState.visitOutgoingDependencies. Module replacement is not applied here: it is a module
// conflict, consulted by [ModuleConflictHandler.RegisterCandidate] once both the replaced and
// replacement modules have candidates in play.
func (t *traversal) visitOutgoingDependencies(node *NodeState) []DependencyDeclaration {
	raw := node.declaredDependencies()
	out := make([]DependencyDeclaration, 0, len(raw))
	for _, d := range raw {
		if t.gb.Substitutions != nil {
			d = t.gb.Substitutions.Apply(d)
		}
		if t.gb.EdgeFilter != nil && !t.gb.EdgeFilter.Accept(d) {
			continue
		}
		if t.gb.PendingDependencies != nil && t.gb.PendingDependencies.ShouldDefer(node, d) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// resolveEdges is the serial-parallel-serial pipeline: performSelection for every declared
// dependency, then a parallel metadata prefetch for whichever targets need it, then serial
// attachment in declaration order.
func (t *traversal) resolveEdges(ctx context.Context, node *NodeState, decls []DependencyDeclaration) error {
	edges := make([]*EdgeState, len(decls))
	for i, d := range decls {
		module := t.rs.GetModule(d.Target)
		selector := newSelectorState(module, d.Constraint)
		module.addSelector(selector)
		edges[i] = newEdgeState(node, selector, d)
	}
	node.setOutgoing(edges)

	// Phase 1: serial selection.
	for _, e := range edges {
		if err := t.performSelection(ctx, e); err != nil {
			return err
		}
	}

	// Phase 2: parallel metadata prefetch.
	if err := t.prefetchMetadata(ctx, edges); err != nil {
		return err
	}

	// Phase 3: serial attachment, in declaration order.
	for _, e := range edges {
		nodes, err := e.AttachToTargetConfigurations(t.gb.AttributeMatcher)
		if err != nil {
			continue // recorded on the edge; attachment failures are per-edge, not fatal
		}
		t.enqueueAll(nodes)
	}
	return nil
}

func (t *traversal) enqueueAll(nodes []*NodeState) {
	for _, n := range nodes {
		t.rs.Enqueue(n)
	}
}

// performSelection resolves a single edge's selector to a concrete component, handling the
// first-selection, already-selected, and conflicting-selection cases.
func (t *traversal) performSelection(ctx context.Context, e *EdgeState) error {
	selector := e.selector
	module := selector.TargetModule()
	module.AddUnattachedDependency(e)

	// "Already started" re-entry: a selector that has already resolved and been assigned a
	// component on some earlier call reuses that assignment outright, rather than relying on
	// null checks at call sites.
	if sel := selector.SelectedComponent(); sel != nil {
		e.SetTarget(sel)
		return nil
	}

	r := selector.Resolve(ctx, t.gb.IDResolver, t.rs.SelectorCache())
	if r.Failure != nil {
		e.setFailure(&IdResolveFailure{Selector: selector, Err: r.Failure})
		return nil
	}

	candidate := module.GetOrCreateComponent(r.MVI.Version, r.ID, r.Metadata)
	current := module.Selected()
	e.SetTarget(candidate)
	selector.Select(candidate)
	t.rs.ModuleConflicts().RegisterCandidate(module)

	if current == nil {
		if !t.rs.ModuleConflicts().IsQueued(module) {
			if err := t.selectAndAttach(ctx, module, candidate); err != nil {
				return err
			}
			t.maybeMarkRejected(candidate)
		}
		return nil
	}

	chosen, err := t.chooseBest(ctx, module, selector, current, candidate)
	if err != nil {
		return err
	}
	if chosen == current {
		e.SetTarget(current)
		selector.Select(current)
		t.maybeMarkRejected(current)
		return nil
	}

	// chosen is candidate: reset the module and restart every edge that ever targeted it.
	if err := t.selectAndAttach(ctx, module, candidate); err != nil {
		return err
	}
	t.maybeMarkRejected(candidate)
	return nil
}

// selectAndAttach applies a new selection to module and reattaches every edge that has ever
// targeted it, ensuring candidate's metadata is resolved first. It is the single place where a
// module's selection actually changes, used by the initial pick, a restart inside performSelection,
// and both conflict handlers' replace actions, keeping the metadata-before-attachment ordering
// guarantee intact even when the change originates outside any node's own resolveEdges call.
func (t *traversal) selectAndAttach(ctx context.Context, module *ModuleResolveState, candidate *ComponentState) error {
	module.ApplySelection(candidate)

	if violator := strictViolation(module, candidate); violator != nil {
		return &StrictVersionConflictFailure{Module: module.ID(), Version: candidate.Version()}
	}

	if !candidate.AlreadyResolved() {
		md, err := t.gb.MetadataResolver.Resolve(ctx, candidate.ID())
		if err != nil {
			return &MetadataResolveFailure{Component: candidate.ID(), Err: err}
		}
		candidate.SetMetadata(md)
	}

	for _, e := range module.UnattachedEdges() {
		if e.IsFiltered() {
			continue
		}
		e.SetTarget(candidate)
		nodes, err := e.AttachToTargetConfigurations(t.gb.AttributeMatcher)
		if err != nil {
			continue
		}
		t.enqueueAll(nodes)
	}
	return nil
}

// chooseBest decides which of a module's current selection and a new conflicting candidate should
// win, consulting agreement rules before falling back to the configured conflict resolver.
func (t *traversal) chooseBest(ctx context.Context, module *ModuleResolveState, selector *SelectorState, current, candidate *ComponentState) (*ComponentState, error) {
	if current == candidate {
		return current, nil
	}
	if t.selectorAgreesWith(selector, current.Version()) {
		return current, nil
	}
	if t.allSelectorsAgreeWith(module, candidate) {
		return candidate, nil
	}
	resolver := t.gb.ModuleConflictResolver
	if resolver == nil {
		resolver = HighestVersionResolver{}
	}
	chosen, err := resolver.Resolve(ctx, module.ID(), []*ComponentState{current, candidate})
	if err != nil {
		return nil, &ConflictResolverFailure{Err: err}
	}
	return chosen, nil
}

// strictViolation scans module's selectors for one marked Strictly whose preferred range does not
// accept chosen's version, returning it if found. A strictly-scoped selector's range can never be
// overridden by conflict resolution, unlike an ordinary preferred range which just loses the
// conflict; a violation here is fatal rather than merely a rejected-component outcome.
func strictViolation(module *ModuleResolveState, chosen *ComponentState) *SelectorState {
	for _, s := range module.Selectors() {
		c := s.Constraint()
		if !c.Strictly || c.Preferred == nil {
			continue
		}
		if !c.Preferred.Accept(chosen.Version()) {
			return s
		}
	}
	return nil
}

// selectorAgreesWith implements the "agreement" rule: a range that already contains the current
// pick should keep the current pick rather than bounce to candidate.
func (t *traversal) selectorAgreesWith(selector *SelectorState, version string) bool {
	c := selector.Constraint()
	if c.Preferred == nil {
		return false
	}
	if c.Preferred.RequiresMetadata() {
		return false
	}
	if !c.Preferred.CanShortCircuitWhenVersionAlreadyPreselected() {
		return false
	}
	return c.Preferred.Accept(version)
}

// allSelectorsAgreeWith checks that every selector on module other than ones already counted in
// candidate's selectedBy independently accepts candidate's version and does not reject it, and
// that at least one selector was actually consulted.
func (t *traversal) allSelectorsAgreeWith(module *ModuleResolveState, candidate *ComponentState) bool {
	alreadyCounted := candidate.SelectedBy()
	consulted := 0
	for _, s := range module.Selectors() {
		if alreadyCounted.Contains(s) {
			continue
		}
		consulted++
		c := s.Constraint()
		agrees := c.Preferred == nil ||
			(c.Preferred.CanShortCircuitWhenVersionAlreadyPreselected() && c.Preferred.Accept(candidate.Version()))
		if !agrees {
			return false
		}
		if c.Rejected != nil && c.Rejected.Accept(candidate.Version()) {
			return false
		}
	}
	return consulted > 0
}

// maybeMarkRejected marks c rejected if any selector on its module explicitly rejects c's version.
func (t *traversal) maybeMarkRejected(c *ComponentState) {
	if c.IsRejected() {
		return
	}
	for _, s := range c.Module().Selectors() {
		if s.Rejects(c.Version()) {
			c.Reject()
			return
		}
	}
}

// prefetchMetadata partitions edges whose target needs metadata fetched, and fetches them in
// parallel via the configured [BuildOperationQueue] when there is more than one, else inline.
func (t *traversal) prefetchMetadata(ctx context.Context, edges []*EdgeState) error {
	type pending struct {
		edge      *EdgeState
		component *ComponentState
	}
	var work []pending
	for _, e := range edges {
		c := e.TargetComponent()
		if c == nil || !c.IsSelected() || c.AlreadyResolved() {
			continue
		}
		if t.gb.MetadataResolver.IsFetchingMetadataCheap(c.ID()) {
			md, err := t.gb.MetadataResolver.Resolve(ctx, c.ID())
			if err != nil {
				e.setFailure(&MetadataResolveFailure{Component: c.ID(), Err: err})
				continue
			}
			c.SetMetadata(md)
			continue
		}
		work = append(work, pending{edge: e, component: c})
	}

	if len(work) == 0 {
		return nil
	}
	if len(work) == 1 {
		w := work[0]
		md, err := t.gb.MetadataResolver.Resolve(ctx, w.component.ID())
		if err != nil {
			w.edge.setFailure(&MetadataResolveFailure{Component: w.component.ID(), Err: err})
			return nil
		}
		w.component.SetMetadata(md)
		return nil
	}

	queue := t.gb.Queue
	if queue == nil {
		queue = defaultBuildOperationQueue{}
	}
	return queue.RunAll(ctx, func(enqueue func(task func(context.Context) error)) {
		for _, w := range work {
			w := w
			enqueue(func(ctx context.Context) error {
				md, err := t.gb.MetadataResolver.Resolve(ctx, w.component.ID())
				if err != nil {
					w.edge.setFailure(&MetadataResolveFailure{Component: w.component.ID(), Err: err})
					return nil
				}
				w.component.SetMetadata(md)
				return nil
			})
		}
	})
}

func (t *traversal) resolveNextModuleConflict(ctx context.Context) error {
	module, chosen, replaced, err := t.rs.ModuleConflicts().ResolveNextConflict(ctx)
	if err != nil {
		return err
	}
	if replaced {
		return t.redirectToReplacement(ctx, module, chosen)
	}
	if err := t.selectAndAttach(ctx, module, chosen); err != nil {
		return err
	}
	t.maybeMarkRejected(chosen)
	t.log.Log(ctx, logging.LevelDebug, "resolved module conflict", "module", module.ID().String(), "chosen", chosen.Version())
	return nil
}

// redirectToReplacement handles a module-replacement conflict: module never gets a selection of
// its own (it has been replaced outright), so instead every edge that ever targeted it is
// retargeted onto replacement, the replacement module's current selection.
func (t *traversal) redirectToReplacement(ctx context.Context, module *ModuleResolveState, replacement *ComponentState) error {
	for _, e := range module.UnattachedEdges() {
		if e.IsFiltered() {
			continue
		}
		e.SetTarget(replacement)
		nodes, err := e.AttachToTargetConfigurations(t.gb.AttributeMatcher)
		if err != nil {
			continue
		}
		t.enqueueAll(nodes)
	}
	t.log.Log(ctx, logging.LevelDebug, "module replaced", "module", module.ID().String(), "replacement", replacement.Module().ID().String())
	return nil
}

func (t *traversal) resolveNextCapabilityConflict(ctx context.Context) error {
	key, winner, losers, err := t.rs.CapabilityConflicts().ResolveNextConflict(ctx)
	if err != nil {
		return err
	}
	for _, loser := range losers {
		loser.Deselect()
	}
	t.log.Log(ctx, logging.LevelDebug, "resolved capability conflict", "capability", key, "winner", winner.String())
	return nil
}

// validateGraph checks that no module's final selection is a rejected component.
func (t *traversal) validateGraph() error {
	for _, m := range t.rs.GetModules() {
		sel := m.Selected()
		if sel != nil && sel.IsRejected() {
			return &RejectedSelectionFailure{Module: m.ID(), Version: sel.Version()}
		}
	}
	return nil
}
