package depresolve

// ResolveState is the single mutable heart of a resolution: the module registry, the traversal
// queue, and the two conflict handlers, exactly the collaborators DependencyGraphBuilder closes
// over. Every method on it is called from the single-threaded traversal loop in traversal.go; the
// only concurrency anywhere in a resolution is the metadata-prefetch phase inside resolveEdges,
// which never touches ResolveState directly.
type ResolveState struct {
	modules     map[ModuleID]*ModuleResolveState
	moduleOrder []ModuleID

	root  *NodeState
	queue []*NodeState
	// queuedSet tracks membership by node id so a node already pending traversal is never queued
	// twice, mirroring onMoreSelected's de-dup behavior.
	queuedSet map[int]bool

	nodeIDSeq int

	moduleConflicts     *ModuleConflictHandler
	capabilityConflicts *CapabilitiesConflictHandler
	selectorCache       *SelectorStateResolverResults
}

// NewResolveState constructs an empty ResolveState wired to the given conflict resolvers and
// replacement map. A nil resolver argument selects the package default for that axis; a nil
// replacements argument means module replacements are not in effect for this resolution.
func NewResolveState(moduleResolver ModuleConflictResolver, capabilityResolver CapabilitiesConflictResolver, replacements ModuleReplacementsData) *ResolveState {
	return &ResolveState{
		modules:             map[ModuleID]*ModuleResolveState{},
		queuedSet:           map[int]bool{},
		moduleConflicts:     NewModuleConflictHandler(moduleResolver, replacements),
		capabilityConflicts: NewCapabilitiesConflictHandler(capabilityResolver),
		selectorCache:       NewSelectorStateResolverResults(),
	}
}

func (rs *ResolveState) nextNodeID() int {
	rs.nodeIDSeq++
	return rs.nodeIDSeq
}

// GetModule returns the ModuleResolveState for id, creating an empty one the first time it is
// requested; modules are interned lazily, never all up front.
func (rs *ResolveState) GetModule(id ModuleID) *ModuleResolveState {
	if m, ok := rs.modules[id]; ok {
		return m
	}
	m := newModuleResolveState(rs, id)
	rs.modules[id] = m
	rs.moduleOrder = append(rs.moduleOrder, id)
	return m
}

// LookupModule returns the ModuleResolveState for id without interning one if it has never been
// referenced, used by capability pre-seeding and module-replacement conflict detection, which must
// not themselves conjure a module into existence just by looking for it.
func (rs *ResolveState) LookupModule(id ModuleID) (*ModuleResolveState, bool) {
	m, ok := rs.modules[id]
	return m, ok
}

// GetModules returns every module touched by this resolution, in the order each was first seen.
func (rs *ResolveState) GetModules() []*ModuleResolveState {
	out := make([]*ModuleResolveState, len(rs.moduleOrder))
	for i, id := range rs.moduleOrder {
		out[i] = rs.modules[id]
	}
	return out
}

// GetRoot returns the resolution's root node, set once by [ResolveState.SetRoot].
func (rs *ResolveState) GetRoot() *NodeState { return rs.root }

// SetRoot records root as the resolution's starting point and seeds the traversal queue with it.
func (rs *ResolveState) SetRoot(root *NodeState) {
	rs.root = root
	root.selected = true
	rs.Enqueue(root)
}

// ModuleConflicts returns the module conflict handler backing this resolution.
func (rs *ResolveState) ModuleConflicts() *ModuleConflictHandler { return rs.moduleConflicts }

// CapabilityConflicts returns the capability conflict handler backing this resolution.
func (rs *ResolveState) CapabilityConflicts() *CapabilitiesConflictHandler {
	return rs.capabilityConflicts
}

// SelectorCache returns the cross-edge resolution cache backing this resolution.
func (rs *ResolveState) SelectorCache() *SelectorStateResolverResults { return rs.selectorCache }

// Enqueue adds node to the traversal queue if it is not already pending, implementing
// onMoreSelected's de-dup behavior.
func (rs *ResolveState) Enqueue(node *NodeState) {
	if rs.queuedSet[node.id] {
		return
	}
	rs.queuedSet[node.id] = true
	rs.queue = append(rs.queue, node)
}

// HasQueuedNodes reports whether any node remains to be traversed.
func (rs *ResolveState) HasQueuedNodes() bool { return len(rs.queue) > 0 }

// Pop removes and returns the next node to traverse, in FIFO order.
func (rs *ResolveState) Pop() *NodeState {
	node := rs.queue[0]
	rs.queue = rs.queue[1:]
	delete(rs.queuedSet, node.id)
	return node
}
