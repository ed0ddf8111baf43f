package depresolve

import mapset "github.com/deckarep/golang-set/v2"

// A ModuleResolveState tracks every selector and every known version of a single module, and which
// one (if any) is currently selected, per the data model's "ModuleResolveState" entry.
type ModuleResolveState struct {
	id           ModuleID
	resolveState *ResolveState

	versions     map[string]*ComponentState
	versionOrder []string

	selectorSet mapset.Set[*SelectorState]
	selectors   []*SelectorState

	selected *ComponentState

	// unattached is every edge that has ever declared this module as its target, regardless of
	// whether it is currently attached, so that a restart can reattach all of them to the newly
	// selected candidate (mirrors addUnattachedDependency bookkeeping).
	unattached []*EdgeState
}

func newModuleResolveState(rs *ResolveState, id ModuleID) *ModuleResolveState {
	return &ModuleResolveState{
		id:           id,
		resolveState: rs,
		versions:     map[string]*ComponentState{},
		selectorSet:  mapset.NewThreadUnsafeSet[*SelectorState](),
	}
}

func (m *ModuleResolveState) String() string { return m.id.String() }

// ID returns this module's identity.
func (m *ModuleResolveState) ID() ModuleID { return m.id }

// Selected returns the module's current selection, or nil if none has been made yet.
func (m *ModuleResolveState) Selected() *ComponentState { return m.selected }

// Selectors returns every selector ever registered against this module, in registration order.
func (m *ModuleResolveState) Selectors() []*SelectorState {
	out := make([]*SelectorState, len(m.selectors))
	copy(out, m.selectors)
	return out
}

func (m *ModuleResolveState) addSelector(s *SelectorState) {
	if m.selectorSet.Add(s) {
		m.selectors = append(m.selectors, s)
	}
}

// HasSelector reports whether s has been registered against this module. The traversal's own
// agreement checks iterate [ModuleResolveState.Selectors] instead of calling it.
func (m *ModuleResolveState) HasSelector(s *SelectorState) bool {
	return m.selectorSet.Contains(s)
}

// Versions returns every version known for this module, in the order first encountered.
func (m *ModuleResolveState) Versions() []*ComponentState {
	out := make([]*ComponentState, len(m.versionOrder))
	for i, v := range m.versionOrder {
		out[i] = m.versions[v]
	}
	return out
}

// GetOrCreateComponent interns the ComponentState for one (module, version), constructing it with
// id and metadata the first time this version is seen and reusing it on every later call.
func (m *ModuleResolveState) GetOrCreateComponent(version string, id ComponentID, metadata ComponentMetadata) *ComponentState {
	if c, ok := m.versions[version]; ok {
		return c
	}
	c := newComponentState(m, id, ModuleVersionID{ModuleID: m.id, Version: version}, metadata)
	m.versions[version] = c
	m.versionOrder = append(m.versionOrder, version)
	return c
}

// AddUnattachedDependency records that edge targets this module, so a future restart can reattach
// it. Called unconditionally, whatever performSelection decided for the edge.
func (m *ModuleResolveState) AddUnattachedDependency(e *EdgeState) {
	m.unattached = append(m.unattached, e)
}

// Deselect clears the module's current selection and prunes every node that selection had
// contributed to the graph, without touching which component is interned. It is the first half of
// a module restart (getDeselectVersionAction).
func (m *ModuleResolveState) Deselect() {
	if m.selected == nil {
		return
	}
	old := m.selected
	m.selected = nil
	old.deselect()
	m.resolveState.CapabilityConflicts().Unregister(old)
	for _, n := range old.Nodes() {
		n.deselect()
	}
}

// ApplySelection makes candidate the module's current selection and marks it selected, deselecting
// whatever was previously selected first. It does not touch attachment: the caller is responsible
// for pointing every unattached edge at candidate (via [ModuleResolveState.UnattachedEdges] plus
// [EdgeState.SetTarget]/[EdgeState.AttachToTargetConfigurations]) once candidate's metadata is
// ready, keeping the metadata-prefetch-then-attach ordering intact even for a restart that happens
// outside any node's own resolveEdges call. This is
// getReplaceSelectionWithConflictResultAction plus the restart half of performSelection, unified:
// both paths end up here.
func (m *ModuleResolveState) ApplySelection(candidate *ComponentState) {
	if m.selected == candidate {
		return
	}
	if m.selected != nil {
		m.Deselect()
	}
	m.selected = candidate
	candidate.select_()
}

// UnattachedEdges returns every edge ever declared against this module, in declaration order,
// regardless of whether it is currently attached to the module's selection.
func (m *ModuleResolveState) UnattachedEdges() []*EdgeState {
	out := make([]*EdgeState, len(m.unattached))
	copy(out, m.unattached)
	return out
}
