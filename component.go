package depresolve

import (
	"fmt"
	"slices"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// VisitState is the tri-state used only during assembleResult's topological walk, mirroring the
// Java DependencyGraphBuilder.VisitState enum exactly.
type VisitState int

const (
	NotSeen VisitState = iota
	Visiting
	Visited
)

// A ComponentState is a specific resolved version of a module with metadata, per the data model.
// It is interned once per (module, version) by [ModuleResolveState.GetOrCreateComponent] and never destroyed,
// though it may transition between selected, deselected, and rejected.
type ComponentState struct {
	id    ComponentID
	mvi   ModuleVersionID
	owner *ModuleResolveState

	metadata       ComponentMetadata
	metadataLoaded bool

	selected        bool
	rejected        bool
	alreadyResolved bool
	root            bool

	capabilities []Capability

	// nodes is the set of configurations (NodeState) this component has spawned so far.
	nodes mapset.Set[*NodeState]

	// selectedBy is the set of selectors currently pointing at this component, maintained per the
	// invariant "selectedBy(component) always equals the set of selectors currently pointing to
	// it".
	selectedBy mapset.Set[*SelectorState]

	visitState VisitState
}

func newComponentState(owner *ModuleResolveState, id ComponentID, mvi ModuleVersionID, metadata ComponentMetadata) *ComponentState {
	return &ComponentState{
		id:             id,
		mvi:            mvi,
		owner:          owner,
		metadata:       metadata,
		metadataLoaded: metadata != nil,
		nodes:          mapset.NewThreadUnsafeSet[*NodeState](),
		selectedBy:     mapset.NewThreadUnsafeSet[*SelectorState](),
	}
}

func (c *ComponentState) String() string { return c.mvi.String() }

// ID returns this component's opaque identifier, as assigned by the [IdResolver].
func (c *ComponentState) ID() ComponentID { return c.id }

// ModuleVersionID returns the (group, name, version) this component represents.
func (c *ComponentState) ModuleVersionID() ModuleVersionID { return c.mvi }

// Version returns just the version half of the [ComponentState.ModuleVersionID].
func (c *ComponentState) Version() string { return c.mvi.Version }

// Module returns the [ModuleResolveState] that owns this component.
func (c *ComponentState) Module() *ModuleResolveState { return c.owner }

// IsSelected reports whether this is currently its module's selected component.
func (c *ComponentState) IsSelected() bool { return c.selected }

// IsRejected reports whether a selector's reject rule has matched this component's version.
func (c *ComponentState) IsRejected() bool { return c.rejected }

// IsRoot reports whether this is the root module's component.
func (c *ComponentState) IsRoot() bool { return c.root }

// AlreadyResolved reports whether full metadata has already been fetched for this component.
func (c *ComponentState) AlreadyResolved() bool { return c.metadataLoaded }

// Metadata returns the cached metadata, or nil if it has not been resolved yet.
func (c *ComponentState) Metadata() ComponentMetadata { return c.metadata }

// SetMetadata records freshly-resolved metadata.
func (c *ComponentState) SetMetadata(md ComponentMetadata) {
	c.metadata = md
	c.metadataLoaded = true
}

// SetCapabilities records the capabilities this component declares providing.
func (c *ComponentState) SetCapabilities(caps []Capability) { c.capabilities = caps }

// ForEachCapability calls fn once per capability this component declares.
func (c *ComponentState) ForEachCapability(fn func(Capability)) {
	for _, cap := range c.capabilities {
		fn(cap)
	}
}

// SetRoot marks this component as the resolution's root, per DependencyGraphBuilder.resolve's
// `resolveState.getRoot().getComponent().setRoot()` call.
func (c *ComponentState) SetRoot() { c.root = true }

// Reject marks this component rejected. maybeMarkRejected is the only caller.
func (c *ComponentState) Reject() { c.rejected = true }

// select marks this component as its module's current selection. Internal: callers go through
// ModuleResolveState.ApplySelection so that the invariant "at most one selected component per
// module" is maintained in one place.
func (c *ComponentState) select_() { c.selected = true }

func (c *ComponentState) deselect() { c.selected = false }

// Nodes returns the configurations spawned from this component so far, in a stable order keyed by
// node id so that repeated assembleResult passes over the same graph agree with each other.
func (c *ComponentState) Nodes() []*NodeState {
	nodes := slices.Collect(mapset.Elements(c.nodes))
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].id < nodes[j].id })
	return nodes
}

func (c *ComponentState) addNode(n *NodeState) { c.nodes.Add(n) }

// SelectedBy returns the selectors currently pointing at this component.
func (c *ComponentState) SelectedBy() mapset.Set[*SelectorState] { return c.selectedBy.Clone() }

func (c *ComponentState) addSelector(s *SelectorState)    { c.selectedBy.Add(s) }
func (c *ComponentState) removeSelector(s *SelectorState) { c.selectedBy.Remove(s) }

// VisitState returns the tri-state used during assembleResult.
func (c *ComponentState) VisitState() VisitState { return c.visitState }

// SetVisitState is used only by assembleResult.
func (c *ComponentState) SetVisitState(v VisitState) { c.visitState = v }

var _ fmt.Stringer = (*ComponentState)(nil)
