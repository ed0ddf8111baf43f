package depresolve

import (
	"fmt"
	"slices"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

func capabilityKey(c Capability) string { return fmt.Sprintf("%s:%s", c.Group, c.Name) }

// String renders a capability the way log messages and [ConflictResolverFailure] text do.
func (c Capability) String() string { return capabilityKey(c) }

// capabilityRegistry tracks, for every capability declared by any selected component, the set of
// selected components currently declaring it. More than one provider for the same capability is a
// capability conflict.
type capabilityRegistry struct {
	providers map[string]mapset.Set[*ComponentState]
}

func newCapabilityRegistry() *capabilityRegistry {
	return &capabilityRegistry{providers: map[string]mapset.Set[*ComponentState]{}}
}

// Register records that c is now selected and declaring its capabilities. The first time a given
// capability key is seen, the provider set is pre-seeded with the selected component of whichever
// module's own identity (group, name) matches that capability, if one exists and is selected --
// every module implicitly provides its own identity as a capability, and this is the one point
// where that implicit provision can conflict with an explicit declaration from elsewhere. Doing
// this lazily, only when an explicit capability with that exact key is first registered, avoids
// registering an implicit capability for every module up front.
func (r *capabilityRegistry) Register(c *ComponentState, rs *ResolveState) {
	c.ForEachCapability(func(cap Capability) {
		key := capabilityKey(cap)
		set, ok := r.providers[key]
		if !ok {
			set = mapset.NewThreadUnsafeSet[*ComponentState]()
			r.providers[key] = set
			if owner, found := rs.LookupModule(ModuleID{Group: cap.Group, Name: cap.Name}); found {
				if sel := owner.Selected(); sel != nil && sel != c {
					set.Add(sel)
				}
			}
		}
		set.Add(c)
	})
}

// Unregister removes c as a provider of its capabilities, called when c's module is deselected.
func (r *capabilityRegistry) Unregister(c *ComponentState) {
	c.ForEachCapability(func(cap Capability) {
		key := capabilityKey(cap)
		if set, ok := r.providers[key]; ok {
			set.Remove(c)
			if set.Cardinality() == 0 {
				delete(r.providers, key)
			}
		}
	})
}

// Conflicted returns the capabilities that currently have more than one selected provider, each
// paired with its providers sorted by module version id string for determinism.
func (r *capabilityRegistry) Conflicted() []CapabilityConflict {
	var out []CapabilityConflict
	keys := make([]string, 0, len(r.providers))
	for k := range r.providers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		set := r.providers[k]
		if set.Cardinality() < 2 {
			continue
		}
		providers := slices.Collect(mapset.Elements(set))
		sort.Slice(providers, func(i, j int) bool {
			return providers[i].mvi.String() < providers[j].mvi.String()
		})
		out = append(out, CapabilityConflict{Key: k, Providers: providers})
	}
	return out
}

// A CapabilityConflict is two or more selected components from different modules declaring the
// same capability, which a [CapabilitiesConflictResolver] must resolve down to one winner.
type CapabilityConflict struct {
	Key       string
	Providers []*ComponentState
}
