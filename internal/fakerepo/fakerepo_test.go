package fakerepo_test

import (
	"testing"

	depresolve "github.com/buildgraph/depresolve"
	"github.com/buildgraph/depresolve/internal/fakerepo"
)

func TestRepoVersionsAreSortedAscending(t *testing.T) {
	t.Parallel()
	id := depresolve.ModuleID{Group: "t", Name: "a"}
	r := fakerepo.New()
	r.Add(id, fakerepo.VersionSpec{Version: "2.0.0"})
	r.Add(id, fakerepo.VersionSpec{Version: "1.0.0"})
	r.Add(id, fakerepo.VersionSpec{Version: "1.5.0"})

	got := r.Versions(id)
	want := []string{"1.0.0", "1.5.0", "2.0.0"}
	if len(got) != len(want) {
		t.Fatalf("Versions() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Versions()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

// TestIDResolverRejectsUnknownModule confirms an unregistered transitive dependency does not abort
// the whole resolution: Resolve returns no error, matching the core algorithm's "local, per-edge
// failure" policy.
func TestIDResolverRejectsUnknownModule(t *testing.T) {
	t.Parallel()
	r := fakerepo.New()
	unknown := depresolve.ModuleID{Group: "t", Name: "ghost"}

	app := depresolve.ModuleID{Group: "t", Name: "app"}
	r.Add(app, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{
		fakerepo.RequiresLatest(unknown.Group, unknown.Name),
	}})

	gb := &depresolve.GraphBuilder{
		IDResolver:       r.IDResolver(),
		MetadataResolver: r.MetadataResolver(),
		ContextResolver:  r.ContextResolver(),
		AttributeMatcher: fakerepo.AttributeMatcher(),
	}
	err := gb.Resolve(t.Context(), depresolve.ModuleVersionID{ModuleID: app, Version: "1.0.0"}, noopVisitor{})
	if err != nil {
		t.Fatalf("Resolve() returned a fatal error for an unknown transitive dependency: %v", err)
	}
}

// TestLatestSelectorTracksTheHighestAddedVersion confirms RequiresLatest resolves to whichever
// version was most recently the highest added, regardless of Add order.
func TestLatestSelectorTracksTheHighestAddedVersion(t *testing.T) {
	t.Parallel()
	r := fakerepo.New()
	a := depresolve.ModuleID{Group: "t", Name: "a"}
	app := depresolve.ModuleID{Group: "t", Name: "app"}
	r.Add(a, fakerepo.VersionSpec{Version: "1.0.0"})
	r.Add(a, fakerepo.VersionSpec{Version: "3.0.0"})
	r.Add(a, fakerepo.VersionSpec{Version: "2.0.0"})
	r.Add(app, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{
		fakerepo.RequiresLatest("t", "a"),
	}})

	gb := &depresolve.GraphBuilder{
		IDResolver:       r.IDResolver(),
		MetadataResolver: r.MetadataResolver(),
		ContextResolver:  r.ContextResolver(),
		AttributeMatcher: fakerepo.AttributeMatcher(),
	}
	v := &capturingVisitor{}
	if err := gb.Resolve(t.Context(), depresolve.ModuleVersionID{ModuleID: app, Version: "1.0.0"}, v); err != nil {
		t.Fatal(err)
	}
	for _, n := range v.nodes {
		if n.Component().ModuleVersionID().ModuleID == a && n.Component().Version() != "3.0.0" {
			t.Errorf("latest selector resolved to %v, want 3.0.0", n.Component().Version())
		}
	}
}

type noopVisitor struct{}

func (noopVisitor) Start(*depresolve.NodeState)             {}
func (noopVisitor) VisitSelector(*depresolve.SelectorState) {}
func (noopVisitor) VisitNode(*depresolve.NodeState)         {}
func (noopVisitor) VisitEdges(*depresolve.NodeState)        {}
func (noopVisitor) Finish(*depresolve.NodeState)            {}

type capturingVisitor struct {
	nodes []*depresolve.NodeState
}

func (v *capturingVisitor) Start(*depresolve.NodeState)             {}
func (v *capturingVisitor) VisitSelector(*depresolve.SelectorState) {}
func (v *capturingVisitor) VisitNode(n *depresolve.NodeState)       { v.nodes = append(v.nodes, n) }
func (v *capturingVisitor) VisitEdges(*depresolve.NodeState)        {}
func (v *capturingVisitor) Finish(*depresolve.NodeState)            {}
