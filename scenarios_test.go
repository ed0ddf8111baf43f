package depresolve_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	. "github.com/buildgraph/depresolve"
	"github.com/buildgraph/depresolve/internal/fakerepo"
)

// recordingVisitor is a minimal DependencyGraphVisitor that records every call it receives, for
// tests that assert on the result's visit ordering and call multiplicity.
type recordingVisitor struct {
	starts, finishes int
	selectors        []*SelectorState
	visitedNodes     []*NodeState
	edgeVisits       []*NodeState
}

func newRecordingVisitor() *recordingVisitor { return &recordingVisitor{} }

func (v *recordingVisitor) Start(*NodeState)               { v.starts++ }
func (v *recordingVisitor) Finish(*NodeState)               { v.finishes++ }
func (v *recordingVisitor) VisitSelector(s *SelectorState)  { v.selectors = append(v.selectors, s) }
func (v *recordingVisitor) VisitNode(n *NodeState)          { v.visitedNodes = append(v.visitedNodes, n) }
func (v *recordingVisitor) VisitEdges(n *NodeState)         { v.edgeVisits = append(v.edgeVisits, n) }

func (v *recordingVisitor) edgeVisitIndex(id ModuleID) int {
	for i, n := range v.edgeVisits {
		if n.Component().ModuleVersionID().ModuleID == id {
			return i
		}
	}
	return -1
}

func (v *recordingVisitor) selectedVersion(t *testing.T, id ModuleID) string {
	t.Helper()
	for _, n := range v.visitedNodes {
		mvi := n.Component().ModuleVersionID()
		if mvi.ModuleID == id {
			return mvi.Version
		}
	}
	t.Fatalf("module %v was never visited", id)
	return ""
}

// countingResolver wraps an IdResolver and counts how many times Resolve actually ran per module,
// letting tests assert that a short-circuiting selector never reaches the external resolver.
type countingResolver struct {
	IdResolver
	calls map[ModuleID]int
}

func newCountingResolver(inner IdResolver) *countingResolver {
	return &countingResolver{IdResolver: inner, calls: map[ModuleID]int{}}
}

func (c *countingResolver) Resolve(ctx context.Context, s *SelectorState) IdResolveResult {
	c.calls[s.TargetModule().ID()]++
	return c.IdResolver.Resolve(ctx, s)
}

func newBuilder(repo *fakerepo.Repo) *GraphBuilder {
	return &GraphBuilder{
		IDResolver:       repo.IDResolver(),
		MetadataResolver: repo.MetadataResolver(),
		ContextResolver:  repo.ContextResolver(),
		AttributeMatcher: fakerepo.AttributeMatcher(),
	}
}

func mod(name string) ModuleID { return ModuleID{Group: "t", Name: name} }

func root(id ModuleID, version string) ModuleVersionID {
	return ModuleVersionID{ModuleID: id, Version: version}
}

// TestSimpleTransitive is scenario S1: Root → A[1.0]; A[1.0] → B[1.0].
func TestSimpleTransitive(t *testing.T) {
	t.Parallel()
	repo := fakerepo.New()
	app, a, b := mod("app"), mod("a"), mod("b")
	repo.Add(app, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{fakerepo.Requires("t", "a", "^1.0.0")}})
	repo.Add(a, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{fakerepo.Requires("t", "b", "^1.0.0")}})
	repo.Add(b, fakerepo.VersionSpec{Version: "1.0.0"})

	gb := newBuilder(repo)
	v := newRecordingVisitor()
	if err := gb.Resolve(t.Context(), root(app, "1.0.0"), v); err != nil {
		t.Fatal(err)
	}

	if got, want := v.selectedVersion(t, a), "1.0.0"; got != want {
		t.Errorf("A selected = %v, want %v", got, want)
	}
	if got, want := v.selectedVersion(t, b), "1.0.0"; got != want {
		t.Errorf("B selected = %v, want %v", got, want)
	}

	aIdx, appIdx := v.edgeVisitIndex(a), v.edgeVisitIndex(app)
	if aIdx < 0 || appIdx < 0 || aIdx >= appIdx {
		t.Errorf("expected A→B's edges visited before root→A's; got indices a=%d root=%d", aIdx, appIdx)
	}
	if v.starts != 1 || v.finishes != 1 {
		t.Errorf("start/finish calls = %d/%d, want 1/1", v.starts, v.finishes)
	}
}

// TestConflictHighestWins is scenario S2: the module conflict resolver picks the highest version
// and edges that had already attached to the loser are restarted against the winner.
func TestConflictHighestWins(t *testing.T) {
	t.Parallel()
	repo := fakerepo.New()
	app, a, c, b := mod("app"), mod("a"), mod("c"), mod("b")
	repo.Add(app, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{
		fakerepo.Requires("t", "a", "^1.0.0"),
		fakerepo.Requires("t", "c", "^1.0.0"),
	}})
	repo.Add(a, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{fakerepo.RequiresExact("t", "b", "1.0.0")}})
	repo.Add(c, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{fakerepo.RequiresExact("t", "b", "2.0.0")}})
	repo.Add(b, fakerepo.VersionSpec{Version: "1.0.0"})
	repo.Add(b, fakerepo.VersionSpec{Version: "2.0.0"})

	gb := newBuilder(repo)
	gb.ModuleConflictResolver = HighestVersionResolver{}
	v := newRecordingVisitor()
	if err := gb.Resolve(t.Context(), root(app, "1.0.0"), v); err != nil {
		t.Fatal(err)
	}

	if got, want := v.selectedVersion(t, b), "2.0.0"; got != want {
		t.Errorf("B selected = %v, want %v", got, want)
	}

	var aNode *NodeState
	for _, n := range v.visitedNodes {
		if n.Component().ModuleVersionID().ModuleID == a {
			aNode = n
		}
	}
	if aNode == nil {
		t.Fatal("A was never visited")
	}
	edges := aNode.OutgoingEdges()
	if len(edges) != 1 {
		t.Fatalf("A has %d outgoing edges, want 1", len(edges))
	}
	if got := edges[0].TargetComponent().Version(); got != "2.0.0" {
		t.Errorf("A's edge to B resolves to %v after restart, want 2.0.0", got)
	}
}

// TestForce is scenario S3: a forced selector collapses the module to its exact version
// regardless of what any other selector would otherwise pick.
func TestForce(t *testing.T) {
	t.Parallel()
	repo := fakerepo.New()
	app, c, b := mod("app"), mod("c"), mod("b")
	repo.Add(app, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{
		fakerepo.Forces("t", "b", "1.0.0"),
		fakerepo.Requires("t", "c", "^1.0.0"),
	}})
	repo.Add(c, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{fakerepo.Requires("t", "b", "^1.0.0")}})
	repo.Add(b, fakerepo.VersionSpec{Version: "1.0.0"})
	repo.Add(b, fakerepo.VersionSpec{Version: "2.0.0"})

	gb := newBuilder(repo)
	v := newRecordingVisitor()
	if err := gb.Resolve(t.Context(), root(app, "1.0.0"), v); err != nil {
		t.Fatal(err)
	}

	if got, want := v.selectedVersion(t, b), "1.0.0"; got != want {
		t.Errorf("B selected = %v, want %v (force)", got, want)
	}
}

// TestReject is scenario S4: a version that is the only available candidate but matches a
// selector's reject rule is resolved (there is nothing else to pick) and then caught by
// validateGraph rather than by the repository.
func TestReject(t *testing.T) {
	t.Parallel()
	repo := fakerepo.New()
	app, a := mod("app"), mod("a")
	repo.Add(app, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{
		fakerepo.RequiresExcept("t", "a", ">=1.0.0", "=1.5.0"),
	}})
	repo.Add(a, fakerepo.VersionSpec{Version: "1.5.0"})

	gb := newBuilder(repo)
	v := newRecordingVisitor()
	err := gb.Resolve(t.Context(), root(app, "1.0.0"), v)

	var rejected *RejectedSelectionFailure
	if !errors.As(err, &rejected) {
		t.Fatalf("Resolve() error = %v, want a *RejectedSelectionFailure", err)
	}
	if rejected.Module != a {
		t.Errorf("rejected module = %v, want %v", rejected.Module, a)
	}
}

// TestShortCircuitReuse is scenario S5: a selector that can short-circuit onto an already-selected
// compatible version never reaches the external resolver.
func TestShortCircuitReuse(t *testing.T) {
	t.Parallel()
	repo := fakerepo.New()
	app, d, e := mod("app"), mod("d"), mod("e")
	repo.Add(app, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{
		fakerepo.RequiresExact("t", "d", "1.0.0"),
		fakerepo.Requires("t", "e", "^1.0.0"),
	}})
	repo.Add(e, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{fakerepo.Requires("t", "d", ">=1.0.0")}})
	repo.Add(d, fakerepo.VersionSpec{Version: "1.0.0"})

	counting := newCountingResolver(repo.IDResolver())
	gb := newBuilder(repo)
	gb.IDResolver = counting
	v := newRecordingVisitor()
	if err := gb.Resolve(t.Context(), root(app, "1.0.0"), v); err != nil {
		t.Fatal(err)
	}

	if got, want := v.selectedVersion(t, d), "1.0.0"; got != want {
		t.Errorf("D selected = %v, want %v", got, want)
	}
	if got := counting.calls[d]; got != 1 {
		t.Errorf("external resolutions for D = %d, want exactly 1", got)
	}
}

// TestCycle is scenario S6: a cycle in the component graph terminates and visits each component
// exactly once.
func TestCycle(t *testing.T) {
	t.Parallel()
	repo := fakerepo.New()
	app, a, b := mod("app"), mod("a"), mod("b")
	repo.Add(app, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{fakerepo.Requires("t", "a", "^1.0.0")}})
	repo.Add(a, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{fakerepo.Requires("t", "b", "^1.0.0")}})
	repo.Add(b, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{fakerepo.Requires("t", "a", "^1.0.0")}})

	gb := newBuilder(repo)
	v := newRecordingVisitor()
	done := make(chan error, 1)
	go func() { done <- gb.Resolve(t.Context(), root(app, "1.0.0"), v) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-timeoutCh(t):
		t.Fatal("Resolve did not terminate on a cyclic graph")
	}

	counts := map[ModuleID]int{}
	for _, n := range v.visitedNodes {
		counts[n.Component().ModuleVersionID().ModuleID]++
	}
	if diff := cmp.Diff(map[ModuleID]int{app: 1, a: 1, b: 1}, counts); diff != "" {
		t.Errorf("visit counts mismatch (-want +got):\n%s", diff)
	}
}

// TestDiamondIsConsumerFirst covers invariant 7: for a DAG, visitEdges ordering is a reverse
// topological order of the consumer relation.
func TestDiamondIsConsumerFirst(t *testing.T) {
	t.Parallel()
	repo := fakerepo.New()
	app, a, b, c := mod("app"), mod("a"), mod("b"), mod("c")
	repo.Add(app, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{
		fakerepo.Requires("t", "a", "^1.0.0"),
		fakerepo.Requires("t", "b", "^1.0.0"),
	}})
	repo.Add(a, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{fakerepo.Requires("t", "c", "^1.0.0")}})
	repo.Add(b, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{fakerepo.Requires("t", "c", "^1.0.0")}})
	repo.Add(c, fakerepo.VersionSpec{Version: "1.0.0"})

	gb := newBuilder(repo)
	v := newRecordingVisitor()
	if err := gb.Resolve(t.Context(), root(app, "1.0.0"), v); err != nil {
		t.Fatal(err)
	}

	cIdx, aIdx, bIdx, appIdx := v.edgeVisitIndex(c), v.edgeVisitIndex(a), v.edgeVisitIndex(b), v.edgeVisitIndex(app)
	if cIdx >= aIdx || cIdx >= bIdx {
		t.Errorf("C's consumers A/B must be visited after C: c=%d a=%d b=%d", cIdx, aIdx, bIdx)
	}
	if aIdx >= appIdx || bIdx >= appIdx {
		t.Errorf("root must be visited after its dependencies: a=%d b=%d root=%d", aIdx, bIdx, appIdx)
	}
	if len(v.edgeVisits) != 4 {
		t.Errorf("visitEdges called %d times, want 4 (one per selected node)", len(v.edgeVisits))
	}
}

// TestCapabilityConflict exercises the capabilities conflict handler directly: two components
// from unrelated modules both declaring the same capability must be resolved down to one, and the
// loser's whole module is dropped from the graph.
func TestCapabilityConflict(t *testing.T) {
	t.Parallel()
	repo := fakerepo.New()
	app, c, e := mod("app"), mod("c"), mod("e")
	repo.Add(app, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{
		fakerepo.Requires("t", "c", "^1.0.0"),
		fakerepo.Requires("t", "e", "^1.0.0"),
	}})
	repo.Add(c, fakerepo.VersionSpec{Version: "1.5.0", Provides: []Capability{fakerepo.Cap("t", "codec")}})
	repo.Add(e, fakerepo.VersionSpec{Version: "1.0.0", Provides: []Capability{fakerepo.Cap("t", "codec")}})

	gb := newBuilder(repo)
	v := newRecordingVisitor()
	if err := gb.Resolve(t.Context(), root(app, "1.0.0"), v); err != nil {
		t.Fatal(err)
	}

	cSelected, eSelected := false, false
	for _, n := range v.visitedNodes {
		switch n.Component().ModuleVersionID().ModuleID {
		case c:
			cSelected = true
		case e:
			eSelected = true
		}
	}
	if !cSelected || eSelected {
		t.Errorf("expected C (higher version) to win the capability conflict and E to be dropped; cSelected=%v eSelected=%v", cSelected, eSelected)
	}
}

// TestModuleReplacement exercises module replacement as a module conflict: oldlib is configured as
// replaced by newlib, which the root also depends on directly and so already has a selection by the
// time oldlib's own candidate is registered. oldlib must end up with no selection of its own, and
// the edge that declared it must redirect onto newlib's component instead.
func TestModuleReplacement(t *testing.T) {
	t.Parallel()
	repo := fakerepo.New()
	app, newlib, oldlib := mod("app"), mod("newlib"), mod("oldlib")
	repo.Add(app, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{
		fakerepo.Requires("t", "newlib", "^1.0.0"),
		fakerepo.Requires("t", "oldlib", "^1.0.0"),
	}})
	repo.Add(newlib, fakerepo.VersionSpec{Version: "1.0.0"})
	repo.Add(oldlib, fakerepo.VersionSpec{Version: "1.0.0"})

	gb := newBuilder(repo)
	gb.ModuleReplacements = fakerepo.Replacements{oldlib: newlib}
	v := newRecordingVisitor()
	if err := gb.Resolve(t.Context(), root(app, "1.0.0"), v); err != nil {
		t.Fatal(err)
	}

	if got, want := v.selectedVersion(t, newlib), "1.0.0"; got != want {
		t.Errorf("newlib selected = %v, want %v", got, want)
	}

	var newlibNode *NodeState
	for _, n := range v.visitedNodes {
		if n.Component().ModuleVersionID().ModuleID == oldlib {
			t.Errorf("oldlib was replaced by newlib but was still visited: %v", n)
		}
		if n.Component().ModuleVersionID().ModuleID == newlib {
			newlibNode = n
		}
	}
	if newlibNode == nil {
		t.Fatal("newlib was never visited")
	}
	if got, want := len(newlibNode.IncomingEdges()), 2; got != want {
		t.Errorf("newlib has %d incoming edges, want %d (root's own edge plus oldlib's redirected edge)", got, want)
	}
}

// TestCapabilityMatchesModuleIdentity exercises the module-identity pre-seed: a capability
// declared explicitly by one component matches the (group, name) identity of another, already
// selected module, which implicitly provides that capability through its own identity even though
// it never declares it. The two must conflict, with the default resolver breaking the tie by
// version.
func TestCapabilityMatchesModuleIdentity(t *testing.T) {
	t.Parallel()
	repo := fakerepo.New()
	app, m, x := mod("app"), mod("m"), mod("x")
	repo.Add(app, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{
		fakerepo.Requires("t", "m", "^2.0.0"),
		fakerepo.Requires("t", "x", "^1.0.0"),
	}})
	repo.Add(m, fakerepo.VersionSpec{Version: "2.0.0"})
	repo.Add(x, fakerepo.VersionSpec{Version: "1.0.0", Provides: []Capability{fakerepo.Cap("t", "m")}})

	gb := newBuilder(repo)
	v := newRecordingVisitor()
	if err := gb.Resolve(t.Context(), root(app, "1.0.0"), v); err != nil {
		t.Fatal(err)
	}

	if got, want := v.selectedVersion(t, m), "2.0.0"; got != want {
		t.Errorf("m selected = %v, want %v", got, want)
	}
	for _, n := range v.visitedNodes {
		if n.Component().ModuleVersionID().ModuleID == x {
			t.Errorf("x should have lost the capability conflict against m's own identity, but was visited: %v", n)
		}
	}
}

// TestStrictlyViolation covers a module with a Strictly-scoped selector whose range a later,
// ordinary conflict winner falls outside: the violation is fatal regardless of which resolver
// would otherwise have won the conflict.
func TestStrictlyViolation(t *testing.T) {
	t.Parallel()
	repo := fakerepo.New()
	app, b, c := mod("app"), mod("b"), mod("c")
	repo.Add(app, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{
		fakerepo.Strictly("t", "b", "<2.0.0"),
		fakerepo.Requires("t", "c", "^1.0.0"),
	}})
	repo.Add(c, fakerepo.VersionSpec{Version: "1.0.0", Requires: []fakerepo.Requirement{fakerepo.Requires("t", "b", "^2.0.0")}})
	repo.Add(b, fakerepo.VersionSpec{Version: "1.0.0"})
	repo.Add(b, fakerepo.VersionSpec{Version: "2.0.0"})

	gb := newBuilder(repo)
	v := newRecordingVisitor()
	err := gb.Resolve(t.Context(), root(app, "1.0.0"), v)

	var violation *StrictVersionConflictFailure
	if !errors.As(err, &violation) {
		t.Fatalf("Resolve() error = %v, want a *StrictVersionConflictFailure", err)
	}
	if violation.Module != b {
		t.Errorf("violated module = %v, want %v", violation.Module, b)
	}
	if violation.Version != "2.0.0" {
		t.Errorf("violating version = %v, want 2.0.0", violation.Version)
	}
}

func timeoutCh(t *testing.T) <-chan time.Time {
	t.Helper()
	return time.After(10 * time.Second)
}
