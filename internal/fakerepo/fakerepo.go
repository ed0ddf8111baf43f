// Package fakerepo is an in-memory stand-in for a real module repository. It implements every
// external collaborator interface depresolve.GraphBuilder needs -- IdResolver, MetadataResolver,
// ContextResolver, AttributeMatcher -- so the resolution algorithm can be exercised and
// demonstrated without a network call or an on-disk module cache, built around a directly
// declared graph shape rather than one backed by files on a fake module proxy.
package fakerepo

import (
	"context"
	"fmt"
	"sort"

	depresolve "github.com/buildgraph/depresolve"
)

// A Requirement is one dependency a [VersionSpec] declares on another module.
type Requirement struct {
	Module     depresolve.ModuleID
	Constraint depresolve.VersionConstraint
}

// A VersionSpec is everything fakerepo knows about one version of one module: what it requires and
// what capabilities it provides.
type VersionSpec struct {
	Version  string
	Requires []Requirement
	Provides []depresolve.Capability
}

// Range builds a [depresolve.VersionSelector] from a Masterminds/semver/v3 constraint expression
// such as ">=1.2.0, <2.0.0". It panics if expr does not parse, since fakerepo callers build
// constants at init time rather than handling malformed input at runtime.
func Range(expr string) depresolve.VersionSelector {
	sel, err := depresolve.NewRangeVersionSelector(expr)
	if err != nil {
		panic(fmt.Errorf("fakerepo: invalid version range %q: %w", expr, err))
	}
	return sel
}

// Exact builds a selector that accepts only version verbatim.
func Exact(version string) depresolve.VersionSelector { return depresolve.ExactVersionSelector{Version: version} }

// Latest builds a selector that accepts only whichever version the repository currently reports as
// latest for a module.
func Latest() depresolve.VersionSelector { return depresolve.LatestVersionSelector{} }

// Requires declares an ordinary "require at least this version" dependency.
func Requires(group, name, rangeExpr string) Requirement {
	return Requirement{
		Module:     depresolve.ModuleID{Group: group, Name: name},
		Constraint: depresolve.NewRequireConstraint(Range(rangeExpr)),
	}
}

// RequiresExact declares a dependency on one exact version.
func RequiresExact(group, name, version string) Requirement {
	return Requirement{
		Module:     depresolve.ModuleID{Group: group, Name: name},
		Constraint: depresolve.NewRequireConstraint(Exact(version)),
	}
}

// RequiresLatest declares a dependency that always tracks a module's latest known version.
func RequiresLatest(group, name string) Requirement {
	return Requirement{
		Module:     depresolve.ModuleID{Group: group, Name: name},
		Constraint: depresolve.NewRequireConstraint(Latest()),
	}
}

// Forces declares a dependency that collapses the whole module to exactly version.
func Forces(group, name, version string) Requirement {
	c := depresolve.NewRequireConstraint(Exact(version))
	c.Force = true
	return Requirement{Module: depresolve.ModuleID{Group: group, Name: name}, Constraint: c}
}

// Strictly declares a dependency that additionally forbids any version rangeExpr does not accept,
// even if another selector elsewhere in the graph would otherwise win a conflict.
func Strictly(group, name, rangeExpr string) Requirement {
	c := depresolve.NewRequireConstraint(Range(rangeExpr))
	c.Strictly = true
	return Requirement{Module: depresolve.ModuleID{Group: group, Name: name}, Constraint: c}
}

// RequiresExcept declares a dependency accepting rangeExpr but rejecting any version
// rejectExpr matches.
func RequiresExcept(group, name, rangeExpr, rejectExpr string) Requirement {
	c := depresolve.NewRequireConstraint(Range(rangeExpr))
	c.Rejected = Range(rejectExpr)
	return Requirement{Module: depresolve.ModuleID{Group: group, Name: name}, Constraint: c}
}

// Cap builds a [depresolve.Capability] value.
func Cap(group, name string) depresolve.Capability { return depresolve.Capability{Group: group, Name: name} }

// Repo is an in-memory, fully pre-populated universe of modules and their versions. Zero value is
// not usable; construct with [New].
type Repo struct {
	versions map[depresolve.ModuleID]map[string]VersionSpec
	order    map[depresolve.ModuleID][]string
	latest   map[depresolve.ModuleID]string
	ids      map[depresolve.ComponentID]depresolve.ModuleVersionID

	calls int
}

// New constructs an empty Repo.
func New() *Repo {
	return &Repo{
		versions: map[depresolve.ModuleID]map[string]VersionSpec{},
		order:    map[depresolve.ModuleID][]string{},
		latest:   map[depresolve.ModuleID]string{},
		ids:      map[depresolve.ComponentID]depresolve.ModuleVersionID{},
	}
}

// Add registers one version of a module, returning r for chaining. Adding the same (module,
// version) twice replaces the earlier spec.
func (r *Repo) Add(id depresolve.ModuleID, spec VersionSpec) *Repo {
	if r.versions[id] == nil {
		r.versions[id] = map[string]VersionSpec{}
	}
	if _, exists := r.versions[id][spec.Version]; !exists {
		r.order[id] = append(r.order[id], spec.Version)
	}
	r.versions[id][spec.Version] = spec
	if cur, ok := r.latest[id]; !ok || depresolve.CompareVersions(spec.Version, cur) > 0 {
		r.latest[id] = spec.Version
	}
	mvi := depresolve.ModuleVersionID{ModuleID: id, Version: spec.Version}
	r.ids[depresolve.ComponentIDOf(mvi)] = mvi
	return r
}

// ResolveCalls returns how many times [Repo.IDResolver]'s Resolve method has actually run, letting
// a test assert that a short-circuiting selector never reached the external resolver at all.
func (r *Repo) ResolveCalls() int { return r.calls }

func (r *Repo) lookup(id depresolve.ComponentID) (depresolve.ModuleVersionID, bool) {
	mvi, ok := r.ids[id]
	return mvi, ok
}

func (r *Repo) metadataFor(mvi depresolve.ModuleVersionID) (componentMetadata, error) {
	spec, ok := r.versions[mvi.ModuleID][mvi.Version]
	if !ok {
		return componentMetadata{}, fmt.Errorf("fakerepo: unknown version %v", mvi)
	}
	return componentMetadata{spec: spec}, nil
}

// componentMetadata adapts a [VersionSpec] to [depresolve.DependencyDeclaring].
type componentMetadata struct {
	spec VersionSpec
}

func (m componentMetadata) Dependencies(depresolve.ConfigurationDescriptor) []depresolve.DependencyDeclaration {
	out := make([]depresolve.DependencyDeclaration, len(m.spec.Requires))
	for i, req := range m.spec.Requires {
		out[i] = depresolve.DependencyDeclaration{Target: req.Module, Constraint: req.Constraint}
	}
	return out
}

func (m componentMetadata) Capabilities(depresolve.ConfigurationDescriptor) []depresolve.Capability {
	return m.spec.Provides
}

// IDResolver returns the [depresolve.IdResolver] view of r.
func (r *Repo) IDResolver() depresolve.IdResolver { return idResolver{r} }

type idResolver struct{ r *Repo }

func (ir idResolver) Resolve(_ context.Context, s *depresolve.SelectorState) depresolve.IdResolveResult {
	ir.r.calls++
	id := s.TargetModule().ID()
	versions := ir.r.order[id]
	if len(versions) == 0 {
		return depresolve.IdResolveResult{Failure: fmt.Errorf("fakerepo: unknown module %v", id)}
	}
	c := s.Constraint()

	best := ""
	for _, v := range versions {
		var accepted bool
		switch {
		case c.Preferred == nil:
			accepted = false
		case c.Preferred.RequiresMetadata():
			accepted = v == ir.r.latest[id]
		default:
			accepted = c.Preferred.Accept(v)
		}
		if !accepted {
			continue
		}
		// Reject rules are enforced by the core algorithm's maybeMarkRejected/validateGraph, not by
		// the repository: a reject-matching version may still be the only candidate a selector's
		// preferred rule accepts, and the repository hands it back so the algorithm can flag it.
		if best == "" || depresolve.CompareVersions(v, best) > 0 {
			best = v
		}
	}
	if best == "" {
		return depresolve.IdResolveResult{Failure: fmt.Errorf("fakerepo: no version of %v satisfies the declared constraint", id)}
	}

	mvi := depresolve.ModuleVersionID{ModuleID: id, Version: best}
	md, err := ir.r.metadataFor(mvi)
	if err != nil {
		return depresolve.IdResolveResult{Failure: err}
	}
	return depresolve.IdResolveResult{ID: depresolve.ComponentIDOf(mvi), MVI: mvi, Metadata: md}
}

// MetadataResolver returns the [depresolve.MetadataResolver] view of r. Every lookup in this
// package is cheap, since it is all in-memory; [metadataResolver.IsFetchingMetadataCheap] always
// returns true.
func (r *Repo) MetadataResolver() depresolve.MetadataResolver { return metadataResolver{r} }

type metadataResolver struct{ r *Repo }

func (metadataResolver) IsFetchingMetadataCheap(depresolve.ComponentID) bool { return true }

func (mr metadataResolver) Resolve(_ context.Context, id depresolve.ComponentID) (depresolve.ComponentMetadata, error) {
	mvi, ok := mr.r.lookup(id)
	if !ok {
		return nil, fmt.Errorf("fakerepo: unknown component %v", id)
	}
	return mr.r.metadataFor(mvi)
}

// ContextResolver returns the [depresolve.ContextResolver] view of r. It accepts a
// [depresolve.ModuleVersionID] naming an already-known root version.
func (r *Repo) ContextResolver() depresolve.ContextResolver { return contextResolver{r} }

type contextResolver struct{ r *Repo }

func (cr contextResolver) Resolve(_ context.Context, rc depresolve.ComponentResolveContext) (depresolve.ComponentResolveResult, error) {
	mvi, ok := rc.(depresolve.ModuleVersionID)
	if !ok {
		return depresolve.ComponentResolveResult{}, fmt.Errorf("fakerepo: root context must be a ModuleVersionID, got %T", rc)
	}
	md, err := cr.r.metadataFor(mvi)
	if err != nil {
		return depresolve.ComponentResolveResult{}, err
	}
	return depresolve.ComponentResolveResult{ID: depresolve.ComponentIDOf(mvi), MVI: mvi, Metadata: md}, nil
}

// defaultConfig is the sole [depresolve.ConfigurationDescriptor] every fakerepo component exposes,
// since fakerepo deliberately does not model variant/attribute matching within a component (that
// is explicitly out of scope for the core package, per its AttributeMatcher seam).
const defaultConfig = "default"

// AttributeMatcher returns an [depresolve.AttributeMatcher] that attaches every edge to the
// target's sole configuration.
func AttributeMatcher() depresolve.AttributeMatcher { return attributeMatcher{} }

type attributeMatcher struct{}

func (attributeMatcher) MatchConfigurations(_ *depresolve.EdgeState, _ *depresolve.ComponentState) ([]depresolve.ConfigurationDescriptor, error) {
	return []depresolve.ConfigurationDescriptor{defaultConfig}, nil
}

// Versions returns every version known for id, ascending by [depresolve.CompareVersions], for
// tests and CLI listings that want a deterministic dump of the repo's contents.
func (r *Repo) Versions(id depresolve.ModuleID) []string {
	out := append([]string(nil), r.order[id]...)
	sort.Slice(out, func(i, j int) bool { return depresolve.CompareVersions(out[i], out[j]) < 0 })
	return out
}

// Replacements is a declarative [depresolve.ModuleReplacementsData]: a flat map from a replaced
// module to the module that should be used in its place.
type Replacements map[depresolve.ModuleID]depresolve.ModuleID

// ReplacementFor implements [depresolve.ModuleReplacementsData].
func (r Replacements) ReplacementFor(id depresolve.ModuleID) (depresolve.ModuleID, bool) {
	target, ok := r[id]
	return target, ok
}
