// Command depresolve resolves a small in-memory dependency graph and prints the result, as a
// demonstration and smoke-test harness for the depresolve package: familiar flag shapes, the same
// log-level plumbing and choice-of-output-format idea as a module-graph inspection CLI, pointed at
// a fake, fully in-memory module repository (internal/fakerepo) instead of a real module proxy.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/amterp/color"
	mapset "github.com/deckarep/golang-set/v2"

	depresolve "github.com/buildgraph/depresolve"
	"github.com/buildgraph/depresolve/internal/fakerepo"
	"github.com/buildgraph/depresolve/internal/itertools"
	"github.com/buildgraph/depresolve/internal/logging"
)

var (
	hicyanf  = color.New(color.FgHiCyan).SprintfFunc()
	hiblackf = color.New(color.FgHiBlack).SprintfFunc()
)

// collectedGraph accumulates a [depresolve.DependencyGraphVisitor]'s push calls into a structure
// the output functions below can walk freely and repeatedly, rather than reacting to each callback
// as it arrives.
type collectedGraph struct {
	root      *depresolve.NodeState
	selectors []*depresolve.SelectorState
	outgoing  map[*depresolve.NodeState][]*depresolve.EdgeState
}

func newCollectedGraph() *collectedGraph {
	return &collectedGraph{outgoing: map[*depresolve.NodeState][]*depresolve.EdgeState{}}
}

func (g *collectedGraph) Start(root *depresolve.NodeState)          { g.root = root }
func (g *collectedGraph) VisitSelector(s *depresolve.SelectorState) { g.selectors = append(g.selectors, s) }
func (g *collectedGraph) VisitNode(*depresolve.NodeState)           {}
func (g *collectedGraph) VisitEdges(n *depresolve.NodeState)        { g.outgoing[n] = n.OutgoingEdges() }
func (g *collectedGraph) Finish(*depresolve.NodeState)              {}

// children returns the selected target nodes n's outgoing edges currently attach to.
func (g *collectedGraph) children(n *depresolve.NodeState) []*depresolve.NodeState {
	var out []*depresolve.NodeState
	for _, e := range g.outgoing[n] {
		for _, t := range e.TargetNodes() {
			if t.IsSelected() {
				out = append(out, t)
			}
		}
	}
	return out
}

func label(n *depresolve.NodeState) string { return n.Component().ModuleVersionID().String() }

type outputFn = func(g *collectedGraph) error

func outputTree(g *collectedGraph) error {
	seenMsg := hiblackf(" (repeat)")
	cycleMsg := hicyanf(" (cycle)")
	seen := mapset.NewThreadUnsafeSet[*depresolve.ComponentState]()
	visiting := mapset.NewThreadUnsafeSet[*depresolve.ComponentState]()
	var visit func(n *depresolve.NodeState, indent int)
	visit = func(n *depresolve.NodeState, indent int) {
		c := n.Component()
		fmt.Print(strings.Repeat("  ", indent))
		switch {
		case visiting.Contains(c):
			fmt.Printf("%s%s\n", hiblackf("%v", label(n)), cycleMsg)
			return
		case seen.Contains(c):
			fmt.Printf("%s%s\n", hiblackf("%v", label(n)), seenMsg)
			return
		}
		fmt.Println(label(n))
		seen.Add(c)
		visiting.Add(c)
		for _, child := range g.children(n) {
			visit(child, indent+1)
		}
		visiting.Remove(c)
	}
	visit(g.root, 0)
	return nil
}

func outputRaw(g *collectedGraph) error {
	selected := mapset.NewThreadUnsafeSet[*depresolve.ComponentState]()
	var collect func(n *depresolve.NodeState)
	collect = func(n *depresolve.NodeState) {
		if !selected.Add(n.Component()) {
			return
		}
		for _, child := range g.children(n) {
			collect(child)
		}
	}
	collect(g.root)
	names := itertools.Stringify(mapset.Elements(selected))
	for _, s := range slices.Sorted(names) {
		fmt.Println(s)
	}
	return nil
}

func outputDot(g *collectedGraph) error {
	fmt.Print("digraph {\n")
	fmt.Print("  node [style=filled,fillcolor=\"white\",shape=box];\n")
	visited := mapset.NewThreadUnsafeSet[*depresolve.ComponentState]()
	var visit func(n *depresolve.NodeState)
	visit = func(n *depresolve.NodeState) {
		c := n.Component()
		if !visited.Add(c) {
			return
		}
		attrs := []string{}
		if c.IsRoot() {
			attrs = append(attrs, "fillcolor=\"black\"", "fontcolor=\"white\"")
		}
		fmt.Printf("  %q [%s];\n", label(n), strings.Join(attrs, ","))
		for _, child := range g.children(n) {
			fmt.Printf("  %q -> %q;\n", label(n), label(child))
			visit(child)
		}
	}
	visit(g.root)
	fmt.Print("}\n")
	return nil
}

var allOutputFuncs = [...]outputFn{outputTree, outputRaw, outputDot}

var allOutput = map[string]*outputFn{
	"tree": &allOutputFuncs[0],
	"raw":  &allOutputFuncs[1],
	"dot":  &allOutputFuncs[2],
}

var allResolverFuncs = [...]depresolve.ModuleConflictResolver{
	depresolve.HighestVersionResolver{},
	depresolve.SatConflictResolver{},
}

var allResolvers = map[string]*depresolve.ModuleConflictResolver{
	"highest": &allResolverFuncs[0],
	"sat":     &allResolverFuncs[1],
}

// demoRepo builds the built-in universe the binary resolves against: a small graph deliberately
// shaped to exercise a module version conflict (libc) and a capability conflict (libc vs libe,
// which libd pulls in).
func demoRepo() (*fakerepo.Repo, depresolve.ModuleVersionID) {
	r := fakerepo.New()
	app := depresolve.ModuleID{Group: "demo", Name: "app"}
	liba := depresolve.ModuleID{Group: "demo", Name: "liba"}
	libb := depresolve.ModuleID{Group: "demo", Name: "libb"}
	libc := depresolve.ModuleID{Group: "demo", Name: "libc"}
	libd := depresolve.ModuleID{Group: "demo", Name: "libd"}
	libe := depresolve.ModuleID{Group: "demo", Name: "libe"}

	r.Add(app, fakerepo.VersionSpec{
		Version: "v1.0.0",
		Requires: []fakerepo.Requirement{
			fakerepo.Requires("demo", "liba", "^1.0.0"),
			fakerepo.Requires("demo", "libb", "^2.0.0"),
			fakerepo.Requires("demo", "libd", "^1.0.0"),
		},
	})
	r.Add(liba, fakerepo.VersionSpec{
		Version:  "v1.2.0",
		Requires: []fakerepo.Requirement{fakerepo.Requires("demo", "libc", "~1.0.0")},
	})
	r.Add(libb, fakerepo.VersionSpec{
		Version:  "v2.1.0",
		Requires: []fakerepo.Requirement{fakerepo.Requires("demo", "libc", "^1.5.0")},
	})
	r.Add(libc, fakerepo.VersionSpec{Version: "v1.0.0"})
	r.Add(libc, fakerepo.VersionSpec{
		Version:  "v1.6.0",
		Provides: []depresolve.Capability{fakerepo.Cap("demo", "codec")},
	})
	r.Add(libd, fakerepo.VersionSpec{
		Version:  "v1.0.0",
		Requires: []fakerepo.Requirement{fakerepo.Requires("demo", "libe", "^1.0.0")},
	})
	r.Add(libe, fakerepo.VersionSpec{
		Version:  "v1.0.0",
		Provides: []depresolve.Capability{fakerepo.Cap("demo", "codec")},
	})

	return r, depresolve.ModuleVersionID{ModuleID: app, Version: "v1.0.0"}
}

type config struct {
	output   *outputFn
	resolver *depresolve.ModuleConflictResolver
}

var slogLevel = func() *slog.LevelVar {
	lvl := &slog.LevelVar{}
	lvl.Set(logging.LevelNotice)
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
	return lvl
}()

func choiceFlag[T any](p *T, name string, choices map[string]T, dflt string, usage string) {
	cstr := strings.Join(slices.Sorted(maps.Keys(choices)), ", ")
	var ok bool
	if *p, ok = choices[dflt]; !ok {
		panic(fmt.Errorf("invalid default for %v option: %v", dflt, name))
	}
	usage += fmt.Sprintf(" (one of: %v; default: %v)", cstr, dflt)
	flag.Func(name, usage, func(arg string) error {
		if arg == "" {
			arg = dflt
		}
		v, ok := choices[arg]
		if !ok {
			return fmt.Errorf("expected one of: %v", cstr)
		}
		*p = v
		return nil
	})
}

func parseFlags() *config {
	cfg := &config{}

	bumpLogLevel := func(lower bool) { slogLevel.Set(logging.BumpLevel(slogLevel.Level(), lower)) }
	flag.BoolFunc("v", "Increase log verbosity.", func(string) error { bumpLogLevel(true); return nil })
	flag.BoolFunc("q", "Decrease log verbosity.", func(string) error { bumpLogLevel(false); return nil })

	colorChoices := map[string]bool{"auto": color.NoColor, "never": true, "always": false}
	choiceFlag(&color.NoColor, "color", colorChoices, "auto", "Output colors according to `mode`.")
	choiceFlag(&cfg.output, "format", allOutput, "tree", "Print the resolved graph according to `mode`.")
	choiceFlag(&cfg.resolver, "resolver", allResolvers, "highest", "Resolve module conflicts using the strategy named by `mode`.")

	flag.Parse()
	return cfg
}

func run(ctx context.Context, cfg *config) error {
	repo, rootID := demoRepo()

	gb := &depresolve.GraphBuilder{
		IDResolver:             repo.IDResolver(),
		MetadataResolver:       repo.MetadataResolver(),
		ContextResolver:        repo.ContextResolver(),
		AttributeMatcher:       fakerepo.AttributeMatcher(),
		ModuleConflictResolver: *cfg.resolver,
		Logger:                 depresolve.NewLogger(slog.Default()),
	}

	g := newCollectedGraph()
	if err := gb.Resolve(ctx, rootID, g); err != nil {
		return err
	}
	return (*cfg.output)(g)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := parseFlags()
	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}
