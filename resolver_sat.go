package depresolve

import (
	"context"
	"fmt"

	"github.com/crillab/gophersat/solver"
)

// SatConflictResolver resolves a module conflict by phrasing it as a Boolean satisfiability
// problem: each candidate version is a variable, at most one of them may be true, and every
// selector registered against the module contributes a clause requiring at least one of the
// versions it accepts to be true. This is the same AtMost/PropClause/gophersat pattern the
// teacher's SAT-based resolver builds over a whole requirement graph, narrowed here to the
// candidates of a single conflicted module. If the resulting problem is unsatisfiable -- which can
// happen when a Strictly constraint and a plain Require constraint disagree -- it falls back to
// [HighestVersionResolver] rather than failing the resolution outright.
type SatConflictResolver struct{}

func (SatConflictResolver) Resolve(ctx context.Context, module ModuleID, candidates []*ComponentState) (*ComponentState, error) {
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	constrs := []solver.PBConstr{
		solver.AtMost(allLits(len(candidates)), 1),
	}

	// Every selector contributes "at least one accepted candidate is selected", skipping
	// selectors with no accepted candidate at all (those were already marked rejected upstream by
	// maybeMarkRejected and should not veto the whole module).
	selectors := candidates[0].Module().Selectors()
	for _, sel := range selectors {
		var clause []int
		for i, c := range candidates {
			if sel.Accepts(c.Version()) && !sel.Rejects(c.Version()) {
				clause = append(clause, i)
			}
		}
		if len(clause) > 0 {
			constrs = append(constrs, solver.PropClause(clause...))
		}
	}
	constrs = append(constrs, solver.PropClause(allLits(len(candidates))...))

	prob := solver.ParsePBConstrs(constrs)
	s := solver.New(prob)
	if status := s.Solve(); status != solver.Sat {
		return HighestVersionResolver{}.Resolve(ctx, module, candidates)
	}

	model := s.Model()
	for i, selected := range model {
		if i < len(candidates) && selected {
			return candidates[i], nil
		}
	}
	return nil, fmt.Errorf("sat solver reported satisfiable but selected no candidate for module %v", module)
}

func allLits(n int) []int {
	lits := make([]int, n)
	for i := range lits {
		lits[i] = i
	}
	return lits
}
