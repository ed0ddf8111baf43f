package depresolve

import "context"

// HighestVersionResolver is the default [ModuleConflictResolver]: among the candidates, the
// highest version by [CompareVersions] wins, mirroring Gradle's default "latest wins" conflict
// strategy. A Force'd selector always wins outright regardless of version ordering; candidates
// carries this information via ComponentState.SelectedBy.
type HighestVersionResolver struct{}

func (HighestVersionResolver) Resolve(_ context.Context, _ ModuleID, candidates []*ComponentState) (*ComponentState, error) {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if isForced(c) && !isForced(best) {
			best = c
			continue
		}
		if isForced(best) {
			continue
		}
		if CompareVersions(c.Version(), best.Version()) > 0 {
			best = c
		}
	}
	return best, nil
}

func isForced(c *ComponentState) bool {
	forced := false
	c.SelectedBy().Each(func(s *SelectorState) bool {
		if s.IsForce() {
			forced = true
			return true
		}
		return false
	})
	return forced
}
